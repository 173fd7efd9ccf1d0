package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradetracker/internal/domain"
	"tradetracker/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Logical keys of the key-value store. Trades and balance each live under a
// single key holding the full serialized value.
const (
	tradesKey  = "trades"
	balanceKey = "balance"
)

// Store implements ports.TradeStore and ports.BalanceStore on a single
// SQLite key-value table. Saves overwrite the whole value for a key; there
// are no partial updates and no migrations beyond the isLong backfill
// performed at load time.
type Store struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewStore opens (creating if necessary) the database at cfg.DBPath and
// ensures the key-value schema exists.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradetracker.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite store initialized", map[string]interface{}{"path": dbPath})
	return store, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS kv_store (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// storedTrade is the persisted JSON shape of a trade. It mirrors the record
// layout of earlier versions of the tracker: direction and status are the
// isLong/isClosed flags, and isLong may be absent on old records.
type storedTrade struct {
	ID         string   `json:"id"`
	Ticker     string   `json:"ticker"`
	EntryPrice float64  `json:"entryPrice"`
	ExitPrice  *float64 `json:"exitPrice,omitempty"`
	Leverage   float64  `json:"leverage"`
	MarginSize float64  `json:"marginSize"`
	IsLong     *bool    `json:"isLong,omitempty"`
	IsClosed   bool     `json:"isClosed,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}

func toDomain(st storedTrade) *domain.Trade {
	t := &domain.Trade{
		ID:         st.ID,
		Ticker:     st.Ticker,
		EntryPrice: st.EntryPrice,
		Leverage:   st.Leverage,
		MarginSize: st.MarginSize,
		Direction:  domain.Long,
		Status:     domain.StatusOpen,
		Timestamp:  st.Timestamp,
	}
	// Records written before short positions existed carry no isLong field;
	// they default to long.
	if st.IsLong != nil && !*st.IsLong {
		t.Direction = domain.Short
	}
	if st.IsClosed && st.ExitPrice != nil {
		t.Status = domain.StatusClosed
		t.ExitPrice = *st.ExitPrice
	}
	return t
}

func fromDomain(t *domain.Trade) storedTrade {
	isLong := t.IsLong()
	st := storedTrade{
		ID:         t.ID,
		Ticker:     t.Ticker,
		EntryPrice: t.EntryPrice,
		Leverage:   t.Leverage,
		MarginSize: t.MarginSize,
		IsLong:     &isLong,
		Timestamp:  t.Timestamp,
	}
	if !t.IsOpen() {
		exit := t.ExitPrice
		st.IsClosed = true
		st.ExitPrice = &exit
	}
	return st
}

// LoadTrades returns the stored trade sequence. A missing key or a value
// that fails to parse yields an empty sequence.
func (s *Store) LoadTrades(ctx context.Context) ([]*domain.Trade, error) {
	raw, found, err := s.get(ctx, tradesKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var stored []storedTrade
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn(ctx, "Stored trades failed to parse, treating as empty", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}

	trades := make([]*domain.Trade, 0, len(stored))
	for _, st := range stored {
		trades = append(trades, toDomain(st))
	}
	return trades, nil
}

// SaveTrades overwrites the stored sequence with the given one.
func (s *Store) SaveTrades(ctx context.Context, trades []*domain.Trade) error {
	stored := make([]storedTrade, 0, len(trades))
	for _, t := range trades {
		stored = append(stored, fromDomain(t))
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to serialize trades: %w", err)
	}
	return s.put(ctx, tradesKey, string(raw))
}

// storedBalance is the persisted JSON shape of the balance: only the base
// amount and its edit time, never the derived effective view.
type storedBalance struct {
	Amount      float64 `json:"amount"`
	LastUpdated int64   `json:"lastUpdated"`
}

// LoadBalance returns the stored balance. A missing key or a value that
// fails to parse yields a zero balance.
func (s *Store) LoadBalance(ctx context.Context) (*domain.Balance, error) {
	raw, found, err := s.get(ctx, balanceKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return &domain.Balance{}, nil
	}

	var stored storedBalance
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn(ctx, "Stored balance failed to parse, treating as zero", map[string]interface{}{"error": err.Error()})
		return &domain.Balance{}, nil
	}
	return &domain.Balance{Amount: stored.Amount, LastUpdated: stored.LastUpdated}, nil
}

// SaveBalance overwrites the stored balance.
func (s *Store) SaveBalance(ctx context.Context, balance *domain.Balance) error {
	raw, err := json.Marshal(storedBalance{Amount: balance.Amount, LastUpdated: balance.LastUpdated})
	if err != nil {
		return fmt.Errorf("failed to serialize balance: %w", err)
	}
	return s.put(ctx, balanceKey, string(raw))
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key '%s': %w: %v", key, ports.ErrQueryFailed, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key '%s': %w: %v", key, ports.ErrUpdateFailed, err)
	}
	return nil
}
