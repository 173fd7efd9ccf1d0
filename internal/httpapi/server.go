package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tradetracker/internal/app"
	"tradetracker/internal/ports"

	"github.com/gin-gonic/gin"
)

// Server exposes the tracker over HTTP: trade and balance mutation, the
// projected view, CSV export and the market-price proxy.
type Server struct {
	addr   string
	logger ports.Logger
	svc    *app.Service
	router *gin.Engine
}

// Config holds the HTTP server dependencies.
type Config struct {
	Addr    string
	Logger  ports.Logger
	Service *app.Service
}

// NewServer builds the router and its handlers.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil || cfg.Service == nil {
		return nil, fmt.Errorf("missing required dependencies for HTTP server")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger), corsHeaders())

	s := &Server{addr: addr, logger: cfg.Logger, svc: cfg.Service, router: router}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/prices", s.handlePrices)
	api.GET("/trades", s.handleListTrades)
	api.POST("/trades", s.handleAddTrade)
	api.POST("/trades/:id/close", s.handleCloseTrade)
	api.DELETE("/trades/:id", s.handleDeleteTrade)
	api.GET("/balance", s.handleGetBalance)
	api.PUT("/balance", s.handleSetBalance)
	api.GET("/export", s.handleExportCSV)

	return s, nil
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": s.addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// requestLogger records one line per request via the application logger.
func requestLogger(logger ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), "HTTP request", map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}

// corsHeaders sets permissive cross-origin headers so the API can be called
// directly from a browser context.
func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
