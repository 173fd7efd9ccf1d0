package domain

// Balance holds the user-entered account capital. Only this base shape is
// ever persisted.
type Balance struct {
	Amount      float64 // Base balance entered by the user
	LastUpdated int64   // Time of the last user edit, milliseconds since epoch
}

// EffectiveBalance is the derived view shown to the user: the base balance
// combined with the aggregate PnL across all tracked trades. It is computed
// fresh on demand and never persisted.
type EffectiveBalance struct {
	Amount      float64 // BaseBalance + PnL, rounded to 2 decimals
	LastUpdated int64
	BaseBalance float64
	PnL         float64
}
