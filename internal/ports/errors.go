package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Price Feed Specific Errors
	ErrFeedUnavailable  = errors.New("price feed is unavailable")
	ErrConnectionFailed = errors.New("failed to connect to the price feed")
	ErrRateLimited      = errors.New("API rate limit exceeded")
	ErrPriceNotFound    = errors.New("no price data returned for symbol")

	// Store Specific Errors
	ErrDuplicateEntry  = errors.New("record already exists")
	ErrStoreConnection = errors.New("store connection error")
	ErrQueryFailed     = errors.New("store read failed")
	ErrUpdateFailed    = errors.New("store write failed")
)
