// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"pattern-trader/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	ListSeries(ctx context.Context) ([]Series, error)

	// Signals
	SaveSignal(ctx context.Context, signal *models.Signal) error
	DeactivateSignal(ctx context.Context, id string) error
	GetActiveSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error)

	// Patterns
	SavePatterns(ctx context.Context, patterns []models.PatternRecord) error
	GetPatternsBySymbol(ctx context.Context, symbol string, limit int) ([]models.PatternRecord, error)

	// Lifecycle
	Close() error
}

// SignalFilter narrows signal queries. Empty fields match everything.
type SignalFilter struct {
	Symbol    string
	Timeframe string
	Limit     int
}

// Series summarizes the stored candles of one (symbol, timeframe).
type Series struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Count     int       `json:"count"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
}
