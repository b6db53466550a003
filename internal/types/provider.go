package types

import (
	"context"
	"time"

	"market-data-gateway/internal/models"
)

// ProviderTag identifies one concrete provider variant.
type ProviderTag string

const (
	ProviderYahoo        ProviderTag = "yahoo"
	ProviderAlphaVantage ProviderTag = "alphavantage"
	ProviderMock         ProviderTag = "mock"
)

// Interval selects the bar granularity for historical data.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Provider is the uniform capability set every variant implements. All
// operations return normalized records or a *ProviderError.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error)
	History(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]*models.HistoricalBar, error)
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	Profile(ctx context.Context, symbol string) (*models.Profile, error)
	Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error)

	// IsHealthy performs a cheap liveness probe against the upstream.
	IsHealthy(ctx context.Context) error

	Tag() ProviderTag
}
