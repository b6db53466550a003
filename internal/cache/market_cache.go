package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/models"
)

// DataType names one cached record family; it is the second segment of every
// cache key.
type DataType string

const (
	DataQuote        DataType = "quote"
	DataHistorical   DataType = "historical"
	DataFundamentals DataType = "fundamentals"
	DataProfile      DataType = "profile"
	DataSearch       DataType = "search"
	DataCalculated   DataType = "calculated"
)

// stalePrefix marks the long-lived tier consulted only on upstream failure.
const stalePrefix = "stale:"

// TTLConfig holds the hot- and stale-tier lifetimes per data type.
type TTLConfig struct {
	Quote            time.Duration
	Historical       time.Duration
	Fundamentals     time.Duration
	Profile          time.Duration
	Search           time.Duration
	CalculatedFields time.Duration

	StaleQuote        time.Duration
	StaleHistorical   time.Duration
	StaleFundamentals time.Duration
	StaleProfile      time.Duration
	StaleSearch       time.Duration
}

// DefaultTTLConfig returns the default cache lifetimes.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Quote:            15 * time.Minute,
		Historical:       24 * time.Hour,
		Fundamentals:     6 * time.Hour,
		Profile:          7 * 24 * time.Hour,
		Search:           time.Hour,
		CalculatedFields: 24 * time.Hour,

		StaleQuote:        24 * time.Hour,
		StaleHistorical:   7 * 24 * time.Hour,
		StaleFundamentals: 7 * 24 * time.Hour,
		StaleProfile:      30 * 24 * time.Hour,
		StaleSearch:       7 * 24 * time.Hour,
	}
}

func (c TTLConfig) hot(dt DataType) time.Duration {
	switch dt {
	case DataQuote:
		return c.Quote
	case DataHistorical:
		return c.Historical
	case DataFundamentals:
		return c.Fundamentals
	case DataProfile:
		return c.Profile
	case DataSearch:
		return c.Search
	case DataCalculated:
		return c.CalculatedFields
	}
	return c.Quote
}

func (c TTLConfig) stale(dt DataType) time.Duration {
	switch dt {
	case DataQuote:
		return c.StaleQuote
	case DataHistorical:
		return c.StaleHistorical
	case DataFundamentals:
		return c.StaleFundamentals
	case DataProfile:
		return c.StaleProfile
	case DataSearch:
		return c.StaleSearch
	}
	return 0
}

// MarketCache is a typed wrapper over a Store. It owns key construction,
// per-data-type TTLs and the hot/stale tiering. Backend failures are
// non-fatal: reads degrade to misses and writes are best-effort.
//
// An empty scope produces facade-level keys ("quote:AAPL"); a provider tag
// scope produces variant-level keys ("yahoo:quote:AAPL").
type MarketCache struct {
	store Store
	scope string
	ttl   TTLConfig
	log   *logrus.Entry
}

// NewMarketCache creates a typed cache over store.
func NewMarketCache(store Store, scope string, ttl TTLConfig, log *logrus.Entry) *MarketCache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MarketCache{store: store, scope: scope, ttl: ttl, log: log}
}

// Key builds a cache key: {scope}:{dataType}:{part}[:{part}...].
func (m *MarketCache) Key(dt DataType, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	if m.scope != "" {
		segments = append(segments, m.scope)
	}
	segments = append(segments, string(dt))
	segments = append(segments, parts...)
	return strings.Join(segments, ":")
}

// HistoryKeyParts renders a historical range to its key segments.
func HistoryKeyParts(symbol string, start, end time.Time, interval string) []string {
	return []string{symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), strings.ToUpper(interval)}
}

// SearchKeyParts renders a search query to its key segments.
func SearchKeyParts(query string, limit int) []string {
	return []string{strings.ToLower(query), fmt.Sprintf("%d", limit)}
}

func (m *MarketCache) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		if !IsNotFound(err) {
			m.log.WithError(err).WithField("key", key).Warn("cache read failed")
		} else {
			m.log.WithField("key", key).Debug("cache MISS")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("cache entry unreadable, dropping")
		_ = m.store.Delete(ctx, key)
		return false
	}
	m.log.WithField("key", key).Debug("cache HIT")
	return true
}

func (m *MarketCache) set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.WithError(err).WithField("key", key).Warn("cache serialization failed")
		return
	}
	if err := m.store.Set(ctx, key, data, ttl); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("cache write failed")
		return
	}
	m.log.WithFields(logrus.Fields{"key": key, "bytes": len(data), "ttl": ttl}).Debug("cache SET")
}

// setBoth writes the hot entry and then the stale copy. Ordering matters: a
// retry immediately after a successful call must observe the fresh hot value.
func (m *MarketCache) setBoth(ctx context.Context, dt DataType, v interface{}, parts ...string) {
	key := m.Key(dt, parts...)
	m.set(ctx, key, v, m.ttl.hot(dt))
	if staleTTL := m.ttl.stale(dt); staleTTL > 0 {
		m.set(ctx, stalePrefix+key, v, staleTTL)
	}
}

// Remove deletes the hot and stale entries for a record.
func (m *MarketCache) Remove(ctx context.Context, dt DataType, parts ...string) {
	key := m.Key(dt, parts...)
	if err := m.store.Delete(ctx, key, stalePrefix+key); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("cache remove failed")
		return
	}
	m.log.WithField("key", key).Debug("cache REMOVE")
}

// GetQuote returns the hot-tier quote for symbol, or nil on miss.
func (m *MarketCache) GetQuote(ctx context.Context, symbol string) *models.Quote {
	var q models.Quote
	if !m.get(ctx, m.Key(DataQuote, symbol), &q) {
		return nil
	}
	return &q
}

// StaleQuote returns the stale-tier quote for symbol, or nil.
func (m *MarketCache) StaleQuote(ctx context.Context, symbol string) *models.Quote {
	var q models.Quote
	if !m.get(ctx, stalePrefix+m.Key(DataQuote, symbol), &q) {
		return nil
	}
	return &q
}

// SetQuote writes the quote to both tiers.
func (m *MarketCache) SetQuote(ctx context.Context, symbol string, q *models.Quote) {
	m.setBoth(ctx, DataQuote, q, symbol)
}

// GetHistory returns the hot-tier bar series, or nil on miss.
func (m *MarketCache) GetHistory(ctx context.Context, symbol string, start, end time.Time, interval string) []*models.HistoricalBar {
	var bars []*models.HistoricalBar
	if !m.get(ctx, m.Key(DataHistorical, HistoryKeyParts(symbol, start, end, interval)...), &bars) {
		return nil
	}
	return bars
}

// StaleHistory returns the stale-tier bar series, or nil.
func (m *MarketCache) StaleHistory(ctx context.Context, symbol string, start, end time.Time, interval string) []*models.HistoricalBar {
	var bars []*models.HistoricalBar
	if !m.get(ctx, stalePrefix+m.Key(DataHistorical, HistoryKeyParts(symbol, start, end, interval)...), &bars) {
		return nil
	}
	return bars
}

// SetHistory writes the bar series to both tiers.
func (m *MarketCache) SetHistory(ctx context.Context, symbol string, start, end time.Time, interval string, bars []*models.HistoricalBar) {
	m.setBoth(ctx, DataHistorical, bars, HistoryKeyParts(symbol, start, end, interval)...)
}

// GetFundamentals returns the hot-tier fundamentals, or nil on miss.
func (m *MarketCache) GetFundamentals(ctx context.Context, symbol string) *models.Fundamentals {
	var f models.Fundamentals
	if !m.get(ctx, m.Key(DataFundamentals, symbol), &f) {
		return nil
	}
	return &f
}

// StaleFundamentals returns the stale-tier fundamentals, or nil.
func (m *MarketCache) StaleFundamentals(ctx context.Context, symbol string) *models.Fundamentals {
	var f models.Fundamentals
	if !m.get(ctx, stalePrefix+m.Key(DataFundamentals, symbol), &f) {
		return nil
	}
	return &f
}

// SetFundamentals writes the fundamentals to both tiers.
func (m *MarketCache) SetFundamentals(ctx context.Context, symbol string, f *models.Fundamentals) {
	m.setBoth(ctx, DataFundamentals, f, symbol)
}

// GetProfile returns the hot-tier profile, or nil on miss.
func (m *MarketCache) GetProfile(ctx context.Context, symbol string) *models.Profile {
	var p models.Profile
	if !m.get(ctx, m.Key(DataProfile, symbol), &p) {
		return nil
	}
	return &p
}

// StaleProfile returns the stale-tier profile, or nil.
func (m *MarketCache) StaleProfile(ctx context.Context, symbol string) *models.Profile {
	var p models.Profile
	if !m.get(ctx, stalePrefix+m.Key(DataProfile, symbol), &p) {
		return nil
	}
	return &p
}

// SetProfile writes the profile to both tiers.
func (m *MarketCache) SetProfile(ctx context.Context, symbol string, p *models.Profile) {
	m.setBoth(ctx, DataProfile, p, symbol)
}

// GetSearch returns the hot-tier search results, or nil on miss.
func (m *MarketCache) GetSearch(ctx context.Context, query string, limit int) []*models.SearchHit {
	var hits []*models.SearchHit
	if !m.get(ctx, m.Key(DataSearch, SearchKeyParts(query, limit)...), &hits) {
		return nil
	}
	return hits
}

// StaleSearch returns the stale-tier search results, or nil.
func (m *MarketCache) StaleSearch(ctx context.Context, query string, limit int) []*models.SearchHit {
	var hits []*models.SearchHit
	if !m.get(ctx, stalePrefix+m.Key(DataSearch, SearchKeyParts(query, limit)...), &hits) {
		return nil
	}
	return hits
}

// SetSearch writes the search results to both tiers.
func (m *MarketCache) SetSearch(ctx context.Context, query string, limit int, hits []*models.SearchHit) {
	m.setBoth(ctx, DataSearch, hits, SearchKeyParts(query, limit)...)
}

// GetCalculated reads the memoized derived fields for symbol into dst.
func (m *MarketCache) GetCalculated(ctx context.Context, symbol string, dst interface{}) bool {
	return m.get(ctx, m.Key(DataCalculated, symbol), dst)
}

// SetCalculated memoizes derived fields for symbol. Calculated entries have
// no stale tier; they are cheap to recompute.
func (m *MarketCache) SetCalculated(ctx context.Context, symbol string, v interface{}) {
	m.set(ctx, m.Key(DataCalculated, symbol), v, m.ttl.CalculatedFields)
}
