package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/cache"
	"market-data-gateway/internal/config"
	"market-data-gateway/internal/health"
	"market-data-gateway/internal/metrics"
	"market-data-gateway/internal/models"
	"market-data-gateway/internal/providers"
	"market-data-gateway/internal/ratelimit"
	"market-data-gateway/internal/strategy"
	"market-data-gateway/internal/types"
)

// Service is the facade in front of the provider variants. Every read runs
// cache-aside against the facade-level cache, falls back across variants on
// transient upstream failures, and degrades to the stale tier before
// surfacing an error.
type Service struct {
	cache    *cache.MarketCache
	factory  *providers.Factory
	strategy strategy.Strategy
	monitor  *health.Monitor
	tracker  *metrics.Tracker

	autoFallback  bool
	maxRangeYears int
	enrichment    map[types.ProviderTag]config.EnrichmentConfig

	log *logrus.Entry
	now func() time.Time
}

// Options bundle the facade's collaborators.
type Options struct {
	Cache    *cache.MarketCache
	Factory  *providers.Factory
	Strategy strategy.Strategy
	Monitor  *health.Monitor
	Tracker  *metrics.Tracker
	Config   *config.Config
	Log      *logrus.Entry
}

// New creates the facade.
func New(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	maxYears := 5
	autoFallback := true
	enrichment := map[types.ProviderTag]config.EnrichmentConfig{}
	if opts.Config != nil {
		if opts.Config.DataProvider.MaxHistoryRangeYears > 0 {
			maxYears = opts.Config.DataProvider.MaxHistoryRangeYears
		}
		autoFallback = opts.Config.DataProvider.EnableAutomaticFallback
		enrichment[types.ProviderYahoo] = opts.Config.Providers.Yahoo.Enrichment
		enrichment[types.ProviderAlphaVantage] = opts.Config.Providers.AlphaVantage.Enrichment
	}

	return &Service{
		cache:         opts.Cache,
		factory:       opts.Factory,
		strategy:      opts.Strategy,
		monitor:       opts.Monitor,
		tracker:       opts.Tracker,
		autoFallback:  autoFallback,
		maxRangeYears: maxYears,
		enrichment:    enrichment,
		log:           log,
		now:           time.Now,
	}
}

// selection assembles the per-request context a strategy consults.
func (s *Service) selection(symbol string, op strategy.Operation) strategy.Context {
	ctx := strategy.Context{Symbol: symbol, Operation: op}
	if s.monitor != nil {
		ctx.Health = s.monitor.GetAll()
	}
	if s.factory != nil {
		ctx.RateLimits = s.factory.LimiterStatus()
	}
	return ctx
}

// shouldFallback reports whether an upstream error warrants the one
// re-invocation through the strategy's fallback variant.
func (s *Service) shouldFallback(err error) bool {
	if !s.autoFallback {
		return false
	}
	kind := types.KindOf(err)
	return kind == types.ErrRateLimitExceeded || kind == types.ErrAPIUnavailable
}

// invoke selects a variant, runs call against it, and on a transient failure
// re-issues exactly once through the fallback variant. It returns the tag
// that produced the final outcome.
func (s *Service) invoke(symbol string, op strategy.Operation, call func(types.Provider) error) (types.ProviderTag, error) {
	tag, err := s.strategy.Select(s.selection(symbol, op))
	if err != nil {
		return "", err
	}

	p, err := s.factory.Resolve(tag)
	if err != nil {
		return tag, err
	}

	if err := call(p); err != nil {
		s.tracker.RecordFailure(tag)

		if s.shouldFallback(err) {
			if fbTag := s.strategy.Fallback(); fbTag != "" && fbTag != tag {
				if fb, rerr := s.factory.Resolve(fbTag); rerr == nil {
					s.log.WithFields(logrus.Fields{
						"from":   tag,
						"to":     fbTag,
						"symbol": symbol,
						"op":     op,
					}).WithError(err).Warn("switching to fallback provider")

					if fbErr := call(fb); fbErr != nil {
						s.tracker.RecordFailure(fbTag)
						return fbTag, fbErr
					}
					s.tracker.RecordSuccess(fbTag)
					return fbTag, nil
				}
			}
		}
		return tag, err
	}

	s.tracker.RecordSuccess(tag)
	return tag, nil
}

// Quote returns the current quote for symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if q := s.cache.GetQuote(ctx, symbol); q != nil {
		return q, nil
	}

	var quote *models.Quote
	tag, err := s.invoke(symbol, strategy.OpQuote, func(p types.Provider) error {
		q, callErr := p.Quote(ctx, symbol)
		if callErr != nil {
			return callErr
		}
		quote = q
		return nil
	})
	if err != nil {
		if stale := s.staleQuote(ctx, symbol, err); stale != nil {
			return stale, nil
		}
		return nil, err
	}

	s.enrichQuote(ctx, tag, quote)
	s.cache.SetQuote(ctx, symbol, quote)
	return quote, nil
}

func (s *Service) staleQuote(ctx context.Context, symbol string, cause error) *models.Quote {
	if !types.ServableFromStale(cause) {
		return nil
	}
	stale := s.cache.StaleQuote(ctx, symbol)
	if stale != nil {
		s.log.WithField("symbol", symbol).WithError(cause).Warn("serving stale quote")
	}
	return stale
}

// Quotes returns quotes for a batch of symbols. Cached symbols are answered
// locally; the remainder goes through one variant invocation. Partial
// results are returned even when the upstream aborts midway.
func (s *Service) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	symbols = dedupe(symbols)
	result := make(map[string]*models.Quote, len(symbols))

	var missing []string
	for _, symbol := range symbols {
		if q := s.cache.GetQuote(ctx, symbol); q != nil {
			result[symbol] = q
			continue
		}
		missing = append(missing, symbol)
	}
	if len(missing) == 0 {
		return result, nil
	}

	var fetched map[string]*models.Quote
	_, err := s.invoke(joinSymbols(missing), strategy.OpQuotes, func(p types.Provider) error {
		batch, callErr := p.Quotes(ctx, missing)
		fetched = batch
		return callErr
	})

	for symbol, q := range fetched {
		result[symbol] = q
		s.cache.SetQuote(ctx, symbol, q)
	}

	if err != nil {
		// Fill what the stale tier still has before reporting.
		for _, symbol := range missing {
			if _, ok := result[symbol]; ok {
				continue
			}
			if stale := s.staleQuote(ctx, symbol, err); stale != nil {
				result[symbol] = stale
			}
		}
		if len(result) > 0 {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

// History returns the bar series for symbol over [start, end]. The range is
// validated before any cache or network access.
func (s *Service) History(ctx context.Context, symbol string, start, end time.Time, interval types.Interval) ([]*models.HistoricalBar, error) {
	start, end, err := s.validateRange(symbol, start, end)
	if err != nil {
		return nil, err
	}

	if bars := s.cache.GetHistory(ctx, symbol, start, end, string(interval)); bars != nil {
		return bars, nil
	}

	var bars []*models.HistoricalBar
	_, err = s.invoke(symbol, strategy.OpHistory, func(p types.Provider) error {
		got, callErr := p.History(ctx, symbol, start, end, interval)
		if callErr != nil {
			return callErr
		}
		bars = got
		return nil
	})
	if err != nil {
		if types.ServableFromStale(err) {
			if stale := s.cache.StaleHistory(ctx, symbol, start, end, string(interval)); stale != nil {
				s.log.WithField("symbol", symbol).WithError(err).Warn("serving stale history")
				return stale, nil
			}
		}
		return nil, err
	}

	s.cache.SetHistory(ctx, symbol, start, end, string(interval), bars)
	return bars, nil
}

// validateRange enforces start < end and the configured maximum span, and
// clamps a future end date to today.
func (s *Service) validateRange(symbol string, start, end time.Time) (time.Time, time.Time, error) {
	today := models.DateOnly(s.now())
	start = models.DateOnly(start)
	end = models.DateOnly(end)

	if end.After(today) {
		s.log.WithFields(logrus.Fields{
			"symbol": symbol,
			"end":    end.Format("2006-01-02"),
		}).Warn("end date in the future, clamping to today")
		end = today
	}

	if !start.Before(end) {
		return start, end, types.NewProviderError(types.ErrInvalidDateRange, "", symbol, "start date must precede end date")
	}
	if start.Before(end.AddDate(-s.maxRangeYears, 0, 0)) {
		return start, end, types.NewProviderError(types.ErrInvalidDateRange, "", symbol, "date range exceeds maximum span")
	}
	return start, end, nil
}

// Fundamentals returns the valuation ratios for symbol.
func (s *Service) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if f := s.cache.GetFundamentals(ctx, symbol); f != nil {
		return f, nil
	}

	var fundamentals *models.Fundamentals
	_, err := s.invoke(symbol, strategy.OpFundamentals, func(p types.Provider) error {
		f, callErr := p.Fundamentals(ctx, symbol)
		if callErr != nil {
			return callErr
		}
		fundamentals = f
		return nil
	})
	if err != nil {
		if types.ServableFromStale(err) {
			if stale := s.cache.StaleFundamentals(ctx, symbol); stale != nil {
				s.log.WithField("symbol", symbol).WithError(err).Warn("serving stale fundamentals")
				return stale, nil
			}
		}
		return nil, err
	}

	s.cache.SetFundamentals(ctx, symbol, fundamentals)
	return fundamentals, nil
}

// Profile returns the company reference data for symbol.
func (s *Service) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	if p := s.cache.GetProfile(ctx, symbol); p != nil {
		return p, nil
	}

	var profile *models.Profile
	_, err := s.invoke(symbol, strategy.OpProfile, func(p types.Provider) error {
		got, callErr := p.Profile(ctx, symbol)
		if callErr != nil {
			return callErr
		}
		profile = got
		return nil
	})
	if err != nil {
		if types.ServableFromStale(err) {
			if stale := s.cache.StaleProfile(ctx, symbol); stale != nil {
				s.log.WithField("symbol", symbol).WithError(err).Warn("serving stale profile")
				return stale, nil
			}
		}
		return nil, err
	}

	s.cache.SetProfile(ctx, symbol, profile)
	return profile, nil
}

// Search returns scored symbol matches for query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if hits := s.cache.GetSearch(ctx, query, limit); hits != nil {
		return hits, nil
	}

	var hits []*models.SearchHit
	_, err := s.invoke(query, strategy.OpSearch, func(p types.Provider) error {
		got, callErr := p.Search(ctx, query, limit)
		if callErr != nil {
			return callErr
		}
		hits = got
		return nil
	})
	if err != nil {
		if types.ServableFromStale(err) {
			if stale := s.cache.StaleSearch(ctx, query, limit); stale != nil {
				s.log.WithField("query", query).WithError(err).Warn("serving stale search results")
				return stale, nil
			}
		}
		return nil, err
	}

	s.cache.SetSearch(ctx, query, limit, hits)
	return hits, nil
}

// Health exposes the monitor's snapshots for the outer API layer.
func (s *Service) Health() map[types.ProviderTag]models.ProviderHealth {
	if s.monitor == nil {
		return map[types.ProviderTag]models.ProviderHealth{}
	}
	return s.monitor.GetAll()
}

// Costs exposes the cost tracker's read-outs.
func (s *Service) Costs() map[types.ProviderTag]models.CostMetrics {
	if s.tracker == nil {
		return map[types.ProviderTag]models.CostMetrics{}
	}
	return s.tracker.AllCostMetrics()
}

// RateLimits exposes every variant's limiter status.
func (s *Service) RateLimits() map[types.ProviderTag]ratelimit.Status {
	if s.factory == nil {
		return map[types.ProviderTag]ratelimit.Status{}
	}
	return s.factory.LimiterStatus()
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

func joinSymbols(symbols []string) string {
	if len(symbols) == 0 {
		return ""
	}
	return symbols[0]
}
