package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-gateway/internal/cache"
	"market-data-gateway/internal/config"
	"market-data-gateway/internal/metrics"
	"market-data-gateway/internal/models"
	"market-data-gateway/internal/providers"
	"market-data-gateway/internal/strategy"
	"market-data-gateway/internal/types"
)

// stubProvider is a scriptable variant: canned records, one injectable error
// and call accounting.
type stubProvider struct {
	tag types.ProviderTag

	mu           sync.Mutex
	quoteCalls   int
	batchCalls   int
	historyCalls int
	lastStart    time.Time
	lastEnd      time.Time

	quote   *models.Quote
	batch   map[string]*models.Quote
	bars    []*models.HistoricalBar
	fund    *models.Fundamentals
	profile *models.Profile
	hits    []*models.SearchHit
	err     error
}

func (s *stubProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	s.mu.Lock()
	s.quoteCalls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func (s *stubProvider) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	return s.batch, s.err
}

func (s *stubProvider) History(ctx context.Context, symbol string, start, end time.Time, interval types.Interval) ([]*models.HistoricalBar, error) {
	s.mu.Lock()
	s.historyCalls++
	s.lastStart = start
	s.lastEnd = end
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.bars, nil
}

func (s *stubProvider) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fund, nil
}

func (s *stubProvider) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func (s *stubProvider) Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *stubProvider) IsHealthy(ctx context.Context) error { return s.err }
func (s *stubProvider) Tag() types.ProviderTag              { return s.tag }

func (s *stubProvider) calls() (quote, batch, history int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteCalls, s.batchCalls, s.historyCalls
}

func (s *stubProvider) historyRange() (time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStart, s.lastEnd
}

// facadeFixture wires a facade over two stub variants: a premium primary
// (alphavantage) and a free secondary (yahoo).
type facadeFixture struct {
	service   *Service
	store     *cache.MemoryStore
	cache     *cache.MarketCache
	tracker   *metrics.Tracker
	primary   *stubProvider
	secondary *stubProvider
}

func facadeConfig() *config.Config {
	return &config.Config{
		DataProvider: config.DataProviderConfig{
			EnableAutomaticFallback: true,
			MaxHistoryRangeYears:    5,
		},
	}
}

func newFixture(t *testing.T, cfg *config.Config, strategyName string) *facadeFixture {
	t.Helper()

	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)

	primary := &stubProvider{tag: types.ProviderAlphaVantage}
	secondary := &stubProvider{tag: types.ProviderYahoo}

	factory := providers.NewFactory(&config.Config{}, nil, cache.TTLConfig{}, logger)
	factory.Register(types.ProviderAlphaVantage, func() types.Provider { return primary })
	factory.Register(types.ProviderYahoo, func() types.Provider { return secondary })

	tracker := metrics.NewTracker(map[types.ProviderTag]metrics.CostRates{
		types.ProviderAlphaVantage: {CostPerCall: 0.5},
		types.ProviderYahoo:        {},
	}, 80, entry, nil)

	st, err := strategy.New(strategyName, types.ProviderAlphaVantage, types.ProviderYahoo,
		[]types.ProviderTag{types.ProviderYahoo, types.ProviderAlphaVantage}, tracker)
	require.NoError(t, err)

	store := cache.NewMemoryStore(0)
	mc := cache.NewMarketCache(store, "", cache.DefaultTTLConfig(), entry)

	svc := New(Options{
		Cache:    mc,
		Factory:  factory,
		Strategy: st,
		Tracker:  tracker,
		Config:   cfg,
		Log:      entry,
	})

	return &facadeFixture{
		service:   svc,
		store:     store,
		cache:     mc,
		tracker:   tracker,
		primary:   primary,
		secondary: secondary,
	}
}

func testQuote(symbol string, price float64) *models.Quote {
	q := &models.Quote{
		Symbol:        symbol,
		CurrentPrice:  decimal.NewFromFloat(price),
		PreviousClose: decimal.NewFromFloat(price - 1),
		MarketState:   models.MarketStateClosed,
		AsOf:          time.Now().UTC(),
	}
	q.RecomputeChange()
	return q
}

// seedStale leaves only the stale-tier copy of a quote in the cache.
func seedStale(t *testing.T, fx *facadeFixture, symbol string, q *models.Quote) {
	t.Helper()
	fx.cache.SetQuote(context.Background(), symbol, q)
	require.NoError(t, fx.store.Delete(context.Background(), "quote:"+symbol))
}

func TestQuote_CacheAside(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.primary.quote = testQuote("AAPL", 200)

	first, err := fx.service.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Symbol)

	second, err := fx.service.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, second.CurrentPrice.Equal(first.CurrentPrice))

	quoteCalls, _, _ := fx.primary.calls()
	assert.Equal(t, 1, quoteCalls, "second read must come from the cache")
	assert.Equal(t, int64(1), fx.tracker.Metrics(types.ProviderAlphaVantage).Success)
}

func TestQuote_FallbackOnRateLimit(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.primary.err = types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderAlphaVantage, "AAPL", "quota drained")
	fx.secondary.quote = testQuote("AAPL", 199)

	q, err := fx.service.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.CurrentPrice.Equal(decimal.NewFromInt(199)))

	primaryCalls, _, _ := fx.primary.calls()
	secondaryCalls, _, _ := fx.secondary.calls()
	assert.Equal(t, 1, primaryCalls)
	assert.Equal(t, 1, secondaryCalls)
	assert.Equal(t, int64(1), fx.tracker.Metrics(types.ProviderAlphaVantage).Failed)
	assert.Equal(t, int64(1), fx.tracker.Metrics(types.ProviderYahoo).Success)
}

func TestQuote_NoFallbackWhenDisabled(t *testing.T) {
	cfg := facadeConfig()
	cfg.DataProvider.EnableAutomaticFallback = false

	fx := newFixture(t, cfg, "fallback")
	fx.primary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, "AAPL", "upstream down")

	_, err := fx.service.Quote(context.Background(), "AAPL")
	assert.True(t, types.IsKind(err, types.ErrAPIUnavailable))

	secondaryCalls, _, _ := fx.secondary.calls()
	assert.Zero(t, secondaryCalls)
}

func TestQuote_StaleServedWhenAllVariantsFail(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.primary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, "AAPL", "upstream down")
	fx.secondary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, "AAPL", "upstream down")
	seedStale(t, fx, "AAPL", testQuote("AAPL", 180))

	q, err := fx.service.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.CurrentPrice.Equal(decimal.NewFromInt(180)))

	primaryCalls, _, _ := fx.primary.calls()
	secondaryCalls, _, _ := fx.secondary.calls()
	assert.Equal(t, 1, primaryCalls, "fallback attempted before degrading to stale")
	assert.Equal(t, 1, secondaryCalls)
}

func TestQuote_NotFoundNeverServedStale(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.primary.err = types.NewProviderError(types.ErrSymbolNotFound, types.ProviderAlphaVantage, "DELISTED", "unknown symbol")
	seedStale(t, fx, "DELISTED", testQuote("DELISTED", 12))

	_, err := fx.service.Quote(context.Background(), "DELISTED")
	assert.True(t, types.IsKind(err, types.ErrSymbolNotFound))

	secondaryCalls, _, _ := fx.secondary.calls()
	assert.Zero(t, secondaryCalls, "not-found does not warrant a fallback")
}

func TestQuotes_PartialResultOnAbort(t *testing.T) {
	cfg := facadeConfig()
	cfg.DataProvider.EnableAutomaticFallback = false

	fx := newFixture(t, cfg, "fallback")
	fx.primary.batch = map[string]*models.Quote{"AAPL": testQuote("AAPL", 200)}
	fx.primary.err = types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderAlphaVantage, "MSFT", "quota drained")

	result, err := fx.service.Quotes(context.Background(), []string{"AAPL", "MSFT", "AAPL"})
	require.NoError(t, err, "partial results suppress the upstream error")
	require.Len(t, result, 1)
	assert.True(t, result["AAPL"].CurrentPrice.Equal(decimal.NewFromInt(200)))

	// The fetched symbol was cached on the way out.
	assert.NotNil(t, fx.cache.GetQuote(context.Background(), "AAPL"))
}

func TestQuotes_CachedSymbolsAnsweredLocally(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.cache.SetQuote(context.Background(), "AAPL", testQuote("AAPL", 200))
	fx.cache.SetQuote(context.Background(), "MSFT", testQuote("MSFT", 430))

	result, err := fx.service.Quotes(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	assert.Len(t, result, 2)

	_, batchCalls, _ := fx.primary.calls()
	assert.Zero(t, batchCalls)
}

func TestHistory_RangeValidation(t *testing.T) {
	today := models.DateOnly(time.Now())

	t.Run("start after end", func(t *testing.T) {
		fx := newFixture(t, facadeConfig(), "fallback")

		_, err := fx.service.History(context.Background(), "AAPL", today, today.AddDate(0, 0, -10), types.IntervalDaily)
		assert.True(t, types.IsKind(err, types.ErrInvalidDateRange))

		_, _, historyCalls := fx.primary.calls()
		assert.Zero(t, historyCalls, "validation precedes any provider call")
	})

	t.Run("span exceeds maximum", func(t *testing.T) {
		fx := newFixture(t, facadeConfig(), "fallback")

		_, err := fx.service.History(context.Background(), "AAPL", today.AddDate(-6, 0, 0), today, types.IntervalDaily)
		assert.True(t, types.IsKind(err, types.ErrInvalidDateRange))
	})

	t.Run("future end clamps to today", func(t *testing.T) {
		fx := newFixture(t, facadeConfig(), "fallback")
		fx.primary.bars = []*models.HistoricalBar{}

		_, err := fx.service.History(context.Background(), "AAPL", today.AddDate(0, 0, -30), today.AddDate(0, 0, 5), types.IntervalDaily)
		require.NoError(t, err)

		_, end := fx.primary.historyRange()
		assert.True(t, end.Equal(today), "end %s, want %s", end, today)
	})
}

func TestHistory_CacheAside(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	today := models.DateOnly(time.Now())
	start := today.AddDate(0, 0, -30)
	fx.primary.bars = []*models.HistoricalBar{
		{Symbol: "AAPL", Date: start, Open: decimal.NewFromInt(100), High: decimal.NewFromInt(110), Low: decimal.NewFromInt(95), Close: decimal.NewFromInt(105), AdjustedClose: decimal.NewFromInt(105), Volume: decimal.NewFromInt(1000)},
	}

	first, err := fx.service.History(context.Background(), "AAPL", start, today, types.IntervalDaily)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := fx.service.History(context.Background(), "AAPL", start, today, types.IntervalDaily)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	_, _, historyCalls := fx.primary.calls()
	assert.Equal(t, 1, historyCalls)
}

func TestFundamentals_StaleOnFailure(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	pe := 28.5
	fx.cache.SetFundamentals(context.Background(), "AAPL", &models.Fundamentals{Symbol: "AAPL", PERatio: &pe})
	require.NoError(t, fx.store.Delete(context.Background(), "fundamentals:AAPL"))

	fx.primary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, "AAPL", "upstream down")
	fx.secondary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, "AAPL", "upstream down")

	f, err := fx.service.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, f.PERatio)
	assert.Equal(t, 28.5, *f.PERatio)
}

func TestSearch_CacheAside(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.primary.hits = []*models.SearchHit{
		{Symbol: "AAPL", Name: "Apple Inc", AssetType: models.AssetTypeStock, MatchScore: 240},
	}

	first, err := fx.service.Search(context.Background(), "apple", 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := fx.service.Search(context.Background(), "apple", 10)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", second[0].Symbol)
}

func TestEnrichment(t *testing.T) {
	enrichedConfig := func() *config.Config {
		cfg := facadeConfig()
		cfg.Providers.AlphaVantage.Enrichment = config.EnrichmentConfig{
			EnableBidAsk:    true,
			Enable52Week:    true,
			EnableAvgVolume: true,
		}
		return cfg
	}

	bid := decimal.NewFromFloat(199.95)
	ask := decimal.NewFromFloat(200.05)

	t.Run("fills missing fields from the free variant", func(t *testing.T) {
		fx := newFixture(t, enrichedConfig(), "primary")
		fx.primary.quote = testQuote("AAPL", 200)

		helperQuote := testQuote("AAPL", 200)
		helperQuote.BidPrice = &bid
		helperQuote.AskPrice = &ask
		fx.secondary.quote = helperQuote
		fx.secondary.bars = []*models.HistoricalBar{
			{Symbol: "AAPL", High: decimal.NewFromInt(150), Low: decimal.NewFromInt(90), Open: decimal.NewFromInt(100), Close: decimal.NewFromInt(120), Volume: decimal.NewFromInt(1000)},
			{Symbol: "AAPL", High: decimal.NewFromInt(100), Low: decimal.NewFromInt(80), Open: decimal.NewFromInt(90), Close: decimal.NewFromInt(85), Volume: decimal.NewFromInt(2000)},
		}

		q, err := fx.service.Quote(context.Background(), "AAPL")
		require.NoError(t, err)

		require.NotNil(t, q.BidPrice)
		assert.True(t, q.BidPrice.Equal(bid))
		require.NotNil(t, q.AskPrice)
		assert.True(t, q.AskPrice.Equal(ask))
		require.NotNil(t, q.FiftyTwoWeekHigh)
		assert.True(t, q.FiftyTwoWeekHigh.Equal(decimal.NewFromInt(150)))
		require.NotNil(t, q.FiftyTwoWeekLow)
		assert.True(t, q.FiftyTwoWeekLow.Equal(decimal.NewFromInt(80)))
		require.NotNil(t, q.AverageVolume)
		assert.True(t, q.AverageVolume.Equal(decimal.NewFromInt(1500)))

		// Derived values are memoized for the next enrichment.
		var memo calculatedFields
		assert.True(t, fx.cache.GetCalculated(context.Background(), "AAPL", &memo))
		require.NotNil(t, memo.AverageVolume)
		assert.True(t, memo.AverageVolume.Equal(decimal.NewFromInt(1500)))
	})

	t.Run("does not overwrite provider-supplied fields", func(t *testing.T) {
		fx := newFixture(t, enrichedConfig(), "primary")
		own := decimal.NewFromFloat(201.10)
		q := testQuote("AAPL", 200)
		q.BidPrice = &own
		fx.primary.quote = q

		helperQuote := testQuote("AAPL", 200)
		helperQuote.BidPrice = &bid
		helperQuote.AskPrice = &ask
		fx.secondary.quote = helperQuote

		got, err := fx.service.Quote(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.True(t, got.BidPrice.Equal(own))
		require.NotNil(t, got.AskPrice)
		assert.True(t, got.AskPrice.Equal(ask))
	})

	t.Run("helper failure never fails the outer call", func(t *testing.T) {
		fx := newFixture(t, enrichedConfig(), "primary")
		fx.primary.quote = testQuote("AAPL", 200)
		fx.secondary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, "AAPL", "upstream down")

		q, err := fx.service.Quote(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Nil(t, q.BidPrice)
		assert.Nil(t, q.FiftyTwoWeekHigh)
		assert.Nil(t, q.AverageVolume)
	})

	t.Run("free serving variant is not enriched", func(t *testing.T) {
		cfg := enrichedConfig()
		cfg.Providers.Yahoo.Enrichment = config.EnrichmentConfig{EnableBidAsk: true}

		fx := newFixture(t, cfg, "fallback")
		fx.primary.err = types.NewProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, "AAPL", "upstream down")
		fx.secondary.quote = testQuote("AAPL", 199)

		q, err := fx.service.Quote(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Nil(t, q.BidPrice)
	})
}

func TestWarm(t *testing.T) {
	fx := newFixture(t, facadeConfig(), "fallback")
	fx.primary.quote = testQuote("AAPL", 200)
	fx.primary.profile = &models.Profile{Symbol: "AAPL", Name: "Apple Inc"}

	result := fx.service.Warm(context.Background(), []string{"AAPL", "AAPL", "MSFT"}, 2, nil)

	assert.Equal(t, 2, result.Requested, "duplicates collapse before warming")
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)

	// Warmed records are served from the cache afterwards.
	assert.NotNil(t, fx.cache.GetQuote(context.Background(), "AAPL"))
	assert.NotNil(t, fx.cache.GetProfile(context.Background(), "MSFT"))
}
