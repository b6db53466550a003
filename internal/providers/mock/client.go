package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/types"
)

// Client is the deterministic test variant. Every record is derived purely
// from the configured seed and the symbol, so repeated calls agree. It is
// always healthy, costs nothing and never consults a rate limiter.
//
// Symbols prefixed "MISSING" report SymbolNotFound and symbols prefixed
// "ERR" report ApiUnavailable, so failure paths stay reachable in tests.
type Client struct {
	seed     int64
	calendar models.MarketCalendar
	now      func() time.Time
}

// New creates the mock variant.
func New(seed int64) *Client {
	return &Client{
		seed:     seed,
		calendar: models.DeriveMarketState,
		now:      time.Now,
	}
}

// Tag implements types.Provider.
func (c *Client) Tag() types.ProviderTag {
	return types.ProviderMock
}

func (c *Client) rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", c.seed)
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (c *Client) verdict(symbol string) error {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(upper, "MISSING"):
		return types.NewProviderError(types.ErrSymbolNotFound, types.ProviderMock, symbol, "symbol not found")
	case strings.HasPrefix(upper, "ERR"):
		return types.NewProviderError(types.ErrAPIUnavailable, types.ProviderMock, symbol, "simulated upstream fault")
	}
	return nil
}

// basePrice derives a stable price level for a symbol in [10, 510).
func (c *Client) basePrice(symbol string) decimal.Decimal {
	r := c.rng("base", strings.ToUpper(symbol))
	return decimal.NewFromFloat(10 + r.Float64()*500).Round(2)
}

// Quote implements types.Provider.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := c.verdict(symbol); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	base := c.basePrice(symbol)
	r := c.rng("quote", strings.ToUpper(symbol), now.Format("2006-01-02"))

	drift := decimal.NewFromFloat((r.Float64() - 0.5) * 0.04) // ±2% daily move
	price := base.Add(base.Mul(drift)).Round(2)
	spread := price.Mul(decimal.NewFromFloat(0.001)).Round(2)

	bid := price.Sub(spread)
	ask := price.Add(spread)
	high := price.Add(spread.Mul(decimal.NewFromInt(4)))
	low := price.Sub(spread.Mul(decimal.NewFromInt(4)))
	volume := decimal.NewFromInt(int64(1_000_000 + r.Intn(9_000_000)))
	marketCap := price.Mul(decimal.NewFromInt(int64(100_000_000 + r.Intn(900_000_000))))

	q := &models.Quote{
		Symbol:        strings.ToUpper(symbol),
		CurrentPrice:  price,
		PreviousClose: base,
		Open:          base,
		DayHigh:       high,
		DayLow:        low,
		Volume:        volume,
		BidPrice:      &bid,
		AskPrice:      &ask,
		MarketCap:     &marketCap,
		Exchange:      "MOCK",
		MarketState:   c.calendar(now, now),
		AsOf:          now,
	}
	q.RecomputeChange()
	return q, nil
}

// Quotes implements types.Provider.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	quotes := make(map[string]*models.Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := c.Quote(ctx, symbol)
		if err != nil {
			continue
		}
		quotes[q.Symbol] = q
	}
	return quotes, nil
}

var intervalStep = map[types.Interval]int{
	types.IntervalDaily:   1,
	types.IntervalWeekly:  7,
	types.IntervalMonthly: 30,
}

// History implements types.Provider with a seeded random walk.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time, interval types.Interval) ([]*models.HistoricalBar, error) {
	if err := c.verdict(symbol); err != nil {
		return nil, err
	}

	step, ok := intervalStep[interval]
	if !ok {
		step = 1
	}

	price := c.basePrice(symbol)
	var bars []*models.HistoricalBar
	for day := models.DateOnly(start); !day.After(models.DateOnly(end)); day = day.AddDate(0, 0, step) {
		r := c.rng("bar", strings.ToUpper(symbol), day.Format("2006-01-02"))

		move := decimal.NewFromFloat((r.Float64() - 0.5) * 0.03)
		open := price
		close := open.Add(open.Mul(move)).Round(2)
		high := decimal.Max(open, close).Mul(decimal.NewFromFloat(1.01)).Round(2)
		low := decimal.Min(open, close).Mul(decimal.NewFromFloat(0.99)).Round(2)

		bars = append(bars, &models.HistoricalBar{
			Symbol:        strings.ToUpper(symbol),
			Date:          day,
			Open:          open,
			High:          high,
			Low:           low,
			Close:         close,
			AdjustedClose: close,
			Volume:        decimal.NewFromInt(int64(500_000 + r.Intn(5_000_000))),
		})
		price = close
	}
	return bars, nil
}

// Fundamentals implements types.Provider.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if err := c.verdict(symbol); err != nil {
		return nil, err
	}

	r := c.rng("fundamentals", strings.ToUpper(symbol))
	pe := 5 + r.Float64()*40
	eps := 1 + r.Float64()*15
	yield := r.Float64() * 0.05
	margin := 0.05 + r.Float64()*0.3

	return &models.Fundamentals{
		Symbol:        strings.ToUpper(symbol),
		PERatio:       &pe,
		EPS:           &eps,
		DividendYield: &yield,
		ProfitMargin:  &margin,
		AsOf:          c.now().UTC(),
	}, nil
}

// Profile implements types.Provider.
func (c *Client) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	if err := c.verdict(symbol); err != nil {
		return nil, err
	}

	upper := strings.ToUpper(symbol)
	r := c.rng("profile", upper)
	employees := 1000 + r.Intn(200_000)

	return &models.Profile{
		Symbol:        upper,
		Name:          fmt.Sprintf("%s Holdings", upper),
		Sector:        "Technology",
		Industry:      "Software",
		Description:   fmt.Sprintf("Synthetic reference data for %s.", upper),
		Country:       "US",
		Exchange:      "MOCK",
		Currency:      "USD",
		EmployeeCount: &employees,
	}, nil
}

// Search implements types.Provider: the query itself plus derived tickers,
// scored with the local heuristic.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}

	upper := strings.ToUpper(strings.TrimSpace(query))
	if upper == "" {
		return []*models.SearchHit{}, nil
	}

	hits := []*models.SearchHit{
		{Symbol: upper, Name: fmt.Sprintf("%s Holdings", upper), Exchange: "MOCK", AssetType: models.AssetTypeStock, Region: "US"},
		{Symbol: upper + "X", Name: fmt.Sprintf("%s Index Fund", upper), Exchange: "MOCK", AssetType: models.AssetTypeETF, Region: "US"},
		{Symbol: upper + "Q", Name: fmt.Sprintf("%s Quarterly Trust", upper), Exchange: "MOCK", AssetType: models.AssetTypeFund, Region: "US"},
	}
	return models.ScoreSearchHits(query, hits, limit), nil
}

// IsHealthy implements types.Provider; the mock is always reachable.
func (c *Client) IsHealthy(ctx context.Context) error {
	return nil
}
