package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/cache"
	"market-data-gateway/internal/httputil"
	"market-data-gateway/internal/models"
	"market-data-gateway/internal/types"
)

// Config carries the variant's connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client is the premium provider variant. All functions hang off a single
// query endpoint selected by the function parameter.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  types.RateLimiter
	cache    *cache.MarketCache
	calendar models.MarketCalendar
	log      *logrus.Entry
	now      func() time.Time
}

// New creates the premium variant.
func New(cfg Config, limiter types.RateLimiter, mc *cache.MarketCache, log *logrus.Entry) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		cache:    mc,
		calendar: models.DeriveMarketState,
		log:      log.WithField("provider", types.ProviderAlphaVantage),
		now:      time.Now,
	}
}

// Tag implements types.Provider.
func (c *Client) Tag() types.ProviderTag {
	return types.ProviderAlphaVantage
}

func (c *Client) queryURL(function, symbol string, extra url.Values) string {
	params := url.Values{}
	params.Set("function", function)
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("apikey", c.cfg.APIKey)
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	return fmt.Sprintf("%s/query?%s", c.cfg.BaseURL, params.Encode())
}

func (c *Client) acquire(symbol string) error {
	if c.limiter == nil {
		return nil
	}
	if c.limiter.TryAcquire() {
		return nil
	}

	st := c.limiter.Status()
	retryAfter := st.MinuteResetIn
	if st.DayLimit > 0 && st.DayRemaining == 0 {
		retryAfter = st.DayResetIn
	}
	c.log.WithFields(logrus.Fields{
		"symbol":           symbol,
		"minute_remaining": st.MinuteRemaining,
		"day_remaining":    st.DayRemaining,
		"retry_after":      retryAfter,
	}).Warn("rate limit refused request")

	pe := types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderAlphaVantage, symbol, "request quota exhausted")
	pe.RetryAfter = retryAfter
	return pe
}

// fetch runs the shared request pipeline. The upstream answers 200 OK for
// almost every failure, so the in-band envelope is decisive.
func (c *Client) fetch(ctx context.Context, symbol, rawURL string) ([]byte, error) {
	if err := c.acquire(symbol); err != nil {
		return nil, err
	}

	body, status, err := httputil.Get(ctx, c.http, rawURL, nil, c.cfg.MaxRetries)
	if err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, symbol, err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, types.NewProviderError(types.ErrInvalidAPIKey, types.ProviderAlphaVantage, symbol, "request rejected by upstream")
	case status == http.StatusTooManyRequests:
		return nil, types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderAlphaVantage, symbol, "upstream throttled request")
	case status != http.StatusOK:
		return nil, types.NewProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, symbol,
			fmt.Sprintf("unexpected status %d", status))
	}

	if err := classifyEnvelope(body, symbol); err != nil {
		return nil, err
	}
	return body, nil
}

// classifyEnvelope inspects the in-band error fields of a 200 OK body.
func classifyEnvelope(body []byte, symbol string) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Leave parse problems to the payload decoder.
		return nil
	}

	if env.ErrorMessage != "" {
		return classifyMessage(env.ErrorMessage, symbol)
	}
	if env.Note != "" {
		return classifyMessage(env.Note, symbol)
	}
	if env.Information != "" {
		return classifyMessage(env.Information, symbol)
	}
	return nil
}

func classifyMessage(msg, symbol string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "invalid api key") || strings.Contains(lower, "apikey"):
		return types.NewProviderError(types.ErrInvalidAPIKey, types.ProviderAlphaVantage, symbol, msg)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "frequency"):
		return types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderAlphaVantage, symbol, msg)
	case strings.Contains(lower, "invalid api call"):
		return types.NewProviderError(types.ErrSymbolNotFound, types.ProviderAlphaVantage, symbol, msg)
	}
	return types.NewProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, symbol, msg)
}

// Quote implements types.Provider via GLOBAL_QUOTE.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if c.cache != nil {
		if q := c.cache.GetQuote(ctx, symbol); q != nil {
			return q, nil
		}
	}

	body, err := c.fetch(ctx, symbol, c.queryURL("GLOBAL_QUOTE", symbol, nil))
	if err != nil {
		return nil, err
	}

	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, symbol, err)
	}
	if resp.GlobalQuote.Symbol == "" {
		// An empty quote object is the upstream's not-found signal.
		return nil, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderAlphaVantage, symbol, "symbol not found")
	}

	q := mapGlobalQuote(resp.GlobalQuote, c.calendar, c.now().UTC())
	if c.cache != nil {
		c.cache.SetQuote(ctx, symbol, q)
	}
	return q, nil
}

// Quotes implements types.Provider. The upstream has no batch endpoint, so
// symbols are fetched sequentially; the first quota refusal aborts the
// remainder and the partial result is returned alongside the error.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	quotes := make(map[string]*models.Quote, len(symbols))

	for _, symbol := range symbols {
		q, err := c.Quote(ctx, symbol)
		if err != nil {
			if types.IsKind(err, types.ErrRateLimitExceeded) {
				c.log.WithField("collected", len(quotes)).Warn("batch aborted on rate limit")
				return quotes, err
			}
			c.log.WithError(err).WithField("symbol", symbol).Warn("batch quote failed")
			continue
		}
		quotes[symbol] = q
	}
	return quotes, nil
}

var seriesFunctions = map[types.Interval]string{
	types.IntervalDaily:   "TIME_SERIES_DAILY",
	types.IntervalWeekly:  "TIME_SERIES_WEEKLY",
	types.IntervalMonthly: "TIME_SERIES_MONTHLY",
}

// History implements types.Provider via the TIME_SERIES functions.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time, interval types.Interval) ([]*models.HistoricalBar, error) {
	if c.cache != nil {
		if bars := c.cache.GetHistory(ctx, symbol, start, end, string(interval)); bars != nil {
			return bars, nil
		}
	}

	function, ok := seriesFunctions[interval]
	if !ok {
		function = "TIME_SERIES_DAILY"
	}
	extra := url.Values{}
	if function == "TIME_SERIES_DAILY" {
		extra.Set("outputsize", "full")
	}

	body, err := c.fetch(ctx, symbol, c.queryURL(function, symbol, extra))
	if err != nil {
		return nil, err
	}

	series, err := decodeSeries(function, body)
	if err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, symbol, err)
	}
	if len(series) == 0 {
		return nil, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderAlphaVantage, symbol, "no time series data")
	}

	bars := mapSeries(symbol, series, start, end)
	if c.cache != nil {
		c.cache.SetHistory(ctx, symbol, start, end, string(interval), bars)
	}
	return bars, nil
}

func decodeSeries(function string, body []byte) (map[string]seriesBar, error) {
	switch function {
	case "TIME_SERIES_WEEKLY":
		var resp weeklySeriesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		return resp.Series, nil
	case "TIME_SERIES_MONTHLY":
		var resp monthlySeriesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		return resp.Series, nil
	default:
		var resp dailySeriesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		return resp.Series, nil
	}
}

// Fundamentals implements types.Provider via OVERVIEW.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if c.cache != nil {
		if f := c.cache.GetFundamentals(ctx, symbol); f != nil {
			return f, nil
		}
	}

	overview, err := c.fetchOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	f := mapFundamentals(symbol, overview, c.now().UTC())
	if c.cache != nil {
		c.cache.SetFundamentals(ctx, symbol, f)
	}
	return f, nil
}

// Profile implements types.Provider via OVERVIEW.
func (c *Client) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	if c.cache != nil {
		if p := c.cache.GetProfile(ctx, symbol); p != nil {
			return p, nil
		}
	}

	overview, err := c.fetchOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	p := mapProfile(symbol, overview)
	if c.cache != nil {
		c.cache.SetProfile(ctx, symbol, p)
	}
	return p, nil
}

func (c *Client) fetchOverview(ctx context.Context, symbol string) (overviewResponse, error) {
	body, err := c.fetch(ctx, symbol, c.queryURL("OVERVIEW", symbol, nil))
	if err != nil {
		return overviewResponse{}, err
	}

	var resp overviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return overviewResponse{}, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, symbol, err)
	}
	if resp.Symbol == "" {
		return overviewResponse{}, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderAlphaVantage, symbol, "no overview data")
	}
	return resp, nil
}

// Search implements types.Provider via SYMBOL_SEARCH.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if c.cache != nil {
		if hits := c.cache.GetSearch(ctx, query, limit); hits != nil {
			return hits, nil
		}
	}

	extra := url.Values{}
	extra.Set("keywords", query)

	body, err := c.fetch(ctx, query, c.queryURL("SYMBOL_SEARCH", "", extra))
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderAlphaVantage, "", err)
	}

	hits := mapSearch(query, resp, limit)
	if c.cache != nil {
		c.cache.SetSearch(ctx, query, limit, hits)
	}
	return hits, nil
}

// IsHealthy probes GLOBAL_QUOTE with a well-known symbol through the normal
// pipeline, so quota refusals surface as RateLimitExceeded for the monitor.
func (c *Client) IsHealthy(ctx context.Context) error {
	_, err := c.fetch(ctx, "AAPL", c.queryURL("GLOBAL_QUOTE", "AAPL", nil))
	return err
}
