package yahoo

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
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client is the free provider variant. It needs no API key and serves every
// capability of the provider contract from four JSON endpoints.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  types.RateLimiter
	cache    *cache.MarketCache
	calendar models.MarketCalendar
	log      *logrus.Entry
	now      func() time.Time
}

// New creates the free variant. limiter and mc may be nil; the pipeline then
// skips quota checks and variant-level caching.
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
		log:      log.WithField("provider", types.ProviderYahoo),
		now:      time.Now,
	}
}

// Tag implements types.Provider.
func (c *Client) Tag() types.ProviderTag {
	return types.ProviderYahoo
}

// acquire consumes one rate-limit token, or classifies the refusal.
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

	pe := types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderYahoo, symbol, "request quota exhausted")
	pe.RetryAfter = retryAfter
	return pe
}

// fetch runs the shared request pipeline: quota gate, retried GET, and
// status plus body classification. The upstream answers 200 OK for some
// error payloads, so the body is inspected before it is trusted.
func (c *Client) fetch(ctx context.Context, symbol, rawURL string) ([]byte, error) {
	if err := c.acquire(symbol); err != nil {
		return nil, err
	}

	body, status, err := httputil.Get(ctx, c.http, rawURL, nil, c.cfg.MaxRetries)
	if err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, symbol, err)
	}

	switch {
	case status == http.StatusNotFound:
		return nil, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderYahoo, symbol, "symbol not found")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, types.NewProviderError(types.ErrInvalidAPIKey, types.ProviderYahoo, symbol, "request rejected by upstream")
	case status == http.StatusTooManyRequests:
		return nil, types.NewProviderError(types.ErrRateLimitExceeded, types.ProviderYahoo, symbol, "upstream throttled request")
	case status != http.StatusOK:
		return nil, types.NewProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, symbol,
			fmt.Sprintf("unexpected status %d", status))
	}

	if kind, msg := classifyBody(body); kind != "" {
		return nil, types.NewProviderError(kind, types.ProviderYahoo, symbol, msg)
	}
	return body, nil
}

func classifyBody(body []byte) (types.ErrorKind, string) {
	text := string(body)
	switch {
	case strings.Contains(text, "Invalid API key"):
		return types.ErrInvalidAPIKey, "invalid API key"
	case strings.Contains(text, "Invalid API call"):
		return types.ErrSymbolNotFound, "invalid API call"
	case strings.Contains(text, "rate limit"), strings.Contains(text, "frequency"):
		return types.ErrRateLimitExceeded, "upstream rate limit"
	}
	return "", ""
}

// envelopeError maps the in-band error object of chart/quoteSummary replies.
func envelopeError(e *apiError, symbol string) error {
	if e == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(e.Code), "not found") {
		return types.NewProviderError(types.ErrSymbolNotFound, types.ProviderYahoo, symbol, e.Description)
	}
	return types.NewProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, symbol,
		fmt.Sprintf("%s: %s", e.Code, e.Description))
}

// Quote implements types.Provider.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if c.cache != nil {
		if q := c.cache.GetQuote(ctx, symbol); q != nil {
			return q, nil
		}
	}

	quotes, err := c.fetchQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[symbol]
	if !ok {
		return nil, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderYahoo, symbol, "symbol not found")
	}
	return q, nil
}

// Quotes implements types.Provider using the upstream's native batching.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*models.Quote{}, nil
	}
	return c.fetchQuotes(ctx, symbols)
}

func (c *Client) fetchQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	endpoint := fmt.Sprintf("%s/quote?symbols=%s", c.cfg.BaseURL, url.QueryEscape(strings.Join(symbols, ",")))

	body, err := c.fetch(ctx, strings.Join(symbols, ","), endpoint)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, "", err)
	}
	if err := envelopeError(resp.QuoteResponse.Error, strings.Join(symbols, ",")); err != nil {
		return nil, err
	}

	now := c.now()
	quotes := make(map[string]*models.Quote, len(resp.QuoteResponse.Result))
	for _, row := range resp.QuoteResponse.Result {
		q := mapQuote(row, c.calendar, now)
		quotes[q.Symbol] = q
		if c.cache != nil {
			c.cache.SetQuote(ctx, q.Symbol, q)
		}
	}
	return quotes, nil
}

var chartIntervals = map[types.Interval]string{
	types.IntervalDaily:   "1d",
	types.IntervalWeekly:  "1wk",
	types.IntervalMonthly: "1mo",
}

// History implements types.Provider via the chart endpoint.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time, interval types.Interval) ([]*models.HistoricalBar, error) {
	if c.cache != nil {
		if bars := c.cache.GetHistory(ctx, symbol, start, end, string(interval)); bars != nil {
			return bars, nil
		}
	}

	chartInterval, ok := chartIntervals[interval]
	if !ok {
		chartInterval = "1d"
	}
	endpoint := fmt.Sprintf("%s/chart/%s?period1=%d&period2=%d&interval=%s",
		c.cfg.BaseURL, url.PathEscape(symbol), start.Unix(), end.Unix(), chartInterval)

	body, err := c.fetch(ctx, symbol, endpoint)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, symbol, err)
	}
	if err := envelopeError(resp.Chart.Error, symbol); err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		return nil, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderYahoo, symbol, "no chart data")
	}

	bars := mapHistory(symbol, resp.Chart.Result[0])
	if c.cache != nil {
		c.cache.SetHistory(ctx, symbol, start, end, string(interval), bars)
	}
	return bars, nil
}

// Fundamentals implements types.Provider via the summary endpoint.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if c.cache != nil {
		if f := c.cache.GetFundamentals(ctx, symbol); f != nil {
			return f, nil
		}
	}

	res, err := c.fetchSummary(ctx, symbol, "defaultKeyStatistics,financialData,summaryDetail")
	if err != nil {
		return nil, err
	}

	f := mapFundamentals(symbol, res, c.now().UTC())
	if c.cache != nil {
		c.cache.SetFundamentals(ctx, symbol, f)
	}
	return f, nil
}

// Profile implements types.Provider via the summary endpoint.
func (c *Client) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	if c.cache != nil {
		if p := c.cache.GetProfile(ctx, symbol); p != nil {
			return p, nil
		}
	}

	res, err := c.fetchSummary(ctx, symbol, "assetProfile,summaryProfile,price")
	if err != nil {
		return nil, err
	}

	p := mapProfile(symbol, res)
	if c.cache != nil {
		c.cache.SetProfile(ctx, symbol, p)
	}
	return p, nil
}

func (c *Client) fetchSummary(ctx context.Context, symbol, modules string) (summaryResult, error) {
	endpoint := fmt.Sprintf("%s/quoteSummary/%s?modules=%s",
		c.cfg.BaseURL, url.PathEscape(symbol), url.QueryEscape(modules))

	body, err := c.fetch(ctx, symbol, endpoint)
	if err != nil {
		return summaryResult{}, err
	}

	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return summaryResult{}, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, symbol, err)
	}
	if err := envelopeError(resp.QuoteSummary.Error, symbol); err != nil {
		return summaryResult{}, err
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return summaryResult{}, types.NewProviderError(types.ErrSymbolNotFound, types.ProviderYahoo, symbol, "no summary data")
	}
	return resp.QuoteSummary.Result[0], nil
}

// Search implements types.Provider. The upstream reports no relevance score,
// so hits are scored locally.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if c.cache != nil {
		if hits := c.cache.GetSearch(ctx, query, limit); hits != nil {
			return hits, nil
		}
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&quotesCount=%d&newsCount=0",
		c.cfg.BaseURL, url.QueryEscape(query), limit)

	body, err := c.fetch(ctx, query, endpoint)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.WrapProviderError(types.ErrAPIUnavailable, types.ProviderYahoo, "", err)
	}

	hits := mapSearch(query, resp, limit)
	if c.cache != nil {
		c.cache.SetSearch(ctx, query, limit, hits)
	}
	return hits, nil
}

// IsHealthy probes the quote endpoint with a well-known symbol. The probe
// runs through the normal pipeline, so quota refusals surface as
// RateLimitExceeded for the monitor to interpret.
func (c *Client) IsHealthy(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/quote?symbols=AAPL", c.cfg.BaseURL)
	_, err := c.fetch(ctx, "AAPL", endpoint)
	return err
}
