package dto

import (
	"errors"
	"net/http"
	"time"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/ratelimit"
	"market-data-gateway/internal/types"
)

// ErrorInfo represents error information in a response envelope.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Symbol     string `json:"symbol,omitempty"`
	Provider   string `json:"provider,omitempty"`
	RetryAfter int64  `json:"retry_after_seconds,omitempty"`
}

// QuoteResponse wraps a single quote.
type QuoteResponse struct {
	Success bool          `json:"success"`
	Data    *models.Quote `json:"data"`
}

// QuotesResponse wraps a batch of quotes.
type QuotesResponse struct {
	Success bool        `json:"success"`
	Data    *QuotesData `json:"data"`
}

// QuotesData represents the batch payload.
type QuotesData struct {
	Quotes    map[string]*models.Quote `json:"quotes"`
	Requested int                      `json:"requested"`
	Returned  int                      `json:"returned"`
	Missing   []string                 `json:"missing,omitempty"`
	Timestamp int64                    `json:"timestamp"`
}

// HistoryResponse wraps a historical bar series.
type HistoryResponse struct {
	Success bool         `json:"success"`
	Data    *HistoryData `json:"data"`
}

// HistoryData represents the series payload.
type HistoryData struct {
	Symbol   string                  `json:"symbol"`
	Interval string                  `json:"interval"`
	Start    string                  `json:"start"`
	End      string                  `json:"end"`
	Bars     []*models.HistoricalBar `json:"bars"`
	Count    int                     `json:"count"`
}

// FundamentalsResponse wraps valuation ratios.
type FundamentalsResponse struct {
	Success bool                 `json:"success"`
	Data    *models.Fundamentals `json:"data"`
}

// ProfileResponse wraps company reference data.
type ProfileResponse struct {
	Success bool            `json:"success"`
	Data    *models.Profile `json:"data"`
}

// SearchResponse wraps scored search hits.
type SearchResponse struct {
	Success bool        `json:"success"`
	Data    *SearchData `json:"data"`
}

// SearchData represents the search payload.
type SearchData struct {
	Query string              `json:"query"`
	Hits  []*models.SearchHit `json:"hits"`
	Count int                 `json:"count"`
}

// ProviderStatus aggregates one variant's health, quota and cost read-outs.
type ProviderStatus struct {
	Healthy             bool                `json:"healthy"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	AvgLatencyMs        int64               `json:"avg_latency_ms"`
	LastCheckedAt       string              `json:"last_checked_at,omitempty"`
	LastError           string              `json:"last_error,omitempty"`
	RateLimit           *ratelimit.Status   `json:"rate_limit,omitempty"`
	Cost                *models.CostMetrics `json:"cost,omitempty"`
}

// ProvidersResponse wraps the per-variant status map.
type ProvidersResponse struct {
	Success bool                       `json:"success"`
	Data    map[string]*ProviderStatus `json:"data"`
}

// BuildQuotesResponse builds the batch payload, listing requested symbols
// that came back empty.
func BuildQuotesResponse(requested []string, quotes map[string]*models.Quote) *QuotesResponse {
	var missing []string
	for _, symbol := range requested {
		if _, ok := quotes[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	return &QuotesResponse{
		Success: true,
		Data: &QuotesData{
			Quotes:    quotes,
			Requested: len(requested),
			Returned:  len(quotes),
			Missing:   missing,
			Timestamp: time.Now().Unix(),
		},
	}
}

// BuildProvidersResponse merges the monitor, limiter and cost snapshots into
// one per-variant view.
func BuildProvidersResponse(
	healths map[types.ProviderTag]models.ProviderHealth,
	limits map[types.ProviderTag]ratelimit.Status,
	costs map[types.ProviderTag]models.CostMetrics,
) *ProvidersResponse {
	data := make(map[string]*ProviderStatus)

	status := func(tag types.ProviderTag) *ProviderStatus {
		if st, ok := data[string(tag)]; ok {
			return st
		}
		st := &ProviderStatus{Healthy: true}
		data[string(tag)] = st
		return st
	}

	for tag, h := range healths {
		st := status(tag)
		st.Healthy = h.IsHealthy
		st.ConsecutiveFailures = h.ConsecutiveFailures
		st.AvgLatencyMs = h.RollingAvgLatency.Milliseconds()
		st.LastError = h.LastErrorSummary
		if !h.LastCheckedAt.IsZero() {
			st.LastCheckedAt = h.LastCheckedAt.UTC().Format(time.RFC3339)
		}
	}
	for tag, rl := range limits {
		rl := rl
		status(tag).RateLimit = &rl
	}
	for tag, c := range costs {
		c := c
		status(tag).Cost = &c
	}
	return &ProvidersResponse{Success: true, Data: data}
}

// BuildErrorResponse translates an error into a response envelope.
func BuildErrorResponse(err error) map[string]interface{} {
	info := &ErrorInfo{
		Code:    string(types.KindOf(err)),
		Message: "internal error",
	}

	var pe *types.ProviderError
	if errors.As(err, &pe) {
		info.Message = pe.Message
		info.Symbol = pe.Symbol
		info.Provider = string(pe.Provider)
		if pe.RetryAfter > 0 {
			info.RetryAfter = int64(pe.RetryAfter.Seconds() + 0.5)
		}
	} else if err != nil {
		info.Message = err.Error()
	}

	return map[string]interface{}{
		"success": false,
		"error":   info,
	}
}

// BuildValidationError renders a request validation failure.
func BuildValidationError(err error) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error": &ErrorInfo{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		},
	}
}

// StatusForError maps an error kind to its HTTP status code.
func StatusForError(err error) int {
	switch types.KindOf(err) {
	case types.ErrSymbolNotFound:
		return http.StatusNotFound
	case types.ErrInvalidDateRange, types.ErrUnknownProvider:
		return http.StatusBadRequest
	case types.ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case types.ErrNoHealthyProvider:
		return http.StatusServiceUnavailable
	case types.ErrInvalidAPIKey, types.ErrAPIUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
