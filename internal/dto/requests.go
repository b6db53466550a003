package dto

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"market-data-gateway/internal/types"
)

var validate = validator.New()

const dateLayout = "2006-01-02"

// QuoteRequest represents a request for a single quote.
type QuoteRequest struct {
	Symbol string `json:"symbol" validate:"required,max=20"`
}

// Validate validates the quote request.
func (r *QuoteRequest) Validate() error {
	return validate.Struct(r)
}

// SetDefaults normalizes the symbol.
func (r *QuoteRequest) SetDefaults() {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
}

// QuotesRequest represents a request for a batch of quotes.
type QuotesRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=50,dive,required,max=20"`
}

// Validate validates the batch request.
func (r *QuotesRequest) Validate() error {
	return validate.Struct(r)
}

// SetDefaults normalizes and de-duplicates the symbol list.
func (r *QuotesRequest) SetDefaults() {
	seen := make(map[string]bool, len(r.Symbols))
	unique := make([]string, 0, len(r.Symbols))
	for _, symbol := range r.Symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		unique = append(unique, symbol)
	}
	r.Symbols = unique
}

// HistoryRequest represents a request for historical bars.
type HistoryRequest struct {
	Symbol   string `json:"symbol" validate:"required,max=20"`
	Interval string `json:"interval" validate:"omitempty,oneof=daily weekly monthly"`
	Start    string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End      string `json:"end" validate:"omitempty,datetime=2006-01-02"`
}

// Validate validates the history request.
func (r *HistoryRequest) Validate() error {
	return validate.Struct(r)
}

// SetDefaults normalizes the symbol and fills the interval and time range:
// interval daily, end today, start 30 days before end.
func (r *HistoryRequest) SetDefaults() {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Interval == "" {
		r.Interval = string(types.IntervalDaily)
	}
	if r.End == "" {
		r.End = time.Now().UTC().Format(dateLayout)
	}
	if r.Start == "" {
		end, err := time.Parse(dateLayout, r.End)
		if err != nil {
			end = time.Now().UTC()
		}
		r.Start = end.AddDate(0, 0, -30).Format(dateLayout)
	}
}

// Range returns the parsed time range. Call after Validate.
func (r *HistoryRequest) Range() (time.Time, time.Time) {
	start, _ := time.Parse(dateLayout, r.Start)
	end, _ := time.Parse(dateLayout, r.End)
	return start, end
}

// GetInterval returns the typed interval.
func (r *HistoryRequest) GetInterval() types.Interval {
	return types.Interval(r.Interval)
}

// SearchRequest represents a symbol search request.
type SearchRequest struct {
	Query string `json:"query" validate:"required,min=1,max=80"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// Validate validates the search request.
func (r *SearchRequest) Validate() error {
	return validate.Struct(r)
}

// SetDefaults trims the query and applies the default result limit.
func (r *SearchRequest) SetDefaults() {
	r.Query = strings.TrimSpace(r.Query)
	if r.Limit == 0 {
		r.Limit = 10
	}
}

// WarmRequest represents an on-demand cache warming request. An empty symbol
// list falls back to the configured warming set.
type WarmRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=100,dive,required,max=20"`
}

// Validate validates the warm request.
func (r *WarmRequest) Validate() error {
	return validate.Struct(r)
}

// SetDefaults normalizes the symbol list.
func (r *WarmRequest) SetDefaults() {
	for i := range r.Symbols {
		r.Symbols[i] = strings.ToUpper(strings.TrimSpace(r.Symbols[i]))
	}
}
