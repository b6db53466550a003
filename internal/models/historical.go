package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalBar represents one OHLCV bar in a historical series. Date is
// date-only, always midnight UTC.
type HistoricalBar struct {
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	AdjustedClose decimal.Decimal `json:"adjusted_close"`
	Volume        decimal.Decimal `json:"volume"`
}

// Validate checks the single-bar invariants: low ≤ min(open, close),
// max(open, close) ≤ high, and volume non-negative.
func (b *HistoricalBar) Validate() error {
	if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) {
		return ValidationError{Field: "low", Message: "low exceeds open or close", Value: b.Low}
	}
	if b.High.LessThan(b.Open) || b.High.LessThan(b.Close) {
		return ValidationError{Field: "high", Message: "high below open or close", Value: b.High}
	}
	if b.Low.GreaterThan(b.High) {
		return ValidationError{Field: "low", Message: "low exceeds high", Value: b.Low}
	}
	if b.Volume.IsNegative() {
		return ValidationError{Field: "volume", Message: "volume must be non-negative", Value: b.Volume}
	}
	return nil
}

// ValidateBarSeries checks every bar and that dates are strictly increasing.
func ValidateBarSeries(bars []*HistoricalBar) error {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return err
		}
		if i > 0 && !bar.Date.After(bars[i-1].Date) {
			return ValidationError{Field: "date", Message: "bar dates must be strictly increasing", Value: bar.Date}
		}
	}
	return nil
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
