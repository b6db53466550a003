package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MarketState describes the trading session a quote was captured in.
type MarketState string

const (
	MarketStateOpen       MarketState = "OPEN"
	MarketStatePreMarket  MarketState = "PRE_MARKET"
	MarketStateAfterHours MarketState = "AFTER_HOURS"
	MarketStateClosed     MarketState = "CLOSED"
)

// Quote represents a normalized point-in-time quote for a symbol.
// Optional fields are nil when the originating provider did not supply them;
// enrichment may fill them from a second variant.
type Quote struct {
	Symbol        string          `json:"symbol" validate:"required"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Open          decimal.Decimal `json:"open"`
	DayHigh       decimal.Decimal `json:"day_high"`
	DayLow        decimal.Decimal `json:"day_low"`
	Volume        decimal.Decimal `json:"volume"`

	BidPrice         *decimal.Decimal `json:"bid_price,omitempty"`
	AskPrice         *decimal.Decimal `json:"ask_price,omitempty"`
	FiftyTwoWeekHigh *decimal.Decimal `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *decimal.Decimal `json:"fifty_two_week_low,omitempty"`
	AverageVolume    *decimal.Decimal `json:"average_volume,omitempty"`
	MarketCap        *decimal.Decimal `json:"market_cap,omitempty"`

	Exchange    string      `json:"exchange,omitempty"`
	MarketState MarketState `json:"market_state"`
	AsOf        time.Time   `json:"as_of"`
}

// RecomputeChange re-derives Change and ChangePercent from CurrentPrice and
// PreviousClose. ChangePercent is zero when PreviousClose is zero.
func (q *Quote) RecomputeChange() {
	q.Change = q.CurrentPrice.Sub(q.PreviousClose)
	if q.PreviousClose.IsZero() {
		q.ChangePercent = decimal.Zero
		return
	}
	q.ChangePercent = q.Change.Div(q.PreviousClose).Mul(decimal.NewFromInt(100))
}

// ToJSON converts the quote to JSON bytes.
func (q *Quote) ToJSON() ([]byte, error) {
	return json.Marshal(q)
}

// FromJSON populates the quote from JSON bytes.
func (q *Quote) FromJSON(data []byte) error {
	return json.Unmarshal(data, q)
}

// MarketCalendar maps an as-of timestamp and the current time to a market
// state. Real exchange calendars are out of scope; implementations are
// expected to be approximations.
type MarketCalendar func(asOf, now time.Time) MarketState

// DeriveMarketState is the default MarketCalendar: an approximate US equity
// session classified by UTC hour bands. An as-of date older than the current
// UTC day coerces to Closed.
func DeriveMarketState(asOf, now time.Time) MarketState {
	nowUTC := now.UTC()
	if !asOf.IsZero() {
		ay, am, ad := asOf.UTC().Date()
		ny, nm, nd := nowUTC.Date()
		if ay != ny || am != nm || ad != nd {
			return MarketStateClosed
		}
	}

	switch h := nowUTC.Hour(); {
	case h >= 14 && h < 21:
		return MarketStateOpen
	case h >= 9 && h < 14:
		return MarketStatePreMarket
	case h >= 21 || h < 1:
		return MarketStateAfterHours
	default:
		return MarketStateClosed
	}
}
