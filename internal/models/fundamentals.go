package models

import "time"

// Fundamentals represents normalized valuation and financial-health ratios
// for a symbol. Every ratio is optional; providers rarely supply all of them.
type Fundamentals struct {
	Symbol          string   `json:"symbol" validate:"required"`
	PERatio         *float64 `json:"pe_ratio,omitempty"`
	PEGRatio        *float64 `json:"peg_ratio,omitempty"`
	PriceToBook     *float64 `json:"price_to_book,omitempty"`
	PriceToSales    *float64 `json:"price_to_sales,omitempty"`
	EPS             *float64 `json:"eps,omitempty"`
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	PayoutRatio     *float64 `json:"payout_ratio,omitempty"`
	ProfitMargin    *float64 `json:"profit_margin,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	ReturnOnEquity  *float64 `json:"return_on_equity,omitempty"`
	ReturnOnAssets  *float64 `json:"return_on_assets,omitempty"`
	RevenueGrowth   *float64 `json:"revenue_growth,omitempty"`
	EarningsGrowth  *float64 `json:"earnings_growth,omitempty"`
	CurrentRatio    *float64 `json:"current_ratio,omitempty"`
	DebtToEquity    *float64 `json:"debt_to_equity,omitempty"`
	QuickRatio      *float64 `json:"quick_ratio,omitempty"`
	AsOf            time.Time `json:"as_of"`
}
