package yahoo

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market-data-gateway/internal/models"
)

func decFrom(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

func decPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

// mapQuote converts one upstream quote row into the normalized record.
// Market state prefers the upstream label; calendar derivation fills in when
// the upstream omits it.
func mapQuote(r quoteResult, calendar models.MarketCalendar, now time.Time) *models.Quote {
	asOf := now
	if r.RegularMarketTime != nil {
		asOf = time.Unix(*r.RegularMarketTime, 0).UTC()
	}

	q := &models.Quote{
		Symbol:        r.Symbol,
		CurrentPrice:  decFrom(r.RegularMarketPrice),
		PreviousClose: decFrom(r.RegularMarketPreviousClose),
		Open:          decFrom(r.RegularMarketOpen),
		DayHigh:       decFrom(r.RegularMarketDayHigh),
		DayLow:        decFrom(r.RegularMarketDayLow),
		Volume:        decFrom(r.RegularMarketVolume),

		BidPrice:         decPtr(r.Bid),
		AskPrice:         decPtr(r.Ask),
		FiftyTwoWeekHigh: decPtr(r.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  decPtr(r.FiftyTwoWeekLow),
		AverageVolume:    decPtr(r.AverageDailyVolume3Month),
		MarketCap:        decPtr(r.MarketCap),

		Exchange:    firstNonEmpty(r.FullExchangeName, r.Exchange),
		MarketState: mapMarketState(r.MarketState, asOf, now, calendar),
		AsOf:        asOf,
	}
	q.RecomputeChange()
	return q
}

func mapMarketState(upstream string, asOf, now time.Time, calendar models.MarketCalendar) models.MarketState {
	switch strings.ToUpper(upstream) {
	case "REGULAR":
		return models.MarketStateOpen
	case "PRE", "PREPRE":
		return models.MarketStatePreMarket
	case "POST", "POSTPOST":
		return models.MarketStateAfterHours
	case "CLOSED":
		return models.MarketStateClosed
	}
	return calendar(asOf, now)
}

// mapHistory aligns the chart arrays by index. Bars missing any OHLC value
// are skipped; a missing volume maps to zero.
func mapHistory(symbol string, res chartResult) []*models.HistoricalBar {
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	q := res.Indicators.Quote[0]

	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]*models.HistoricalBar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}

		bar := &models.HistoricalBar{
			Symbol: symbol,
			Date:   models.DateOnly(time.Unix(ts, 0)),
			Open:   decFrom(q.Open[i]),
			High:   decFrom(q.High[i]),
			Low:    decFrom(q.Low[i]),
			Close:  decFrom(q.Close[i]),
		}
		if i < len(q.Volume) {
			bar.Volume = decFrom(q.Volume[i])
		}
		if i < len(adj) && adj[i] != nil {
			bar.AdjustedClose = decFrom(adj[i])
		} else {
			bar.AdjustedClose = bar.Close
		}
		bars = append(bars, bar)
	}
	return bars
}

func mapSearch(query string, res searchResponse, limit int) []*models.SearchHit {
	hits := make([]*models.SearchHit, 0, len(res.Quotes))
	for _, q := range res.Quotes {
		if q.Symbol == "" {
			continue
		}
		hits = append(hits, &models.SearchHit{
			Symbol:    q.Symbol,
			Name:      firstNonEmpty(q.LongName, q.ShortName),
			Exchange:  q.Exchange,
			AssetType: models.ParseAssetType(firstNonEmpty(q.QuoteType, q.TypeDisp)),
		})
	}
	return models.ScoreSearchHits(query, hits, limit)
}

func mapFundamentals(symbol string, res summaryResult, now time.Time) *models.Fundamentals {
	f := &models.Fundamentals{Symbol: symbol, AsOf: now}

	if sd := res.SummaryDetail; sd != nil {
		f.PERatio = sd.TrailingPE.value()
		f.PriceToSales = sd.PriceToSalesTrailing12Months.value()
		f.DividendYield = sd.DividendYield.value()
		f.PayoutRatio = sd.PayoutRatio.value()
	}
	if ks := res.DefaultKeyStatistics; ks != nil {
		f.PEGRatio = ks.PegRatio.value()
		f.PriceToBook = ks.PriceToBook.value()
		f.EPS = ks.TrailingEps.value()
		f.EarningsGrowth = ks.EarningsQuarterlyGrowth.value()
	}
	if fd := res.FinancialData; fd != nil {
		f.ProfitMargin = fd.ProfitMargins.value()
		f.OperatingMargin = fd.OperatingMargins.value()
		f.ReturnOnEquity = fd.ReturnOnEquity.value()
		f.ReturnOnAssets = fd.ReturnOnAssets.value()
		f.RevenueGrowth = fd.RevenueGrowth.value()
		f.CurrentRatio = fd.CurrentRatio.value()
		f.QuickRatio = fd.QuickRatio.value()
		f.DebtToEquity = fd.DebtToEquity.value()
	}
	return f
}

func mapProfile(symbol string, res summaryResult) *models.Profile {
	p := &models.Profile{Symbol: symbol}

	profile := res.AssetProfile
	if profile == nil {
		profile = res.SummaryProfile
	}
	if profile != nil {
		p.Sector = profile.Sector
		p.Industry = profile.Industry
		p.Description = profile.LongBusinessSummary
		p.Website = profile.Website
		p.Country = profile.Country
		p.City = profile.City
		p.EmployeeCount = profile.FullTimeEmployees
		for _, officer := range profile.CompanyOfficers {
			if strings.Contains(strings.ToUpper(officer.Title), "CEO") {
				name := officer.Name
				p.CEO = &name
				break
			}
		}
	}
	if price := res.Price; price != nil {
		p.Name = firstNonEmpty(price.LongName, price.ShortName)
		p.Exchange = price.ExchangeName
		p.Currency = price.Currency
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
