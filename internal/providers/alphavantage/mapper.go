package alphavantage

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market-data-gateway/internal/models"
)

// parseDecimal tolerantly converts an upstream numeric string. Empty values
// and the upstream's "None"/"-" placeholders map to zero.
func parseDecimal(s string) decimal.Decimal {
	d, ok := tryDecimal(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

// parseFloat tolerantly converts an upstream numeric string to an optional
// float, nil when missing or unparseable.
func parseFloat(s string) *float64 {
	s = cleanNumeric(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func tryDecimal(s string) (decimal.Decimal, bool) {
	s = cleanNumeric(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func cleanNumeric(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "None" || s == "-" {
		return ""
	}
	return s
}

// mapGlobalQuote converts a GLOBAL_QUOTE payload. The as-of timestamp is the
// latest trading day, so quotes from previous sessions derive Closed.
func mapGlobalQuote(g globalQuote, calendar models.MarketCalendar, now time.Time) *models.Quote {
	asOf := now
	if day, err := time.Parse("2006-01-02", g.LatestTradingDay); err == nil {
		asOf = day
	}

	q := &models.Quote{
		Symbol:        g.Symbol,
		CurrentPrice:  parseDecimal(g.Price),
		PreviousClose: parseDecimal(g.PreviousClose),
		Open:          parseDecimal(g.Open),
		DayHigh:       parseDecimal(g.High),
		DayLow:        parseDecimal(g.Low),
		Volume:        parseDecimal(g.Volume),
		MarketState:   calendar(asOf, now),
		AsOf:          asOf,
	}
	q.RecomputeChange()
	return q
}

// mapSeries converts a date-keyed bar map into an ascending series clipped
// to [start, end].
func mapSeries(symbol string, series map[string]seriesBar, start, end time.Time) []*models.HistoricalBar {
	dates := make([]string, 0, len(series))
	for date := range series {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	startDay := models.DateOnly(start)
	endDay := models.DateOnly(end)

	bars := make([]*models.HistoricalBar, 0, len(dates))
	for _, date := range dates {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		if day.Before(startDay) || day.After(endDay) {
			continue
		}

		raw := series[date]
		bar := &models.HistoricalBar{
			Symbol: symbol,
			Date:   day,
			Open:   parseDecimal(raw.Open),
			High:   parseDecimal(raw.High),
			Low:    parseDecimal(raw.Low),
			Close:  parseDecimal(raw.Close),
			Volume: parseDecimal(raw.Volume),
		}
		bar.AdjustedClose = bar.Close
		bars = append(bars, bar)
	}
	return bars
}

func mapFundamentals(symbol string, o overviewResponse, now time.Time) *models.Fundamentals {
	return &models.Fundamentals{
		Symbol:          symbol,
		PERatio:         parseFloat(o.PERatio),
		PEGRatio:        parseFloat(o.PEGRatio),
		PriceToBook:     parseFloat(o.PriceToBookRatio),
		PriceToSales:    parseFloat(o.PriceToSalesRatioTTM),
		EPS:             parseFloat(o.EPS),
		DividendYield:   parseFloat(o.DividendYield),
		PayoutRatio:     parseFloat(o.PayoutRatio),
		ProfitMargin:    parseFloat(o.ProfitMargin),
		OperatingMargin: parseFloat(o.OperatingMarginTTM),
		ReturnOnEquity:  parseFloat(o.ReturnOnEquityTTM),
		ReturnOnAssets:  parseFloat(o.ReturnOnAssetsTTM),
		RevenueGrowth:   parseFloat(o.QuarterlyRevenueGrowthYOY),
		EarningsGrowth:  parseFloat(o.QuarterlyEarningsGrowthYOY),
		CurrentRatio:    parseFloat(o.CurrentRatio),
		QuickRatio:      parseFloat(o.QuickRatio),
		DebtToEquity:    parseFloat(o.DebtToEquity),
		AsOf:            now,
	}
}

func mapProfile(symbol string, o overviewResponse) *models.Profile {
	return &models.Profile{
		Symbol:      symbol,
		Name:        o.Name,
		Sector:      o.Sector,
		Industry:    o.Industry,
		Description: o.Description,
		Country:     o.Country,
		City:        cityFromAddress(o.Address),
		Exchange:    o.Exchange,
		Currency:    o.Currency,
	}
}

// cityFromAddress extracts the city segment of "street, city, state, zip".
func cityFromAddress(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// mapSearch normalizes the match list. The upstream reports its own score in
// [0, 1]; it is rescaled to the local heuristic's range. Rows without a
// usable score fall back to local scoring.
func mapSearch(query string, res searchResponse, limit int) []*models.SearchHit {
	hits := make([]*models.SearchHit, 0, len(res.BestMatches))
	rescore := false

	for _, m := range res.BestMatches {
		if m.Symbol == "" {
			continue
		}
		hit := &models.SearchHit{
			Symbol:    m.Symbol,
			Name:      m.Name,
			AssetType: models.ParseAssetType(m.Type),
			Region:    m.Region,
		}
		if score := parseFloat(m.MatchScore); score != nil {
			hit.MatchScore = *score * 100
		} else {
			rescore = true
		}
		hits = append(hits, hit)
	}

	if rescore {
		return models.ScoreSearchHits(query, hits, limit)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].MatchScore != hits[j].MatchScore {
			return hits[i].MatchScore > hits[j].MatchScore
		}
		return hits[i].Symbol < hits[j].Symbol
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
