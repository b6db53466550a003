package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"market-data-gateway/internal/config"
	"market-data-gateway/internal/models"
	"market-data-gateway/internal/types"
)

// calculatedFields memoizes the derived enrichment values so repeated
// enrichments of the same symbol stay cheap.
type calculatedFields struct {
	FiftyTwoWeekHigh *decimal.Decimal `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *decimal.Decimal `json:"fifty_two_week_low,omitempty"`
	AverageVolume    *decimal.Decimal `json:"average_volume,omitempty"`
	ComputedAt       time.Time        `json:"computed_at"`
}

func (c *calculatedFields) complete(cfg config.EnrichmentConfig) bool {
	if cfg.Enable52Week && (c.FiftyTwoWeekHigh == nil || c.FiftyTwoWeekLow == nil) {
		return false
	}
	if cfg.EnableAvgVolume && c.AverageVolume == nil {
		return false
	}
	return true
}

// freeVariant resolves a zero-cost variant other than serving, used as the
// capability the enrichment sub-tasks call into. The secondary variant is
// injected here rather than reached through a global.
func (s *Service) freeVariant(serving types.ProviderTag) types.Provider {
	if s.factory == nil || s.tracker == nil {
		return nil
	}
	for _, tag := range s.factory.AvailableProviders() {
		if tag == serving || !s.tracker.IsFree(tag) {
			continue
		}
		if p, err := s.factory.Resolve(tag); err == nil {
			return p
		}
	}
	return nil
}

// enrichQuote augments a premium quote with bid/ask from a free variant and
// derived 52-week and average-volume figures. Sub-tasks run concurrently and
// write disjoint slots; the quote is assembled only after all of them
// finish. Failures leave fields empty and never fail the outer call.
func (s *Service) enrichQuote(ctx context.Context, tag types.ProviderTag, q *models.Quote) {
	cfg, ok := s.enrichment[tag]
	if !ok || q == nil {
		return
	}
	if !cfg.EnableBidAsk && !cfg.Enable52Week && !cfg.EnableAvgVolume {
		return
	}
	if s.tracker != nil && s.tracker.IsFree(tag) {
		// Enrichment augments premium records only.
		return
	}

	helper := s.freeVariant(tag)

	var memo calculatedFields
	memoHit := s.cache.GetCalculated(ctx, q.Symbol, &memo) && memo.complete(cfg)

	var (
		wg       sync.WaitGroup
		bidAsk   *models.Quote
		computed calculatedFields
	)

	if cfg.EnableBidAsk && helper != nil && (q.BidPrice == nil || q.AskPrice == nil) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			free, err := helper.Quote(ctx, q.Symbol)
			if err != nil {
				s.log.WithField("symbol", q.Symbol).WithError(err).Debug("bid/ask enrichment failed")
				return
			}
			bidAsk = free
		}()
	}

	if !memoHit && helper != nil {
		if cfg.Enable52Week {
			wg.Add(1)
			go func() {
				defer wg.Done()
				high, low, err := s.fiftyTwoWeekRange(ctx, helper, q.Symbol)
				if err != nil {
					s.log.WithField("symbol", q.Symbol).WithError(err).Debug("52-week enrichment failed")
					return
				}
				computed.FiftyTwoWeekHigh = high
				computed.FiftyTwoWeekLow = low
			}()
		}
		if cfg.EnableAvgVolume {
			wg.Add(1)
			go func() {
				defer wg.Done()
				avg, err := s.averageVolume(ctx, helper, q.Symbol)
				if err != nil {
					s.log.WithField("symbol", q.Symbol).WithError(err).Debug("average-volume enrichment failed")
					return
				}
				computed.AverageVolume = avg
			}()
		}
	}

	wg.Wait()

	if memoHit {
		computed = memo
	} else if computed.FiftyTwoWeekHigh != nil || computed.AverageVolume != nil {
		computed.ComputedAt = s.now().UTC()
		s.cache.SetCalculated(ctx, q.Symbol, &computed)
	}

	if bidAsk != nil {
		if q.BidPrice == nil {
			q.BidPrice = bidAsk.BidPrice
		}
		if q.AskPrice == nil {
			q.AskPrice = bidAsk.AskPrice
		}
	}
	if cfg.Enable52Week {
		if q.FiftyTwoWeekHigh == nil {
			q.FiftyTwoWeekHigh = computed.FiftyTwoWeekHigh
		}
		if q.FiftyTwoWeekLow == nil {
			q.FiftyTwoWeekLow = computed.FiftyTwoWeekLow
		}
	}
	if cfg.EnableAvgVolume && q.AverageVolume == nil {
		q.AverageVolume = computed.AverageVolume
	}
}

// fiftyTwoWeekRange computes max(high) and min(low) over the last 365 days.
func (s *Service) fiftyTwoWeekRange(ctx context.Context, p types.Provider, symbol string) (*decimal.Decimal, *decimal.Decimal, error) {
	today := models.DateOnly(s.now())
	bars, err := p.History(ctx, symbol, today.AddDate(0, 0, -365), today, types.IntervalDaily)
	if err != nil {
		return nil, nil, err
	}
	if len(bars) == 0 {
		return nil, nil, nil
	}

	high := bars[0].High
	low := bars[0].Low
	for _, bar := range bars[1:] {
		high = decimal.Max(high, bar.High)
		low = decimal.Min(low, bar.Low)
	}
	return &high, &low, nil
}

// averageVolume computes mean(volume) over the last 30 days.
func (s *Service) averageVolume(ctx context.Context, p types.Provider, symbol string) (*decimal.Decimal, error) {
	today := models.DateOnly(s.now())
	bars, err := p.History(ctx, symbol, today.AddDate(0, 0, -30), today, types.IntervalDaily)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	total := decimal.Zero
	for _, bar := range bars {
		total = total.Add(bar.Volume)
	}
	avg := total.Div(decimal.NewFromInt(int64(len(bars)))).Round(0)
	return &avg, nil
}
