package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"market-data-gateway/internal/config"
)

// WarmResult summarizes one warming run.
type WarmResult struct {
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Warm pre-populates the cache with quotes and profiles for symbols. The
// fan-out is bounded by concurrency and paced so warming cannot drain the
// quota ahead of interactive traffic. Individual failures are logged and
// counted, never fatal.
func (s *Service) Warm(ctx context.Context, symbols []string, concurrency int, pace *rate.Limiter) WarmResult {
	symbols = dedupe(symbols)
	if concurrency <= 0 {
		concurrency = 4
	}

	started := time.Now()
	var succeeded, failed int64

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			wg.Wait()
			return s.warmResult(symbols, &succeeded, &failed, started)
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			if pace != nil {
				if err := pace.Wait(ctx); err != nil {
					atomic.AddInt64(&failed, 1)
					return
				}
			}

			ok := true
			if _, err := s.Quote(ctx, symbol); err != nil {
				s.log.WithField("symbol", symbol).WithError(err).Debug("warm quote failed")
				ok = false
			}
			if _, err := s.Profile(ctx, symbol); err != nil {
				s.log.WithField("symbol", symbol).WithError(err).Debug("warm profile failed")
				ok = false
			}

			if ok {
				atomic.AddInt64(&succeeded, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
		}(symbol)
	}
	wg.Wait()

	result := s.warmResult(symbols, &succeeded, &failed, started)
	s.log.WithFields(logrus.Fields{
		"requested": result.Requested,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"duration":  result.Duration,
	}).Info("cache warming finished")
	return result
}

func (s *Service) warmResult(symbols []string, succeeded, failed *int64, started time.Time) WarmResult {
	return WarmResult{
		Requested: len(symbols),
		Succeeded: int(atomic.LoadInt64(succeeded)),
		Failed:    int(atomic.LoadInt64(failed)),
		Duration:  time.Since(started),
	}
}

// Warmer schedules recurring cache warming runs.
type Warmer struct {
	service *Service
	cfg     config.WarmingConfig
	cron    *cron.Cron
	log     *logrus.Entry
}

// NewWarmer creates a warmer from configuration.
func NewWarmer(service *Service, cfg config.WarmingConfig, log *logrus.Entry) *Warmer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Warmer{
		service: service,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
		log:     log,
	}
}

// Start registers the schedule and launches the cron runner. An immediate
// warming pass runs in the background so the cache is useful right away.
func (w *Warmer) Start() error {
	if !w.cfg.Enabled || len(w.cfg.Symbols) == 0 {
		return nil
	}

	pace := rate.NewLimiter(rate.Limit(w.cfg.RequestsPerSec), 1)
	if w.cfg.RequestsPerSec <= 0 {
		pace = nil
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		w.service.Warm(ctx, w.cfg.Symbols, w.cfg.Concurrency, pace)
	}

	if _, err := w.cron.AddFunc(w.cfg.Schedule, run); err != nil {
		return err
	}

	w.cron.Start()
	go run()
	w.log.WithFields(logrus.Fields{
		"schedule": w.cfg.Schedule,
		"symbols":  len(w.cfg.Symbols),
	}).Info("cache warmer scheduled")
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}
