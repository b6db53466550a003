package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/types"
)

// unhealthyAfter is the consecutive-failure count that flips a variant to
// unhealthy. One success restores it immediately.
const unhealthyAfter = 3

// maxLatencySamples bounds the rolling latency window.
const maxLatencySamples = 100

// variantState is the mutable record behind one variant's health snapshot.
// Writers serialize on mu; reads copy under the same lock and stay cheap.
type variantState struct {
	mu        sync.Mutex
	health    models.ProviderHealth
	latencies []time.Duration
}

// Monitor periodically probes every registered variant and keeps a
// last-write-wins health snapshot per tag. A probe surfacing
// RateLimitExceeded counts as healthy: the upstream answered, only the
// quota is drained.
type Monitor struct {
	interval     time.Duration
	probeTimeout time.Duration
	log          *logrus.Entry

	mu       sync.RWMutex
	variants map[types.ProviderTag]types.Provider
	states   map[types.ProviderTag]*variantState

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor probing at interval. The probe timeout is
// capped by the interval itself.
func NewMonitor(interval time.Duration, log *logrus.Entry) *Monitor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	probeTimeout := 10 * time.Second
	if probeTimeout > interval {
		probeTimeout = interval
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{
		interval:     interval,
		probeTimeout: probeTimeout,
		log:          log,
		variants:     make(map[types.ProviderTag]types.Provider),
		states:       make(map[types.ProviderTag]*variantState),
	}
}

// Register adds a variant to the probe set. Variants start healthy so the
// first selection does not wait for a probe cycle.
func (m *Monitor) Register(p types.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag := p.Tag()
	m.variants[tag] = p
	m.states[tag] = &variantState{
		health: models.ProviderHealth{IsHealthy: true},
	}
}

// Start launches the probe loop. It probes once immediately so snapshots
// reflect reality soon after startup.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		m.probeAll(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeAll(ctx)
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) probeAll(ctx context.Context) {
	m.mu.RLock()
	variants := make(map[types.ProviderTag]types.Provider, len(m.variants))
	for tag, p := range m.variants {
		variants[tag] = p
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for tag, p := range variants {
		wg.Add(1)
		go func(tag types.ProviderTag, p types.Provider) {
			defer wg.Done()
			m.Probe(ctx, tag, p)
		}(tag, p)
	}
	wg.Wait()
}

// Probe runs one health check against a variant and folds the outcome into
// its snapshot.
func (m *Monitor) Probe(ctx context.Context, tag types.ProviderTag, p types.Provider) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	started := time.Now()
	err := p.IsHealthy(probeCtx)
	elapsed := time.Since(started)

	if err != nil && !types.IsKind(err, types.ErrRateLimitExceeded) {
		m.recordFailure(tag, err)
		return
	}

	// A quota refusal proves reachability but its latency is not a service
	// sample.
	withLatency := err == nil
	m.recordSuccess(tag, elapsed, withLatency)
}

func (m *Monitor) state(tag types.ProviderTag) *variantState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[tag]
}

func (m *Monitor) recordSuccess(tag types.ProviderTag, latency time.Duration, withLatency bool) {
	st := m.state(tag)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	restored := !st.health.IsHealthy
	st.health.IsHealthy = true
	st.health.ConsecutiveFailures = 0
	st.health.LastCheckedAt = time.Now().UTC()
	st.health.LastErrorSummary = ""

	if withLatency {
		st.latencies = append(st.latencies, latency)
		if len(st.latencies) > maxLatencySamples {
			st.latencies = st.latencies[len(st.latencies)-maxLatencySamples:]
		}
		st.health.RollingAvgLatency = meanDuration(st.latencies)
	}

	if restored {
		m.log.WithField("provider", tag).Info("provider restored to healthy")
	}
}

func (m *Monitor) recordFailure(tag types.ProviderTag, err error) {
	st := m.state(tag)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.health.ConsecutiveFailures++
	st.health.LastCheckedAt = time.Now().UTC()
	st.health.LastErrorSummary = err.Error()

	if st.health.ConsecutiveFailures >= unhealthyAfter && st.health.IsHealthy {
		st.health.IsHealthy = false
		m.log.WithFields(logrus.Fields{
			"provider":             tag,
			"consecutive_failures": st.health.ConsecutiveFailures,
		}).Warn("provider marked unhealthy")
	} else {
		m.log.WithFields(logrus.Fields{
			"provider":             tag,
			"consecutive_failures": st.health.ConsecutiveFailures,
		}).WithError(err).Debug("health probe failed")
	}
}

// Get returns a copy of one variant's health snapshot.
func (m *Monitor) Get(tag types.ProviderTag) (models.ProviderHealth, bool) {
	st := m.state(tag)
	if st == nil {
		return models.ProviderHealth{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.health, true
}

// IsHealthy reports a variant's current verdict. Unregistered tags are
// treated as unhealthy.
func (m *Monitor) IsHealthy(tag types.ProviderTag) bool {
	h, ok := m.Get(tag)
	return ok && h.IsHealthy
}

// GetAll returns independent copies of every snapshot.
func (m *Monitor) GetAll() map[types.ProviderTag]models.ProviderHealth {
	m.mu.RLock()
	tags := make([]types.ProviderTag, 0, len(m.states))
	for tag := range m.states {
		tags = append(tags, tag)
	}
	m.mu.RUnlock()

	all := make(map[types.ProviderTag]models.ProviderHealth, len(tags))
	for _, tag := range tags {
		if h, ok := m.Get(tag); ok {
			all[tag] = h
		}
	}
	return all
}

func meanDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}
