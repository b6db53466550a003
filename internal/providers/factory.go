package providers

import (
	"sync"

	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/cache"
	"market-data-gateway/internal/config"
	"market-data-gateway/internal/providers/alphavantage"
	"market-data-gateway/internal/providers/mock"
	"market-data-gateway/internal/providers/yahoo"
	"market-data-gateway/internal/ratelimit"
	"market-data-gateway/internal/types"
)

// enumerationOrder fixes the order AvailableProviders reports variants in;
// cost-aware strategies consult free variants in this order.
var enumerationOrder = []types.ProviderTag{
	types.ProviderYahoo,
	types.ProviderAlphaVantage,
	types.ProviderMock,
}

// Factory constructs and resolves provider variants by tag. It is built once
// at startup from configuration and holds no request state; variants and
// their limiters are process-wide singletons resolved lazily.
type Factory struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    cache.Store
	ttl      cache.TTLConfig
	log      *logrus.Logger
	builders map[types.ProviderTag]func() types.Provider

	instances map[types.ProviderTag]types.Provider
	limiters  map[types.ProviderTag]types.RateLimiter
}

// NewFactory creates the factory. store may be nil to disable variant-level
// caching. Only variants whose configuration flags them enabled register.
func NewFactory(cfg *config.Config, store cache.Store, ttl cache.TTLConfig, log *logrus.Logger) *Factory {
	if log == nil {
		log = logrus.StandardLogger()
	}

	f := &Factory{
		cfg:       cfg,
		store:     store,
		ttl:       ttl,
		log:       log,
		builders:  make(map[types.ProviderTag]func() types.Provider),
		instances: make(map[types.ProviderTag]types.Provider),
		limiters:  make(map[types.ProviderTag]types.RateLimiter),
	}

	if cfg.Providers.Yahoo.Enabled {
		f.builders[types.ProviderYahoo] = f.buildYahoo
	}
	if cfg.Providers.AlphaVantage.Enabled {
		f.builders[types.ProviderAlphaVantage] = f.buildAlphaVantage
	}
	if cfg.Providers.Mock.Enabled {
		f.builders[types.ProviderMock] = f.buildMock
	}
	return f
}

// Register installs a custom builder for tag, replacing any configured one.
// Tags outside the enumeration order are resolvable but not enumerated.
func (f *Factory) Register(tag types.ProviderTag, build func() types.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[tag] = build
	delete(f.instances, tag)
}

// Resolve returns the variant for tag, constructing it on first use.
// Disabled and unrecognized tags report UnknownProvider.
func (f *Factory) Resolve(tag types.ProviderTag) (types.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.instances[tag]; ok {
		return p, nil
	}
	build, ok := f.builders[tag]
	if !ok {
		return nil, types.NewProviderError(types.ErrUnknownProvider, tag, "", "provider not enabled or not recognized")
	}

	p := build()
	f.instances[tag] = p
	f.log.WithField("provider", tag).Info("provider variant constructed")
	return p, nil
}

// AvailableProviders enumerates the enabled tags in a fixed order.
func (f *Factory) AvailableProviders() []types.ProviderTag {
	tags := make([]types.ProviderTag, 0, len(f.builders))
	for _, tag := range enumerationOrder {
		if _, ok := f.builders[tag]; ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Limiter returns the rate limiter attached to a variant, or nil when the
// variant has none (mock) or is not enabled.
func (f *Factory) Limiter(tag types.ProviderTag) types.RateLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limiters[tag]
}

// LimiterStatus snapshots every attached limiter, keyed by tag.
func (f *Factory) LimiterStatus() map[types.ProviderTag]ratelimit.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	statuses := make(map[types.ProviderTag]ratelimit.Status, len(f.limiters))
	for tag, l := range f.limiters {
		statuses[tag] = l.Status()
	}
	return statuses
}

func (f *Factory) variantCache(tag types.ProviderTag) *cache.MarketCache {
	if f.store == nil {
		return nil
	}
	return cache.NewMarketCache(f.store, string(tag), f.ttl, logrus.NewEntry(f.log).WithField("scope", tag))
}

// Caller holds f.mu.
func (f *Factory) attachLimiter(tag types.ProviderTag, rl config.RateLimitConfig) types.RateLimiter {
	limiter := ratelimit.New(rl.RequestsPerMinute, rl.RequestsPerDay)
	f.limiters[tag] = limiter
	return limiter
}

func (f *Factory) buildYahoo() types.Provider {
	p := f.cfg.Providers.Yahoo
	return yahoo.New(yahoo.Config{
		BaseURL:    p.BaseURL,
		Timeout:    p.Timeout,
		MaxRetries: p.MaxRetries,
	}, f.attachLimiter(types.ProviderYahoo, p.RateLimit), f.variantCache(types.ProviderYahoo), logrus.NewEntry(f.log))
}

func (f *Factory) buildAlphaVantage() types.Provider {
	p := f.cfg.Providers.AlphaVantage
	return alphavantage.New(alphavantage.Config{
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		Timeout:    p.Timeout,
		MaxRetries: p.MaxRetries,
	}, f.attachLimiter(types.ProviderAlphaVantage, p.RateLimit), f.variantCache(types.ProviderAlphaVantage), logrus.NewEntry(f.log))
}

func (f *Factory) buildMock() types.Provider {
	// The mock bypasses rate limiting and caching entirely.
	return mock.New(1)
}
