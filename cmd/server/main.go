package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"market-data-gateway/internal/cache"
	"market-data-gateway/internal/config"
	"market-data-gateway/internal/health"
	"market-data-gateway/internal/metrics"
	"market-data-gateway/internal/providers"
	"market-data-gateway/internal/service"
	"market-data-gateway/internal/strategy"
	"market-data-gateway/internal/types"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.Logging)
	cfg.Validate(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store := buildStore(cfg, logger)
	defer store.Close()

	ttl := ttlConfig(cfg.Cache)
	factory := providers.NewFactory(cfg, store, ttl, logger)

	tracker := metrics.NewTracker(costRates(cfg.Cost), cfg.Cost.WarningThresholdPct,
		logrus.NewEntry(logger), nil)

	selector, err := strategy.New(cfg.DataProvider.Strategy,
		types.ProviderTag(cfg.DataProvider.PrimaryTag),
		types.ProviderTag(cfg.DataProvider.FallbackTag),
		factory.AvailableProviders(), tracker)
	if err != nil {
		logger.WithError(err).Fatal("invalid provider strategy")
	}

	monitor := health.NewMonitor(cfg.DataProvider.HealthCheckInterval, logrus.NewEntry(logger))
	for _, tag := range factory.AvailableProviders() {
		p, err := factory.Resolve(tag)
		if err != nil {
			logger.WithField("provider", tag).WithError(err).Warn("provider unavailable, skipping health monitoring")
			continue
		}
		monitor.Register(p)
	}
	monitor.Start()
	defer monitor.Stop()

	svc := service.New(service.Options{
		Cache:    cache.NewMarketCache(store, "", ttl, logrus.NewEntry(logger)),
		Factory:  factory,
		Strategy: selector,
		Monitor:  monitor,
		Tracker:  tracker,
		Config:   cfg,
		Log:      logrus.NewEntry(logger),
	})

	warmer := service.NewWarmer(svc, cfg.Warming, logrus.NewEntry(logger))
	if err := warmer.Start(); err != nil {
		logger.WithError(err).Fatal("invalid warming schedule")
	}
	defer warmer.Stop()

	metricsHandler := promhttp.HandlerFor(tracker.Registry(), promhttp.HandlerOpts{})
	srv := newServer(svc, cfg, metricsHandler, logrus.NewEntry(logger))

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":        addr,
			"environment": cfg.Environment,
			"strategy":    selector.Name(),
			"providers":   factory.AvailableProviders(),
		}).Info("market data gateway starting")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("forced shutdown")
	}
	logger.Info("server exited")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// buildStore selects the cache backend. A Redis that cannot be reached at
// startup degrades to the in-memory store instead of aborting.
func buildStore(cfg *config.Config, logger *logrus.Logger) cache.Store {
	if cfg.Cache.Backend != "redis" {
		logger.Info("using in-memory cache backend")
		return cache.NewMemoryStore(5 * time.Minute)
	}

	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		host, portStr = cfg.Redis.Addr, "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}

	store, err := cache.NewRedisStore(&cache.RedisConfig{
		Host:         host,
		Port:         port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, degrading to in-memory cache")
		return cache.NewMemoryStore(5 * time.Minute)
	}

	logger.WithField("addr", cfg.Redis.Addr).Info("connected to redis")
	return store
}

func ttlConfig(cfg config.CacheConfig) cache.TTLConfig {
	ttl := cache.DefaultTTLConfig()

	if cfg.QuoteTTL > 0 {
		ttl.Quote = cfg.QuoteTTL
	}
	if cfg.HistoricalTTL > 0 {
		ttl.Historical = cfg.HistoricalTTL
	}
	if cfg.FundamentalsTTL > 0 {
		ttl.Fundamentals = cfg.FundamentalsTTL
	}
	if cfg.ProfileTTL > 0 {
		ttl.Profile = cfg.ProfileTTL
	}
	if cfg.SearchTTL > 0 {
		ttl.Search = cfg.SearchTTL
	}
	if cfg.CalculatedTTL > 0 {
		ttl.CalculatedFields = cfg.CalculatedTTL
	}

	if cfg.StaleQuoteTTL > 0 {
		ttl.StaleQuote = cfg.StaleQuoteTTL
	}
	if cfg.StaleHistoricalTTL > 0 {
		ttl.StaleHistorical = cfg.StaleHistoricalTTL
	}
	if cfg.StaleFundamentalsTTL > 0 {
		ttl.StaleFundamentals = cfg.StaleFundamentalsTTL
	}
	if cfg.StaleProfileTTL > 0 {
		ttl.StaleProfile = cfg.StaleProfileTTL
	}
	if cfg.StaleSearchTTL > 0 {
		ttl.StaleSearch = cfg.StaleSearchTTL
	}
	return ttl
}

func costRates(cfg config.CostConfig) map[types.ProviderTag]metrics.CostRates {
	toRates := func(v config.VariantCost) metrics.CostRates {
		return metrics.CostRates{
			CostPerCall:         v.CostPerCall,
			MonthlySubscription: v.MonthlySubscription,
			Threshold:           v.CostThreshold,
		}
	}
	return map[types.ProviderTag]metrics.CostRates{
		types.ProviderYahoo:        toRates(cfg.Yahoo),
		types.ProviderAlphaVantage: toRates(cfg.AlphaVantage),
		types.ProviderMock:         toRates(cfg.Mock),
	}
}
