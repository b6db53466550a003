package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	DataProvider DataProviderConfig
	Providers    ProvidersConfig
	Cache        CacheConfig
	Cost         CostConfig
	Warming      WarmingConfig
	Logging      LoggingConfig
	Environment  string
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	PoolSize int
	Timeout  time.Duration
}

// DataProviderConfig selects the variants and the selection strategy.
type DataProviderConfig struct {
	PrimaryTag              string
	FallbackTag             string
	Strategy                string
	EnableAutomaticFallback bool
	HealthCheckInterval     time.Duration
	MaxHistoryRangeYears    int
}

// ProvidersConfig holds the per-variant connection settings.
type ProvidersConfig struct {
	Yahoo        ProviderConfig
	AlphaVantage ProviderConfig
	Mock         ProviderConfig
}

// ProviderConfig represents one variant's connection settings.
type ProviderConfig struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Enabled     bool
	RequiresKey bool
	RateLimit   RateLimitConfig
	Enrichment  EnrichmentConfig
}

// RateLimitConfig holds the two token-bucket capacities. Zero disables the
// corresponding window.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerDay    int
}

// EnrichmentConfig toggles the quote enrichment sub-tasks.
type EnrichmentConfig struct {
	EnableBidAsk        bool
	Enable52Week        bool
	EnableAvgVolume     bool
	CalculatedFieldsTTL time.Duration
}

// CacheConfig represents cache backend selection and TTLs.
type CacheConfig struct {
	Backend string // "redis" or "memory"

	QuoteTTL        time.Duration
	HistoricalTTL   time.Duration
	FundamentalsTTL time.Duration
	ProfileTTL      time.Duration
	SearchTTL       time.Duration
	CalculatedTTL   time.Duration

	StaleQuoteTTL        time.Duration
	StaleHistoricalTTL   time.Duration
	StaleFundamentalsTTL time.Duration
	StaleProfileTTL      time.Duration
	StaleSearchTTL       time.Duration
}

// CostConfig tracks per-variant pricing and the alerting threshold.
type CostConfig struct {
	Yahoo               VariantCost
	AlphaVantage        VariantCost
	Mock                VariantCost
	WarningThresholdPct float64
}

// VariantCost is the pricing model of one variant.
type VariantCost struct {
	CostPerCall         float64
	MonthlySubscription float64
	CostThreshold       float64
}

// WarmingConfig drives the scheduled cache warmer.
type WarmingConfig struct {
	Enabled        bool
	Schedule       string // cron expression
	Symbols        []string
	Concurrency    int
	RequestsPerSec float64
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8010),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", "30s"),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Password: getEnv("REDIS_PASSWORD", ""),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
			Timeout:  getEnvAsDuration("REDIS_TIMEOUT", "5s"),
		},
		DataProvider: DataProviderConfig{
			PrimaryTag:              getEnv("DATA_PROVIDER_PRIMARY", "yahoo"),
			FallbackTag:             getEnv("DATA_PROVIDER_FALLBACK", ""),
			Strategy:                getEnv("DATA_PROVIDER_STRATEGY", "fallback"),
			EnableAutomaticFallback: getEnvAsBool("DATA_PROVIDER_AUTO_FALLBACK", true),
			HealthCheckInterval:     getEnvAsDuration("HEALTH_CHECK_INTERVAL", "60s"),
			MaxHistoryRangeYears:    getEnvAsInt("MAX_HISTORY_RANGE_YEARS", 5),
		},
		Providers: ProvidersConfig{
			Yahoo: ProviderConfig{
				BaseURL:    getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com/v8/finance"),
				Timeout:    getEnvAsDuration("YAHOO_TIMEOUT", "10s"),
				MaxRetries: getEnvAsInt("YAHOO_MAX_RETRIES", 3),
				Enabled:    getEnvAsBool("YAHOO_ENABLED", true),
				RateLimit: RateLimitConfig{
					RequestsPerMinute: getEnvAsInt("YAHOO_RPM", 60),
					RequestsPerDay:    getEnvAsInt("YAHOO_RPD", 8000),
				},
				Enrichment: EnrichmentConfig{
					EnableBidAsk:        getEnvAsBool("YAHOO_ENRICH_BID_ASK", false),
					Enable52Week:        getEnvAsBool("YAHOO_ENRICH_52_WEEK", false),
					EnableAvgVolume:     getEnvAsBool("YAHOO_ENRICH_AVG_VOLUME", false),
					CalculatedFieldsTTL: getEnvAsDuration("YAHOO_CALCULATED_TTL", "24h"),
				},
			},
			AlphaVantage: ProviderConfig{
				APIKey:      getEnv("ALPHA_VANTAGE_API_KEY", ""),
				BaseURL:     getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co"),
				Timeout:     getEnvAsDuration("ALPHA_VANTAGE_TIMEOUT", "10s"),
				MaxRetries:  getEnvAsInt("ALPHA_VANTAGE_MAX_RETRIES", 3),
				Enabled:     getEnvAsBool("ALPHA_VANTAGE_ENABLED", false),
				RequiresKey: true,
				RateLimit: RateLimitConfig{
					RequestsPerMinute: getEnvAsInt("ALPHA_VANTAGE_RPM", 5),
					RequestsPerDay:    getEnvAsInt("ALPHA_VANTAGE_RPD", 500),
				},
				Enrichment: EnrichmentConfig{
					EnableBidAsk:        getEnvAsBool("ALPHA_VANTAGE_ENRICH_BID_ASK", true),
					Enable52Week:        getEnvAsBool("ALPHA_VANTAGE_ENRICH_52_WEEK", true),
					EnableAvgVolume:     getEnvAsBool("ALPHA_VANTAGE_ENRICH_AVG_VOLUME", true),
					CalculatedFieldsTTL: getEnvAsDuration("ALPHA_VANTAGE_CALCULATED_TTL", "24h"),
				},
			},
			Mock: ProviderConfig{
				Enabled: getEnvAsBool("MOCK_ENABLED", false),
			},
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "redis"),

			QuoteTTL:        getEnvAsDuration("CACHE_QUOTE_TTL", "15m"),
			HistoricalTTL:   getEnvAsDuration("CACHE_HISTORICAL_TTL", "24h"),
			FundamentalsTTL: getEnvAsDuration("CACHE_FUNDAMENTALS_TTL", "6h"),
			ProfileTTL:      getEnvAsDuration("CACHE_PROFILE_TTL", "168h"),
			SearchTTL:       getEnvAsDuration("CACHE_SEARCH_TTL", "1h"),
			CalculatedTTL:   getEnvAsDuration("CACHE_CALCULATED_TTL", "24h"),

			StaleQuoteTTL:        getEnvAsDuration("CACHE_STALE_QUOTE_TTL", "24h"),
			StaleHistoricalTTL:   getEnvAsDuration("CACHE_STALE_HISTORICAL_TTL", "168h"),
			StaleFundamentalsTTL: getEnvAsDuration("CACHE_STALE_FUNDAMENTALS_TTL", "168h"),
			StaleProfileTTL:      getEnvAsDuration("CACHE_STALE_PROFILE_TTL", "720h"),
			StaleSearchTTL:       getEnvAsDuration("CACHE_STALE_SEARCH_TTL", "168h"),
		},
		Cost: CostConfig{
			Yahoo: VariantCost{
				CostPerCall:         getEnvAsFloat("YAHOO_COST_PER_CALL", 0),
				MonthlySubscription: getEnvAsFloat("YAHOO_MONTHLY_SUBSCRIPTION", 0),
				CostThreshold:       getEnvAsFloat("YAHOO_COST_THRESHOLD", 0),
			},
			AlphaVantage: VariantCost{
				CostPerCall:         getEnvAsFloat("ALPHA_VANTAGE_COST_PER_CALL", 0.001),
				MonthlySubscription: getEnvAsFloat("ALPHA_VANTAGE_MONTHLY_SUBSCRIPTION", 49.99),
				CostThreshold:       getEnvAsFloat("ALPHA_VANTAGE_COST_THRESHOLD", 100),
			},
			WarningThresholdPct: getEnvAsFloat("COST_WARNING_THRESHOLD_PCT", 80),
		},
		Warming: WarmingConfig{
			Enabled:        getEnvAsBool("WARMING_ENABLED", false),
			Schedule:       getEnv("WARMING_SCHEDULE", "0 */15 * * * *"),
			Symbols:        getEnvAsSlice("WARMING_SYMBOLS", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"}),
			Concurrency:    getEnvAsInt("WARMING_CONCURRENCY", 4),
			RequestsPerSec: getEnvAsFloat("WARMING_REQUESTS_PER_SEC", 2),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// placeholderPatterns mark keys copied from documentation templates.
var placeholderPatterns = []string{"YOUR_", "REPLACE", "demo"}

// ValidateAPIKey checks the startup contract for a variant key: non-empty,
// at least 8 characters, and not a documentation placeholder.
func ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	if len(key) < 8 {
		return fmt.Errorf("api key too short: %d characters", len(key))
	}
	for _, pattern := range placeholderPatterns {
		if strings.Contains(key, pattern) {
			return fmt.Errorf("api key matches placeholder pattern %q", pattern)
		}
	}
	return nil
}

// MaskAPIKey renders a key as first4…last4 for logging. Short keys mask
// entirely.
func MaskAPIKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}

// Validate applies the API-key contract to every enabled variant: an invalid
// key disables the variant with a warning instead of aborting startup.
func (c *Config) Validate(log *logrus.Logger) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	check := func(name string, p *ProviderConfig) {
		if !p.Enabled || !p.RequiresKey {
			return
		}
		if err := ValidateAPIKey(p.APIKey); err != nil {
			log.WithFields(logrus.Fields{
				"provider": name,
				"api_key":  MaskAPIKey(p.APIKey),
			}).WithError(err).Warn("disabling provider: api key failed validation")
			p.Enabled = false
		}
	}

	check("yahoo", &c.Providers.Yahoo)
	check("alphavantage", &c.Providers.AlphaVantage)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Second * 30 // Fallback
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
