package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/dig"
)

// Config represents the gateway configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Upstream  UpstreamConfig
	PriceFeed PriceFeedConfig
	Payment   PaymentConfig
	Session   SessionConfig
	Cache     CacheConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,X-Payment"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// UpstreamConfig contains the quantitative-model data provider settings.
type UpstreamConfig struct {
	BaseURL string `env:"UPSTREAM_BASE_URL"`
	Timeout int    `env:"UPSTREAM_TIMEOUT" envDefault:"30"`
}

// PriceFeedConfig contains the discount-token price feed settings.
type PriceFeedConfig struct {
	URL        string `env:"PRICE_FEED_URL"`
	TTLSeconds int    `env:"PRICE_FEED_TTL"  envDefault:"300"`
	Timeout    int    `env:"PRICE_FEED_TIMEOUT" envDefault:"10"`
	// FloorUSD is the hard-coded fallback price used when no snapshot was
	// ever fetched. The pricing subsystem must always be able to quote.
	FloorUSD string `env:"PRICE_FLOOR_USD" envDefault:"0.0000001"`
}

// PaymentConfig contains settlement assets, payout and facilitator settings.
type PaymentConfig struct {
	FacilitatorURL        string `env:"FACILITATOR_URL"`
	FacilitatorTimeout    int    `env:"FACILITATOR_TIMEOUT" envDefault:"30"`
	PayToAddress          string `env:"PAY_TO_ADDRESS"`
	Network               string `env:"NETWORK" envDefault:"base"`
	USDCContract          string `env:"USDC_CONTRACT"          envDefault:"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"`
	USDCDecimals          int32  `env:"USDC_DECIMALS"          envDefault:"6"`
	DiscountTokenContract string `env:"DISCOUNT_TOKEN_CONTRACT"`
	DiscountTokenDecimals int32  `env:"DISCOUNT_TOKEN_DECIMALS" envDefault:"18"`
	DiscountTokenSymbol   string `env:"DISCOUNT_TOKEN_SYMBOL"   envDefault:"QMDL"`
	DiscountRate          string `env:"DISCOUNT_RATE"           envDefault:"0.3"`
}

// SessionConfig contains payment session store and sweeper settings.
type SessionConfig struct {
	// RedisAddr enables the redis-backed session store when set; empty
	// means sessions live in process memory.
	RedisAddr            string `env:"REDIS_ADDR"`
	SweepIntervalSeconds int    `env:"SESSION_SWEEP_INTERVAL" envDefault:"30"`
	IdleThresholdSeconds int    `env:"SESSION_IDLE_THRESHOLD" envDefault:"120"`
}

// CacheConfig contains upstream data cache settings.
type CacheConfig struct {
	DataTTLSeconds int `env:"DATA_CACHE_TTL" envDefault:"3600"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*UpstreamConfig
	*PriceFeedConfig
	*PaymentConfig
	*SessionConfig
	*CacheConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// Validate checks required settings. Failures here are configuration errors
// and fatal at startup.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("UPSTREAM_BASE_URL is required")
	}

	if c.Payment.PayToAddress == "" {
		return errors.New("PAY_TO_ADDRESS is required")
	}

	if _, err := decimal.NewFromString(c.Payment.DiscountRate); err != nil {
		return fmt.Errorf("DISCOUNT_RATE is not a decimal: %w", err)
	}

	if _, err := decimal.NewFromString(c.PriceFeed.FloorUSD); err != nil {
		return fmt.Errorf("PRICE_FLOOR_USD is not a decimal: %w", err)
	}

	return nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Upstream,
		&cfg.PriceFeed,
		&cfg.Payment,
		&cfg.Session,
		&cfg.Cache,
	}
}
