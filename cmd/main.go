package main

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/dig"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/datacache"
	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/facilitator"
	"github.com/davidbz/turnstile/internal/http"
	"github.com/davidbz/turnstile/internal/observability"
	"github.com/davidbz/turnstile/internal/pricefeed"
	"github.com/davidbz/turnstile/internal/provider/quantmodel"
	"github.com/davidbz/turnstile/internal/scheduler"
	"github.com/davidbz/turnstile/internal/session"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(sched *scheduler.Scheduler, server *http.Server) {
		sched.Start()
		defer sched.Stop()

		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Fail fast on configuration errors before wiring anything else.
	if err := container.Invoke(func(cfg *config.Config) error {
		return cfg.Validate()
	}); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(observability.NewMetrics); err != nil {
		log.Fatalf("Failed to provide metrics: %v", err)
	}

	// Price feed
	if err := container.Provide(pricefeed.NewFeed); err != nil {
		log.Fatalf("Failed to provide price feed: %v", err)
	}
	if err := container.Provide(func(feed *pricefeed.Feed) domain.PriceFeed {
		return feed
	}); err != nil {
		log.Fatalf("Failed to bind price feed: %v", err)
	}

	// Quote calculator
	if err := container.Provide(func(cfg *config.PaymentConfig) (*domain.QuoteCalculator, error) {
		usdAsset := domain.Asset{
			ContractAddress: cfg.USDCContract,
			Decimals:        cfg.USDCDecimals,
			Symbol:          "USDC",
			DisplayName:     "USD Coin",
		}
		discountAsset := domain.Asset{
			ContractAddress: cfg.DiscountTokenContract,
			Decimals:        cfg.DiscountTokenDecimals,
			Symbol:          cfg.DiscountTokenSymbol,
			DisplayName:     cfg.DiscountTokenSymbol,
		}

		rate, err := decimal.NewFromString(cfg.DiscountRate)
		if err != nil {
			return nil, err
		}

		return domain.NewQuoteCalculator(usdAsset, discountAsset, rate, cfg.PayToAddress, cfg.Network)
	}); err != nil {
		log.Fatalf("Failed to provide quote calculator: %v", err)
	}

	// Requirement registry
	if err := container.Provide(domain.NewRequirementRegistry); err != nil {
		log.Fatalf("Failed to provide requirement registry: %v", err)
	}

	// Sessions
	if err := container.Provide(func(cfg *config.SessionConfig) domain.SessionStore {
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			return session.NewRedisStore(client)
		}
		return session.NewMemoryStore()
	}); err != nil {
		log.Fatalf("Failed to provide session store: %v", err)
	}
	if err := container.Provide(newSweeper); err != nil {
		log.Fatalf("Failed to provide session sweeper: %v", err)
	}

	// Settlement facilitator
	if err := container.Provide(facilitator.NewClient); err != nil {
		log.Fatalf("Failed to provide facilitator client: %v", err)
	}
	if err := container.Provide(func(client *facilitator.Client) domain.Settlement {
		return client
	}); err != nil {
		log.Fatalf("Failed to bind settlement capability: %v", err)
	}

	// Payment gate
	if err := container.Provide(domain.NewPaymentGate); err != nil {
		log.Fatalf("Failed to provide payment gate: %v", err)
	}

	// Upstream data provider
	if err := container.Provide(quantmodel.NewClient); err != nil {
		log.Fatalf("Failed to provide upstream client: %v", err)
	}
	if err := container.Provide(func(client *quantmodel.Client) quantmodel.Fetcher {
		return client
	}); err != nil {
		log.Fatalf("Failed to bind upstream fetcher: %v", err)
	}
	if err := container.Provide(func(metrics *observability.Metrics) *datacache.Cache[*quantmodel.ModelDocument] {
		return datacache.New[*quantmodel.ModelDocument](metrics)
	}); err != nil {
		log.Fatalf("Failed to provide model cache: %v", err)
	}
	if err := container.Provide(func(metrics *observability.Metrics) *datacache.Cache[[]quantmodel.ModelInfo] {
		return datacache.New[[]quantmodel.ModelInfo](metrics)
	}); err != nil {
		log.Fatalf("Failed to provide roster cache: %v", err)
	}
	if err := container.Provide(quantmodel.NewProvider); err != nil {
		log.Fatalf("Failed to provide model provider: %v", err)
	}

	// Background scheduler
	if err := container.Provide(scheduler.New); err != nil {
		log.Fatalf("Failed to provide scheduler: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	// Seed the route-price table (invoked for side effects).
	if err := container.Invoke(func(
		handler *http.Handler,
		registry *domain.RequirementRegistry,
	) error {
		return http.RegisterPrices(registry, handler.Routes())
	}); err != nil {
		log.Fatalf("Failed to register route prices: %v", err)
	}

	return container
}

func newSweeper(
	cfg *config.SessionConfig,
	store domain.SessionStore,
	metrics *observability.Metrics,
) *session.Sweeper {
	return session.NewSweeper(store, time.Duration(cfg.IdleThresholdSeconds)*time.Second, metrics)
}
