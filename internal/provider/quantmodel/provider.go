package quantmodel

import (
	"context"
	"errors"
	"time"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/datacache"
	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
)

// Fetcher abstracts the upstream client so the provider can be tested with
// fakes.
type Fetcher interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	FetchModel(ctx context.Context, modelID string) (*ModelDocument, error)
}

// Provider serves model data through the single-flight TTL cache. Model
// documents change at most a few times per trading day, so a cached document
// is served for the TTL and concurrent misses collapse into one fetch.
type Provider struct {
	fetcher Fetcher
	cache   *datacache.Cache[*ModelDocument]
	roster  *datacache.Cache[[]ModelInfo]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewProvider creates a cached model data provider (DI constructor).
func NewProvider(
	fetcher Fetcher,
	cache *datacache.Cache[*ModelDocument],
	roster *datacache.Cache[[]ModelInfo],
	cfg *config.CacheConfig,
	metrics *observability.Metrics,
) *Provider {
	return &Provider{
		fetcher: fetcher,
		cache:   cache,
		roster:  roster,
		ttl:     time.Duration(cfg.DataTTLSeconds) * time.Second,
		metrics: metrics,
	}
}

// ListModels returns the cached model roster.
func (p *Provider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return p.roster.GetOrFetch(ctx, "roster", p.ttl, func(ctx context.Context) ([]ModelInfo, error) {
		models, err := p.fetcher.ListModels(ctx)
		p.countFetch(err)
		return models, err
	})
}

// GetModel returns the cached document for one model.
func (p *Provider) GetModel(ctx context.Context, modelID string) (*ModelDocument, error) {
	return p.cache.GetOrFetch(ctx, modelID, p.ttl, func(ctx context.Context) (*ModelDocument, error) {
		doc, err := p.fetcher.FetchModel(ctx, modelID)
		p.countFetch(err)
		return doc, err
	})
}

// GetAllModels returns documents for every model in the roster, for the
// cross-model compare and leaderboard views.
func (p *Provider) GetAllModels(ctx context.Context) ([]*ModelDocument, error) {
	roster, err := p.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*ModelDocument, 0, len(roster))
	for _, info := range roster {
		doc, getErr := p.GetModel(ctx, info.ID)
		if getErr != nil {
			// A model can disappear between roster and fetch; skip it
			// rather than failing the whole comparison.
			if errors.Is(getErr, domain.ErrModelNotFound) {
				continue
			}
			return nil, getErr
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (p *Provider) countFetch(err error) {
	if p.metrics == nil {
		return
	}

	if err != nil {
		p.metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return
	}
	p.metrics.UpstreamFetches.WithLabelValues("ok").Inc()
}
