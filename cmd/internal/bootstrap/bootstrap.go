// Package bootstrap is the composition root shared by every cmd/ binary:
// load config, dial the cache store, construct the search/LLM/email
// backends config.Config names, and wire them into a pipeline.Pipeline and
// a metrics.Metrics. Each binary calls New once, pulls out the pieces it
// needs, and wraps them in its own core/job.Job instances.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/briefloop/researchcore/cache"
	"github.com/briefloop/researchcore/cache/searchcache"
	"github.com/briefloop/researchcore/config"
	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/email"
	"github.com/briefloop/researchcore/errs"
	"github.com/briefloop/researchcore/llm"
	"github.com/briefloop/researchcore/metrics"
	"github.com/briefloop/researchcore/pipeline"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/project/postgres"
	"github.com/briefloop/researchcore/search"
)

// Bootstrap holds every long-lived dependency a cmd/ binary's jobs are
// built from.
type Bootstrap struct {
	Config           *config.Config
	Store            project.Store
	Cache            cache.Store
	SearchCapability search.Capability
	ModelRouter      pipeline.ModelRouter
	Pipeline         *pipeline.Pipeline
	EmailSender      email.Sender
	Metrics          *metrics.Metrics
	ResearchBroker   *broker.Redis
	DeliveryBroker   *broker.Redis

	closers []func() error
}

// New loads configuration from configFile (empty means env-only) and
// constructs every shared dependency. Callers are responsible for calling
// Close when done.
func New(ctx context.Context, configFile string) (*Bootstrap, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	config.SetupLogging(cfg.Logging)

	b := &Bootstrap{Config: cfg, Metrics: metrics.New("")}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.addCloser(closeStore)

	cacheStore, redisClient, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.Cache = cacheStore
	b.addCloser(cacheStore.Close)
	b.addCloser(redisClient.Close)

	b.ResearchBroker = broker.NewRedis(redisClient, &broker.RedisConfig{Topic: "research"})
	b.DeliveryBroker = broker.NewRedis(redisClient, &broker.RedisConfig{Topic: "delivery"})

	capability, err := newSearchCapability(cfg)
	if err != nil {
		return nil, err
	}
	b.SearchCapability = capability

	router := newModelRouter(cfg)
	b.ModelRouter = router

	var sc *searchcache.Cache
	if cfg.Features.EnableSearchCache {
		sc = searchcache.New(cacheStore, searchcache.Config{
			BaseTTL:          time.Duration(cfg.Cache.Search.BaseTTLSeconds) * time.Second,
			PopularTTL:       time.Duration(cfg.Cache.Search.PopularTTLSeconds) * time.Second,
			TTLJitter:        cfg.Cache.Search.TTLJitter,
			PopularThreshold: cfg.Cache.Search.PopularThreshold,
		})
	}

	var dedup *searchcache.Dedup
	if cfg.Features.EnableSemanticDedup {
		embedder, err := llm.NewLangchainEmbedder(cfg.Secrets.LLMAPIKey, "text-embedding-3-small")
		if err != nil {
			return nil, fmt.Errorf("bootstrap: embedder: %w", err)
		}
		dedup = searchcache.NewDedup(cacheStore, cacheStore, embedder, searchcache.DedupConfig{})
	}

	fetcher := pipeline.NewHTTPFetcher(nil)

	b.Pipeline = pipeline.New(store, router, cfg.Models, cfg.Pipeline, sc, dedup, capability, fetcher)
	b.EmailSender = email.NewClient(cfg.Secrets.EmailAPIKey, cfg.Secrets.EmailFromAddress)

	return b, nil
}

func (b *Bootstrap) addCloser(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close releases every dependency New acquired, in reverse order.
func (b *Bootstrap) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if cerr := b.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newStore(ctx context.Context, cfg *config.Config) (project.Store, func() error, error) {
	store, err := postgres.Open(ctx, cfg.Secrets.ProjectStoreDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open project store: %w", err)
	}
	return store, store.Close, nil
}

func newCache(ctx context.Context, cfg *config.Config) (*cache.Redis, *redis.Client, error) {
	if !cfg.Cache.Enabled {
		return nil, nil, errs.New(errs.Validation, "bootstrap: cache.enabled=false is not supported, the queue broker requires redis")
	}
	redisCfg := cache.Config{
		Host:     cfg.Cache.Redis.Host,
		Port:     cfg.Cache.Redis.Port,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	}
	store, err := cache.Dial(ctx, redisCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: dial cache: %w", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	return store, client, nil
}

func newSearchCapability(cfg *config.Config) (search.Capability, error) {
	switch cfg.Search.Provider {
	case config.SearchProviderSerper:
		return search.NewSerper(cfg.Secrets.SearchAPIKey), nil
	case config.SearchProviderBrave:
		return search.NewBrave(cfg.Secrets.SearchAPIKey), nil
	case config.SearchProviderMulti:
		if !cfg.Features.EnableMultiProvider {
			slog.Warn("bootstrap: search.provider=multi but features.enableMultiProvider is false, falling back to serper only")
			return search.NewSerper(cfg.Secrets.SearchAPIKey), nil
		}
		providers := []search.Capability{search.NewSerper(cfg.Secrets.SearchAPIKey)}
		if cfg.Secrets.SearchAPIKeyFallback != "" {
			providers = append(providers, search.NewBrave(cfg.Secrets.SearchAPIKeyFallback))
		}
		return search.NewOrchestrator(search.OrchestratorConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  30 * time.Second,
		}, providers...), nil
	default:
		return nil, errs.Newf(errs.Validation, "bootstrap: unknown search provider %q", cfg.Search.Provider)
	}
}

func newModelRouter(cfg *config.Config) *llm.Router {
	openaiProvider := llm.NewOpenAIProvider(cfg.Secrets.LLMAPIKey)
	var anthropicProvider *llm.AnthropicProvider
	if cfg.Secrets.AnthropicAPIKey != "" {
		anthropicProvider = llm.NewAnthropicProvider(cfg.Secrets.AnthropicAPIKey)
	}
	return llm.NewRouter(openaiProvider, anthropicProvider)
}

