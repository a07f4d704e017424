package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agbru/lookforge/internal/artifacts"
	"github.com/agbru/lookforge/internal/config"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/metrics"
	"github.com/agbru/lookforge/internal/orchestration"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/providers"
	"github.com/agbru/lookforge/internal/pubsub"
	"github.com/agbru/lookforge/internal/server"
	"github.com/agbru/lookforge/internal/store"
)

// connectTimeout bounds each backend connection attempt at startup.
const connectTimeout = 10 * time.Second

type servicesOptions struct {
	Logger     logging.Logger
	Getenv     func(string) string
	HTTPClient *http.Client
}

// services is the wired object graph shared by every mode.
type services struct {
	Registry     *provider.Registry
	Orchestrator *orchestration.Orchestrator
	Tracker      *progress.Tracker
	Bus          *pubsub.Bus
	// Events is the subscriber the server streams from: Redis when
	// configured, the in-process bus otherwise.
	Events    pubsub.Subscriber
	CrossNode bool
	Runner    *pipeline.Runner
	Assets    store.AssetStore
	Metrics   *metrics.Registry
	Health    map[string]server.HealthCheck

	closers []func(context.Context) error
}

// buildServices loads the provider catalog, connects the configured backends
// and wires the orchestrator, tracker and runner. Backends left unset in cfg
// fall back to in-process implementations.
func buildServices(ctx context.Context, cfg config.AppConfig, opts servicesOptions) (_ *services, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	svc := &services{
		Metrics: metrics.NewRegistry(),
		Health:  map[string]server.HealthCheck{},
	}
	defer func() {
		if err != nil {
			svc.Close(context.Background())
		}
	}()

	catalog, err := provider.LoadCatalogFile(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	var configs store.ProviderConfigStore
	if cfg.MongoURI != "" {
		mongoStore, err := svc.connectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		svc.Assets, configs = mongoStore, mongoStore
		svc.Health["mongo"] = mongoStore.Ping
	} else {
		mem := store.NewMemoryStore()
		svc.Assets, configs = mem, mem
	}

	overrides, err := store.Overrides(ctx, configs)
	if err != nil {
		return nil, fmt.Errorf("load provider overrides: %w", err)
	}
	descriptors, err := provider.Build(
		provider.ApplyOverrides(catalog.Providers, overrides),
		providers.Factories(opts.HTTPClient),
		opts.Getenv,
	)
	if err != nil {
		return nil, err
	}
	if svc.Registry, err = provider.NewRegistry(descriptors...); err != nil {
		return nil, err
	}
	svc.Orchestrator = orchestration.New(svc.Registry,
		orchestration.WithObserver(svc.Metrics),
		orchestration.WithLogger(logger),
	)

	svc.Bus = pubsub.NewBus(0)
	svc.closers = append(svc.closers, func(context.Context) error { svc.Bus.Close(); return nil })
	svc.Events = svc.Bus
	publishers := pubsub.Fanout{svc.Bus}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		svc.closers = append(svc.closers, func(context.Context) error { return rdb.Close() })
		pctx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		publishers = append(publishers, pubsub.NewRedisPublisher(rdb))
		svc.Events = pubsub.NewRedisSubscriber(rdb, logger)
		svc.CrossNode = true
		svc.Health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	svc.Tracker = progress.NewTracker(
		progress.WithPublisher(publishers),
		progress.WithStatusHook(svc.Metrics.ObserveSession),
		progress.WithRetention(cfg.Retention),
		progress.WithLogger(logger),
	)
	svc.closers = append(svc.closers, func(context.Context) error { svc.Tracker.Close(); return nil })

	var blobs artifacts.Store = artifacts.NewMemoryStore()
	if cfg.S3Bucket != "" {
		s3Store, err := artifacts.NewS3Store(ctx, artifacts.S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		blobs = s3Store
	}

	svc.Runner = pipeline.NewRunner(svc.Orchestrator, svc.Tracker,
		pipeline.WithBlobStore(blobs),
		pipeline.WithAssetStore(svc.Assets),
		pipeline.WithLogger(logger),
	)

	logger.Info("services ready",
		logging.Int("providers", svc.Registry.Len()),
		logging.String("assets", assetBackend(cfg)),
		logging.String("events", eventsBackend(cfg)),
		logging.String("blobs", blobBackend(cfg)))
	return svc, nil
}

func (svc *services) connectMongo(ctx context.Context, cfg config.AppConfig) (*store.Store, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	svc.closers = append(svc.closers, client.Disconnect)
	s, err := store.New(cctx, store.Options{Client: client, Database: cfg.MongoDatabase})
	if err != nil {
		return nil, fmt.Errorf("open mongo store: %w", err)
	}
	return s, nil
}

// Close releases backends in reverse order of acquisition.
func (svc *services) Close(ctx context.Context) error {
	var errs []error
	for i := len(svc.closers) - 1; i >= 0; i-- {
		if err := svc.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	svc.closers = nil
	return errors.Join(errs...)
}

func assetBackend(cfg config.AppConfig) string {
	if cfg.MongoURI != "" {
		return "mongo"
	}
	return "memory"
}

func eventsBackend(cfg config.AppConfig) string {
	if cfg.RedisAddr != "" {
		return "redis"
	}
	return "memory"
}

func blobBackend(cfg config.AppConfig) string {
	if cfg.S3Bucket != "" {
		return "s3"
	}
	return "memory"
}
