// Package app assembles the prediction runtime from configuration. The CLI
// and the API server share it.
package app

import (
	"context"
	"time"

	"github.com/turtacn/fluoric/internal/application/prediction"
	"github.com/turtacn/fluoric/internal/config"
	"github.com/turtacn/fluoric/internal/domain/molecule"
	"github.com/turtacn/fluoric/internal/infrastructure/database/redis"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/fluoric/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/fluoric/internal/infrastructure/storage/minio"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/internal/intelligence/regression"
)

// Runtime owns every long-lived dependency of a process.
type Runtime struct {
	Config *config.Config
	Logger logging.Logger

	// Collector and AppMetrics are nil when metrics are disabled.
	Collector  prom.MetricsCollector
	AppMetrics *prom.AppMetrics
	Metrics    common.PredictionMetrics

	Source  regression.Source
	Models  *regression.ModelContext
	Service *prediction.Service

	// Repository is set for the minio model source.
	Repository *minio.ModelRepository
	// Cache is set when the prediction cache is enabled.
	Cache *redis.PredictionCache
}

// New builds a Runtime. Models are loaded lazily on first use.
func New(cfg *config.Config, log logging.Logger) (*Runtime, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	rt := &Runtime{Config: cfg, Logger: log, Metrics: common.NewNoopPredictionMetrics()}

	if cfg.Metrics.Enabled {
		collector, err := prom.NewMetricsCollector(prom.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            cfg.Metrics.Subsystem,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return nil, err
		}
		pm, err := common.NewPrometheusPredictionMetrics(collector.Registerer(), cfg.Metrics.Namespace)
		if err != nil {
			return nil, err
		}
		rt.Collector = collector
		rt.AppMetrics = prom.NewAppMetrics(collector)
		rt.Metrics = pm
	}

	source, repo, err := NewSource(cfg, log)
	if err != nil {
		return nil, err
	}
	rt.Source, rt.Repository = source, repo

	models, err := regression.NewModelContext(source, ModelSpecs(cfg), FeatureOptions(cfg), rt.Metrics, log)
	if err != nil {
		return nil, err
	}
	rt.Models = models

	opts := []prediction.Option{
		prediction.WithMetrics(rt.Metrics),
		prediction.WithConcurrency(cfg.Pipeline.Concurrency),
	}
	if cfg.Cache.Enabled {
		client, err := redis.NewClient(&redis.RedisConfig{
			Addr:         cfg.Cache.Redis.Addr,
			Password:     cfg.Cache.Redis.Password,
			DB:           cfg.Cache.Redis.DB,
			PoolSize:     cfg.Cache.Redis.PoolSize,
			DialTimeout:  cfg.Cache.Redis.DialTimeout,
			ReadTimeout:  cfg.Cache.Redis.ReadTimeout,
			WriteTimeout: cfg.Cache.Redis.WriteTimeout,
		}, log)
		if err != nil {
			_ = models.Close()
			return nil, err
		}
		rt.Cache = redis.NewPredictionCache(client, log,
			redis.WithPrefix(cfg.Cache.KeyPrefix),
			redis.WithTTL(cfg.Cache.TTL))
		opts = append(opts, prediction.WithCache(rt.Cache))
	}

	svc, err := prediction.NewService(models, log, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc

	log.Info("runtime initialized",
		logging.String("model_source", source.Describe()),
		logging.Bool("cache", cfg.Cache.Enabled),
		logging.Bool("metrics", cfg.Metrics.Enabled),
		logging.Int("concurrency", svc.Concurrency()))
	return rt, nil
}

// NewSource returns the artifact source selected by models.source.
func NewSource(cfg *config.Config, log logging.Logger) (regression.Source, *minio.ModelRepository, error) {
	switch cfg.Models.Source {
	case config.ModelSourceFile:
		return regression.NewDirSource(cfg.Models.Dir), nil, nil
	case config.ModelSourceMinIO:
		repo, err := NewRepository(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		return regression.NewEmbeddedSource(), nil, nil
	}
}

// NewRepository connects to the configured object store.
func NewRepository(cfg *config.Config, log logging.Logger) (*minio.ModelRepository, error) {
	api, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		Region:          cfg.MinIO.Region,
		Bucket:          cfg.MinIO.Bucket,
	}, log)
	if err != nil {
		return nil, err
	}
	return minio.NewModelRepository(api, cfg.MinIO.Bucket, "", log), nil
}

// ModelSpecs maps models.logp and models.pka to registry specs.
func ModelSpecs(cfg *config.Config) []regression.ModelSpec {
	return []regression.ModelSpec{
		{Property: common.PropertyLogP, Artifact: cfg.Models.LogP.Artifact, Checksum: cfg.Models.LogP.Checksum},
		{Property: common.PropertyPKa, Artifact: cfg.Models.PKa.Artifact, Checksum: cfg.Models.PKa.Checksum},
	}
}

// FeatureOptions maps the features section to extractor options.
func FeatureOptions(cfg *config.Config) descriptors.Options {
	return descriptors.Options{
		Embed: molecule.EmbedOptions{
			Seed:          cfg.Features.Seed,
			MaxAttempts:   cfg.Features.MaxAttempts,
			MaxIterations: cfg.Features.MaxIterations,
			MaxHeavyAtoms: cfg.Features.MaxHeavyAtoms,
		},
		GridSpacing: cfg.Features.VolumeGridSpacing,
	}
}

// Ready loads every configured model and pings the cache.
func (r *Runtime) Ready(ctx context.Context) error {
	if err := r.Models.LoadAll(ctx); err != nil {
		return err
	}
	for _, m := range r.Models.Loaded() {
		if r.AppMetrics != nil {
			prom.SetModelLoaded(r.AppMetrics, m.Property().String(), m.Version())
		}
	}
	if r.Cache != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.Cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases models and connections.
func (r *Runtime) Close() {
	if r.Models != nil {
		if err := r.Models.Close(); err != nil {
			r.Logger.Warn("failed to close model context", logging.Err(err))
		}
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			r.Logger.Warn("failed to close prediction cache", logging.Err(err))
		}
	}
	_ = r.Logger.Sync()
}
