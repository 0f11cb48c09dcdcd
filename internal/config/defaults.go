package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerReadTimeout     = 30 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerShutdownTimeout = 15 * time.Second
	DefaultServerMaxRows         = 10000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultModelSource   = ModelSourceEmbedded
	DefaultLogPArtifact  = "logp.json"
	DefaultPKaArtifact   = "pka.json"
	DefaultModelsDirPath = "./models"

	DefaultFeatureSeed       int64 = 42
	DefaultMaxAttempts             = 5
	DefaultMaxIterations           = 600
	DefaultMaxHeavyAtoms           = 120
	DefaultVolumeGridSpacing       = 0.25

	DefaultPipelineConcurrency = 1

	DefaultCacheTTL       = 24 * time.Hour
	DefaultCacheKeyPrefix = "fluoric:"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10

	DefaultMinIOBucket = "fluoric-models"

	DefaultMetricsNamespace = "fluoric"
)

// ApplyDefaults fills every zero-value field in cfg. Values already set are
// left unchanged so explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxRows == 0 {
		cfg.Server.MaxRows = DefaultServerMaxRows
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Models ────────────────────────────────────────────────────────────────
	if cfg.Models.Source == "" {
		cfg.Models.Source = DefaultModelSource
	}
	if cfg.Models.Source == ModelSourceFile && cfg.Models.Dir == "" {
		cfg.Models.Dir = DefaultModelsDirPath
	}
	if cfg.Models.LogP.Artifact == "" {
		cfg.Models.LogP.Artifact = DefaultLogPArtifact
	}
	if cfg.Models.PKa.Artifact == "" {
		cfg.Models.PKa.Artifact = DefaultPKaArtifact
	}

	// ── Features ──────────────────────────────────────────────────────────────
	if cfg.Features.Seed == 0 {
		cfg.Features.Seed = DefaultFeatureSeed
	}
	if cfg.Features.MaxAttempts == 0 {
		cfg.Features.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Features.MaxIterations == 0 {
		cfg.Features.MaxIterations = DefaultMaxIterations
	}
	if cfg.Features.MaxHeavyAtoms == 0 {
		cfg.Features.MaxHeavyAtoms = DefaultMaxHeavyAtoms
	}
	if cfg.Features.VolumeGridSpacing == 0 {
		cfg.Features.VolumeGridSpacing = DefaultVolumeGridSpacing
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = DefaultPipelineConcurrency
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.Redis.PoolSize == 0 {
		cfg.Cache.Redis.PoolSize = DefaultRedisPoolSize
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// registerKeys makes every key known to viper so that AutomaticEnv can
// override keys absent from the config file during Unmarshal.
func registerKeys(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_rows", d.Server.MaxRows)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_paths", []string{})
	v.SetDefault("models.source", d.Models.Source)
	v.SetDefault("models.dir", "")
	v.SetDefault("models.logp.artifact", d.Models.LogP.Artifact)
	v.SetDefault("models.logp.checksum", "")
	v.SetDefault("models.pka.artifact", d.Models.PKa.Artifact)
	v.SetDefault("models.pka.checksum", "")
	v.SetDefault("features.seed", d.Features.Seed)
	v.SetDefault("features.max_attempts", d.Features.MaxAttempts)
	v.SetDefault("features.max_iterations", d.Features.MaxIterations)
	v.SetDefault("features.max_heavy_atoms", d.Features.MaxHeavyAtoms)
	v.SetDefault("features.volume_grid_spacing", d.Features.VolumeGridSpacing)
	v.SetDefault("pipeline.concurrency", d.Pipeline.Concurrency)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", d.Cache.Redis.PoolSize)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", d.MinIO.Bucket)
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.subsystem", "")
}
