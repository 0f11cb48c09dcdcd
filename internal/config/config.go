// Package config provides configuration loading, defaults, and validation for
// the fluoric prediction service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration object. It is populated by Load from a
// YAML file and FLUORIC_* environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Models   ModelsConfig   `mapstructure:"models"`
	Features FeaturesConfig `mapstructure:"features"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// MaxRows bounds the number of rows accepted by one predict request.
	MaxRows int `mapstructure:"max_rows" validate:"min=1"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig mirrors logging.LogConfig.
type LogConfig struct {
	Level       string   `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format      string   `mapstructure:"format" validate:"oneof=json console"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Model artifact sources.
const (
	ModelSourceEmbedded = "embedded"
	ModelSourceFile     = "file"
	ModelSourceMinIO    = "minio"
)

// ModelsConfig selects where the logP and pKa artifacts are read from.
type ModelsConfig struct {
	Source string `mapstructure:"source" validate:"oneof=embedded file minio"`
	// Dir is the artifact directory for the file source.
	Dir  string   `mapstructure:"dir"`
	LogP ModelRef `mapstructure:"logp"`
	PKa  ModelRef `mapstructure:"pka"`
}

// ModelRef names one artifact and optionally pins its SHA-256.
type ModelRef struct {
	Artifact string `mapstructure:"artifact" validate:"required"`
	Checksum string `mapstructure:"checksum" validate:"omitempty,len=64,hexadecimal"`
}

// FeaturesConfig controls conformer embedding and descriptor computation.
type FeaturesConfig struct {
	Seed              int64   `mapstructure:"seed"`
	MaxAttempts       int     `mapstructure:"max_attempts" validate:"min=1,max=100"`
	MaxIterations     int     `mapstructure:"max_iterations" validate:"min=10"`
	MaxHeavyAtoms     int     `mapstructure:"max_heavy_atoms" validate:"min=1"`
	VolumeGridSpacing float64 `mapstructure:"volume_grid_spacing" validate:"gt=0,lte=1"`
}

// PipelineConfig controls the row orchestrator.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1,max=256"`
}

// CacheConfig enables the Redis prediction cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Redis     RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds connection settings for the cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"min=0,max=15"`
	PoolSize     int           `mapstructure:"pool_size" validate:"min=1"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MinIOConfig holds object storage settings for the minio model source.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
	Subsystem string `mapstructure:"subsystem"`
}

var validate = validator.New()

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %s", describeValidation(err))
	}

	switch c.Models.Source {
	case ModelSourceFile:
		if c.Models.Dir == "" {
			return fmt.Errorf("config: models.dir is required when models.source is %q", ModelSourceFile)
		}
	case ModelSourceMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required when models.source is %q", ModelSourceMinIO)
		}
	}

	if c.Cache.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required when cache is enabled")
	}
	return nil
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", ns, rule))
	}
	return strings.Join(parts, "; ")
}
