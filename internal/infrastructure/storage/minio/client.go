package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/pkg/errors"
)

// MinIOAPI is the subset of the object store used for model artifacts.
// OpenObject stands in for GetObject so tests need not build a
// *minio.Object.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

// clientAdapter adapts *minio.Client to MinIOAPI.
type clientAdapter struct {
	*minio.Client
}

func (a clientAdapter) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return a.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

// MinIOConfig holds connection settings.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
	ConnectTimeout  time.Duration
}

// NewMinIOClient connects to the object store and checks that the model
// bucket exists.
func NewMinIOClient(cfg *MinIOConfig, log logging.Logger) (MinIOAPI, error) {
	applyDefaults(cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}
	api := clientAdapter{Client: client}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	ok, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeModelNotFound, "model bucket does not exist").WithDetail(cfg.Bucket)
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return api, nil
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "fluoric-models"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}
