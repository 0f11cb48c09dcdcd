package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/pkg/errors"
)

// MaxArtifactSize bounds a downloaded artifact.
const MaxArtifactSize = 32 << 20

// ObjectInfo describes a stored artifact.
type ObjectInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

// ModelRepository reads and writes model artifacts under an optional key
// prefix in one bucket. It satisfies the regression artifact source
// contract through Fetch and Describe.
type ModelRepository struct {
	api    MinIOAPI
	bucket string
	prefix string
	logger logging.Logger
}

// NewModelRepository builds a repository over api.
func NewModelRepository(api MinIOAPI, bucket, prefix string, log logging.Logger) *ModelRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ModelRepository{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: log,
	}
}

func (r *ModelRepository) objectKey(name string) string {
	if r.prefix == "" {
		return name
	}
	return path.Join(r.prefix, name)
}

// Fetch downloads an artifact.
func (r *ModelRepository) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := r.objectKey(name)
	info, err := r.api.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, r.mapError(err, key)
	}
	if info.Size > MaxArtifactSize {
		return nil, errors.New(errors.ErrCodeModelArtifactInvalid, "model artifact too large").WithDetail(key)
	}

	obj, err := r.api.OpenObject(ctx, r.bucket, key)
	if err != nil {
		return nil, r.mapError(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxArtifactSize+1))
	if err != nil {
		return nil, r.mapError(err, key)
	}
	if len(data) > MaxArtifactSize {
		return nil, errors.New(errors.ErrCodeModelArtifactInvalid, "model artifact too large").WithDetail(key)
	}

	r.logger.Debug("model artifact downloaded",
		logging.String("bucket", r.bucket),
		logging.String("key", key),
		logging.Int("bytes", len(data)))
	return data, nil
}

// Describe identifies the repository in logs.
func (r *ModelRepository) Describe() string {
	return "minio:" + path.Join(r.bucket, r.prefix)
}

// Upload stores an artifact.
func (r *ModelRepository) Upload(ctx context.Context, name string, data []byte) (*ObjectInfo, error) {
	key := r.objectKey(name)
	info, err := r.api.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return nil, r.mapError(err, key)
	}
	r.logger.Info("model artifact uploaded",
		logging.String("bucket", r.bucket),
		logging.String("key", key),
		logging.Int64("bytes", info.Size))
	return &ObjectInfo{Name: name, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// List returns the artifacts under the prefix, sorted by name.
func (r *ModelRepository) List(ctx context.Context) ([]ObjectInfo, error) {
	opts := minio.ListObjectsOptions{Recursive: true}
	if r.prefix != "" {
		opts.Prefix = r.prefix + "/"
	}
	var out []ObjectInfo
	for obj := range r.api.ListObjects(ctx, r.bucket, opts) {
		if obj.Err != nil {
			return nil, r.mapError(obj.Err, opts.Prefix)
		}
		out = append(out, ObjectInfo{
			Name:         strings.TrimPrefix(obj.Key, opts.Prefix),
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ModelRepository) mapError(err error, key string) error {
	if errors.As(err, new(*errors.AppError)) {
		return err
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.New(errors.ErrCodeModelNotFound, "model artifact not found").
			WithDetail(r.bucket + "/" + key).
			WithCause(err)
	}
	return errors.Wrap(err, errors.ErrCodeExternalService, "object storage request failed").WithDetail(r.bucket + "/" + key)
}
