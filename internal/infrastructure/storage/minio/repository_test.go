package minio

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

func (m *MockMinIOAPI) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

type RepositoryTestSuite struct {
	suite.Suite
	api  *MockMinIOAPI
	repo *ModelRepository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.repo = NewModelRepository(s.api, "models", "/v1/", logging.NewNopLogger())
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *RepositoryTestSuite) TestFetch_Success() {
	body := `{"name":"fluoric-logp"}`
	s.api.On("StatObject", s.ctx, "models", "v1/logp.json", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{Key: "v1/logp.json", Size: int64(len(body))}, nil)
	s.api.On("OpenObject", s.ctx, "models", "v1/logp.json").
		Return(io.NopCloser(strings.NewReader(body)), nil)

	data, err := s.repo.Fetch(s.ctx, "logp.json")
	s.Require().NoError(err)
	s.Equal(body, string(data))
}

func (s *RepositoryTestSuite) TestFetch_NoSuchKey() {
	s.api.On("StatObject", s.ctx, "models", "v1/logd.json", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})

	_, err := s.repo.Fetch(s.ctx, "logd.json")
	s.True(errors.IsCode(err, errors.ErrCodeModelNotFound))
}

func (s *RepositoryTestSuite) TestFetch_TooLarge() {
	s.api.On("StatObject", s.ctx, "models", "v1/big.json", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{Size: MaxArtifactSize + 1}, nil)

	_, err := s.repo.Fetch(s.ctx, "big.json")
	s.True(errors.IsCode(err, errors.ErrCodeModelArtifactInvalid))
}

func (s *RepositoryTestSuite) TestFetch_TransportError() {
	s.api.On("StatObject", s.ctx, "models", "v1/logp.json", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, io.ErrUnexpectedEOF)

	_, err := s.repo.Fetch(s.ctx, "logp.json")
	s.True(errors.IsCode(err, errors.ErrCodeExternalService))
	s.ErrorIs(err, io.ErrUnexpectedEOF)
}

func (s *RepositoryTestSuite) TestUpload() {
	now := time.Now()
	s.api.On("PutObject", s.ctx, "models", "v1/pka.json", mock.Anything, int64(2), mock.MatchedBy(func(o minio.PutObjectOptions) bool {
		return o.ContentType == "application/json"
	})).Return(minio.UploadInfo{Key: "v1/pka.json", Size: 2, ETag: "abc", LastModified: now}, nil)

	info, err := s.repo.Upload(s.ctx, "pka.json", []byte("{}"))
	s.Require().NoError(err)
	s.Equal("pka.json", info.Name)
	s.Equal("abc", info.ETag)
	s.Equal(int64(2), info.Size)
}

func (s *RepositoryTestSuite) TestList() {
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "v1/pka.json", Size: 20}
	ch <- minio.ObjectInfo{Key: "v1/logp.json", Size: 10}
	close(ch)
	s.api.On("ListObjects", s.ctx, "models", minio.ListObjectsOptions{Prefix: "v1/", Recursive: true}).
		Return((<-chan minio.ObjectInfo)(ch))

	objs, err := s.repo.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(objs, 2)
	s.Equal("logp.json", objs[0].Name)
	s.Equal("pka.json", objs[1].Name)
}

func (s *RepositoryTestSuite) TestList_Error() {
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Err: minio.ErrorResponse{Code: "NoSuchBucket"}}
	close(ch)
	s.api.On("ListObjects", s.ctx, "models", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	_, err := s.repo.List(s.ctx)
	s.True(errors.IsCode(err, errors.ErrCodeModelNotFound))
}

func (s *RepositoryTestSuite) TestDescribe() {
	s.Equal("minio:models/v1", s.repo.Describe())
	s.Equal("minio:models", NewModelRepository(s.api, "models", "", nil).Describe())
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
