package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/fluoric/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *PredictionCache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	log := logging.NewNopLogger()
	s.cache = NewPredictionCache(newClient(db, log), log, WithPrefix("test:"), WithTTL(time.Hour))
}

func (s *CacheTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestLookup_Hit() {
	s.mock.ExpectGet("test:k1").SetVal("3.0141592653589793")

	v, ok, err := s.cache.Lookup(context.Background(), "k1")
	s.NoError(err)
	s.True(ok)
	s.Equal(3.0141592653589793, v)
}

func (s *CacheTestSuite) TestLookup_Miss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	_, ok, err := s.cache.Lookup(context.Background(), "k1")
	s.NoError(err)
	s.False(ok)
}

func (s *CacheTestSuite) TestLookup_Error() {
	s.mock.ExpectGet("test:k1").SetErr(errors.New("connection reset"))

	_, ok, err := s.cache.Lookup(context.Background(), "k1")
	s.False(ok)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestLookup_CorruptEntryIsDropped() {
	s.mock.ExpectGet("test:k1").SetVal("not-a-number")
	s.mock.ExpectDel("test:k1").SetVal(1)

	_, ok, err := s.cache.Lookup(context.Background(), "k1")
	s.NoError(err)
	s.False(ok)
}

func (s *CacheTestSuite) TestStore() {
	s.mock.ExpectSet("test:k1", "-0.25", time.Hour).SetVal("OK")

	s.NoError(s.cache.Store(context.Background(), "k1", -0.25))
}

func (s *CacheTestSuite) TestStore_Error() {
	s.mock.ExpectSet("test:k1", "1e+21", time.Hour).SetErr(errors.New("READONLY"))

	err := s.cache.Store(context.Background(), "k1", 1e21)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestPing() {
	s.mock.ExpectPing().SetVal("PONG")
	s.NoError(s.cache.Ping(context.Background()))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestNewPredictionCache_Defaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	c := NewPredictionCache(newClient(db, logging.NewNopLogger()), nil)
	assert.Equal(t, "fluoric:", c.prefix)
	assert.Equal(t, 24*time.Hour, c.ttl)
	assert.Equal(t, "fluoric:x", c.fullKey("x"))
}
