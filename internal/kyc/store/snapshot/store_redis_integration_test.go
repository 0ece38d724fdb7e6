//go:build integration

package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"loankyc/internal/kyc/store/snapshot"
	"loankyc/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *snapshot.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = snapshot.NewRedis(s.redis.Client, snapshot.WithTTL(time.Hour))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestContract() {
	exerciseStore(s.T(), s.store)
}

func (s *RedisStoreSuite) TestSaveSetsTTL() {
	ctx := context.Background()
	snap := makeSnapshot(s.T())
	s.Require().NoError(s.store.Save(ctx, snap))

	ttl, err := s.redis.Client.TTL(ctx, "kyc:application:"+snap.ApplicationID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)
	s.LessOrEqual(ttl, time.Hour)
}
