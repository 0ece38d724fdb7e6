package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	"loankyc/pkg/platform/sentinel"
)

const (
	keyPrefix  = "kyc:application:"
	defaultTTL = 72 * time.Hour
)

// RedisStore keeps each snapshot under its own key with a sliding TTL, so
// abandoned applications expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithTTL sets how long an untouched snapshot is kept. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(applicationID id.ApplicationID) string {
	return keyPrefix + applicationID.String()
}

// Save writes the snapshot under WATCH so a concurrent writer cannot slip in
// between the version check and the write.
//
// Returns sentinel.ErrConflict when the stored version is not older, or when
// the key changed during the transaction.
func (s *RedisStore) Save(ctx context.Context, snap *models.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	k := key(snap.ApplicationID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("read snapshot: %w", err)
		default:
			existing, err := decode(cur)
			if err != nil {
				return err
			}
			if existing.Version >= snap.Version {
				return sentinel.ErrConflict
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return sentinel.ErrConflict
	}
	return err
}

func (s *RedisStore) Load(ctx context.Context, applicationID id.ApplicationID) (*models.Snapshot, error) {
	data, err := s.client.Get(ctx, key(applicationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decode(data)
}
