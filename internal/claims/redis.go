package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists claim records in Redis as JSON values keyed
// "claim:<wallet>". One pooled client is shared for the process lifetime.
// Records are written without a TTL; claims are permanent.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis using a redis:// URL and verifies the
// connection with a ping. An empty keyPrefix falls back to DefaultKeyPrefix.
func NewRedisStore(ctx context.Context, url, keyPrefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) key(wallet string) string {
	return s.keyPrefix + wallet
}

// Has reports whether a claim record exists for the wallet.
func (s *RedisStore) Has(ctx context.Context, wallet string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(wallet)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Get fetches and deserializes the claim record, or (nil, nil) when absent.
func (s *RedisStore) Get(ctx context.Context, wallet string) (*ClaimRecord, error) {
	data, err := s.client.Get(ctx, s.key(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var record ClaimRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &record, nil
}

// Record serializes and writes a new claim record with the current
// timestamp. The write is a plain SET; it is not conditioned on the result
// of a prior Has call.
func (s *RedisStore) Record(ctx context.Context, wallet, solTx, cashTx string) (*ClaimRecord, error) {
	record := &ClaimRecord{
		WalletAddress: wallet,
		SolTx:         solTx,
		CashTx:        cashTx,
		ClaimedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal claim record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(wallet), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

// Ping verifies the Redis connection, for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
