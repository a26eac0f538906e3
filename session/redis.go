package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/redis/go-redis/v9"
)

const (
	fieldHash    = "hash"
	fieldExpires = "exp"
)

const (
	casStatusNotFound int64 = 0
	casStatusExpired  int64 = 1
	casStatusMismatch int64 = 2
	casStatusSwapped  int64 = 3
)

const compareAndSwapScript = `
local stored = redis.call("HGET", KEYS[1], "hash")
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 2
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
if exp <= tonumber(ARGV[4]) then
  return 1
end
redis.call("HSET", KEYS[1], "hash", ARGV[2], "exp", ARGV[3])
redis.call("PEXPIREAT", KEYS[1], ARGV[5])
return 3
`

var compareAndSwapLua = redis.NewScript(compareAndSwapScript)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps refresh records in Redis hashes keyed by user id.
//
// Keys outlive the token by the configured retention so that Get can still
// report an expired record instead of a missing one.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore creates a store under prefix. retention is how long an
// expired record stays readable; zero drops it at expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gt"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for expiry decisions.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":rt:" + userID
}

// Get returns the record on file for userID.
func (s *RedisStore) Get(ctx context.Context, userID string) (Record, error) {
	if userID == "" {
		return Record{}, ErrInvalidUserID
	}

	fields, err := s.redis.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrRecordNotFound
	}

	hash, err := internal.DecodeRefreshHash(fields[fieldHash])
	if err != nil {
		return Record{}, err
	}
	expMillis, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid refresh expiry: %w", err)
	}

	return Record{TokenHash: hash, ExpiresAt: time.UnixMilli(expMillis)}, nil
}

// Put overwrites the record for userID.
func (s *RedisStore) Put(ctx context.Context, userID string, rec Record) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	key := s.key(userID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldHash, internal.EncodeRefreshHash(rec.TokenHash),
			fieldExpires, strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt.Add(s.retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CompareAndSwap replaces the record only while the stored digest still
// equals expected and the stored token has not expired. The check and the
// write run in one Lua script.
func (s *RedisStore) CompareAndSwap(ctx context.Context, userID string, expected [32]byte, next Record) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	status, err := compareAndSwapLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		internal.EncodeRefreshHash(expected),
		internal.EncodeRefreshHash(next.TokenHash),
		strconv.FormatInt(next.ExpiresAt.UnixMilli(), 10),
		strconv.FormatInt(s.now().UnixMilli(), 10),
		strconv.FormatInt(next.ExpiresAt.Add(s.retention).UnixMilli(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case casStatusSwapped:
		return nil
	case casStatusNotFound:
		return ErrRecordNotFound
	case casStatusExpired:
		return ErrRecordExpired
	case casStatusMismatch:
		return ErrHashMismatch
	default:
		return fmt.Errorf("unexpected compare-and-swap status %d", status)
	}
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping reports Redis round-trip latency for health checks.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
