package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the Redis backend cannot be reached.
var ErrRedisUnavailable = errors.New("registry: redis unavailable")

// keyMarker is the hash field that makes an otherwise empty key exist.
const keyMarker = "@key"

const setIfKeyExistsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

var setIfKeyExistsLua = redis.NewScript(setIfKeyExistsScript)

// RedisStore keeps each key path in one Redis hash. Field values use the
// FormatValue text encoding.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store whose hashes live under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) hashKey(key string) string {
	return s.prefix + ":" + normalizeKey(key)
}

// CreateKey makes key exist. Existing values are kept.
func (s *RedisStore) CreateKey(ctx context.Context, key string) error {
	if err := s.redis.HSet(ctx, s.hashKey(key), keyMarker, "1").Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, key, name string) (Value, error) {
	raw, err := s.redis.HGet(ctx, s.hashKey(key), strings.ToLower(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Value{}, ErrNotFound
		}
		return Value{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ParseValue(raw)
}

func (s *RedisStore) Set(ctx context.Context, key, name string, v Value) error {
	text, err := FormatValue(v)
	if err != nil {
		return err
	}
	ok, err := setIfKeyExistsLua.Run(ctx, s.redis, []string{s.hashKey(key)}, strings.ToLower(name), text).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok == 0 {
		return ErrNotFound
	}
	return nil
}
