package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goRefMon/ident"
	"github.com/redis/go-redis/v9"
)

const (
	statusMissing  int64 = -1
	statusBusy     int64 = -2
	statusUnderrun int64 = -3
)

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "data", ARGV[1], "refs", 0)
return 1
`

const referenceSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "refs", 1)
`

const dereferenceSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local refs = tonumber(redis.call("HGET", KEYS[1], "refs") or "0")
if refs <= 0 then
  return -3
end
if refs == 1 then
  redis.call("DEL", KEYS[1])
  return 0
end
return redis.call("HINCRBY", KEYS[1], "refs", -1)
`

const deleteSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local refs = tonumber(redis.call("HGET", KEYS[1], "refs") or "0")
if refs > 0 then
  return -2
end
redis.call("DEL", KEYS[1])
return 0
`

var (
	createSessionLua      = redis.NewScript(createSessionScript)
	referenceSessionLua   = redis.NewScript(referenceSessionScript)
	dereferenceSessionLua = redis.NewScript(dereferenceSessionScript)
	deleteSessionLua      = redis.NewScript(deleteSessionScript)
)

// RedisTable keeps logon sessions in Redis hashes so several monitor
// instances can share one table. Reference counts change only inside Lua
// scripts.
type RedisTable struct {
	redis      redis.UniversalClient
	prefix     string
	terminated TerminatedFunc
}

// NewRedisTable returns a table storing sessions under prefix.
func NewRedisTable(client redis.UniversalClient, prefix string, terminated TerminatedFunc) *RedisTable {
	if prefix == "" {
		prefix = "lsa"
	}
	return &RedisTable{
		redis:      client,
		prefix:     prefix,
		terminated: terminated,
	}
}

func (t *RedisTable) key(authID ident.LUID) string {
	return t.prefix + ":logon:" + strconv.FormatUint(uint64(authID), 16)
}

// Create stores s with zero references.
func (t *RedisTable) Create(ctx context.Context, s *LogonSession) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	created, err := createSessionLua.Run(ctx, t.redis, []string{t.key(s.AuthID)}, data).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if created == 0 {
		return ErrLogonSessionExists
	}
	return nil
}

// Reference increments the session's reference count.
func (t *RedisTable) Reference(ctx context.Context, authID ident.LUID) error {
	res, err := referenceSessionLua.Run(ctx, t.redis, []string{t.key(authID)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == statusMissing {
		return ErrNoSuchLogonSession
	}
	return nil
}

// Dereference decrements the reference count. The session is deleted in the
// same script that observes the count reaching zero.
func (t *RedisTable) Dereference(ctx context.Context, authID ident.LUID) error {
	res, err := dereferenceSessionLua.Run(ctx, t.redis, []string{t.key(authID)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch res {
	case statusMissing:
		return ErrNoSuchLogonSession
	case statusUnderrun:
		return ErrBadLogonSessionState
	case 0:
		if t.terminated != nil {
			t.terminated(ctx, authID)
		}
	}
	return nil
}

// Delete removes a session that has no references.
func (t *RedisTable) Delete(ctx context.Context, authID ident.LUID) error {
	res, err := deleteSessionLua.Run(ctx, t.redis, []string{t.key(authID)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch res {
	case statusMissing:
		return ErrNoSuchLogonSession
	case statusBusy:
		return ErrBadLogonSessionState
	}
	return nil
}

// Get loads the session and its reference count.
func (t *RedisTable) Get(ctx context.Context, authID ident.LUID) (*LogonSession, error) {
	vals, err := t.redis.HMGet(ctx, t.key(authID), "data", "refs").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSuchLogonSession
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, ErrNoSuchLogonSession
	}
	s, err := Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	if refs, ok := vals[1].(string); ok {
		s.References, err = strconv.ParseInt(refs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: refs %q", ErrInvalidRecord, refs)
		}
	}
	return s, nil
}
