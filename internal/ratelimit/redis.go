package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStorage keeps bucket state in a shared Redis so several workers can
// draw from the same budget. The refill-and-consume step runs as a Lua
// script, which makes the read-modify-write atomic on the server.
type RedisStorage struct {
	client  redis.Scripter
	timeout time.Duration
}

// NewRedisStorage wraps a go-redis client (or anything that can Eval).
func NewRedisStorage(client redis.Scripter) *RedisStorage {
	return &RedisStorage{
		client:  client,
		timeout: 2 * time.Second,
	}
}

// consumeScript applies refill since the stored timestamp and takes n tokens
// when enough remain. Time is supplied by the caller in microseconds so the
// arithmetic matches the in-memory backend. Returns 1 on admission, 0 on
// denial.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local n = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

local elapsed = (now - last) / 1000000.0
if elapsed < 0 then elapsed = 0 end
tokens = tokens + elapsed * rate
if tokens > capacity then tokens = capacity end

local admitted = 0
if tokens >= n then
  tokens = tokens - n
  admitted = 1
end
redis.call('HSET', key, 'tokens', tokens, 'last', now)
return admitted
`)

// Consume implements Storage.
func (r *RedisStorage) Consume(key string, n, rate, capacity float64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	now := time.Now().UnixMicro()
	res, err := consumeScript.Run(ctx, r.client,
		[]string{"ratelimit:" + key}, n, rate, capacity, now).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
