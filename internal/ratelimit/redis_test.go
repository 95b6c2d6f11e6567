package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestRedisStorageDrainsAndRefills(t *testing.T) {
	rc := testRedis(t)
	key := fmt.Sprintf("test-bucket-%d", time.Now().UnixNano())
	t.Cleanup(func() { rc.Del(context.Background(), "ratelimit:"+key) })

	l := NewLimiter(10, 2, NewRedisStorage(rc))

	require.True(t, l.Consume(key, 1))
	require.True(t, l.Consume(key, 1))
	assert.False(t, l.Consume(key, 1))

	// 10 tokens/sec: one token is back well within 200ms
	time.Sleep(200 * time.Millisecond)
	assert.True(t, l.Consume(key, 1))
}

func TestRedisStorageSharedAcrossLimiters(t *testing.T) {
	rc := testRedis(t)
	key := fmt.Sprintf("test-shared-%d", time.Now().UnixNano())
	t.Cleanup(func() { rc.Del(context.Background(), "ratelimit:"+key) })

	a := NewLimiter(1, 2, NewRedisStorage(rc))
	b := NewLimiter(1, 2, NewRedisStorage(rc))

	require.True(t, a.Consume(key, 1))
	require.True(t, b.Consume(key, 1))
	// both limiters drew from the same bucket
	assert.False(t, a.Consume(key, 1))
	assert.False(t, b.Consume(key, 1))
}
