package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCache stores compressed bodies as opaque values in a shared Redis.
type RedisCache struct {
	client  *redis.Client
	codec   Codec
	timeout time.Duration
}

// NewRedisCache wraps an existing go-redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		codec:   BrotliCodec{},
		timeout: 5 * time.Second,
	}
}

// Write implements Cache.
func (r *RedisCache) Write(key string, value []byte) error {
	enc, err := r.codec.Encode(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, "cache:"+key, enc, 0).Err()
}

// Read implements Cache.
func (r *RedisCache) Read(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	b, err := r.client.Get(ctx, "cache:"+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	dec, err := r.codec.Decode(b)
	if err != nil {
		return nil, false, err
	}
	return dec, true, nil
}
