package localstore

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores values in Redis under a key prefix, optionally expiring them.
type Redis struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func (r Redis) key(k string) string {
	return r.Prefix + k
}

func (r Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if r.Client == nil {
		return nil, errors.New("localstore: redis client not configured")
	}
	data, err := r.Client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r Redis) Set(ctx context.Context, key string, value []byte) error {
	if r.Client == nil {
		return errors.New("localstore: redis client not configured")
	}
	return r.Client.Set(ctx, r.key(key), value, r.TTL).Err()
}

func (r Redis) Delete(ctx context.Context, key string) error {
	if r.Client == nil {
		return errors.New("localstore: redis client not configured")
	}
	return r.Client.Del(ctx, r.key(key)).Err()
}
