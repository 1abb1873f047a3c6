// Package redisrepo backs the session entries with redis for
// deployments where more than one process needs to observe the same
// session (a logout in one process is visible to the others on their
// next read).
package redisrepo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/kinnstay/booking-workflow/storage"
)

var _ storage.Repo = (*RedisRepo)(nil)

type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis at addr. A zero ttl stores entries without
// expiry; otherwise entries lapse on their own, which doubles as a
// crude session timeout.
func New(addr, password string, db int, ttl time.Duration) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "[redisrepo.New] ping")
	}
	return &RedisRepo{client: client, ttl: ttl}, nil
}

func (rr *RedisRepo) Set(key string, value []byte) error {
	if err := rr.client.Set(context.Background(), key, value, rr.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Set] client.Set")
	}
	return nil
}

func (rr *RedisRepo) Get(key string) ([]byte, error) {
	data, err := rr.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Get] client.Get")
	}
	return data, nil
}

func (rr *RedisRepo) Delete(key string) error {
	if err := rr.client.Del(context.Background(), key).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete] client.Del")
	}
	return nil
}

// Close releases the underlying connection pool.
func (rr *RedisRepo) Close() error {
	return rr.client.Close()
}
