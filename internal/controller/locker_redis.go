package controller

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker keeps the lock as a Redis key set with NX and a TTL. Release
// only deletes the key if it still holds this holder's token.
type RedisLocker struct {
	client redis.UniversalClient
	key    string
	name   string
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker returns a RedisLocker for the named lock.
func NewRedisLocker(client redis.UniversalClient, name string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{
		client: client,
		key:    "cellwatch:lock:" + name,
		name:   name,
		ttl:    ttl,
		poll:   defaultLockPoll,
	}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	token := uuid.NewString()
	err := pollUntil(ctx, l.name, wait, l.poll, func() (bool, error) {
		return l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlockScript.Run(context.Background(), l.client, []string{l.key}, token).Err(); err != nil {
			log.Printf("controller: release lock %s: %v", l.name, err)
		}
	}, nil
}
