package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/cellwatch/internal/config"
	"gorm.io/gorm"
)

// ErrBusy is returned when the controller lock could not be acquired within
// the allowed wait. The caller made no changes and may retry.
var ErrBusy = errors.New("controller busy")

const defaultLockPoll = 100 * time.Millisecond

// Locker is a named, cross-process lock around controller access.
type Locker interface {
	// Acquire blocks until the lock is held or wait elapses. The returned
	// func releases the lock.
	Acquire(ctx context.Context, wait time.Duration) (func(), error)
}

// OpenLocker returns the locker selected by cfg. The db backend stores the
// lock in db.
func OpenLocker(cfg config.LockConfig, db *gorm.DB) (Locker, error) {
	switch cfg.Backend {
	case "db", "":
		return NewDBLocker(db, cfg.Name, cfg.TTL), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("controller: redis url: %w", err)
		}
		return NewRedisLocker(redis.NewClient(opts), cfg.Name, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("controller: unsupported lock backend %q", cfg.Backend)
	}
}

// pollUntil calls try every poll until it succeeds, fails, or wait elapses.
func pollUntil(ctx context.Context, name string, wait, poll time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return fmt.Errorf("controller: lock %s: %w", name, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("controller: lock %s: %w", name, ErrBusy)
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
