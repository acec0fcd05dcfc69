package controller

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBLocker keeps the lock as a row in controller_locks. A row past its
// expiry is treated as abandoned and may be taken over.
type DBLocker struct {
	db   *gorm.DB
	name string
	ttl  time.Duration
	poll time.Duration
}

// NewDBLocker returns a DBLocker for the named lock.
func NewDBLocker(db *gorm.DB, name string, ttl time.Duration) *DBLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DBLocker{db: db, name: name, ttl: ttl, poll: defaultLockPoll}
}

// Acquire implements Locker.
func (l *DBLocker) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	token := uuid.NewString()
	err := pollUntil(ctx, l.name, wait, l.poll, func() (bool, error) {
		return l.tryAcquire(token)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.db.Where("name = ? AND holder = ?", l.name, token).Delete(&models.ControllerLock{}).Error; err != nil {
			log.Printf("controller: release lock %s: %v", l.name, err)
		}
	}, nil
}

func (l *DBLocker) tryAcquire(token string) (bool, error) {
	acquired := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		// Expire abandoned holders.
		if err := tx.Where("name = ? AND expires_at < ?", l.name, now).
			Delete(&models.ControllerLock{}).Error; err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ControllerLock{
			Name:       l.name,
			Holder:     token,
			AcquiredAt: now,
			ExpiresAt:  now.Add(l.ttl),
		})
		if result.Error != nil {
			return result.Error
		}
		acquired = result.RowsAffected == 1
		return nil
	})
	return acquired, err
}
