package models

import "time"

// ControllerLock is the row backing the cross-process controller lock.
type ControllerLock struct {
	Name       string `gorm:"primaryKey;size:64"`
	Holder     string `gorm:"size:64;not null"`
	AcquiredAt time.Time
	ExpiresAt  time.Time `gorm:"index"`
}
