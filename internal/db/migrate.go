package db

import (
	"fmt"

	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Material{},
		&models.QueueEntry{},
		&models.PendingLoad{},
		&models.LogEntry{},
		&models.LogMaterial{},
		&models.Job{},
		&models.Schedule{},
		&models.Decrement{},
		&models.ControllerLock{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
