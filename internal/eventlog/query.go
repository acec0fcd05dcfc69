package eventlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
)

func (s *Store) entries() *gorm.DB {
	return s.db.Model(&models.LogEntry{}).
		Preload("Material", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("counter ASC")
}

// GetLog returns every entry with a counter greater than afterCounter.
func (s *Store) GetLog(afterCounter int64) ([]models.LogEntry, error) {
	var out []models.LogEntry
	if err := s.entries().Where("counter > ?", afterCounter).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: get log: %w", err)
	}
	return out, nil
}

// GetLogEntries returns entries with start <= time < end.
func (s *Store) GetLogEntries(start, end time.Time) ([]models.LogEntry, error) {
	var out []models.LogEntry
	err := s.entries().
		Where("time_utc >= ? AND time_utc < ?", start.UTC(), end.UTC()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: get log entries: %w", err)
	}
	return out, nil
}

// GetLogForMaterial returns every entry that references the material.
func (s *Store) GetLogForMaterial(id int64) ([]models.LogEntry, error) {
	var out []models.LogEntry
	err := s.entries().
		Where("counter IN (?)", s.db.Model(&models.LogMaterial{}).Select("counter").Where("material_id = ?", id)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: log for material %d: %w", id, err)
	}
	return out, nil
}

// GetLogForJobs returns every entry that references material of the jobs.
func (s *Store) GetLogForJobs(uniques []string) ([]models.LogEntry, error) {
	if len(uniques) == 0 {
		return nil, nil
	}
	var out []models.LogEntry
	err := s.entries().
		Where("counter IN (?)", s.db.Model(&models.LogMaterial{}).Select("counter").Where("job_unique IN ?", uniques)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: log for jobs: %w", err)
	}
	return out, nil
}

// GetLogForSerial returns the log of every material carrying serial.
func (s *Store) GetLogForSerial(serial string) ([]models.LogEntry, error) {
	return s.logForMaterialColumn("serial", serial)
}

// GetLogForWorkorder returns the log of every material assigned to workorder.
func (s *Store) GetLogForWorkorder(workorder string) ([]models.LogEntry, error) {
	return s.logForMaterialColumn("workorder", workorder)
}

func (s *Store) logForMaterialColumn(column, value string) ([]models.LogEntry, error) {
	var out []models.LogEntry
	ids := s.db.Model(&models.Material{}).Select("id").Where(column+" = ?", value)
	err := s.entries().
		Where("counter IN (?)", s.db.Model(&models.LogMaterial{}).Select("counter").Where("material_id IN (?)", ids)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: log for %s %q: %w", column, value, err)
	}
	return out, nil
}

// LastPalletCycle returns the most recent pallet-cycle entry for pallet, or
// nil if the pallet has never cycled.
func (s *Store) LastPalletCycle(pallet string) (*models.LogEntry, error) {
	var e models.LogEntry
	err := s.db.Where("pallet = ? AND type = ?", pallet, models.LogPalletCycle).
		Order("counter DESC").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: last pallet cycle %s: %w", pallet, err)
	}
	return &e, nil
}

// GetLogForPallet returns the pallet's entries after its last pallet-cycle.
func (s *Store) GetLogForPallet(pallet string) ([]models.LogEntry, error) {
	last, err := s.LastPalletCycle(pallet)
	if err != nil {
		return nil, err
	}
	var after int64
	if last != nil {
		after = last.Counter
	}
	var out []models.LogEntry
	err = s.entries().Where("pallet = ? AND counter > ?", pallet, after).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: log for pallet %s: %w", pallet, err)
	}
	return out, nil
}

// MaterialOnPallet replays the pallet's current cycle and returns the
// material that is loaded and not yet unloaded, in load order.
func (s *Store) MaterialOnPallet(pallet string) ([]models.LogMaterial, error) {
	entries, err := s.GetLogForPallet(pallet)
	if err != nil {
		return nil, err
	}
	return MaterialOnPallet(entries), nil
}

// MaterialOnPallet computes loaded material from a pallet's cycle entries.
func MaterialOnPallet(entries []models.LogEntry) []models.LogMaterial {
	var order []int64
	loaded := map[int64]models.LogMaterial{}
	for _, e := range entries {
		switch e.Type {
		case models.LogLoadEnd:
			for _, m := range e.Material {
				if _, ok := loaded[m.MaterialID]; !ok {
					order = append(order, m.MaterialID)
				}
				loaded[m.MaterialID] = m
			}
		case models.LogUnloadEnd:
			for _, m := range e.Material {
				delete(loaded, m.MaterialID)
			}
		}
	}
	var out []models.LogMaterial
	for _, id := range order {
		if m, ok := loaded[id]; ok {
			out = append(out, m)
			delete(loaded, id)
		}
	}
	return out
}

// LastCounter returns the highest counter in the log, or 0 when it is empty.
func (s *Store) LastCounter() (int64, error) {
	var c *int64
	if err := s.db.Model(&models.LogEntry{}).Select("MAX(counter)").Scan(&c).Error; err != nil {
		return 0, fmt.Errorf("eventlog: last counter: %w", err)
	}
	if c == nil {
		return 0, nil
	}
	return *c, nil
}
