package eventlog

import (
	"fmt"

	"github.com/zulandar/cellwatch/internal/models"
)

// AddPendingLoads records face assignments that have been routed but not
// yet loaded. A material can be claimed by at most one pending load.
func (s *Store) AddPendingLoads(loads []models.PendingLoad) error {
	if len(loads) == 0 {
		return nil
	}
	return s.Transaction(func(tx *Store) error {
		for i := range loads {
			loads[i].ID = 0
			if err := tx.db.Create(&loads[i]).Error; err != nil {
				return fmt.Errorf("eventlog: add pending load %s face %d: %w", loads[i].Pallet, loads[i].Face, err)
			}
		}
		return nil
	})
}

// PendingLoads returns the pallet's pending loads ordered by face.
func (s *Store) PendingLoads(pallet string) ([]models.PendingLoad, error) {
	var out []models.PendingLoad
	if err := s.db.Where("pallet = ?", pallet).Order("face ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: pending loads %s: %w", pallet, err)
	}
	return out, nil
}

// AllPendingLoads returns every pending load.
func (s *Store) AllPendingLoads() ([]models.PendingLoad, error) {
	var out []models.PendingLoad
	if err := s.db.Order("pallet ASC, face ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: all pending loads: %w", err)
	}
	return out, nil
}

// ClearPendingLoads removes the pallet's pending loads.
func (s *Store) ClearPendingLoads(pallet string) error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.db.Where("pallet = ?", pallet).Delete(&models.PendingLoad{}).Error; err != nil {
			return fmt.Errorf("eventlog: clear pending loads %s: %w", pallet, err)
		}
		return nil
	})
}

// StartedQuantity counts distinct material with a process-1 load-end on the
// job's path.
func (s *Store) StartedQuantity(unique string, path int) (int, error) {
	var n int64
	err := s.db.Model(&models.LogMaterial{}).
		Joins("JOIN log_entries ON log_entries.counter = log_materials.counter").
		Where("log_entries.type = ? AND log_materials.job_unique = ? AND log_materials.process = 1 AND log_materials.path = ?",
			models.LogLoadEnd, unique, path).
		Distinct("log_materials.material_id").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("eventlog: started quantity %s/%d: %w", unique, path, err)
	}
	return int(n), nil
}

// PendingQuantity counts process-1 pending loads on the job's path.
func (s *Store) PendingQuantity(unique string, path int) (int, error) {
	var n int64
	err := s.db.Model(&models.PendingLoad{}).
		Where("job_unique = ? AND process = 1 AND path = ?", unique, path).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("eventlog: pending quantity %s/%d: %w", unique, path, err)
	}
	return int(n), nil
}
