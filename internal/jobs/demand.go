package jobs

import (
	"fmt"
	"time"

	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
)

// Usage reports how much of a process-1 path has already been used.
type Usage interface {
	StartedQuantity(unique string, path int) (int, error)
	PendingQuantity(unique string, path int) (int, error)
}

// LoadOutstandingDemand returns the quantity of the job's process-1 path
// still to be started: planned minus decremented, started, and pending,
// floored at zero. A held path has no outstanding demand.
func (s *Store) LoadOutstandingDemand(unique string, path int, usage Usage, now time.Time) (int, error) {
	j, err := s.LoadJob(unique)
	if err != nil {
		return 0, err
	}
	return s.OutstandingDemand(j, path, usage, now)
}

// OutstandingDemand is LoadOutstandingDemand for an already loaded job.
func (s *Store) OutstandingDemand(j *models.Job, path int, usage Usage, now time.Time) (int, error) {
	if j.Archived {
		return 0, nil
	}
	p, ok := j.PathInfo(1, path)
	if !ok {
		return 0, fmt.Errorf("jobs: demand %q path %d: %w", j.Unique, path, ErrInvalidJob)
	}
	if PathHeld(j, 1, path, now) {
		return 0, nil
	}
	dec, err := s.DecrementedQuantity(j.Unique, path)
	if err != nil {
		return 0, err
	}
	started, err := usage.StartedQuantity(j.Unique, path)
	if err != nil {
		return 0, err
	}
	pending, err := usage.PendingQuantity(j.Unique, path)
	if err != nil {
		return 0, err
	}
	remaining := p.PlannedQuantity - dec - started - pending
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RemainingQuantity is planned minus decremented and started, ignoring holds
// and pending loads. Decrements record this quantity.
func (s *Store) RemainingQuantity(j *models.Job, path int, usage Usage) (int, error) {
	p, ok := j.PathInfo(1, path)
	if !ok {
		return 0, fmt.Errorf("jobs: remaining %q path %d: %w", j.Unique, path, ErrInvalidJob)
	}
	dec, err := s.DecrementedQuantity(j.Unique, path)
	if err != nil {
		return 0, err
	}
	started, err := usage.StartedQuantity(j.Unique, path)
	if err != nil {
		return 0, err
	}
	remaining := p.PlannedQuantity - dec - started
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// AddDecrements appends decrement records, assigning each its own id. A
// non-nil tx makes the records commit or roll back with the caller's
// transaction.
func (s *Store) AddDecrements(tx *gorm.DB, decs []models.Decrement) ([]models.Decrement, error) {
	if tx == nil {
		tx = s.db
	}
	if len(decs) == 0 {
		return nil, nil
	}
	out := make([]models.Decrement, len(decs))
	copy(out, decs)
	for i := range out {
		out[i].ID = 0
		if out[i].TimeUTC.IsZero() {
			out[i].TimeUTC = s.now()
		}
		out[i].TimeUTC = out[i].TimeUTC.UTC()
	}
	if err := tx.Create(&out).Error; err != nil {
		return nil, fmt.Errorf("jobs: add decrements: %w", err)
	}
	return out, nil
}

// LoadDecrementsAfterID returns decrements with id greater than afterID in
// insertion order.
func (s *Store) LoadDecrementsAfterID(afterID int64) ([]models.Decrement, error) {
	var out []models.Decrement
	if err := s.db.Where("id > ?", afterID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("jobs: decrements after id %d: %w", afterID, err)
	}
	return out, nil
}

// LoadDecrementsAfterTime returns decrements recorded strictly after t in
// insertion order.
func (s *Store) LoadDecrementsAfterTime(t time.Time) ([]models.Decrement, error) {
	var out []models.Decrement
	if err := s.db.Where("time_utc > ?", t.UTC()).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("jobs: decrements after %s: %w", t.Format(time.RFC3339), err)
	}
	return out, nil
}

// DecrementedQuantity sums the decrements of a job's process-1 path.
func (s *Store) DecrementedQuantity(unique string, path int) (int, error) {
	var total *int
	err := s.db.Model(&models.Decrement{}).
		Where("job_unique = ? AND proc1_path = ?", unique, path).
		Select("SUM(quantity)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("jobs: decremented %q path %d: %w", unique, path, err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
