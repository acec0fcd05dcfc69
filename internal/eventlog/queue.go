package eventlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
)

// QueuedMaterial is a queue entry joined with its material.
type QueuedMaterial struct {
	MaterialID   int64     `json:"material_id"`
	Queue        string    `json:"queue"`
	Position     int       `json:"position"`
	AddTimeUTC   time.Time `json:"add_time_utc"`
	JobUnique    string    `json:"job_unique,omitempty"`
	PartName     string    `json:"part"`
	NumProcesses int       `json:"num_processes"`
	Serial       string    `json:"serial,omitempty"`
	Workorder    string    `json:"workorder,omitempty"`
}

// RecordAddMaterialToQueue places material in queue at position, removing
// it from any queue it is currently in. A position below zero or past the
// end appends. The queue-remove (if any) and queue-add entries are returned.
func (s *Store) RecordAddMaterialToQueue(id int64, process int, queue string, position int, t time.Time) ([]models.LogEntry, error) {
	var out []models.LogEntry
	err := s.Transaction(func(tx *Store) error {
		removed, err := tx.removeFromQueues(id, t)
		if err != nil {
			return err
		}
		out = append(out, removed...)

		var n int64
		if err := tx.db.Model(&models.QueueEntry{}).Where("queue = ?", queue).Count(&n).Error; err != nil {
			return err
		}
		if position < 0 || position > int(n) {
			position = int(n)
		}
		if err := tx.db.Model(&models.QueueEntry{}).
			Where("queue = ? AND position >= ?", queue, position).
			Update("position", gorm.Expr("position + 1")).Error; err != nil {
			return err
		}
		when := tx.timeOrNow(t)
		if err := tx.db.Create(&models.QueueEntry{
			MaterialID: id,
			Queue:      queue,
			Position:   position,
			AddTimeUTC: when,
		}).Error; err != nil {
			return err
		}

		mat, err := tx.snapshot(id, process)
		if err != nil {
			return err
		}
		entry, err := tx.RecordEvent(EventOpts{
			Type:     models.LogQueueAdd,
			LocName:  queue,
			LocNum:   position,
			Time:     when,
			Material: []models.LogMaterial{mat},
		})
		if err != nil {
			return err
		}
		out = append(out, *entry)
		return tx.checkDense(queue)
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: add material %d to queue %s: %w", id, queue, err)
	}
	return out, nil
}

// RecordRemoveMaterialFromAllQueues removes material from whatever queue it
// is in. Removing material that is in no queue is a no-op.
func (s *Store) RecordRemoveMaterialFromAllQueues(id int64, t time.Time) ([]models.LogEntry, error) {
	var out []models.LogEntry
	err := s.Transaction(func(tx *Store) error {
		var err error
		out, err = tx.removeFromQueues(id, t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: remove material %d from queues: %w", id, err)
	}
	return out, nil
}

func (s *Store) removeFromQueues(id int64, t time.Time) ([]models.LogEntry, error) {
	var qe models.QueueEntry
	err := s.db.First(&qe, "material_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.Delete(&models.QueueEntry{}, "material_id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.QueueEntry{}).
		Where("queue = ? AND position > ?", qe.Queue, qe.Position).
		Update("position", gorm.Expr("position - 1")).Error; err != nil {
		return nil, err
	}

	proc, err := s.LatestProcess(id)
	if err != nil {
		return nil, err
	}
	mat, err := s.snapshot(id, proc)
	if err != nil {
		return nil, err
	}
	when := s.timeOrNow(t)
	entry, err := s.RecordEvent(EventOpts{
		Type:     models.LogQueueRemove,
		LocName:  qe.Queue,
		LocNum:   qe.Position,
		Time:     when,
		Elapsed:  when.Sub(qe.AddTimeUTC),
		Material: []models.LogMaterial{mat},
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkDense(qe.Queue); err != nil {
		return nil, err
	}
	return []models.LogEntry{*entry}, nil
}

func (s *Store) checkDense(queue string) error {
	var positions []int
	if err := s.db.Model(&models.QueueEntry{}).
		Where("queue = ?", queue).
		Order("position ASC").
		Pluck("position", &positions).Error; err != nil {
		return err
	}
	for i, p := range positions {
		if p != i {
			return fmt.Errorf("queue %s position %d holds %d: %w", queue, i, p, ErrQueueGap)
		}
	}
	return nil
}

func (s *Store) queued() *gorm.DB {
	return s.db.Table("queue_entries").
		Select("queue_entries.material_id, queue_entries.queue, queue_entries.position, queue_entries.add_time_utc, " +
			"materials.job_unique, materials.part_name, materials.num_processes, materials.serial, materials.workorder").
		Joins("JOIN materials ON materials.id = queue_entries.material_id")
}

// GetMaterialInQueue returns the material in queue ordered by position.
func (s *Store) GetMaterialInQueue(queue string) ([]QueuedMaterial, error) {
	var out []QueuedMaterial
	err := s.queued().
		Where("queue_entries.queue = ?", queue).
		Order("queue_entries.position ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: material in queue %s: %w", queue, err)
	}
	return out, nil
}

// GetMaterialInAllQueues returns all queued material ordered by queue name
// then position.
func (s *Store) GetMaterialInAllQueues() ([]QueuedMaterial, error) {
	var out []QueuedMaterial
	err := s.queued().
		Order("queue_entries.queue ASC, queue_entries.position ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: material in all queues: %w", err)
	}
	return out, nil
}
