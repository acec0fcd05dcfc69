// Package decrement removes the not-yet-started quantity from jobs so that
// the cell stops starting new material for them.
package decrement

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
)

// Options filters which jobs are decremented. An empty JobUniques means
// every unarchived job.
type Options struct {
	JobUniques []string `json:"job_uniques,omitempty"`
}

// Mark selects decrements after an id or after a time. Exactly one of the
// fields is set.
type Mark struct {
	AfterID   *int64
	AfterTime *time.Time
}

// Engine applies and reads decrements.
type Engine struct {
	jobs *jobs.Store
	log  *eventlog.Store
}

// New returns an Engine.
func New(js *jobs.Store, log *eventlog.Store) *Engine {
	return &Engine{jobs: js, log: log}
}

// Decrement records, for every selected job and process-1 path, the
// quantity not yet started or assigned, reducing its outstanding demand to
// zero. Paths with nothing outstanding get no record. The records and their
// log entries commit together.
func (e *Engine) Decrement(opts Options, now time.Time) ([]models.Decrement, error) {
	list, err := e.jobs.LoadUnarchivedJobs()
	if err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, u := range opts.JobUniques {
		want[u] = true
	}

	var decs []models.Decrement
	for i := range list {
		j := &list[i]
		if len(want) > 0 && !want[j.Unique] {
			continue
		}
		if len(j.Processes) == 0 {
			continue
		}
		for path := 1; path <= len(j.Processes[0].Paths); path++ {
			remaining, err := e.jobs.RemainingQuantity(j, path, e.log)
			if err != nil {
				return nil, err
			}
			pending, err := e.log.PendingQuantity(j.Unique, path)
			if err != nil {
				return nil, err
			}
			if qty := remaining - pending; qty > 0 {
				decs = append(decs, models.Decrement{
					JobUnique: j.Unique,
					Proc1Path: path,
					PartName:  j.PartName,
					Quantity:  qty,
					TimeUTC:   now.UTC(),
				})
			}
		}
	}

	var saved []models.Decrement
	err = e.log.Transaction(func(tx *eventlog.Store) error {
		var err error
		saved, err = e.jobs.AddDecrements(tx.DB(), decs)
		if err != nil {
			return err
		}
		for _, d := range saved {
			_, err := tx.RecordEvent(eventlog.EventOpts{
				Type:    models.LogDecrement,
				LocName: "Decrement",
				LocNum:  1,
				Program: d.JobUnique,
				Result:  strconv.Itoa(d.Quantity),
				Time:    d.TimeUTC,
				Details: map[string]string{
					"job_unique":   d.JobUnique,
					"proc1_path":   strconv.Itoa(d.Proc1Path),
					"decrement_id": strconv.FormatInt(d.ID, 10),
				},
			})
			if err != nil {
				return fmt.Errorf("decrement: log %d: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// LoadAfter returns the decrements strictly after the mark in insertion
// order.
func (e *Engine) LoadAfter(m Mark) ([]models.Decrement, error) {
	switch {
	case m.AfterID != nil && m.AfterTime != nil:
		return nil, errors.New("decrement: set after id or after time, not both")
	case m.AfterID != nil:
		return e.jobs.LoadDecrementsAfterID(*m.AfterID)
	case m.AfterTime != nil:
		return e.jobs.LoadDecrementsAfterTime(*m.AfterTime)
	default:
		return e.jobs.LoadDecrementsAfterID(0)
	}
}
