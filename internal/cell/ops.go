package cell

import (
	"context"
	"fmt"
	"sort"

	"github.com/zulandar/cellwatch/internal/decrement"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
	"github.com/zulandar/cellwatch/internal/status"
)

func (c *Cell) checkQueue(queue string) error {
	if !c.queues[queue] {
		return fmt.Errorf("cell: %q: %w", queue, ErrUnknownQueue)
	}
	return nil
}

// AddJobs stores a new schedule of jobs. Every input and output queue the
// jobs name must be declared. It returns the schedule id.
func (c *Cell) AddJobs(ctx context.Context, nj jobs.NewJobs, expectedPrevious string) (string, error) {
	for _, j := range nj.Jobs {
		for _, proc := range j.Processes {
			for _, path := range proc.Paths {
				for _, q := range []string{path.InputQueue, path.OutputQueue} {
					if q == "" {
						continue
					}
					if err := c.checkQueue(q); err != nil {
						return "", fmt.Errorf("cell: job %s: %w", j.Unique, err)
					}
				}
			}
		}
	}
	var id string
	err := c.mutate(ctx, func() error {
		var err error
		id, err = c.jobs.AddJobs(nj, expectedPrevious)
		return err
	})
	return id, err
}

// ArchiveJob hides a job from planning and status.
func (c *Cell) ArchiveJob(ctx context.Context, unique string) error {
	return c.mutate(ctx, func() error {
		return c.jobs.ArchiveJob(unique)
	})
}

// AddUnallocatedCastingToQueue creates a casting of part not yet assigned
// to any job and puts it in queue at position. A non-empty serial is
// recorded for it.
func (c *Cell) AddUnallocatedCastingToQueue(ctx context.Context, part, queue string, position int, serial string) (*eventlog.QueuedMaterial, error) {
	if err := c.checkQueue(queue); err != nil {
		return nil, err
	}
	var id int64
	err := c.mutate(ctx, func() error {
		return c.log.Transaction(func(tx *eventlog.Store) error {
			var err error
			id, err = tx.AllocateMaterialIDForCasting(part)
			if err != nil {
				return err
			}
			return c.enqueueNew(tx, id, 0, queue, position, serial)
		})
	})
	if err != nil {
		return nil, err
	}
	return c.queuedMaterial(id)
}

// AddUnprocessedMaterialToQueue creates material for job unique that has
// completed lastProcess (0 for raw material) and puts it in queue.
func (c *Cell) AddUnprocessedMaterialToQueue(ctx context.Context, unique string, lastProcess int, queue string, position int, serial string) (*eventlog.QueuedMaterial, error) {
	if err := c.checkQueue(queue); err != nil {
		return nil, err
	}
	var id int64
	err := c.mutate(ctx, func() error {
		job, err := c.jobs.LoadJob(unique)
		if err != nil {
			return err
		}
		if lastProcess < 0 || lastProcess >= job.NumProcesses() {
			return fmt.Errorf("cell: job %s has %d processes, last process %d: %w",
				unique, job.NumProcesses(), lastProcess, ErrInvalidArgument)
		}
		return c.log.Transaction(func(tx *eventlog.Store) error {
			id, err = tx.AllocateMaterialID(job.Unique, job.PartName, job.NumProcesses())
			if err != nil {
				return err
			}
			return c.enqueueNew(tx, id, lastProcess, queue, position, serial)
		})
	})
	if err != nil {
		return nil, err
	}
	return c.queuedMaterial(id)
}

func (c *Cell) enqueueNew(tx *eventlog.Store, id int64, process int, queue string, position int, serial string) error {
	now := c.now()
	if serial != "" {
		if _, err := tx.RecordSerialForMaterialID(id, serial, now); err != nil {
			return err
		}
	}
	_, err := tx.RecordAddMaterialToQueue(id, process, queue, position, now)
	return err
}

// SetMaterialInQueue moves existing material to position in queue, at the
// process its log last shows.
func (c *Cell) SetMaterialInQueue(ctx context.Context, id int64, queue string, position int) error {
	if err := c.checkQueue(queue); err != nil {
		return err
	}
	return c.mutate(ctx, func() error {
		if _, err := c.log.GetMaterial(id); err != nil {
			return err
		}
		proc, err := c.log.LatestProcess(id)
		if err != nil {
			return err
		}
		_, err = c.log.RecordAddMaterialToQueue(id, proc, queue, position, c.now())
		return err
	})
}

// RemoveMaterialFromAllQueues takes material out of whatever queue holds it.
func (c *Cell) RemoveMaterialFromAllQueues(ctx context.Context, id int64) error {
	return c.mutate(ctx, func() error {
		if _, err := c.log.GetMaterial(id); err != nil {
			return err
		}
		_, err := c.log.RecordRemoveMaterialFromAllQueues(id, c.now())
		return err
	})
}

// DecrementJobQuantities removes the unstarted quantity of the selected
// jobs and returns every decrement after mark, including the new ones.
func (c *Cell) DecrementJobQuantities(ctx context.Context, mark decrement.Mark, opts decrement.Options) ([]models.Decrement, error) {
	if mark.AfterID != nil && mark.AfterTime != nil {
		return nil, fmt.Errorf("cell: decrement: both after id and after time set: %w", ErrInvalidArgument)
	}
	err := c.mutate(ctx, func() error {
		_, err := c.dec.Decrement(opts, c.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.dec.LoadAfter(mark)
}

// GetLog returns log entries with a counter above after.
func (c *Cell) GetLog(after int64) ([]models.LogEntry, error) {
	return c.log.GetLog(after)
}

// GetLogForMaterial returns every log entry naming material id.
func (c *Cell) GetLogForMaterial(id int64) ([]models.LogEntry, error) {
	if _, err := c.log.GetMaterial(id); err != nil {
		return nil, err
	}
	return c.log.GetLogForMaterial(id)
}

func (c *Cell) queuedMaterial(id int64) (*eventlog.QueuedMaterial, error) {
	all, err := c.log.GetMaterialInAllQueues()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].MaterialID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("cell: material %d: %w", id, eventlog.ErrMaterialNotFound)
}

// GetCurrentStatus builds the status from the store and the last
// observation. It does not touch the controller.
func (c *Cell) GetCurrentStatus(ctx context.Context) (*status.CurrentStatus, error) {
	if err := c.lock(ctx); err != nil {
		return nil, err
	}
	in, err := c.statusInput()
	c.unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return status.Build(in), nil
}

func (c *Cell) statusInput() (status.Input, error) {
	in := status.Input{
		Now:            c.now(),
		Observation:    c.lastObs,
		Faults:         c.faults,
		QueueSyncFault: c.queueSyncFault,
		OnPallet:       map[string][]models.LogMaterial{},
		Materials:      map[int64]models.Material{},
	}
	var err error
	if in.LatestScheduleID, err = c.jobs.LatestScheduleID(); err != nil {
		return in, err
	}
	if in.Jobs, err = c.jobs.LoadUnarchivedJobs(); err != nil {
		return in, err
	}
	uniques := make([]string, 0, len(in.Jobs))
	active := map[string]bool{}
	for _, j := range in.Jobs {
		uniques = append(uniques, j.Unique)
		active[j.Unique] = true
	}
	if in.Log, err = c.log.GetLogForJobs(uniques); err != nil {
		return in, err
	}
	decs, err := c.dec.LoadAfter(decrement.Mark{})
	if err != nil {
		return in, err
	}
	for _, d := range decs {
		if active[d.JobUnique] {
			in.Decrements = append(in.Decrements, d)
		}
	}
	if in.Queued, err = c.log.GetMaterialInAllQueues(); err != nil {
		return in, err
	}
	if in.Pending, err = c.log.AllPendingLoads(); err != nil {
		return in, err
	}

	ids := map[int64]bool{}
	for _, q := range in.Queued {
		ids[q.MaterialID] = true
	}
	if c.lastObs != nil {
		for _, p := range c.lastObs.Pallets {
			mats, err := c.log.MaterialOnPallet(p.Pallet)
			if err != nil {
				return in, err
			}
			if len(mats) == 0 {
				continue
			}
			in.OnPallet[p.Pallet] = mats
			for _, m := range mats {
				ids[m.MaterialID] = true
			}
		}
	}
	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
	for _, id := range sorted {
		m, err := c.log.GetMaterial(id)
		if err != nil {
			return in, err
		}
		in.Materials[id] = *m
	}
	return in, nil
}
