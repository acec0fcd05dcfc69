// Package planner turns a controller observation into log entries for what
// physically happened and route writes for what each pallet should do next.
package planner

import (
	"fmt"

	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
)

// Claim associates queued material with the job it was assigned to.
type Claim struct {
	MaterialID   int64
	Pallet       string
	JobUnique    string
	PartName     string
	NumProcesses int
}

// Result is the outcome of one Plan.
type Result struct {
	Writes         []controller.RouteWrite
	Assignments    []models.PendingLoad
	Claims         []Claim
	NewEntries     []models.LogEntry
	Faults         []string
	QueueSyncFault bool
}

// Planner plans routes against the event log and job store. Plan is not
// safe for concurrent use; callers hold the controller lock.
type Planner struct {
	log         *eventlog.Store
	jobs        *jobs.Store
	routePrefix string
}

// New returns a Planner. Routes whose comment starts with routePrefix are
// considered written by this planner.
func New(log *eventlog.Store, js *jobs.Store, routePrefix string) *Planner {
	return &Planner{log: log, jobs: js, routePrefix: routePrefix}
}

// Plan logs the transitions visible in obs and computes route writes for
// pallets that need work. Log entries are committed as they are recorded;
// route writes and assignments are only returned and must be applied with
// Commit once the controller has accepted the write.
func (p *Planner) Plan(obs *controller.Observation) (*Result, error) {
	before, err := p.log.LastCounter()
	if err != nil {
		return nil, err
	}
	res := &Result{}

	if err := p.logTransitions(obs); err != nil {
		return nil, fmt.Errorf("planner: transitions: %w", err)
	}
	if err := p.assign(obs, res); err != nil {
		return nil, fmt.Errorf("planner: assign: %w", err)
	}
	if err := p.checkQueues(obs, res); err != nil {
		return nil, fmt.Errorf("planner: queues: %w", err)
	}

	res.NewEntries, err = p.log.GetLog(before)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Commit records the pending loads and queue claims planned for pallet.
func (p *Planner) Commit(pallet string, res *Result) error {
	var loads []models.PendingLoad
	for _, a := range res.Assignments {
		if a.Pallet == pallet {
			loads = append(loads, a)
		}
	}
	err := p.log.Transaction(func(tx *eventlog.Store) error {
		if err := tx.AddPendingLoads(loads); err != nil {
			return err
		}
		for _, c := range res.Claims {
			if c.Pallet != pallet {
				continue
			}
			if err := tx.SetMaterialDetails(c.MaterialID, c.JobUnique, c.PartName, c.NumProcesses); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("planner: commit %s: %w", pallet, err)
	}
	return nil
}
