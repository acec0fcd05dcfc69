package planner

import (
	"sort"
	"time"

	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/models"
)

// logTransitions compares each pallet and machine with the pallet's log
// since its last cycle and records what changed.
func (p *Planner) logTransitions(obs *controller.Observation) error {
	for i := range obs.Pallets {
		pal := &obs.Pallets[i]
		entries, err := p.log.GetLogForPallet(pal.Pallet)
		if err != nil {
			return err
		}
		open := openLoadBegin(entries)

		switch {
		case open == nil && pal.Location == controller.LocLoadStation &&
			(pal.Tracking == controller.TrackBeforeLoad || pal.Tracking == controller.TrackBeforeUnload):
			if _, err := p.log.RecordLoadBegin(pal.Pallet, pal.LocationNum, obs.Time); err != nil {
				return err
			}
		case open != nil && (pal.Tracking == controller.TrackAfterLoad ||
			pal.Tracking == controller.TrackMachining || pal.Tracking == controller.TrackNoWork):
			if err := p.completeLoad(pal.Pallet, open, entries, obs.Time); err != nil {
				return err
			}
		}
	}
	return p.logMachines(obs)
}

func openLoadBegin(entries []models.LogEntry) *models.LogEntry {
	for i := range entries {
		if entries[i].Type == models.LogLoadBegin {
			return &entries[i]
		}
	}
	return nil
}

// completeLoad logs the end of a load/unload operation: the pallet cycle,
// material leaving each face, material arriving on each face, and material
// leaving its queue.
func (p *Planner) completeLoad(pallet string, begin *models.LogEntry, entries []models.LogEntry, now time.Time) error {
	lastCycle, err := p.log.LastPalletCycle(pallet)
	if err != nil {
		return err
	}
	var cycleElapsed time.Duration
	if lastCycle != nil {
		cycleElapsed = now.Sub(lastCycle.TimeUTC)
	}
	pending, err := p.log.PendingLoads(pallet)
	if err != nil {
		return err
	}
	onPallet := eventlog.MaterialOnPallet(entries)

	// Jobs are read before the transaction; the job store shares the
	// database connection.
	jobsByUnique := map[string]*models.Job{}
	for _, m := range onPallet {
		if err := p.loadJobInto(jobsByUnique, m.JobUnique); err != nil {
			return err
		}
	}
	for _, pl := range pending {
		if err := p.loadJobInto(jobsByUnique, pl.JobUnique); err != nil {
			return err
		}
	}

	lul := begin.LocNum
	elapsed := now.Sub(begin.TimeUTC)
	transferring := map[int64]bool{}
	for _, pl := range pending {
		if pl.Source == models.SourcePallet && pl.MaterialID != nil {
			transferring[*pl.MaterialID] = true
		}
	}

	return p.log.Transaction(func(tx *eventlog.Store) error {
		if _, err := tx.RecordPalletCycle(pallet, now, cycleElapsed); err != nil {
			return err
		}

		for _, face := range groupByFace(onPallet) {
			var active time.Duration
			if path := pathOf(jobsByUnique, face[0]); path != nil {
				active = path.ExpectedUnloadTime * time.Duration(len(face))
			}
			if _, err := tx.RecordUnloadEnd(face, pallet, lul, now, elapsed, active); err != nil {
				return err
			}
			for _, m := range face {
				if transferring[m.MaterialID] {
					continue
				}
				path := pathOf(jobsByUnique, m)
				if path == nil || path.OutputQueue == "" {
					continue
				}
				if _, err := tx.RecordAddMaterialToQueue(m.MaterialID, m.Process, path.OutputQueue, -1, now); err != nil {
					return err
				}
			}
		}

		var loaded []models.LogMaterial
		var fromQueue []int64
		for _, pl := range pending {
			j := jobsByUnique[pl.JobUnique]
			if j == nil {
				continue
			}
			var id int64
			switch pl.Source {
			case models.SourceCasting:
				id, err = tx.AllocateMaterialID(j.Unique, j.PartName, j.NumProcesses())
				if err != nil {
					return err
				}
			case models.SourceQueue:
				if pl.MaterialID == nil {
					continue
				}
				id = *pl.MaterialID
				if err := tx.SetMaterialDetails(id, j.Unique, j.PartName, j.NumProcesses()); err != nil {
					return err
				}
				fromQueue = append(fromQueue, id)
			case models.SourcePallet:
				if pl.MaterialID == nil {
					continue
				}
				id = *pl.MaterialID
			default:
				continue
			}
			loaded = append(loaded, models.LogMaterial{
				MaterialID:   id,
				JobUnique:    j.Unique,
				PartName:     j.PartName,
				Process:      pl.Process,
				Path:         pl.Path,
				NumProcesses: j.NumProcesses(),
				Face:         pl.Face,
			})
		}
		for _, face := range groupByFace(loaded) {
			var active time.Duration
			if path := pathOf(jobsByUnique, face[0]); path != nil {
				active = path.ExpectedLoadTime * time.Duration(len(face))
			}
			if _, err := tx.RecordLoadEnd(face, pallet, lul, now, elapsed, active); err != nil {
				return err
			}
		}
		for _, id := range fromQueue {
			if _, err := tx.RecordRemoveMaterialFromAllQueues(id, now); err != nil {
				return err
			}
		}
		return tx.ClearPendingLoads(pallet)
	})
}

func (p *Planner) loadJobInto(m map[string]*models.Job, unique string) error {
	if unique == "" {
		return nil
	}
	if _, ok := m[unique]; ok {
		return nil
	}
	j, err := p.jobs.LoadJob(unique)
	if err != nil {
		return err
	}
	m[unique] = j
	return nil
}

func pathOf(jobsByUnique map[string]*models.Job, m models.LogMaterial) *models.Path {
	j := jobsByUnique[m.JobUnique]
	if j == nil {
		return nil
	}
	path, ok := j.PathInfo(m.Process, m.Path)
	if !ok {
		return nil
	}
	return path
}

// groupByFace splits material by face, faces in ascending order.
func groupByFace(mats []models.LogMaterial) [][]models.LogMaterial {
	byFace := map[int][]models.LogMaterial{}
	var faces []int
	for _, m := range mats {
		if _, ok := byFace[m.Face]; !ok {
			faces = append(faces, m.Face)
		}
		byFace[m.Face] = append(byFace[m.Face], m)
	}
	sort.Ints(faces)
	out := make([][]models.LogMaterial, 0, len(faces))
	for _, f := range faces {
		out = append(out, byFace[f])
	}
	return out
}

// logMachines records machine-begin for pallets a machine has started and
// machine-end for pallets no longer on the machine that began them.
func (p *Planner) logMachines(obs *controller.Observation) error {
	running := map[string]controller.MachineObservation{}
	for _, m := range obs.Machines {
		if m.Pallet != "" {
			running[m.Pallet] = m
		}
	}

	for i := range obs.Pallets {
		pallet := obs.Pallets[i].Pallet
		entries, err := p.log.GetLogForPallet(pallet)
		if err != nil {
			return err
		}
		open := openMachineBegin(entries)
		mc, isRunning := running[pallet]

		if open != nil && (!isRunning || mc.Machine != open.LocNum || mc.Program != open.Program) {
			active, err := p.expectedCycleTime(open.Material, open.Program)
			if err != nil {
				return err
			}
			if _, err := p.log.RecordMachineEnd(open.Material, pallet, open.LocName, open.LocNum, open.Program,
				"", obs.Time, obs.Time.Sub(open.TimeUTC), active); err != nil {
				return err
			}
			open = nil
		}
		if open == nil && isRunning {
			mats := eventlog.MaterialOnPallet(entries)
			if _, err := p.log.RecordMachineBegin(mats, pallet, mc.Group, mc.Machine, mc.Program, obs.Time); err != nil {
				return err
			}
		}
	}
	return nil
}

func openMachineBegin(entries []models.LogEntry) *models.LogEntry {
	var open *models.LogEntry
	for i := range entries {
		switch entries[i].Type {
		case models.LogMachineBegin:
			open = &entries[i]
		case models.LogMachineEnd:
			open = nil
		}
	}
	return open
}

// expectedCycleTime is the expected time of the stop running program for
// the first material whose path has such a stop.
func (p *Planner) expectedCycleTime(mats []models.LogMaterial, program string) (time.Duration, error) {
	for _, m := range mats {
		if m.JobUnique == "" {
			continue
		}
		j, err := p.jobs.LoadJob(m.JobUnique)
		if err != nil {
			return 0, err
		}
		path, ok := j.PathInfo(m.Process, m.Path)
		if !ok {
			continue
		}
		for _, stop := range path.Stops {
			if stop.Program == program {
				return stop.ExpectedCycleTime, nil
			}
		}
	}
	return 0, nil
}
