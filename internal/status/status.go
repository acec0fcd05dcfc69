// Package status builds the cell's current status snapshot. Build is a pure
// function of its input so it can run outside any lock.
package status

import (
	"sort"
	"time"

	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
)

// Material location types.
const (
	LocOnPallet = "on-pallet"
	LocInQueue  = "in-queue"
)

// Material action types.
const (
	ActionWaiting   = "waiting"
	ActionLoading   = "loading"
	ActionUnloading = "unloading"
	ActionMachining = "machining"
	ActionHeld      = "held"
)

// Input is everything Build reads.
type Input struct {
	Now              time.Time
	LatestScheduleID string
	Jobs             []models.Job
	Decrements       []models.Decrement
	Log              []models.LogEntry
	Queued           []eventlog.QueuedMaterial
	Pending          []models.PendingLoad
	OnPallet         map[string][]models.LogMaterial
	Materials        map[int64]models.Material
	Observation      *controller.Observation
	Faults           []string
	QueueSyncFault   bool
}

// CurrentStatus is the snapshot published to subscribers.
type CurrentStatus struct {
	TimeUTC          time.Time           `json:"time_utc"`
	LatestScheduleID string              `json:"latest_schedule_id"`
	Pallets          []PalletStatus      `json:"pallets"`
	Material         []InProcessMaterial `json:"material"`
	Jobs             []JobStatus         `json:"jobs"`
	Queues           map[string][]int64  `json:"queues"`
	Faults           []string            `json:"faults,omitempty"`
	QueueSyncFault   bool                `json:"queue_sync_fault"`
}

// PalletStatus is one pallet's route and position.
type PalletStatus struct {
	Pallet      string              `json:"pallet"`
	HasRoute    bool                `json:"has_route"`
	Route       controller.Route    `json:"route"`
	Cycle       int                 `json:"cycle"`
	Location    controller.Location `json:"location"`
	LocationNum int                 `json:"location_num"`
	Tracking    controller.Tracking `json:"tracking"`
}

// MaterialLocation is where a piece of material is.
type MaterialLocation struct {
	Type     string `json:"type"`
	Pallet   string `json:"pallet,omitempty"`
	Face     int    `json:"face,omitempty"`
	Queue    string `json:"queue,omitempty"`
	Position int    `json:"position,omitempty"`
}

// MaterialAction is what is about to happen, or is happening, to material.
type MaterialAction struct {
	Type             string `json:"type"`
	LoadOntoPallet   string `json:"load_onto_pallet,omitempty"`
	LoadOntoFace     int    `json:"load_onto_face,omitempty"`
	ProcessAfterLoad int    `json:"process_after_load,omitempty"`
	PathAfterLoad    int    `json:"path_after_load,omitempty"`
	Program          string `json:"program,omitempty"`
}

// InProcessMaterial is one piece of material in the cell.
type InProcessMaterial struct {
	MaterialID           int64            `json:"material_id"`
	JobUnique            string           `json:"job_unique,omitempty"`
	PartName             string           `json:"part"`
	Process              int              `json:"process"`
	Path                 int              `json:"path"`
	Serial               string           `json:"serial,omitempty"`
	Workorder            string           `json:"workorder,omitempty"`
	SignaledInspections  []string         `json:"signaled_inspections,omitempty"`
	CompletedInspections []string         `json:"completed_inspections,omitempty"`
	Location             MaterialLocation `json:"location"`
	Action               MaterialAction   `json:"action"`
}

// JobStatus is a job with its progress counts.
type JobStatus struct {
	models.Job
	Held        bool    `json:"held"`
	Completed   [][]int `json:"completed"`
	Started     []int   `json:"started"`
	InProcess   int     `json:"in_process"`
	Decremented int     `json:"decremented"`
	Remaining   int     `json:"remaining"`
}

type matInfo struct {
	serial, workorder   string
	signaled, completed []string
	process, path       int
}

// Build computes the status snapshot.
func Build(in Input) *CurrentStatus {
	st := &CurrentStatus{
		TimeUTC:          in.Now.UTC(),
		LatestScheduleID: in.LatestScheduleID,
		Queues:           map[string][]int64{},
		Faults:           append([]string(nil), in.Faults...),
		QueueSyncFault:   in.QueueSyncFault,
	}

	info := scanLog(in.Log)
	running := map[string]controller.MachineObservation{}
	if in.Observation != nil {
		for _, p := range in.Observation.Pallets {
			st.Pallets = append(st.Pallets, PalletStatus{
				Pallet:      p.Pallet,
				HasRoute:    p.HasRoute,
				Route:       p.Route,
				Cycle:       p.Cycle,
				Location:    p.Location,
				LocationNum: p.LocationNum,
				Tracking:    p.Tracking,
			})
		}
		for _, m := range in.Observation.Machines {
			if m.Pallet != "" {
				running[m.Pallet] = m
			}
		}
	}
	sort.SliceStable(st.Pallets, func(a, b int) bool {
		return controller.LessPallet(st.Pallets[a].Pallet, st.Pallets[b].Pallet)
	})
	palletObs := map[string]PalletStatus{}
	for _, p := range st.Pallets {
		palletObs[p.Pallet] = p
	}

	byUnique := map[string]*models.Job{}
	for i := range in.Jobs {
		byUnique[in.Jobs[i].Unique] = &in.Jobs[i]
	}

	loading := map[int64]models.PendingLoad{}
	for _, pl := range in.Pending {
		if pl.MaterialID != nil {
			loading[*pl.MaterialID] = pl
		}
	}

	pallets := make([]string, 0, len(in.OnPallet))
	for p := range in.OnPallet {
		pallets = append(pallets, p)
	}
	sort.Slice(pallets, func(a, b int) bool { return controller.LessPallet(pallets[a], pallets[b]) })
	for _, pallet := range pallets {
		for _, m := range in.OnPallet[pallet] {
			mat := newMaterial(m.MaterialID, m.JobUnique, m.PartName, info, in.Materials)
			mat.Process = m.Process
			mat.Path = m.Path
			mat.Location = MaterialLocation{Type: LocOnPallet, Pallet: pallet, Face: m.Face}
			mat.Action = MaterialAction{Type: ActionWaiting}
			if pl, ok := loading[m.MaterialID]; ok {
				mat.Action = loadAction(pl)
			} else if j, ok := byUnique[m.JobUnique]; ok && jobs.MachiningHeld(j, m.Process, m.Path, in.Now) {
				mat.Action = MaterialAction{Type: ActionHeld}
			} else if mc, ok := running[pallet]; ok {
				mat.Action = MaterialAction{Type: ActionMachining, Program: mc.Program}
			} else if p, ok := palletObs[pallet]; ok && p.Location == controller.LocLoadStation &&
				p.Tracking == controller.TrackBeforeUnload {
				mat.Action = MaterialAction{Type: ActionUnloading}
			}
			st.Material = append(st.Material, mat)
		}
	}

	for _, q := range in.Queued {
		st.Queues[q.Queue] = append(st.Queues[q.Queue], q.MaterialID)
		mat := newMaterial(q.MaterialID, q.JobUnique, q.PartName, info, in.Materials)
		if mat.Serial == "" {
			mat.Serial = q.Serial
		}
		if mat.Workorder == "" {
			mat.Workorder = q.Workorder
		}
		mat.Location = MaterialLocation{Type: LocInQueue, Queue: q.Queue, Position: q.Position}
		mat.Action = MaterialAction{Type: ActionWaiting}
		if pl, ok := loading[q.MaterialID]; ok {
			mat.Action = loadAction(pl)
		}
		st.Material = append(st.Material, mat)
	}

	st.Jobs = jobStatuses(in)
	return st
}

func newMaterial(id int64, job, part string, info map[int64]*matInfo, mats map[int64]models.Material) InProcessMaterial {
	mat := InProcessMaterial{MaterialID: id, JobUnique: job, PartName: part}
	if row, ok := mats[id]; ok {
		if mat.JobUnique == "" {
			mat.JobUnique = row.JobUnique
		}
		if mat.PartName == "" {
			mat.PartName = row.PartName
		}
		mat.Serial = row.Serial
		mat.Workorder = row.Workorder
	}
	if mi, ok := info[id]; ok {
		if mi.serial != "" {
			mat.Serial = mi.serial
		}
		if mi.workorder != "" {
			mat.Workorder = mi.workorder
		}
		mat.SignaledInspections = mi.signaled
		mat.CompletedInspections = mi.completed
		mat.Process = mi.process
		mat.Path = mi.path
	}
	return mat
}

func loadAction(pl models.PendingLoad) MaterialAction {
	return MaterialAction{
		Type:             ActionLoading,
		LoadOntoPallet:   pl.Pallet,
		LoadOntoFace:     pl.Face,
		ProcessAfterLoad: pl.Process,
		PathAfterLoad:    pl.Path,
	}
}

func scanLog(log []models.LogEntry) map[int64]*matInfo {
	info := map[int64]*matInfo{}
	get := func(id int64) *matInfo {
		mi, ok := info[id]
		if !ok {
			mi = &matInfo{}
			info[id] = mi
		}
		return mi
	}
	for _, e := range log {
		for _, m := range e.Material {
			mi := get(m.MaterialID)
			if m.Process >= mi.process {
				mi.process = m.Process
				if m.Path != 0 {
					mi.path = m.Path
				}
			}
			switch e.Type {
			case models.LogSerialAssign:
				mi.serial = e.Result
			case models.LogWorkorderAssign:
				mi.workorder = e.Result
			case models.LogInspectionSignal:
				if e.Result == "true" {
					mi.signaled = appendUnique(mi.signaled, e.Details[eventlog.DetailInspectionType])
				}
			case models.LogInspectionResult:
				mi.completed = appendUnique(mi.completed, e.Details[eventlog.DetailInspectionType])
			}
		}
	}
	return info
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

type procPath struct {
	unique        string
	process, path int
}

func jobStatuses(in Input) []JobStatus {
	started := map[procPath]map[int64]bool{}
	completed := map[procPath]map[int64]bool{}
	mark := func(m map[procPath]map[int64]bool, k procPath, id int64) {
		if m[k] == nil {
			m[k] = map[int64]bool{}
		}
		m[k][id] = true
	}
	for _, e := range in.Log {
		for _, m := range e.Material {
			k := procPath{m.JobUnique, m.Process, m.Path}
			switch e.Type {
			case models.LogLoadEnd:
				if m.Process == 1 {
					mark(started, k, m.MaterialID)
				}
			case models.LogUnloadEnd:
				mark(completed, k, m.MaterialID)
			}
		}
	}

	decremented := map[procPath]int{}
	for _, d := range in.Decrements {
		decremented[procPath{d.JobUnique, 1, d.Proc1Path}] += d.Quantity
	}

	out := make([]JobStatus, 0, len(in.Jobs))
	for _, j := range in.Jobs {
		js := JobStatus{Job: j, Held: jobs.IsHeld(j.Hold, in.Now)}
		finished := map[int64]bool{}
		for p, proc := range j.Processes {
			row := make([]int, len(proc.Paths))
			for i := range proc.Paths {
				row[i] = len(completed[procPath{j.Unique, p + 1, i + 1}])
				if p+1 == len(j.Processes) {
					for id := range completed[procPath{j.Unique, p + 1, i + 1}] {
						finished[id] = true
					}
				}
			}
			js.Completed = append(js.Completed, row)
		}

		all := map[int64]bool{}
		if len(j.Processes) > 0 {
			js.Started = make([]int, len(j.Processes[0].Paths))
			for i, path := range j.Processes[0].Paths {
				k := procPath{j.Unique, 1, i + 1}
				js.Started[i] = len(started[k])
				for id := range started[k] {
					all[id] = true
				}
				dec := decremented[k]
				js.Decremented += dec
				if rem := path.PlannedQuantity - dec - len(started[k]); rem > 0 {
					js.Remaining += rem
				}
			}
		}
		for id := range all {
			if !finished[id] {
				js.InProcess++
			}
		}
		out = append(out, js)
	}
	return out
}
