package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
)

type pathKey struct {
	unique string
	path   int
}

// planState is what one Plan has handed out so far, on top of what the
// store already records.
type planState struct {
	log     *eventlog.Store
	pending map[pathKey]int
	claimed map[int64]bool
	queued  map[string][]eventlog.QueuedMaterial
}

func (ps *planState) StartedQuantity(unique string, path int) (int, error) {
	return ps.log.StartedQuantity(unique, path)
}

func (ps *planState) PendingQuantity(unique string, path int) (int, error) {
	n, err := ps.log.PendingQuantity(unique, path)
	if err != nil {
		return 0, err
	}
	return n + ps.pending[pathKey{unique, path}], nil
}

type candidate struct {
	job     *models.Job
	process int
	pathNum int
	path    *models.Path
}

// assign picks work for every pallet that needs it and diffs the resulting
// route against the controller's.
func (p *Planner) assign(obs *controller.Observation, res *Result) error {
	jobList, err := p.jobs.LoadUnarchivedJobs()
	if err != nil {
		return err
	}
	state := &planState{
		log:     p.log,
		pending: map[pathKey]int{},
		claimed: map[int64]bool{},
		queued:  map[string][]eventlog.QueuedMaterial{},
	}
	allPending, err := p.log.AllPendingLoads()
	if err != nil {
		return err
	}
	pendingByPallet := map[string][]models.PendingLoad{}
	for _, pl := range allPending {
		pendingByPallet[pl.Pallet] = append(pendingByPallet[pl.Pallet], pl)
		if pl.MaterialID != nil {
			state.claimed[*pl.MaterialID] = true
		}
	}
	queued, err := p.log.GetMaterialInAllQueues()
	if err != nil {
		return err
	}
	for _, q := range queued {
		state.queued[q.Queue] = append(state.queued[q.Queue], q)
	}

	pallets := append([]controller.PalletObservation(nil), obs.Pallets...)
	sort.SliceStable(pallets, func(a, b int) bool {
		return controller.LessPallet(pallets[a].Pallet, pallets[b].Pallet)
	})

	for i := range pallets {
		pal := &pallets[i]
		pending := pendingByPallet[pal.Pallet]

		needsWork := false
		clearStale := false
		switch pal.Tracking {
		case controller.TrackNoWork:
			needsWork = true
			clearStale = len(pending) > 0
		case controller.TrackBeforeUnload:
			needsWork = len(pending) == 0
		case controller.TrackBeforeLoad:
			needsWork = len(pending) == 0 || !pal.HasRoute
			clearStale = len(pending) > 0 && !pal.HasRoute
		}
		if !needsWork {
			continue
		}
		if clearStale {
			if err := p.log.ClearPendingLoads(pal.Pallet); err != nil {
				return err
			}
			for _, pl := range pending {
				if pl.MaterialID != nil {
					delete(state.claimed, *pl.MaterialID)
				}
			}
		}

		onPallet, err := p.log.MaterialOnPallet(pal.Pallet)
		if err != nil {
			return err
		}
		chosen, loads, claims, err := p.choose(pal.Pallet, jobList, onPallet, state, obs.Time)
		if err != nil {
			return err
		}
		if len(chosen) == 0 {
			continue
		}

		desired := p.desiredRoute(chosen)
		res.Writes = append(res.Writes, p.diff(pal, desired))
		res.Assignments = append(res.Assignments, loads...)
		res.Claims = append(res.Claims, claims...)
	}
	return nil
}

// choose fills the pallet's faces from the eligible paths in priority order.
func (p *Planner) choose(pallet string, jobList []models.Job, onPallet []models.LogMaterial, state *planState, now time.Time) ([]candidate, []models.PendingLoad, []Claim, error) {
	var cands []candidate
	for ji := range jobList {
		j := &jobList[ji]
		for proc := j.NumProcesses(); proc >= 1; proc-- {
			for pi := range j.Processes[proc-1].Paths {
				path := &j.Processes[proc-1].Paths[pi]
				if !containsString(path.Pallets, pallet) {
					continue
				}
				if jobs.PathHeld(j, proc, pi+1, now) {
					continue
				}
				cands = append(cands, candidate{job: j, process: proc, pathNum: pi + 1, path: path})
			}
		}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.job.Priority != cb.job.Priority {
			return ca.job.Priority < cb.job.Priority
		}
		if ca.process != cb.process {
			return ca.process > cb.process
		}
		if ca.path.Priority != cb.path.Priority {
			return ca.path.Priority < cb.path.Priority
		}
		if ca.job.Unique != cb.job.Unique {
			return ca.job.Unique < cb.job.Unique
		}
		return ca.pathNum < cb.pathNum
	})

	var chosen []candidate
	var loads []models.PendingLoad
	var claims []Claim
	usedFaces := map[int]bool{}
	transferred := map[int64]bool{}
	for _, c := range cands {
		if usedFaces[c.path.Face] {
			continue
		}
		l, cl, err := p.fill(pallet, c, onPallet, transferred, state, now)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(l) == 0 {
			continue
		}
		usedFaces[c.path.Face] = true
		chosen = append(chosen, c)
		loads = append(loads, l...)
		claims = append(claims, cl...)
	}
	return chosen, loads, claims, nil
}

// fill returns up to PartsPerPallet loads for one face from the candidate's
// material source.
func (p *Planner) fill(pallet string, c candidate, onPallet []models.LogMaterial, transferred map[int64]bool, state *planState, now time.Time) ([]models.PendingLoad, []Claim, error) {
	want := c.path.PartsPerPallet
	if want < 1 {
		want = 1
	}
	demand := want
	if c.process == 1 {
		d, err := p.jobs.OutstandingDemand(c.job, c.pathNum, state, now)
		if err != nil {
			return nil, nil, err
		}
		if d < demand {
			demand = d
		}
	}
	if demand <= 0 {
		return nil, nil, nil
	}

	load := func(source string, id *int64) models.PendingLoad {
		return models.PendingLoad{
			Pallet:     pallet,
			Face:       c.path.Face,
			JobUnique:  c.job.Unique,
			Process:    c.process,
			Path:       c.pathNum,
			Source:     source,
			MaterialID: id,
		}
	}

	var loads []models.PendingLoad
	var claims []Claim
	switch {
	case c.path.InputQueue != "":
		for _, q := range state.queued[c.path.InputQueue] {
			if len(loads) >= demand {
				break
			}
			if state.claimed[q.MaterialID] || q.PartName != c.job.PartName {
				continue
			}
			if q.JobUnique != "" && q.JobUnique != c.job.Unique {
				continue
			}
			proc, err := p.log.LatestProcess(q.MaterialID)
			if err != nil {
				return nil, nil, err
			}
			if proc != c.process-1 {
				continue
			}
			id := q.MaterialID
			state.claimed[id] = true
			loads = append(loads, load(models.SourceQueue, &id))
			claims = append(claims, Claim{
				MaterialID:   id,
				Pallet:       pallet,
				JobUnique:    c.job.Unique,
				PartName:     c.job.PartName,
				NumProcesses: c.job.NumProcesses(),
			})
		}
	case c.process == 1:
		for i := 0; i < demand; i++ {
			loads = append(loads, load(models.SourceCasting, nil))
		}
	default:
		for _, m := range onPallet {
			if len(loads) >= demand {
				break
			}
			if transferred[m.MaterialID] || m.JobUnique != c.job.Unique || m.Process != c.process-1 {
				continue
			}
			id := m.MaterialID
			transferred[id] = true
			loads = append(loads, load(models.SourcePallet, &id))
		}
	}
	if c.process == 1 {
		state.pending[pathKey{c.job.Unique, c.pathNum}] += len(loads)
	}
	return loads, claims, nil
}

// desiredRoute is the union of the chosen paths' stations and programs.
func (p *Planner) desiredRoute(chosen []candidate) controller.Route {
	loads := map[int]bool{}
	unloads := map[int]bool{}
	machines := map[int]bool{}
	programs := map[string]bool{}
	var faces []string
	for _, c := range chosen {
		for _, s := range c.path.LoadStations {
			loads[s] = true
		}
		for _, s := range c.path.UnloadStations {
			unloads[s] = true
		}
		for _, stop := range c.path.Stops {
			for _, s := range stop.Stations {
				machines[s] = true
			}
			if stop.Program != "" {
				programs[stop.Program] = true
			}
		}
		faces = append(faces, fmt.Sprintf("%d:%s-%d-%d", c.path.Face, c.job.Unique, c.process, c.pathNum))
	}
	sort.Strings(faces)
	return controller.Route{
		Comment:        strings.TrimSpace(p.routePrefix + " " + strings.Join(faces, " ")),
		LoadStations:   sortedInts(loads),
		Machines:       sortedInts(machines),
		Programs:       sortedStrings(programs),
		UnloadStations: sortedInts(unloads),
	}
}

// diff decides between replacing the pallet's route and incrementing its
// cycle counter.
func (p *Planner) diff(pal *controller.PalletObservation, desired controller.Route) controller.RouteWrite {
	ours := pal.HasRoute && strings.HasPrefix(pal.Route.Comment, p.routePrefix)
	if !ours ||
		!equalInts(pal.Route.LoadStations, desired.LoadStations) ||
		!equalInts(pal.Route.Machines, desired.Machines) ||
		!equalStrings(pal.Route.Programs, desired.Programs) {
		return controller.RouteWrite{Pallet: pal.Pallet, Route: desired, Cycle: 1}
	}
	return controller.RouteWrite{Pallet: pal.Pallet, Route: pal.Route, Cycle: pal.Cycle + 1, Increment: true}
}

// checkQueues raises the queue-sync fault when claimed material has left
// its queue or the controller's queues disagree with the log.
func (p *Planner) checkQueues(obs *controller.Observation, res *Result) error {
	queued, err := p.log.GetMaterialInAllQueues()
	if err != nil {
		return err
	}
	inQueue := map[int64]bool{}
	logged := map[string][]int64{}
	for _, q := range queued {
		inQueue[q.MaterialID] = true
		logged[q.Queue] = append(logged[q.Queue], q.MaterialID)
	}

	pending, err := p.log.AllPendingLoads()
	if err != nil {
		return err
	}
	for _, pl := range append(pending, res.Assignments...) {
		if pl.Source == models.SourceQueue && pl.MaterialID != nil && !inQueue[*pl.MaterialID] {
			res.QueueSyncFault = true
			res.Faults = append(res.Faults, fmt.Sprintf("material %d claimed by pallet %s is no longer queued", *pl.MaterialID, pl.Pallet))
		}
	}

	if obs.Queues != nil {
		names := map[string]bool{}
		for q := range obs.Queues {
			names[q] = true
		}
		for q := range logged {
			names[q] = true
		}
		for _, q := range sortedStrings(names) {
			if !equalInt64s(obs.Queues[q], logged[q]) {
				res.QueueSyncFault = true
				res.Faults = append(res.Faults, fmt.Sprintf("queue %s holds %v, log has %v", q, obs.Queues[q], logged[q]))
			}
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sortedStrings(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// equalInts compares two station lists as sets.
func equalInts(a, b []int) bool {
	sa := map[int]bool{}
	for _, v := range a {
		sa[v] = true
	}
	sb := map[int]bool{}
	for _, v := range b {
		sb[v] = true
	}
	if len(sa) != len(sb) {
		return false
	}
	for v := range sa {
		if !sb[v] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	sa := map[string]bool{}
	for _, v := range a {
		sa[v] = true
	}
	sb := map[string]bool{}
	for _, v := range b {
		sb[v] = true
	}
	if len(sa) != len(sb) {
		return false
	}
	for v := range sa {
		if !sb[v] {
			return false
		}
	}
	return true
}

func equalInt64s(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
