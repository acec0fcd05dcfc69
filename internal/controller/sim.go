package controller

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/zulandar/cellwatch/internal/models"
)

// Sim is an in-memory cell. Operators and tests drive it through the Move,
// SetTracking, and machine methods; the core drives it through Controller.
type Sim struct {
	mu       sync.Mutex
	pallets  map[string]*PalletObservation
	machines map[int]*MachineObservation
	queues   map[string][]int64
	writes   []RouteWrite
	reported []models.LogEntry
	now      func() time.Time
}

// NewSim returns a cell with pallets named "1".."pallets" parked in the
// buffer with no route, and machines numbered 1..machines.
func NewSim(pallets, machines int) *Sim {
	s := &Sim{
		pallets:  map[string]*PalletObservation{},
		machines: map[int]*MachineObservation{},
		now:      time.Now,
	}
	for i := 1; i <= pallets; i++ {
		name := strconv.Itoa(i)
		s.pallets[name] = &PalletObservation{
			Pallet:      name,
			Location:    LocBuffer,
			LocationNum: i,
			Tracking:    TrackNoWork,
		}
	}
	for i := 1; i <= machines; i++ {
		s.machines[i] = &MachineObservation{Machine: i, Group: "MC"}
	}
	return s
}

// SetClock overrides the time stamped on observations.
func (s *Sim) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Sim) Name() string { return "sim" }

// ReadStatus returns a copy of the current cell state.
func (s *Sim) ReadStatus(ctx context.Context) (*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	obs := &Observation{Time: s.now().UTC()}
	names := make([]string, 0, len(s.pallets))
	for name := range s.pallets {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool { return LessPallet(names[a], names[b]) })
	for _, name := range names {
		p := *s.pallets[name]
		p.Route = copyRoute(p.Route)
		obs.Pallets = append(obs.Pallets, p)
	}
	nums := make([]int, 0, len(s.machines))
	for n := range s.machines {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		obs.Machines = append(obs.Machines, *s.machines[n])
	}
	if s.queues != nil {
		obs.Queues = map[string][]int64{}
		for q, ids := range s.queues {
			obs.Queues[q] = append([]int64(nil), ids...)
		}
	}
	return obs, nil
}

// WriteRoute applies a route write. A pallet with no work becomes ready to
// load once it has a route.
func (s *Sim) WriteRoute(ctx context.Context, w RouteWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pallets[w.Pallet]
	if !ok {
		return fmt.Errorf("controller: sim: unknown pallet %q", w.Pallet)
	}
	if !w.Increment {
		p.Route = copyRoute(w.Route)
		p.HasRoute = true
	}
	p.Cycle = w.Cycle
	if p.Tracking == TrackNoWork {
		p.Tracking = TrackBeforeLoad
	}
	s.writes = append(s.writes, w)
	return nil
}

// ReportNewEntries records the entries so tests can inspect them.
func (s *Sim) ReportNewEntries(ctx context.Context, entries []models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reported = append(s.reported, entries...)
	return nil
}

// Writes returns every route write received so far.
func (s *Sim) Writes() []RouteWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RouteWrite(nil), s.writes...)
}

// Reported returns every log entry reported so far.
func (s *Sim) Reported() []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LogEntry(nil), s.reported...)
}

func (s *Sim) move(pallet string, loc Location, num int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pallets[pallet]
	if !ok {
		return fmt.Errorf("controller: sim: unknown pallet %q", pallet)
	}
	p.Location = loc
	p.LocationNum = num
	return nil
}

// MoveToLoad moves a pallet onto a load station.
func (s *Sim) MoveToLoad(pallet string, station int) error {
	return s.move(pallet, LocLoadStation, station)
}

// MoveToBuffer parks a pallet in the stocker.
func (s *Sim) MoveToBuffer(pallet string, slot int) error {
	return s.move(pallet, LocBuffer, slot)
}

// MoveToMachineQueue moves a pallet to the rotary in front of a machine.
func (s *Sim) MoveToMachineQueue(pallet string, machine int) error {
	return s.move(pallet, LocMachineQueue, machine)
}

// MoveToMachine moves a pallet into a machine's work area.
func (s *Sim) MoveToMachine(pallet string, machine int) error {
	return s.move(pallet, LocMachine, machine)
}

// SetTracking sets the pallet's tracking state, as an operator pressing
// load complete or the controller finishing machining would.
func (s *Sim) SetTracking(pallet string, t Tracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pallets[pallet]
	if !ok {
		return fmt.Errorf("controller: sim: unknown pallet %q", pallet)
	}
	p.Tracking = t
	return nil
}

// StartMachine starts program on machine for the pallet in its work area.
func (s *Sim) StartMachine(machine int, pallet, program string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[machine]
	if !ok {
		return fmt.Errorf("controller: sim: unknown machine %d", machine)
	}
	p, ok := s.pallets[pallet]
	if !ok {
		return fmt.Errorf("controller: sim: unknown pallet %q", pallet)
	}
	m.Pallet = pallet
	m.Program = program
	p.Location = LocMachine
	p.LocationNum = machine
	p.Tracking = TrackMachining
	return nil
}

// EndMachine stops the machine. The pallet is ready to unload.
func (s *Sim) EndMachine(machine int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[machine]
	if !ok {
		return fmt.Errorf("controller: sim: unknown machine %d", machine)
	}
	if p, ok := s.pallets[m.Pallet]; ok {
		p.Tracking = TrackBeforeUnload
	}
	m.Pallet = ""
	m.Program = ""
	return nil
}

// OverrideRoute replaces a pallet's route and cycle behind the core's back,
// as an operator editing the controller directly would.
func (s *Sim) OverrideRoute(pallet string, r Route, cycle int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pallets[pallet]
	if !ok {
		return fmt.Errorf("controller: sim: unknown pallet %q", pallet)
	}
	p.Route = copyRoute(r)
	p.HasRoute = true
	p.Cycle = cycle
	return nil
}

// SetQueues sets the physical queue contents the sim reports. Passing nil
// stops the sim reporting queues.
func (s *Sim) SetQueues(queues map[string][]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if queues == nil {
		s.queues = nil
		return
	}
	s.queues = map[string][]int64{}
	for q, ids := range queues {
		s.queues[q] = append([]int64(nil), ids...)
	}
}

func copyRoute(r Route) Route {
	return Route{
		Comment:        r.Comment,
		LoadStations:   append([]int(nil), r.LoadStations...),
		Machines:       append([]int(nil), r.Machines...),
		Programs:       append([]string(nil), r.Programs...),
		UnloadStations: append([]int(nil), r.UnloadStations...),
	}
}

// LessPallet orders numeric pallet names numerically, then the rest by name.
func LessPallet(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
