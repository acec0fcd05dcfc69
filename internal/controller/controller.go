// Package controller defines what the cell core needs from a physical cell
// controller: a status read, a route write, and a place to report new log
// entries. Vendor backends implement Controller; Sim is an in-memory cell.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/cellwatch/internal/config"
	"github.com/zulandar/cellwatch/internal/models"
)

// Location is where a pallet physically is.
type Location string

const (
	LocBuffer       Location = "buffer"
	LocLoadStation  Location = "load-station"
	LocMachineQueue Location = "machine-queue"
	LocMachine      Location = "machine"
	LocCart         Location = "cart"
)

// Tracking is the controller's view of the pallet's progress through its
// route.
type Tracking string

const (
	TrackNoWork       Tracking = "no-work"
	TrackBeforeLoad   Tracking = "before-load"
	TrackAfterLoad    Tracking = "after-load"
	TrackMachining    Tracking = "machining"
	TrackBeforeUnload Tracking = "before-unload"
)

// Route is the route the controller holds for a pallet.
type Route struct {
	Comment        string   `json:"comment"`
	LoadStations   []int    `json:"load_stations"`
	Machines       []int    `json:"machines"`
	Programs       []string `json:"programs"`
	UnloadStations []int    `json:"unload_stations"`
}

// PalletObservation is one pallet as seen by the controller.
type PalletObservation struct {
	Pallet      string   `json:"pallet"`
	HasRoute    bool     `json:"has_route"`
	Route       Route    `json:"route"`
	Cycle       int      `json:"cycle"`
	Location    Location `json:"location"`
	LocationNum int      `json:"location_num"`
	Tracking    Tracking `json:"tracking"`
}

// MachineObservation is one machine. Pallet is empty when the machine is
// not running a program.
type MachineObservation struct {
	Machine int    `json:"machine"`
	Group   string `json:"group"`
	Pallet  string `json:"pallet,omitempty"`
	Program string `json:"program,omitempty"`
}

// Observation is one poll of the controller. Queues is nil when the
// controller does not track queue contents.
type Observation struct {
	Time     time.Time            `json:"time"`
	Pallets  []PalletObservation  `json:"pallets"`
	Machines []MachineObservation `json:"machines"`
	Queues   map[string][]int64   `json:"queues,omitempty"`
}

// Pallet returns the observation of pallet, if present.
func (o *Observation) Pallet(pallet string) (*PalletObservation, bool) {
	for i := range o.Pallets {
		if o.Pallets[i].Pallet == pallet {
			return &o.Pallets[i], true
		}
	}
	return nil, false
}

// RouteWrite is a route change for one pallet. An increment only bumps the
// cycle counter and leaves the route as it is.
type RouteWrite struct {
	Pallet    string `json:"pallet"`
	Route     Route  `json:"route"`
	Cycle     int    `json:"cycle"`
	Increment bool   `json:"increment"`
}

// Controller is a physical cell controller.
type Controller interface {
	Name() string
	ReadStatus(ctx context.Context) (*Observation, error)
	WriteRoute(ctx context.Context, w RouteWrite) error
	ReportNewEntries(ctx context.Context, entries []models.LogEntry) error
}

// Open returns the controller selected by cfg.
func Open(cfg config.ControllerConfig) (Controller, error) {
	switch cfg.Type {
	case "sim", "":
		return NewSim(cfg.Pallets, cfg.Machines), nil
	default:
		return nil, fmt.Errorf("controller: unsupported type %q", cfg.Type)
	}
}
