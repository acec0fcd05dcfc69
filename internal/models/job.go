package models

import "time"

// Job is a unit of demand: a part with an ordered list of processes, each
// with one or more alternative paths. Processes and paths are numbered from 1.
type Job struct {
	Unique     string      `gorm:"primaryKey;column:unique_id;size:128" json:"unique" yaml:"unique"`
	PartName   string      `gorm:"size:128;not null;index" json:"part" yaml:"part"`
	ScheduleID string      `gorm:"size:64;index" json:"schedule_id" yaml:"schedule_id"`
	Priority   int         `gorm:"default:0" json:"priority" yaml:"priority"`
	Archived   bool        `gorm:"default:false;index" json:"archived" yaml:"archived"`
	Comment    string      `gorm:"type:text" json:"comment,omitempty" yaml:"comment"`
	Hold       HoldPattern `gorm:"serializer:json;type:text" json:"hold" yaml:"hold"`
	Processes  []Process   `gorm:"serializer:json;type:text" json:"processes" yaml:"processes"`
	CreatedAt  time.Time   `json:"created_at" yaml:"-"`
}

// NumProcesses returns the number of processes of the job.
func (j *Job) NumProcesses() int { return len(j.Processes) }

// PathInfo returns the path for a 1-based process and path number.
func (j *Job) PathInfo(process, path int) (*Path, bool) {
	if process < 1 || process > len(j.Processes) {
		return nil, false
	}
	paths := j.Processes[process-1].Paths
	if path < 1 || path > len(paths) {
		return nil, false
	}
	return &paths[path-1], true
}

// Process holds the alternative paths for one process of a job.
type Process struct {
	Paths []Path `json:"paths" yaml:"paths"`
}

// Path is one way to run a process: which pallets, stations, and programs.
type Path struct {
	PlannedQuantity    int           `json:"planned_quantity" yaml:"planned_quantity"`
	Priority           int           `json:"priority" yaml:"priority"`
	Pallets            []string      `json:"pallets" yaml:"pallets"`
	Fixture            string        `json:"fixture,omitempty" yaml:"fixture"`
	Face               int           `json:"face" yaml:"face"`
	PartsPerPallet     int           `json:"parts_per_pallet" yaml:"parts_per_pallet"`
	LoadStations       []int         `json:"load_stations" yaml:"load_stations"`
	UnloadStations     []int         `json:"unload_stations" yaml:"unload_stations"`
	Stops              []Stop        `json:"stops" yaml:"stops"`
	InputQueue         string        `json:"input_queue,omitempty" yaml:"input_queue"`
	OutputQueue        string        `json:"output_queue,omitempty" yaml:"output_queue"`
	ExpectedLoadTime   time.Duration `json:"expected_load_time" yaml:"expected_load_time"`
	ExpectedUnloadTime time.Duration `json:"expected_unload_time" yaml:"expected_unload_time"`
	HoldMachining      HoldPattern   `json:"hold_machining" yaml:"hold_machining"`
	HoldLoadUnload     HoldPattern   `json:"hold_load_unload" yaml:"hold_load_unload"`
}

// Stop is one machining step of a path.
type Stop struct {
	StationGroup      string        `json:"station_group" yaml:"station_group"`
	Stations          []int         `json:"stations" yaml:"stations"`
	Program           string        `json:"program" yaml:"program"`
	ProgramRevision   int64         `json:"program_revision,omitempty" yaml:"program_revision"`
	ExpectedCycleTime time.Duration `json:"expected_cycle_time" yaml:"expected_cycle_time"`
}

// HoldPattern describes a user hold and/or a repeating hold/unhold pattern.
// The pattern starts held at PatternStartUTC and alternates at each span.
type HoldPattern struct {
	UserHold        bool            `json:"user_hold" yaml:"user_hold"`
	Reason          string          `json:"reason,omitempty" yaml:"reason"`
	PatternStartUTC time.Time       `json:"pattern_start_utc" yaml:"pattern_start_utc"`
	Pattern         []time.Duration `json:"pattern,omitempty" yaml:"pattern"`
	Repeats         bool            `json:"repeats" yaml:"repeats"`
}

// Schedule records each accepted AddJobs call; the highest Seq is the latest.
type Schedule struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement"`
	ScheduleID string `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt  time.Time
}

// Decrement is one append-only reduction of a job path's planned quantity.
type Decrement struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobUnique string    `gorm:"size:128;not null;index" json:"job_unique"`
	Proc1Path int       `gorm:"column:proc1_path;not null" json:"proc1_path"`
	PartName  string    `gorm:"size:128" json:"part"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	TimeUTC   time.Time `gorm:"index" json:"time_utc"`
}
