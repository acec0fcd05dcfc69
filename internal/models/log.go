package models

import "time"

// Log entry types.
const (
	LogLoadBegin        = "load-begin"
	LogLoadEnd          = "load-end"
	LogUnloadBegin      = "unload-begin"
	LogUnloadEnd        = "unload-end"
	LogMachineBegin     = "machine-begin"
	LogMachineEnd       = "machine-end"
	LogQueueAdd         = "queue-add"
	LogQueueRemove      = "queue-remove"
	LogSerialAssign     = "serial-assign"
	LogWorkorderAssign  = "workorder-assign"
	LogInspectionSignal = "inspection-signal"
	LogInspectionResult = "inspection-result"
	LogDecrement        = "decrement"
	LogPalletCycle      = "pallet-cycle"
	LogGeneral          = "general"
)

// LogEntry is an immutable event. Counter is assigned on append and is
// strictly increasing across the whole log.
type LogEntry struct {
	Counter  int64             `gorm:"primaryKey;autoIncrement" json:"counter"`
	Type     string            `gorm:"size:32;not null;index" json:"type"`
	Pallet   string            `gorm:"size:32;index" json:"pallet,omitempty"`
	LocName  string            `gorm:"size:64" json:"loc_name"`
	LocNum   int               `json:"loc_num"`
	Program  string            `gorm:"size:128" json:"program,omitempty"`
	Result   string            `gorm:"size:128" json:"result,omitempty"`
	TimeUTC  time.Time         `gorm:"index" json:"time_utc"`
	Elapsed  time.Duration     `json:"elapsed"`
	Active   time.Duration     `json:"active"`
	Details  map[string]string `gorm:"serializer:json;type:text" json:"details,omitempty"`
	Material []LogMaterial     `gorm:"foreignKey:Counter;references:Counter" json:"material"`
}

// LogMaterial links a log entry to one material and records the material's
// job, process, path, and face as of that event.
type LogMaterial struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	Counter      int64  `gorm:"not null;index" json:"-"`
	MaterialID   int64  `gorm:"not null;index" json:"material_id"`
	JobUnique    string `gorm:"size:128;index" json:"job_unique,omitempty"`
	PartName     string `gorm:"size:128" json:"part"`
	Process      int    `json:"process"`
	Path         int    `json:"path"`
	NumProcesses int    `json:"num_processes"`
	Face         int    `json:"face"`
}
