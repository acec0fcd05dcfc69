package models

import "time"

// Material is one physical piece tracked by the cell. Job, part, and process
// count may be empty at allocation (unclassified castings) and are filled in
// once, on first association.
type Material struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	JobUnique    string `gorm:"size:128;index"`
	PartName     string `gorm:"size:128;index"`
	NumProcesses int
	Serial       string `gorm:"size:64;index"`
	Workorder    string `gorm:"size:64;index"`
	CreatedAt    time.Time
}

// QueueEntry places a material at a position in a named queue. Positions in a
// queue are dense and zero-based.
type QueueEntry struct {
	MaterialID int64  `gorm:"primaryKey;autoIncrement:false"`
	Queue      string `gorm:"size:64;not null;index:idx_queue_position"`
	Position   int    `gorm:"not null;index:idx_queue_position"`
	AddTimeUTC time.Time
}

// Pending load sources.
const (
	SourceCasting = "casting"
	SourceQueue   = "queue"
	SourcePallet  = "pallet"
)

// PendingLoad is one face slot assigned to a pallet but not yet loaded.
type PendingLoad struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Pallet     string `gorm:"size:32;not null;index"`
	Face       int    `gorm:"not null"`
	JobUnique  string `gorm:"size:128;not null;index:idx_pending_job_path"`
	Process    int    `gorm:"not null"`
	Path       int    `gorm:"not null;index:idx_pending_job_path"`
	Source     string `gorm:"size:16;not null"`
	MaterialID *int64 `gorm:"uniqueIndex"`
	CreatedAt  time.Time
}
