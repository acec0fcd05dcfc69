package cell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/models"
)

// Inspection is a signal or a result for one inspection type on a material.
// A zero Process means the material's latest process.
type Inspection struct {
	Type    string
	Process int
	Passed  bool
}

func (c *Cell) checkMaterial(id int64) error {
	_, err := c.log.GetMaterial(id)
	return err
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("cell: %s is required: %w", name, ErrInvalidArgument)
	}
	return nil
}

// GetMaterialDetails returns a material with its current process and path
// and its inspections.
func (c *Cell) GetMaterialDetails(id int64) (*eventlog.MaterialDetails, error) {
	return c.log.GetMaterialDetails(id)
}

// AssignSerial records serial for material id.
func (c *Cell) AssignSerial(ctx context.Context, id int64, serial string) (*models.LogEntry, error) {
	if err := required("serial", serial); err != nil {
		return nil, err
	}
	var entry *models.LogEntry
	err := c.mutate(ctx, func() error {
		if err := c.checkMaterial(id); err != nil {
			return err
		}
		var err error
		entry, err = c.log.RecordSerialForMaterialID(id, serial, c.now())
		return err
	})
	return entry, err
}

// AssignWorkorder records workorder for material id.
func (c *Cell) AssignWorkorder(ctx context.Context, id int64, workorder string) (*models.LogEntry, error) {
	if err := required("workorder", workorder); err != nil {
		return nil, err
	}
	var entry *models.LogEntry
	err := c.mutate(ctx, func() error {
		if err := c.checkMaterial(id); err != nil {
			return err
		}
		var err error
		entry, err = c.log.RecordWorkorderForMaterialID(id, workorder, c.now())
		return err
	})
	return entry, err
}

// SignalInspection records whether material id was selected for an
// inspection. Passed means selected.
func (c *Cell) SignalInspection(ctx context.Context, id int64, insp Inspection) (*models.LogEntry, error) {
	return c.inspection(ctx, id, insp, c.log.RecordInspectionSignal)
}

// CompleteInspection records the outcome of an inspection of material id.
func (c *Cell) CompleteInspection(ctx context.Context, id int64, insp Inspection) (*models.LogEntry, error) {
	return c.inspection(ctx, id, insp, c.log.RecordInspectionResult)
}

type inspectionRecorder func(id int64, process int, inspType string, passed bool, t time.Time) (*models.LogEntry, error)

func (c *Cell) inspection(ctx context.Context, id int64, insp Inspection, record inspectionRecorder) (*models.LogEntry, error) {
	if err := required("inspection type", insp.Type); err != nil {
		return nil, err
	}
	if insp.Process < 0 {
		return nil, fmt.Errorf("cell: process %d: %w", insp.Process, ErrInvalidArgument)
	}
	var entry *models.LogEntry
	err := c.mutate(ctx, func() error {
		mat, err := c.log.GetMaterial(id)
		if err != nil {
			return err
		}
		proc := insp.Process
		if proc == 0 {
			if proc, err = c.log.LatestProcess(id); err != nil {
				return err
			}
		}
		if mat.NumProcesses > 0 && proc > mat.NumProcesses {
			return fmt.Errorf("cell: material %d has %d processes, got %d: %w", id, mat.NumProcesses, proc, ErrInvalidArgument)
		}
		entry, err = record(id, proc, insp.Type, insp.Passed, c.now())
		return err
	})
	return entry, err
}

// AddMaterialNote logs an operator note against material id.
func (c *Cell) AddMaterialNote(ctx context.Context, id int64, note string) (*models.LogEntry, error) {
	if err := required("note", note); err != nil {
		return nil, err
	}
	var entry *models.LogEntry
	err := c.mutate(ctx, func() error {
		if err := c.checkMaterial(id); err != nil {
			return err
		}
		var err error
		entry, err = c.log.RecordMaterialNote(id, note, c.now())
		return err
	})
	return entry, err
}

// GetLogEntries returns entries with start <= time < end.
func (c *Cell) GetLogEntries(start, end time.Time) ([]models.LogEntry, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("cell: log range %s to %s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), ErrInvalidArgument)
	}
	return c.log.GetLogEntries(start, end)
}

// GetLogForSerial returns the log of every material carrying serial.
func (c *Cell) GetLogForSerial(serial string) ([]models.LogEntry, error) {
	return c.log.GetLogForSerial(serial)
}

// GetLogForWorkorder returns the log of every material assigned to
// workorder.
func (c *Cell) GetLogForWorkorder(workorder string) ([]models.LogEntry, error) {
	return c.log.GetLogForWorkorder(workorder)
}

// OutstandingDemand returns how many more pieces of the job's process-1
// path the planner will still start.
func (c *Cell) OutstandingDemand(unique string, path int) (int, error) {
	return c.jobs.LoadOutstandingDemand(unique, path, c.log, c.now())
}
