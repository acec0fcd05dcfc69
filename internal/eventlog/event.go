package eventlog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/cellwatch/internal/models"
)

// Detail keys used on log entries.
const (
	DetailInspectionType = "inspection_type"
	DetailSerial         = "serial"
	DetailWorkorder      = "workorder"
	DetailFaces          = "faces"
	DetailNote           = "note"
)

// EventOpts describes one log entry to append.
type EventOpts struct {
	Type     string
	Pallet   string
	LocName  string
	LocNum   int
	Program  string
	Result   string
	Time     time.Time
	Elapsed  time.Duration
	Active   time.Duration
	Details  map[string]string
	Material []models.LogMaterial
}

// RecordEvent appends one entry to the log and returns it with its counter
// assigned. Every referenced material must exist and no material may move
// to an earlier process than its log already records.
func (s *Store) RecordEvent(opts EventOpts) (*models.LogEntry, error) {
	var entry *models.LogEntry
	err := s.Transaction(func(tx *Store) error {
		for _, m := range opts.Material {
			if _, err := tx.loadMaterial(m.MaterialID); err != nil {
				return err
			}
			latest, err := tx.LatestProcess(m.MaterialID)
			if err != nil {
				return err
			}
			if m.Process < latest {
				return fmt.Errorf("material %d at process %d, event has process %d: %w",
					m.MaterialID, latest, m.Process, ErrProcessDecreased)
			}
		}

		mats := make([]models.LogMaterial, len(opts.Material))
		copy(mats, opts.Material)
		for i := range mats {
			mats[i].ID = 0
			mats[i].Counter = 0
		}
		entry = &models.LogEntry{
			Type:     opts.Type,
			Pallet:   opts.Pallet,
			LocName:  opts.LocName,
			LocNum:   opts.LocNum,
			Program:  opts.Program,
			Result:   opts.Result,
			TimeUTC:  tx.timeOrNow(opts.Time),
			Elapsed:  opts.Elapsed,
			Active:   opts.Active,
			Details:  opts.Details,
			Material: mats,
		}
		if err := tx.db.Create(entry).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: record %s: %w", opts.Type, err)
	}
	return entry, nil
}

// RecordLoadBegin logs the start of a load/unload operation on a pallet.
func (s *Store) RecordLoadBegin(pallet string, loadStation int, t time.Time) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:    models.LogLoadBegin,
		Pallet:  pallet,
		LocName: "L/U",
		LocNum:  loadStation,
		Result:  "LOAD",
		Time:    t,
	})
}

// RecordLoadEnd logs material that finished loading onto a pallet.
func (s *Store) RecordLoadEnd(mats []models.LogMaterial, pallet string, loadStation int, t time.Time, elapsed, active time.Duration) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:     models.LogLoadEnd,
		Pallet:   pallet,
		LocName:  "L/U",
		LocNum:   loadStation,
		Result:   "LOAD",
		Time:     t,
		Elapsed:  elapsed,
		Active:   active,
		Material: mats,
	})
}

// RecordUnloadEnd logs material that was removed from a pallet.
func (s *Store) RecordUnloadEnd(mats []models.LogMaterial, pallet string, loadStation int, t time.Time, elapsed, active time.Duration) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:     models.LogUnloadEnd,
		Pallet:   pallet,
		LocName:  "L/U",
		LocNum:   loadStation,
		Result:   "UNLOAD",
		Time:     t,
		Elapsed:  elapsed,
		Active:   active,
		Material: mats,
	})
}

// RecordMachineBegin logs the start of a program on a machine.
func (s *Store) RecordMachineBegin(mats []models.LogMaterial, pallet, statName string, statNum int, program string, t time.Time) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:     models.LogMachineBegin,
		Pallet:   pallet,
		LocName:  statName,
		LocNum:   statNum,
		Program:  program,
		Time:     t,
		Material: mats,
	})
}

// RecordMachineEnd logs the end of a program on a machine.
func (s *Store) RecordMachineEnd(mats []models.LogMaterial, pallet, statName string, statNum int, program, result string, t time.Time, elapsed, active time.Duration) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:     models.LogMachineEnd,
		Pallet:   pallet,
		LocName:  statName,
		LocNum:   statNum,
		Program:  program,
		Result:   result,
		Time:     t,
		Elapsed:  elapsed,
		Active:   active,
		Material: mats,
	})
}

// RecordPalletCycle marks the completion of a pallet cycle. Elapsed is the
// time since the previous cycle of the same pallet.
func (s *Store) RecordPalletCycle(pallet string, t time.Time, elapsed time.Duration) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:    models.LogPalletCycle,
		Pallet:  pallet,
		LocName: "Pallet Cycle",
		LocNum:  1,
		Result:  "PalletCycle",
		Time:    t,
		Elapsed: elapsed,
	})
}

// RecordSerialForMaterialID assigns a serial to a material and logs it.
func (s *Store) RecordSerialForMaterialID(id int64, serial string, t time.Time) (*models.LogEntry, error) {
	return s.recordAssignment(id, models.LogSerialAssign, "serial", DetailSerial, serial, t)
}

// RecordWorkorderForMaterialID assigns a workorder to a material and logs it.
func (s *Store) RecordWorkorderForMaterialID(id int64, workorder string, t time.Time) (*models.LogEntry, error) {
	return s.recordAssignment(id, models.LogWorkorderAssign, "workorder", DetailWorkorder, workorder, t)
}

func (s *Store) recordAssignment(id int64, typ, column, detail, value string, t time.Time) (*models.LogEntry, error) {
	var entry *models.LogEntry
	err := s.Transaction(func(tx *Store) error {
		proc, err := tx.LatestProcess(id)
		if err != nil {
			return err
		}
		mat, err := tx.snapshot(id, proc)
		if err != nil {
			return err
		}
		if err := tx.db.Model(&models.Material{}).Where("id = ?", id).Update(column, value).Error; err != nil {
			return err
		}
		entry, err = tx.RecordEvent(EventOpts{
			Type:     typ,
			LocName:  column,
			LocNum:   1,
			Result:   value,
			Time:     t,
			Details:  map[string]string{detail: value},
			Material: []models.LogMaterial{mat},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: record %s %d: %w", column, id, err)
	}
	return entry, nil
}

// RecordInspectionSignal logs whether a material was selected for an
// inspection type.
func (s *Store) RecordInspectionSignal(id int64, process int, inspType string, inspect bool, t time.Time) (*models.LogEntry, error) {
	return s.recordInspection(id, process, models.LogInspectionSignal, inspType, inspect, t)
}

// RecordInspectionResult logs the outcome of an inspection.
func (s *Store) RecordInspectionResult(id int64, process int, inspType string, success bool, t time.Time) (*models.LogEntry, error) {
	return s.recordInspection(id, process, models.LogInspectionResult, inspType, success, t)
}

func (s *Store) recordInspection(id int64, process int, typ, inspType string, result bool, t time.Time) (*models.LogEntry, error) {
	var entry *models.LogEntry
	err := s.Transaction(func(tx *Store) error {
		mat, err := tx.snapshot(id, process)
		if err != nil {
			return err
		}
		entry, err = tx.RecordEvent(EventOpts{
			Type:     typ,
			LocName:  "Inspect",
			LocNum:   1,
			Program:  inspType,
			Result:   strconv.FormatBool(result),
			Time:     t,
			Details:  map[string]string{DetailInspectionType: inspType},
			Material: []models.LogMaterial{mat},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: record %s %d: %w", typ, id, err)
	}
	return entry, nil
}

// RecordGeneral logs a free-form entry.
func (s *Store) RecordGeneral(mats []models.LogMaterial, pallet, program, result string, t time.Time, details map[string]string) (*models.LogEntry, error) {
	return s.RecordEvent(EventOpts{
		Type:     models.LogGeneral,
		Pallet:   pallet,
		LocName:  "General",
		LocNum:   1,
		Program:  program,
		Result:   result,
		Time:     t,
		Details:  details,
		Material: mats,
	})
}

// RecordMaterialNote logs an operator note against a material at its
// latest process.
func (s *Store) RecordMaterialNote(id int64, note string, t time.Time) (*models.LogEntry, error) {
	var entry *models.LogEntry
	err := s.Transaction(func(tx *Store) error {
		proc, err := tx.LatestProcess(id)
		if err != nil {
			return err
		}
		mat, err := tx.snapshot(id, proc)
		if err != nil {
			return err
		}
		entry, err = tx.RecordGeneral([]models.LogMaterial{mat}, "", "", "Note", t, map[string]string{DetailNote: note})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: record note %d: %w", id, err)
	}
	return entry, nil
}
