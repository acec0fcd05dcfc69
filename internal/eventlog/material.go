package eventlog

import (
	"errors"
	"fmt"

	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
)

// MaterialDetails is a material plus the facts derived from its log.
type MaterialDetails struct {
	models.Material
	Process              int      `json:"process"`
	Path                 int      `json:"path"`
	SignaledInspections  []string `json:"signaled_inspections,omitempty"`
	CompletedInspections []string `json:"completed_inspections,omitempty"`
}

// AllocateMaterialID creates a new material for a job and returns its id.
func (s *Store) AllocateMaterialID(jobUnique, partName string, numProcesses int) (int64, error) {
	mat := models.Material{
		JobUnique:    jobUnique,
		PartName:     partName,
		NumProcesses: numProcesses,
	}
	if err := s.db.Create(&mat).Error; err != nil {
		return 0, fmt.Errorf("eventlog: allocate material: %w", err)
	}
	return mat.ID, nil
}

// AllocateMaterialIDForCasting creates a new material that is not yet
// associated with any job.
func (s *Store) AllocateMaterialIDForCasting(partName string) (int64, error) {
	return s.AllocateMaterialID("", partName, 0)
}

// SetMaterialDetails fills in job, part, and process count for a material.
// Fields that are already set are left unchanged.
func (s *Store) SetMaterialDetails(id int64, jobUnique, partName string, numProcesses int) error {
	return s.Transaction(func(tx *Store) error {
		mat, err := tx.loadMaterial(id)
		if err != nil {
			return fmt.Errorf("eventlog: set material details %d: %w", id, err)
		}
		updates := map[string]interface{}{}
		if mat.JobUnique == "" && jobUnique != "" {
			updates["job_unique"] = jobUnique
		}
		if mat.PartName == "" && partName != "" {
			updates["part_name"] = partName
		}
		if mat.NumProcesses == 0 && numProcesses > 0 {
			updates["num_processes"] = numProcesses
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.db.Model(&models.Material{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("eventlog: set material details %d: %w", id, err)
		}
		return nil
	})
}

// GetMaterial returns the material row for id.
func (s *Store) GetMaterial(id int64) (*models.Material, error) {
	var mat models.Material
	err := s.db.First(&mat, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("eventlog: material %d: %w", id, ErrMaterialNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: material %d: %w", id, err)
	}
	return &mat, nil
}

// GetMaterialDetails returns the material with its current process and path
// and the inspections signaled and completed for it.
func (s *Store) GetMaterialDetails(id int64) (*MaterialDetails, error) {
	mat, err := s.GetMaterial(id)
	if err != nil {
		return nil, err
	}
	d := &MaterialDetails{Material: *mat}

	entries, err := s.GetLogForMaterial(id)
	if err != nil {
		return nil, err
	}
	signaled := map[string]bool{}
	completed := map[string]bool{}
	for _, e := range entries {
		for _, m := range e.Material {
			if m.MaterialID != id {
				continue
			}
			if m.Process >= d.Process {
				d.Process = m.Process
				if m.Path != 0 {
					d.Path = m.Path
				}
			}
		}
		insp := e.Details[DetailInspectionType]
		switch e.Type {
		case models.LogInspectionSignal:
			if e.Result == "true" && !signaled[insp] {
				signaled[insp] = true
				d.SignaledInspections = append(d.SignaledInspections, insp)
			}
		case models.LogInspectionResult:
			if !completed[insp] {
				completed[insp] = true
				d.CompletedInspections = append(d.CompletedInspections, insp)
			}
		}
	}
	return d, nil
}

// LatestProcess returns the highest process the log records for a material,
// or 0 if it has never been logged.
func (s *Store) LatestProcess(id int64) (int, error) {
	var proc *int
	err := s.db.Model(&models.LogMaterial{}).
		Where("material_id = ?", id).
		Select("MAX(process)").
		Scan(&proc).Error
	if err != nil {
		return 0, fmt.Errorf("eventlog: latest process %d: %w", id, err)
	}
	if proc == nil {
		return 0, nil
	}
	return *proc, nil
}

// latestPath returns the path recorded on the most recent log row for id.
func (s *Store) latestPath(id int64) (int, error) {
	var lm models.LogMaterial
	err := s.db.Where("material_id = ? AND path > 0", id).Order("counter DESC").First(&lm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return lm.Path, nil
}

func (s *Store) loadMaterial(id int64) (*models.Material, error) {
	var mat models.Material
	err := s.db.First(&mat, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("material %d: %w", id, ErrUnknownMaterial)
	}
	if err != nil {
		return nil, err
	}
	return &mat, nil
}

// snapshot builds the log material row for id at the given process, taking
// job and part from the material row and the path from its latest entry.
func (s *Store) snapshot(id int64, process int) (models.LogMaterial, error) {
	mat, err := s.loadMaterial(id)
	if err != nil {
		return models.LogMaterial{}, err
	}
	path, err := s.latestPath(id)
	if err != nil {
		return models.LogMaterial{}, err
	}
	return models.LogMaterial{
		MaterialID:   id,
		JobUnique:    mat.JobUnique,
		PartName:     mat.PartName,
		Process:      process,
		Path:         path,
		NumProcesses: mat.NumProcesses,
	}, nil
}
