// Package jobs stores job demand: the jobs of each schedule, their hold
// patterns, and the decrements applied to their planned quantities.
package jobs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/cellwatch/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrJobNotFound is returned by lookups of a unique that was never added.
	ErrJobNotFound = errors.New("job not found")

	// ErrStaleSchedule is returned by AddJobs when the expected previous
	// schedule id is not the latest one.
	ErrStaleSchedule = errors.New("stale schedule")

	// ErrInvalidJob is returned for jobs that fail validation and for paths
	// a job does not have.
	ErrInvalidJob = errors.New("invalid job")

	// ErrDuplicateJob is returned when a unique is already stored or appears
	// twice in one schedule.
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrArchived is returned when archiving a job that is already archived.
	ErrArchived = errors.New("job archived")
)

// NewJobs is one schedule's worth of jobs.
type NewJobs struct {
	ScheduleID string       `json:"schedule_id" yaml:"schedule_id"`
	Jobs       []models.Job `json:"jobs" yaml:"jobs"`
}

// Store reads and writes jobs. Readers of unarchived jobs are served from an
// immutable snapshot that writers replace after each change.
type Store struct {
	db   *gorm.DB
	mu   sync.Mutex
	snap atomic.Pointer[[]models.Job]
	now  func() time.Time
}

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock overrides the store clock.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// AddJobs stores a new schedule. expectedPrevious must equal the latest
// schedule id (empty when there is none). It returns the schedule id, which
// is generated when nj.ScheduleID is empty.
func (s *Store) AddJobs(nj NewJobs, expectedPrevious string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheduleID := nj.ScheduleID
	if scheduleID == "" {
		scheduleID = uuid.NewString()
	}

	seen := map[string]bool{}
	for i := range nj.Jobs {
		j := &nj.Jobs[i]
		normalize(j)
		if err := validate(j); err != nil {
			return "", fmt.Errorf("jobs: add: %w", err)
		}
		if seen[j.Unique] {
			return "", fmt.Errorf("jobs: add: %q twice in schedule: %w", j.Unique, ErrDuplicateJob)
		}
		seen[j.Unique] = true
		j.ScheduleID = scheduleID
		j.Archived = false
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		latest, err := latestScheduleID(tx)
		if err != nil {
			return err
		}
		if latest != expectedPrevious {
			return fmt.Errorf("expected previous schedule %q, latest is %q: %w", expectedPrevious, latest, ErrStaleSchedule)
		}
		for i := range nj.Jobs {
			var n int64
			if err := tx.Model(&models.Job{}).Where("unique_id = ?", nj.Jobs[i].Unique).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%q: %w", nj.Jobs[i].Unique, ErrDuplicateJob)
			}
		}
		if len(nj.Jobs) > 0 {
			if err := tx.Create(&nj.Jobs).Error; err != nil {
				return fmt.Errorf("create jobs: %w", err)
			}
		}
		if err := tx.Create(&models.Schedule{ScheduleID: scheduleID}).Error; err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("jobs: add: %w", err)
	}
	if err := s.refresh(); err != nil {
		return "", err
	}
	return scheduleID, nil
}

// LoadJob returns a job by unique, archived or not.
func (s *Store) LoadJob(unique string) (*models.Job, error) {
	var j models.Job
	err := s.db.Where("unique_id = ?", unique).First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("jobs: load %q: %w", unique, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: load %q: %w", unique, err)
	}
	return &j, nil
}

// LoadUnarchivedJobs returns the unarchived jobs ordered by priority then
// unique. The returned slice is shared and must not be modified.
func (s *Store) LoadUnarchivedJobs() ([]models.Job, error) {
	if p := s.snap.Load(); p != nil {
		return *p, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.snap.Load(); p != nil {
		return *p, nil
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}
	return *s.snap.Load(), nil
}

// ArchiveJob marks a job archived. Archived jobs no longer receive work.
func (s *Store) ArchiveJob(unique string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.LoadJob(unique)
	if err != nil {
		return err
	}
	if j.Archived {
		return fmt.Errorf("jobs: archive %q: %w", unique, ErrArchived)
	}
	if err := s.db.Model(&models.Job{}).Where("unique_id = ?", unique).Update("archived", true).Error; err != nil {
		return fmt.Errorf("jobs: archive %q: %w", unique, err)
	}
	return s.refresh()
}

// LatestScheduleID returns the most recent schedule id, or "" if no schedule
// has been added.
func (s *Store) LatestScheduleID() (string, error) {
	id, err := latestScheduleID(s.db)
	if err != nil {
		return "", fmt.Errorf("jobs: latest schedule: %w", err)
	}
	return id, nil
}

func latestScheduleID(db *gorm.DB) (string, error) {
	var sched models.Schedule
	err := db.Order("seq DESC").First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sched.ScheduleID, nil
}

// refresh reloads the snapshot. Callers hold s.mu.
func (s *Store) refresh() error {
	var list []models.Job
	if err := s.db.Where("archived = ?", false).Find(&list).Error; err != nil {
		return fmt.Errorf("jobs: load unarchived: %w", err)
	}
	sort.SliceStable(list, func(a, b int) bool {
		if list[a].Priority != list[b].Priority {
			return list[a].Priority < list[b].Priority
		}
		return list[a].Unique < list[b].Unique
	})
	s.snap.Store(&list)
	return nil
}

func normalize(j *models.Job) {
	for p := range j.Processes {
		for i := range j.Processes[p].Paths {
			path := &j.Processes[p].Paths[i]
			if path.Face == 0 {
				path.Face = 1
			}
			if path.PartsPerPallet == 0 {
				path.PartsPerPallet = 1
			}
			if len(path.UnloadStations) == 0 {
				path.UnloadStations = append([]int(nil), path.LoadStations...)
			}
		}
	}
}

func validate(j *models.Job) error {
	var errs []string
	if j.Unique == "" {
		errs = append(errs, "unique is required")
	}
	if j.PartName == "" {
		errs = append(errs, "part is required")
	}
	if len(j.Processes) == 0 {
		errs = append(errs, "at least one process is required")
	}
	for p, proc := range j.Processes {
		if len(proc.Paths) == 0 {
			errs = append(errs, fmt.Sprintf("process %d has no paths", p+1))
		}
		for i, path := range proc.Paths {
			where := fmt.Sprintf("process %d path %d", p+1, i+1)
			if len(path.Pallets) == 0 {
				errs = append(errs, where+" has no pallets")
			}
			if len(path.LoadStations) == 0 {
				errs = append(errs, where+" has no load stations")
			}
			if path.PlannedQuantity < 0 {
				errs = append(errs, where+" has negative planned quantity")
			}
			if path.Face < 1 || path.PartsPerPallet < 1 {
				errs = append(errs, where+" has an invalid face or parts per pallet")
			}
			for k, stop := range path.Stops {
				if len(stop.Stations) == 0 {
					errs = append(errs, fmt.Sprintf("%s stop %d has no stations", where, k+1))
				}
			}
		}
	}
	if len(errs) > 0 {
		name := j.Unique
		if name == "" {
			name = "(no unique)"
		}
		return fmt.Errorf("%s: %s: %w", name, strings.Join(errs, "; "), ErrInvalidJob)
	}
	return nil
}
