package jobs

import (
	"time"

	"github.com/zulandar/cellwatch/internal/models"
)

// IsHeld reports whether h holds work at now. The pattern's spans are laid
// end to end from PatternStartUTC: span 0 is held, span 1 released, and so
// on. Past the end, a repeating pattern wraps and a non-repeating one keeps
// the state that follows its last span.
func IsHeld(h models.HoldPattern, now time.Time) bool {
	if h.UserHold {
		return true
	}
	if len(h.Pattern) == 0 || now.Before(h.PatternStartUTC) {
		return false
	}
	var total time.Duration
	for _, d := range h.Pattern {
		total += d
	}
	if total <= 0 {
		return false
	}

	elapsed := now.Sub(h.PatternStartUTC)
	if elapsed >= total {
		if !h.Repeats {
			return len(h.Pattern)%2 == 0
		}
		elapsed %= total
	}
	for i, d := range h.Pattern {
		if elapsed < d {
			return i%2 == 0
		}
		elapsed -= d
	}
	return len(h.Pattern)%2 == 0
}

// PathHeld reports whether loading onto the job's path is held, either by
// the whole-job hold or the path's load/unload hold.
func PathHeld(j *models.Job, process, path int, now time.Time) bool {
	if IsHeld(j.Hold, now) {
		return true
	}
	p, ok := j.PathInfo(process, path)
	if !ok {
		return true
	}
	return IsHeld(p.HoldLoadUnload, now)
}

// MachiningHeld reports whether machining on the job's path is held.
func MachiningHeld(j *models.Job, process, path int, now time.Time) bool {
	if IsHeld(j.Hold, now) {
		return true
	}
	p, ok := j.PathInfo(process, path)
	if !ok {
		return true
	}
	return IsHeld(p.HoldMachining, now)
}
