package shared

import (
	"errors"
	"time"
)

// Cycle statuses shared by the lifecycle controller and its HTTP surface.
const (
	CycleStatusOpen      = "OPEN"
	CycleStatusReporting = "REPORTING"
)

// ErrInvalidCycleTransition indicates status change not allowed.
var ErrInvalidCycleTransition = errors.New("cycle transition invalid")

// ValidateCycleTransition checks transitions according to policy. Opening may
// repeat while reporting so that a day can be recomputed.
func ValidateCycleTransition(current, target string) error {
	if current == "" {
		current = CycleStatusOpen
	}
	switch current {
	case CycleStatusOpen:
		if target == CycleStatusReporting {
			return nil
		}
	case CycleStatusReporting:
		if target == CycleStatusOpen || target == CycleStatusReporting {
			return nil
		}
	}
	return ErrInvalidCycleTransition
}

// Window is the half-open business day [Start, End) in a fixed location.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the calendar day containing now in loc.
func DayWindow(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
