package domain

import "time"

// Status is the lifecycle state of a microclimate session.
type Status string

// Microclimate statuses.
const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further automatic transition can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsManualHold reports whether the status was set by a human action and is
// immune to time-driven recomputation.
func (s Status) IsManualHold() bool {
	return s == StatusPaused || s == StatusCancelled
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// legalTransitions is the canonical transition table for time-driven moves.
// Manual holds (pause/cancel) bypass this table entirely; they are applied
// through the coordinator, never by ResolveStatus.
var legalTransitions = map[Status]map[Status]bool{
	StatusDraft:     {StatusScheduled: true, StatusActive: true, StatusCompleted: true},
	StatusScheduled: {StatusActive: true, StatusCompleted: true},
	StatusActive:    {StatusCompleted: true},
}

// ResolveStatus derives the authoritative status of a session from the wall
// clock and its scheduling parameters.
//
// Rules:
//   - Manual holds (paused, cancelled) and completed are never overridden.
//   - Otherwise the time-derived status applies only if it is reachable from
//     the current status in the transition table. An unreachable move (e.g.
//     active back to scheduled after a clock adjustment) leaves the current
//     status untouched.
//   - AutoClose gates whether a session keeps accepting responses past its
//     nominal end, not whether the status reflects reality: an active session
//     past its window always resolves to completed.
//
// The function is pure and idempotent: the result depends only on (now,
// scheduling, current), never on call order, so concurrent recomputation by
// any number of callers converges.
func ResolveStatus(now time.Time, sched Scheduling, current Status) Status {
	if current.IsManualHold() || current == StatusCompleted {
		return current
	}

	timed := sched.TimedStatus(now)
	if timed == current {
		return current
	}
	if !legalTransitions[current][timed] {
		return current
	}
	return timed
}

// TimedStatus maps the clock onto the scheduling window, ignoring the
// session's current status.
func (sc Scheduling) TimedStatus(now time.Time) Status {
	start := sc.StartTime
	end := sc.End()
	switch {
	case now.Before(start):
		return StatusScheduled
	case now.After(end):
		return StatusCompleted
	default:
		return StatusActive
	}
}

// End returns the nominal close instant of the response window.
func (sc Scheduling) End() time.Time {
	return sc.StartTime.Add(time.Duration(sc.DurationMinutes) * time.Minute)
}
