package appointment

import (
	"fmt"
	"strings"
	"time"
)

// legalTransitions is the full transition table. Completed and cancelled are
// terminal. A no-show can still be cancelled or put back on the schedule.
var legalTransitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {StatusCancelled, StatusScheduled},
}

// TransitionError reports an illegal status change. Legal carries the
// permitted targets for the current status so the caller can surface them.
type TransitionError struct {
	Current   Status
	Requested Status
	Legal     []Status
}

func (e *TransitionError) Error() string {
	if e.Current.Terminal() {
		return fmt.Sprintf("cannot modify a %s appointment", e.Current)
	}
	if len(e.Legal) == 0 {
		return fmt.Sprintf("no transitions are allowed from %s", e.Current)
	}
	targets := make([]string, len(e.Legal))
	for i, s := range e.Legal {
		targets[i] = string(s)
	}
	return fmt.Sprintf("cannot change status from %s to %s; allowed: %s",
		e.Current, e.Requested, strings.Join(targets, ", "))
}

// ValidateTransition checks whether current may move to requested. Requesting
// the current status again is a no-op and always allowed.
func ValidateTransition(current, requested Status) error {
	if requested == current {
		return nil
	}
	for _, s := range legalTransitions[current] {
		if s == requested {
			return nil
		}
	}
	return &TransitionError{
		Current:   current,
		Requested: requested,
		Legal:     legalTransitions[current],
	}
}

// applyStatus moves a to the given status and keeps the completion and
// cancellation stamps in lockstep: completedAt is non-nil iff the status is
// completed, cancelledAt iff cancelled. The stamps are derived here and never
// accepted from callers.
func applyStatus(a *Appointment, to Status, now time.Time) {
	from := a.Status
	a.Status = to

	switch {
	case to == StatusCompleted && from != StatusCompleted:
		t := now
		a.CompletedAt = &t
	case to != StatusCompleted:
		a.CompletedAt = nil
	}

	switch {
	case to == StatusCancelled && from != StatusCancelled:
		t := now
		a.CancelledAt = &t
	case to != StatusCancelled:
		a.CancelledAt = nil
	}
}

// bulkStamps returns the uniform completedAt/cancelledAt values a bulk update
// to target applies to every record in the batch.
func bulkStamps(target Status, now time.Time) (completedAt, cancelledAt *time.Time) {
	switch target {
	case StatusCompleted:
		t := now
		completedAt = &t
	case StatusCancelled:
		t := now
		cancelledAt = &t
	}
	return completedAt, cancelledAt
}
