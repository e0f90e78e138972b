package appointment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError is a caller-fixable input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError describes the existing appointment occupying a requested
// slot. It carries enough to let the caller pick a different slot; it is a
// UX aid, not a security boundary.
type ConflictError struct {
	AppointmentID uuid.UUID
	PatientName   string
	TimeLabel     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot %s is already booked for %s", e.TimeLabel, e.PatientName)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotTaken
}

// BulkRejectedError rejects an entire bulk status update because the listed
// appointments are in a terminal state incompatible with the target status.
type BulkRejectedError struct {
	InvalidIDs []uuid.UUID
}

func (e *BulkRejectedError) Error() string {
	ids := make([]string, len(e.InvalidIDs))
	for i, id := range e.InvalidIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("cannot update completed or cancelled appointments: %s", strings.Join(ids, ", "))
}
