package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type BulkResult struct {
	UpdatedCount int64
	Appointments []Appointment
}

// BulkUpdateStatus moves a batch of appointments to the target status in a
// single multi-record update, all or nothing: if any member is in a terminal
// state that differs from the target, the whole batch is rejected with the
// offending ids and nothing is written.
//
// Only the terminal check is applied here; the bulk path deliberately does
// not run the full per-transition table the single-record path uses.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, target Status) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "ids", Reason: "at least one appointment id is required"}
	}
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a valid status", target)}
	}

	appts, err := s.repo.GetManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	if len(appts) != len(ids) {
		found := make(map[uuid.UUID]bool, len(appts))
		for _, a := range appts {
			found[a.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
			}
		}
	}

	var invalid []uuid.UUID
	for _, a := range appts {
		if a.Status.Terminal() && a.Status != target {
			invalid = append(invalid, a.ID)
		}
	}
	if len(invalid) > 0 {
		return nil, &BulkRejectedError{InvalidIDs: invalid}
	}

	completedAt, cancelledAt := bulkStamps(target, s.now())

	count, err := s.repo.UpdateStatusMany(ctx, ids, target, completedAt, cancelledAt)
	if err != nil {
		return nil, fmt.Errorf("bulk update status: %w", err)
	}

	updated, err := s.repo.GetManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reload appointments: %w", err)
	}

	return &BulkResult{UpdatedCount: count, Appointments: updated}, nil
}
