package service

import (
	"context"
	"roomio/internal/reservations/repository"
	"roomio/pkg/model"
)

// Decision is the outcome of a conflict check. A rejection carries the full
// ordered list of clashing reservations so callers can show users exactly
// what blocks their request, not just a boolean.
type Decision struct {
	Accepted  bool
	Conflicts []*model.Reservation
}

// ConflictDetector decides whether a candidate interval may be accepted
// for a room. It only reads the store and never mutates it, so it can be
// called speculatively; a detected conflict is a normal return value.
type ConflictDetector struct {
	repo repository.ReservationRepository
}

func NewConflictDetector(repo repository.ReservationRepository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// Check returns Accepted when no active reservation of the room overlaps
// the candidate interval. excludeID keeps a reservation from conflicting
// with itself during a reschedule.
func (d *ConflictDetector) Check(ctx context.Context, roomID string, interval model.Interval, excludeID string) (Decision, error) {
	overlapping, err := d.repo.FindActiveOverlapping(ctx, roomID, interval, excludeID)
	if err != nil {
		return Decision{}, err
	}

	if len(overlapping) == 0 {
		return Decision{Accepted: true}, nil
	}
	return Decision{Accepted: false, Conflicts: overlapping}, nil
}
