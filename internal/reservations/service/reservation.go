package service

import (
	"context"
	"errors"
	"fmt"
	"roomio/internal/events"
	reserrors "roomio/internal/reservations/errors"
	"roomio/internal/reservations/repository"
	"roomio/internal/reservations/validator"
	"roomio/internal/rooms"
	"roomio/pkg/config"
	apperrors "roomio/pkg/errors"
	"roomio/pkg/model"
	"sync"
	"time"

	"github.com/google/uuid"
)

// rescheduleRetryAttempts bounds how often a reschedule or cancel restarts
// after losing a compare-and-swap race before surfacing
// CONCURRENT_MODIFICATION to the caller.
const rescheduleRetryAttempts = 3

type ReservationService interface {
	Create(ctx context.Context, roomID, userID string, startTime, endTime time.Time) (*model.Reservation, error)
	Reschedule(ctx context.Context, actorID, id string, startTime, endTime time.Time) (*model.Reservation, error)
	Cancel(ctx context.Context, actorID, id string) error
	Availability(ctx context.Context, roomID string, day time.Time) ([]model.Interval, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	ListByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, int64, error)
}

type reservationService struct {
	repo       repository.ReservationRepository
	locks      repository.RoomLockRepository
	rooms      rooms.Directory
	detector   *ConflictDetector
	authorizer Authorizer
	publisher  events.Publisher
	validator  *validator.ReservationValidator
	cfg        *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	locks repository.RoomLockRepository,
	roomDir rooms.Directory,
	authorizer Authorizer,
	publisher events.Publisher,
	validator *validator.ReservationValidator,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:       repo,
		locks:      locks,
		rooms:      roomDir,
		detector:   NewConflictDetector(repo),
		authorizer: authorizer,
		publisher:  publisher,
		validator:  validator,
		cfg:        cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, roomID, userID string, startTime, endTime time.Time) (*model.Reservation, error) {
	reservation := &model.Reservation{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		StartTime: startTime,
		EndTime:   endTime,
		Status:    model.StatusActive,
		Version:   0,
	}

	if err := s.validate(reservation); err != nil {
		return nil, err
	}
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			return nil, apperrors.Validation("Unknown room", map[string]any{"room_id": roomID})
		}
		return nil, apperrors.Unavailable("Room directory", err)
	}

	// Room-scoped serialization: the advisory lock linearizes the
	// check-then-insert window, so two racing creates for the same room
	// cannot both observe an empty overlap set.
	release, err := s.acquireRoomLock(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		decision, err := s.detector.Check(txCtx, roomID, reservation.Interval(), "")
		if err != nil {
			return apperrors.Unavailable("Reservation store", err)
		}
		if !decision.Accepted {
			return conflictError(decision.Conflicts)
		}
		if err := s.repo.Insert(txCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation", "room_id", roomID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created",
		"id", reservation.ID,
		"room_id", roomID,
		"user_id", userID,
		"start_time", startTime,
		"end_time", endTime,
	)
	s.publish(ctx, events.TypeReservationCreated, reservation)
	return reservation, nil
}

func (s *reservationService) Reschedule(ctx context.Context, actorID, id string, startTime, endTime time.Time) (*model.Reservation, error) {
	for attempt := 0; attempt < rescheduleRetryAttempts; attempt++ {
		updated, err := s.rescheduleOnce(ctx, actorID, id, startTime, endTime)
		if errors.Is(err, reserrors.ErrVersionConflict) {
			s.cfg.Log.Warn("Reservation changed mid-reschedule, retrying",
				"id", id,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.cfg.Log.Info("Reservation rescheduled",
			"id", id,
			"start_time", startTime,
			"end_time", endTime,
		)
		s.publish(ctx, events.TypeReservationRescheduled, updated)
		return updated, nil
	}

	return nil, apperrors.ConcurrentModification("Reservation was modified concurrently, please retry")
}

// rescheduleOnce runs one full load-check-swap cycle. An
// ErrVersionConflict return means the stored record moved under us and the
// whole cycle must restart from a fresh load.
func (s *reservationService) rescheduleOnce(ctx context.Context, actorID, id string, startTime, endTime time.Time) (*model.Reservation, error) {
	existing, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actorID, existing); err != nil {
		return nil, err
	}

	candidate := *existing
	candidate.StartTime = startTime
	candidate.EndTime = endTime
	// The new interval is validated exactly like a creation, future-start
	// check included; the original creation time grants no grandfathering.
	if err := s.validate(&candidate); err != nil {
		return nil, err
	}

	release, err := s.acquireRoomLock(ctx, existing.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	decision, err := s.detector.Check(ctx, existing.RoomID, candidate.Interval(), id)
	if err != nil {
		return nil, apperrors.Unavailable("Reservation store", err)
	}
	if !decision.Accepted {
		return nil, conflictError(decision.Conflicts)
	}

	updated, err := s.repo.CompareAndSwap(ctx, id, existing.Version, func(r *model.Reservation) {
		r.StartTime = startTime
		r.EndTime = endTime
	})
	if err != nil {
		if errors.Is(err, reserrors.ErrVersionConflict) {
			return nil, err
		}
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		return nil, apperrors.Internal("Failed to reschedule reservation", err)
	}
	return updated, nil
}

func (s *reservationService) Cancel(ctx context.Context, actorID, id string) error {
	for attempt := 0; attempt < rescheduleRetryAttempts; attempt++ {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return s.mapLookupError(err, id)
		}
		if err := s.authorize(ctx, actorID, existing); err != nil {
			return err
		}

		// Cancelling twice is fine; the second call succeeds without a
		// second event.
		if existing.Status == model.StatusCancelled {
			return nil
		}

		cancelled, err := s.repo.CompareAndSwap(ctx, id, existing.Version, func(r *model.Reservation) {
			r.Status = model.StatusCancelled
		})
		if errors.Is(err, reserrors.ErrVersionConflict) {
			continue
		}
		if err != nil {
			if errors.Is(err, reserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return apperrors.Internal("Failed to cancel reservation", err)
		}

		s.cfg.Log.Info("Reservation cancelled", "id", id, "room_id", cancelled.RoomID)
		s.publish(ctx, events.TypeReservationCancelled, cancelled)
		return nil
	}

	return apperrors.ConcurrentModification("Reservation was modified concurrently, please retry")
}

func (s *reservationService) Availability(ctx context.Context, roomID string, day time.Time) ([]model.Interval, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", roomID)
		}
		return nil, apperrors.Unavailable("Room directory", err)
	}

	window := room.BusinessHours
	if window.Start == "" || window.End == "" {
		window = model.DayWindow{Start: s.cfg.DefaultStartOfDay, End: s.cfg.DefaultEndOfDay}
	}
	businessHours, err := window.On(day)
	if err != nil {
		return nil, apperrors.Internal("Invalid business hours for room", err)
	}

	reservations, err := s.repo.FindActiveOverlapping(ctx, roomID, businessHours, "")
	if err != nil {
		return nil, apperrors.Unavailable("Reservation store", err)
	}

	return freeWindows(businessHours, reservations), nil
}

func (s *reservationService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByUser(ctx, userID) },
		func(ctx context.Context) ([]*model.Reservation, error) { return s.repo.FindByUser(ctx, userID, limit, offset) },
	)
}

func (s *reservationService) ListByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if roomID == "" {
		return nil, 0, apperrors.InvalidInput("Room ID cannot be empty")
	}
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByRoom(ctx, roomID) },
		func(ctx context.Context) ([]*model.Reservation, error) { return s.repo.FindByRoom(ctx, roomID, limit, offset) },
	)
}

// --- Helpers ---

func (s *reservationService) listConcurrently(
	ctx context.Context,
	count func(context.Context) (int64, error),
	find func(context.Context) ([]*model.Reservation, error),
) ([]*model.Reservation, int64, error) {
	var total int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return reservations, total, nil
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) authorize(ctx context.Context, actorID string, reservation *model.Reservation) error {
	allowed, err := s.authorizer.CanModify(ctx, actorID, reservation)
	if err != nil {
		return apperrors.Internal("Authorization check failed", err)
	}
	if !allowed {
		return apperrors.Forbidden("Only the reservation owner or an admin may modify it")
	}
	return nil
}

// loadActive fetches a reservation that must still be active; a cancelled
// reservation is treated as gone, cancellation being terminal.
func (s *reservationService) loadActive(ctx context.Context, id string) (*model.Reservation, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	if !existing.IsActive() {
		return nil, apperrors.NotFoundWithID("Reservation", id)
	}
	return existing, nil
}

func (s *reservationService) mapLookupError(err error, id string) error {
	switch {
	case errors.Is(err, reserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id)
	case errors.Is(err, reserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid reservation ID format")
	default:
		return apperrors.Unavailable("Reservation store", err)
	}
}

func (s *reservationService) acquireRoomLock(ctx context.Context, roomID string) (func(), error) {
	if err := s.locks.Acquire(ctx, roomID, s.cfg.RoomLockTTL); err != nil {
		if errors.Is(err, reserrors.ErrRoomLockHeld) {
			return nil, apperrors.ConcurrentModification("Room is busy handling another reservation, please retry")
		}
		return nil, apperrors.Unavailable("Reservation store", err)
	}

	return func() {
		if err := s.locks.Release(ctx, roomID); err != nil {
			s.cfg.Log.Warn("Failed to release room lock", "room_id", roomID, "error", err)
		}
	}, nil
}

// publish emits a lifecycle event. Publishing is best-effort: the write
// already committed, so a broker failure is logged and never propagated.
func (s *reservationService) publish(ctx context.Context, typ events.Type, reservation *model.Reservation) {
	event := events.Event{
		Type:          typ,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
		UserID:        reservation.UserID,
		StartTime:     reservation.StartTime,
		EndTime:       reservation.EndTime,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"type", typ,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}

func conflictError(conflicts []*model.Reservation) *apperrors.AppError {
	windows := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		windows = append(windows, fmt.Sprintf("%s - %s",
			c.StartTime.Format(time.RFC3339),
			c.EndTime.Format(time.RFC3339),
		))
	}
	return apperrors.Conflict("Room is already reserved during this time").WithDetails(map[string]any{
		"conflicts": conflicts,
		"windows":   windows,
	})
}
