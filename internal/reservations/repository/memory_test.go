package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	reserrors "roomio/internal/reservations/errors"
	"roomio/pkg/model"
)

func seed(t *testing.T, repo ReservationRepository, id, roomID, userID string, start, end time.Time) *model.Reservation {
	t.Helper()
	res := &model.Reservation{
		ID:        id,
		RoomID:    roomID,
		UserID:    userID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusActive,
	}
	if err := repo.Insert(context.Background(), res); err != nil {
		t.Fatalf("Insert(%s) error = %v", id, err)
	}
	return res
}

func TestInsert_RejectsDuplicateID(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC()
	seed(t, repo, "res-1", "room-1", "user-1", base, base.Add(time.Hour))

	err := repo.Insert(context.Background(), &model.Reservation{
		ID:        "res-1",
		RoomID:    "room-1",
		UserID:    "user-2",
		StartTime: base.Add(2 * time.Hour),
		EndTime:   base.Add(3 * time.Hour),
		Status:    model.StatusActive,
	})

	if !errors.Is(err, reserrors.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestCompareAndSwap_IncrementsVersion(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC()
	res := seed(t, repo, "res-1", "room-1", "user-1", base, base.Add(time.Hour))

	updated, err := repo.CompareAndSwap(context.Background(), res.ID, 0, func(r *model.Reservation) {
		r.Status = model.StatusCancelled
	})
	if err != nil {
		t.Fatalf("CompareAndSwap() error = %v", err)
	}

	if updated.Version != 1 {
		t.Errorf("expected version 1, got %d", updated.Version)
	}
	if updated.Status != model.StatusCancelled {
		t.Errorf("expected status %s, got %s", model.StatusCancelled, updated.Status)
	}

	stored, err := repo.FindByID(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.Version != 1 || stored.Status != model.StatusCancelled {
		t.Errorf("mutation not persisted: %+v", stored)
	}
}

func TestCompareAndSwap_StaleVersion(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC()
	res := seed(t, repo, "res-1", "room-1", "user-1", base, base.Add(time.Hour))

	if _, err := repo.CompareAndSwap(context.Background(), res.ID, 0, func(r *model.Reservation) {
		r.EndTime = r.EndTime.Add(time.Hour)
	}); err != nil {
		t.Fatalf("first CompareAndSwap() error = %v", err)
	}

	// Second writer still holds version 0.
	_, err := repo.CompareAndSwap(context.Background(), res.ID, 0, func(r *model.Reservation) {
		r.Status = model.StatusCancelled
	})
	if !errors.Is(err, reserrors.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), res.ID)
	if stored.Status != model.StatusActive {
		t.Error("losing writer must not be applied")
	}
}

func TestCompareAndSwap_NotFound(t *testing.T) {
	repo := NewMemoryReservationRepository()

	_, err := repo.CompareAndSwap(context.Background(), "missing", 0, func(r *model.Reservation) {})

	if !errors.Is(err, reserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompareAndSwap_MutatorCannotChangeIdentity(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC()
	res := seed(t, repo, "res-1", "room-1", "user-1", base, base.Add(time.Hour))

	updated, err := repo.CompareAndSwap(context.Background(), res.ID, 0, func(r *model.Reservation) {
		r.ID = "hijacked"
		r.Version = 99
	})
	if err != nil {
		t.Fatalf("CompareAndSwap() error = %v", err)
	}

	if updated.ID != res.ID {
		t.Errorf("expected ID %s, got %s", res.ID, updated.ID)
	}
	if updated.Version != 1 {
		t.Errorf("expected version 1, got %d", updated.Version)
	}
}

func TestFindActiveOverlapping_FilterAndOrder(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC().Truncate(time.Hour)

	seed(t, repo, "res-b", "room-1", "user-1", base.Add(3*time.Hour), base.Add(4*time.Hour))
	seed(t, repo, "res-a", "room-1", "user-1", base.Add(1*time.Hour), base.Add(2*time.Hour))
	seed(t, repo, "res-other", "room-2", "user-1", base.Add(1*time.Hour), base.Add(4*time.Hour))
	cancelled := seed(t, repo, "res-gone", "room-1", "user-1", base.Add(1*time.Hour), base.Add(4*time.Hour))
	if _, err := repo.CompareAndSwap(context.Background(), cancelled.ID, 0, func(r *model.Reservation) {
		r.Status = model.StatusCancelled
	}); err != nil {
		t.Fatalf("CompareAndSwap() error = %v", err)
	}

	got, err := repo.FindActiveOverlapping(context.Background(), "room-1", model.Interval{
		Start: base,
		End:   base.Add(6 * time.Hour),
	}, "")
	if err != nil {
		t.Fatalf("FindActiveOverlapping() error = %v", err)
	}

	if len(got) != 2 || got[0].ID != "res-a" || got[1].ID != "res-b" {
		t.Errorf("expected [res-a res-b], got %v", got)
	}
}

func TestFindActiveOverlapping_ExcludesTouching(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC().Truncate(time.Hour)
	seed(t, repo, "res-1", "room-1", "user-1", base.Add(1*time.Hour), base.Add(2*time.Hour))

	got, err := repo.FindActiveOverlapping(context.Background(), "room-1", model.Interval{
		Start: base.Add(2 * time.Hour),
		End:   base.Add(3 * time.Hour),
	}, "")
	if err != nil {
		t.Fatalf("FindActiveOverlapping() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("touching interval must not match, got %v", got)
	}
}

func TestFindByUser_Pagination(t *testing.T) {
	repo := NewMemoryReservationRepository()
	base := time.Now().UTC().Truncate(time.Hour)
	for i := 0; i < 5; i++ {
		seed(t, repo, string(rune('a'+i)), "room-1", "user-1",
			base.Add(time.Duration(i)*time.Hour),
			base.Add(time.Duration(i)*time.Hour+30*time.Minute))
	}

	page, err := repo.FindByUser(context.Background(), "user-1", 2, 1)
	if err != nil {
		t.Fatalf("FindByUser() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
		t.Errorf("expected page [b c], got %v", page)
	}

	total, err := repo.CountByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CountByUser() error = %v", err)
	}
	if total != 5 {
		t.Errorf("expected count 5, got %d", total)
	}
}

func TestRoomLock_TryLockSemantics(t *testing.T) {
	locks := NewMemoryRoomLockRepository()
	ctx := context.Background()

	if err := locks.Acquire(ctx, "room-1", time.Minute); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := locks.Acquire(ctx, "room-1", time.Minute); !errors.Is(err, reserrors.ErrRoomLockHeld) {
		t.Errorf("expected ErrRoomLockHeld, got %v", err)
	}
	// Another room is independent.
	if err := locks.Acquire(ctx, "room-2", time.Minute); err != nil {
		t.Errorf("Acquire(room-2) error = %v", err)
	}

	if err := locks.Release(ctx, "room-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := locks.Acquire(ctx, "room-1", time.Minute); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestRoomLock_ExpiredLockIsTakenOver(t *testing.T) {
	locks := NewMemoryRoomLockRepository()
	ctx := context.Background()

	if err := locks.Acquire(ctx, "room-1", time.Nanosecond); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := locks.Acquire(ctx, "room-1", time.Minute); err != nil {
		t.Errorf("expected takeover of expired lock, got %v", err)
	}
}
