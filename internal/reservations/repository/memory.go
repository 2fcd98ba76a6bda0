package repository

import (
	"context"
	"fmt"
	reserrors "roomio/internal/reservations/errors"
	mongotx "roomio/pkg/db/mongo"
	"roomio/pkg/model"
	"sort"
	"sync"
	"time"
)

// memoryReservationRepository keeps reservations in a map guarded by a
// single mutex. It honors the same contract as the Mongo store, including
// compare-and-swap semantics, so the engine behaves identically in tests.
type memoryReservationRepository struct {
	mu           sync.RWMutex
	reservations map[string]*model.Reservation
}

func NewMemoryReservationRepository() ReservationRepository {
	return &memoryReservationRepository{
		reservations: make(map[string]*model.Reservation),
	}
}

func (r *memoryReservationRepository) FindActiveOverlapping(ctx context.Context, roomID string, interval model.Interval, excludeID string) ([]*model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*model.Reservation
	for _, res := range r.reservations {
		if res.RoomID != roomID || !res.IsActive() || res.ID == excludeID {
			continue
		}
		if res.Interval().Overlaps(interval) {
			clone := *res
			matches = append(matches, &clone)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartTime.Before(matches[j].StartTime)
	})
	return matches, nil
}

func (r *memoryReservationRepository) Insert(ctx context.Context, reservation *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reservations[reservation.ID]; exists {
		return fmt.Errorf("%w: %s", reserrors.ErrDuplicateID, reservation.ID)
	}

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	clone := *reservation
	r.reservations[reservation.ID] = &clone
	return nil
}

func (r *memoryReservationRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.reservations[id]
	if !exists {
		return nil, reserrors.ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, reserrors.ErrVersionConflict
	}

	updated := *current
	mutate(&updated)
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.Version = expectedVersion + 1

	r.reservations[id] = &updated
	clone := updated
	return &clone, nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, exists := r.reservations[id]
	if !exists {
		return nil, reserrors.ErrNotFound
	}
	clone := *res
	return &clone, nil
}

func (r *memoryReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findSorted(func(res *model.Reservation) bool { return res.UserID == userID }, limit, offset), nil
}

func (r *memoryReservationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(func(res *model.Reservation) bool { return res.UserID == userID }), nil
}

func (r *memoryReservationRepository) FindByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findSorted(func(res *model.Reservation) bool { return res.RoomID == roomID }, limit, offset), nil
}

func (r *memoryReservationRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	return r.count(func(res *model.Reservation) bool { return res.RoomID == roomID }), nil
}

func (r *memoryReservationRepository) findSorted(match func(*model.Reservation) bool, limit int, offset int64) []*model.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*model.Reservation
	for _, res := range r.reservations {
		if match(res) {
			clone := *res
			matches = append(matches, &clone)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartTime.Before(matches[j].StartTime)
	})

	if offset >= int64(len(matches)) {
		return nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}

func (r *memoryReservationRepository) count(match func(*model.Reservation) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, res := range r.reservations {
		if match(res) {
			n++
		}
	}
	return n
}

// ExecuteTransaction runs fn directly; the single mutex already makes each
// store operation atomic, and the engine's room lock covers the sequence.
func (r *memoryReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

// memoryRoomLockRepository mirrors the advisory-lock collection with a
// mutex-guarded map, including TTL takeover.
type memoryRoomLockRepository struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewMemoryRoomLockRepository() RoomLockRepository {
	return &memoryRoomLockRepository{locks: make(map[string]time.Time)}
}

func (r *memoryRoomLockRepository) Acquire(ctx context.Context, roomID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if expiresAt, held := r.locks[roomID]; held && expiresAt.After(now) {
		return reserrors.ErrRoomLockHeld
	}
	r.locks[roomID] = now.Add(ttl)
	return nil
}

func (r *memoryRoomLockRepository) Release(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, roomID)
	return nil
}
