package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"roomio/internal/events"
	reserrors "roomio/internal/reservations/errors"
	"roomio/internal/reservations/repository"
	"roomio/internal/reservations/validator"
	"roomio/internal/rooms"
	"roomio/pkg/config"
	apperrors "roomio/pkg/errors"
	"roomio/pkg/logger"
	"roomio/pkg/model"
)

const (
	testRoomID  = "room-1"
	testUserID  = "user-1"
	testAdminID = "admin-1"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		RoomLockTTL:       time.Second,
		DefaultStartOfDay: "08:00",
		DefaultEndOfDay:   "20:00",
		Log:               logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
	}
}

type fixture struct {
	svc       ReservationService
	repo      repository.ReservationRepository
	publisher *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()
	repo := repository.NewMemoryReservationRepository()
	publisher := &capturePublisher{}
	svc := NewReservationService(
		repo,
		repository.NewMemoryRoomLockRepository(),
		rooms.NewMemoryDirectory(&model.Room{ID: testRoomID, Name: "Main Hall", Capacity: 10}),
		OwnerAuthorizer{AdminIDs: map[string]bool{testAdminID: true}},
		publisher,
		validator.NewReservationValidator(cfg.Log),
		cfg,
	)
	return &fixture{svc: svc, repo: repo, publisher: publisher}
}

// futureSlot returns a window starting the given number of hours into
// tomorrow, so validation's future-start rule always passes.
func futureSlot(startHours, durationHours int) (time.Time, time.Time) {
	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	start := base.Add(time.Duration(startHours) * time.Hour)
	return start, start.Add(time.Duration(durationHours) * time.Hour)
}

func mustCreate(t *testing.T, f *fixture, userID string, startHours, durationHours int) *model.Reservation {
	t.Helper()
	start, end := futureSlot(startHours, durationHours)
	res, err := f.svc.Create(context.Background(), testRoomID, userID, start, end)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return res
}

func assertCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code, err)
	}
	return appErr
}

func TestCreate_Succeeds(t *testing.T) {
	f := newFixture(t)

	res := mustCreate(t, f, testUserID, 1, 2)

	if res.ID == "" {
		t.Error("expected generated reservation ID")
	}
	if res.Status != model.StatusActive {
		t.Errorf("expected status %s, got %s", model.StatusActive, res.Status)
	}
	if res.Version != 0 {
		t.Errorf("expected version 0, got %d", res.Version)
	}

	stored, err := f.repo.FindByID(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}

	published := f.publisher.Events()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	if published[0].Type != events.TypeReservationCreated {
		t.Errorf("expected event %s, got %s", events.TypeReservationCreated, published[0].Type)
	}
	if published[0].RoomID != testRoomID {
		t.Errorf("expected event room %s, got %s", testRoomID, published[0].RoomID)
	}
}

func TestCreate_OverlapRejectedWithConflicts(t *testing.T) {
	f := newFixture(t)
	existing := mustCreate(t, f, testUserID, 1, 2)

	start, end := futureSlot(2, 2)
	_, err := f.svc.Create(context.Background(), testRoomID, "user-2", start, end)

	appErr := assertCode(t, err, apperrors.CodeConflict)
	conflicts, ok := appErr.Details["conflicts"].([]*model.Reservation)
	if !ok {
		t.Fatalf("expected conflicts detail, got %#v", appErr.Details["conflicts"])
	}
	if len(conflicts) != 1 || conflicts[0].ID != existing.ID {
		t.Errorf("expected conflict with %s, got %#v", existing.ID, conflicts)
	}

	if n := len(f.publisher.Events()); n != 1 {
		t.Errorf("rejected create must not publish, got %d events", n)
	}
}

func TestCreate_TouchingBoundariesDoNotConflict(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, testUserID, 1, 2)

	// [3h, 4h) starts exactly where [1h, 3h) ends.
	start, end := futureSlot(3, 1)
	if _, err := f.svc.Create(context.Background(), testRoomID, "user-2", start, end); err != nil {
		t.Fatalf("back-to-back reservation rejected: %v", err)
	}
}

func TestCreate_SeparateRoomsNeverConflict(t *testing.T) {
	cfg := testConfig()
	repo := repository.NewMemoryReservationRepository()
	svc := NewReservationService(
		repo,
		repository.NewMemoryRoomLockRepository(),
		rooms.NewMemoryDirectory(
			&model.Room{ID: "room-a", Name: "A"},
			&model.Room{ID: "room-b", Name: "B"},
		),
		OwnerAuthorizer{},
		events.NopPublisher{},
		validator.NewReservationValidator(cfg.Log),
		cfg,
	)

	start, end := futureSlot(1, 2)
	if _, err := svc.Create(context.Background(), "room-a", testUserID, start, end); err != nil {
		t.Fatalf("Create(room-a) error = %v", err)
	}
	if _, err := svc.Create(context.Background(), "room-b", testUserID, start, end); err != nil {
		t.Fatalf("identical interval in another room rejected: %v", err)
	}
}

func TestCreate_RejectsPastStart(t *testing.T) {
	f := newFixture(t)

	start := time.Now().UTC().Add(-time.Hour)
	_, err := f.svc.Create(context.Background(), testRoomID, testUserID, start, start.Add(2*time.Hour))

	assertCode(t, err, apperrors.CodeValidation)
}

func TestCreate_RejectsInvertedInterval(t *testing.T) {
	f := newFixture(t)

	start, _ := futureSlot(2, 1)
	_, err := f.svc.Create(context.Background(), testRoomID, testUserID, start, start.Add(-time.Hour))

	assertCode(t, err, apperrors.CodeValidation)
}

func TestCreate_UnknownRoom(t *testing.T) {
	f := newFixture(t)

	start, end := futureSlot(1, 1)
	_, err := f.svc.Create(context.Background(), "no-such-room", testUserID, start, end)

	assertCode(t, err, apperrors.CodeValidation)
}

func TestReschedule_Succeeds(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	start, end := futureSlot(5, 2)
	updated, err := f.svc.Reschedule(context.Background(), testUserID, res.ID, start, end)
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}

	if !updated.StartTime.Equal(start) || !updated.EndTime.Equal(end) {
		t.Errorf("expected window [%v, %v), got [%v, %v)", start, end, updated.StartTime, updated.EndTime)
	}
	if updated.Version != res.Version+1 {
		t.Errorf("expected version bump to %d, got %d", res.Version+1, updated.Version)
	}

	published := f.publisher.Events()
	if len(published) != 2 || published[1].Type != events.TypeReservationRescheduled {
		t.Fatalf("expected rescheduled event, got %#v", published)
	}
}

func TestReschedule_DoesNotConflictWithItself(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	// Shift by 30 minutes; the new window still overlaps the old one.
	start := res.StartTime.Add(30 * time.Minute)
	end := res.EndTime.Add(30 * time.Minute)
	if _, err := f.svc.Reschedule(context.Background(), testUserID, res.ID, start, end); err != nil {
		t.Fatalf("overlapping self-reschedule rejected: %v", err)
	}
}

func TestReschedule_ConflictWithOther(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)
	other := mustCreate(t, f, "user-2", 5, 2)

	_, err := f.svc.Reschedule(context.Background(), testUserID, res.ID, other.StartTime, other.EndTime)

	appErr := assertCode(t, err, apperrors.CodeConflict)
	conflicts := appErr.Details["conflicts"].([]*model.Reservation)
	if len(conflicts) != 1 || conflicts[0].ID != other.ID {
		t.Errorf("expected conflict with %s, got %#v", other.ID, conflicts)
	}
}

func TestReschedule_RejectsPastStart(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	start := time.Now().UTC().Add(-2 * time.Hour)
	_, err := f.svc.Reschedule(context.Background(), testUserID, res.ID, start, start.Add(time.Hour))

	assertCode(t, err, apperrors.CodeValidation)
}

func TestReschedule_NotFound(t *testing.T) {
	f := newFixture(t)

	start, end := futureSlot(1, 1)
	_, err := f.svc.Reschedule(context.Background(), testUserID, "missing", start, end)

	assertCode(t, err, apperrors.CodeNotFound)
}

func TestReschedule_CancelledReservationIsGone(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)
	if err := f.svc.Cancel(context.Background(), testUserID, res.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	start, end := futureSlot(5, 1)
	_, err := f.svc.Reschedule(context.Background(), testUserID, res.ID, start, end)

	assertCode(t, err, apperrors.CodeNotFound)
}

func TestReschedule_ForbiddenForNonOwner(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	start, end := futureSlot(5, 1)
	_, err := f.svc.Reschedule(context.Background(), "someone-else", res.ID, start, end)

	assertCode(t, err, apperrors.CodeForbidden)
}

func TestReschedule_AdminMayModify(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	start, end := futureSlot(5, 1)
	if _, err := f.svc.Reschedule(context.Background(), testAdminID, res.ID, start, end); err != nil {
		t.Fatalf("admin reschedule rejected: %v", err)
	}
}

// casConflictRepo forces every compare-and-swap to lose its race.
type casConflictRepo struct {
	repository.ReservationRepository
}

func (r casConflictRepo) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate repository.Mutator) (*model.Reservation, error) {
	return nil, reserrors.ErrVersionConflict
}

func TestReschedule_RetriesExhausted(t *testing.T) {
	cfg := testConfig()
	repo := repository.NewMemoryReservationRepository()
	svc := NewReservationService(
		casConflictRepo{ReservationRepository: repo},
		repository.NewMemoryRoomLockRepository(),
		rooms.NewMemoryDirectory(&model.Room{ID: testRoomID}),
		OwnerAuthorizer{},
		events.NopPublisher{},
		validator.NewReservationValidator(cfg.Log),
		cfg,
	)

	start, end := futureSlot(1, 2)
	seed := &model.Reservation{
		ID:        "7f8c9f1a-31a6-4d7e-9a6c-0c2b7f2f4e10",
		RoomID:    testRoomID,
		UserID:    testUserID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusActive,
	}
	if err := repo.Insert(context.Background(), seed); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	newStart, newEnd := futureSlot(5, 1)
	_, err := svc.Reschedule(context.Background(), testUserID, seed.ID, newStart, newEnd)

	assertCode(t, err, apperrors.CodeConcurrentModification)
}

func TestCancel_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	if err := f.svc.Cancel(context.Background(), testUserID, res.ID); err != nil {
		t.Fatalf("first Cancel() error = %v", err)
	}
	if err := f.svc.Cancel(context.Background(), testUserID, res.ID); err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}

	var cancelled int
	for _, e := range f.publisher.Events() {
		if e.Type == events.TypeReservationCancelled {
			cancelled++
		}
	}
	if cancelled != 1 {
		t.Errorf("expected exactly one cancelled event, got %d", cancelled)
	}

	stored, err := f.repo.FindByID(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.Status != model.StatusCancelled {
		t.Errorf("expected status %s, got %s", model.StatusCancelled, stored.Status)
	}
}

func TestCancel_FreesTheSlot(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	if err := f.svc.Cancel(context.Background(), testUserID, res.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if _, err := f.svc.Create(context.Background(), testRoomID, "user-2", res.StartTime, res.EndTime); err != nil {
		t.Fatalf("slot still blocked after cancellation: %v", err)
	}
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Cancel(context.Background(), testUserID, "missing")

	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancel_ForbiddenForNonOwner(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, testUserID, 1, 2)

	err := f.svc.Cancel(context.Background(), "someone-else", res.ID)

	assertCode(t, err, apperrors.CodeForbidden)
}

func TestListByUser_ReturnsOwnReservationsOnly(t *testing.T) {
	f := newFixture(t)
	mine := mustCreate(t, f, testUserID, 1, 1)
	mustCreate(t, f, "user-2", 3, 1)

	listed, total, err := f.svc.ListByUser(context.Background(), testUserID, 50, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if total != 1 || len(listed) != 1 {
		t.Fatalf("expected 1 reservation, got total=%d len=%d", total, len(listed))
	}
	if listed[0].ID != mine.ID {
		t.Errorf("expected %s, got %s", mine.ID, listed[0].ID)
	}
}

func TestListByRoom_SortedByStart(t *testing.T) {
	f := newFixture(t)
	later := mustCreate(t, f, testUserID, 5, 1)
	earlier := mustCreate(t, f, "user-2", 1, 1)

	listed, total, err := f.svc.ListByRoom(context.Background(), testRoomID, 50, 0)
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if total != 2 || len(listed) != 2 {
		t.Fatalf("expected 2 reservations, got total=%d len=%d", total, len(listed))
	}
	if listed[0].ID != earlier.ID || listed[1].ID != later.ID {
		t.Errorf("expected start-time order [%s %s], got [%s %s]",
			earlier.ID, later.ID, listed[0].ID, listed[1].ID)
	}
}

func TestListByUser_EmptyID(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.ListByUser(context.Background(), "", 50, 0)

	assertCode(t, err, apperrors.CodeInvalidInput)
}
