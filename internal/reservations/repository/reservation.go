package repository

import (
	"context"
	"errors"
	"fmt"
	reserrors "roomio/internal/reservations/errors"
	"roomio/pkg/config"
	mongotx "roomio/pkg/db/mongo"
	"roomio/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

// Mutator edits a reservation in place during a compare-and-swap. It must
// not touch ID, Version or CreatedAt; the store owns those.
type Mutator func(*model.Reservation)

// ReservationRepository is the minimum store contract the engine needs:
// ordered overlap queries, duplicate-safe insert, and version-checked
// compare-and-swap. Any backing store providing these three is usable.
type ReservationRepository interface {
	FindActiveOverlapping(ctx context.Context, roomID string, interval model.Interval, excludeID string) ([]*model.Reservation, error)
	Insert(ctx context.Context, reservation *model.Reservation) error
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Reservation, error)
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	FindByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it already runs inside
// a transaction; a SessionContext cannot be wrapped without breaking the
// session binding.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) FindActiveOverlapping(ctx context.Context, roomID string, interval model.Interval, excludeID string) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_id":    roomID,
		"status":     model.StatusActive,
		"start_time": bson.M{"$lt": interval.End},
		"end_time":   bson.M{"$gt": interval.Start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	// Ascending start order: the availability sweep and conflict reports
	// depend on it.
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) Insert(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", reserrors.ErrDuplicateID, reservation.ID)
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, reserrors.ErrVersionConflict
	}

	updated := *current
	mutate(&updated)
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.Version = expectedVersion + 1

	// The version in the filter is what makes this atomic: a concurrent
	// writer that already bumped the version leaves MatchedCount at zero.
	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"room_id":    updated.RoomID,
			"user_id":    updated.UserID,
			"start_time": updated.StartTime,
			"end_time":   updated.EndTime,
			"status":     updated.Status,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a lost race from a vanished document.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, reserrors.ErrVersionConflict
	}

	return &updated, nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if id == "" {
		return nil, fmt.Errorf("%w: empty id", reserrors.ErrInvalidID)
	}

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findSorted(ctx, bson.M{"user_id": userID}, limit, offset)
}

func (r *mongoReservationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, bson.M{"user_id": userID})
}

func (r *mongoReservationRepository) FindByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findSorted(ctx, bson.M{"room_id": roomID}, limit, offset)
}

func (r *mongoReservationRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	return r.count(ctx, bson.M{"room_id": roomID})
}

func (r *mongoReservationRepository) findSorted(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
