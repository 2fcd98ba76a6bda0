package repository

import (
	"context"
	"fmt"
	reserrors "roomio/internal/reservations/errors"
	"roomio/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const lockCollectionName = "Room_locks"

// RoomLockRepository serializes check-then-write sequences per room.
// Acquire is a try-lock: a held lock surfaces ErrRoomLockHeld immediately
// instead of blocking, so callers can turn it into a transient conflict.
type RoomLockRepository interface {
	Acquire(ctx context.Context, roomID string, ttl time.Duration) error
	Release(ctx context.Context, roomID string) error
}

type mongoRoomLockRepository struct {
	collection *mongo.Collection
}

func NewMongoRoomLockRepository(client *mongo.Client, database string) RoomLockRepository {
	return &mongoRoomLockRepository{
		collection: client.Database(database).Collection(lockCollectionName),
	}
}

func lockID(roomID string) string {
	return "room_lock_" + roomID
}

// Acquire inserts the lock document; the unique _id makes acquisition
// atomic across service instances. An expired leftover from a crashed
// holder is taken over in place.
func (r *mongoRoomLockRepository) Acquire(ctx context.Context, roomID string, ttl time.Duration) error {
	now := time.Now()
	lock := &model.RoomLock{
		ID:        lockID(roomID),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire room lock: %w", err)
	}

	// Steal the lock only if the previous holder's TTL has passed.
	result, replaceErr := r.collection.ReplaceOne(ctx,
		bson.M{"_id": lock.ID, "expires_at": bson.M{"$lt": now}},
		lock,
	)
	if replaceErr != nil {
		return fmt.Errorf("failed to take over expired room lock: %w", replaceErr)
	}
	if result.MatchedCount == 0 {
		return reserrors.ErrRoomLockHeld
	}
	return nil
}

func (r *mongoRoomLockRepository) Release(ctx context.Context, roomID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID(roomID)})
	return err
}
