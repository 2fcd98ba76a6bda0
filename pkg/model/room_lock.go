package model

import "time"

// RoomLock is an advisory lock document that serializes check-then-write
// sequences for a single room. The unique _id makes acquisition atomic;
// ExpiresAt bounds how long a crashed holder can keep the room blocked.
type RoomLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
