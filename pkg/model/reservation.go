package model

import (
	"time"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

type Reservation struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	RoomID    string    `json:"room_id" bson:"room_id" validate:"required"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status    string    `json:"status" bson:"status" validate:"required,oneof=active cancelled"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`

	// Version is the optimistic-concurrency token. Every mutation through
	// the store's compare-and-swap increments it; a stale version means the
	// record changed under the caller.
	Version int64 `json:"version" bson:"version"`
}

func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}
