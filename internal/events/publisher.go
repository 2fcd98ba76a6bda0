// Package events is the lifecycle-notification port. The engine publishes
// through it after successful mutations; delivery is at-most-once and a
// failed publish never fails the operation that triggered it.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypeReservationCreated     Type = "reservation-created"
	TypeReservationRescheduled Type = "reservation-rescheduled"
	TypeReservationCancelled   Type = "reservation-cancelled"
)

type Event struct {
	Type          Type      `json:"type"`
	ReservationID string    `json:"reservation_id"`
	RoomID        string    `json:"room_id"`
	UserID        string    `json:"user_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used in tests and when the service runs
// without a broker.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
