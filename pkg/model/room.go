package model

import (
	"fmt"
	"time"
)

// Room is read-only reference data owned by the room directory.
// The engine never writes rooms.
type Room struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name          string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity      int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=500"`
	BusinessHours DayWindow `json:"business_hours" bson:"business_hours"`
}

// DayWindow is a recurring daily window in wall-clock "HH:MM" form,
// e.g. {Start: "08:00", End: "20:00"}.
type DayWindow struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

// On anchors the window to a concrete day, producing the half-open
// business-hours interval for that date in the day's location.
func (w DayWindow) On(day time.Time) (Interval, error) {
	start, err := time.ParseInLocation("15:04", w.Start, day.Location())
	if err != nil {
		return Interval{}, fmt.Errorf("invalid window start %q: %w", w.Start, err)
	}
	end, err := time.ParseInLocation("15:04", w.End, day.Location())
	if err != nil {
		return Interval{}, fmt.Errorf("invalid window end %q: %w", w.End, err)
	}

	y, m, d := day.Date()
	return NewInterval(
		time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, day.Location()),
		time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, day.Location()),
	)
}
