package service

import (
	"roomio/pkg/model"
)

// freeWindows subtracts the reservations from the business-hours window in
// one linear pass, emitting maximal free intervals in ascending order.
//
// The sweep is correct only because the input is sorted by start time and
// active reservations of a room never overlap each other; both are
// guaranteed by the store contract and the no-overlap invariant.
func freeWindows(businessHours model.Interval, reservations []*model.Reservation) []model.Interval {
	free := make([]model.Interval, 0, len(reservations)+1)
	cursor := businessHours.Start

	for _, res := range reservations {
		start := res.StartTime
		if start.Before(businessHours.Start) {
			start = businessHours.Start
		}
		if start.After(cursor) {
			free = append(free, model.Interval{Start: cursor, End: start})
		}
		if res.EndTime.After(cursor) {
			cursor = res.EndTime
		}
	}

	if cursor.Before(businessHours.End) {
		free = append(free, model.Interval{Start: cursor, End: businessHours.End})
	}

	return free
}
