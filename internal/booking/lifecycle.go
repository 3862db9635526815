// Package booking is the ledger of tenancy commitments. A booking has two
// independent axes: its lifecycle (pending → confirmed → active → completed,
// or cancelled) driven by the parties and the clock, and its payment status
// driven only by the payment authority.
package booking

import (
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Step is one time-driven lifecycle move.
type Step struct {
	From market.BookingStatus
	To   market.BookingStatus
}

// Advance applies every time-driven move due at now, to a fixpoint:
// confirmed becomes active on the move-in date and active becomes completed
// on the move-out date. It performs no I/O and never mutates b.
func Advance(b market.Booking, now time.Time) (market.Booking, []Step) {
	var steps []Step
	for {
		var to market.BookingStatus
		switch {
		case b.Status == market.BookingConfirmed && !now.Before(b.MoveInDate):
			to = market.BookingActive
		case b.Status == market.BookingActive && !now.Before(b.MoveOutDate):
			to = market.BookingCompleted
		default:
			return b, steps
		}
		steps = append(steps, Step{From: b.Status, To: to})
		b.Status = to
		b.UpdatedAtMs = now.UnixMilli()
	}
}

// ProratedMaintenance charges maintenance for the days of the move-in month
// from the move-in day through month end, rounded to the nearest unit.
func ProratedMaintenance(monthly int64, moveIn time.Time) int64 {
	if monthly <= 0 {
		return 0
	}
	y, m, d := moveIn.Date()
	daysInMonth := int64(time.Date(y, m+1, 0, 0, 0, 0, 0, moveIn.Location()).Day())
	remaining := daysInMonth - int64(d) + 1
	return (2*monthly*remaining + daysInMonth) / (2 * daysInMonth)
}

// MoveOutDate is the move-in date plus the tenancy duration in calendar months.
func MoveOutDate(moveIn time.Time, months int) time.Time {
	return moveIn.AddDate(0, months, 0)
}

// startOfDay truncates t to midnight in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
