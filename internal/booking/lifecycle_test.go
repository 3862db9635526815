package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

func TestProratedMaintenance(t *testing.T) {
	tests := []struct {
		name    string
		monthly int64
		moveIn  time.Time
		want    int64
	}{
		{"first of month charges in full", 900, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 900},
		{"last day charges one day", 3100, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), 100},
		{"mid month rounds half up", 900, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 494},
		{"february in a leap year", 2900, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), 1500},
		{"no maintenance", 0, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProratedMaintenance(tt.monthly, tt.moveIn))
		})
	}
}

func TestMoveOutDate(t *testing.T) {
	moveIn := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), MoveOutDate(moveIn, 6))
	assert.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), MoveOutDate(moveIn, 24))
}

func TestAdvance(t *testing.T) {
	moveIn := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	base := market.Booking{
		Status:      market.BookingConfirmed,
		MoveInDate:  moveIn,
		MoveOutDate: moveIn.AddDate(0, 3, 0),
	}

	t.Run("nothing due before move-in", func(t *testing.T) {
		next, steps := Advance(base, moveIn.Add(-time.Second))
		assert.Empty(t, steps)
		assert.Equal(t, market.BookingConfirmed, next.Status)
	})

	t.Run("activates at move-in", func(t *testing.T) {
		next, steps := Advance(base, moveIn)
		assert.Equal(t, []Step{{From: market.BookingConfirmed, To: market.BookingActive}}, steps)
		assert.Equal(t, market.BookingActive, next.Status)
		assert.Equal(t, market.BookingConfirmed, base.Status, "input is not mutated")
	})

	t.Run("runs to fixpoint past move-out", func(t *testing.T) {
		next, steps := Advance(base, moveIn.AddDate(1, 0, 0))
		assert.Len(t, steps, 2)
		assert.Equal(t, market.BookingCompleted, next.Status)
	})

	t.Run("pending bookings are not time driven", func(t *testing.T) {
		pending := base
		pending.Status = market.BookingPending
		_, steps := Advance(pending, moveIn.AddDate(1, 0, 0))
		assert.Empty(t, steps)
	})
}
