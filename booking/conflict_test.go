package booking_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/salon"
)

func existing(id string, seq int, start salon.SlotTime, minutes int, status salon.Status) salon.Booking {
	emp := salon.EmployeeID("emp-1")
	b := salon.Booking{ID: salon.BookingID(id), TokenSeq: seq, EmployeeID: &emp, Time: start, Status: status}
	if minutes > 0 {
		b.Items = []salon.BookingItem{{DurationMinutes: minutes, Price: decimal.Zero}}
	}
	return b
}

func slot(h, m, minutes int) salon.Slot {
	start := salon.NewSlotTime(h, m)
	return salon.Slot{Start: start, End: start.Add(minutes)}
}

func TestFindConflict_SuggestsEndOfConflict(t *testing.T) {
	// GIVEN: 10:00-10:30 is taken
	day := []salon.Booking{existing("a", 1, salon.NewSlotTime(10, 0), 30, salon.StatusPending)}

	// WHEN: Requesting 10:15 for 30 minutes
	c := booking.FindConflict(day, "", slot(10, 15, 30), 30)

	// THEN: Rejected, suggested 10:30
	require.NotNil(t, c)
	assert.Equal(t, salon.BookingID("a"), c.ConflictingBookingID)
	assert.Equal(t, "T-1", c.ConflictingToken)
	assert.Equal(t, salon.EmployeeID("emp-1"), c.EmployeeID)
	assert.Equal(t, salon.NewSlotTime(10, 30), c.SuggestedTime)
	assert.ErrorIs(t, c, salon.ErrConflict)
}

func TestFindConflict_ChainsPastBackToBack(t *testing.T) {
	// GIVEN: 10:00-10:30 and 10:30-11:00
	day := []salon.Booking{
		existing("b", 2, salon.NewSlotTime(10, 30), 30, salon.StatusConfirmed),
		existing("a", 1, salon.NewSlotTime(10, 0), 30, salon.StatusPending),
	}

	// WHEN: Requesting 10:15
	c := booking.FindConflict(day, "", slot(10, 15, 30), 30)

	// THEN: First conflict is the earliest-starting one, suggestion skips both
	require.NotNil(t, c)
	assert.Equal(t, salon.BookingID("a"), c.ConflictingBookingID)
	assert.Equal(t, salon.NewSlotTime(11, 0), c.SuggestedTime)
}

func TestFindConflict_SuggestionFitsGap(t *testing.T) {
	// GIVEN: 10:00-10:30, a 20 minute gap, then 10:50-11:30
	day := []salon.Booking{
		existing("a", 1, salon.NewSlotTime(10, 0), 30, salon.StatusPending),
		existing("b", 2, salon.NewSlotTime(10, 50), 40, salon.StatusPending),
	}

	// 15 minutes fits in the gap
	c := booking.FindConflict(day, "", slot(10, 10, 15), 30)
	require.NotNil(t, c)
	assert.Equal(t, salon.NewSlotTime(10, 30), c.SuggestedTime)

	// 30 minutes does not
	c = booking.FindConflict(day, "", slot(10, 10, 30), 30)
	require.NotNil(t, c)
	assert.Equal(t, salon.NewSlotTime(11, 30), c.SuggestedTime)
}

func TestFindConflict_NoOverlap(t *testing.T) {
	day := []salon.Booking{existing("a", 1, salon.NewSlotTime(10, 0), 30, salon.StatusPending)}

	assert.Nil(t, booking.FindConflict(day, "", slot(10, 30, 30), 30), "touching end")
	assert.Nil(t, booking.FindConflict(day, "", slot(9, 30, 30), 30), "touching start")
}

func TestFindConflict_IgnoresTerminalAndSelf(t *testing.T) {
	day := []salon.Booking{
		existing("done", 1, salon.NewSlotTime(10, 0), 30, salon.StatusCompleted),
		existing("gone", 2, salon.NewSlotTime(10, 0), 30, salon.StatusCancelled),
		existing("me", 3, salon.NewSlotTime(10, 0), 30, salon.StatusPending),
	}

	assert.Nil(t, booking.FindConflict(day, "me", slot(10, 15, 30), 30))
	assert.NotNil(t, booking.FindConflict(day, "", slot(10, 15, 30), 30))
}

func TestFindConflict_DefaultDurationForEmptyBooking(t *testing.T) {
	// GIVEN: A booking with no items occupies the fallback 30 minutes
	day := []salon.Booking{existing("a", 1, salon.NewSlotTime(10, 0), 0, salon.StatusInProgress)}

	c := booking.FindConflict(day, "", slot(10, 29, 10), 30)
	require.NotNil(t, c)
	assert.Equal(t, salon.NewSlotTime(10, 30), c.SuggestedTime)
}

func TestFindConflict_MidnightFallback(t *testing.T) {
	// GIVEN: The evening is fully booked until 23:50
	day := []salon.Booking{
		existing("a", 1, salon.NewSlotTime(22, 0), 60, salon.StatusPending),
		existing("b", 2, salon.NewSlotTime(23, 0), 50, salon.StatusPending),
	}

	// WHEN: 30 minutes at 22:30 cannot fit anywhere after
	c := booking.FindConflict(day, "", slot(22, 30, 30), 30)

	// THEN: The first conflict's end is suggested
	require.NotNil(t, c)
	assert.Equal(t, salon.NewSlotTime(23, 0), c.SuggestedTime)
}
