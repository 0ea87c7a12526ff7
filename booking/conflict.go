package booking

import (
	"sort"

	"github.com/warp/salon-engine/salon"
)

type occupied struct {
	booking *salon.Booking
	slot    salon.Slot
}

// FindConflict checks req against one stylist's bookings for one day.
//
// Only live bookings occupy time, and self is skipped so a booking being
// moved never collides with itself. Bookings are examined by ascending
// start (token breaks ties) and the first overlap is reported. The
// suggested time is the earliest start at or after that booking's end where
// req's duration fits between every live booking; if that would run past
// midnight the first conflict's end is suggested instead.
func FindConflict(existing []salon.Booking, self salon.BookingID, req salon.Slot, fallbackMinutes int) *salon.ConflictError {
	busy := make([]occupied, 0, len(existing))
	for i := range existing {
		b := &existing[i]
		if b.ID == self || !b.Status.IsLive() {
			continue
		}
		busy = append(busy, occupied{booking: b, slot: b.Slot(fallbackMinutes)})
	}
	sort.SliceStable(busy, func(i, j int) bool {
		if busy[i].slot.Start == busy[j].slot.Start {
			return busy[i].booking.TokenSeq < busy[j].booking.TokenSeq
		}
		return busy[i].slot.Start < busy[j].slot.Start
	})

	var first *occupied
	for i := range busy {
		if req.Overlaps(busy[i].slot) {
			first = &busy[i]
			break
		}
	}
	if first == nil {
		return nil
	}

	conflict := &salon.ConflictError{
		ConflictingBookingID: first.booking.ID,
		ConflictingToken:     first.booking.Token(),
		Requested:            req,
		SuggestedTime:        nextFree(busy, first.slot.End, req.Minutes()),
	}
	if first.booking.EmployeeID != nil {
		conflict.EmployeeID = *first.booking.EmployeeID
	}
	return conflict
}

func nextFree(busy []occupied, from salon.SlotTime, minutes int) salon.SlotTime {
	at := from
	for moved := true; moved; {
		moved = false
		candidate := salon.Slot{Start: at, End: at.Add(minutes)}
		for _, o := range busy {
			if candidate.Overlaps(o.slot) {
				at = o.slot.End
				moved = true
				break
			}
		}
	}
	if at.Add(minutes) > salon.EndOfDay {
		return from
	}
	return at
}
