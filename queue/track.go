package queue

import (
	"context"
	"fmt"

	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/salon"
)

const (
	StylistFree     = "Free"
	AwaitingStylist = "Awaiting stylist"
)

// Tracking is what a customer sees when checking their place in line.
type Tracking struct {
	BookingID  salon.BookingID
	Token      string
	Status     salon.Status
	EmployeeID *salon.EmployeeID

	// Position is 1 when next in line; 0 for finished or cancelled bookings.
	Position             int
	PeopleAhead          int
	EstimatedWaitMinutes int
	StylistStatus        string
}

// Track reports a booking's place in line. Walk-ins have no account, so
// anyone holding the booking id may track them.
func (t *Tracker) Track(ctx context.Context, p salon.Principal, id salon.BookingID) (*Tracking, error) {
	b, err := t.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsWalkIn && !booking.CanView(p, b) {
		return nil, salon.Deny(p, "track booking "+string(id))
	}

	tr := &Tracking{BookingID: b.ID, Token: b.Token(), Status: b.Status, EmployeeID: b.EmployeeID}
	if b.Status.IsTerminal() {
		return tr, nil
	}
	if b.EmployeeID == nil {
		return tr, t.trackUnassigned(ctx, b, tr)
	}
	return tr, t.trackAssigned(ctx, b, tr)
}

func (t *Tracker) trackAssigned(ctx context.Context, b *salon.Booking, tr *Tracking) error {
	day, err := t.store.ListBookings(ctx, salon.BookingFilter{
		Date: &b.Date, EmployeeID: b.EmployeeID, Statuses: salon.LiveStatuses,
	})
	if err != nil {
		return err
	}

	// The stylist may be mid-job on another day's booking.
	running, err := t.store.ListBookings(ctx, salon.BookingFilter{
		EmployeeID: b.EmployeeID, Statuses: []salon.Status{salon.StatusInProgress},
	})
	if err != nil {
		return err
	}
	tr.StylistStatus = StylistFree
	if len(running) > 0 {
		tr.StylistStatus = fmt.Sprintf("Busy with #%s", running[0].Token())
	}

	for i := range day {
		sib := &day[i]
		if sib.ID != b.ID && sib.Time < b.Time {
			tr.PeopleAhead++
			tr.EstimatedWaitMinutes += sib.DurationMinutes(t.opts.DefaultServiceMinutes)
		}
	}
	tr.Position = tr.PeopleAhead + 1
	return nil
}

// trackUnassigned counts earlier unassigned bookings; the rotation serves
// them in parallel, so their total time is split across its stylists.
func (t *Tracker) trackUnassigned(ctx context.Context, b *salon.Booking, tr *Tracking) error {
	waiting, err := t.store.ListBookings(ctx, salon.BookingFilter{
		Date: &b.Date, Unassigned: true, Statuses: salon.LiveStatuses,
	})
	if err != nil {
		return err
	}
	rotation, err := t.store.ListQueue(ctx)
	if err != nil {
		return err
	}

	total := 0
	for i := range waiting {
		w := &waiting[i]
		if w.ID == b.ID {
			continue
		}
		if w.Time < b.Time || (w.Time == b.Time && w.TokenSeq < b.TokenSeq) {
			tr.PeopleAhead++
			total += w.DurationMinutes(t.opts.DefaultServiceMinutes)
		}
	}

	stylists := len(rotation)
	if stylists < 1 {
		stylists = 1
	}
	tr.EstimatedWaitMinutes = (total + stylists - 1) / stylists
	tr.Position = tr.PeopleAhead + 1
	tr.StylistStatus = AwaitingStylist
	return nil
}
