/*
tracker.go - Stylist rotation and customer wait tracking

PURPOSE:
  Keeps the FIFO rotation of stylists waiting for "any available stylist"
  work, hands unassigned bookings to the first stylist who is free for the
  slot, and tells a customer where they stand in line.

ROTATION RULES:
  - At most one entry per stylist; Enqueue is idempotent
  - Oldest joined_at is served first (insertion order breaks ties)
  - Starting a job removes the stylist; finishing or cancelling an
    in-progress job puts them at the back

WAIT ESTIMATE:
  For an assigned booking: the live bookings of the same stylist and day
  that start earlier, and the sum of their durations. For an unassigned
  booking: earlier unassigned bookings, shared across the rotation.

SEE ALSO:
  - booking/lifecycle.go: Drives LeaveInTx / RequeueInTx
  - booking/conflict.go: Overlap check used by AssignFromQueue
*/
package queue

import (
	"context"
	"errors"

	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/salon"
)

type Tracker struct {
	store salon.Store
	opts  booking.Options
}

var _ booking.Rotation = (*Tracker)(nil)

func NewTracker(store salon.Store, opts booking.Options) *Tracker {
	return &Tracker{store: store, opts: opts.WithDefaults()}
}

// =============================================================================
// ROTATION
// =============================================================================

// Enqueue adds the stylist to the back of the rotation unless already
// queued. Reports whether an entry was added.
func (t *Tracker) Enqueue(ctx context.Context, p salon.Principal, emp salon.EmployeeID) (bool, error) {
	if !p.IsAdmin() && !p.ActsFor(emp) {
		return false, salon.Deny(p, "enqueue "+string(emp))
	}
	var joined bool
	err := t.store.WithTx(ctx, func(tx salon.Tx) error {
		var err error
		joined, err = t.JoinInTx(ctx, tx, emp)
		return err
	})
	if err != nil {
		return false, err
	}
	if joined {
		t.opts.Logger.Info("stylist joined rotation", "employee_id", string(emp))
	}
	return joined, nil
}

// JoinInTx is Enqueue without the permission check, for registration.
func (t *Tracker) JoinInTx(ctx context.Context, tx salon.Tx, emp salon.EmployeeID) (bool, error) {
	if _, err := tx.GetStaff(ctx, emp); err != nil {
		return false, err
	}
	return tx.JoinQueue(ctx, emp, t.opts.Clock.Now())
}

// DequeueNext removes and returns the longest-waiting stylist.
func (t *Tracker) DequeueNext(ctx context.Context, p salon.Principal) (*salon.QueueEntry, error) {
	if !p.IsAdmin() {
		return nil, salon.Deny(p, "dequeue stylist")
	}
	var next *salon.QueueEntry
	err := t.store.WithTx(ctx, func(tx salon.Tx) error {
		entries, err := tx.ListQueue(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return &salon.NotFoundError{Resource: "stylist in rotation"}
		}
		removed, err := tx.LeaveQueue(ctx, entries[0].EmployeeID)
		if err != nil {
			return err
		}
		if !removed {
			return salon.ErrConcurrentModification
		}
		next = &entries[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.opts.Logger.Info("stylist dequeued", "employee_id", string(next.EmployeeID))
	return next, nil
}

// Requeue moves the stylist to the back of the rotation.
func (t *Tracker) Requeue(ctx context.Context, p salon.Principal, emp salon.EmployeeID) error {
	if !p.IsAdmin() && !p.ActsFor(emp) {
		return salon.Deny(p, "requeue "+string(emp))
	}
	return t.store.WithTx(ctx, func(tx salon.Tx) error {
		if _, err := tx.GetStaff(ctx, emp); err != nil {
			return err
		}
		return t.RequeueInTx(ctx, tx, emp)
	})
}

func (t *Tracker) RequeueInTx(ctx context.Context, tx salon.Tx, emp salon.EmployeeID) error {
	return tx.RequeueStaff(ctx, emp, t.opts.Clock.Now())
}

func (t *Tracker) LeaveInTx(ctx context.Context, tx salon.Tx, emp salon.EmployeeID) error {
	_, err := tx.LeaveQueue(ctx, emp)
	return err
}

// Position is one row of the rotation board.
type Position struct {
	Place int
	Entry salon.QueueEntry
	Staff salon.StaffProfile
}

// Board lists the rotation in serving order with stylist details.
func (t *Tracker) Board(ctx context.Context) ([]Position, error) {
	entries, err := t.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	board := make([]Position, 0, len(entries))
	for i, e := range entries {
		staff, err := t.store.GetStaff(ctx, e.EmployeeID)
		if err != nil {
			return nil, err
		}
		board = append(board, Position{Place: i + 1, Entry: e, Staff: *staff})
	}
	return board, nil
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

// AssignFromQueue gives an unassigned booking to the first stylist in the
// rotation whose day has room for its slot, and takes that stylist out of
// the rotation.
func (t *Tracker) AssignFromQueue(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error) {
	if !p.IsStaff() {
		return nil, salon.Deny(p, "assign booking")
	}
	fallback := t.opts.DefaultServiceMinutes

	var assigned *salon.Booking
	err := t.store.WithTx(ctx, func(tx salon.Tx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.EmployeeID != nil {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "assign", Reason: "already assigned"}
		}
		if b.Status != salon.StatusPending && b.Status != salon.StatusConfirmed {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "assign"}
		}

		entries, err := tx.ListQueue(ctx)
		if err != nil {
			return err
		}
		slot := b.Slot(fallback)
		for _, e := range entries {
			emp := e.EmployeeID
			staff, err := tx.GetStaff(ctx, emp)
			if err != nil {
				return err
			}
			if !staff.IsAvailable {
				continue
			}
			day, err := tx.ListBookings(ctx, salon.BookingFilter{Date: &b.Date, EmployeeID: &emp, Statuses: salon.LiveStatuses})
			if err != nil {
				return err
			}
			if booking.FindConflict(day, b.ID, slot, fallback) != nil {
				continue
			}

			err = tx.AssignEmployee(ctx, b.ID, emp)
			if errors.Is(err, salon.ErrConcurrentModification) {
				return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "assign", Reason: "changed concurrently"}
			}
			if err != nil {
				return err
			}
			if _, err := tx.LeaveQueue(ctx, emp); err != nil {
				return err
			}
			b.EmployeeID = &emp
			assigned = b
			return nil
		}
		return &salon.NotFoundError{Resource: "free stylist in rotation for " + slot.String()}
	})
	if err != nil {
		return nil, err
	}

	t.opts.Logger.Info("booking assigned from rotation",
		"booking_id", string(assigned.ID), "token", assigned.Token(), "employee_id", string(*assigned.EmployeeID))
	events.Emit(ctx, t.opts.Events, t.opts.Logger, booking.EventFor(events.BookingAssigned, assigned, t.opts.Clock.Now()))
	return assigned, nil
}
