/*
lifecycle.go - Booking state machine and its side effects

STATES:
  PENDING -> CONFIRMED          (confirm)
  PENDING/CONFIRMED -> IN_PROGRESS  (start)
  IN_PROGRESS -> COMPLETED      (finish)
  any non-terminal -> CANCELLED (cancel)
  PENDING/CONFIRMED, once only  (reschedule: +15 minutes, re-checked for overlap)

SIDE EFFECTS (same transaction as the status change):
  start:  stylist unavailable, leaves the rotation
  finish: stylist available, commission credited to wallet, back of the rotation
  cancel: if it was IN_PROGRESS, stylist available and back of the rotation

Every status write is a compare-and-set on the expected source statuses, so
two concurrent finishes credit the wallet exactly once; the loser gets a
StateError.

PERMISSIONS:
  confirm/start/finish: assigned stylist or administrator
  cancel/reschedule:    the above, or the customer who owns the booking
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/salon"
)

// Rotation is the part of the stylist queue the lifecycle drives. It runs
// inside the lifecycle's transaction.
type Rotation interface {
	LeaveInTx(ctx context.Context, tx salon.Tx, employee salon.EmployeeID) error
	RequeueInTx(ctx context.Context, tx salon.Tx, employee salon.EmployeeID) error
}

type Lifecycle struct {
	store    salon.Store
	rotation Rotation
	opts     Options
}

// NewLifecycle builds the state machine. rotation may be nil when no
// queue is kept.
func NewLifecycle(store salon.Store, rotation Rotation, opts Options) *Lifecycle {
	return &Lifecycle{store: store, rotation: rotation, opts: opts.WithDefaults()}
}

// FinishResult reports the commission credited by Finish.
type FinishResult struct {
	Booking       *salon.Booking
	Commission    decimal.Decimal
	WalletBalance decimal.Decimal
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (l *Lifecycle) Confirm(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error) {
	return l.transition(ctx, p, id, "confirm", canOperate, func(tx salon.Tx, b *salon.Booking, _ time.Time) error {
		if b.Status != salon.StatusPending {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "confirm"}
		}
		return l.setStatus(ctx, tx, b, "confirm", salon.StatusChange{
			From: []salon.Status{salon.StatusPending}, To: salon.StatusConfirmed,
		})
	}, events.BookingConfirmed)
}

func (l *Lifecycle) Start(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error) {
	return l.transition(ctx, p, id, "start", canOperate, func(tx salon.Tx, b *salon.Booking, now time.Time) error {
		if b.Status != salon.StatusPending && b.Status != salon.StatusConfirmed {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "start"}
		}
		if b.EmployeeID == nil {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "start", Reason: "no stylist assigned"}
		}
		err := l.setStatus(ctx, tx, b, "start", salon.StatusChange{
			From: []salon.Status{salon.StatusPending, salon.StatusConfirmed}, To: salon.StatusInProgress, ActualStart: &now,
		})
		if err != nil {
			return err
		}
		b.ActualStart = &now
		if err := tx.SetAvailability(ctx, *b.EmployeeID, false); err != nil {
			return err
		}
		if l.rotation != nil {
			return l.rotation.LeaveInTx(ctx, tx, *b.EmployeeID)
		}
		return nil
	}, events.BookingStarted)
}

func (l *Lifecycle) Finish(ctx context.Context, p salon.Principal, id salon.BookingID) (*FinishResult, error) {
	res := &FinishResult{Commission: decimal.Zero}
	b, err := l.transition(ctx, p, id, "finish", canOperate, func(tx salon.Tx, b *salon.Booking, now time.Time) error {
		if b.Status != salon.StatusInProgress {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "finish"}
		}
		err := l.setStatus(ctx, tx, b, "finish", salon.StatusChange{
			From: []salon.Status{salon.StatusInProgress}, To: salon.StatusCompleted, ActualEnd: &now,
		})
		if err != nil {
			return err
		}
		b.ActualEnd = &now
		if b.EmployeeID == nil {
			return nil
		}
		emp := *b.EmployeeID

		if err := tx.SetAvailability(ctx, emp, true); err != nil {
			return err
		}
		staff, err := tx.GetStaff(ctx, emp)
		if err != nil {
			return err
		}
		res.WalletBalance = staff.WalletBalance
		if commission := salon.Commission(b.TotalPrice, staff.CommissionRate); commission.IsPositive() {
			balance, err := tx.AddToWallet(ctx, emp, commission)
			if err != nil {
				return fmt.Errorf("failed to credit commission: %w", err)
			}
			res.Commission, res.WalletBalance = commission, balance
		}
		if l.rotation != nil {
			return l.rotation.RequeueInTx(ctx, tx, emp)
		}
		return nil
	}, events.BookingCompleted)
	if err != nil {
		return nil, err
	}
	res.Booking = b
	if b.EmployeeID != nil {
		l.opts.Logger.Info("commission credited",
			"employee_id", string(*b.EmployeeID), "booking_id", string(b.ID),
			"commission", res.Commission.StringFixed(2), "wallet", res.WalletBalance.StringFixed(2))
	}
	return res, nil
}

func (l *Lifecycle) Cancel(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error) {
	return l.transition(ctx, p, id, "cancel", canAmend, func(tx salon.Tx, b *salon.Booking, _ time.Time) error {
		if b.Status.IsTerminal() {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "cancel"}
		}
		wasInProgress := b.Status == salon.StatusInProgress
		err := l.setStatus(ctx, tx, b, "cancel", salon.StatusChange{From: salon.LiveStatuses, To: salon.StatusCancelled})
		if err != nil {
			return err
		}
		if !wasInProgress || b.EmployeeID == nil {
			return nil
		}
		if err := tx.SetAvailability(ctx, *b.EmployeeID, true); err != nil {
			return err
		}
		if l.rotation != nil {
			return l.rotation.RequeueInTx(ctx, tx, *b.EmployeeID)
		}
		return nil
	}, events.BookingCancelled)
}

// Reschedule moves the booking forward by the configured shift. A booking
// can be rescheduled once; the new slot must still be free for its stylist.
func (l *Lifecycle) Reschedule(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error) {
	return l.transition(ctx, p, id, "reschedule", canAmend, func(tx salon.Tx, b *salon.Booking, _ time.Time) error {
		if b.IsRescheduled {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "reschedule", Reason: "already rescheduled once"}
		}
		if b.Status != salon.StatusPending && b.Status != salon.StatusConfirmed {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "reschedule"}
		}

		to := b.Time.Add(l.opts.RescheduleShiftMinutes)
		slot := salon.Slot{Start: to, End: to.Add(b.DurationMinutes(l.opts.DefaultServiceMinutes))}
		if slot.End > salon.EndOfDay {
			return &salon.ValidationError{Field: "time", Message: fmt.Sprintf("rescheduled slot %s runs past midnight", slot)}
		}

		if b.EmployeeID != nil {
			existing, err := tx.ListBookings(ctx, salon.BookingFilter{
				Date: &b.Date, EmployeeID: b.EmployeeID, Statuses: salon.LiveStatuses,
			})
			if err != nil {
				return err
			}
			if conflict := FindConflict(existing, b.ID, slot, l.opts.DefaultServiceMinutes); conflict != nil {
				return conflict
			}
		}

		start := to.On(b.Date, l.opts.Location)
		end := start.Add(time.Duration(slot.Minutes()) * time.Minute)
		err := tx.RescheduleBooking(ctx, b.ID, to, start, end)
		if errors.Is(err, salon.ErrConcurrentModification) {
			return &salon.StateError{BookingID: b.ID, From: b.Status, Action: "reschedule", Reason: "changed concurrently"}
		}
		if err != nil {
			return err
		}
		b.Time, b.IsRescheduled = to, true
		b.EstimatedStart, b.EstimatedEnd = &start, &end
		return nil
	}, events.BookingRescheduled)
}

// =============================================================================
// HELPERS
// =============================================================================

type authorizer func(p salon.Principal, b *salon.Booking) bool

func canOperate(p salon.Principal, b *salon.Booking) bool {
	return p.IsAdmin() || (b.EmployeeID != nil && p.ActsFor(*b.EmployeeID))
}

func canAmend(p salon.Principal, b *salon.Booking) bool {
	return canOperate(p, b) || (p.Role == salon.RoleCustomer && b.IsOwnedBy(p.UserID))
}

// transition loads the booking, authorizes, applies and commits, then
// publishes ev. apply mutates b to reflect what it wrote.
func (l *Lifecycle) transition(ctx context.Context, p salon.Principal, id salon.BookingID, action string,
	authorize authorizer, apply func(tx salon.Tx, b *salon.Booking, now time.Time) error, ev events.Type) (*salon.Booking, error) {

	now := l.opts.Clock.Now().UTC()
	var booking *salon.Booking

	err := l.store.WithTx(ctx, func(tx salon.Tx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if !authorize(p, b) {
			return salon.Deny(p, action+" booking "+string(id))
		}
		if err := apply(tx, b, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		var stateErr *salon.StateError
		if errors.As(err, &stateErr) {
			l.opts.Logger.Warn("transition rejected", "action", action, "booking_id", string(id), "status", string(stateErr.From))
		}
		return nil, err
	}

	l.opts.Logger.Info("booking "+action, "booking_id", string(id), "token", booking.Token(), "status", string(booking.Status))
	events.Emit(ctx, l.opts.Events, l.opts.Logger, EventFor(ev, booking, now))
	return booking, nil
}

// setStatus writes the compare-and-set; a lost race is reported as the
// StateError the winner's state implies.
func (l *Lifecycle) setStatus(ctx context.Context, tx salon.Tx, b *salon.Booking, action string, change salon.StatusChange) error {
	err := tx.UpdateBookingStatus(ctx, b.ID, change)
	if errors.Is(err, salon.ErrConcurrentModification) {
		return &salon.StateError{BookingID: b.ID, From: b.Status, Action: action, Reason: "changed concurrently"}
	}
	if err != nil {
		return err
	}
	b.Status = change.To
	return nil
}
