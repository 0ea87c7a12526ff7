/*
scheduler.go - Booking creation with conflict resolution and daily tokens

PURPOSE:
  Proposes a booking for a customer or walk-in guest. When a stylist is
  requested, the slot is checked against that stylist's live bookings for
  the day; on overlap the caller gets a ConflictError with the next time
  the requested duration fits.

TOKEN ALLOCATION:
  Tokens are T-<n>, n = max(existing n for the date) + 1. The read and the
  insert happen in one transaction, and a UNIQUE(date, token) index rejects
  any duplicate that slips past, in which case allocation is retried.

FLOW:
  1. Resolve principal: customers book for themselves, everyone else makes walk-ins
  2. Resolve services -> item snapshots, duration, total price
  3. Overlap check (only when a stylist is named)
  4. Allocate token and insert booking + items
  5. Publish booking.created after commit

SEE ALSO:
  - conflict.go: Overlap detection and suggested time
  - lifecycle.go: Transitions after creation
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/salon"
)

// tokenAttempts bounds retries after a token collision.
const tokenAttempts = 3

type Scheduler struct {
	store salon.Store
	opts  Options
}

func NewScheduler(store salon.Store, opts Options) *Scheduler {
	return &Scheduler{store: store, opts: opts.WithDefaults()}
}

// Request is the input to Propose.
type Request struct {
	EmployeeID *salon.EmployeeID
	Date       time.Time
	Time       salon.SlotTime
	ServiceIDs []salon.ServiceID
	GuestName  string
	GuestPhone string
}

// Propose creates a PENDING booking or explains why it cannot.
func (s *Scheduler) Propose(ctx context.Context, p salon.Principal, req Request) (*salon.Booking, error) {
	if p.Role == salon.RoleCustomer && p.UserID == "" {
		return nil, salon.Deny(p, "book without an account")
	}
	if req.Date.IsZero() {
		return nil, &salon.ValidationError{Field: "date", Message: "required"}
	}
	if req.Time < 0 || req.Time >= salon.EndOfDay {
		return nil, &salon.ValidationError{Field: "time", Message: "must be within the day"}
	}

	var created *salon.Booking
	var err error
	for attempt := 1; attempt <= tokenAttempts; attempt++ {
		created, err = s.propose(ctx, p, req)
		if !errors.Is(err, salon.ErrDuplicate) {
			break
		}
		s.opts.Logger.Warn("token collision, retrying", "date", salon.FormatDate(req.Date), "attempt", attempt)
	}
	if err != nil {
		var conflict *salon.ConflictError
		if errors.As(err, &conflict) {
			s.opts.Logger.Info("booking rejected: slot taken",
				"employee_id", string(conflict.EmployeeID),
				"requested", conflict.Requested.String(),
				"suggested", conflict.SuggestedTime.String())
		}
		return nil, err
	}

	s.opts.Logger.Info("booking created",
		"booking_id", string(created.ID), "token", created.Token(),
		"date", salon.FormatDate(created.Date), "time", created.Time.String(), "walk_in", created.IsWalkIn)
	events.Emit(ctx, s.opts.Events, s.opts.Logger, EventFor(events.BookingCreated, created, created.CreatedAt))
	return created, nil
}

func (s *Scheduler) propose(ctx context.Context, p salon.Principal, req Request) (*salon.Booking, error) {
	now := s.opts.Clock.Now()
	day := salon.DayOf(req.Date, nil)

	b := &salon.Booking{
		ID:         salon.BookingID(uuid.NewString()),
		EmployeeID: req.EmployeeID,
		Date:       day,
		Time:       req.Time,
		Status:     salon.StatusPending,
		GuestPhone: strings.TrimSpace(req.GuestPhone),
		CreatedAt:  now.UTC(),
	}
	if p.Role == salon.RoleCustomer {
		user := p.UserID
		b.CustomerID = &user
		b.GuestName = strings.TrimSpace(req.GuestName)
	} else {
		b.IsWalkIn = true
		b.GuestName = strings.TrimSpace(req.GuestName)
		if b.GuestName == "" {
			b.GuestName = salon.DefaultGuestName
		}
	}

	err := s.store.WithTx(ctx, func(tx salon.Tx) error {
		items, err := resolveServices(ctx, tx, req.ServiceIDs)
		if err != nil {
			return err
		}
		b.Items = items
		b.TotalPrice = salon.SumItems(items)

		slot := b.Slot(s.opts.DefaultServiceMinutes)
		if slot.End > salon.EndOfDay {
			return &salon.ValidationError{Field: "time", Message: fmt.Sprintf("appointment %s runs past midnight", slot)}
		}

		if b.EmployeeID != nil {
			if _, err := tx.GetStaff(ctx, *b.EmployeeID); err != nil {
				return err
			}
			existing, err := tx.ListBookings(ctx, salon.BookingFilter{
				Date: &day, EmployeeID: b.EmployeeID, Statuses: salon.LiveStatuses,
			})
			if err != nil {
				return err
			}
			if conflict := FindConflict(existing, b.ID, slot, s.opts.DefaultServiceMinutes); conflict != nil {
				return conflict
			}
		}

		seq, err := tx.NextTokenSeq(ctx, day)
		if err != nil {
			return err
		}
		b.TokenSeq = seq

		start := slot.Start.On(day, s.opts.Location)
		end := start.Add(time.Duration(slot.Minutes()) * time.Minute)
		b.EstimatedStart, b.EstimatedEnd = &start, &end

		return tx.InsertBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// resolveServices snapshots each requested service. Unknown or inactive
// services are a validation failure, not a lookup failure.
func resolveServices(ctx context.Context, r salon.Reader, ids []salon.ServiceID) ([]salon.BookingItem, error) {
	items := make([]salon.BookingItem, 0, len(ids))
	for _, id := range ids {
		svc, err := r.GetService(ctx, id)
		if errors.Is(err, salon.ErrNotFound) {
			return nil, &salon.ValidationError{Field: "service_ids", Message: fmt.Sprintf("unknown service %q", id)}
		}
		if err != nil {
			return nil, err
		}
		if !svc.IsActive {
			return nil, &salon.ValidationError{Field: "service_ids", Message: fmt.Sprintf("service %q is not offered", id)}
		}
		if svc.DurationMinutes < 0 || svc.Price.LessThan(decimal.Zero) {
			return nil, &salon.ValidationError{Field: "service_ids", Message: fmt.Sprintf("service %q is misconfigured", id)}
		}
		items = append(items, salon.BookingItem{
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			Price:           svc.Price,
			DurationMinutes: svc.DurationMinutes,
		})
	}
	return items, nil
}

// ListServices returns the active catalog.
func (s *Scheduler) ListServices(ctx context.Context) ([]salon.Service, error) {
	all, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, svc := range all {
		if svc.IsActive {
			active = append(active, svc)
		}
	}
	return active, nil
}
