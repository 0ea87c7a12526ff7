/*
store.go - Persistence contract for the salon engine

PURPOSE:
  Defines the interface between scheduling logic and the database.
  Every multi-step operation (token + insert, status + wallet + queue,
  payroll record + wallet reset) runs inside WithTx so it commits or
  rolls back as a unit.

KEY INTERFACES:
  Reader: Queries usable both inside and outside a transaction
  Tx:     Writes, only available inside WithTx
  Store:  Reader + WithTx + seeding/admin helpers

COMPARE-AND-SET:
  Writes that depend on prior state carry the expected state in the WHERE
  clause (status IN (...), wallet_balance = ?, is_rescheduled = 0). When no
  row matches, the write returns ErrConcurrentModification and the caller
  decides what that means (usually a StateError).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go
*/
package salon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Reader interface {
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error)

	GetService(ctx context.Context, id ServiceID) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)

	GetStaff(ctx context.Context, id EmployeeID) (*StaffProfile, error)
	GetStaffByUser(ctx context.Context, user UserID) (*StaffProfile, error)
	ListStaff(ctx context.Context) ([]StaffProfile, error)

	// ListQueue returns the rotation oldest first.
	ListQueue(ctx context.Context) ([]QueueEntry, error)

	ListPayroll(ctx context.Context, employee *EmployeeID) ([]PayrollRecord, error)
	PayrollExists(ctx context.Context, employee EmployeeID, month time.Time) (bool, error)

	// CountLate counts late check-ins for an employee within month.
	CountLate(ctx context.Context, employee EmployeeID, month time.Time) (int, error)
}

// StatusChange is a compare-and-set status transition.
type StatusChange struct {
	From        []Status
	To          Status
	ActualStart *time.Time
	ActualEnd   *time.Time
}

type Tx interface {
	Reader

	// NextTokenSeq returns max(existing seq for date)+1.
	NextTokenSeq(ctx context.Context, date time.Time) (int, error)
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBookingStatus(ctx context.Context, id BookingID, change StatusChange) error
	// RescheduleBooking moves the booking and sets is_rescheduled; it only
	// matches bookings that were never rescheduled.
	RescheduleBooking(ctx context.Context, id BookingID, to SlotTime, estStart, estEnd time.Time) error
	// AssignEmployee only matches unassigned bookings.
	AssignEmployee(ctx context.Context, id BookingID, employee EmployeeID) error

	InsertStaff(ctx context.Context, s *StaffProfile) error
	SetAvailability(ctx context.Context, employee EmployeeID, available bool) error
	// AddToWallet adds delta to the wallet and returns the new balance.
	AddToWallet(ctx context.Context, employee EmployeeID, delta decimal.Decimal) (decimal.Decimal, error)
	// ResetWallet zeroes the wallet if it still holds expected.
	ResetWallet(ctx context.Context, employee EmployeeID, expected decimal.Decimal) error

	// JoinQueue adds the stylist at joinedAt; returns false if already queued.
	JoinQueue(ctx context.Context, employee EmployeeID, joinedAt time.Time) (bool, error)
	// RequeueStaff moves the stylist to the back, inserting if absent.
	RequeueStaff(ctx context.Context, employee EmployeeID, joinedAt time.Time) error
	// LeaveQueue removes the stylist; returns false if not queued.
	LeaveQueue(ctx context.Context, employee EmployeeID) (bool, error)

	InsertPayroll(ctx context.Context, rec *PayrollRecord) error
}

type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	SaveService(ctx context.Context, s *Service) error
	RecordAttendance(ctx context.Context, a *Attendance) error
	Close() error
}
