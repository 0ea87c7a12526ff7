/*
types.go - Core vocabulary of the salon engine

PURPOSE:
  Defines the entities shared by scheduling, lifecycle, queue and payroll:
  bookings and their line items, staff profiles, the stylist rotation,
  attendance and monthly payroll records.

KEY CONCEPTS:
  Booking:      A customer (or walk-in guest) appointment for one day
  BookingItem:  Service snapshot (name, price, duration) taken at booking time
  StaffProfile: A stylist with a commission rate and a wallet of unpaid commission
  QueueEntry:   A stylist's place in the "next available" rotation
  Principal:    The authenticated caller (user id + role)

STATUS MACHINE:
  PENDING/CONFIRMED --start--> IN_PROGRESS --finish--> COMPLETED
  any non-terminal  --cancel-> CANCELLED
  COMPLETED and CANCELLED are terminal.

SEE ALSO:
  - errors.go: Error taxonomy
  - store.go: Persistence contract
  - time.go: Day-local slot arithmetic
*/
package salon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookingID string
type EmployeeID string
type UserID string
type ServiceID string
type PayrollID string

// =============================================================================
// ROLES & PRINCIPAL
// =============================================================================

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleEmployee  Role = "EMPLOYEE"
	RoleCustomer  Role = "CUSTOMER"
	RoleAnonymous Role = "ANONYMOUS"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee, RoleCustomer, RoleAnonymous:
		return true
	}
	return false
}

// Principal is the caller an operation runs on behalf of.
// EmployeeID is set only when the caller has a staff profile.
type Principal struct {
	UserID     UserID
	Role       Role
	EmployeeID *EmployeeID
}

// Anonymous is the principal of an unauthenticated request.
func Anonymous() Principal { return Principal{Role: RoleAnonymous} }

// IsAdmin reports whether the caller has salon-wide oversight.
// Managers share the admin view of bookings and stats.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin || p.Role == RoleManager }

func (p Principal) IsAnonymous() bool { return p.Role == RoleAnonymous || p.Role == "" }

// IsStaff reports whether the caller works in the salon.
func (p Principal) IsStaff() bool { return p.IsAdmin() || p.Role == RoleEmployee }

// ActsFor reports whether the caller is the given stylist.
func (p Principal) ActsFor(emp EmployeeID) bool {
	return p.EmployeeID != nil && *p.EmployeeID == emp
}

// =============================================================================
// BOOKING
// =============================================================================

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// LiveStatuses are the statuses that occupy a stylist's time.
var LiveStatuses = []Status{StatusPending, StatusConfirmed, StatusInProgress}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusCancelled }

// IsLive reports whether a booking in this status blocks its slot.
func (s Status) IsLive() bool { return !s.IsTerminal() }

// DefaultGuestName is used for walk-ins that give no name.
const DefaultGuestName = "Walk-in Guest"

type Booking struct {
	ID         BookingID
	CustomerID *UserID
	GuestName  string
	GuestPhone string
	IsWalkIn   bool
	EmployeeID *EmployeeID

	Date time.Time // midnight UTC of the booking day
	Time SlotTime

	Status        Status
	TokenSeq      int
	IsRescheduled bool

	EstimatedStart *time.Time
	EstimatedEnd   *time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time

	TotalPrice decimal.Decimal
	Items      []BookingItem
	CreatedAt  time.Time
}

// Token is the human-readable queue token, e.g. "T-4".
func (b *Booking) Token() string { return FormatToken(b.TokenSeq) }

// DurationMinutes is the sum of item durations, or fallback when the
// booking carries no services.
func (b *Booking) DurationMinutes(fallback int) int {
	total := 0
	for _, it := range b.Items {
		total += it.DurationMinutes
	}
	if total == 0 {
		return fallback
	}
	return total
}

// Slot is the interval the booking occupies on its day.
func (b *Booking) Slot(fallback int) Slot {
	return Slot{Start: b.Time, End: b.Time.Add(b.DurationMinutes(fallback))}
}

func (b *Booking) IsAssignedTo(emp EmployeeID) bool {
	return b.EmployeeID != nil && *b.EmployeeID == emp
}

func (b *Booking) IsOwnedBy(user UserID) bool {
	return b.CustomerID != nil && *b.CustomerID == user
}

// FormatToken renders a daily sequence number as a token.
func FormatToken(seq int) string { return fmt.Sprintf("T-%d", seq) }

// BookingItem snapshots a service at booking time. Later catalog edits
// do not change the price or duration a customer booked.
type BookingItem struct {
	ServiceID       ServiceID
	ServiceName     string
	Price           decimal.Decimal
	DurationMinutes int
}

// Service is a catalog entry.
type Service struct {
	ID              ServiceID
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
	IsActive        bool
}

// BookingFilter narrows ListBookings. Zero fields match everything.
type BookingFilter struct {
	Date       *time.Time
	EmployeeID *EmployeeID
	CustomerID *UserID
	Statuses   []Status
	Unassigned bool
}

// =============================================================================
// STAFF, QUEUE, ATTENDANCE
// =============================================================================

type StaffProfile struct {
	ID             EmployeeID
	UserID         UserID
	Name           string
	JobTitle       string
	CommissionRate decimal.Decimal // percent, 0..100
	WalletBalance  decimal.Decimal
	IsAvailable    bool
	BaseSalary     decimal.Decimal
	ShiftStart     *SlotTime
	CreatedAt      time.Time
}

// QueueEntry is a stylist's position in the rotation. Entries are served
// oldest JoinedAt first.
type QueueEntry struct {
	EmployeeID EmployeeID
	JoinedAt   time.Time
}

type Attendance struct {
	EmployeeID EmployeeID
	Date       time.Time
	CheckIn    time.Time
	IsLate     bool
}

// =============================================================================
// PAYROLL
// =============================================================================

type PayrollStatus string

const (
	PayrollPending PayrollStatus = "PENDING"
	PayrollPaid    PayrollStatus = "PAID"
)

type PayrollRecord struct {
	ID               PayrollID
	EmployeeID       EmployeeID
	Month            time.Time // first day of the month, UTC
	BaseSalary       decimal.Decimal
	CommissionEarned decimal.Decimal
	Deductions       decimal.Decimal
	TotalSalary      decimal.Decimal
	Status           PayrollStatus
	CreatedAt        time.Time
}
