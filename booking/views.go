package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/salon"
)

// Views answers read-only questions about bookings, scoped by caller.
type Views struct {
	store salon.Store
	opts  Options
}

func NewViews(store salon.Store, opts Options) *Views {
	return &Views{store: store, opts: opts.WithDefaults()}
}

// CanView reports whether p may see b. Staff may see unassigned bookings
// so they can pick them up.
func CanView(p salon.Principal, b *salon.Booking) bool {
	switch {
	case p.IsAdmin():
		return true
	case p.Role == salon.RoleCustomer:
		return b.IsOwnedBy(p.UserID)
	case p.Role == salon.RoleEmployee:
		return b.EmployeeID == nil || p.ActsFor(*b.EmployeeID)
	}
	return false
}

func (v *Views) Get(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error) {
	if p.IsAnonymous() {
		return nil, salon.Deny(p, "view booking")
	}
	b, err := v.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(p, b) {
		return nil, salon.Deny(p, "view booking "+string(id))
	}
	return b, nil
}

// List returns the caller's bookings, optionally for one date: all of
// them for administrators, assigned ones for stylists, own ones for customers.
func (v *Views) List(ctx context.Context, p salon.Principal, date *time.Time) ([]salon.Booking, error) {
	f := salon.BookingFilter{Date: date}
	switch {
	case p.IsAdmin():
	case p.Role == salon.RoleEmployee && p.EmployeeID != nil:
		f.EmployeeID = p.EmployeeID
	case p.Role == salon.RoleCustomer && p.UserID != "":
		user := p.UserID
		f.CustomerID = &user
	default:
		return nil, salon.Deny(p, "list bookings")
	}
	return v.store.ListBookings(ctx, f)
}

// =============================================================================
// EMPLOYEE DASHBOARD
// =============================================================================

type Dashboard struct {
	Staff         salon.StaffProfile
	Date          time.Time
	Jobs          []salon.Booking
	Counts        map[salon.Status]int
	CurrentJob    *salon.Booking
	QueuePosition int // 1-based; 0 when not in the rotation
	EarnedToday   decimal.Decimal
}

func (v *Views) EmployeeDashboard(ctx context.Context, p salon.Principal, emp salon.EmployeeID) (*Dashboard, error) {
	if !p.IsAdmin() && !p.ActsFor(emp) {
		return nil, salon.Deny(p, "view dashboard of "+string(emp))
	}
	staff, err := v.store.GetStaff(ctx, emp)
	if err != nil {
		return nil, err
	}

	today := salon.DayOf(v.opts.Clock.Now(), v.opts.Location)
	jobs, err := v.store.ListBookings(ctx, salon.BookingFilter{Date: &today, EmployeeID: &emp})
	if err != nil {
		return nil, err
	}
	queue, err := v.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Staff:       *staff,
		Date:        today,
		Jobs:        jobs,
		Counts:      make(map[salon.Status]int),
		EarnedToday: decimal.Zero,
	}
	for i := range jobs {
		job := &jobs[i]
		d.Counts[job.Status]++
		switch job.Status {
		case salon.StatusInProgress:
			d.CurrentJob = job
		case salon.StatusCompleted:
			d.EarnedToday = d.EarnedToday.Add(salon.Commission(job.TotalPrice, staff.CommissionRate))
		}
	}
	for i, e := range queue {
		if e.EmployeeID == emp {
			d.QueuePosition = i + 1
			break
		}
	}
	return d, nil
}

// =============================================================================
// ADMIN STATS
// =============================================================================

type Stats struct {
	Date           time.Time
	TotalBookings  int
	ByStatus       map[salon.Status]int
	Revenue        decimal.Decimal // completed bookings only
	WalkIns        int
	Unassigned     int // live bookings with no stylist
	StaffTotal     int
	StaffAvailable int
	StaffBusy      int
	QueueLength    int
}

func (v *Views) AdminStats(ctx context.Context, p salon.Principal, date time.Time) (*Stats, error) {
	if !p.IsAdmin() {
		return nil, salon.Deny(p, "view salon stats")
	}
	day := salon.DayOf(date, nil)

	bookings, err := v.store.ListBookings(ctx, salon.BookingFilter{Date: &day})
	if err != nil {
		return nil, err
	}
	staff, err := v.store.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := v.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}

	s := &Stats{
		Date:          day,
		TotalBookings: len(bookings),
		ByStatus:      make(map[salon.Status]int),
		Revenue:       decimal.Zero,
		StaffTotal:    len(staff),
		QueueLength:   len(queue),
	}
	for _, b := range bookings {
		s.ByStatus[b.Status]++
		if b.IsWalkIn {
			s.WalkIns++
		}
		if b.Status == salon.StatusCompleted {
			s.Revenue = s.Revenue.Add(b.TotalPrice)
		}
		if b.EmployeeID == nil && b.Status.IsLive() {
			s.Unassigned++
		}
	}
	for _, st := range staff {
		if st.IsAvailable {
			s.StaffAvailable++
		} else {
			s.StaffBusy++
		}
	}
	return s, nil
}
