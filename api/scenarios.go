/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with a realistic
  salon day. Each scenario seeds the catalog, stylists, attendance and
  bookings through the same domain services the API uses, so the seeded
  state obeys every booking rule.

AVAILABLE SCENARIOS:
  busy-saturday:     Three stylists mid-morning: finished, running, pending
                     and cancelled jobs plus walk-ins waiting for a stylist
  month-end-payroll: Last month's completed work and late arrivals, ready
                     for POST /api/payroll/generate

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Save the service catalog
 3. Register stylists (joins them to the rotation)
 4. Record attendance
 5. Propose bookings and drive them through the lifecycle

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "busy-saturday"}

NOTE:
  Scenarios reset the database. Only ADMIN may load one.

SEE ALSO:
  - handlers.go: Shared handler state
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/salon"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(s *seeder)
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "busy-saturday",
			Name:        "Busy Saturday",
			Description: "Three stylists mid-morning with running jobs, walk-ins and a cancellation",
		},
		load: loadBusySaturday,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "month-end-payroll",
			Name:        "Month-End Payroll",
			Description: "Last month's commission and late arrivals, ready for a payroll run",
		},
		load: loadMonthEndPayroll,
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and seeds a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p.Role != salon.RoleAdmin {
		h.fail(w, r, salon.Deny(p, "load scenario"))
		return
	}
	var req LoadScenarioRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.SeedScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// SeedScenario resets the store and loads the named scenario.
func (h *Handler) SeedScenario(ctx context.Context, id string) error {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
		}
	}
	if sc == nil {
		return &salon.NotFoundError{Resource: "scenario", ID: id}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""

	s := &seeder{h: h, ctx: ctx, day: h.today()}
	sc.load(s)
	if s.err != nil {
		return fmt.Errorf("failed to load scenario %s: %w", id, s.err)
	}

	h.currentScenario = id
	h.log.Info("scenario loaded", "scenario", id)
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var catalog = []salon.Service{
	{ID: "svc-haircut", Name: "Haircut", Price: decimal.NewFromInt(200), DurationMinutes: 30, IsActive: true},
	{ID: "svc-color", Name: "Hair Color", Price: decimal.NewFromInt(500), DurationMinutes: 60, IsActive: true},
	{ID: "svc-beard", Name: "Beard Trim", Price: decimal.NewFromInt(100), DurationMinutes: 15, IsActive: true},
	{ID: "svc-spa", Name: "Head Spa", Price: decimal.NewFromInt(300), DurationMinutes: 45, IsActive: true},
	{ID: "svc-bridal", Name: "Bridal Package", Price: decimal.NewFromInt(5000), DurationMinutes: 180, IsActive: true},
	{ID: "svc-perm", Name: "Perm", Price: decimal.NewFromInt(800), DurationMinutes: 90, IsActive: false},
}

func loadBusySaturday(s *seeder) {
	s.services(catalog...)
	aisha := s.stylist("emp-aisha", "user-aisha", "Aisha Khan", 15, 15000)
	marco := s.stylist("emp-marco", "user-marco", "Marco Rossi", 10, 12000)
	priya := s.stylist("emp-priya", "user-priya", "Priya Nair", 12, 13000)

	s.checkIn(aisha, s.day, "08:55")
	s.checkIn(marco, s.day, "09:20")
	s.checkIn(priya, s.day, "09:00")

	done := s.book(customerPrincipal("cust-1"), &aisha, s.day, "09:00", "svc-color")
	s.advance(done, "start", "finish")

	running := s.book(s.admin(), &aisha, s.day, "10:00", "svc-haircut")
	s.advance(running, "start")
	s.book(customerPrincipal("cust-2"), &aisha, s.day, "11:00", "svc-haircut", "svc-beard")

	confirmed := s.book(s.admin(), &marco, s.day, "09:30", "svc-haircut")
	s.advance(confirmed, "confirm")
	s.book(s.admin(), &marco, s.day, "10:00", "svc-beard")

	cancelled := s.book(customerPrincipal("cust-3"), &priya, s.day, "09:00", "svc-spa")
	s.advance(cancelled, "cancel")

	s.book(s.admin(), nil, s.day, "10:30", "svc-haircut")
	s.book(s.admin(), nil, s.day, "10:30", "svc-beard")
}

// loadMonthEndPayroll seeds last month so that Aisha settles at
// 15000 base + 500 commission - 2 late arrivals = 15300.
func loadMonthEndPayroll(s *seeder) {
	s.services(catalog...)
	aisha := s.stylist("emp-aisha", "user-aisha", "Aisha Khan", 10, 15000)
	marco := s.stylist("emp-marco", "user-marco", "Marco Rossi", 12, 12000)

	lastMonth := salon.MonthOf(s.day).AddDate(0, -1, 0)
	s.checkIn(aisha, lastMonth.AddDate(0, 0, 2), "09:25")
	s.checkIn(aisha, lastMonth.AddDate(0, 0, 9), "09:40")
	s.checkIn(aisha, lastMonth.AddDate(0, 0, 16), "08:50")
	s.checkIn(marco, lastMonth.AddDate(0, 0, 2), "09:00")

	bridal := s.book(customerPrincipal("cust-1"), &aisha, lastMonth.AddDate(0, 0, 5), "09:00", "svc-bridal")
	s.advance(bridal, "start", "finish")

	cut := s.book(s.admin(), &marco, lastMonth.AddDate(0, 0, 5), "10:00", "svc-haircut", "svc-color")
	s.advance(cut, "start", "finish")

	noShow := s.book(customerPrincipal("cust-2"), &marco, lastMonth.AddDate(0, 0, 12), "15:00", "svc-spa")
	s.advance(noShow, "cancel")
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// defaultShift is the shift start given to seeded stylists.
var defaultShift = salon.NewSlotTime(9, 0)

// seeder stops at the first error; later calls are no-ops.
type seeder struct {
	h   *Handler
	ctx context.Context
	day time.Time
	err error
}

func (s *seeder) admin() salon.Principal {
	return salon.Principal{UserID: "scenario-loader", Role: salon.RoleAdmin}
}

func customerPrincipal(id string) salon.Principal {
	return salon.Principal{UserID: salon.UserID(id), Role: salon.RoleCustomer}
}

func (s *seeder) services(list ...salon.Service) {
	for i := range list {
		if s.err != nil {
			return
		}
		s.err = s.h.Store.SaveService(s.ctx, &list[i])
	}
}

func (s *seeder) stylist(id, user, name string, rate, base int64) salon.EmployeeID {
	if s.err != nil {
		return salon.EmployeeID(id)
	}
	shift := defaultShift
	staff, err := salon.NewStaffProfile(salon.StaffParams{
		UserID:         salon.UserID(user),
		Name:           name,
		CommissionRate: decimal.NewFromInt(rate),
		BaseSalary:     decimal.NewFromInt(base),
		ShiftStart:     &shift,
	}, s.h.opts.Clock.Now())
	if err != nil {
		s.err = err
		return salon.EmployeeID(id)
	}
	staff.ID = salon.EmployeeID(id)

	s.err = s.h.Store.WithTx(s.ctx, func(tx salon.Tx) error {
		if err := tx.InsertStaff(s.ctx, staff); err != nil {
			return err
		}
		_, err := s.h.tracker.JoinInTx(s.ctx, tx, staff.ID)
		return err
	})
	return staff.ID
}

// checkIn records attendance; arriving after the shift start counts as late.
func (s *seeder) checkIn(emp salon.EmployeeID, day time.Time, at string) {
	if s.err != nil {
		return
	}
	t, err := salon.ParseSlotTime(at)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.h.Store.RecordAttendance(s.ctx, &salon.Attendance{
		EmployeeID: emp,
		Date:       day,
		CheckIn:    t.On(day, s.h.opts.Location),
		IsLate:     t > defaultShift,
	})
}

func (s *seeder) book(p salon.Principal, emp *salon.EmployeeID, day time.Time, at string, services ...salon.ServiceID) *salon.Booking {
	if s.err != nil {
		return nil
	}
	t, err := salon.ParseSlotTime(at)
	if err != nil {
		s.err = err
		return nil
	}
	b, err := s.h.scheduler.Propose(s.ctx, p, booking.Request{
		EmployeeID: emp,
		Date:       day,
		Time:       t,
		ServiceIDs: services,
	})
	s.err = err
	return b
}

// advance drives b through lifecycle actions as an administrator.
func (s *seeder) advance(b *salon.Booking, actions ...string) {
	l := s.h.lifecycle
	for _, action := range actions {
		if s.err != nil || b == nil {
			return
		}
		switch action {
		case "confirm":
			_, s.err = l.Confirm(s.ctx, s.admin(), b.ID)
		case "start":
			_, s.err = l.Start(s.ctx, s.admin(), b.ID)
		case "finish":
			_, s.err = l.Finish(s.ctx, s.admin(), b.ID)
		case "cancel":
			_, s.err = l.Cancel(s.ctx, s.admin(), b.ID)
		default:
			s.err = fmt.Errorf("unknown lifecycle action %q", action)
		}
	}
}
