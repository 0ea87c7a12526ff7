/*
handlers.go - HTTP API handlers for the salon engine

PURPOSE:
  Exposes scheduling, the booking lifecycle, the stylist rotation and
  payroll via REST API. Handles HTTP request/response, JSON serialization,
  and delegates to the domain packages.

ENDPOINTS:
  Bookings:
    POST   /api/bookings                    Propose a booking
    GET    /api/bookings?date=              List (scoped by role)
    GET    /api/bookings/{id}               Booking detail
    POST   /api/bookings/{id}/confirm       PENDING -> CONFIRMED
    POST   /api/bookings/{id}/start         -> IN_PROGRESS
    POST   /api/bookings/{id}/finish        -> COMPLETED, credits commission
    POST   /api/bookings/{id}/cancel        -> CANCELLED
    POST   /api/bookings/{id}/reschedule    One-time shift forward
    POST   /api/bookings/{id}/assign        Assign from the rotation
    GET    /api/bookings/{id}/track         Live wait estimate

  Catalog & staff:
    GET    /api/services                    Active services
    POST   /api/staff                       Register a stylist (admin)
    GET    /api/staff/{id}/dashboard        Stylist's day

  Rotation:
    GET    /api/queue                       Rotation board
    POST   /api/queue                       Join
    POST   /api/queue/next                  Take the next stylist
    POST   /api/queue/requeue               Move to the back

  Admin:
    GET    /api/admin/stats?date=           Day overview
    GET    /api/payroll                     Payroll records
    POST   /api/payroll/generate            Monthly run (admin)

ERROR HANDLING:
  Domain errors map to HTTP status by kind:
  - 400: salon.ErrValidation
  - 403: salon.ErrPermission
  - 404: salon.ErrNotFound
  - 409: salon.ErrConflict (with suggested_time), ErrState, ErrDuplicate,
         ErrConcurrentModification
  - 500: anything else (logged, details withheld)

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Caller principal
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/logger"
	"github.com/warp/salon-engine/payroll"
	"github.com/warp/salon-engine/queue"
	"github.com/warp/salon-engine/salon"
	"github.com/warp/salon-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HandlerConfig carries the settings the handler passes to the domain services.
type HandlerConfig struct {
	Booking      booking.Options
	LatePenalty  *decimal.Decimal
	JWTSecret    string
	AuthDisabled bool
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Auth  *Authenticator

	scheduler *booking.Scheduler
	lifecycle *booking.Lifecycle
	views     *booking.Views
	tracker   *queue.Tracker
	payroll   *payroll.Engine

	opts booking.Options
	log  *logger.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the domain services over store.
func NewHandler(store *sqlite.Store, cfg HandlerConfig) *Handler {
	opts := cfg.Booking.WithDefaults()
	tracker := queue.NewTracker(store, opts)

	return &Handler{
		Store:     store,
		Auth:      NewAuthenticator(cfg.JWTSecret, cfg.AuthDisabled, store, opts.Clock),
		scheduler: booking.NewScheduler(store, opts),
		lifecycle: booking.NewLifecycle(store, tracker, opts),
		views:     booking.NewViews(store, opts),
		tracker:   tracker,
		payroll: payroll.NewEngine(store, payroll.Options{
			LatePenalty: cfg.LatePenalty,
			Clock:       opts.Clock,
			Events:      opts.Events,
			Logger:      opts.Logger,
		}),
		opts: opts,
		log:  opts.Logger,
	}
}

// Payroll exposes the engine for the background scheduler.
func (h *Handler) Payroll() *payroll.Engine { return h.payroll }

func (h *Handler) today() time.Time {
	return salon.DayOf(h.opts.Clock.Now(), h.opts.Location)
}

// =============================================================================
// BOOKING ENDPOINTS
// =============================================================================

// CreateBooking proposes a booking for the caller.
// POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	date, err := salon.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	at, err := salon.ParseSlotTime(req.Time)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	breq := booking.Request{
		Date:       date,
		Time:       at,
		ServiceIDs: make([]salon.ServiceID, len(req.ServiceIDs)),
		GuestName:  req.GuestName,
		GuestPhone: req.GuestPhone,
	}
	for i, id := range req.ServiceIDs {
		breq.ServiceIDs[i] = salon.ServiceID(id)
	}
	if req.EmployeeID != "" {
		emp := salon.EmployeeID(req.EmployeeID)
		breq.EmployeeID = &emp
	}

	b, err := h.scheduler.Propose(r.Context(), PrincipalFrom(r.Context()), breq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b, h.opts.DefaultServiceMinutes))
}

// ListBookings returns the bookings the caller may see.
// GET /api/bookings?date=YYYY-MM-DD
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := salon.ParseDate(raw)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		date = &d
	}

	bookings, err := h.views.List(r.Context(), PrincipalFrom(r.Context()), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(bookings, h.opts.DefaultServiceMinutes))
}

// GetBooking returns one booking.
// GET /api/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.views.Get(r.Context(), PrincipalFrom(r.Context()), bookingID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, h.opts.DefaultServiceMinutes))
}

type transitionFunc func(ctx context.Context, p salon.Principal, id salon.BookingID) (*salon.Booking, error)

// transition runs a lifecycle edge that returns the updated booking.
func (h *Handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fn(r.Context(), PrincipalFrom(r.Context()), bookingID(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingDTO(b, h.opts.DefaultServiceMinutes))
	}
}

// ConfirmBooking POST /api/bookings/{id}/confirm
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(h.lifecycle.Confirm)(w, r)
}

// StartBooking POST /api/bookings/{id}/start
func (h *Handler) StartBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(h.lifecycle.Start)(w, r)
}

// CancelBooking POST /api/bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(h.lifecycle.Cancel)(w, r)
}

// RescheduleBooking POST /api/bookings/{id}/reschedule
func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(h.lifecycle.Reschedule)(w, r)
}

// AssignBooking POST /api/bookings/{id}/assign
func (h *Handler) AssignBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(h.tracker.AssignFromQueue)(w, r)
}

// FinishBooking completes the job and reports the commission credited.
// POST /api/bookings/{id}/finish
func (h *Handler) FinishBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.lifecycle.Finish(r.Context(), PrincipalFrom(r.Context()), bookingID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FinishDTO{
		Booking:       toBookingDTO(res.Booking, h.opts.DefaultServiceMinutes),
		Commission:    money(res.Commission),
		WalletBalance: money(res.WalletBalance),
	})
}

// TrackBooking reports the caller's place in line.
// GET /api/bookings/{id}/track
func (h *Handler) TrackBooking(w http.ResponseWriter, r *http.Request) {
	t, err := h.tracker.Track(r.Context(), PrincipalFrom(r.Context()), bookingID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackingDTO(t))
}

func bookingID(r *http.Request) salon.BookingID {
	return salon.BookingID(chi.URLParam(r, "id"))
}

// =============================================================================
// CATALOG & STAFF ENDPOINTS
// =============================================================================

// ListServices returns the active catalog.
// GET /api/services
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.scheduler.ListServices(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ServiceDTO, len(services))
	for i, s := range services {
		dtos[i] = ServiceDTO{
			ID:              string(s.ID),
			Name:            s.Name,
			Price:           money(s.Price),
			DurationMinutes: s.DurationMinutes,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStaff registers a stylist and puts them in the rotation.
// POST /api/staff
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := PrincipalFrom(ctx)
	if p.Role != salon.RoleAdmin {
		h.fail(w, r, salon.Deny(p, "register staff"))
		return
	}

	var req CreateStaffRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	params := salon.StaffParams{
		UserID:         salon.UserID(req.UserID),
		Name:           req.Name,
		JobTitle:       req.JobTitle,
		CommissionRate: req.CommissionRate,
		BaseSalary:     req.BaseSalary,
	}
	if req.ShiftStart != "" {
		shift, err := salon.ParseSlotTime(req.ShiftStart)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		params.ShiftStart = &shift
	}

	staff, err := salon.NewStaffProfile(params, h.opts.Clock.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.Store.WithTx(ctx, func(tx salon.Tx) error {
		if err := tx.InsertStaff(ctx, staff); err != nil {
			return err
		}
		_, err := h.tracker.JoinInTx(ctx, tx, staff.ID)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("staff registered", "employee_id", string(staff.ID), "user_id", string(staff.UserID))
	writeJSON(w, http.StatusCreated, toStaffDTO(staff))
}

// GetDashboard returns a stylist's day.
// GET /api/staff/{id}/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	emp := salon.EmployeeID(chi.URLParam(r, "id"))
	d, err := h.views.EmployeeDashboard(r.Context(), PrincipalFrom(r.Context()), emp)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d, h.opts.DefaultServiceMinutes))
}

// =============================================================================
// ROTATION ENDPOINTS
// =============================================================================

// GetQueue returns the rotation board.
// GET /api/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	board, err := h.tracker.Board(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]QueueEntryDTO, len(board))
	for i, pos := range board {
		dtos[i] = QueueEntryDTO{
			Position:   pos.Place,
			EmployeeID: string(pos.Entry.EmployeeID),
			Name:       pos.Staff.Name,
			JoinedAt:   pos.Entry.JoinedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Enqueue adds a stylist to the back of the rotation.
// POST /api/queue
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	emp, err := h.queueTarget(r, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	joined, err := h.tracker.Enqueue(r.Context(), p, emp)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if joined {
		status = http.StatusCreated
	}
	writeJSON(w, status, EnqueueDTO{EmployeeID: string(emp), Joined: joined})
}

// DequeueNext takes the longest-waiting stylist off the rotation.
// POST /api/queue/next
func (h *Handler) DequeueNext(w http.ResponseWriter, r *http.Request) {
	entry, err := h.tracker.DequeueNext(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueueEntryDTO{
		Position:   1,
		EmployeeID: string(entry.EmployeeID),
		JoinedAt:   entry.JoinedAt.Format(time.RFC3339),
	})
}

// Requeue moves a stylist to the back of the rotation.
// POST /api/queue/requeue
func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	emp, err := h.queueTarget(r, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.tracker.Requeue(r.Context(), p, emp); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EnqueueDTO{EmployeeID: string(emp), Joined: true})
}

// queueTarget reads the stylist named in the body, defaulting to the caller.
func (h *Handler) queueTarget(r *http.Request, p salon.Principal) (salon.EmployeeID, error) {
	var req QueueRequest
	if err := decodeRequest(r, &req); err != nil {
		return "", err
	}
	if req.EmployeeID != "" {
		return salon.EmployeeID(req.EmployeeID), nil
	}
	if p.EmployeeID != nil {
		return *p.EmployeeID, nil
	}
	return "", &salon.ValidationError{Field: "employee_id", Message: "is required"}
}

// =============================================================================
// ADMIN & PAYROLL ENDPOINTS
// =============================================================================

// GetStats returns the salon overview for a day (today by default).
// GET /api/admin/stats?date=YYYY-MM-DD
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	date := h.today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := salon.ParseDate(raw)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		date = d
	}
	stats, err := h.views.AdminStats(r.Context(), PrincipalFrom(r.Context()), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// ListPayroll GET /api/payroll
func (h *Handler) ListPayroll(w http.ResponseWriter, r *http.Request) {
	records, err := h.payroll.List(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTOs(records))
}

// GeneratePayroll runs payroll for a month (the current one by default).
// POST /api/payroll/generate
func (h *Handler) GeneratePayroll(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p.Role != salon.RoleAdmin {
		h.fail(w, r, salon.Deny(p, "generate payroll"))
		return
	}

	var req GeneratePayrollRequest
	if err := decodeRequest(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	month := h.today()
	if req.Month != "" {
		m, err := salon.ParseMonth(req.Month)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		month = m
	}

	res, err := h.payroll.GenerateForMonth(r.Context(), p, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollRunDTO(res))
}

// Health reports whether the database answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// fail maps a domain error to its HTTP status and JSON body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var conflict *salon.ConflictError
	if errors.As(err, &conflict) {
		resp.SuggestedTime = conflict.SuggestedTime.String()
		resp.ConflictingToken = conflict.ConflictingToken
	}

	switch {
	case status >= 500:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal error"
	case status == http.StatusConflict || status == http.StatusForbidden:
		h.log.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, salon.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, salon.ErrPermission):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, salon.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, salon.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, salon.ErrState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, salon.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, salon.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	}
	return http.StatusInternalServerError, "internal"
}
