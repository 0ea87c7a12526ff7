/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags. decodeRequest runs
  them and reports the first failure as a salon.ValidationError, so the
  handler's error mapping turns it into a 400.

MONEY & TIME:
  Money is rendered with two decimals as a string. Dates are YYYY-MM-DD,
  slot times HH:MM, timestamps RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/payroll"
	"github.com/warp/salon-engine/queue"
	"github.com/warp/salon-engine/salon"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateBookingRequest struct {
	EmployeeID string   `json:"employee_id,omitempty"`
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string   `json:"time" validate:"required,slottime"`
	ServiceIDs []string `json:"service_ids" validate:"max=20,dive,required"`
	GuestName  string   `json:"guest_name,omitempty" validate:"max=100"`
	GuestPhone string   `json:"guest_phone,omitempty" validate:"omitempty,e164"`
}

// QueueRequest names a stylist. Stylists may omit it to mean themselves.
type QueueRequest struct {
	EmployeeID string `json:"employee_id,omitempty" validate:"max=64"`
}

type CreateStaffRequest struct {
	UserID         string          `json:"user_id" validate:"required,max=64"`
	Name           string          `json:"name" validate:"required,max=100"`
	JobTitle       string          `json:"job_title,omitempty" validate:"max=100"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	BaseSalary     decimal.Decimal `json:"base_salary"`
	ShiftStart     string          `json:"shift_start,omitempty" validate:"omitempty,slottime"`
}

type GeneratePayrollRequest struct {
	// Month is YYYY-MM or a YYYY-MM-DD within it; the current month when empty.
	Month string `json:"month,omitempty" validate:"omitempty,month"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error            string `json:"error"`
	Code             string `json:"code"`
	SuggestedTime    string `json:"suggested_time,omitempty"`
	ConflictingToken string `json:"conflicting_token,omitempty"`
}

type BookingItemDTO struct {
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

type BookingDTO struct {
	ID             string           `json:"id"`
	Token          string           `json:"token"`
	Status         string           `json:"status"`
	Date           string           `json:"date"`
	Time           string           `json:"time"`
	EndTime        string           `json:"end_time"`
	EmployeeID     *string          `json:"employee_id"`
	CustomerID     *string          `json:"customer_id"`
	GuestName      string           `json:"guest_name,omitempty"`
	GuestPhone     string           `json:"guest_phone,omitempty"`
	IsWalkIn       bool             `json:"is_walk_in"`
	IsRescheduled  bool             `json:"is_rescheduled"`
	TotalPrice     string           `json:"total_price"`
	Items          []BookingItemDTO `json:"items"`
	EstimatedStart *string          `json:"estimated_start_time,omitempty"`
	EstimatedEnd   *string          `json:"estimated_end_time,omitempty"`
	ActualStart    *string          `json:"actual_start_time,omitempty"`
	ActualEnd      *string          `json:"actual_end_time,omitempty"`
	CreatedAt      string           `json:"created_at"`
}

type FinishDTO struct {
	Booking       BookingDTO `json:"booking"`
	Commission    string     `json:"commission"`
	WalletBalance string     `json:"wallet_balance"`
}

type ServiceDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

type StaffDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	JobTitle       string  `json:"job_title"`
	CommissionRate string  `json:"commission_rate"`
	WalletBalance  string  `json:"wallet_balance"`
	BaseSalary     string  `json:"base_salary"`
	IsAvailable    bool    `json:"is_available"`
	ShiftStart     *string `json:"shift_start,omitempty"`
}

type QueueEntryDTO struct {
	Position   int    `json:"position"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
	JoinedAt   string `json:"joined_at"`
}

type EnqueueDTO struct {
	EmployeeID string `json:"employee_id"`
	Joined     bool   `json:"joined"`
}

type TrackingDTO struct {
	BookingID            string  `json:"booking_id"`
	Token                string  `json:"token"`
	Status               string  `json:"status"`
	EmployeeID           *string `json:"employee_id"`
	Position             int     `json:"position"`
	PeopleAhead          int     `json:"people_ahead"`
	EstimatedWaitMinutes int     `json:"estimated_wait_minutes"`
	StylistStatus        string  `json:"stylist_status"`
}

type DashboardDTO struct {
	Staff         StaffDTO       `json:"staff"`
	Date          string         `json:"date"`
	Jobs          []BookingDTO   `json:"jobs"`
	Counts        map[string]int `json:"counts"`
	CurrentJob    *BookingDTO    `json:"current_job"`
	QueuePosition int            `json:"queue_position"`
	EarnedToday   string         `json:"earned_today"`
}

type StatsDTO struct {
	Date           string         `json:"date"`
	TotalBookings  int            `json:"total_bookings"`
	ByStatus       map[string]int `json:"by_status"`
	Revenue        string         `json:"revenue"`
	WalkIns        int            `json:"walk_ins"`
	Unassigned     int            `json:"unassigned"`
	StaffTotal     int            `json:"staff_total"`
	StaffAvailable int            `json:"staff_available"`
	StaffBusy      int            `json:"staff_busy"`
	QueueLength    int            `json:"queue_length"`
}

type PayrollDTO struct {
	ID               string `json:"id"`
	EmployeeID       string `json:"employee_id"`
	Month            string `json:"month"`
	BaseSalary       string `json:"base_salary"`
	CommissionEarned string `json:"commission_earned"`
	Deductions       string `json:"deductions"`
	TotalSalary      string `json:"total_salary"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

type PayrollRunDTO struct {
	Month     string       `json:"month"`
	Generated int          `json:"generated"`
	Skipped   int          `json:"skipped"`
	Records   []PayrollDTO `json:"records"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toBookingDTO(b *salon.Booking, fallbackMinutes int) BookingDTO {
	dto := BookingDTO{
		ID:             string(b.ID),
		Token:          b.Token(),
		Status:         string(b.Status),
		Date:           salon.FormatDate(b.Date),
		Time:           b.Time.String(),
		EndTime:        b.Slot(fallbackMinutes).End.String(),
		GuestName:      b.GuestName,
		GuestPhone:     b.GuestPhone,
		IsWalkIn:       b.IsWalkIn,
		IsRescheduled:  b.IsRescheduled,
		TotalPrice:     money(b.TotalPrice),
		Items:          make([]BookingItemDTO, len(b.Items)),
		EstimatedStart: timestamp(b.EstimatedStart),
		EstimatedEnd:   timestamp(b.EstimatedEnd),
		ActualStart:    timestamp(b.ActualStart),
		ActualEnd:      timestamp(b.ActualEnd),
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
	}
	if b.EmployeeID != nil {
		s := string(*b.EmployeeID)
		dto.EmployeeID = &s
	}
	if b.CustomerID != nil {
		s := string(*b.CustomerID)
		dto.CustomerID = &s
	}
	for i, it := range b.Items {
		dto.Items[i] = BookingItemDTO{
			ServiceID:       string(it.ServiceID),
			ServiceName:     it.ServiceName,
			Price:           money(it.Price),
			DurationMinutes: it.DurationMinutes,
		}
	}
	return dto
}

func toBookingDTOs(bookings []salon.Booking, fallbackMinutes int) []BookingDTO {
	out := make([]BookingDTO, len(bookings))
	for i := range bookings {
		out[i] = toBookingDTO(&bookings[i], fallbackMinutes)
	}
	return out
}

func toStaffDTO(s *salon.StaffProfile) StaffDTO {
	dto := StaffDTO{
		ID:             string(s.ID),
		UserID:         string(s.UserID),
		Name:           s.Name,
		JobTitle:       s.JobTitle,
		CommissionRate: s.CommissionRate.String(),
		WalletBalance:  money(s.WalletBalance),
		BaseSalary:     money(s.BaseSalary),
		IsAvailable:    s.IsAvailable,
	}
	if s.ShiftStart != nil {
		shift := s.ShiftStart.String()
		dto.ShiftStart = &shift
	}
	return dto
}

func toTrackingDTO(t *queue.Tracking) TrackingDTO {
	dto := TrackingDTO{
		BookingID:            string(t.BookingID),
		Token:                t.Token,
		Status:               string(t.Status),
		Position:             t.Position,
		PeopleAhead:          t.PeopleAhead,
		EstimatedWaitMinutes: t.EstimatedWaitMinutes,
		StylistStatus:        t.StylistStatus,
	}
	if t.EmployeeID != nil {
		s := string(*t.EmployeeID)
		dto.EmployeeID = &s
	}
	return dto
}

func toDashboardDTO(d *booking.Dashboard, fallbackMinutes int) DashboardDTO {
	dto := DashboardDTO{
		Staff:         toStaffDTO(&d.Staff),
		Date:          salon.FormatDate(d.Date),
		Jobs:          toBookingDTOs(d.Jobs, fallbackMinutes),
		Counts:        statusCounts(d.Counts),
		QueuePosition: d.QueuePosition,
		EarnedToday:   money(d.EarnedToday),
	}
	if d.CurrentJob != nil {
		current := toBookingDTO(d.CurrentJob, fallbackMinutes)
		dto.CurrentJob = &current
	}
	return dto
}

func toStatsDTO(s *booking.Stats) StatsDTO {
	return StatsDTO{
		Date:           salon.FormatDate(s.Date),
		TotalBookings:  s.TotalBookings,
		ByStatus:       statusCounts(s.ByStatus),
		Revenue:        money(s.Revenue),
		WalkIns:        s.WalkIns,
		Unassigned:     s.Unassigned,
		StaffTotal:     s.StaffTotal,
		StaffAvailable: s.StaffAvailable,
		StaffBusy:      s.StaffBusy,
		QueueLength:    s.QueueLength,
	}
}

func statusCounts(in map[salon.Status]int) map[string]int {
	out := make(map[string]int, len(in))
	for status, n := range in {
		out[string(status)] = n
	}
	return out
}

func toPayrollDTO(r *salon.PayrollRecord) PayrollDTO {
	return PayrollDTO{
		ID:               string(r.ID),
		EmployeeID:       string(r.EmployeeID),
		Month:            r.Month.Format(salon.MonthLayout),
		BaseSalary:       money(r.BaseSalary),
		CommissionEarned: money(r.CommissionEarned),
		Deductions:       money(r.Deductions),
		TotalSalary:      money(r.TotalSalary),
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
}

func toPayrollDTOs(records []salon.PayrollRecord) []PayrollDTO {
	out := make([]PayrollDTO, len(records))
	for i := range records {
		out[i] = toPayrollDTO(&records[i])
	}
	return out
}

func toPayrollRunDTO(res *payroll.Result) PayrollRunDTO {
	return PayrollRunDTO{
		Month:     res.Month.Format(salon.MonthLayout),
		Generated: res.Generated,
		Skipped:   res.Skipped,
		Records:   toPayrollDTOs(res.Records),
	}
}

// =============================================================================
// DECODING & VALIDATION
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("slottime", func(fl validator.FieldLevel) bool {
		_, err := salon.ParseSlotTime(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		_, err := salon.ParseMonth(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// decodeRequest reads an optional JSON body into dst and validates it.
// An empty body leaves dst at its zero value.
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &salon.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return translateValidationError(errs[0])
		}
		return err
	}
	return nil
}

func translateValidationError(err validator.FieldError) *salon.ValidationError {
	message := err.Error()
	switch err.Tag() {
	case "required":
		message = "is required"
	case "max":
		message = fmt.Sprintf("must be at most %s", err.Param())
	case "e164":
		message = "must be in E.164 format (e.g., +15551234567)"
	case "slottime":
		message = "must be HH:MM"
	case "month":
		message = "must be YYYY-MM or YYYY-MM-DD"
	case "datetime":
		message = fmt.Sprintf("must match %s", layoutHint(err.Param()))
	}
	return &salon.ValidationError{Field: err.Field(), Message: message}
}

func layoutHint(layout string) string {
	switch layout {
	case "2006-01-02":
		return "YYYY-MM-DD"
	case "2006-01":
		return "YYYY-MM"
	}
	return layout
}
