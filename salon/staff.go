package salon

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultJobTitle is assigned when registration gives none.
const DefaultJobTitle = "Stylist"

// StaffParams is the registration input for a stylist.
type StaffParams struct {
	UserID         UserID
	Name           string
	JobTitle       string
	CommissionRate decimal.Decimal
	BaseSalary     decimal.Decimal
	ShiftStart     *SlotTime
}

// NewStaffProfile validates registration input and returns a profile that
// starts available with an empty wallet.
func NewStaffProfile(p StaffParams, now time.Time) (*StaffProfile, error) {
	if p.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}
	if p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThan(hundred) {
		return nil, &ValidationError{Field: "commission_rate", Message: "must be between 0 and 100"}
	}
	if p.BaseSalary.IsNegative() {
		return nil, &ValidationError{Field: "base_salary", Message: "must not be negative"}
	}
	title := strings.TrimSpace(p.JobTitle)
	if title == "" {
		title = DefaultJobTitle
	}
	return &StaffProfile{
		ID:             EmployeeID(uuid.NewString()),
		UserID:         p.UserID,
		Name:           name,
		JobTitle:       title,
		CommissionRate: p.CommissionRate,
		WalletBalance:  decimal.Zero,
		IsAvailable:    true,
		BaseSalary:     p.BaseSalary,
		ShiftStart:     p.ShiftStart,
		CreatedAt:      now.UTC(),
	}, nil
}
