/*
engine.go - Monthly payroll generation

PURPOSE:
  Settles each stylist's month: base salary plus the commission sitting in
  their wallet, minus a fixed penalty per late check-in. The wallet is
  emptied in the same transaction that writes the record, so commission is
  paid exactly once.

CALCULATION:
  commission = wallet balance at generation time (everything since last reset)
  deductions = late check-ins in the month * late penalty
  total      = max(0, base + commission - deductions)

IDEMPOTENCY:
  An existing record for (employee, month) is skipped, not an error. The
  UNIQUE(employee_id, month) index turns a concurrent duplicate into a skip
  as well, and the wallet reset rolls back with it.
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/logger"
	"github.com/warp/salon-engine/salon"
)

// DefaultLatePenalty is deducted per late check-in.
var DefaultLatePenalty = decimal.NewFromInt(100)

type Options struct {
	// LatePenalty overrides DefaultLatePenalty when set.
	LatePenalty *decimal.Decimal

	Clock  salon.Clock
	Events events.Publisher
	Logger *logger.Logger
}

type Engine struct {
	store   salon.Store
	penalty decimal.Decimal
	clock   salon.Clock
	events  events.Publisher
	log     *logger.Logger
}

func NewEngine(store salon.Store, opts Options) *Engine {
	e := &Engine{
		store:   store,
		penalty: DefaultLatePenalty,
		clock:   opts.Clock,
		events:  opts.Events,
		log:     opts.Logger,
	}
	if opts.LatePenalty != nil {
		e.penalty = *opts.LatePenalty
	}
	if e.clock == nil {
		e.clock = salon.SystemClock{}
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	return e
}

// Result summarizes one run.
type Result struct {
	Month     time.Time
	Generated int
	Skipped   int
	Records   []salon.PayrollRecord
}

var errAlreadyGenerated = errors.New("payroll already generated")

// GenerateForMonth writes a PENDING record for every stylist who has none
// for the month containing month. Only ADMIN may run it.
func (e *Engine) GenerateForMonth(ctx context.Context, p salon.Principal, month time.Time) (*Result, error) {
	if p.Role != salon.RoleAdmin {
		return nil, salon.Deny(p, "generate payroll")
	}
	res := &Result{Month: salon.MonthOf(month)}

	staff, err := e.store.ListStaff(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range staff {
		rec, err := e.settle(ctx, s.ID, res.Month)
		if errors.Is(err, errAlreadyGenerated) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("payroll for %s: %w", s.ID, err)
		}
		res.Generated++
		res.Records = append(res.Records, *rec)

		e.log.Info("payroll generated",
			"employee_id", string(rec.EmployeeID), "month", res.Month.Format("2006-01"),
			"commission", rec.CommissionEarned.StringFixed(2),
			"deductions", rec.Deductions.StringFixed(2),
			"total", rec.TotalSalary.StringFixed(2))
		events.Emit(ctx, e.events, e.log, events.Event{
			Type:       events.PayrollGenerated,
			Key:        string(rec.EmployeeID),
			OccurredAt: rec.CreatedAt,
			Data: map[string]any{
				"payroll_id":   string(rec.ID),
				"month":        res.Month.Format("2006-01"),
				"total_salary": rec.TotalSalary.StringFixed(2),
			},
		})
	}

	e.log.Info("payroll run finished", "month", res.Month.Format("2006-01"),
		"generated", res.Generated, "skipped", res.Skipped)
	return res, nil
}

// settle generates one stylist's record and empties their wallet together.
func (e *Engine) settle(ctx context.Context, emp salon.EmployeeID, month time.Time) (*salon.PayrollRecord, error) {
	var rec *salon.PayrollRecord
	err := e.store.WithTx(ctx, func(tx salon.Tx) error {
		exists, err := tx.PayrollExists(ctx, emp, month)
		if err != nil {
			return err
		}
		if exists {
			return errAlreadyGenerated
		}

		staff, err := tx.GetStaff(ctx, emp)
		if err != nil {
			return err
		}
		late, err := tx.CountLate(ctx, emp, month)
		if err != nil {
			return err
		}

		rec = Compute(staff, late, e.penalty)
		rec.ID = salon.PayrollID(uuid.NewString())
		rec.Month = month
		rec.CreatedAt = e.clock.Now().UTC()

		if err := tx.InsertPayroll(ctx, rec); err != nil {
			if errors.Is(err, salon.ErrDuplicate) {
				return errAlreadyGenerated
			}
			return err
		}
		return tx.ResetWallet(ctx, emp, staff.WalletBalance)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Compute applies the payroll formula to a stylist's current state.
func Compute(staff *salon.StaffProfile, lateCount int, penalty decimal.Decimal) *salon.PayrollRecord {
	deductions := penalty.Mul(decimal.NewFromInt(int64(lateCount)))
	total := staff.BaseSalary.Add(staff.WalletBalance).Sub(deductions)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return &salon.PayrollRecord{
		EmployeeID:       staff.ID,
		BaseSalary:       staff.BaseSalary,
		CommissionEarned: staff.WalletBalance,
		Deductions:       deductions,
		TotalSalary:      total,
		Status:           salon.PayrollPending,
	}
}

// List returns every record to administrators and a stylist's own
// records to that stylist.
func (e *Engine) List(ctx context.Context, p salon.Principal) ([]salon.PayrollRecord, error) {
	switch {
	case p.IsAdmin():
		return e.store.ListPayroll(ctx, nil)
	case p.Role == salon.RoleEmployee && p.EmployeeID != nil:
		return e.store.ListPayroll(ctx, p.EmployeeID)
	}
	return nil, salon.Deny(p, "view payroll")
}
