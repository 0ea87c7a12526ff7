package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/salon"
	"github.com/warp/salon-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var day = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStaff(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx salon.Tx) error {
		return tx.InsertStaff(context.Background(), &salon.StaffProfile{
			ID:             salon.EmployeeID(id),
			UserID:         salon.UserID("user-" + id),
			Name:           id,
			JobTitle:       "Stylist",
			CommissionRate: decimal.NewFromInt(10),
			WalletBalance:  decimal.Zero,
			IsAvailable:    true,
			BaseSalary:     decimal.NewFromInt(15000),
			CreatedAt:      day,
		})
	})
	require.NoError(t, err)
}

func insertBooking(t *testing.T, store *sqlite.Store, id string, emp *salon.EmployeeID, at salon.SlotTime) *salon.Booking {
	t.Helper()
	var b *salon.Booking
	err := store.WithTx(context.Background(), func(tx salon.Tx) error {
		seq, err := tx.NextTokenSeq(context.Background(), day)
		if err != nil {
			return err
		}
		b = &salon.Booking{
			ID:         salon.BookingID(id),
			EmployeeID: emp,
			Date:       day,
			Time:       at,
			Status:     salon.StatusPending,
			TokenSeq:   seq,
			TotalPrice: decimal.NewFromInt(200),
			Items: []salon.BookingItem{
				{ServiceID: "cut", ServiceName: "Haircut", Price: decimal.NewFromInt(200), DurationMinutes: 30},
			},
			CreatedAt: day,
		}
		return tx.InsertBooking(context.Background(), b)
	})
	require.NoError(t, err)
	return b
}

// =============================================================================
// BOOKINGS
// =============================================================================

func TestStore_BookingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	emp := salon.EmployeeID("emp-1")

	insertBooking(t, store, "b-1", &emp, salon.NewSlotTime(10, 0))

	got, err := store.GetBooking(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", got.Token())
	assert.Equal(t, salon.NewSlotTime(10, 0), got.Time)
	assert.Equal(t, day, got.Date)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Haircut", got.Items[0].ServiceName)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(200)))
	assert.True(t, got.IsAssignedTo(emp))
}

func TestStore_GetBooking_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, salon.ErrNotFound)
}

func TestStore_TokenSequencePerDay(t *testing.T) {
	// GIVEN: T-1..T-3 on the same day
	store := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		insertBooking(t, store, id, nil, salon.NewSlotTime(9, 0))
	}

	// WHEN: Allocating the next token
	var next int
	err := store.WithTx(context.Background(), func(tx salon.Tx) error {
		var err error
		next, err = tx.NextTokenSeq(context.Background(), day)
		return err
	})

	// THEN: T-4, and the next day restarts at T-1
	require.NoError(t, err)
	assert.Equal(t, 4, next)

	err = store.WithTx(context.Background(), func(tx salon.Tx) error {
		var err error
		next, err = tx.NextTokenSeq(context.Background(), day.AddDate(0, 0, 1))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestStore_DuplicateTokenRejected(t *testing.T) {
	store := newTestStore(t)
	insertBooking(t, store, "a", nil, salon.NewSlotTime(9, 0))

	err := store.WithTx(context.Background(), func(tx salon.Tx) error {
		return tx.InsertBooking(context.Background(), &salon.Booking{
			ID: "b", Date: day, Status: salon.StatusPending, TokenSeq: 1,
			TotalPrice: decimal.Zero, CreatedAt: day,
		})
	})
	assert.ErrorIs(t, err, salon.ErrDuplicate)
}

func TestStore_UpdateStatus_CompareAndSet(t *testing.T) {
	store := newTestStore(t)
	insertBooking(t, store, "b-1", nil, salon.NewSlotTime(9, 0))
	now := day.Add(9 * time.Hour)

	finish := salon.StatusChange{From: []salon.Status{salon.StatusInProgress}, To: salon.StatusCompleted, ActualEnd: &now}
	start := salon.StatusChange{From: []salon.Status{salon.StatusPending}, To: salon.StatusInProgress, ActualStart: &now}

	ctx := context.Background()
	err := store.WithTx(ctx, func(tx salon.Tx) error { return tx.UpdateBookingStatus(ctx, "b-1", finish) })
	assert.ErrorIs(t, err, salon.ErrConcurrentModification, "cannot finish a pending booking")

	require.NoError(t, store.WithTx(ctx, func(tx salon.Tx) error { return tx.UpdateBookingStatus(ctx, "b-1", start) }))
	require.NoError(t, store.WithTx(ctx, func(tx salon.Tx) error { return tx.UpdateBookingStatus(ctx, "b-1", finish) }))

	err = store.WithTx(ctx, func(tx salon.Tx) error { return tx.UpdateBookingStatus(ctx, "b-1", finish) })
	assert.ErrorIs(t, err, salon.ErrConcurrentModification, "second finish must not match")

	got, err := store.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, salon.StatusCompleted, got.Status)
	require.NotNil(t, got.ActualStart)
	require.NotNil(t, got.ActualEnd)
	assert.True(t, got.ActualStart.Equal(now))
}

func TestStore_RescheduleOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	insertBooking(t, store, "b-1", nil, salon.NewSlotTime(9, 0))
	ctx := context.Background()

	move := func(tx salon.Tx) error {
		return tx.RescheduleBooking(ctx, "b-1", salon.NewSlotTime(9, 15), day, day)
	}
	require.NoError(t, store.WithTx(ctx, move))
	assert.ErrorIs(t, store.WithTx(ctx, move), salon.ErrConcurrentModification)

	got, err := store.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, got.IsRescheduled)
	assert.Equal(t, salon.NewSlotTime(9, 15), got.Time)
}

func TestStore_ListBookings_Filters(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	emp := salon.EmployeeID("emp-1")

	insertBooking(t, store, "late", &emp, salon.NewSlotTime(11, 0))
	insertBooking(t, store, "early", &emp, salon.NewSlotTime(9, 0))
	insertBooking(t, store, "floating", nil, salon.NewSlotTime(10, 0))

	mine, err := store.ListBookings(context.Background(), salon.BookingFilter{Date: &day, EmployeeID: &emp})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, salon.BookingID("early"), mine[0].ID, "ordered by time")

	unassigned, err := store.ListBookings(context.Background(), salon.BookingFilter{Unassigned: true, Statuses: salon.LiveStatuses})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, salon.BookingID("floating"), unassigned[0].ID)
}

func TestStore_AssignEmployee_OnlyOnce(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	seedStaff(t, store, "emp-2")
	insertBooking(t, store, "b-1", nil, salon.NewSlotTime(9, 0))
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx salon.Tx) error { return tx.AssignEmployee(ctx, "b-1", "emp-1") }))
	err := store.WithTx(ctx, func(tx salon.Tx) error { return tx.AssignEmployee(ctx, "b-1", "emp-2") })
	assert.ErrorIs(t, err, salon.ErrConcurrentModification)
}

// =============================================================================
// WALLET
// =============================================================================

func TestStore_Wallet(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	ctx := context.Background()

	var balance decimal.Decimal
	err := store.WithTx(ctx, func(tx salon.Tx) error {
		var err error
		if _, err = tx.AddToWallet(ctx, "emp-1", decimal.NewFromInt(20)); err != nil {
			return err
		}
		balance, err = tx.AddToWallet(ctx, "emp-1", decimal.RequireFromString("2.50"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "22.50", balance.StringFixed(2))

	// Reset fails when the caller's view is stale
	err = store.WithTx(ctx, func(tx salon.Tx) error { return tx.ResetWallet(ctx, "emp-1", decimal.NewFromInt(20)) })
	assert.ErrorIs(t, err, salon.ErrConcurrentModification)

	err = store.WithTx(ctx, func(tx salon.Tx) error { return tx.ResetWallet(ctx, "emp-1", balance) })
	require.NoError(t, err)

	staff, err := store.GetStaff(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, staff.WalletBalance.IsZero())
}

func TestStore_Rollback(t *testing.T) {
	// GIVEN: A transaction that credits the wallet then fails
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx salon.Tx) error {
		if _, err := tx.AddToWallet(ctx, "emp-1", decimal.NewFromInt(20)); err != nil {
			return err
		}
		return salon.ErrConflict
	})

	// THEN: Nothing was written
	assert.ErrorIs(t, err, salon.ErrConflict)
	staff, err := store.GetStaff(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, staff.WalletBalance.IsZero())
}

// =============================================================================
// QUEUE
// =============================================================================

func TestStore_Queue_FIFO(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		seedStaff(t, store, id)
	}
	ctx := context.Background()
	at := day.Add(9 * time.Hour)

	err := store.WithTx(ctx, func(tx salon.Tx) error {
		// Same instant: insertion order breaks the tie
		for _, id := range []salon.EmployeeID{"b", "a", "c"} {
			if _, err := tx.JoinQueue(ctx, id, at); err != nil {
				return err
			}
		}
		joined, err := tx.JoinQueue(ctx, "a", at)
		if err != nil {
			return err
		}
		assert.False(t, joined, "already queued")
		return tx.RequeueStaff(ctx, "b", at)
	})
	require.NoError(t, err)

	queue, err := store.ListQueue(ctx)
	require.NoError(t, err)
	var order []salon.EmployeeID
	for _, e := range queue {
		order = append(order, e.EmployeeID)
	}
	assert.Equal(t, []salon.EmployeeID{"a", "c", "b"}, order)

	err = store.WithTx(ctx, func(tx salon.Tx) error {
		removed, err := tx.LeaveQueue(ctx, "c")
		assert.True(t, removed)
		return err
	})
	require.NoError(t, err)

	queue, err = store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 2)
}

// =============================================================================
// ATTENDANCE & PAYROLL
// =============================================================================

func TestStore_CountLate(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	ctx := context.Background()

	for i, late := range []bool{true, false, true} {
		d := time.Date(2025, 6, 2+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.RecordAttendance(ctx, &salon.Attendance{
			EmployeeID: "emp-1", Date: d, CheckIn: d.Add(9 * time.Hour), IsLate: late,
		}))
	}
	// Next month does not count
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordAttendance(ctx, &salon.Attendance{EmployeeID: "emp-1", Date: july, CheckIn: july, IsLate: true}))

	// Second check-in on the same day is rejected
	err := store.RecordAttendance(ctx, &salon.Attendance{EmployeeID: "emp-1", Date: july, CheckIn: july})
	assert.ErrorIs(t, err, salon.ErrDuplicate)

	n, err := store.CountLate(ctx, "emp-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_PayrollUniquePerMonth(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	ctx := context.Background()
	month := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rec := func(id string) *salon.PayrollRecord {
		return &salon.PayrollRecord{
			ID: salon.PayrollID(id), EmployeeID: "emp-1", Month: month,
			BaseSalary: decimal.NewFromInt(15000), CommissionEarned: decimal.NewFromInt(500),
			Deductions: decimal.NewFromInt(200), TotalSalary: decimal.NewFromInt(15300),
			Status: salon.PayrollPending, CreatedAt: month,
		}
	}

	require.NoError(t, store.WithTx(ctx, func(tx salon.Tx) error { return tx.InsertPayroll(ctx, rec("p-1")) }))
	err := store.WithTx(ctx, func(tx salon.Tx) error { return tx.InsertPayroll(ctx, rec("p-2")) })
	assert.ErrorIs(t, err, salon.ErrDuplicate)

	exists, err := store.PayrollExists(ctx, "emp-1", month)
	require.NoError(t, err)
	assert.True(t, exists)

	records, err := store.ListPayroll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].TotalSalary.Equal(decimal.NewFromInt(15300)))
	assert.Equal(t, month, records[0].Month)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	seedStaff(t, store, "emp-1")
	insertBooking(t, store, "b-1", nil, salon.NewSlotTime(9, 0))

	require.NoError(t, store.Reset(context.Background()))

	staff, err := store.ListStaff(context.Background())
	require.NoError(t, err)
	assert.Empty(t, staff)
}
