package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/salon"
	"github.com/warp/salon-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testDay = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	store     *sqlite.Store
	clock     *salon.FixedClock
	events    *events.Recorder
	rotation  *stubRotation
	scheduler *booking.Scheduler
	lifecycle *booking.Lifecycle
	views     *booking.Views
}

func newTestEnv(t *testing.T) *testEnv {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:    store,
		clock:    salon.NewFixedClock(testDay.Add(9 * time.Hour)),
		events:   &events.Recorder{},
		rotation: &stubRotation{},
	}
	opts := booking.Options{Clock: env.clock, Events: env.events}
	env.scheduler = booking.NewScheduler(store, opts)
	env.lifecycle = booking.NewLifecycle(store, env.rotation, opts)
	env.views = booking.NewViews(store, opts)

	ctx := context.Background()
	for _, svc := range []salon.Service{
		{ID: "cut", Name: "Haircut", Price: decimal.NewFromInt(200), DurationMinutes: 30, IsActive: true},
		{ID: "color", Name: "Colour", Price: decimal.NewFromInt(500), DurationMinutes: 60, IsActive: true},
		{ID: "beard", Name: "Beard Trim", Price: decimal.NewFromInt(100), DurationMinutes: 15, IsActive: true},
		{ID: "perm", Name: "Perm", Price: decimal.NewFromInt(900), DurationMinutes: 90, IsActive: false},
	} {
		svc := svc
		require.NoError(t, store.SaveService(ctx, &svc))
	}
	return env
}

func (e *testEnv) addStylist(t *testing.T, id string, commissionRate int64) salon.EmployeeID {
	t.Helper()
	emp := salon.EmployeeID(id)
	err := e.store.WithTx(context.Background(), func(tx salon.Tx) error {
		return tx.InsertStaff(context.Background(), &salon.StaffProfile{
			ID:             emp,
			UserID:         salon.UserID("user-" + id),
			Name:           id,
			JobTitle:       salon.DefaultJobTitle,
			CommissionRate: decimal.NewFromInt(commissionRate),
			WalletBalance:  decimal.Zero,
			IsAvailable:    true,
			BaseSalary:     decimal.NewFromInt(15000),
			CreatedAt:      testDay,
		})
	})
	require.NoError(t, err)
	return emp
}

func (e *testEnv) book(t *testing.T, p salon.Principal, emp *salon.EmployeeID, at string, services ...salon.ServiceID) *salon.Booking {
	t.Helper()
	b, err := e.scheduler.Propose(context.Background(), p, request(emp, at, services...))
	require.NoError(t, err)
	return b
}

func (e *testEnv) staff(t *testing.T, emp salon.EmployeeID) *salon.StaffProfile {
	t.Helper()
	s, err := e.store.GetStaff(context.Background(), emp)
	require.NoError(t, err)
	return s
}

func request(emp *salon.EmployeeID, at string, services ...salon.ServiceID) booking.Request {
	slot, err := salon.ParseSlotTime(at)
	if err != nil {
		panic(err)
	}
	return booking.Request{EmployeeID: emp, Date: testDay, Time: slot, ServiceIDs: services}
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// PRINCIPALS
// =============================================================================

func admin() salon.Principal { return salon.Principal{UserID: "admin-1", Role: salon.RoleAdmin} }

func stylist(emp salon.EmployeeID) salon.Principal {
	return salon.Principal{UserID: salon.UserID("user-" + string(emp)), Role: salon.RoleEmployee, EmployeeID: &emp}
}

func customer(id string) salon.Principal {
	return salon.Principal{UserID: salon.UserID(id), Role: salon.RoleCustomer}
}

// =============================================================================
// ROTATION STUB
// =============================================================================

type stubRotation struct {
	mu       sync.Mutex
	left     []salon.EmployeeID
	requeued []salon.EmployeeID
}

func (r *stubRotation) LeaveInTx(_ context.Context, _ salon.Tx, emp salon.EmployeeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, emp)
	return nil
}

func (r *stubRotation) RequeueInTx(_ context.Context, _ salon.Tx, emp salon.EmployeeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requeued = append(r.requeued, emp)
	return nil
}
