package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/salon"
)

// =============================================================================
// TOKENS
// =============================================================================

func TestPropose_TokenFollowsMaxForDate(t *testing.T) {
	// GIVEN: T-1, T-2, T-3 already issued on the day
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.book(t, admin(), nil, "09:00", "cut")
	}

	// WHEN: A fourth booking is made
	b := env.book(t, customer("cust-1"), nil, "15:00")

	// THEN: It receives T-4
	assert.Equal(t, "T-4", b.Token())

	// AND: The next day starts again at T-1
	next, err := env.scheduler.Propose(context.Background(), admin(), booking.Request{
		Date: testDay.AddDate(0, 0, 1), Time: salon.NewSlotTime(10, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "T-1", next.Token())
}

func TestPropose_ConcurrentTokensAreUnique(t *testing.T) {
	// GIVEN: Many simultaneous walk-ins for the same day
	env := newTestEnv(t)
	const n = 25

	var wg sync.WaitGroup
	tokens := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := env.scheduler.Propose(context.Background(), salon.Anonymous(), request(nil, "12:00", "cut"))
			if err != nil {
				errs <- err
				return
			}
			tokens <- b.Token()
		}()
	}
	wg.Wait()
	close(tokens)
	close(errs)

	// THEN: Every booking succeeded with a distinct token T-1..T-n
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]bool{}
	for tok := range tokens {
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
	assert.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("T-%d", i)], "missing T-%d", i)
	}
}

// =============================================================================
// CONFLICTS
// =============================================================================

func TestPropose_OverlapRejectedWithSuggestion(t *testing.T) {
	// GIVEN: Stylist E has 10:00-10:30
	env := newTestEnv(t)
	emp := env.addStylist(t, "emp-1", 10)
	first := env.book(t, customer("cust-1"), &emp, "10:00", "cut")

	// WHEN: Another customer asks for E at 10:15
	_, err := env.scheduler.Propose(context.Background(), customer("cust-2"), request(&emp, "10:15", "cut"))

	// THEN: ConflictError suggesting 10:30
	var conflict *salon.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, first.ID, conflict.ConflictingBookingID)
	assert.Equal(t, salon.NewSlotTime(10, 30), conflict.SuggestedTime)

	// AND: Retrying at the suggestion succeeds
	b, err := env.scheduler.Propose(context.Background(), customer("cust-2"), request(&emp, conflict.SuggestedTime.String(), "cut"))
	require.NoError(t, err)
	assert.Equal(t, "T-2", b.Token())
}

func TestPropose_ChainedSuggestion(t *testing.T) {
	// GIVEN: 10:00-10:30 and 10:30-11:00 for the same stylist
	env := newTestEnv(t)
	emp := env.addStylist(t, "emp-1", 10)
	env.book(t, admin(), &emp, "10:00", "cut")
	env.book(t, admin(), &emp, "10:30", "cut")

	// WHEN: Requesting 10:15
	_, err := env.scheduler.Propose(context.Background(), admin(), request(&emp, "10:15", "cut"))

	// THEN: 11:00 is suggested
	var conflict *salon.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, salon.NewSlotTime(11, 0), conflict.SuggestedTime)
}

func TestPropose_CancelledBookingFreesSlot(t *testing.T) {
	env := newTestEnv(t)
	emp := env.addStylist(t, "emp-1", 10)
	b := env.book(t, customer("cust-1"), &emp, "10:00", "cut")

	_, err := env.lifecycle.Cancel(context.Background(), customer("cust-1"), b.ID)
	require.NoError(t, err)

	_, err = env.scheduler.Propose(context.Background(), customer("cust-2"), request(&emp, "10:00", "cut"))
	assert.NoError(t, err)
}

func TestPropose_OtherStylistUnaffected(t *testing.T) {
	env := newTestEnv(t)
	a := env.addStylist(t, "emp-a", 10)
	b := env.addStylist(t, "emp-b", 10)
	env.book(t, admin(), &a, "10:00", "color")

	_, err := env.scheduler.Propose(context.Background(), admin(), request(&b, "10:00", "color"))
	assert.NoError(t, err)
}

// =============================================================================
// BOOKING CONTENT
// =============================================================================

func TestPropose_SnapshotsPricesAndDurations(t *testing.T) {
	// GIVEN: A booking for cut + beard
	env := newTestEnv(t)
	emp := env.addStylist(t, "emp-1", 10)
	b := env.book(t, customer("cust-1"), &emp, "10:00", "cut", "beard")

	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 45, b.DurationMinutes(30))
	require.NotNil(t, b.EstimatedStart)
	require.NotNil(t, b.EstimatedEnd)
	assert.Equal(t, testDay.Add(10*time.Hour), *b.EstimatedStart)
	assert.Equal(t, testDay.Add(10*time.Hour+45*time.Minute), *b.EstimatedEnd)

	// WHEN: The catalog price changes
	require.NoError(t, env.store.SaveService(context.Background(), &salon.Service{
		ID: "cut", Name: "Haircut", Price: decimal.NewFromInt(999), DurationMinutes: 90, IsActive: true,
	}))

	// THEN: The stored booking keeps its snapshot
	stored, err := env.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(decimal.NewFromInt(300)))
	assert.True(t, stored.Items[0].Price.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 30, stored.Items[0].DurationMinutes)
}

func TestPropose_NoServicesUsesDefaultDuration(t *testing.T) {
	env := newTestEnv(t)
	emp := env.addStylist(t, "emp-1", 10)
	b := env.book(t, admin(), &emp, "10:00")

	assert.True(t, b.TotalPrice.IsZero())
	assert.Empty(t, b.Items)

	_, err := env.scheduler.Propose(context.Background(), admin(), request(&emp, "10:20"))
	var conflict *salon.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, salon.NewSlotTime(10, 30), conflict.SuggestedTime)
}

func TestPropose_CustomerVersusWalkIn(t *testing.T) {
	env := newTestEnv(t)

	mine := env.book(t, customer("cust-1"), nil, "10:00", "cut")
	require.NotNil(t, mine.CustomerID)
	assert.Equal(t, salon.UserID("cust-1"), *mine.CustomerID)
	assert.False(t, mine.IsWalkIn)

	walkIn := env.book(t, salon.Anonymous(), nil, "10:00", "cut")
	assert.Nil(t, walkIn.CustomerID)
	assert.True(t, walkIn.IsWalkIn)
	assert.Equal(t, salon.DefaultGuestName, walkIn.GuestName)

	req := request(nil, "11:00")
	req.GuestName = "Kofi"
	named, err := env.scheduler.Propose(context.Background(), admin(), req)
	require.NoError(t, err)
	assert.True(t, named.IsWalkIn)
	assert.Equal(t, "Kofi", named.GuestName)
}

func TestPropose_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.scheduler.Propose(ctx, admin(), request(nil, "10:00", "does-not-exist"))
	assert.ErrorIs(t, err, salon.ErrValidation)

	_, err = env.scheduler.Propose(ctx, admin(), request(nil, "10:00", "perm"))
	assert.ErrorIs(t, err, salon.ErrValidation, "inactive service")

	_, err = env.scheduler.Propose(ctx, admin(), request(nil, "23:45", "color"))
	assert.ErrorIs(t, err, salon.ErrValidation, "past midnight")

	_, err = env.scheduler.Propose(ctx, admin(), request(ptr(salon.EmployeeID("ghost")), "10:00", "cut"))
	assert.ErrorIs(t, err, salon.ErrNotFound)

	_, err = env.scheduler.Propose(ctx, salon.Principal{Role: salon.RoleCustomer}, request(nil, "10:00"))
	assert.ErrorIs(t, err, salon.ErrPermission)

	// No booking was written by any of the failures
	all, err := env.store.ListBookings(ctx, salon.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPropose_PublishesCreated(t *testing.T) {
	env := newTestEnv(t)
	b := env.book(t, admin(), nil, "10:00", "cut")

	evs := env.events.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.BookingCreated, evs[0].Type)
	assert.Equal(t, string(b.ID), evs[0].Key)
	assert.Equal(t, "T-1", evs[0].Data["token"])
}

func TestListServices_ActiveOnly(t *testing.T) {
	env := newTestEnv(t)

	services, err := env.scheduler.ListServices(context.Background())
	require.NoError(t, err)
	for _, s := range services {
		assert.NotEqual(t, salon.ServiceID("perm"), s.ID)
	}
	assert.Len(t, services, 3)
}
