package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/salon"
	"github.com/warp/salon-engine/store/sqlite"
)

// captured runs req through the middleware and returns the principal the
// next handler saw, or nil when the request was rejected.
func captured(t *testing.T, a *Authenticator, req *http.Request) (*salon.Principal, int) {
	t.Helper()
	var seen *salon.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		seen = &p
		w.WriteHeader(http.StatusNoContent)
	})
	rr := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rr, req)
	return seen, rr.Code
}

func withBearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuth_TokenRoundTrip(t *testing.T) {
	clock := salon.NewFixedClock(testNow)
	a := NewAuthenticator("secret", false, nil, clock)
	emp := salon.EmployeeID("emp-1")

	token, err := a.IssueToken(salon.Principal{UserID: "u1", Role: salon.RoleEmployee, EmployeeID: &emp}, time.Hour)
	require.NoError(t, err)

	p, code := captured(t, a, withBearer(token))

	require.Equal(t, http.StatusNoContent, code)
	require.NotNil(t, p)
	assert.Equal(t, salon.UserID("u1"), p.UserID)
	assert.Equal(t, salon.RoleEmployee, p.Role)
	require.NotNil(t, p.EmployeeID)
	assert.Equal(t, emp, *p.EmployeeID)
}

func TestAuth_NoHeaderIsAnonymous(t *testing.T) {
	a := NewAuthenticator("secret", false, nil, nil)

	p, code := captured(t, a, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusNoContent, code)
	assert.True(t, p.IsAnonymous())
}

func TestAuth_Rejections(t *testing.T) {
	clock := salon.NewFixedClock(testNow)
	a := NewAuthenticator("secret", false, nil, clock)
	other := NewAuthenticator("other-secret", false, nil, clock)

	expired, err := a.IssueToken(salon.Principal{UserID: "u1", Role: salon.RoleCustomer}, -time.Minute)
	require.NoError(t, err)
	forged, err := other.IssueToken(salon.Principal{UserID: "u1", Role: salon.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "WIZARD",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noSubject, err := a.IssueToken(salon.Principal{Role: salon.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"expired", withBearer(expired)},
		{"wrong secret", withBearer(forged)},
		{"unknown role", withBearer(unknownRole)},
		{"no subject", withBearer(noSubject)},
		{"garbage", withBearer("not-a-jwt")},
	}
	basic := httptest.NewRequest(http.MethodGet, "/", nil)
	basic.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	tests = append(tests, struct {
		name string
		req  *http.Request
	}{"basic scheme", basic})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, code := captured(t, a, tt.req)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Nil(t, p)
		})
	}
}

func TestAuth_ResolvesEmployeeProfile(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx salon.Tx) error {
		return tx.InsertStaff(ctx, &salon.StaffProfile{
			ID: "emp-7", UserID: "user-7", Name: "Sam", JobTitle: salon.DefaultJobTitle,
			CommissionRate: decimal.NewFromInt(10), WalletBalance: decimal.Zero,
			BaseSalary: decimal.Zero, IsAvailable: true, CreatedAt: testNow,
		})
	}))

	a := NewAuthenticator("secret", false, store, salon.NewFixedClock(testNow))

	token, err := a.IssueToken(salon.Principal{UserID: "user-7", Role: salon.RoleEmployee}, time.Hour)
	require.NoError(t, err)
	p, _ := captured(t, a, withBearer(token))
	require.NotNil(t, p.EmployeeID)
	assert.Equal(t, salon.EmployeeID("emp-7"), *p.EmployeeID)

	// An employee account without a profile stays unresolved.
	token, err = a.IssueToken(salon.Principal{UserID: "user-8", Role: salon.RoleEmployee}, time.Hour)
	require.NoError(t, err)
	p, code := captured(t, a, withBearer(token))
	assert.Equal(t, http.StatusNoContent, code)
	assert.Nil(t, p.EmployeeID)
}

func TestAuth_DisabledReadsHeaders(t *testing.T) {
	a := NewAuthenticator("", true, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-Role", "admin")
	p, _ := captured(t, a, req)
	assert.Equal(t, salon.RoleAdmin, p.Role)
	assert.Equal(t, salon.UserID("admin-1"), p.UserID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Role", "EMPLOYEE")
	req.Header.Set("X-Employee-ID", "emp-1")
	p, _ = captured(t, a, req)
	require.NotNil(t, p.EmployeeID)
	assert.Equal(t, salon.EmployeeID("emp-1"), *p.EmployeeID)

	p, _ = captured(t, a, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, p.IsAnonymous())
}
