/*
auth.go - Principal extraction from bearer tokens

PURPOSE:
  Turns the Authorization header into a salon.Principal stored on the
  request context. Identity itself is issued elsewhere; this layer only
  verifies HS256 tokens signed with the shared secret.

TOKEN CLAIMS:
  sub          User id
  role         ADMIN | MANAGER | EMPLOYEE | CUSTOMER
  employee_id  Optional; resolved from the staff directory for EMPLOYEE
               tokens that omit it

RULES:
  - No Authorization header: anonymous principal (walk-in callers)
  - Malformed, expired or badly signed token: 401
  - AUTH_DISABLED: the principal is read from X-User-ID, X-Role and
    X-Employee-ID headers instead (local demos only)

SEE ALSO:
  - server.go: Middleware order
  - salon/types.go: Principal and roles
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/warp/salon-engine/salon"
)

// Claims is the JWT payload understood by the API.
type Claims struct {
	Role       string `json:"role"`
	EmployeeID string `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// StaffLookup resolves a user's staff profile.
type StaffLookup interface {
	GetStaffByUser(ctx context.Context, user salon.UserID) (*salon.StaffProfile, error)
}

type Authenticator struct {
	secret   []byte
	disabled bool
	staff    StaffLookup
	clock    salon.Clock
}

func NewAuthenticator(secret string, disabled bool, staff StaffLookup, clock salon.Clock) *Authenticator {
	if clock == nil {
		clock = salon.SystemClock{}
	}
	return &Authenticator{secret: []byte(secret), disabled: disabled, staff: staff, clock: clock}
}

var errUnauthorized = errors.New("unauthorized")

// IssueToken signs a token for p. Used by scenario seeding and tests.
func (a *Authenticator) IssueToken(p salon.Principal, ttl time.Duration) (string, error) {
	now := a.clock.Now()
	claims := Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.EmployeeID != nil {
		claims.EmployeeID = string(*p.EmployeeID)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies a token and returns its principal. EmployeeID is left
// for Resolve to fill in.
func (a *Authenticator) Parse(token string) (salon.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.clock.Now))
	if err != nil {
		return salon.Principal{}, fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return salon.Principal{}, fmt.Errorf("%w: invalid token", errUnauthorized)
	}

	role := salon.Role(c.Role)
	if !role.Valid() || role == salon.RoleAnonymous || c.Subject == "" {
		return salon.Principal{}, fmt.Errorf("%w: token needs a subject and a known role", errUnauthorized)
	}
	p := salon.Principal{UserID: salon.UserID(c.Subject), Role: role}
	if c.EmployeeID != "" {
		emp := salon.EmployeeID(c.EmployeeID)
		p.EmployeeID = &emp
	}
	return p, nil
}

// Resolve attaches the staff profile of an EMPLOYEE principal that
// arrived without one.
func (a *Authenticator) Resolve(ctx context.Context, p salon.Principal) (salon.Principal, error) {
	if p.Role != salon.RoleEmployee || p.EmployeeID != nil || a.staff == nil {
		return p, nil
	}
	staff, err := a.staff.GetStaffByUser(ctx, p.UserID)
	if errors.Is(err, salon.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	p.EmployeeID = &staff.ID
	return p, nil
}

// Middleware stores the caller's principal on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.principal(r)
		if errors.Is(err, errUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthorized"})
			return
		}
		if err == nil {
			p, err = a.Resolve(r.Context(), p)
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to resolve caller", Code: "internal"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (a *Authenticator) principal(r *http.Request) (salon.Principal, error) {
	if a.disabled {
		return headerPrincipal(r), nil
	}
	h := r.Header.Get("Authorization")
	if h == "" {
		return salon.Anonymous(), nil
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return salon.Principal{}, fmt.Errorf("%w: expected a bearer token", errUnauthorized)
	}
	return a.Parse(strings.TrimPrefix(h, "Bearer "))
}

func headerPrincipal(r *http.Request) salon.Principal {
	role := salon.Role(strings.ToUpper(r.Header.Get("X-Role")))
	if !role.Valid() {
		return salon.Anonymous()
	}
	p := salon.Principal{UserID: salon.UserID(r.Header.Get("X-User-ID")), Role: role}
	if emp := r.Header.Get("X-Employee-ID"); emp != "" {
		id := salon.EmployeeID(emp)
		p.EmployeeID = &id
	}
	return p
}

// =============================================================================
// CONTEXT
// =============================================================================

type principalKey struct{}

func WithPrincipal(ctx context.Context, p salon.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller, or an anonymous principal when the
// request did not pass through the middleware.
func PrincipalFrom(ctx context.Context) salon.Principal {
	if p, ok := ctx.Value(principalKey{}).(salon.Principal); ok {
		return p
	}
	return salon.Anonymous()
}
