package shared

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════
// Money
// ═══════════════════════════════════════════════════════════════════════════

// Hundred is the percentage base.
var Hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount to whole currency units, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// PercentOf returns round(amount × pct / 100).
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(Hundred))
}

// MaxZero floors d at zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SumMoney adds all amounts.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ═══════════════════════════════════════════════════════════════════════════
// Caller identity
// ═══════════════════════════════════════════════════════════════════════════

// Role is the caller role supplied by the auth gateway.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RolePartner Role = "PARTNER"
	RoleStaff   Role = "STAFF"
	RoleTeacher Role = "TEACHER"
)

// ParseRole normalises a role string. Unknown roles return false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleOwner, RolePartner, RoleStaff, RoleTeacher:
		return r, true
	}
	return "", false
}

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID string
	Name   string
	Role   Role
}

// IsZero reports whether no identity is present.
func (c Caller) IsZero() bool {
	return c.UserID == ""
}

// HasRole reports whether the caller holds one of roles.
func (c Caller) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Authorize returns a forbidden error unless the caller holds one of roles.
func (c Caller) Authorize(op string, roles ...Role) error {
	if c.IsZero() {
		return NewDomainError("auth", op, ErrUnauthorized, "caller identity is required")
	}
	if !c.HasRole(roles...) {
		return NewDomainError("auth", op, ErrForbidden, "role "+string(c.Role)+" may not perform this operation")
	}
	return nil
}

// Role groups used by handlers.
var (
	ManagementRoles = []Role{RoleOwner, RolePartner}
	OperatorRoles   = []Role{RoleOwner, RolePartner, RoleStaff}
	OwnerOnly       = []Role{RoleOwner}
)

type callerKey struct{}

// WithCaller stores the caller in the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored in the context, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// ═══════════════════════════════════════════════════════════════════════════
// Billing period
// ═══════════════════════════════════════════════════════════════════════════

// Period identifies a calendar month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// IsValid checks if the period is a real month.
func (p Period) IsValid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 2000
}
