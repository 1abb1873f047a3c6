package users

import (
	"fmt"
	"strings"
)

// Role represents what a signed-in user is allowed to do across the
// marketplace. A caller with no session has no role at all; role checks
// against the zero value always fail.
type Role string

const (
	RoleGuest Role = "guest" // Books stays, manages their own reservations
	RoleHost  Role = "host"  // Lists properties and manages incoming bookings
	RoleAdmin Role = "admin" // Full marketplace administration
)

// Dashboard routes, one per role, plus the public landing page used as
// the fallback redirect target.
const (
	PathHome           = "/"
	PathLogin          = "/login"
	PathGuestDashboard = "/dashboard/guest"
	PathHostDashboard  = "/dashboard/host"
	PathAdminDashboard = "/dashboard/admin"
)

// ParseRole maps a raw claim value onto a known Role. Anything outside
// the three known roles is rejected so an unexpected claim can never
// grant access.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleGuest:
		return RoleGuest, nil
	case RoleHost:
		return RoleHost, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Valid reports whether r is one of the three marketplace roles.
func (r Role) Valid() bool {
	return r == RoleGuest || r == RoleHost || r == RoleAdmin
}

// DashboardPath returns the dashboard a user with the given role lands
// on. An invalid or absent role falls back to the public landing page.
func DashboardPath(r Role) string {
	switch r {
	case RoleGuest:
		return PathGuestDashboard
	case RoleHost:
		return PathHostDashboard
	case RoleAdmin:
		return PathAdminDashboard
	}
	return PathHome
}

// User is the identity derived from the bearer token's claims at login.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// HasRole checks membership of the user's role in an allowed set.
func (u *User) HasRole(allowed ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range allowed {
		if u.Role == r {
			return true
		}
	}
	return false
}
