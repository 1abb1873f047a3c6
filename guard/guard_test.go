package guard_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kinnstay/booking-workflow/guard"
	"github.com/kinnstay/booking-workflow/session"
	"github.com/kinnstay/booking-workflow/storage/repofake"
	"github.com/kinnstay/booking-workflow/users"
)

func TestEvaluateUnauthenticated(t *testing.T) {
	decision := guard.Evaluate(nil, users.RoleGuest, users.RoleHost, users.RoleAdmin)
	require.False(t, decision.Render)
	require.Equal(t, users.PathLogin, decision.Redirect)
}

func TestEvaluateMatrix(t *testing.T) {
	roles := []users.Role{users.RoleGuest, users.RoleHost, users.RoleAdmin}

	// For every (role, allowedRoles) pair: render iff role is allowed,
	// otherwise redirect exactly to the caller's own dashboard.
	for _, role := range roles {
		user := &users.User{ID: "u", Role: role}
		for mask := 0; mask < 1<<len(roles); mask++ {
			var allowed []users.Role
			for i, r := range roles {
				if mask&(1<<i) != 0 {
					allowed = append(allowed, r)
				}
			}
			decision := guard.Evaluate(user, allowed...)
			if user.HasRole(allowed...) {
				require.True(t, decision.Render, "role=%s allowed=%v", role, allowed)
			} else {
				require.False(t, decision.Render)
				require.Equal(t, users.DashboardPath(role), decision.Redirect, "role=%s allowed=%v", role, allowed)
			}
		}
	}
}

func TestEvaluateScenarios(t *testing.T) {
	// A guest requesting the host dashboard lands on their own.
	guest := &users.User{ID: "1", Role: users.RoleGuest}
	decision := guard.Evaluate(guest, users.RoleHost)
	require.Equal(t, users.PathGuestDashboard, decision.Redirect)

	// An admin is only let into the host dashboard when the route
	// allows admins too; otherwise they go to the admin dashboard.
	admin := &users.User{ID: "3", Role: users.RoleAdmin}
	decision = guard.Evaluate(admin, users.RoleHost, users.RoleAdmin)
	require.True(t, decision.Render)
	decision = guard.Evaluate(admin, users.RoleHost)
	require.Equal(t, users.PathAdminDashboard, decision.Redirect)
}

func TestEvaluateInvalidRoleFailsClosed(t *testing.T) {
	user := &users.User{ID: "u", Role: users.Role("owner")}
	decision := guard.Evaluate(user, users.RoleGuest, users.RoleHost, users.RoleAdmin)
	require.False(t, decision.Render)
	require.Equal(t, users.PathLogin, decision.Redirect)
}

// roleExchanger issues a token for whatever role it is currently set to.
type roleExchanger struct {
	role string
}

func (re *roleExchanger) Login(context.Context, string, string) (string, error) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"id":   "u-1",
		"role": re.role,
		"exp":  float64(time.Now().Add(time.Hour).Unix()),
	})
	return token.SignedString([]byte("secret"))
}

func TestWatchReactsToSessionChanges(t *testing.T) {
	exchanger := &roleExchanger{role: "host"}
	store, err := session.NewStore(exchanger, repofake.NewFakeRepo(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Login(context.Background(), "host@kinnstay.com", "pw"))

	g, err := guard.New(store)
	require.NoError(t, err)

	var decisions []guard.Decision
	stop := g.Watch([]users.Role{users.RoleHost}, func(d guard.Decision) {
		decisions = append(decisions, d)
	})
	defer stop()

	// Mounted with a host session: rendered.
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].Render)

	// Role change mid-session: the guarded view must be redirected
	// away, not left rendered with stale privileges.
	exchanger.role = "guest"
	require.NoError(t, store.Login(context.Background(), "host@kinnstay.com", "pw"))
	require.True(t, len(decisions) >= 2)
	last := decisions[len(decisions)-1]
	require.False(t, last.Render)
	require.Equal(t, users.PathGuestDashboard, last.Redirect)

	// Logout while mounted: straight to the login page.
	store.Logout()
	last = decisions[len(decisions)-1]
	require.False(t, last.Render)
	require.Equal(t, users.PathLogin, last.Redirect)
}
