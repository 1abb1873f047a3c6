// Package guard decides, per protected view, whether the current
// session may render it and where to redirect otherwise. It is a pure
// decision over the session snapshot, re-run on every session change
// while the view is mounted.
package guard

import (
	"github.com/pkg/errors"

	"github.com/kinnstay/booking-workflow/session"
	"github.com/kinnstay/booking-workflow/users"
)

// Decision is the outcome of evaluating a guard: either render, or
// redirect to the target path.
type Decision struct {
	Render   bool
	Redirect string
}

// Evaluate applies the access rule. Not authenticated redirects to the
// login page; authenticated with a role outside the allowed set
// redirects to the caller's own dashboard. The redirect target is
// always recomputed from the role, never fixed per call site.
func Evaluate(user *users.User, allowedRoles ...users.Role) Decision {
	if user == nil || !user.Role.Valid() {
		return Decision{Redirect: users.PathLogin}
	}
	if !user.HasRole(allowedRoles...) {
		return Decision{Redirect: users.DashboardPath(user.Role)}
	}
	return Decision{Render: true}
}

// Guard wraps a session store and re-evaluates a route's access rule
// whenever the session changes.
type Guard struct {
	store *session.Store
}

// New creates a Guard over the given session store.
func New(store *session.Store) (*Guard, error) {
	if store == nil {
		return nil, errors.New("[guard.New] session store is required")
	}
	return &Guard{store: store}, nil
}

// Check evaluates the rule against the current session.
func (g *Guard) Check(allowedRoles ...users.Role) Decision {
	return Evaluate(g.store.Current(), allowedRoles...)
}

// Watch evaluates immediately and then re-evaluates on every session
// change, invoking onDecision each time; a role downgrade mid-session
// therefore produces a redirect decision rather than leaving a stale
// privileged view rendered. The returned function stops watching.
func (g *Guard) Watch(allowedRoles []users.Role, onDecision func(Decision)) func() {
	onDecision(g.Check(allowedRoles...))
	return g.store.Subscribe(func(user *users.User) {
		onDecision(Evaluate(user, allowedRoles...))
	})
}
