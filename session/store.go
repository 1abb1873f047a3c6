// Package session holds the authenticated identity and is the single
// source of truth for "who is acting". Every guarded view and every
// network-calling component reads from it; changes (login, logout)
// broadcast synchronously to subscribers so a stale privileged view is
// redirected away rather than left rendered.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
	"github.com/kinnstay/booking-workflow/storage"
	"github.com/kinnstay/booking-workflow/users"
)

// Exchanger trades credentials for a signed bearer token. The
// marketplace client satisfies it.
type Exchanger interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Listener is invoked with the current identity on every session
// change; nil means logged out.
type Listener func(*users.User)

// Store is the observable session store.
type Store struct {
	exchanger Exchanger
	repo      storage.Repo
	log       zerolog.Logger
	nowTime   func() time.Time

	lock      sync.RWMutex
	current   *users.User
	token     string
	listeners map[int]Listener
	nextID    int
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore initializes a session store backed by the given durable repo.
func NewStore(exchanger Exchanger, repo storage.Repo, log zerolog.Logger, options ...StoreOption) (*Store, error) {
	if exchanger == nil {
		return nil, errors.New("[NewStore] exchanger is required")
	}
	if repo == nil {
		return nil, errors.New("[NewStore] storage repo is required")
	}

	s := &Store{
		exchanger: exchanger,
		repo:      repo,
		log:       log.With().Str("component", "session").Logger(),
		nowTime:   time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login exchanges credentials for a token, decodes the identity claims,
// and persists both durable entries. On any failure the store keeps its
// previous state: no partial identity is ever retained.
func (s *Store) Login(ctx context.Context, email, password string) error {
	token, err := s.exchanger.Login(ctx, email, password)
	if err != nil {
		return errors.Wrap(err, "[Store.Login] exchanger.Login")
	}

	claims, err := decodeClaims(token)
	if err != nil {
		return errors.Wrap(err, "[Store.Login] decodeClaims")
	}
	if claims.expired(s.nowTime()) {
		return errors.Wrap(kerrors.ErrSessionExpired, "[Store.Login] token already expired")
	}

	user := claims.user()
	identity, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.Login] json.Marshal identity")
	}
	if err := s.repo.Set(storage.TokenKey, []byte(token)); err != nil {
		return errors.Wrap(err, "[Store.Login] persist token")
	}
	if err := s.repo.Set(storage.IdentityKey, identity); err != nil {
		if delErr := s.repo.Delete(storage.TokenKey); delErr != nil {
			s.log.Warn().Err(delErr).Msg("failed rolling back token entry")
		}
		return errors.Wrap(err, "[Store.Login] persist identity")
	}

	s.lock.Lock()
	s.current = user
	s.token = token
	s.lock.Unlock()

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("logged in")
	s.broadcast()
	return nil
}

// Logout clears the in-memory identity and both durable entries. It is
// idempotent; logging out twice is a no-op the second time.
func (s *Store) Logout() {
	s.lock.Lock()
	wasAuthenticated := s.current != nil
	s.current = nil
	s.token = ""
	s.lock.Unlock()

	if err := s.repo.Delete(storage.TokenKey); err != nil {
		s.log.Warn().Err(err).Msg("failed clearing token entry")
	}
	if err := s.repo.Delete(storage.IdentityKey); err != nil {
		s.log.Warn().Err(err).Msg("failed clearing identity entry")
	}

	if wasAuthenticated {
		s.log.Info().Msg("logged out")
	}
	s.broadcast()
}

// Rehydrate loads a persisted session on process start. An expired
// token is treated exactly like no session at all: both entries are
// cleared and the store stays unauthenticated.
func (s *Store) Rehydrate() error {
	rawToken, err := s.repo.Get(storage.TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Store.Rehydrate] load token")
	}

	claims, err := decodeClaims(string(rawToken))
	if err != nil || claims.expired(s.nowTime()) {
		s.log.Info().Msg("stored session invalid or expired, discarding")
		s.Logout()
		return nil
	}

	identity, err := s.repo.Get(storage.IdentityKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Warn().Msg("stored identity missing, discarding")
		s.Logout()
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Store.Rehydrate] load identity")
	}
	var user users.User
	if err := json.Unmarshal(identity, &user); err != nil {
		s.log.Warn().Err(err).Msg("stored identity unreadable, discarding")
		s.Logout()
		return nil
	}

	s.lock.Lock()
	s.current = &user
	s.token = string(rawToken)
	s.lock.Unlock()

	s.log.Info().Str("user_id", user.ID).Msg("session rehydrated")
	s.broadcast()
	return nil
}

// Current returns a snapshot of the identity, nil when logged out.
func (s *Store) Current() *users.User {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.current != nil
}

// Token implements the bearer token source for API clients.
func (s *Store) Token() (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.token == "" {
		return "", kerrors.ErrNoSession
	}
	return s.token, nil
}

// DashboardPath returns where the current session's role lands.
func (s *Store) DashboardPath() string {
	user := s.Current()
	if user == nil {
		return users.PathHome
	}
	return users.DashboardPath(user.Role)
}

// Subscribe registers a listener for session changes and returns an
// unsubscribe function. The listener is not called with the current
// state at registration time.
func (s *Store) Subscribe(fn Listener) func() {
	s.lock.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lock.Unlock()

	return func() {
		s.lock.Lock()
		delete(s.listeners, id)
		s.lock.Unlock()
	}
}

func (s *Store) broadcast() {
	s.lock.RLock()
	current := s.current
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lock.RUnlock()

	var snapshot *users.User
	if current != nil {
		cp := *current
		snapshot = &cp
	}
	for _, fn := range fns {
		fn(snapshot)
	}
}
