// Package payment drives the client-side payment authorization: obtain
// a fresh single-use client secret from the marketplace, present it to
// the processor once, and report a terminal outcome.
package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
	"github.com/kinnstay/booking-workflow/processor"
)

// State of the authorization step.
type State string

const (
	StateIdle             State = "idle"
	StateRequestingSecret State = "requestingSecret"
	StateConfirming       State = "confirming"
	StateAuthorized       State = "authorized"
	StateFailed           State = "failed"
)

// IntentCreator requests a payment intent from the marketplace and
// returns its single-use client secret. The marketplace client
// satisfies it.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (string, error)
}

// Request carries everything needed for one authorization attempt. The
// attempt key identifies the user's intent to pay once; duplicate
// submissions sharing a key collapse into a single secret request.
type Request struct {
	AttemptKey  string
	AmountMinor int64
	Currency    string
	Card        processor.Card
	Billing     processor.BillingDetails
}

// Authorization is the confirmed result handed to the commit step.
// The client secret is already consumed; it is retained only so the
// commit step's compensation and reconciliation can reference the
// captured charge.
type Authorization struct {
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

// NewAttemptKey mints the idempotency key for one user payment intent.
func NewAttemptKey() string {
	return uuid.New().String()
}

// Step is the payment authorization step.
type Step struct {
	intents   IntentCreator
	processor processor.Client
	log       zerolog.Logger

	inflight singleflight.Group

	lock  sync.RWMutex
	state State
	cause string
}

// NewStep creates an authorization step.
func NewStep(intents IntentCreator, proc processor.Client, log zerolog.Logger) (*Step, error) {
	if intents == nil {
		return nil, errors.New("[payment.NewStep] intent creator is required")
	}
	if proc == nil {
		return nil, errors.New("[payment.NewStep] processor client is required")
	}
	return &Step{
		intents:   intents,
		processor: proc,
		log:       log.With().Str("component", "payment").Logger(),
		state:     StateIdle,
	}, nil
}

// State returns the current step state.
func (s *Step) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Cause returns the human-readable failure cause, empty unless failed.
func (s *Step) Cause() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.cause
}

// Authorize runs one authorization attempt to a terminal state.
// Concurrent calls sharing an attempt key (the double-click that would
// otherwise mint two secrets for one intended charge) are collapsed:
// every caller gets the result of a single underlying attempt. A failed
// attempt leaves the consumed secret behind; retrying requires a new
// attempt with a fresh key.
func (s *Step) Authorize(ctx context.Context, req Request) (*Authorization, error) {
	if req.AttemptKey == "" {
		return nil, errors.New("[Step.Authorize] attempt key is required")
	}
	if req.AmountMinor <= 0 {
		return nil, errors.New("[Step.Authorize] amount must be positive")
	}

	result, err, _ := s.inflight.Do(req.AttemptKey, func() (any, error) {
		return s.authorize(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Authorization), nil
}

func (s *Step) authorize(ctx context.Context, req Request) (*Authorization, error) {
	s.transition(StateRequestingSecret, "")

	clientSecret, err := s.intents.CreatePaymentIntent(ctx, req.AmountMinor, req.Currency, req.AttemptKey)
	if err != nil {
		s.transition(StateFailed, err.Error())
		return nil, errors.Wrap(kerrors.ErrSecretRequestFailed, err.Error())
	}

	s.transition(StateConfirming, "")
	confirmation, err := s.processor.Confirm(ctx, clientSecret, req.Card, req.Billing)
	if err != nil {
		s.transition(StateFailed, err.Error())
		return nil, errors.Wrap(kerrors.ErrConfirmationFailed, err.Error())
	}

	// Any terminal status other than succeeded is failure; the
	// processor's own message is surfaced verbatim.
	if confirmation.Status != processor.StatusSucceeded {
		s.transition(StateFailed, confirmation.Message)
		return nil, errors.Wrap(kerrors.ErrConfirmationFailed, confirmation.Message)
	}

	s.transition(StateAuthorized, "")
	s.log.Info().Int64("amount_minor", req.AmountMinor).Str("currency", req.Currency).Msg("payment authorized")
	return &Authorization{
		ClientSecret: clientSecret,
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
	}, nil
}

func (s *Step) transition(to State, cause string) {
	s.lock.Lock()
	s.state = to
	s.cause = cause
	s.lock.Unlock()
}
