// Package workflow sequences the reservation flow behind one
// user-facing action: pick a stay, review the price, authorize the
// payment, commit the records. It owns the step state machine and the
// terminal outcome shown to the user.
package workflow

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
	"github.com/kinnstay/booking-workflow/marketplace"
	"github.com/kinnstay/booking-workflow/payment"
	"github.com/kinnstay/booking-workflow/processor"
	"github.com/kinnstay/booking-workflow/reservation"
	"github.com/kinnstay/booking-workflow/session"
	"github.com/kinnstay/booking-workflow/stay"
	"github.com/kinnstay/booking-workflow/users"
)

// State of a reservation flow.
type State string

const (
	StateCollectingStay   State = "collecting-stay"
	StateReviewingPayment State = "reviewing-payment"
	StateAuthorizing      State = "authorizing"
	StateCommitting       State = "committing"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// legalTransitions is the authoritative table; anything absent is
// rejected rather than silently ignored.
var legalTransitions = map[State][]State{
	StateCollectingStay:   {StateReviewingPayment, StateCancelled},
	StateReviewingPayment: {StateAuthorizing, StateCollectingStay, StateCancelled},
	StateAuthorizing:      {StateCommitting, StateReviewingPayment, StateFailed},
	StateCommitting:       {StateSucceeded, StateFailed},
}

func canTransition(from, to State) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PropertyFetcher loads the listing record a flow books against; the
// marketplace client satisfies it.
type PropertyFetcher interface {
	Property(ctx context.Context, id string) (*marketplace.Property, error)
}

// Orchestrator creates reservation flows.
type Orchestrator struct {
	sessions   *session.Store
	properties PropertyFetcher
	step       *payment.Step
	saga       *reservation.Saga
	policy     stay.PricingPolicy
	currency   string
	deadline   time.Duration
	log        zerolog.Logger
	nowTime    func() time.Time
}

// Option defines a function type to modify the Orchestrator instance.
type Option func(*Orchestrator)

// WithStepDeadline bounds each network-bound step. Without it a hung
// request would keep the flow in a processing state forever.
func WithStepDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.deadline = d
	}
}

// WithCurrency sets the charge currency, default "usd".
func WithCurrency(currency string) Option {
	return func(o *Orchestrator) {
		o.currency = currency
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *Orchestrator) {
		o.nowTime = nowFunc
	}
}

// New creates an Orchestrator.
func New(sessions *session.Store, properties PropertyFetcher, step *payment.Step, saga *reservation.Saga, policy stay.PricingPolicy, log zerolog.Logger, options ...Option) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("[workflow.New] session store is required")
	}
	if properties == nil {
		return nil, errors.New("[workflow.New] property fetcher is required")
	}
	if step == nil {
		return nil, errors.New("[workflow.New] payment step is required")
	}
	if saga == nil {
		return nil, errors.New("[workflow.New] reservation saga is required")
	}
	o := &Orchestrator{
		sessions:   sessions,
		properties: properties,
		step:       step,
		saga:       saga,
		policy:     policy,
		currency:   "usd",
		deadline:   30 * time.Second,
		log:        log.With().Str("component", "workflow").Logger(),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// Flow is one reservation attempt for one guest and property.
type Flow struct {
	orch      *Orchestrator
	guest     *users.User
	property  *marketplace.Property
	selection *stay.Selection

	state      State
	cause      string
	attemptKey string
	quote      *Quote
	result     *reservation.Result
}

// Quote is the reviewed price presented before payment.
type Quote struct {
	Nights      int
	Total       float64
	AmountMinor int64
	Currency    string
}

// Begin starts a flow for the given property. Invoking it while
// unauthenticated short-circuits to a login prompt: the caller gets
// ErrNotAuthenticated and the login path, and no flow is created.
func (o *Orchestrator) Begin(ctx context.Context, propertyID string) (*Flow, error) {
	guest := o.sessions.Current()
	if guest == nil {
		return nil, errors.Wrap(kerrors.ErrNotAuthenticated, users.PathLogin)
	}

	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()
	property, err := o.properties.Property(ctx, propertyID)
	if err != nil {
		return nil, errors.Wrap(err, "[Orchestrator.Begin] properties.Property")
	}

	return &Flow{
		orch:      o,
		guest:     guest,
		property:  property,
		selection: stay.NewSelection(property.ID, o.policy, o.nowTime),
		state:     StateCollectingStay,
	}, nil
}

// State returns the flow's current state.
func (f *Flow) State() State { return f.state }

// Cause returns the human-readable failure cause, empty unless failed.
func (f *Flow) Cause() string { return f.cause }

// Selection exposes the stay parameters for the date pickers and
// guest stepper.
func (f *Flow) Selection() *stay.Selection { return f.selection }

// Result returns the committed records after success.
func (f *Flow) Result() *reservation.Result { return f.result }

// Review validates the selection, derives the quote, and moves to
// reviewing-payment. An undeterminable total keeps the flow in
// collecting-stay with the error surfaced for a dismissible notice.
func (f *Flow) Review() (*Quote, error) {
	if !canTransition(f.state, StateReviewingPayment) {
		return nil, errors.Wrapf(kerrors.ErrIllegalTransition, "review from %s", f.state)
	}

	total, err := f.selection.Total(f.property.PricePerNight)
	if err != nil {
		return nil, errors.Wrap(err, "[Flow.Review]")
	}

	f.quote = &Quote{
		Nights:      f.selection.Nights(),
		Total:       total,
		AmountMinor: int64(math.Round(total * 100)),
		Currency:    f.orch.currency,
	}
	// Fresh attempt key per review; a retry after failure starts a new
	// attempt with a new key and thus a new client secret.
	f.attemptKey = payment.NewAttemptKey()
	f.state = StateReviewingPayment
	return f.quote, nil
}

// EditStay returns from the review back to date selection.
func (f *Flow) EditStay() error {
	if !canTransition(f.state, StateCollectingStay) {
		return errors.Wrapf(kerrors.ErrIllegalTransition, "edit from %s", f.state)
	}
	f.state = StateCollectingStay
	f.quote = nil
	return nil
}

// Cancel abandons the flow. Legal any time before authorization
// starts; partially entered billing data is never retained, and an
// already-issued but unconfirmed client secret is simply left to
// expire at the processor.
func (f *Flow) Cancel() error {
	if !canTransition(f.state, StateCancelled) {
		return errors.Wrapf(kerrors.ErrIllegalTransition, "cancel from %s", f.state)
	}
	f.state = StateCancelled
	f.quote = nil
	return nil
}

// ConfirmAndPay authorizes the charge and commits the records. A
// failure before any charge was attempted returns the flow to review;
// everything else is terminal. The quote captured at review time
// is what gets charged and persisted, even if the pickers changed
// afterwards the selection is re-validated by the saga.
func (f *Flow) ConfirmAndPay(ctx context.Context, card processor.Card, billing processor.BillingDetails) (*reservation.Result, error) {
	if !canTransition(f.state, StateAuthorizing) {
		return nil, errors.Wrapf(kerrors.ErrIllegalTransition, "pay from %s", f.state)
	}
	f.state = StateAuthorizing

	authCtx, cancel := context.WithTimeout(ctx, f.orch.deadline)
	auth, err := f.orch.step.Authorize(authCtx, payment.Request{
		AttemptKey:  f.attemptKey,
		AmountMinor: f.quote.AmountMinor,
		Currency:    f.quote.Currency,
		Card:        card,
		Billing:     billing,
	})
	cancel()
	if err != nil {
		if errors.Is(err, kerrors.ErrSecretRequestFailed) {
			return nil, f.backToReview(err)
		}
		return nil, f.fail(err)
	}

	f.state = StateCommitting
	commitCtx, cancel := context.WithTimeout(ctx, f.orch.deadline)
	result, err := f.orch.saga.Run(commitCtx, reservation.Commit{
		AttemptID:     f.attemptKey,
		GuestID:       f.guest.ID,
		Selection:     f.selection,
		TotalPrice:    f.quote.Total,
		Authorization: auth,
	})
	cancel()
	if err != nil {
		return nil, f.fail(err)
	}

	f.state = StateSucceeded
	f.result = result
	f.orch.log.Info().Str("booking_id", result.Booking.ID).Str("guest_id", f.guest.ID).Msg("reservation succeeded")
	return result, nil
}

// backToReview returns the flow to reviewing-payment after a failure
// that happened before any charge was attempted. The quote stands; a
// fresh attempt key means resubmitting requests a new client secret.
func (f *Flow) backToReview(err error) error {
	f.state = StateReviewingPayment
	f.attemptKey = payment.NewAttemptKey()
	f.orch.log.Warn().Err(err).Msg("payment setup failed, returning to review")
	return err
}

// fail moves the flow to failed with a cause the UI can show. A
// post-capture failure keeps its distinct error kind so it is never
// presented as if nothing happened.
func (f *Flow) fail(err error) error {
	f.state = StateFailed
	f.cause = err.Error()
	f.orch.log.Warn().Err(err).Msg("reservation failed")
	return err
}
