// Package reservation persists the outcome of a successful payment
// authorization as durable booking and payment records. The two
// creates plus the upstream capture form a saga: each failure after the
// capture triggers a compensating action and leaves exactly one
// reconciliation record behind.
package reservation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
	"github.com/kinnstay/booking-workflow/marketplace"
	"github.com/kinnstay/booking-workflow/payment"
	"github.com/kinnstay/booking-workflow/processor"
	"github.com/kinnstay/booking-workflow/reconcile"
	"github.com/kinnstay/booking-workflow/stay"
)

// RecordsAPI is the slice of the marketplace client the saga needs.
type RecordsAPI interface {
	CreateBooking(ctx context.Context, req marketplace.BookingRequest, idempotencyKey string) (*marketplace.BookingResponse, error)
	CreatePayment(ctx context.Context, req marketplace.PaymentRequest) (*marketplace.PaymentResponse, error)
	CancelBooking(ctx context.Context, bookingID string) error
}

// Refunder reverses a captured payment; the processor client
// satisfies it.
type Refunder interface {
	Refund(ctx context.Context, clientSecret string, amountMinor int64) error
}

var _ Refunder = (processor.Client)(nil)

// Commit is one reservation commit attempt.
type Commit struct {
	AttemptID     string
	GuestID       string
	Selection     *stay.Selection
	TotalPrice    float64
	Authorization *payment.Authorization
}

// Result carries the durable records a successful commit produced.
type Result struct {
	Booking *marketplace.BookingResponse
	Payment *marketplace.PaymentResponse
}

// Saga runs the post-authorization persistence with compensation.
type Saga struct {
	api      RecordsAPI
	refunder Refunder
	recorder reconcile.Recorder
	log      zerolog.Logger
	nowTime  func() time.Time
}

// SagaOption defines a function type to modify the Saga instance.
type SagaOption func(*Saga)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SagaOption {
	return func(s *Saga) {
		s.nowTime = nowFunc
	}
}

// NewSaga creates the commit saga.
func NewSaga(api RecordsAPI, refunder Refunder, recorder reconcile.Recorder, log zerolog.Logger, options ...SagaOption) (*Saga, error) {
	if api == nil {
		return nil, errors.New("[NewSaga] records API is required")
	}
	if refunder == nil {
		return nil, errors.New("[NewSaga] refunder is required")
	}
	if recorder == nil {
		return nil, errors.New("[NewSaga] reconcile recorder is required")
	}
	s := &Saga{
		api:      api,
		refunder: refunder,
		recorder: recorder,
		log:      log.With().Str("component", "reservation").Logger(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Run persists the booking and then the payment record. The booking
// identifier from the first call is required input to the second, so
// the calls are strictly sequential. Both failure paths compensate and
// record; neither ever reports "nothing happened" when money has moved.
func (s *Saga) Run(ctx context.Context, commit Commit) (*Result, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}

	booking, err := s.api.CreateBooking(ctx, marketplace.BookingRequest{
		GuestID:    commit.GuestID,
		PropertyID: commit.Selection.PropertyID,
		CheckIn:    commit.Selection.CheckIn.UTC().Format(time.RFC3339),
		CheckOut:   commit.Selection.CheckOut.UTC().Format(time.RFC3339),
		TotalPrice: commit.TotalPrice,
		Status:     marketplace.BookingConfirmed,
	}, commit.AttemptID)
	if err != nil {
		// The charge is already captured; compensate with a refund.
		s.compensateBooking(ctx, commit, err)
		return nil, errors.Wrapf(kerrors.ErrPostCaptureFailure, "booking create: %v", err)
	}

	pmt, err := s.api.CreatePayment(ctx, marketplace.PaymentRequest{
		BookingID:     booking.ID,
		GuestID:       commit.GuestID,
		Amount:        commit.TotalPrice,
		PaymentMethod: marketplace.PaymentMethodExternal,
		Status:        "paid",
	})
	if err != nil {
		s.compensatePayment(ctx, commit, booking.ID, err)
		return nil, errors.Wrapf(kerrors.ErrPostCaptureFailure, "payment create: %v", err)
	}

	s.log.Info().Str("booking_id", booking.ID).Str("payment_id", pmt.ID).Msg("reservation committed")
	return &Result{Booking: booking, Payment: pmt}, nil
}

// compensateBooking refunds the captured charge after a failed booking
// create. Whether or not the refund goes through, exactly one
// reconciliation record is emitted for the attempt; a failed refund
// escalates the record's stage instead of adding a second record.
func (s *Saga) compensateBooking(ctx context.Context, commit Commit, cause error) {
	rec := reconcile.Record{
		AttemptID:    commit.AttemptID,
		ClientSecret: commit.Authorization.ClientSecret,
		AmountMinor:  commit.Authorization.AmountMinor,
		Currency:     commit.Authorization.Currency,
		Stage:        reconcile.StageBookingCreate,
		Cause:        cause.Error(),
		At:           s.nowTime(),
	}

	if err := s.refunder.Refund(ctx, commit.Authorization.ClientSecret, commit.Authorization.AmountMinor); err != nil {
		rec.Stage = reconcile.StageCompensation
		rec.Cause = rec.Cause + "; refund failed: " + err.Error()
	}
	s.record(rec)
}

// compensatePayment cancels the booking that has no payment record.
func (s *Saga) compensatePayment(ctx context.Context, commit Commit, bookingID string, cause error) {
	rec := reconcile.Record{
		AttemptID:    commit.AttemptID,
		ClientSecret: commit.Authorization.ClientSecret,
		BookingID:    bookingID,
		AmountMinor:  commit.Authorization.AmountMinor,
		Currency:     commit.Authorization.Currency,
		Stage:        reconcile.StagePaymentCreate,
		Cause:        cause.Error(),
		At:           s.nowTime(),
	}

	if err := s.api.CancelBooking(ctx, bookingID); err != nil {
		rec.Stage = reconcile.StageCompensation
		rec.Cause = rec.Cause + "; booking cancel failed: " + err.Error()
	}
	s.record(rec)
}

func (s *Saga) record(rec reconcile.Record) {
	if err := s.recorder.Record(rec); err != nil {
		// Last resort: the log line itself is the reconciliation trail.
		s.log.Error().Err(err).Str("attempt_id", rec.AttemptID).Str("client_secret", rec.ClientSecret).
			Msg("failed persisting reconciliation record")
	}
}

func validateCommit(commit Commit) error {
	if commit.AttemptID == "" {
		return errors.New("[Saga.Run] attempt ID is required")
	}
	if commit.GuestID == "" {
		return errors.New("[Saga.Run] guest ID is required")
	}
	if commit.Authorization == nil || commit.Authorization.ClientSecret == "" {
		return errors.New("[Saga.Run] authorization is required")
	}
	if commit.Selection == nil || !commit.Selection.Valid() {
		return errors.Wrap(kerrors.ErrInvalidStay, "[Saga.Run] stay selection no longer well-formed")
	}
	return nil
}
