// Package reconcile records post-capture failures: money has moved at
// the processor but the durable records that should account for it are
// incomplete. Every such failure emits exactly one record for manual or
// automated reconciliation; none of them is allowed to vanish into a
// generic error message.
package reconcile

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kinnstay/booking-workflow/storage"
)

// Stage identifies where in the commit the failure happened.
type Stage string

const (
	// StageBookingCreate: payment captured, booking record missing.
	StageBookingCreate Stage = "booking-create"
	// StagePaymentCreate: booking exists, payment record missing.
	StagePaymentCreate Stage = "payment-create"
	// StageCompensation: a compensating action itself failed, leaving
	// the inconsistency in place.
	StageCompensation Stage = "compensation"
)

// Record describes one orphaned capture or compensation failure.
type Record struct {
	AttemptID    string    `json:"attemptId"`
	ClientSecret string    `json:"clientSecret"`
	BookingID    string    `json:"bookingId,omitempty"`
	AmountMinor  int64     `json:"amountMinor"`
	Currency     string    `json:"currency"`
	Stage        Stage     `json:"stage"`
	Cause        string    `json:"cause"`
	At           time.Time `json:"at"`
}

// Recorder persists reconciliation records.
type Recorder interface {
	Record(rec Record) error
}

// LogRecorder writes records to the structured log at error level.
type LogRecorder struct {
	log zerolog.Logger
}

var _ Recorder = (*LogRecorder)(nil)

func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log.With().Str("component", "reconcile").Logger()}
}

func (lr *LogRecorder) Record(rec Record) error {
	lr.log.Error().
		Str("attempt_id", rec.AttemptID).
		Str("client_secret", rec.ClientSecret).
		Str("booking_id", rec.BookingID).
		Int64("amount_minor", rec.AmountMinor).
		Str("currency", rec.Currency).
		Str("stage", string(rec.Stage)).
		Str("cause", rec.Cause).
		Msg("payment captured without matching records")
	return nil
}

// StoreRecorder appends records to the durable key/value store so they
// survive the process that produced them.
type StoreRecorder struct {
	repo storage.Repo
}

var _ Recorder = (*StoreRecorder)(nil)

func NewStoreRecorder(repo storage.Repo) (*StoreRecorder, error) {
	if repo == nil {
		return nil, errors.New("[NewStoreRecorder] storage repo is required")
	}
	return &StoreRecorder{repo: repo}, nil
}

func (sr *StoreRecorder) Record(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "[StoreRecorder.Record] json.Marshal")
	}
	key := "kinnstay_reconcile_" + rec.AttemptID
	if err := sr.repo.Set(key, data); err != nil {
		return errors.Wrap(err, "[StoreRecorder.Record] repo.Set")
	}
	return nil
}

// Multi fans a record out to several recorders; the first error wins
// but every recorder is still attempted.
type Multi []Recorder

var _ Recorder = (Multi)(nil)

func (m Multi) Record(rec Record) error {
	var firstErr error
	for _, r := range m {
		if err := r.Record(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
