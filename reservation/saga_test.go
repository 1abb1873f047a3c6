package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
	"github.com/kinnstay/booking-workflow/marketplace"
	"github.com/kinnstay/booking-workflow/payment"
	"github.com/kinnstay/booking-workflow/processor/procfake"
	"github.com/kinnstay/booking-workflow/reconcile"
	"github.com/kinnstay/booking-workflow/reservation"
	"github.com/kinnstay/booking-workflow/stay"
)

// fakeRecordsAPI scripts the marketplace persistence calls and records
// their order.
type fakeRecordsAPI struct {
	bookingErr error
	paymentErr error
	cancelErr  error

	bookings   []marketplace.BookingRequest
	payments   []marketplace.PaymentRequest
	cancelled  []string
	callOrder  []string
	bookingIDs int
}

func (f *fakeRecordsAPI) CreateBooking(_ context.Context, req marketplace.BookingRequest, _ string) (*marketplace.BookingResponse, error) {
	f.callOrder = append(f.callOrder, "booking")
	if f.bookingErr != nil {
		return nil, f.bookingErr
	}
	f.bookings = append(f.bookings, req)
	f.bookingIDs++
	return &marketplace.BookingResponse{
		ID:         "bk-1",
		GuestID:    req.GuestID,
		PropertyID: req.PropertyID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		TotalPrice: req.TotalPrice,
		Status:     req.Status,
	}, nil
}

func (f *fakeRecordsAPI) CreatePayment(_ context.Context, req marketplace.PaymentRequest) (*marketplace.PaymentResponse, error) {
	f.callOrder = append(f.callOrder, "payment")
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	f.payments = append(f.payments, req)
	return &marketplace.PaymentResponse{ID: "pm-1", BookingID: req.BookingID, Status: req.Status}, nil
}

func (f *fakeRecordsAPI) CancelBooking(_ context.Context, bookingID string) error {
	f.callOrder = append(f.callOrder, "cancel")
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, bookingID)
	return nil
}

// collectingRecorder gathers reconciliation records in memory.
type collectingRecorder struct {
	records []reconcile.Record
}

func (c *collectingRecorder) Record(rec reconcile.Record) error {
	c.records = append(c.records, rec)
	return nil
}

type testFixture struct {
	api      *fakeRecordsAPI
	proc     *procfake.FakeProcessor
	recorder *collectingRecorder
	saga     *reservation.Saga
	now      time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		api:      &fakeRecordsAPI{},
		proc:     procfake.NewSucceeding(),
		recorder: &collectingRecorder{},
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	saga, err := reservation.NewSaga(f.api, f.proc, f.recorder, zerolog.Nop(),
		reservation.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.saga = saga
	return f
}

func commit() reservation.Commit {
	sel := stay.NewSelection("prop-9", stay.PricePerStay, nil)
	sel.SetCheckIn(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sel.SetCheckOut(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	return reservation.Commit{
		AttemptID:  "attempt-1",
		GuestID:    "u-1",
		Selection:  sel,
		TotalPrice: 300,
		Authorization: &payment.Authorization{
			ClientSecret: "pi_1_secret_abc",
			AmountMinor:  30000,
			Currency:     "usd",
		},
	}
}

func TestRunCommitsBookingThenPayment(t *testing.T) {
	f := setupTestFixture(t)

	result, err := f.saga.Run(context.Background(), commit())
	require.NoError(t, err)

	// Booking created exactly once with the exact stay parameters.
	require.Len(t, f.api.bookings, 1)
	booking := f.api.bookings[0]
	require.Equal(t, "u-1", booking.GuestID)
	require.Equal(t, "prop-9", booking.PropertyID)
	require.Equal(t, "2024-01-01T00:00:00Z", booking.CheckIn)
	require.Equal(t, "2024-01-04T00:00:00Z", booking.CheckOut)
	require.Equal(t, 300.0, booking.TotalPrice)
	require.Equal(t, marketplace.BookingConfirmed, booking.Status)

	// Payment created exactly once, strictly after the booking, with
	// the booking id just returned.
	require.Equal(t, []string{"booking", "payment"}, f.api.callOrder)
	require.Len(t, f.api.payments, 1)
	pmt := f.api.payments[0]
	require.Equal(t, "bk-1", pmt.BookingID)
	require.Equal(t, "u-1", pmt.GuestID)
	require.Equal(t, 300.0, pmt.Amount)
	require.Equal(t, marketplace.PaymentMethodExternal, pmt.PaymentMethod)
	require.Equal(t, "paid", pmt.Status)

	require.Equal(t, "bk-1", result.Booking.ID)
	require.Equal(t, "pm-1", result.Payment.ID)
	require.Empty(t, f.recorder.records)
	require.Empty(t, f.proc.RefundedSecrets)
}

func TestRunBookingFailureRefundsAndRecords(t *testing.T) {
	f := setupTestFixture(t)
	f.api.bookingErr = errors.New("500 from bookings")

	_, err := f.saga.Run(context.Background(), commit())
	require.ErrorIs(t, err, kerrors.ErrPostCaptureFailure)

	// Payment-create was never attempted.
	require.Equal(t, []string{"booking"}, f.api.callOrder)

	// Compensation: the captured charge was refunded in full.
	require.Equal(t, []string{"pi_1_secret_abc"}, f.proc.RefundedSecrets)
	require.Equal(t, []int64{30000}, f.proc.RefundedAmounts)

	// Exactly one reconciliation record referencing the consumed secret.
	require.Len(t, f.recorder.records, 1)
	rec := f.recorder.records[0]
	require.Equal(t, "attempt-1", rec.AttemptID)
	require.Equal(t, "pi_1_secret_abc", rec.ClientSecret)
	require.Equal(t, reconcile.StageBookingCreate, rec.Stage)
	require.Empty(t, rec.BookingID)
	require.Equal(t, f.now, rec.At)
}

func TestRunBookingFailureWithFailedRefundStillOneRecord(t *testing.T) {
	f := setupTestFixture(t)
	f.api.bookingErr = errors.New("500 from bookings")
	f.proc.RefundErr = errors.New("refund rejected")

	_, err := f.saga.Run(context.Background(), commit())
	require.ErrorIs(t, err, kerrors.ErrPostCaptureFailure)

	// A failed compensation escalates the single record rather than
	// emitting a second one.
	require.Len(t, f.recorder.records, 1)
	rec := f.recorder.records[0]
	require.Equal(t, reconcile.StageCompensation, rec.Stage)
	require.Contains(t, rec.Cause, "refund rejected")
}

func TestRunPaymentFailureCancelsBookingAndRecords(t *testing.T) {
	f := setupTestFixture(t)
	f.api.paymentErr = errors.New("502 from payments")

	_, err := f.saga.Run(context.Background(), commit())
	require.ErrorIs(t, err, kerrors.ErrPostCaptureFailure)

	// Compensation: the orphaned booking was cancelled; no payment
	// record exists, and the charge was not refunded here (the record
	// carries the amount for reconciliation).
	require.Equal(t, []string{"booking", "payment", "cancel"}, f.api.callOrder)
	require.Equal(t, []string{"bk-1"}, f.api.cancelled)
	require.Empty(t, f.api.payments)

	require.Len(t, f.recorder.records, 1)
	rec := f.recorder.records[0]
	require.Equal(t, reconcile.StagePaymentCreate, rec.Stage)
	require.Equal(t, "bk-1", rec.BookingID)
	require.Equal(t, "pi_1_secret_abc", rec.ClientSecret)
}

func TestRunPaymentFailureWithFailedCancelStillOneRecord(t *testing.T) {
	f := setupTestFixture(t)
	f.api.paymentErr = errors.New("502 from payments")
	f.api.cancelErr = errors.New("409 from bookings")

	_, err := f.saga.Run(context.Background(), commit())
	require.ErrorIs(t, err, kerrors.ErrPostCaptureFailure)

	require.Len(t, f.recorder.records, 1)
	rec := f.recorder.records[0]
	require.Equal(t, reconcile.StageCompensation, rec.Stage)
	require.Contains(t, rec.Cause, "409 from bookings")
}

func TestRunValidation(t *testing.T) {
	f := setupTestFixture(t)

	c := commit()
	c.Authorization = nil
	_, err := f.saga.Run(context.Background(), c)
	require.Error(t, err)

	c = commit()
	c.Selection.SetCheckOut(c.Selection.CheckIn)
	_, err = f.saga.Run(context.Background(), c)
	require.ErrorIs(t, err, kerrors.ErrInvalidStay)

	c = commit()
	c.GuestID = ""
	_, err = f.saga.Run(context.Background(), c)
	require.Error(t, err)

	// Nothing was persisted or recorded for rejected commits.
	require.Empty(t, f.api.callOrder)
	require.Empty(t, f.recorder.records)
}
