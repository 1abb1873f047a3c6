// Package processor abstracts the third-party card processor. The
// workflow only needs two operations: confirm a payment against a
// single-use client secret, and refund a captured payment when the
// records it should settle cannot be persisted.
package processor

import "context"

// Status is a terminal processor status for a confirmation attempt.
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusRequiresAction Status = "requires_action"
	StatusFailed         Status = "failed"
)

// Card carries the payment method details presented for confirmation.
// It is held only for the duration of the confirm call and discarded
// with the rest of the billing data on cancellation.
type Card struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

// BillingDetails accompany the payment method.
type BillingDetails struct {
	Name  string
	Email string
}

// Confirmation is the terminal outcome the processor reports. Message
// carries the processor's human-readable text verbatim for surfacing
// to the user.
type Confirmation struct {
	Status  Status
	Message string
}

// Client is the processor-facing interface.
type Client interface {
	// Confirm presents the client secret to the processor exactly once
	// and waits for a terminal status. The secret is consumed whether
	// or not confirmation succeeds; retries need a fresh secret.
	Confirm(ctx context.Context, clientSecret string, card Card, billing BillingDetails) (*Confirmation, error)

	// Refund reverses a captured payment identified by the client
	// secret it was confirmed with.
	Refund(ctx context.Context, clientSecret string, amountMinor int64) error
}
