package procfake

import (
	"context"
	"sync"

	"github.com/kinnstay/booking-workflow/processor"
)

var _ processor.Client = (*FakeProcessor)(nil)

// FakeProcessor scripts confirmation and refund outcomes for tests and
// records every secret presented to it.
type FakeProcessor struct {
	lock sync.Mutex

	// ConfirmResult is returned by Confirm unless ConfirmErr is set.
	ConfirmResult processor.Confirmation
	ConfirmErr    error
	RefundErr     error

	ConfirmedSecrets []string
	RefundedSecrets  []string
	RefundedAmounts  []int64
}

// NewSucceeding returns a fake whose confirmations always succeed.
func NewSucceeding() *FakeProcessor {
	return &FakeProcessor{ConfirmResult: processor.Confirmation{Status: processor.StatusSucceeded}}
}

// NewDeclining returns a fake that declines every confirmation with
// the given processor message.
func NewDeclining(message string) *FakeProcessor {
	return &FakeProcessor{ConfirmResult: processor.Confirmation{Status: processor.StatusFailed, Message: message}}
}

func (fp *FakeProcessor) Confirm(_ context.Context, clientSecret string, _ processor.Card, _ processor.BillingDetails) (*processor.Confirmation, error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	fp.ConfirmedSecrets = append(fp.ConfirmedSecrets, clientSecret)
	if fp.ConfirmErr != nil {
		return nil, fp.ConfirmErr
	}
	result := fp.ConfirmResult
	return &result, nil
}

func (fp *FakeProcessor) Refund(_ context.Context, clientSecret string, amountMinor int64) error {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	if fp.RefundErr != nil {
		return fp.RefundErr
	}
	fp.RefundedSecrets = append(fp.RefundedSecrets, clientSecret)
	fp.RefundedAmounts = append(fp.RefundedAmounts, amountMinor)
	return nil
}

// ConfirmCount reports how many confirmation attempts were made.
func (fp *FakeProcessor) ConfirmCount() int {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return len(fp.ConfirmedSecrets)
}
