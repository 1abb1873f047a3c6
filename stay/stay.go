// Package stay holds the user's intended stay parameters and derives
// the price for a given property. Setters are unconstrained (a
// check-out before check-in is representable), so every derived value
// must cope with invalid ranges rather than assume well-formed input.
package stay

import (
	"math"
	"time"

	"github.com/pkg/errors"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
)

// PricingPolicy decides whether the nightly total scales with the
// guest count. Which policy applies is a product decision, configured
// explicitly rather than implied.
type PricingPolicy string

const (
	// PricePerStay charges rate × nights regardless of occupancy.
	PricePerStay PricingPolicy = "per-stay"
	// PricePerGuest charges rate × nights × guests.
	PricePerGuest PricingPolicy = "per-guest"
)

// ParsePolicy validates a configured policy string, defaulting to
// PricePerStay for the empty string.
func ParsePolicy(raw string) (PricingPolicy, error) {
	switch PricingPolicy(raw) {
	case "":
		return PricePerStay, nil
	case PricePerStay:
		return PricePerStay, nil
	case PricePerGuest:
		return PricePerGuest, nil
	}
	return "", errors.Errorf("unknown pricing policy %q", raw)
}

// Selection is the in-progress choice for a prospective booking. It
// lives only as long as the property view; nothing here is persisted.
type Selection struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int

	policy PricingPolicy
}

// NewSelection creates a selection for a property defaulted to a
// one-week stay starting today, for one guest.
func NewSelection(propertyID string, policy PricingPolicy, now func() time.Time) *Selection {
	if now == nil {
		now = time.Now
	}
	today := now().Truncate(24 * time.Hour)
	return &Selection{
		PropertyID: propertyID,
		CheckIn:    today,
		CheckOut:   today.AddDate(0, 0, 7),
		Guests:     1,
		policy:     policy,
	}
}

func (s *Selection) SetCheckIn(date time.Time)  { s.CheckIn = date }
func (s *Selection) SetCheckOut(date time.Time) { s.CheckOut = date }
func (s *Selection) SetGuests(n int)            { s.Guests = n }

// Nights returns the stay length as the day-ceiling of the date range.
// Zero or negative means the range is invalid; callers must treat that
// as an undeterminable total, never as a free stay.
func (s *Selection) Nights() int {
	return int(math.Ceil(s.CheckOut.Sub(s.CheckIn).Hours() / 24))
}

// Total computes the stay price for the given nightly rate, or an
// error when the selection cannot produce a meaningful charge.
func (s *Selection) Total(nightlyRate float64) (float64, error) {
	nights := s.Nights()
	if nights <= 0 {
		return 0, errors.Wrapf(kerrors.ErrUndeterminableTotal, "check-out %s not after check-in %s",
			s.CheckOut.Format("2006-01-02"), s.CheckIn.Format("2006-01-02"))
	}
	if s.Guests < 1 {
		return 0, errors.Wrap(kerrors.ErrUndeterminableTotal, "guest count below 1")
	}
	if nightlyRate <= 0 {
		return 0, errors.Wrap(kerrors.ErrUndeterminableTotal, "nightly rate not positive")
	}

	total := nightlyRate * float64(nights)
	if s.policy == PricePerGuest {
		total *= float64(s.Guests)
	}
	return total, nil
}

// Valid reports whether the selection could currently be booked.
func (s *Selection) Valid() bool {
	return s.PropertyID != "" && s.Nights() > 0 && s.Guests >= 1
}
