// Package fee computes the burn taken from every hooked transfer.
package fee

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Reference rate: 1 basis point.
const (
	ReferenceNumerator   uint64 = 1
	ReferenceDenominator uint64 = 10_000
)

var (
	// ErrOverflow is returned when amount * numerator does not fit in 64 bits.
	ErrOverflow = errors.New("fee: arithmetic overflow")

	// ErrInvalidRate is returned for a zero denominator or a rate above 100%.
	ErrInvalidRate = errors.New("fee: invalid rate")
)

// Policy is a fixed fractional rate applied to raw transfer amounts.
type Policy struct {
	Numerator   uint64
	Denominator uint64
}

// Reference returns the 1 bp policy.
func Reference() Policy {
	return Policy{Numerator: ReferenceNumerator, Denominator: ReferenceDenominator}
}

// NewPolicy validates and returns a policy.
func NewPolicy(numerator, denominator uint64) (Policy, error) {
	p := Policy{Numerator: numerator, Denominator: denominator}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks denominator > 0 and numerator <= denominator.
func (p Policy) Validate() error {
	if p.Denominator == 0 {
		return fmt.Errorf("%w: zero denominator", ErrInvalidRate)
	}
	if p.Numerator > p.Denominator {
		return fmt.Errorf("%w: %d/%d exceeds 100%%", ErrInvalidRate, p.Numerator, p.Denominator)
	}
	return nil
}

// BasisPoints returns the rate in basis points, truncated.
func (p Policy) BasisPoints() uint64 {
	if p.Denominator == 0 {
		return 0
	}
	hi, lo := bits.Mul64(p.Numerator, 10_000)
	if hi >= p.Denominator {
		return math.MaxUint64
	}
	bps, _ := bits.Div64(hi, lo, p.Denominator)
	return bps
}

// BurnAmount returns floor(amount * Numerator / Denominator).
// Zero is a valid result for small amounts.
func (p Policy) BurnAmount(amount uint64) (uint64, error) {
	if p.Denominator == 0 {
		return 0, fmt.Errorf("%w: zero denominator", ErrInvalidRate)
	}
	hi, lo := bits.Mul64(amount, p.Numerator)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, amount, p.Numerator)
	}
	return lo / p.Denominator, nil
}

// NetAmount returns what the destination keeps after the burn.
func (p Policy) NetAmount(amount uint64) (uint64, error) {
	burn, err := p.BurnAmount(amount)
	if err != nil {
		return 0, err
	}
	return amount - burn, nil
}

// String formats the rate, e.g. "1/10000".
func (p Policy) String() string {
	return fmt.Sprintf("%d/%d", p.Numerator, p.Denominator)
}
