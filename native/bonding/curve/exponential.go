package curve

import (
	"fmt"

	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

const (
	// MaxPow bounds the numerator of the exponent p/q.
	MaxPow = 10
	// MaxFrac bounds the denominator of the exponent p/q.
	MaxFrac = 10
)

// Side selects the direction of a price evaluation.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// RootEstimates are optional Newton seeds for the two roots consumed by a
// price or inverse evaluation. Current seeds the root taken at the current
// supply, Next the root taken at the post-trade supply.
type RootEstimates struct {
	Current *precise.Number
	Next    *precise.Number
}

func (r *RootEstimates) current() *precise.Number {
	if r == nil {
		return nil
	}
	return r.Current
}

func (r *RootEstimates) next() *precise.Number {
	if r == nil {
		return nil
	}
	return r.Next
}

// Primitive is a curve family that can price supply changes and invert
// reserve changes. ExponentialCurve is the only variant.
type Primitive interface {
	Kind() PrimitiveKind
	Validate() error
	Price(reserves, supply, amount precise.Number, side Side, estimates *RootEstimates) (precise.Number, error)
	ExpectedTargetAmount(reserves, supply, reserveChange precise.Number, estimates *RootEstimates) (precise.Number, error)
}

// PrimitiveKind is the persisted tag of a Primitive variant.
type PrimitiveKind uint8

const (
	KindExponential PrimitiveKind = iota
)

// ExponentialCurve prices the integral of c*x^(pow/frac) + b.
type ExponentialCurve struct {
	C    precise.Number
	B    precise.Number
	Pow  uint8
	Frac uint8
}

var _ Primitive = ExponentialCurve{}

// Kind implements Primitive.
func (e ExponentialCurve) Kind() PrimitiveKind { return KindExponential }

// Validate checks exponent bounds and that exactly one of b and c is non-zero,
// which keeps the zero-state inverse evaluable.
func (e ExponentialCurve) Validate() error {
	if e.Pow > MaxPow {
		return fmt.Errorf("%w: pow %d exceeds %d", ErrInvalidCurve, e.Pow, MaxPow)
	}
	if e.Frac < 1 || e.Frac > MaxFrac {
		return fmt.Errorf("%w: frac %d outside [1, %d]", ErrInvalidCurve, e.Frac, MaxFrac)
	}
	if e.B.IsZero() == e.C.IsZero() {
		return fmt.Errorf("%w: exactly one of b and c must be non-zero", ErrInvalidCurve)
	}
	return nil
}

// exponent returns 1+k = (pow+frac)/frac.
func (e ExponentialCurve) exponent() (uint64, uint64) {
	return uint64(e.Pow) + uint64(e.Frac), uint64(e.Frac)
}

// Price returns the reserve units moved when supply changes by amount.
//
// With empty reserves or supply the antiderivative at zero is used:
// b*dS + c*dS^(1+k)/(1+k). Otherwise the curve is scaled to pass through the
// current state: R/S^(1+k) * ((S±dS)^(1+k) - S^(1+k)).
func (e ExponentialCurve) Price(reserves, supply, amount precise.Number, side Side, estimates *RootEstimates) (precise.Number, error) {
	if amount.IsZero() {
		return precise.Zero(), nil
	}
	if e.Frac == 0 {
		return precise.Zero(), ErrInvalidCurve
	}
	num, den := e.exponent()
	if reserves.IsZero() || supply.IsZero() {
		return e.initialPrice(amount, num, den, estimates)
	}

	supplyPow, ok := supply.PowFrac(num, den, estimates.current())
	if !ok || supplyPow.IsZero() {
		return precise.Zero(), fmt.Errorf("%w: supply power", ErrArithmetic)
	}
	var next precise.Number
	if side == Buy {
		next, ok = supply.Add(amount)
	} else {
		next, ok = supply.Sub(amount)
	}
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: supply change out of range", ErrArithmetic)
	}
	nextPow, ok := next.PowFrac(num, den, estimates.next())
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: next supply power", ErrArithmetic)
	}
	var diff precise.Number
	if side == Buy {
		diff, ok = nextPow.Sub(supplyPow)
	} else {
		diff, ok = supplyPow.Sub(nextPow)
	}
	if !ok {
		// root noise on a vanishing difference
		diff = precise.Zero()
	}
	price, ok := reserves.MulDiv(diff, supplyPow)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: price", ErrArithmetic)
	}
	return price, nil
}

func (e ExponentialCurve) initialPrice(amount precise.Number, num, den uint64, estimates *RootEstimates) (precise.Number, error) {
	linear, ok := e.B.Mul(amount)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: b*amount", ErrArithmetic)
	}
	if e.C.IsZero() {
		return linear, nil
	}
	powered, ok := amount.PowFrac(num, den, estimates.next())
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: amount power", ErrArithmetic)
	}
	// c * dS^(1+k) / (1+k) = c * dS^(1+k) * den / num
	scaled, ok := e.C.Mul(powered)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: c*amount", ErrArithmetic)
	}
	if scaled, ok = scaled.MulUint64(den); !ok {
		return precise.Zero(), fmt.Errorf("%w: integral scale", ErrArithmetic)
	}
	if scaled, ok = scaled.DivUint64(num); !ok {
		return precise.Zero(), fmt.Errorf("%w: integral scale", ErrArithmetic)
	}
	total, ok := linear.Add(scaled)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: price", ErrArithmetic)
	}
	return total, nil
}

// ExpectedTargetAmount returns the supply change bought by reserveChange.
//
// With empty reserves or supply: b = 0 gives ((1+k)*dR/c)^(1/(1+k)) and a
// constant curve gives dR/(b+c); a curve with both b and c set has no closed
// form and fails with ErrNotEvaluable. Otherwise
// (S^(1+k) * (R+dR)/R)^(1/(1+k)) - S.
func (e ExponentialCurve) ExpectedTargetAmount(reserves, supply, reserveChange precise.Number, estimates *RootEstimates) (precise.Number, error) {
	if reserveChange.IsZero() {
		return precise.Zero(), nil
	}
	if e.Frac == 0 {
		return precise.Zero(), ErrInvalidCurve
	}
	num, den := e.exponent()
	if reserves.IsZero() || supply.IsZero() {
		switch {
		case e.B.IsZero() && !e.C.IsZero():
			inner, ok := reserveChange.MulUint64(num)
			if !ok {
				return precise.Zero(), fmt.Errorf("%w: reserve scale", ErrArithmetic)
			}
			if inner, ok = inner.DivUint64(den); !ok {
				return precise.Zero(), fmt.Errorf("%w: reserve scale", ErrArithmetic)
			}
			if inner, ok = inner.Div(e.C); !ok {
				return precise.Zero(), fmt.Errorf("%w: divide by c", ErrArithmetic)
			}
			out, ok := inner.PowFrac(den, num, estimates.next())
			if !ok {
				return precise.Zero(), fmt.Errorf("%w: inverse root", ErrArithmetic)
			}
			return out, nil
		case e.Pow == 0:
			price, ok := e.B.Add(e.C)
			if !ok {
				return precise.Zero(), fmt.Errorf("%w: constant price", ErrArithmetic)
			}
			out, ok := reserveChange.Div(price)
			if !ok {
				return precise.Zero(), fmt.Errorf("%w: divide by price", ErrArithmetic)
			}
			return out, nil
		default:
			return precise.Zero(), ErrNotEvaluable
		}
	}

	supplyPow, ok := supply.PowFrac(num, den, estimates.current())
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: supply power", ErrArithmetic)
	}
	nextReserves, ok := reserves.Add(reserveChange)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: reserves", ErrArithmetic)
	}
	scaled, ok := supplyPow.MulDiv(nextReserves, reserves)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: scaled supply power", ErrArithmetic)
	}
	nextSupply, ok := scaled.PowFrac(den, num, estimates.next())
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: inverse root", ErrArithmetic)
	}
	out, ok := nextSupply.Sub(supply)
	if !ok {
		return precise.Zero(), nil
	}
	return out, nil
}
