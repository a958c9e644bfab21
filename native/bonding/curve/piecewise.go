package curve

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

// TransitionFee is a surcharge that decays linearly to zero over Interval
// seconds after the owning piece activates. Percentage is a fraction of
// math.MaxUint32.
type TransitionFee struct {
	Percentage uint32
	Interval   uint32
}

// At returns the surcharge elapsed seconds after activation.
func (f *TransitionFee) At(elapsed int64) uint32 {
	if f == nil || f.Interval == 0 || elapsed < 0 || elapsed >= int64(f.Interval) {
		return 0
	}
	remaining := uint64(int64(f.Interval) - elapsed)
	fee := new(uint256.Int).Mul(uint256.NewInt(uint64(f.Percentage)), uint256.NewInt(remaining))
	fee.Div(fee, uint256.NewInt(uint64(f.Interval)))
	return uint32(fee.Uint64())
}

// TimeCurve is one piece of a piecewise definition, active from Offset
// seconds after go-live.
type TimeCurve struct {
	Offset            int64
	Curve             Primitive
	BuyTransitionFee  *TransitionFee
	SellTransitionFee *TransitionFee
}

// Piecewise selects a primitive by time offset.
type Piecewise struct {
	Pieces []TimeCurve
}

// Validate checks every primitive and the ordering of piece offsets.
func (p Piecewise) Validate() error {
	if len(p.Pieces) == 0 {
		return fmt.Errorf("%w: no pieces", ErrInvalidCurve)
	}
	if p.Pieces[0].Offset != 0 {
		return fmt.Errorf("%w: first piece offset %d, want 0", ErrInvalidCurve, p.Pieces[0].Offset)
	}
	last := int64(0)
	for i, piece := range p.Pieces {
		if piece.Curve == nil {
			return fmt.Errorf("%w: piece %d has no primitive", ErrInvalidCurve, i)
		}
		if piece.Offset < last {
			return fmt.Errorf("%w: piece %d offset %d before %d", ErrInvalidCurve, i, piece.Offset, last)
		}
		last = piece.Offset
		if err := piece.Curve.Validate(); err != nil {
			return fmt.Errorf("piece %d: %w", i, err)
		}
	}
	return nil
}

// Select returns the last piece whose offset is at or before the given
// offset. Offsets before zero resolve to the first piece.
func (p Piecewise) Select(offset int64) (TimeCurve, bool) {
	if len(p.Pieces) == 0 {
		return TimeCurve{}, false
	}
	selected := p.Pieces[0]
	for _, piece := range p.Pieces[1:] {
		if piece.Offset > offset {
			break
		}
		selected = piece
	}
	return selected, true
}

// BuyTransitionFee returns the buy-side surcharge active at offset.
func (p Piecewise) BuyTransitionFee(offset int64) uint32 {
	piece, ok := p.Select(offset)
	if !ok {
		return 0
	}
	return piece.BuyTransitionFee.At(offset - piece.Offset)
}

// SellTransitionFee returns the sell-side surcharge active at offset.
func (p Piecewise) SellTransitionFee(offset int64) uint32 {
	piece, ok := p.Select(offset)
	if !ok {
		return 0
	}
	return piece.SellTransitionFee.At(offset - piece.Offset)
}

// Price evaluates the piece active at offset.
func (p Piecewise) Price(offset int64, reserves, supply, amount precise.Number, side Side, estimates *RootEstimates) (precise.Number, error) {
	piece, ok := p.Select(offset)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: no pieces", ErrInvalidCurve)
	}
	return piece.Curve.Price(reserves, supply, amount, side, estimates)
}

// ExpectedTargetAmount inverts the piece active at offset.
func (p Piecewise) ExpectedTargetAmount(offset int64, reserves, supply, reserveChange precise.Number, estimates *RootEstimates) (precise.Number, error) {
	piece, ok := p.Select(offset)
	if !ok {
		return precise.Zero(), fmt.Errorf("%w: no pieces", ErrInvalidCurve)
	}
	return piece.Curve.ExpectedTargetAmount(reserves, supply, reserveChange, estimates)
}

// DefinitionKind is the persisted tag of a curve definition.
type DefinitionKind uint8

const (
	KindTimeV0 DefinitionKind = iota
)

// Curve is the persisted, immutable curve record referenced by bondings.
type Curve struct {
	Definition Piecewise
}

// Validate implements the creation-time checks.
func (c Curve) Validate() error { return c.Definition.Validate() }

// Single wraps one primitive into a curve active from offset zero.
func Single(p Primitive) Curve {
	return Curve{Definition: Piecewise{Pieces: []TimeCurve{{Offset: 0, Curve: p}}}}
}

// MaxPercentage is the denominator of every royalty and fee percentage.
const MaxPercentage = math.MaxUint32
