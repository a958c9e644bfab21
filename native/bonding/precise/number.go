package precise

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits carried by every Number.
const Decimals = 24

var (
	oneRaw  = mustRaw("1000000000000000000000000")
	halfRaw = new(uint256.Int).Rsh(oneRaw, 1)
	unitRaw = uint256.NewInt(1)

	// pow10 caches 10^i for i in [0, Decimals].
	pow10 = buildPow10()
)

func mustRaw(value string) *uint256.Int {
	v, err := uint256.FromDecimal(value)
	if err != nil {
		panic("precise: invalid constant " + value)
	}
	return v
}

func buildPow10() [Decimals + 1]*uint256.Int {
	var out [Decimals + 1]*uint256.Int
	ten := uint256.NewInt(10)
	out[0] = uint256.NewInt(1)
	for i := 1; i <= Decimals; i++ {
		out[i] = new(uint256.Int).Mul(out[i-1], ten)
	}
	return out
}

// Number is an unsigned 256-bit fixed-point value scaled by 10^24. The zero
// value is 0. Checked operations return ok=false on overflow, underflow or a
// domain error instead of saturating.
type Number struct {
	value uint256.Int
}

// Zero returns 0.
func Zero() Number { return Number{} }

// One returns 1.
func One() Number { return Number{value: *oneRaw} }

// New returns the integer v as a Number.
func New(v uint64) Number {
	var z uint256.Int
	z.Mul(uint256.NewInt(v), oneRaw)
	return Number{value: z}
}

// FromRaw wraps an already scaled 256-bit integer.
func FromRaw(raw *uint256.Int) Number {
	if raw == nil {
		return Number{}
	}
	return Number{value: *raw}
}

// FromBig wraps an already scaled big integer. ok is false when the value is
// negative or wider than 256 bits.
func FromBig(raw *big.Int) (Number, bool) {
	if raw == nil {
		return Number{}, true
	}
	if raw.Sign() < 0 {
		return Number{}, false
	}
	v, overflow := uint256.FromBig(raw)
	if overflow {
		return Number{}, false
	}
	return Number{value: *v}, true
}

// FromRatio returns num/den rounded half up.
func FromRatio(num, den uint64) (Number, bool) {
	return New(num).Div(New(den))
}

// FromAmount converts a token amount expressed in the smallest unit of a mint
// with the given decimals into whole-token units.
func FromAmount(amount uint64, decimals uint8) (Number, bool) {
	if int(decimals) > Decimals {
		return Number{}, false
	}
	var z uint256.Int
	z.Mul(uint256.NewInt(amount), pow10[Decimals-int(decimals)])
	return Number{value: z}, true
}

// ToAmountFloor converts whole-token units back into the smallest unit of a
// mint, rounding down.
func (n Number) ToAmountFloor(decimals uint8) (uint64, bool) {
	q, _, ok := n.scaleDown(decimals)
	if !ok || !q.IsUint64() {
		return 0, false
	}
	return q.Uint64(), true
}

// ToAmountCeil converts whole-token units back into the smallest unit of a
// mint, rounding up.
func (n Number) ToAmountCeil(decimals uint8) (uint64, bool) {
	q, exact, ok := n.scaleDown(decimals)
	if !ok {
		return 0, false
	}
	if !exact {
		if _, overflow := q.AddOverflow(q, unitRaw); overflow {
			return 0, false
		}
	}
	if !q.IsUint64() {
		return 0, false
	}
	return q.Uint64(), true
}

func (n Number) scaleDown(decimals uint8) (*uint256.Int, bool, bool) {
	if int(decimals) > Decimals {
		return nil, false, false
	}
	divisor := pow10[Decimals-int(decimals)]
	q, r := new(uint256.Int).DivMod(&n.value, divisor, new(uint256.Int))
	return q, r.IsZero(), true
}

// Raw returns a copy of the scaled integer.
func (n Number) Raw() *uint256.Int {
	v := n.value
	return &v
}

// IsZero reports whether n is 0.
func (n Number) IsZero() bool { return n.value.IsZero() }

// Cmp compares n and o and returns -1, 0 or +1.
func (n Number) Cmp(o Number) int { return n.value.Cmp(&o.value) }

// Eq reports exact equality.
func (n Number) Eq(o Number) bool { return n.value.Eq(&o.value) }

// Lt reports n < o.
func (n Number) Lt(o Number) bool { return n.value.Lt(&o.value) }

// Gt reports n > o.
func (n Number) Gt(o Number) bool { return n.value.Gt(&o.value) }

// Add returns n+o.
func (n Number) Add(o Number) (Number, bool) {
	var z uint256.Int
	if _, overflow := z.AddOverflow(&n.value, &o.value); overflow {
		return Number{}, false
	}
	return Number{value: z}, true
}

// Sub returns n-o; ok is false when o > n.
func (n Number) Sub(o Number) (Number, bool) {
	var z uint256.Int
	if _, underflow := z.SubOverflow(&n.value, &o.value); underflow {
		return Number{}, false
	}
	return Number{value: z}, true
}

// UnsignedSub returns |n-o| and whether n-o is negative.
func (n Number) UnsignedSub(o Number) (Number, bool) {
	if n.Lt(o) {
		var z uint256.Int
		z.Sub(&o.value, &n.value)
		return Number{value: z}, true
	}
	var z uint256.Int
	z.Sub(&n.value, &o.value)
	return Number{value: z}, false
}

// Mul returns n*o rounded half up.
func (n Number) Mul(o Number) (Number, bool) {
	return mulDivRound(&n.value, &o.value, oneRaw)
}

// Div returns n/o rounded half up; ok is false when o is 0.
func (n Number) Div(o Number) (Number, bool) {
	if o.IsZero() {
		return Number{}, false
	}
	return mulDivRound(&n.value, oneRaw, &o.value)
}

// MulDiv returns n*m/d rounded half up using a 512-bit intermediate product.
func (n Number) MulDiv(m, d Number) (Number, bool) {
	if d.IsZero() {
		return Number{}, false
	}
	return mulDivRound(&n.value, &m.value, &d.value)
}

// mulDivRound computes x*y/d over a 512-bit product and rounds the quotient
// half up. The remainder is recovered from the low 256 bits of x*y and q*d,
// which wrap identically.
func mulDivRound(x, y, d *uint256.Int) (Number, bool) {
	q, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return Number{}, false
	}
	lo := new(uint256.Int).Mul(x, y)
	back := new(uint256.Int).Mul(q, d)
	rem := lo.Sub(lo, back)
	// rem >= d - rem  <=>  2*rem >= d
	if !rem.IsZero() && !rem.Lt(new(uint256.Int).Sub(d, rem)) {
		if _, overflow := q.AddOverflow(q, unitRaw); overflow {
			return Number{}, false
		}
	}
	return Number{value: *q}, true
}

// MulUint64 multiplies n by an integer without rescaling.
func (n Number) MulUint64(v uint64) (Number, bool) {
	var z uint256.Int
	if _, overflow := z.MulOverflow(&n.value, uint256.NewInt(v)); overflow {
		return Number{}, false
	}
	return Number{value: z}, true
}

// DivUint64 divides n by an integer, rounding half up.
func (n Number) DivUint64(v uint64) (Number, bool) {
	if v == 0 {
		return Number{}, false
	}
	return mulDivRound(&n.value, unitRaw, uint256.NewInt(v))
}

// Floor drops the fractional digits.
func (n Number) Floor() Number {
	var r uint256.Int
	r.Mod(&n.value, oneRaw)
	var z uint256.Int
	z.Sub(&n.value, &r)
	return Number{value: z}
}

// Ceil rounds up to the next integer.
func (n Number) Ceil() (Number, bool) {
	floor := n.Floor()
	if floor.Eq(n) {
		return n, true
	}
	return floor.Add(One())
}

// Uint64 returns the integer part of n.
func (n Number) Uint64() (uint64, bool) {
	var q uint256.Int
	q.Div(&n.value, oneRaw)
	if !q.IsUint64() {
		return 0, false
	}
	return q.Uint64(), true
}

// Pow raises n to an integer power by binary exponentiation.
func (n Number) Pow(exp uint64) (Number, bool) {
	result := One()
	base := n
	var ok bool
	for exp > 0 {
		if exp&1 == 1 {
			if result, ok = result.Mul(base); !ok {
				return Number{}, false
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, ok = base.Mul(base); !ok {
				return Number{}, false
			}
		}
	}
	return result, true
}

// AlmostEq reports whether |n-o| <= precision.
func (n Number) AlmostEq(o, precision Number) bool {
	diff, _ := n.UnsignedSub(o)
	return !diff.Gt(precision)
}

// String renders n in decimal notation.
func (n Number) String() string {
	return n.Decimal().String()
}

// Format implements fmt.Formatter so %v and %s print the decimal form.
func (n Number) Format(f fmt.State, verb rune) {
	switch verb {
	case 'd':
		fmt.Fprint(f, n.value.Dec())
	default:
		fmt.Fprint(f, n.String())
	}
}
