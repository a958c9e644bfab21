package precise

// SignedNumber is a Number magnitude with a sign bit. Zero is never negative.
type SignedNumber struct {
	Value    Number
	Negative bool
}

// Signed wraps a non-negative Number.
func Signed(n Number) SignedNumber { return SignedNumber{Value: n} }

// Negated wraps n as -n.
func Negated(n Number) SignedNumber { return normalize(SignedNumber{Value: n, Negative: true}) }

func normalize(s SignedNumber) SignedNumber {
	if s.Value.IsZero() {
		s.Negative = false
	}
	return s
}

// IsZero reports whether s is 0.
func (s SignedNumber) IsZero() bool { return s.Value.IsZero() }

// Neg returns -s.
func (s SignedNumber) Neg() SignedNumber {
	return normalize(SignedNumber{Value: s.Value, Negative: !s.Negative})
}

// Add returns s+o.
func (s SignedNumber) Add(o SignedNumber) (SignedNumber, bool) {
	if s.Negative == o.Negative {
		sum, ok := s.Value.Add(o.Value)
		if !ok {
			return SignedNumber{}, false
		}
		return normalize(SignedNumber{Value: sum, Negative: s.Negative}), true
	}
	diff, negative := s.Value.UnsignedSub(o.Value)
	if negative {
		return normalize(SignedNumber{Value: diff, Negative: o.Negative}), true
	}
	return normalize(SignedNumber{Value: diff, Negative: s.Negative}), true
}

// Sub returns s-o.
func (s SignedNumber) Sub(o SignedNumber) (SignedNumber, bool) {
	return s.Add(o.Neg())
}

// Mul returns s*o.
func (s SignedNumber) Mul(o SignedNumber) (SignedNumber, bool) {
	product, ok := s.Value.Mul(o.Value)
	if !ok {
		return SignedNumber{}, false
	}
	return normalize(SignedNumber{Value: product, Negative: s.Negative != o.Negative}), true
}

// Div returns s/o.
func (s SignedNumber) Div(o SignedNumber) (SignedNumber, bool) {
	quotient, ok := s.Value.Div(o.Value)
	if !ok {
		return SignedNumber{}, false
	}
	return normalize(SignedNumber{Value: quotient, Negative: s.Negative != o.Negative}), true
}

// AlmostEq reports whether |s-o| <= precision.
func (s SignedNumber) AlmostEq(o SignedNumber, precision Number) bool {
	diff, ok := s.Sub(o)
	if !ok {
		return false
	}
	return !diff.Value.Gt(precision)
}

// String renders s in decimal notation.
func (s SignedNumber) String() string {
	if s.Negative {
		return "-" + s.Value.String()
	}
	return s.Value.String()
}
