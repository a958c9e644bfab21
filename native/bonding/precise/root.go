package precise

// Sqrt returns the square root of n by Newton iteration seeded with (n+1)/2.
func (n Number) Sqrt() (Number, bool) {
	if n.IsZero() {
		return Number{}, true
	}
	seed, ok := n.Add(One())
	if !ok {
		return Number{}, false
	}
	if seed, ok = seed.Mul(half); !ok {
		return Number{}, false
	}
	return newtonRoot(n, 2, seed, SqrtPrecision)
}

// NthRoot returns the nth root of n. Iteration stops once successive iterates
// agree to RootPrecision. A seed only shortens the iteration: a seeded result
// that does not bracket the root is discarded for the exp(log(n)/root)
// estimate.
func (n Number) NthRoot(root uint64, seed *Number) (Number, bool) {
	switch {
	case root == 0:
		return Number{}, false
	case root == 1 || n.IsZero():
		return n, true
	}
	if y, ok := refineSeed(n, root, seed); ok {
		return y, true
	}
	estimate, ok := n.estimatePow(1, root)
	if !ok {
		return Number{}, false
	}
	return newtonRoot(n, root, estimate, RootPrecision)
}

// refineSeed runs Newton from a caller seed and keeps the result only when the
// true root of y^root = x lies within rootTolerance of it.
func refineSeed(x Number, root uint64, seed *Number) (Number, bool) {
	if seed == nil || seed.IsZero() {
		return Number{}, false
	}
	y, ok := newtonRoot(x, root, *seed, RootPrecision)
	if !ok || !bracketsRoot(y, x, root) {
		return Number{}, false
	}
	return y, true
}

// rootTolerance is max(y*10^-12, RootPrecision).
func rootTolerance(y Number) Number {
	relative, ok := y.DivUint64(1_000_000_000_000)
	if !ok || relative.Lt(RootPrecision) {
		return RootPrecision
	}
	return relative
}

// bracketsRoot reports whether (y-tol)^root <= x <= (y+tol)^root.
func bracketsRoot(y, x Number, root uint64) bool {
	tol := rootTolerance(y)
	lo, negative := y.UnsignedSub(tol)
	if negative {
		lo = Zero()
	}
	hi, ok := y.Add(tol)
	if !ok {
		return false
	}
	loPow, ok := lo.Pow(root)
	if !ok || loPow.Gt(x) {
		return false
	}
	hiPow, ok := hi.Pow(root)
	return ok && !hiPow.Lt(x)
}

// newtonRoot solves y^root = x from guess with y' = ((root-1)*y + x/y^(root-1)) / root.
func newtonRoot(x Number, root uint64, guess Number, precision Number) (Number, bool) {
	if guess.IsZero() {
		guess = One()
	}
	y := guess
	for i := 0; i < maxRootIterations; i++ {
		yPow, ok := y.Pow(root - 1)
		if !ok || yPow.IsZero() {
			return Number{}, false
		}
		quotient, ok := x.Div(yPow)
		if !ok {
			return Number{}, false
		}
		weighted, ok := y.MulUint64(root - 1)
		if !ok {
			return Number{}, false
		}
		next, ok := weighted.Add(quotient)
		if !ok {
			return Number{}, false
		}
		if next, ok = next.DivUint64(root); !ok {
			return Number{}, false
		}
		if next.AlmostEq(y, precision) {
			return next, true
		}
		y = next
	}
	return Number{}, false
}

// PowFraction raises n to a non-negative real exponent. The integer part uses
// Pow; the fractional part uses the binomial series of x^r about 1, which is
// only defined for 0 < n <= 2.
func (n Number) PowFraction(exp Number) (Number, bool) {
	whole, ok := exp.Uint64()
	if !ok {
		return Number{}, false
	}
	fraction, ok := exp.Sub(exp.Floor())
	if !ok {
		return Number{}, false
	}
	wholePow, ok := n.Pow(whole)
	if !ok {
		return Number{}, false
	}
	if fraction.IsZero() {
		return wholePow, true
	}
	fractionPow, ok := n.powApproximation(fraction, maxPowIterations)
	if !ok {
		return Number{}, false
	}
	return wholePow.Mul(fractionPow)
}

// powApproximation sums C(r,k)*(x-1)^k until a term drops below 10^-10.
func (n Number) powApproximation(exp Number, maxIterations int) (Number, bool) {
	if n.Lt(minPowBase) || n.Gt(maxPowBase) {
		return Number{}, false
	}
	if exp.IsZero() {
		return One(), true
	}
	guess := One()
	term := One()
	xMinusOne, xNegative := n.UnsignedSub(One())
	expPlusOne, ok := exp.Add(One())
	if !ok {
		return Number{}, false
	}
	negative := false
	for k := 1; k < maxIterations; k++ {
		kNum := New(uint64(k))
		current, currentNegative := expPlusOne.UnsignedSub(kNum)
		if term, ok = term.Mul(current); !ok {
			return Number{}, false
		}
		if term, ok = term.Mul(xMinusOne); !ok {
			return Number{}, false
		}
		if term, ok = term.Div(kNum); !ok {
			return Number{}, false
		}
		if term.Lt(powTermPrecision) {
			break
		}
		if xNegative {
			negative = !negative
		}
		if currentNegative {
			negative = !negative
		}
		if negative {
			if guess, ok = guess.Sub(term); !ok {
				return Number{}, false
			}
		} else if guess, ok = guess.Add(term); !ok {
			return Number{}, false
		}
	}
	return guess, true
}

// PowFrac returns n^(num/den). Integer ratios are exact; otherwise a starting
// point is refined by Newton on y^den = n^num whenever n^num fits in 256 bits.
// A seeded result is only kept when it brackets the root; otherwise, and when
// n^num overflows, the binomial series inside its domain or exp(log(n)*num/den)
// is used instead.
func (n Number) PowFrac(num, den uint64, seed *Number) (Number, bool) {
	if den == 0 {
		return Number{}, false
	}
	g := gcd(num, den)
	num, den = num/g, den/g
	if den == 1 {
		return n.Pow(num)
	}
	if n.IsZero() || num == 0 {
		if num == 0 {
			return One(), true
		}
		return Number{}, true
	}

	target, fits := n.Pow(num)
	if fits {
		if y, ok := refineSeed(target, den, seed); ok {
			return y, true
		}
	}
	estimate, ok := n.estimatePow(num, den)
	if !ok {
		return Number{}, false
	}
	if !fits {
		return estimate, true
	}
	if refined, ok := newtonRoot(target, den, estimate, RootPrecision); ok {
		return refined, true
	}
	return estimate, true
}

func (n Number) estimatePow(num, den uint64) (Number, bool) {
	if !n.Lt(minPowBase) && !n.Gt(maxPowBase) {
		ratio, ok := FromRatio(num, den)
		if ok {
			if estimate, ok := n.PowFraction(ratio); ok && !estimate.IsZero() {
				return estimate, true
			}
		}
	}
	l, ok := n.Log()
	if !ok {
		return Number{}, false
	}
	scaled, ok := l.Value.MulUint64(num)
	if !ok {
		return Number{}, false
	}
	if scaled, ok = scaled.DivUint64(den); !ok {
		return Number{}, false
	}
	return normalize(SignedNumber{Value: scaled, Negative: l.Negative}).Exp()
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
