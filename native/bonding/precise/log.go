package precise

// Log returns the natural logarithm of n. ok is false for log(0).
//
// n is reduced to 2^k * (1+f) with sqrt(2)/2 <= 1+f <= sqrt(2); log(1+f) is
// evaluated from s = f/(2+f) as f - hfsq + s*(hfsq+R(s^2)) where R is the
// degree-7 minimax polynomial L1..L7.
func (n Number) Log() (SignedNumber, bool) {
	if n.IsZero() {
		return SignedNumber{}, false
	}
	if n.Eq(One()) {
		return SignedNumber{}, true
	}

	x := n.value
	k := int64(0)
	for x.Gt(&sqrt2.value) {
		x.Rsh(&x, 1)
		k++
	}
	for x.Lt(&halfSqrt2.value) {
		x.Lsh(&x, 1)
		k--
	}
	m := Number{value: x}

	f, negative := m.UnsignedSub(One())
	fs := normalize(SignedNumber{Value: f, Negative: negative})

	denominator, ok := fs.Add(Signed(two))
	if !ok {
		return SignedNumber{}, false
	}
	s, ok := fs.Div(denominator)
	if !ok {
		return SignedNumber{}, false
	}
	z, ok := s.Value.Mul(s.Value)
	if !ok {
		return SignedNumber{}, false
	}
	w, ok := z.Mul(z)
	if !ok {
		return SignedNumber{}, false
	}

	// t1 = w*(L2+w*(L4+w*L6)), t2 = z*(L1+w*(L3+w*(L5+w*L7)))
	t1, ok := horner(w, lg6, lg4, lg2)
	if !ok {
		return SignedNumber{}, false
	}
	if t1, ok = t1.Mul(w); !ok {
		return SignedNumber{}, false
	}
	t2, ok := horner(w, lg7, lg5, lg3, lg1)
	if !ok {
		return SignedNumber{}, false
	}
	if t2, ok = t2.Mul(z); !ok {
		return SignedNumber{}, false
	}
	r, ok := t1.Add(t2)
	if !ok {
		return SignedNumber{}, false
	}

	ff, ok := f.Mul(f)
	if !ok {
		return SignedNumber{}, false
	}
	hfsq, ok := ff.Mul(half)
	if !ok {
		return SignedNumber{}, false
	}
	hfsqR, ok := hfsq.Add(r)
	if !ok {
		return SignedNumber{}, false
	}
	correction, ok := s.Mul(Signed(hfsqR))
	if !ok {
		return SignedNumber{}, false
	}
	result, ok := fs.Sub(Signed(hfsq))
	if !ok {
		return SignedNumber{}, false
	}
	if result, ok = result.Add(correction); !ok {
		return SignedNumber{}, false
	}

	if k != 0 {
		abs := k
		if abs < 0 {
			abs = -abs
		}
		kln2, ok := ln2.MulUint64(uint64(abs))
		if !ok {
			return SignedNumber{}, false
		}
		if result, ok = result.Add(normalize(SignedNumber{Value: kln2, Negative: k < 0})); !ok {
			return SignedNumber{}, false
		}
	}
	return result, true
}

// horner evaluates c0 + x*(c1 + x*(c2 + ...)) with coefficients given from the
// innermost outwards.
func horner(x Number, coefficients ...Number) (Number, bool) {
	if len(coefficients) == 0 {
		return Number{}, true
	}
	acc := coefficients[0]
	var ok bool
	for _, c := range coefficients[1:] {
		if acc, ok = acc.Mul(x); !ok {
			return Number{}, false
		}
		if acc, ok = acc.Add(c); !ok {
			return Number{}, false
		}
	}
	return acc, true
}

// Exp returns e^x.
//
// x is reduced to k*ln2 + r with |r| <= ln2/2; exp(r) is 1 + r + r*c/(2-c)
// with c = r - r^2*(P1 + r^2*(P2 + ... + r^2*P5)), then scaled by 2^k.
func (x SignedNumber) Exp() (Number, bool) {
	if x.IsZero() {
		return One(), true
	}

	scaled, ok := x.Value.Mul(invLn2)
	if !ok {
		return Number{}, false
	}
	if scaled, ok = scaled.Add(half); !ok {
		return Number{}, false
	}
	kAbs, ok := scaled.Uint64()
	if !ok {
		return Number{}, false
	}
	if !x.Negative && kAbs > 255 {
		return Number{}, false
	}
	if x.Negative && kAbs > 255 {
		return Number{}, true
	}
	kln2, ok := ln2.MulUint64(kAbs)
	if !ok {
		return Number{}, false
	}
	r, ok := x.Sub(normalize(SignedNumber{Value: kln2, Negative: x.Negative}))
	if !ok {
		return Number{}, false
	}

	rr, ok := r.Value.Mul(r.Value)
	if !ok {
		return Number{}, false
	}
	rr2 := Signed(rr)
	poly := p5
	for _, c := range []SignedNumber{p4, p3, p2, p1} {
		if poly, ok = poly.Mul(rr2); !ok {
			return Number{}, false
		}
		if poly, ok = poly.Add(c); !ok {
			return Number{}, false
		}
	}
	if poly, ok = poly.Mul(rr2); !ok {
		return Number{}, false
	}
	c, ok := r.Sub(poly)
	if !ok {
		return Number{}, false
	}
	twoMinusC, ok := Signed(two).Sub(c)
	if !ok {
		return Number{}, false
	}
	rc, ok := r.Mul(c)
	if !ok {
		return Number{}, false
	}
	quotient, ok := rc.Div(twoMinusC)
	if !ok {
		return Number{}, false
	}
	y, ok := Signed(One()).Add(r)
	if !ok {
		return Number{}, false
	}
	if y, ok = y.Add(quotient); !ok || y.Negative {
		return Number{}, false
	}

	out := y.Value.value
	if x.Negative {
		out.Rsh(&out, uint(kAbs))
		return Number{value: out}, true
	}
	if out.BitLen()+int(kAbs) > 256 {
		return Number{}, false
	}
	out.Lsh(&out, uint(kAbs))
	return Number{value: out}, true
}

// Exp returns e^n for a non-negative n.
func (n Number) Exp() (Number, bool) {
	return Signed(n).Exp()
}
