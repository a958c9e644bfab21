package curve

import (
	"errors"
	"testing"

	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

var tolerance = precise.MustParse("0.0000000001")

func num(t *testing.T, v string) precise.Number {
	t.Helper()
	n, err := precise.Parse(v)
	if err != nil {
		t.Fatalf("parse %s: %v", v, err)
	}
	return n
}

func constant(price uint64) ExponentialCurve {
	return ExponentialCurve{B: precise.New(price), Frac: 1}
}

func linear() ExponentialCurve {
	return ExponentialCurve{C: precise.One(), Pow: 1, Frac: 1}
}

func TestConstantPriceForwardAndInverse(t *testing.T) {
	c := constant(5)
	price, err := c.Price(precise.Zero(), precise.Zero(), precise.New(1), Buy, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.Eq(precise.New(5)) {
		t.Fatalf("expected 5, got %v", price)
	}
	// self-similar form on an established constant curve stays linear
	price, err = c.Price(precise.New(50), precise.New(10), precise.New(3), Buy, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.AlmostEq(precise.New(15), tolerance) {
		t.Fatalf("expected 15, got %v", price)
	}
	out, err := c.ExpectedTargetAmount(precise.Zero(), precise.Zero(), precise.New(5), nil)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	if !out.Eq(precise.One()) {
		t.Fatalf("expected 1, got %v", out)
	}
}

func TestLinearCurveRoundTrip(t *testing.T) {
	c := linear()
	buy, err := c.Price(precise.Zero(), precise.Zero(), precise.New(2), Buy, nil)
	if err != nil {
		t.Fatalf("buy price: %v", err)
	}
	if !buy.AlmostEq(precise.New(2), tolerance) {
		t.Fatalf("expected 2, got %v", buy)
	}
	sell, err := c.Price(precise.New(2), precise.New(2), precise.New(2), Sell, nil)
	if err != nil {
		t.Fatalf("sell price: %v", err)
	}
	if !sell.AlmostEq(buy, tolerance) {
		t.Fatalf("sell %v does not match buy %v", sell, buy)
	}
	more, err := c.Price(precise.New(2), precise.New(2), precise.New(1), Buy, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !more.AlmostEq(num(t, "2.5"), tolerance) {
		t.Fatalf("expected 2.5, got %v", more)
	}
}

func TestLinearInverse(t *testing.T) {
	c := linear()
	out, err := c.ExpectedTargetAmount(precise.Zero(), precise.Zero(), precise.New(2), nil)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	if !out.AlmostEq(precise.New(2), tolerance) {
		t.Fatalf("expected 2, got %v", out)
	}
	out, err = c.ExpectedTargetAmount(precise.New(2), precise.New(2), num(t, "2.5"), nil)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	if !out.AlmostEq(precise.One(), tolerance) {
		t.Fatalf("expected 1, got %v", out)
	}
}

func TestFractionalExponent(t *testing.T) {
	c := ExponentialCurve{C: precise.One(), Pow: 1, Frac: 2}
	price, err := c.Price(precise.Zero(), precise.Zero(), precise.New(4), Buy, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	// 4^1.5 / 1.5
	if !price.AlmostEq(num(t, "5.333333333333333333333333"), tolerance) {
		t.Fatalf("unexpected price %v", price)
	}
	out, err := c.ExpectedTargetAmount(precise.Zero(), precise.Zero(), price, nil)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	if !out.AlmostEq(precise.New(4), tolerance) {
		t.Fatalf("inverse %v, want 4", out)
	}
	seeds := &RootEstimates{Current: nil, Next: ptr(num(t, "3.9"))}
	seeded, err := c.ExpectedTargetAmount(precise.Zero(), precise.Zero(), price, seeds)
	if err != nil {
		t.Fatalf("seeded inverse: %v", err)
	}
	if !seeded.AlmostEq(out, tolerance) {
		t.Fatalf("seeded inverse %v, want %v", seeded, out)
	}
}

func TestMixedZeroStateInverseNotEvaluable(t *testing.T) {
	c := ExponentialCurve{C: precise.One(), B: precise.One(), Pow: 1, Frac: 1}
	_, err := c.ExpectedTargetAmount(precise.Zero(), precise.Zero(), precise.New(1), nil)
	if !errors.Is(err, ErrNotEvaluable) {
		t.Fatalf("expected ErrNotEvaluable, got %v", err)
	}
}

func TestSellPastSupplyFails(t *testing.T) {
	_, err := linear().Price(precise.New(2), precise.New(2), precise.New(3), Sell, nil)
	if !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected arithmetic error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		curve Curve
		ok    bool
	}{
		{"constant", Single(constant(1)), true},
		{"linear", Single(linear()), true},
		{"pow too large", Single(ExponentialCurve{C: precise.One(), Pow: 11, Frac: 1}), false},
		{"frac zero", Single(ExponentialCurve{C: precise.One(), Pow: 1}), false},
		{"frac too large", Single(ExponentialCurve{C: precise.One(), Pow: 1, Frac: 11}), false},
		{"both b and c", Single(ExponentialCurve{C: precise.One(), B: precise.One(), Frac: 1}), false},
		{"neither b nor c", Single(ExponentialCurve{Frac: 1}), false},
		{"empty", Curve{}, false},
		{"first offset", Curve{Definition: Piecewise{Pieces: []TimeCurve{{Offset: 5, Curve: linear()}}}}, false},
		{"decreasing", Curve{Definition: Piecewise{Pieces: []TimeCurve{
			{Offset: 0, Curve: linear()},
			{Offset: 100, Curve: linear()},
			{Offset: 50, Curve: linear()},
		}}}, false},
		{"equal offsets", Curve{Definition: Piecewise{Pieces: []TimeCurve{
			{Offset: 0, Curve: linear()},
			{Offset: 0, Curve: constant(2)},
		}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.curve.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidCurve) {
				t.Fatalf("expected ErrInvalidCurve, got %v", err)
			}
		})
	}
}

func twoPieces() Piecewise {
	return Piecewise{Pieces: []TimeCurve{
		{Offset: 0, Curve: constant(1)},
		{Offset: 100, Curve: constant(2), BuyTransitionFee: &TransitionFee{Percentage: 429496729, Interval: 50}},
	}}
}

func TestPiecewiseSelection(t *testing.T) {
	p := twoPieces()
	for _, tc := range []struct {
		offset int64
		price  uint64
	}{{-5, 1}, {0, 1}, {99, 1}, {100, 2}, {1000, 2}} {
		got, err := p.Price(tc.offset, precise.Zero(), precise.Zero(), precise.One(), Buy, nil)
		if err != nil {
			t.Fatalf("offset %d: %v", tc.offset, err)
		}
		if !got.Eq(precise.New(tc.price)) {
			t.Fatalf("offset %d: price %v, want %d", tc.offset, got, tc.price)
		}
	}
}

func TestTransitionFeeDecay(t *testing.T) {
	p := twoPieces()
	if fee := p.BuyTransitionFee(120); fee != 257698037 {
		t.Fatalf("fee at 120 = %d", fee)
	}
	if fee := p.BuyTransitionFee(100); fee != 429496729 {
		t.Fatalf("fee at activation = %d", fee)
	}
	if fee := p.BuyTransitionFee(150); fee != 0 {
		t.Fatalf("fee after interval = %d", fee)
	}
	if fee := p.BuyTransitionFee(99); fee != 0 {
		t.Fatalf("fee before activation = %d", fee)
	}
	if fee := p.SellTransitionFee(120); fee != 0 {
		t.Fatalf("sell fee = %d", fee)
	}
}

func TestCurveCodec(t *testing.T) {
	original := Curve{Definition: twoPieces()}
	original.Definition.Pieces[0].Curve = ExponentialCurve{C: num(t, "0.000001"), Pow: 3, Frac: 2}
	original.Definition.Pieces[1].SellTransitionFee = &TransitionFee{Percentage: 7, Interval: 9}
	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// tag + count + two pieces of 8+1+16+16+1+1 plus option bytes
	if want := 1 + 4 + (43 + 1 + 1) + (43 + 9 + 9); len(data) != want {
		t.Fatalf("encoded length %d, want %d", len(data), want)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Definition.Pieces) != 2 {
		t.Fatalf("pieces: %d", len(decoded.Definition.Pieces))
	}
	first := decoded.Definition.Pieces[0].Curve.(ExponentialCurve)
	if !first.C.Eq(num(t, "0.000001")) || first.Pow != 3 || first.Frac != 2 {
		t.Fatalf("first piece mismatch: %+v", first)
	}
	second := decoded.Definition.Pieces[1]
	if second.Offset != 100 || *second.BuyTransitionFee != (TransitionFee{429496729, 50}) ||
		*second.SellTransitionFee != (TransitionFee{7, 9}) {
		t.Fatalf("second piece mismatch: %+v", second)
	}
	if _, err := Unmarshal(data[:len(data)-3]); err == nil {
		t.Fatalf("expected truncated payload to fail")
	}
}

func ptr(n precise.Number) *precise.Number { return &n }
