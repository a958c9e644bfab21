package precise

import (
	"testing"

	"github.com/holiman/uint256"
)

func mustNumber(t *testing.T, value string) Number {
	t.Helper()
	n, err := Parse(value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return n
}

func TestOneIsTenToTheTwentyFour(t *testing.T) {
	if got := One().Raw().Dec(); got != "1000000000000000000000000" {
		t.Fatalf("unexpected one: %s", got)
	}
	if got := New(5).String(); got != "5" {
		t.Fatalf("unexpected string: %s", got)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	a := mustNumber(t, "1.5")
	b := mustNumber(t, "2.25")

	sum, ok := a.Add(b)
	if !ok || !sum.Eq(mustNumber(t, "3.75")) {
		t.Fatalf("add: got %v ok=%v", sum, ok)
	}
	if _, ok := a.Sub(b); ok {
		t.Fatalf("expected underflow")
	}
	diff, negative := a.UnsignedSub(b)
	if !negative || !diff.Eq(mustNumber(t, "0.75")) {
		t.Fatalf("unsigned sub: got %v negative=%v", diff, negative)
	}
	product, ok := a.Mul(b)
	if !ok || !product.Eq(mustNumber(t, "3.375")) {
		t.Fatalf("mul: got %v ok=%v", product, ok)
	}
	quotient, ok := b.Div(a)
	if !ok || !quotient.Eq(mustNumber(t, "1.5")) {
		t.Fatalf("div: got %v ok=%v", quotient, ok)
	}
	if _, ok := a.Div(Zero()); ok {
		t.Fatalf("expected division by zero to fail")
	}
}

func TestMulRoundsHalfUp(t *testing.T) {
	ulp := FromRaw(uint256.NewInt(1))
	// 0.5 ulp rounds up to one ulp, just under half rounds down.
	product, ok := ulp.Mul(half)
	if !ok || !product.Eq(ulp) {
		t.Fatalf("expected half ulp to round up, got %s", product.Raw().Dec())
	}
	third := mustNumber(t, "0.333333333333333333333333")
	product, ok = ulp.Mul(third)
	if !ok || !product.IsZero() {
		t.Fatalf("expected third of ulp to round down, got %s", product.Raw().Dec())
	}
}

func TestDivRoundsHalfUp(t *testing.T) {
	got, ok := New(2).Div(New(3))
	if !ok {
		t.Fatalf("div failed")
	}
	if got.Raw().Dec() != "666666666666666666666667" {
		t.Fatalf("unexpected 2/3: %s", got.Raw().Dec())
	}
}

func TestMulOverflowReported(t *testing.T) {
	huge := FromRaw(new(uint256.Int).Lsh(uint256.NewInt(1), 250))
	if _, ok := huge.Mul(huge); ok {
		t.Fatalf("expected overflow")
	}
	if _, ok := huge.Add(huge); !ok {
		t.Fatalf("2^251 should still fit")
	}
	max := FromRaw(new(uint256.Int).SetAllOne())
	if _, ok := max.Add(FromRaw(uint256.NewInt(1))); ok {
		t.Fatalf("expected add overflow")
	}
}

func TestMulDivUsesWideIntermediate(t *testing.T) {
	big := New(1_000_000_000_000_000_000)
	// big*big overflows a plain 256-bit product of scaled values but the
	// quotient fits.
	got, ok := big.MulDiv(big, big)
	if !ok || !got.Eq(big) {
		t.Fatalf("muldiv: got %v ok=%v", got, ok)
	}
}

func TestCommutativeAndAssociativeWithinUlp(t *testing.T) {
	a := mustNumber(t, "1.234567890123456789012345")
	b := mustNumber(t, "9.876543210987654321098765")
	c := mustNumber(t, "0.000000000001234567890123")
	ulp := FromRaw(uint256.NewInt(1))

	ab, _ := a.Mul(b)
	ba, _ := b.Mul(a)
	if !ab.Eq(ba) {
		t.Fatalf("mul not commutative: %v vs %v", ab, ba)
	}
	abc, _ := ab.Mul(c)
	bc, _ := b.Mul(c)
	aBC, _ := a.Mul(bc)
	if !abc.AlmostEq(aBC, ulp) {
		t.Fatalf("mul not associative within one ulp: %v vs %v", abc, aBC)
	}
}

func TestPowInteger(t *testing.T) {
	got, ok := mustNumber(t, "1.5").Pow(3)
	if !ok || !got.Eq(mustNumber(t, "3.375")) {
		t.Fatalf("1.5^3: got %v", got)
	}
	got, ok = New(7).Pow(0)
	if !ok || !got.Eq(One()) {
		t.Fatalf("x^0 should be one, got %v", got)
	}
	if _, ok := New(1_000_000_000).Pow(10); ok {
		t.Fatalf("expected overflow for 1e90")
	}
}

func TestFloorCeil(t *testing.T) {
	x := mustNumber(t, "2.000000000000000000000001")
	if !x.Floor().Eq(New(2)) {
		t.Fatalf("floor: %v", x.Floor())
	}
	ceil, ok := x.Ceil()
	if !ok || !ceil.Eq(New(3)) {
		t.Fatalf("ceil: %v", ceil)
	}
	ceil, ok = New(4).Ceil()
	if !ok || !ceil.Eq(New(4)) {
		t.Fatalf("ceil of integer: %v", ceil)
	}
}

func TestAmountConversions(t *testing.T) {
	n, ok := FromAmount(1_500_000, 6)
	if !ok || !n.Eq(mustNumber(t, "1.5")) {
		t.Fatalf("from amount: %v", n)
	}
	x := mustNumber(t, "1.0000001")
	floor, ok := x.ToAmountFloor(6)
	if !ok || floor != 1_000_000 {
		t.Fatalf("floor amount: %d", floor)
	}
	ceil, ok := x.ToAmountCeil(6)
	if !ok || ceil != 1_000_001 {
		t.Fatalf("ceil amount: %d", ceil)
	}
	if _, ok := FromAmount(1, 30); ok {
		t.Fatalf("expected decimals above 24 to be rejected")
	}
	if _, ok := New(1 << 62).MulUint64(1 << 10); !ok {
		t.Fatalf("unexpected overflow")
	}
	tooBig, _ := New(1 << 62).MulUint64(1 << 10)
	if _, ok := tooBig.ToAmountFloor(0); ok {
		t.Fatalf("expected u64 overflow")
	}
}

func TestAmountFormatting(t *testing.T) {
	if got := FormatAmount(1_500_000, 6); got != "1.5" {
		t.Fatalf("format: %s", got)
	}
	amount, err := ParseAmount("2.25", 6)
	if err != nil || amount != 2_250_000 {
		t.Fatalf("parse amount: %d %v", amount, err)
	}
	if _, err := ParseAmount("0.0000001", 6); err == nil {
		t.Fatalf("expected precision error")
	}
}

func TestSignedArithmetic(t *testing.T) {
	a := Negated(mustNumber(t, "1.5"))
	b := Signed(mustNumber(t, "0.5"))
	sum, ok := a.Add(b)
	if !ok || !sum.Negative || !sum.Value.Eq(One()) {
		t.Fatalf("signed add: %v", sum)
	}
	product, ok := a.Mul(a)
	if !ok || product.Negative || !product.Value.Eq(mustNumber(t, "2.25")) {
		t.Fatalf("signed mul: %v", product)
	}
	zero, ok := a.Sub(a)
	if !ok || zero.Negative || !zero.IsZero() {
		t.Fatalf("expected positive zero, got %v", zero)
	}
}
