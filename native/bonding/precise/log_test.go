package precise

import (
	"fmt"
	"testing"
)

var elevenDecimals = MustParse("0.00000000001")

func TestLogSpecialCases(t *testing.T) {
	if _, ok := Zero().Log(); ok {
		t.Fatalf("log(0) must fail")
	}
	got, ok := One().Log()
	if !ok || !got.IsZero() {
		t.Fatalf("log(1) must be exactly 0, got %v", got)
	}
}

func TestLogKnownValues(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2", "0.693147180559945309417232"},
		{"10", "2.302585092994045684017991"},
		{"0.5", "-0.693147180559945309417232"},
		{"0.001", "-6.907755278982137052053974"},
		{"1000", "6.907755278982137052053974"},
		{"2.718281828459045235360287", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := mustNumber(t, tc.in).Log()
			if !ok {
				t.Fatalf("log(%s) failed", tc.in)
			}
			want, err := ParseSigned(tc.want)
			if err != nil {
				t.Fatalf("parse want: %v", err)
			}
			if !got.AlmostEq(want, elevenDecimals) {
				t.Fatalf("log(%s) = %v, want %v", tc.in, got, want)
			}
		})
	}
}

func TestExpKnownValues(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "1"},
		{"1", "2.718281828459045235360287"},
		{"-1", "0.367879441171442321595524"},
		{"10", "22026.465794806716516957900645"},
		{"0.5", "1.648721270700128146848650"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			x, err := ParseSigned(tc.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, ok := x.Exp()
			if !ok {
				t.Fatalf("exp(%s) failed", tc.in)
			}
			want := mustNumber(t, tc.want)
			if !got.AlmostEq(want, elevenDecimals) {
				t.Fatalf("exp(%s) = %v, want %v", tc.in, got, want)
			}
		})
	}
}

func TestExpOverflowAndUnderflow(t *testing.T) {
	if _, ok := New(200).Exp(); ok {
		t.Fatalf("exp(200) should overflow")
	}
	tiny, ok := Negated(New(200)).Exp()
	if !ok || !tiny.IsZero() {
		t.Fatalf("exp(-200) should underflow to zero, got %v", tiny)
	}
}

func TestLogOfExpRoundTrip(t *testing.T) {
	for i := -20; i <= 20; i++ {
		// x in [-10, 10] in steps of 0.5
		magnitude, ok := FromRatio(uint64(abs(i)), 2)
		if !ok {
			t.Fatalf("ratio failed")
		}
		x := normalize(SignedNumber{Value: magnitude, Negative: i < 0})
		t.Run(fmt.Sprintf("x=%s", x), func(t *testing.T) {
			e, ok := x.Exp()
			if !ok {
				t.Fatalf("exp failed")
			}
			back, ok := e.Log()
			if !ok {
				t.Fatalf("log failed")
			}
			if !back.AlmostEq(x, elevenDecimals) {
				t.Fatalf("log(exp(%v)) = %v", x, back)
			}
		})
	}
}

func TestExpOfLogRoundTrip(t *testing.T) {
	for _, in := range []string{"0.001", "0.0123", "0.5", "0.99", "1.01", "3", "42.42", "999.999", "1000"} {
		t.Run(in, func(t *testing.T) {
			x := mustNumber(t, in)
			l, ok := x.Log()
			if !ok {
				t.Fatalf("log failed")
			}
			back, ok := l.Exp()
			if !ok {
				t.Fatalf("exp failed")
			}
			if !back.AlmostEq(x, elevenDecimals) {
				t.Fatalf("exp(log(%v)) = %v", x, back)
			}
		})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
