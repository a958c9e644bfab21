package precise

// Minimax constants from fdlibm e_log.c / e_exp.c regenerated at 24 digits.
var (
	ln2Hi = MustParse("0.693147180369123816490")
	ln2Lo = MustParse("0.000000000190821492927058770002")
	ln2   = mustAdd(ln2Hi, ln2Lo)

	invLn2 = MustParse("1.44269504088896338700")
	half   = MustParse("0.5")
	two    = New(2)

	sqrt2     = MustParse("1.414213562373095048801689")
	halfSqrt2 = MustParse("0.707106781186547524400844")

	lg1 = MustParse("0.6666666666666735130")
	lg2 = MustParse("0.3999999999940941908")
	lg3 = MustParse("0.2857142874366239149")
	lg4 = MustParse("0.2222219843214978396")
	lg5 = MustParse("0.1818357216161805012")
	lg6 = MustParse("0.1531383769920937332")
	lg7 = MustParse("0.1479819860511658591")

	p1 = mustParseSigned("0.166666666666666019037")
	p2 = mustParseSigned("-0.00277777777770155933842")
	p3 = mustParseSigned("0.0000661375632143793436117")
	p4 = mustParseSigned("-0.00000165339022054652515390")
	p5 = mustParseSigned("0.0000000413813679705723846039")
)

var (
	// RootPrecision is the agreement between successive Newton iterates at
	// which root finding stops (10^-10).
	RootPrecision = MustParse("0.0000000001")

	// SqrtPrecision is the stopping distance for Sqrt (10^-11).
	SqrtPrecision = MustParse("0.00000000001")

	// powTermPrecision ends the binomial series in PowFraction (10^-10).
	powTermPrecision = RootPrecision

	minPowBase = Number{value: *unitRaw}
	maxPowBase = two
)

const (
	maxRootIterations = 100
	maxPowIterations  = 100
)

func mustAdd(a, b Number) Number {
	sum, ok := a.Add(b)
	if !ok {
		panic("precise: constant overflow")
	}
	return sum
}
