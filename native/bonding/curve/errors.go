package curve

import "errors"

var (
	// ErrInvalidCurve marks a definition that fails validation.
	ErrInvalidCurve = errors.New("curve: invalid curve")
	// ErrArithmetic marks an overflow, underflow or division by zero.
	ErrArithmetic = errors.New("curve: arithmetic error")
	// ErrNotEvaluable marks a zero-state inverse with both b and c set.
	ErrNotEvaluable = errors.New("curve: zero-state inverse not evaluable")
)
