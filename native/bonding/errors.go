package bonding

import (
	"errors"
	"fmt"

	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
)

var errNilState = errors.New("bonding engine: state not configured")

// Code identifies one diagnostic in the error taxonomy. Values are stable and
// surfaced verbatim to callers.
type Code uint32

const (
	CodeArithmetic Code = iota + 6000
	CodeInvalidCurve
	CodeInvalidMint
	CodeInvalidPad
	CodeNotLive
	CodeBuyFrozen
	CodeSellDisabled
	CodePriceTooHigh
	CodePriceTooLow
	CodePassedMintCap
	CodeOverPurchaseCap
	CodeNoAuthority
	CodeInvalidAuthority
	CodeNativeNotAllowed
	CodeIgnoreFlagUnsupportedInLegacy
	CodeReservesNotEmpty
	CodeSupplyNotEmpty
	CodeNotFound
	CodeAlreadyExists
	CodeInvalidArgs
)

var codeNames = map[Code]string{
	CodeArithmetic:                    "Arithmetic",
	CodeInvalidCurve:                  "InvalidCurve",
	CodeInvalidMint:                   "InvalidMint",
	CodeInvalidPad:                    "InvalidPad",
	CodeNotLive:                       "NotLive",
	CodeBuyFrozen:                     "BuyFrozen",
	CodeSellDisabled:                  "SellDisabled",
	CodePriceTooHigh:                  "PriceTooHigh",
	CodePriceTooLow:                   "PriceTooLow",
	CodePassedMintCap:                 "PassedMintCap",
	CodeOverPurchaseCap:               "OverPurchaseCap",
	CodeNoAuthority:                   "NoAuthority",
	CodeInvalidAuthority:              "InvalidAuthority",
	CodeNativeNotAllowed:              "NativeNotAllowed",
	CodeIgnoreFlagUnsupportedInLegacy: "IgnoreFlagUnsupportedInLegacy",
	CodeReservesNotEmpty:              "ReservesNotEmpty",
	CodeSupplyNotEmpty:                "SupplyNotEmpty",
	CodeNotFound:                      "NotFound",
	CodeAlreadyExists:                 "AlreadyExists",
	CodeInvalidArgs:                   "InvalidArgs",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is a coded engine failure. Errors with equal codes match under
// errors.Is regardless of detail.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "bonding: " + e.Code.String()
	}
	return fmt.Sprintf("bonding: %s: %s", e.Code, e.Detail)
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrArithmetic                    = &Error{Code: CodeArithmetic}
	ErrInvalidCurve                  = &Error{Code: CodeInvalidCurve}
	ErrInvalidMint                   = &Error{Code: CodeInvalidMint}
	ErrInvalidPad                    = &Error{Code: CodeInvalidPad}
	ErrNotLive                       = &Error{Code: CodeNotLive}
	ErrBuyFrozen                     = &Error{Code: CodeBuyFrozen}
	ErrSellDisabled                  = &Error{Code: CodeSellDisabled}
	ErrPriceTooHigh                  = &Error{Code: CodePriceTooHigh}
	ErrPriceTooLow                   = &Error{Code: CodePriceTooLow}
	ErrPassedMintCap                 = &Error{Code: CodePassedMintCap}
	ErrOverPurchaseCap               = &Error{Code: CodeOverPurchaseCap}
	ErrNoAuthority                   = &Error{Code: CodeNoAuthority}
	ErrInvalidAuthority              = &Error{Code: CodeInvalidAuthority}
	ErrNativeNotAllowed              = &Error{Code: CodeNativeNotAllowed}
	ErrIgnoreFlagUnsupportedInLegacy = &Error{Code: CodeIgnoreFlagUnsupportedInLegacy}
	ErrReservesNotEmpty              = &Error{Code: CodeReservesNotEmpty}
	ErrSupplyNotEmpty                = &Error{Code: CodeSupplyNotEmpty}
	ErrNotFound                      = &Error{Code: CodeNotFound}
	ErrAlreadyExists                 = &Error{Code: CodeAlreadyExists}
	ErrInvalidArgs                   = &Error{Code: CodeInvalidArgs}
)

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func arithmetic(what string) *Error { return newError(CodeArithmetic, "%s", what) }

// CodeOf extracts the diagnostic code of err, if any.
func CodeOf(err error) (Code, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code, true
	}
	return 0, false
}

// fromCurve maps curve library failures into the engine taxonomy.
func fromCurve(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, curve.ErrInvalidCurve), errors.Is(err, curve.ErrNotEvaluable):
		return newError(CodeInvalidCurve, "%v", err)
	case errors.Is(err, curve.ErrArithmetic):
		return newError(CodeArithmetic, "%v", err)
	default:
		return err
	}
}
