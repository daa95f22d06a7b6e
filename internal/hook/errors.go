package hook

import (
	"errors"
	"fmt"
)

// Error is a hook failure with a stable custom program error code.
type Error struct {
	code uint32
	name string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the custom program error code.
func (e *Error) Code() uint32 { return e.code }

// Name returns the error kind, e.g. "AccountMismatch".
func (e *Error) Name() string { return e.name }

// ProgramErrorCode lets the ledger report the code in transaction logs.
func (e *Error) ProgramErrorCode() uint32 { return e.code }

// errorCodeOffset is where custom program error codes start.
const errorCodeOffset = 6000

func newError(offset uint32, name, msg string) *Error {
	e := &Error{code: errorCodeOffset + offset, name: name, msg: msg}
	errorsByCode[e.code] = e
	return e
}

var errorsByCode = map[uint32]*Error{}

// Hook errors. Any of them aborts the enclosing transfer.
var (
	ErrNotInitialized     = newError(0, "NotInitialized", "extra account meta list not initialized")
	ErrAlreadyInitialized = newError(1, "AlreadyInitialized", "extra account meta list already initialized")
	ErrInvalidMint        = newError(2, "InvalidMint", "mint is not bound to this transfer hook")
	ErrAccountMismatch    = newError(3, "AccountMismatch", "account mismatch")
	ErrUnauthorized       = newError(4, "Unauthorized", "hook not invoked by a token transfer")
	ErrArithmeticOverflow = newError(5, "ArithmeticOverflow", "arithmetic overflow")
	ErrBurnFailed         = newError(6, "BurnFailed", "fee burn failed")
	ErrInsufficientFunds  = newError(7, "InsufficientFunds", "insufficient funds for rent")
	ErrInvalidInstruction = newError(8, "InvalidInstruction", "invalid instruction data")
)

// Code returns the custom code of the first hook error in err's chain.
func Code(err error) (uint32, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.code, true
	}
	return 0, false
}

// ErrorFromCode maps a custom program error code back to its sentinel.
// Returns nil for unknown codes.
func ErrorFromCode(code uint32) error {
	if e, ok := errorsByCode[code]; ok {
		return e
	}
	return nil
}

// Kind names the hook error in err's chain, "Unknown" otherwise.
func Kind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.name
	}
	return "Unknown"
}

func mismatch(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAccountMismatch, fmt.Sprintf(format, args...))
}
