package ledger

import "errors"

// Ledger errors. Every error aborts the enclosing transaction.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already in use")
	ErrInsufficientLamports = errors.New("insufficient lamports")
	ErrInsufficientBalance  = errors.New("insufficient token balance")
	ErrOwnerMismatch        = errors.New("owner does not match")
	ErrMintMismatch         = errors.New("account not associated with this mint")
	ErrDecimalsMismatch     = errors.New("mint decimals mismatch")
	ErrMissingSignature     = errors.New("missing required signature")
	ErrFrozen               = errors.New("account is frozen")
	ErrInvalidAccountOwner  = errors.New("invalid account owner")
	ErrInvalidAccountData   = errors.New("invalid account data")
	ErrProgramNotFound      = errors.New("program not found")
	ErrMissingAccount       = errors.New("account not passed to instruction")
	ErrReadonlyAccount      = errors.New("account is not writable")
	ErrCallDepth            = errors.New("max invocation depth exceeded")
	ErrOverflow             = errors.New("operation overflowed")
)

// ProgramError is implemented by program errors that carry a custom error code.
type ProgramError interface {
	error
	ProgramErrorCode() uint32
}

// CustomErrorCode extracts the custom code from a program failure, if any.
func CustomErrorCode(err error) (uint32, bool) {
	return customCode(err)
}

func customCode(err error) (uint32, bool) {
	var pe ProgramError
	if errors.As(err, &pe) {
		return pe.ProgramErrorCode(), true
	}
	return 0, false
}
