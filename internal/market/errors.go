package market

import "errors"

// Error kinds shared across markets and the broker. Operations wrap
// these with fmt.Errorf("...: %w", ...) so callers can match with
// errors.Is while surfacing the failing operation.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPrecondition        = errors.New("precondition violation")
	ErrHealthFactor        = errors.New("health factor breach")
	ErrData                = errors.New("data error")
	ErrArithmetic          = errors.New("arithmetic error")
)
