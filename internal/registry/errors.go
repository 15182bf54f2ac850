package registry

import "errors"

var (
	// Authorization
	ErrUnauthorized = errors.New("caller not authorized")

	// Argument validation
	ErrZeroAddress    = errors.New("zero address")
	ErrUnchangedValue = errors.New("value unchanged")
	ErrInvalidAmount  = errors.New("invalid amount")

	// Whitelist state
	ErrAlreadyWhitelisted    = errors.New("address already whitelisted")
	ErrNotWhitelisted        = errors.New("address not whitelisted")
	ErrBalanceAboveThreshold = errors.New("holder balance above anonymous threshold")
)
