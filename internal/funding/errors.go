package funding

import "errors"

var (
	ErrUnauthorized      = errors.New("caller not authorized")
	ErrZeroAddress       = errors.New("zero address")
	ErrZeroAmount        = errors.New("zero amount")
	ErrUnchangedValue    = errors.New("value unchanged")
	ErrMemberExists      = errors.New("member already inserted")
	ErrMemberNotFound    = errors.New("member not inserted")
	ErrMemberDisabled    = errors.New("member not enabled")
	ErrNotEligible       = errors.New("holder not eligible for deposit")
	ErrOwnerWalletNotSet = errors.New("owner wallet not configured or not whitelisted")
	ErrSupplyCapExceeded = errors.New("seed max supply exceeded")
	ErrInsufficientSeed  = errors.New("insufficient seed balance")
)
