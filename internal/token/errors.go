package token

import "errors"

var (
	ErrUnauthorized          = errors.New("caller not authorized")
	ErrNotMinter             = errors.New("caller is not the configured minter")
	ErrZeroAddress           = errors.New("zero address")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrTransferNotAllowed    = errors.New("transfer not allowed by compliance policy")
	ErrBurnNotAllowed        = errors.New("burn not allowed by compliance policy")
	ErrMintNotAllowed        = errors.New("mint not allowed by compliance policy")
)
