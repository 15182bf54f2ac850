// Package assets defines the foreign fungible-asset surface the funding panel
// draws deposits from: the same ledger shape as the compliance-gated token,
// minus the compliance gating.
package assets

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shizukutanaka/Kifuda/internal/exactmath"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Ledger is the external asset contract shape used by the funding panel.
type Ledger interface {
	BalanceOf(addr common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	Approve(owner, spender common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// BasicLedger is an in-process reference implementation of Ledger with
// checked arithmetic and no transfer gating.
type BasicLedger struct {
	name        string
	symbol      string
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int
	mu          sync.RWMutex
}

// NewBasicLedger creates an empty ungated ledger.
func NewBasicLedger(name, symbol string) *BasicLedger {
	return &BasicLedger{
		name:        name,
		symbol:      symbol,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

func (l *BasicLedger) Name() string   { return l.name }
func (l *BasicLedger) Symbol() string { return l.symbol }

func (l *BasicLedger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

func (l *BasicLedger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (l *BasicLedger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if inner, ok := l.allowances[owner]; ok {
		if a, ok := inner[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return big.NewInt(0)
}

// Mint credits newly issued units to addr.
func (l *BasicLedger) Mint(addr common.Address, amount *big.Int) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: mint target", ErrZeroAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: mint", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := exactmath.Add(l.totalSupply, amount)
	if err != nil {
		return err
	}
	balance, err := exactmath.Add(l.balanceLocked(addr), amount)
	if err != nil {
		return err
	}
	l.totalSupply = supply
	l.balances[addr] = balance
	return nil
}

func (l *BasicLedger) Approve(owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: approve", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

func (l *BasicLedger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

func (l *BasicLedger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := big.NewInt(0)
	if inner, ok := l.allowances[from]; ok {
		if a, ok := inner[spender]; ok {
			allowance = a
		}
	}
	remaining, err := exactmath.Sub(allowance, amount)
	if err != nil {
		return fmt.Errorf("%w: %s of %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.transferLocked(from, to, amount); err != nil {
		return err
	}
	if l.allowances[from] == nil {
		l.allowances[from] = make(map[common.Address]*big.Int)
	}
	l.allowances[from][spender] = remaining
	return nil
}

func (l *BasicLedger) transferLocked(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer target", ErrZeroAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer", ErrInvalidAmount)
	}

	// Debit before reading the receiver so self-transfers net to a no-op.
	fromBalance, err := exactmath.Sub(l.balanceLocked(from), amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, l.balanceLocked(from), amount)
	}
	l.balances[from] = fromBalance

	toBalance, err := exactmath.Add(l.balanceLocked(to), amount)
	if err != nil {
		l.balances[from] = new(big.Int).Add(fromBalance, amount)
		return err
	}
	l.balances[to] = toBalance
	return nil
}

func (l *BasicLedger) balanceLocked(addr common.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}
