// Package token implements the whitelist-gated fungible token ledger.
// Balances, allowances and total supply move only through checked arithmetic,
// and every balance-changing entry point consults the compliance policy
// before mutating. Total supply equals the sum of all balances at all times.
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/assets"
	"github.com/shizukutanaka/Kifuda/internal/events"
	"github.com/shizukutanaka/Kifuda/internal/exactmath"
	"github.com/shizukutanaka/Kifuda/internal/registry"
)

// Decimals is fixed; amounts are base units scaled by 10^18.
const Decimals = 18

// Ledger is the compliance-gated token ledger.
type Ledger struct {
	name    string
	symbol  string
	account common.Address // the ledger's own identity, used for foreign sweeps

	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int

	policy Policy
	reg    *registry.AdminRegistry

	emitter *events.Emitter
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewLedger creates an empty ledger bound to the admin registry. Name and
// symbol are immutable after construction.
func NewLedger(name, symbol string, account common.Address, reg *registry.AdminRegistry, emitter *events.Emitter, logger *zap.Logger) *Ledger {
	l := &Ledger{
		name:        name,
		symbol:      symbol,
		account:     account,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
		policy:      NewCompliancePolicy(reg),
		reg:         reg,
		emitter:     emitter,
		logger:      logger,
	}
	// De-whitelisting checks real holdings instead of trusting callers.
	reg.SetBalanceSource(l.BalanceOf)
	return l
}

// SetPolicy swaps the compliance gate. Wiring-time only.
func (l *Ledger) SetPolicy(p Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policy = p
}

func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) DecimalCount() uint8     { return Decimals }
func (l *Ledger) Account() common.Address { return l.account }

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns the balance of addr.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

// Allowance returns what spender may move out of owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.allowanceLocked(owner, spender))
}

// Transfer moves amount from the caller to receiver, subject to compliance.
func (l *Ledger) Transfer(caller, to common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer target", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.policy.CheckTransferAllowed(caller, to, amount, l.balanceLocked); err != nil {
		return err
	}
	if err := l.moveLocked(caller, to, amount); err != nil {
		return err
	}

	l.emitter.Emit(events.Transfer{From: caller, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount from sender to receiver on the caller's
// allowance, subject to compliance.
func (l *Ledger) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer target", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining, err := exactmath.Sub(l.allowanceLocked(from, caller), amount)
	if err != nil {
		return fmt.Errorf("%w: spender %s", ErrInsufficientAllowance, caller)
	}
	if err := l.policy.CheckTransferFromAllowed(from, to, amount, l.balanceLocked); err != nil {
		return err
	}
	if err := l.moveLocked(from, to, amount); err != nil {
		return err
	}
	l.setAllowanceLocked(from, caller, remaining)

	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the caller's allowance for spender.
func (l *Ledger) Approve(caller, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: approve", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.setAllowanceLocked(caller, spender, new(big.Int).Set(amount))
	l.emitter.Emit(events.Approval{Owner: caller, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// IncreaseAllowance raises the caller's allowance for spender by delta.
func (l *Ledger) IncreaseAllowance(caller, spender common.Address, delta *big.Int) error {
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	if err := validateAmount(delta); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := exactmath.Add(l.allowanceLocked(caller, spender), delta)
	if err != nil {
		return err
	}
	l.setAllowanceLocked(caller, spender, next)
	l.emitter.Emit(events.Approval{Owner: caller, Spender: spender, Amount: new(big.Int).Set(next)})
	return nil
}

// DecreaseAllowance lowers the caller's allowance for spender by delta.
func (l *Ledger) DecreaseAllowance(caller, spender common.Address, delta *big.Int) error {
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	if err := validateAmount(delta); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := exactmath.Sub(l.allowanceLocked(caller, spender), delta)
	if err != nil {
		return fmt.Errorf("%w: spender %s", ErrInsufficientAllowance, spender)
	}
	l.setAllowanceLocked(caller, spender, next)
	l.emitter.Emit(events.Approval{Owner: caller, Spender: spender, Amount: new(big.Int).Set(next)})
	return nil
}

// Mint credits newly issued units to receiver. Only the registry's configured
// minter may call, and the credit passes the compliance gate.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint target", ErrZeroAddress)
	}
	if caller != l.reg.MinterAddress() {
		return fmt.Errorf("%w: %s", ErrNotMinter, caller)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.policy.CheckMintAllowed(caller, to, amount, l.balanceLocked); err != nil {
		return err
	}

	supply, err := exactmath.Add(l.totalSupply, amount)
	if err != nil {
		return err
	}
	balance, err := exactmath.Add(l.balanceLocked(to), amount)
	if err != nil {
		return err
	}
	l.totalSupply = supply
	l.balances[to] = balance

	l.logger.Debug("Minted",
		zap.Stringer("to", to),
		zap.String("amount", amount.String()),
	)
	l.emitter.Emit(events.Minted{Caller: caller, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn destroys amount from the holder's balance, subject to the burn policy.
func (l *Ledger) Burn(caller, from common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.policy.CheckBurnAllowed(caller, from, amount, l.balanceLocked); err != nil {
		return err
	}

	balance, err := exactmath.Sub(l.balanceLocked(from), amount)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, from)
	}
	supply, err := exactmath.Sub(l.totalSupply, amount)
	if err != nil {
		return err
	}
	l.balances[from] = balance
	l.totalSupply = supply

	l.logger.Debug("Burned",
		zap.Stringer("from", from),
		zap.String("amount", amount.String()),
	)
	l.emitter.Emit(events.Burned{Caller: caller, From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// WithdrawForeign sweeps any balance the ledger's own account holds on a
// foreign asset ledger to the caller. Owner only. An empty foreign balance is
// a no-op.
func (l *Ledger) WithdrawForeign(caller common.Address, foreign assets.Ledger) error {
	if !l.reg.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}

	amount := foreign.BalanceOf(l.account)
	if amount.Sign() == 0 {
		return nil
	}
	if err := foreign.Transfer(l.account, caller, amount); err != nil {
		return err
	}

	l.emitter.Emit(events.ForeignWithdrawn{Caller: caller, Amount: amount})
	return nil
}

// moveLocked debits before crediting so a self-transfer reads the already
// debited balance and nets out to a no-op.
func (l *Ledger) moveLocked(from, to common.Address, amount *big.Int) error {
	fromBalance, err := exactmath.Sub(l.balanceLocked(from), amount)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, from)
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

func (l *Ledger) balanceLocked(addr common.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (l *Ledger) allowanceLocked(owner, spender common.Address) *big.Int {
	if inner, ok := l.allowances[owner]; ok {
		if a, ok := inner[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) setAllowanceLocked(owner, spender common.Address, amount *big.Int) {
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = amount
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w", ErrInvalidAmount)
	}
	return nil
}
