package registry

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

// IsWhitelisted reports whether addr is currently permitted.
func (r *AdminRegistry) IsWhitelisted(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.whitelist[addr]
	return ok && entry.permitted
}

// WLThresholdBalance returns the global anonymous threshold in base units.
func (r *AdminRegistry) WLThresholdBalance() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.threshold)
}

// MaxWLAmount returns the personal cap of addr, zero if not whitelisted.
func (r *AdminRegistry) MaxWLAmount(addr common.Address) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.whitelist[addr]; ok && entry.permitted {
		return new(big.Int).Set(entry.maxAmount)
	}
	return big.NewInt(0)
}

// WLLength returns the count of currently permitted entries.
func (r *AdminRegistry) WLLength() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.wlLength
}

// SetNewThreshold replaces the anonymous threshold. WL-Manager only; the new
// value must differ from the current one.
func (r *AdminRegistry) SetNewThreshold(caller common.Address, newThreshold *big.Int) error {
	if !r.IsWLManager(caller) {
		return fmt.Errorf("%w: whitelist manager required", ErrUnauthorized)
	}
	if newThreshold == nil || newThreshold.Sign() < 0 {
		return fmt.Errorf("%w: threshold", ErrInvalidAmount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if newThreshold.Cmp(r.threshold) == 0 {
		return fmt.Errorf("%w: threshold", ErrUnchangedValue)
	}

	previous := r.threshold
	r.threshold = new(big.Int).Set(newThreshold)

	r.logger.Info("Anonymous threshold changed",
		zap.String("previous", previous.String()),
		zap.String("new", newThreshold.String()),
	)
	r.emitter.Emit(events.ThresholdChanged{Caller: caller, Previous: previous, New: new(big.Int).Set(newThreshold)})
	return nil
}

// ChangeMaxWLAmount replaces the personal cap of a whitelisted address.
// WL-Operator only.
func (r *AdminRegistry) ChangeMaxWLAmount(caller, addr common.Address, newMax *big.Int) error {
	if !r.IsWLOperator(caller) {
		return fmt.Errorf("%w: whitelist operator required", ErrUnauthorized)
	}
	if newMax == nil || newMax.Sign() < 0 {
		return fmt.Errorf("%w: max amount", ErrInvalidAmount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.whitelist[addr]
	if !ok || !entry.permitted {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, addr)
	}

	previous := entry.maxAmount
	entry.maxAmount = new(big.Int).Set(newMax)

	r.emitter.Emit(events.MaxAmountChanged{
		Caller:   caller,
		Account:  addr,
		Previous: previous,
		New:      new(big.Int).Set(newMax),
	})
	return nil
}

// AddToWhitelist permits addr with a personal cap. WL-Operator only; the
// address must be non-zero and not already permitted.
func (r *AdminRegistry) AddToWhitelist(caller, addr common.Address, maxAmount *big.Int) error {
	if !r.IsWLOperator(caller) {
		return fmt.Errorf("%w: whitelist operator required", ErrUnauthorized)
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: whitelist entry", ErrZeroAddress)
	}
	if maxAmount == nil {
		maxAmount = big.NewInt(0)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.whitelist[addr]; ok && entry.permitted {
		return fmt.Errorf("%w: %s", ErrAlreadyWhitelisted, addr)
	}

	r.wlLength++
	r.whitelist[addr] = &wlEntry{permitted: true, maxAmount: new(big.Int).Set(maxAmount)}

	r.logger.Info("Address whitelisted",
		zap.Stringer("account", addr),
		zap.String("max_amount", maxAmount.String()),
	)
	r.emitter.Emit(events.WhitelistAdded{Caller: caller, Account: addr, MaxAmount: new(big.Int).Set(maxAmount)})
	return nil
}

// RemoveFromWhitelist clears the entry of addr. WL-Operator only. The
// holder's current balance, read from the registered balance source, must not
// exceed the anonymous threshold: de-listing an over-threshold holder would
// leave them holding unboundedly with no enforcement.
func (r *AdminRegistry) RemoveFromWhitelist(caller, addr common.Address) error {
	if !r.IsWLOperator(caller) {
		return fmt.Errorf("%w: whitelist operator required", ErrUnauthorized)
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: whitelist entry", ErrZeroAddress)
	}

	// Read the balance before taking the registry lock; the source reaches
	// into the token ledger and the ledger locks registry-after-ledger.
	balance := big.NewInt(0)
	r.mu.RLock()
	src := r.balanceSource
	r.mu.RUnlock()
	if src != nil {
		if b := src(addr); b != nil {
			balance = b
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.whitelist[addr]
	if !ok || !entry.permitted {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, addr)
	}
	if balance.Cmp(r.threshold) > 0 {
		return fmt.Errorf("%w: balance %s, threshold %s", ErrBalanceAboveThreshold, balance, r.threshold)
	}

	r.wlLength--
	delete(r.whitelist, addr)

	r.logger.Info("Address removed from whitelist", zap.Stringer("account", addr))
	r.emitter.Emit(events.WhitelistRemoved{Caller: caller, Account: addr})
	return nil
}
