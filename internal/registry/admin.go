// Package registry implements the role-based administration registry: a
// transferable owner capability, four independent role sets split across the
// whitelisting and funding domains, the whitelist ledger with its anonymous
// threshold and per-holder caps, and the minter / owner-wallet pointers.
//
// Lock discipline: the registry never calls into another component while
// holding its own lock. The balance source used by RemoveFromWhitelist is
// read before locking, so the ledger may safely consult the registry from
// under its own lock.
package registry

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
	"github.com/shizukutanaka/Kifuda/internal/exactmath"
)

// Role names as they appear in notification events.
const (
	RoleWLManager       = "wl_manager"
	RoleWLOperator      = "wl_operator"
	RoleFundingManager  = "funding_manager"
	RoleFundingOperator = "funding_operator"
)

type wlEntry struct {
	permitted bool
	maxAmount *big.Int
}

// BalanceSource reports the token balance of an address. The token ledger
// registers itself here so de-whitelisting checks real balances instead of
// trusting caller input.
type BalanceSource func(common.Address) *big.Int

// AdminRegistry is the authorization core: every privileged mutation in the
// token ledger and funding panel resolves the caller through it.
type AdminRegistry struct {
	ownership *Ownership

	roles map[string]map[common.Address]bool

	minter      common.Address
	ownerWallet common.Address

	whitelist map[common.Address]*wlEntry
	wlLength  uint64
	threshold *big.Int

	balanceSource BalanceSource

	emitter *events.Emitter
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewAdminRegistry creates the registry. The creator becomes owner and is
// granted all four roles; the threshold is scaled to base units (x10^18).
func NewAdminRegistry(creator common.Address, threshold *big.Int, emitter *events.Emitter, logger *zap.Logger) (*AdminRegistry, error) {
	ownership, err := NewOwnership(creator, emitter, logger)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		threshold = big.NewInt(0)
	}
	scaled, err := exactmath.Scale18(threshold)
	if err != nil {
		return nil, fmt.Errorf("scaling threshold: %w", err)
	}

	r := &AdminRegistry{
		ownership: ownership,
		roles: map[string]map[common.Address]bool{
			RoleWLManager:       {creator: true},
			RoleWLOperator:      {creator: true},
			RoleFundingManager:  {creator: true},
			RoleFundingOperator: {creator: true},
		},
		whitelist: make(map[common.Address]*wlEntry),
		threshold: scaled,
		emitter:   emitter,
		logger:    logger,
	}

	logger.Info("Admin registry created",
		zap.Stringer("owner", creator),
		zap.String("threshold", scaled.String()),
	)
	return r, nil
}

// Ownership exposes the owner capability.
func (r *AdminRegistry) Ownership() *Ownership { return r.ownership }

// IsOwner reports whether addr holds the owner capability.
func (r *AdminRegistry) IsOwner(addr common.Address) bool { return r.ownership.IsOwner(addr) }

// SetBalanceSource registers the ledger balance lookup used when removing an
// address from the whitelist. Wiring-time only; not a gated operation.
func (r *AdminRegistry) SetBalanceSource(src BalanceSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balanceSource = src
}

// Role queries

func (r *AdminRegistry) IsWLManager(addr common.Address) bool { return r.hasRole(RoleWLManager, addr) }

func (r *AdminRegistry) IsWLOperator(addr common.Address) bool {
	return r.hasRole(RoleWLOperator, addr)
}

func (r *AdminRegistry) IsFundingManager(addr common.Address) bool {
	return r.hasRole(RoleFundingManager, addr)
}

func (r *AdminRegistry) IsFundingOperator(addr common.Address) bool {
	return r.hasRole(RoleFundingOperator, addr)
}

func (r *AdminRegistry) hasRole(role string, addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[role][addr]
}

// Role mutation. Grants and revokes are idempotent: repeating one leaves the
// membership set unchanged and is not an error.

// AddWLManagers grants the whitelist Manager role. Manager implies Operator,
// so the Operator role is granted alongside. Owner only.
func (r *AdminRegistry) AddWLManagers(caller, account common.Address) error {
	if !r.ownership.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	r.grant(caller, account, RoleWLManager)
	r.grant(caller, account, RoleWLOperator)
	return nil
}

// RemoveWLManagers revokes the whitelist Manager role and the Operator role
// it implied. Owner only.
func (r *AdminRegistry) RemoveWLManagers(caller, account common.Address) error {
	if !r.ownership.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	r.revoke(caller, account, RoleWLManager)
	r.revoke(caller, account, RoleWLOperator)
	return nil
}

// AddWLOperators grants the whitelist Operator role. WL-Manager only.
func (r *AdminRegistry) AddWLOperators(caller, account common.Address) error {
	if !r.IsWLManager(caller) {
		return fmt.Errorf("%w: whitelist manager required", ErrUnauthorized)
	}
	r.grant(caller, account, RoleWLOperator)
	return nil
}

// RemoveWLOperators revokes the whitelist Operator role. WL-Manager only.
func (r *AdminRegistry) RemoveWLOperators(caller, account common.Address) error {
	if !r.IsWLManager(caller) {
		return fmt.Errorf("%w: whitelist manager required", ErrUnauthorized)
	}
	r.revoke(caller, account, RoleWLOperator)
	return nil
}

// AddFundingManagers grants the funding Manager role plus the Operator role
// it implies. Owner only.
func (r *AdminRegistry) AddFundingManagers(caller, account common.Address) error {
	if !r.ownership.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	r.grant(caller, account, RoleFundingManager)
	r.grant(caller, account, RoleFundingOperator)
	return nil
}

// RemoveFundingManagers revokes the funding Manager role and the Operator
// role it implied. Owner only.
func (r *AdminRegistry) RemoveFundingManagers(caller, account common.Address) error {
	if !r.ownership.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	r.revoke(caller, account, RoleFundingManager)
	r.revoke(caller, account, RoleFundingOperator)
	return nil
}

// AddFundingOperators grants the funding Operator role. Funding-Manager only.
func (r *AdminRegistry) AddFundingOperators(caller, account common.Address) error {
	if !r.IsFundingManager(caller) {
		return fmt.Errorf("%w: funding manager required", ErrUnauthorized)
	}
	r.grant(caller, account, RoleFundingOperator)
	return nil
}

// RemoveFundingOperators revokes the funding Operator role. Funding-Manager only.
func (r *AdminRegistry) RemoveFundingOperators(caller, account common.Address) error {
	if !r.IsFundingManager(caller) {
		return fmt.Errorf("%w: funding manager required", ErrUnauthorized)
	}
	r.revoke(caller, account, RoleFundingOperator)
	return nil
}

// Self-renounce operations: a holder may drop their own membership in a tier.

func (r *AdminRegistry) RenounceWLManager(caller common.Address) error {
	return r.renounce(caller, RoleWLManager)
}

func (r *AdminRegistry) RenounceWLOperator(caller common.Address) error {
	return r.renounce(caller, RoleWLOperator)
}

func (r *AdminRegistry) RenounceFundingManager(caller common.Address) error {
	return r.renounce(caller, RoleFundingManager)
}

func (r *AdminRegistry) RenounceFundingOperator(caller common.Address) error {
	return r.renounce(caller, RoleFundingOperator)
}

func (r *AdminRegistry) renounce(caller common.Address, role string) error {
	if !r.hasRole(role, caller) {
		return fmt.Errorf("%w: renouncing a role requires holding it", ErrUnauthorized)
	}
	r.revoke(caller, caller, role)
	return nil
}

func (r *AdminRegistry) grant(caller, account common.Address, role string) {
	r.mu.Lock()
	changed := !r.roles[role][account]
	r.roles[role][account] = true
	r.mu.Unlock()

	if changed {
		r.emitter.Emit(events.RoleGranted{Caller: caller, Account: account, Role: role})
	}
}

func (r *AdminRegistry) revoke(caller, account common.Address, role string) {
	r.mu.Lock()
	changed := r.roles[role][account]
	delete(r.roles[role], account)
	r.mu.Unlock()

	if changed {
		r.emitter.Emit(events.RoleRevoked{Caller: caller, Account: account, Role: role})
	}
}

// Pointer fields

// MinterAddress returns the address allowed to mint on the token ledger.
func (r *AdminRegistry) MinterAddress() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minter
}

// SetMinterAddress replaces the minter pointer. Owner only; the new address
// must be non-zero and differ from the current value.
func (r *AdminRegistry) SetMinterAddress(caller, addr common.Address) error {
	if !r.ownership.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if addr == (common.Address{}) {
		return fmt.Errorf("%w: minter", ErrZeroAddress)
	}
	if addr == r.minter {
		return fmt.Errorf("%w: minter", ErrUnchangedValue)
	}

	previous := r.minter
	r.minter = addr
	r.emitter.Emit(events.MinterChanged{Caller: caller, Previous: previous, New: addr})
	return nil
}

// OwnerWallet returns the payout wallet receiving on-top mints.
func (r *AdminRegistry) OwnerWallet() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerWallet
}

// SetOwnerWallet replaces the payout wallet pointer. Owner only; same
// validation shape as the minter pointer.
func (r *AdminRegistry) SetOwnerWallet(caller, addr common.Address) error {
	if !r.ownership.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if addr == (common.Address{}) {
		return fmt.Errorf("%w: owner wallet", ErrZeroAddress)
	}
	if addr == r.ownerWallet {
		return fmt.Errorf("%w: owner wallet", ErrUnchangedValue)
	}

	previous := r.ownerWallet
	r.ownerWallet = addr
	r.emitter.Emit(events.OwnerWalletChanged{Caller: caller, Previous: previous, New: addr})
	return nil
}
