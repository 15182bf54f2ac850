// Package funding implements the funding panel: a member registry and an
// exchange engine that converts deposits of an external seed asset into
// minted token units, with a bonus mint to the configured owner wallet and a
// hard cap on the seed the panel may accumulate.
//
// Lock discipline: the panel may call into the token ledger and the admin
// registry, but never the reverse, so panel -> ledger -> registry is the only
// lock order in the system.
package funding

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
	"github.com/shizukutanaka/Kifuda/internal/token"
)

// Params fixes the panel's construction-time values.
type Params struct {
	Account           common.Address // the panel's own asset account
	DocURL            string
	DocHash           string
	ExchangeRateSeed  *big.Int
	ExchangeRateOnTop *big.Int
	ExchRateDecimals  uint
	SeedMaxSupply     *big.Int // whole tokens; scaled x10^18 at construction
	DeployBlock       uint64   // informational creation marker
}

// Panel is the funding/exchange component.
type Panel struct {
	account common.Address
	docURL  string
	docHash string

	exchangeRateSeed  *big.Int
	exchangeRateOnTop *big.Int
	exchRateDecimals  uint
	seedMaxSupply     *big.Int
	deployBlock       uint64

	totalRaised *big.Int

	members    map[common.Address]*Member
	memberList []common.Address

	reg  *registry.AdminRegistry
	tok  *token.Ledger
	seed assets.Ledger

	emitter *events.Emitter
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewPanel creates the panel linked to the registry, token ledger and
// external seed asset ledger.
func NewPanel(params Params, reg *registry.AdminRegistry, tok *token.Ledger, seed assets.Ledger, emitter *events.Emitter, logger *zap.Logger) (*Panel, error) {
	if params.Account == (common.Address{}) {
		return nil, fmt.Errorf("%w: panel account", ErrZeroAddress)
	}
	if params.ExchangeRateSeed == nil || params.ExchangeRateOnTop == nil || params.SeedMaxSupply == nil {
		return nil, fmt.Errorf("%w: exchange parameters", ErrZeroAmount)
	}

	maxSupply, err := exactmath.Scale18(params.SeedMaxSupply)
	if err != nil {
		return nil, fmt.Errorf("scaling seed max supply: %w", err)
	}

	p := &Panel{
		account:           params.Account,
		docURL:            params.DocURL,
		docHash:           params.DocHash,
		exchangeRateSeed:  new(big.Int).Set(params.ExchangeRateSeed),
		exchangeRateOnTop: new(big.Int).Set(params.ExchangeRateOnTop),
		exchRateDecimals:  params.ExchRateDecimals,
		seedMaxSupply:     maxSupply,
		deployBlock:       params.DeployBlock,
		totalRaised:       big.NewInt(0),
		members:           make(map[common.Address]*Member),
		reg:               reg,
		tok:               tok,
		seed:              seed,
		emitter:           emitter,
		logger:            logger,
	}

	logger.Info("Funding panel created",
		zap.Stringer("account", params.Account),
		zap.String("seed_max_supply", maxSupply.String()),
		zap.Uint64("deploy_block", params.DeployBlock),
	)
	return p, nil
}

// Account returns the panel's own asset account address.
func (p *Panel) Account() common.Address { return p.account }

// DocURL returns the immutable document URL fixed at construction.
func (p *Panel) DocURL() string { return p.docURL }

// DocHash returns the immutable document hash fixed at construction.
func (p *Panel) DocHash() string { return p.docHash }

// DeployBlock returns the creation-time ordering marker.
func (p *Panel) DeployBlock() uint64 { return p.deployBlock }

func (p *Panel) ExchangeRateSeed() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.exchangeRateSeed)
}

func (p *Panel) ExchangeRateOnTop() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.exchangeRateOnTop)
}

func (p *Panel) ExchRateDecimals() uint { return p.exchRateDecimals }

func (p *Panel) SeedMaxSupply() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.seedMaxSupply)
}

// TotalRaised returns the cumulative seed deposited across all holders.
func (p *Panel) TotalRaised() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.totalRaised)
}

// SeedBalance returns what the panel currently holds on the seed ledger.
func (p *Panel) SeedBalance() *big.Int {
	return p.seed.BalanceOf(p.account)
}

// TokenExchangeAmount converts a seed amount to token units:
// amount * exchangeRateSeed / 10^exchRateDecimals, truncating.
func (p *Panel) TokenExchangeAmount(amount *big.Int) (*big.Int, error) {
	p.mu.RLock()
	rate := new(big.Int).Set(p.exchangeRateSeed)
	p.mu.RUnlock()
	return p.exchange(amount, rate)
}

// TokenExchangeAmountOnTop converts a seed amount to the bonus token units
// minted to the owner wallet, using the on-top rate.
func (p *Panel) TokenExchangeAmountOnTop(amount *big.Int) (*big.Int, error) {
	p.mu.RLock()
	rate := new(big.Int).Set(p.exchangeRateOnTop)
	p.mu.RUnlock()
	return p.exchange(amount, rate)
}

func (p *Panel) exchange(amount, rate *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: exchange input", ErrZeroAmount)
	}
	scaled, err := exactmath.Mul(amount, rate)
	if err != nil {
		return nil, err
	}
	return exactmath.Div(scaled, exactmath.Pow10(p.exchRateDecimals))
}

// HolderSendSeeds accepts a seed deposit from caller: the equivalent token
// amount is minted to the caller and the on-top bonus to the owner wallet,
// after every eligibility, cap and supply check passes. The seed is pulled
// via TransferFrom, so the caller must have approved the panel's account
// first. Any failed sub-step unwinds all prior effects of the call.
func (p *Panel) HolderSendSeeds(caller common.Address, seedAmount *big.Int) error {
	if seedAmount == nil || seedAmount.Sign() <= 0 {
		return fmt.Errorf("%w: seed deposit", ErrZeroAmount)
	}

	tokenAmount, err := p.TokenExchangeAmount(seedAmount)
	if err != nil {
		return err
	}
	bonusAmount, err := p.TokenExchangeAmountOnTop(seedAmount)
	if err != nil {
		return err
	}

	// Eligibility: whitelisted, and the resulting balance within the personal
	// cap or the anonymous threshold.
	if !p.reg.IsWhitelisted(caller) {
		return fmt.Errorf("%w: %s not whitelisted", ErrNotEligible, caller)
	}
	newBalance, err := exactmath.Add(p.tok.BalanceOf(caller), tokenAmount)
	if err != nil {
		return err
	}
	withinCap := newBalance.Cmp(p.reg.MaxWLAmount(caller)) <= 0
	withinThreshold := newBalance.Cmp(p.reg.WLThresholdBalance()) <= 0
	if !withinCap && !withinThreshold {
		return fmt.Errorf("%w: %s would hold %s", ErrNotEligible, caller, newBalance)
	}

	ownerWallet := p.reg.OwnerWallet()
	if ownerWallet == (common.Address{}) || !p.reg.IsWhitelisted(ownerWallet) {
		return ErrOwnerWalletNotSet
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Supply cap: the panel's held seed must stay within seedMaxSupply both
	// before and after the deposit.
	held := p.seed.BalanceOf(p.account)
	if held.Cmp(p.seedMaxSupply) > 0 {
		return fmt.Errorf("%w: held %s", ErrSupplyCapExceeded, held)
	}
	heldAfter, err := exactmath.Add(held, seedAmount)
	if err != nil {
		return err
	}
	if heldAfter.Cmp(p.seedMaxSupply) > 0 {
		return fmt.Errorf("%w: deposit would hold %s of %s", ErrSupplyCapExceeded, heldAfter, p.seedMaxSupply)
	}

	if p.seed.BalanceOf(caller).Cmp(seedAmount) < 0 {
		return fmt.Errorf("%w: holder %s", ErrInsufficientSeed, caller)
	}

	// Execute: pull seed, mint to holder, mint bonus. Later failures unwind
	// earlier steps so the call is all-or-nothing.
	if err := p.seed.TransferFrom(p.account, caller, p.account, seedAmount); err != nil {
		return err
	}
	if err := p.tok.Mint(p.account, caller, tokenAmount); err != nil {
		if rbErr := p.seed.Transfer(p.account, caller, seedAmount); rbErr != nil {
			p.logger.Error("Seed refund failed after mint rejection", zap.Error(rbErr))
		}
		return err
	}
	if err := p.tok.Mint(p.account, ownerWallet, bonusAmount); err != nil {
		if rbErr := p.tok.Burn(p.account, caller, tokenAmount); rbErr != nil {
			p.logger.Error("Token unwind failed after bonus mint rejection", zap.Error(rbErr))
		}
		if rbErr := p.seed.Transfer(p.account, caller, seedAmount); rbErr != nil {
			p.logger.Error("Seed refund failed after bonus mint rejection", zap.Error(rbErr))
		}
		return err
	}

	p.totalRaised.Add(p.totalRaised, seedAmount)

	p.logger.Info("Seed deposit accepted",
		zap.Stringer("holder", caller),
		zap.String("seed", seedAmount.String()),
		zap.String("tokens", tokenAmount.String()),
		zap.String("bonus", bonusAmount.String()),
	)
	p.emitter.Emit(events.SeedsDeposited{
		Holder:      caller,
		SeedAmount:  new(big.Int).Set(seedAmount),
		TokenAmount: tokenAmount,
		BonusAmount: bonusAmount,
	})
	return nil
}

// UnlockFunds releases held seed to an inserted-and-enabled member.
// Funding-Operator only.
func (p *Panel) UnlockFunds(caller, member common.Address, amount *big.Int) error {
	if !p.reg.IsFundingOperator(caller) {
		return fmt.Errorf("%w: funding operator required", ErrUnauthorized)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: unlock", ErrZeroAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.activeMemberLocked(member); err != nil {
		return err
	}
	if p.seed.BalanceOf(p.account).Cmp(amount) < 0 {
		return fmt.Errorf("%w: panel holds %s", ErrInsufficientSeed, p.seed.BalanceOf(p.account))
	}
	if err := p.seed.Transfer(p.account, member, amount); err != nil {
		return err
	}

	p.logger.Info("Funds unlocked",
		zap.Stringer("member", member),
		zap.String("amount", amount.String()),
	)
	p.emitter.Emit(events.FundsUnlocked{Caller: caller, Member: member, Amount: new(big.Int).Set(amount)})
	return nil
}

// SetNewSeedMaxSupply replaces the supply cap. Owner only.
func (p *Panel) SetNewSeedMaxSupply(caller common.Address, newSupply *big.Int) error {
	if !p.reg.IsOwner(caller) {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	if newSupply == nil || newSupply.Sign() < 0 {
		return fmt.Errorf("%w: seed max supply", ErrZeroAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	previous := p.seedMaxSupply
	p.seedMaxSupply = new(big.Int).Set(newSupply)

	p.emitter.Emit(events.SeedMaxSupplyChanged{Caller: caller, Previous: previous, New: new(big.Int).Set(newSupply)})
	return nil
}

// SetExchangeRateSeed replaces the seed exchange rate. Funding-Manager only;
// the new rate must differ from the current one.
func (p *Panel) SetExchangeRateSeed(caller common.Address, rate *big.Int) error {
	return p.setRate(caller, rate, "seed")
}

// SetExchangeRateOnTop replaces the on-top bonus rate. Funding-Manager only;
// the new rate must differ from the current one.
func (p *Panel) SetExchangeRateOnTop(caller common.Address, rate *big.Int) error {
	return p.setRate(caller, rate, "on_top")
}

func (p *Panel) setRate(caller common.Address, rate *big.Int, which string) error {
	if !p.reg.IsFundingManager(caller) {
		return fmt.Errorf("%w: funding manager required", ErrUnauthorized)
	}
	if rate == nil || rate.Sign() < 0 {
		return fmt.Errorf("%w: exchange rate", ErrZeroAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := &p.exchangeRateSeed
	if which == "on_top" {
		target = &p.exchangeRateOnTop
	}
	if rate.Cmp(*target) == 0 {
		return fmt.Errorf("%w: exchange rate", ErrUnchangedValue)
	}

	previous := *target
	*target = new(big.Int).Set(rate)

	p.emitter.Emit(events.ExchangeRateChanged{Caller: caller, Rate: which, Previous: previous, New: new(big.Int).Set(rate)})
	return nil
}
