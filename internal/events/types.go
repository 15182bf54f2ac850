package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Envelope wraps an emitted event with its identity and timestamp.
type Envelope struct {
	ID    string      `json:"id"`
	Kind  string      `json:"kind"`
	Time  time.Time   `json:"time"`
	Event interface{} `json:"event"`
}

// Ownership and role events

type OwnershipTransferred struct {
	Caller   common.Address `json:"caller"`
	Previous common.Address `json:"previous"`
	New      common.Address `json:"new"`
}

type RoleGranted struct {
	Caller  common.Address `json:"caller"`
	Account common.Address `json:"account"`
	Role    string         `json:"role"`
}

type RoleRevoked struct {
	Caller  common.Address `json:"caller"`
	Account common.Address `json:"account"`
	Role    string         `json:"role"`
}

// Registry pointer and whitelist events

type MinterChanged struct {
	Caller   common.Address `json:"caller"`
	Previous common.Address `json:"previous"`
	New      common.Address `json:"new"`
}

type OwnerWalletChanged struct {
	Caller   common.Address `json:"caller"`
	Previous common.Address `json:"previous"`
	New      common.Address `json:"new"`
}

type ThresholdChanged struct {
	Caller   common.Address `json:"caller"`
	Previous *big.Int       `json:"previous"`
	New      *big.Int       `json:"new"`
}

type MaxAmountChanged struct {
	Caller   common.Address `json:"caller"`
	Account  common.Address `json:"account"`
	Previous *big.Int       `json:"previous"`
	New      *big.Int       `json:"new"`
}

type WhitelistAdded struct {
	Caller    common.Address `json:"caller"`
	Account   common.Address `json:"account"`
	MaxAmount *big.Int       `json:"max_amount"`
}

type WhitelistRemoved struct {
	Caller  common.Address `json:"caller"`
	Account common.Address `json:"account"`
}

// Token ledger events

type Transfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type Approval struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

type Minted struct {
	Caller common.Address `json:"caller"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type Burned struct {
	Caller common.Address `json:"caller"`
	From   common.Address `json:"from"`
	Amount *big.Int       `json:"amount"`
}

type ForeignWithdrawn struct {
	Caller common.Address `json:"caller"`
	Amount *big.Int       `json:"amount"`
}

// Funding panel events

type MemberAdded struct {
	Caller common.Address `json:"caller"`
	Member common.Address `json:"member"`
	URL    string         `json:"url"`
	Hash   string         `json:"hash"`
}

type MemberRemoved struct {
	Caller common.Address `json:"caller"`
	Member common.Address `json:"member"`
}

type MemberEnabled struct {
	Caller common.Address `json:"caller"`
	Member common.Address `json:"member"`
}

type MemberDisabled struct {
	Caller  common.Address `json:"caller"`
	Member  common.Address `json:"member"`
	ByStaff bool           `json:"by_staff"`
}

type MemberURLChanged struct {
	Member common.Address `json:"member"`
	URL    string         `json:"url"`
}

type MemberHashChanged struct {
	Member common.Address `json:"member"`
	Hash   string         `json:"hash"`
}

type SeedsDeposited struct {
	Holder      common.Address `json:"holder"`
	SeedAmount  *big.Int       `json:"seed_amount"`
	TokenAmount *big.Int       `json:"token_amount"`
	BonusAmount *big.Int       `json:"bonus_amount"`
}

type FundsUnlocked struct {
	Caller common.Address `json:"caller"`
	Member common.Address `json:"member"`
	Amount *big.Int       `json:"amount"`
}

type SeedMaxSupplyChanged struct {
	Caller   common.Address `json:"caller"`
	Previous *big.Int       `json:"previous"`
	New      *big.Int       `json:"new"`
}

type ExchangeRateChanged struct {
	Caller   common.Address `json:"caller"`
	Rate     string         `json:"rate"` // "seed" or "on_top"
	Previous *big.Int       `json:"previous"`
	New      *big.Int       `json:"new"`
}

// kindOf maps an event value to its stable wire name.
func kindOf(event interface{}) string {
	switch event.(type) {
	case OwnershipTransferred:
		return "ownership_transferred"
	case RoleGranted:
		return "role_granted"
	case RoleRevoked:
		return "role_revoked"
	case MinterChanged:
		return "minter_changed"
	case OwnerWalletChanged:
		return "owner_wallet_changed"
	case ThresholdChanged:
		return "threshold_changed"
	case MaxAmountChanged:
		return "max_amount_changed"
	case WhitelistAdded:
		return "whitelist_added"
	case WhitelistRemoved:
		return "whitelist_removed"
	case Transfer:
		return "transfer"
	case Approval:
		return "approval"
	case Minted:
		return "minted"
	case Burned:
		return "burned"
	case ForeignWithdrawn:
		return "foreign_withdrawn"
	case MemberAdded:
		return "member_added"
	case MemberRemoved:
		return "member_removed"
	case MemberEnabled:
		return "member_enabled"
	case MemberDisabled:
		return "member_disabled"
	case MemberURLChanged:
		return "member_url_changed"
	case MemberHashChanged:
		return "member_hash_changed"
	case SeedsDeposited:
		return "seeds_deposited"
	case FundsUnlocked:
		return "funds_unlocked"
	case SeedMaxSupplyChanged:
		return "seed_max_supply_changed"
	case ExchangeRateChanged:
		return "exchange_rate_changed"
	default:
		return "unknown"
	}
}
