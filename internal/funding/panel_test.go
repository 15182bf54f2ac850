package funding

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shizukutanaka/Kifuda/internal/assets"
	"github.com/shizukutanaka/Kifuda/internal/events"
	"github.com/shizukutanaka/Kifuda/internal/exactmath"
	"github.com/shizukutanaka/Kifuda/internal/registry"
	"github.com/shizukutanaka/Kifuda/internal/token"
)

var (
	deployer    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holder      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	member1     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	member2     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	member3     = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	ownerWallet = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	panelAcc    = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	tokenAcc    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	outsider    = common.HexToAddress("0x0000000000000000000000000000000000000099")
)

type fixture struct {
	reg   *registry.AdminRegistry
	tok   *token.Ledger
	seed  *assets.BasicLedger
	panel *Panel
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	emitter := events.NewEmitter()

	reg, err := registry.NewAdminRegistry(deployer, big.NewInt(0), emitter, logger)
	require.NoError(t, err)
	tok := token.NewLedger("Kifuda Token", "KFD", tokenAcc, reg, emitter, logger)
	seed := assets.NewBasicLedger("Seed", "SEED")

	if params.Account == (common.Address{}) {
		params.Account = panelAcc
	}
	panel, err := NewPanel(params, reg, tok, seed, emitter, logger)
	require.NoError(t, err)

	// The panel mints on deposits.
	require.NoError(t, reg.SetMinterAddress(deployer, panel.Account()))
	require.NoError(t, reg.SetOwnerWallet(deployer, ownerWallet))

	return &fixture{reg: reg, tok: tok, seed: seed, panel: panel}
}

func defaultParams() Params {
	return Params{
		DocURL:            "https://example.org/docs/panel.pdf",
		DocHash:           "1220a0b1c2",
		ExchangeRateSeed:  big.NewInt(2),
		ExchangeRateOnTop: big.NewInt(1),
		ExchRateDecimals:  0,
		SeedMaxSupply:     big.NewInt(1000),
		DeployBlock:       42,
	}
}

func TestExchangeAmounts(t *testing.T) {
	params := defaultParams()
	params.ExchangeRateSeed = big.NewInt(25)
	params.ExchangeRateOnTop = big.NewInt(5)
	params.ExchRateDecimals = 1
	f := newFixture(t, params)

	// 100 * 25 / 10^1 = 250, truncating.
	out, err := f.panel.TokenExchangeAmount(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(250), out.Int64())

	out, err = f.panel.TokenExchangeAmountOnTop(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.Int64())

	// 3 * 25 / 10 = 7 (truncated from 7.5).
	out, err = f.panel.TokenExchangeAmount(big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Int64())

	_, err = f.panel.TokenExchangeAmount(big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, err = f.panel.TokenExchangeAmountOnTop(nil)
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestHolderSendSeeds(t *testing.T) {
	// Rates 2 and 1 with no fixed-point shift: a 10-seed deposit mints 20 to
	// the holder and 10 to the owner wallet.
	f := newFixture(t, defaultParams())

	require.NoError(t, f.reg.SetNewThreshold(deployer, big.NewInt(1000)))
	require.NoError(t, f.reg.AddToWhitelist(deployer, holder, big.NewInt(100)))
	require.NoError(t, f.reg.AddToWhitelist(deployer, ownerWallet, big.NewInt(1000)))

	require.NoError(t, f.seed.Mint(holder, big.NewInt(50)))
	require.NoError(t, f.seed.Approve(holder, f.panel.Account(), big.NewInt(50)))

	require.NoError(t, f.panel.HolderSendSeeds(holder, big.NewInt(10)))

	assert.Equal(t, int64(20), f.tok.BalanceOf(holder).Int64())
	assert.Equal(t, int64(10), f.tok.BalanceOf(ownerWallet).Int64())
	assert.Equal(t, int64(40), f.seed.BalanceOf(holder).Int64())
	assert.Equal(t, int64(10), f.panel.SeedBalance().Int64())
	assert.Equal(t, int64(10), f.panel.TotalRaised().Int64())
}

func TestHolderSendSeedsEligibility(t *testing.T) {
	f := newFixture(t, defaultParams())
	require.NoError(t, f.reg.AddToWhitelist(deployer, ownerWallet, big.NewInt(1000)))
	require.NoError(t, f.seed.Mint(holder, big.NewInt(50)))
	require.NoError(t, f.seed.Approve(holder, f.panel.Account(), big.NewInt(50)))

	// Not whitelisted.
	err := f.panel.HolderSendSeeds(holder, big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotEligible)

	// Whitelisted but the minted 20 tokens exceed both cap and threshold.
	require.NoError(t, f.reg.AddToWhitelist(deployer, holder, big.NewInt(19)))
	err = f.panel.HolderSendSeeds(holder, big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotEligible)

	// Nothing moved on the failed attempts.
	assert.Equal(t, int64(50), f.seed.BalanceOf(holder).Int64())
	assert.Equal(t, int64(0), f.tok.TotalSupply().Int64())

	require.NoError(t, f.reg.ChangeMaxWLAmount(deployer, holder, big.NewInt(20)))
	require.NoError(t, f.panel.HolderSendSeeds(holder, big.NewInt(10)))
}

func TestHolderSendSeedsRequiresWhitelistedOwnerWallet(t *testing.T) {
	f := newFixture(t, defaultParams())
	require.NoError(t, f.reg.SetNewThreshold(deployer, big.NewInt(1000)))
	require.NoError(t, f.reg.AddToWhitelist(deployer, holder, big.NewInt(100)))
	require.NoError(t, f.seed.Mint(holder, big.NewInt(50)))
	require.NoError(t, f.seed.Approve(holder, f.panel.Account(), big.NewInt(50)))

	err := f.panel.HolderSendSeeds(holder, big.NewInt(10))
	assert.ErrorIs(t, err, ErrOwnerWalletNotSet)

	require.NoError(t, f.reg.AddToWhitelist(deployer, ownerWallet, big.NewInt(1000)))
	require.NoError(t, f.panel.HolderSendSeeds(holder, big.NewInt(10)))
}

func TestHolderSendSeedsInsufficientSeed(t *testing.T) {
	f := newFixture(t, defaultParams())
	require.NoError(t, f.reg.SetNewThreshold(deployer, big.NewInt(1000)))
	require.NoError(t, f.reg.AddToWhitelist(deployer, holder, big.NewInt(1000)))
	require.NoError(t, f.reg.AddToWhitelist(deployer, ownerWallet, big.NewInt(1000)))

	require.NoError(t, f.seed.Mint(holder, big.NewInt(5)))
	require.NoError(t, f.seed.Approve(holder, f.panel.Account(), big.NewInt(100)))

	err := f.panel.HolderSendSeeds(holder, big.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientSeed)
}

func TestSeedMaxSupplyCap(t *testing.T) {
	f := newFixture(t, defaultParams()) // cap: 1000 x 10^18 held seed

	threshold, err := exactmath.Scale18(big.NewInt(10000))
	require.NoError(t, err)
	require.NoError(t, f.reg.SetNewThreshold(deployer, threshold))
	require.NoError(t, f.reg.AddToWhitelist(deployer, holder, threshold))
	require.NoError(t, f.reg.AddToWhitelist(deployer, ownerWallet, threshold))

	seed2000, err := exactmath.Scale18(big.NewInt(2000))
	require.NoError(t, err)
	require.NoError(t, f.seed.Mint(holder, seed2000))
	require.NoError(t, f.seed.Approve(holder, f.panel.Account(), seed2000))

	seed600, _ := exactmath.Scale18(big.NewInt(600))
	seed400, _ := exactmath.Scale18(big.NewInt(400))
	seed1, _ := exactmath.Scale18(big.NewInt(1))

	require.NoError(t, f.panel.HolderSendSeeds(holder, seed600))
	require.NoError(t, f.panel.HolderSendSeeds(holder, seed400))

	// The cap is now exactly reached; any further deposit fails.
	err = f.panel.HolderSendSeeds(holder, seed1)
	assert.ErrorIs(t, err, ErrSupplyCapExceeded)

	want, _ := exactmath.Scale18(big.NewInt(1000))
	assert.Equal(t, 0, f.panel.SeedBalance().Cmp(want))
}

func TestHolderSendSeedsUnwindsOnBonusFailure(t *testing.T) {
	// The owner wallet is whitelisted with a cap too small for the bonus:
	// the deposit fails after the holder mint, and everything unwinds.
	f := newFixture(t, defaultParams())
	require.NoError(t, f.reg.AddToWhitelist(deployer, holder, big.NewInt(100)))
	require.NoError(t, f.reg.AddToWhitelist(deployer, ownerWallet, big.NewInt(5)))
	require.NoError(t, f.seed.Mint(holder, big.NewInt(50)))
	require.NoError(t, f.seed.Approve(holder, f.panel.Account(), big.NewInt(50)))

	err := f.panel.HolderSendSeeds(holder, big.NewInt(10))
	require.Error(t, err)

	assert.Equal(t, int64(50), f.seed.BalanceOf(holder).Int64())
	assert.Equal(t, int64(0), f.panel.SeedBalance().Int64())
	assert.Equal(t, int64(0), f.tok.BalanceOf(holder).Int64())
	assert.Equal(t, int64(0), f.tok.TotalSupply().Int64())
	assert.Equal(t, int64(0), f.panel.TotalRaised().Int64())
}

func TestUnlockFunds(t *testing.T) {
	f := newFixture(t, defaultParams())
	require.NoError(t, f.seed.Mint(f.panel.Account(), big.NewInt(100)))
	require.NoError(t, f.panel.AddMemberToSet(deployer, member1, "https://m1", "aa"))

	assert.ErrorIs(t, f.panel.UnlockFunds(outsider, member1, big.NewInt(10)), ErrUnauthorized)
	assert.ErrorIs(t, f.panel.UnlockFunds(deployer, member2, big.NewInt(10)), ErrMemberNotFound)
	assert.ErrorIs(t, f.panel.UnlockFunds(deployer, member1, big.NewInt(101)), ErrInsufficientSeed)

	require.NoError(t, f.panel.DisableMemberByStaff(deployer, member1))
	assert.ErrorIs(t, f.panel.UnlockFunds(deployer, member1, big.NewInt(10)), ErrMemberDisabled)

	require.NoError(t, f.panel.EnableMember(deployer, member1))
	require.NoError(t, f.panel.UnlockFunds(deployer, member1, big.NewInt(10)))
	assert.Equal(t, int64(10), f.seed.BalanceOf(member1).Int64())
	assert.Equal(t, int64(90), f.panel.SeedBalance().Int64())
}

func TestSetNewSeedMaxSupplyGatedByOwner(t *testing.T) {
	f := newFixture(t, defaultParams())

	assert.ErrorIs(t, f.panel.SetNewSeedMaxSupply(outsider, big.NewInt(1)), ErrUnauthorized)

	require.NoError(t, f.panel.SetNewSeedMaxSupply(deployer, big.NewInt(7)))
	assert.Equal(t, int64(7), f.panel.SeedMaxSupply().Int64())
}

func TestSetExchangeRates(t *testing.T) {
	f := newFixture(t, defaultParams())

	assert.ErrorIs(t, f.panel.SetExchangeRateSeed(outsider, big.NewInt(3)), ErrUnauthorized)

	require.NoError(t, f.panel.SetExchangeRateSeed(deployer, big.NewInt(3)))
	assert.Equal(t, int64(3), f.panel.ExchangeRateSeed().Int64())
	assert.ErrorIs(t, f.panel.SetExchangeRateSeed(deployer, big.NewInt(3)), ErrUnchangedValue)

	require.NoError(t, f.panel.SetExchangeRateOnTop(deployer, big.NewInt(2)))
	assert.Equal(t, int64(2), f.panel.ExchangeRateOnTop().Int64())
	assert.ErrorIs(t, f.panel.SetExchangeRateOnTop(deployer, big.NewInt(2)), ErrUnchangedValue)
}

func TestMemberRegistry(t *testing.T) {
	f := newFixture(t, defaultParams())

	assert.ErrorIs(t, f.panel.AddMemberToSet(outsider, member1, "", ""), ErrUnauthorized)

	require.NoError(t, f.panel.AddMemberToSet(deployer, member1, "https://m1", "aa"))
	assert.ErrorIs(t, f.panel.AddMemberToSet(deployer, member1, "https://m1", "aa"), ErrMemberExists)
	assert.ErrorIs(t, f.panel.DeleteMemberFromSet(deployer, member2), ErrMemberNotFound)

	m, err := f.panel.GetMember(member1)
	require.NoError(t, err)
	assert.True(t, m.Inserted)
	assert.True(t, m.Enabled)
	assert.Equal(t, "https://m1", m.URL)
}

func TestMemberSelfService(t *testing.T) {
	f := newFixture(t, defaultParams())
	require.NoError(t, f.panel.AddMemberToSet(deployer, member1, "https://m1", "aa"))

	// Non-members cannot self-serve.
	assert.ErrorIs(t, f.panel.ChangeMemberURLByMember(outsider, "x"), ErrMemberNotFound)

	require.NoError(t, f.panel.ChangeMemberURLByMember(member1, "https://m1b"))
	require.NoError(t, f.panel.ChangeMemberHashByMember(member1, "bb"))

	m, err := f.panel.GetMember(member1)
	require.NoError(t, err)
	assert.Equal(t, "https://m1b", m.URL)
	assert.Equal(t, "bb", m.Hash)

	require.NoError(t, f.panel.DisableMemberByMember(member1))
	assert.False(t, f.panel.IsMemberEnabled(member1))

	// Disabled members lose self-service until staff re-enables them.
	assert.ErrorIs(t, f.panel.ChangeMemberURLByMember(member1, "x"), ErrMemberDisabled)
	require.NoError(t, f.panel.EnableMember(deployer, member1))
	require.NoError(t, f.panel.ChangeMemberURLByMember(member1, "https://m1c"))
}

func TestListPointerInvariant(t *testing.T) {
	f := newFixture(t, defaultParams())
	addrs := []common.Address{member1, member2, member3, holder, outsider}

	checkInvariant := func() {
		t.Helper()
		for i := 0; i < f.panel.MemberCount(); i++ {
			addr, err := f.panel.MemberAt(i)
			require.NoError(t, err)
			m, err := f.panel.GetMember(addr)
			require.NoError(t, err)
			assert.Equal(t, i, m.ListPointer, "member %s", addr)
		}
	}

	for _, a := range addrs {
		require.NoError(t, f.panel.AddMemberToSet(deployer, a, "", ""))
	}
	checkInvariant()

	// Remove from the middle, the head, the tail, then re-insert.
	require.NoError(t, f.panel.DeleteMemberFromSet(deployer, member2))
	checkInvariant()
	require.NoError(t, f.panel.DeleteMemberFromSet(deployer, member1))
	checkInvariant()

	last, err := f.panel.MemberAt(f.panel.MemberCount() - 1)
	require.NoError(t, err)
	require.NoError(t, f.panel.DeleteMemberFromSet(deployer, last))
	checkInvariant()

	require.NoError(t, f.panel.AddMemberToSet(deployer, member2, "", ""))
	checkInvariant()
	assert.Equal(t, 3, f.panel.MemberCount())
}
