package registry

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func newTestRegistry(t *testing.T, threshold int64) *AdminRegistry {
	t.Helper()
	reg, err := NewAdminRegistry(deployer, big.NewInt(threshold), events.NewEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return reg
}

func TestNewAdminRegistryGrantsAllRoles(t *testing.T) {
	reg := newTestRegistry(t, 10)

	assert.True(t, reg.IsOwner(deployer))
	assert.True(t, reg.IsWLManager(deployer))
	assert.True(t, reg.IsWLOperator(deployer))
	assert.True(t, reg.IsFundingManager(deployer))
	assert.True(t, reg.IsFundingOperator(deployer))

	// Threshold is scaled to base units at construction.
	want, _ := new(big.Int).SetString("10000000000000000000", 10)
	assert.Equal(t, 0, reg.WLThresholdBalance().Cmp(want))
}

func TestOwnershipTransfer(t *testing.T) {
	reg := newTestRegistry(t, 0)

	err := reg.Ownership().TransferOwnership(alice, bob)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = reg.Ownership().TransferOwnership(deployer, common.Address{})
	assert.ErrorIs(t, err, ErrZeroAddress)

	err = reg.Ownership().TransferOwnership(deployer, alice)
	require.NoError(t, err)
	assert.True(t, reg.IsOwner(alice))
	assert.False(t, reg.IsOwner(deployer))
}

func TestManagerGrantImpliesOperator(t *testing.T) {
	reg := newTestRegistry(t, 0)

	require.NoError(t, reg.AddWLManagers(deployer, alice))
	assert.True(t, reg.IsWLManager(alice))
	assert.True(t, reg.IsWLOperator(alice))

	require.NoError(t, reg.AddFundingManagers(deployer, bob))
	assert.True(t, reg.IsFundingManager(bob))
	assert.True(t, reg.IsFundingOperator(bob))
}

func TestManagerRemovalRevokesBothTiers(t *testing.T) {
	reg := newTestRegistry(t, 0)
	require.NoError(t, reg.AddWLManagers(deployer, alice))

	require.NoError(t, reg.RemoveWLManagers(deployer, alice))
	assert.False(t, reg.IsWLManager(alice))
	assert.False(t, reg.IsWLOperator(alice))

	require.NoError(t, reg.AddFundingManagers(deployer, bob))
	require.NoError(t, reg.RemoveFundingManagers(deployer, bob))
	assert.False(t, reg.IsFundingManager(bob))
	assert.False(t, reg.IsFundingOperator(bob))
}

func TestRoleGates(t *testing.T) {
	reg := newTestRegistry(t, 0)

	// Non-owner cannot grant managers.
	assert.ErrorIs(t, reg.AddWLManagers(alice, bob), ErrUnauthorized)
	assert.ErrorIs(t, reg.AddFundingManagers(alice, bob), ErrUnauthorized)

	// Non-manager cannot grant operators.
	assert.ErrorIs(t, reg.AddWLOperators(alice, bob), ErrUnauthorized)
	assert.ErrorIs(t, reg.AddFundingOperators(alice, bob), ErrUnauthorized)

	// A manager can grant operators in their own domain only.
	require.NoError(t, reg.AddWLManagers(deployer, alice))
	require.NoError(t, reg.AddWLOperators(alice, bob))
	assert.True(t, reg.IsWLOperator(bob))
	assert.ErrorIs(t, reg.AddFundingOperators(alice, carol), ErrUnauthorized)
}

func TestRoleGrantIdempotent(t *testing.T) {
	reg := newTestRegistry(t, 0)
	emitter := events.NewEmitter()
	reg.emitter = emitter
	grants := emitter.Subscribe("role_granted")

	require.NoError(t, reg.AddWLOperators(deployer, alice))
	require.NoError(t, reg.AddWLOperators(deployer, alice))
	assert.True(t, reg.IsWLOperator(alice))

	// Only the first grant changed anything, so only one event fired.
	assert.Len(t, grants, 1)

	// Removing a non-member is legal and a no-op.
	require.NoError(t, reg.RemoveWLOperators(deployer, bob))
	assert.False(t, reg.IsWLOperator(bob))
}

func TestRenounce(t *testing.T) {
	reg := newTestRegistry(t, 0)
	require.NoError(t, reg.AddWLOperators(deployer, alice))

	require.NoError(t, reg.RenounceWLOperator(alice))
	assert.False(t, reg.IsWLOperator(alice))

	// Renouncing a role you do not hold fails.
	assert.ErrorIs(t, reg.RenounceWLOperator(alice), ErrUnauthorized)
	assert.ErrorIs(t, reg.RenounceFundingManager(bob), ErrUnauthorized)

	// Renouncing manager leaves the operator membership alone.
	require.NoError(t, reg.AddWLManagers(deployer, carol))
	require.NoError(t, reg.RenounceWLManager(carol))
	assert.False(t, reg.IsWLManager(carol))
	assert.True(t, reg.IsWLOperator(carol))
}

func TestMinterPointer(t *testing.T) {
	reg := newTestRegistry(t, 0)

	assert.ErrorIs(t, reg.SetMinterAddress(alice, bob), ErrUnauthorized)
	assert.ErrorIs(t, reg.SetMinterAddress(deployer, common.Address{}), ErrZeroAddress)

	require.NoError(t, reg.SetMinterAddress(deployer, alice))
	assert.Equal(t, alice, reg.MinterAddress())

	// Same value again is rejected.
	assert.ErrorIs(t, reg.SetMinterAddress(deployer, alice), ErrUnchangedValue)

	require.NoError(t, reg.SetMinterAddress(deployer, bob))
	assert.Equal(t, bob, reg.MinterAddress())
}

func TestOwnerWalletPointer(t *testing.T) {
	reg := newTestRegistry(t, 0)

	assert.ErrorIs(t, reg.SetOwnerWallet(alice, bob), ErrUnauthorized)
	assert.ErrorIs(t, reg.SetOwnerWallet(deployer, common.Address{}), ErrZeroAddress)

	require.NoError(t, reg.SetOwnerWallet(deployer, carol))
	assert.Equal(t, carol, reg.OwnerWallet())
	assert.ErrorIs(t, reg.SetOwnerWallet(deployer, carol), ErrUnchangedValue)
}
