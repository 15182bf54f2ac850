package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterDeliversByKind(t *testing.T) {
	e := NewEmitter()
	transfers := e.Subscribe("transfer")
	approvals := e.Subscribe("approval")

	e.Emit(Transfer{
		From:   common.HexToAddress("0x1"),
		To:     common.HexToAddress("0x2"),
		Amount: big.NewInt(10),
	})

	select {
	case env := <-transfers:
		assert.Equal(t, "transfer", env.Kind)
		assert.NotEmpty(t, env.ID)
		ev, ok := env.Event.(Transfer)
		require.True(t, ok)
		assert.Equal(t, int64(10), ev.Amount.Int64())
	default:
		t.Fatal("expected a transfer event")
	}

	select {
	case <-approvals:
		t.Fatal("approval subscriber must not see transfers")
	default:
	}
}

func TestEmitterSubscribeAll(t *testing.T) {
	e := NewEmitter()
	all := e.SubscribeAll()

	e.Emit(WhitelistAdded{Account: common.HexToAddress("0xa"), MaxAmount: big.NewInt(1)})
	e.Emit(WhitelistRemoved{Account: common.HexToAddress("0xa")})

	kinds := []string{(<-all).Kind, (<-all).Kind}
	assert.Equal(t, []string{"whitelist_added", "whitelist_removed"}, kinds)
}

func TestEmitterUnsubscribeCloses(t *testing.T) {
	e := NewEmitter()
	ch := e.Subscribe("minted")
	e.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := NewEmitter()
	ch := e.Subscribe("transfer")

	// One more than the buffer: the overflow event is dropped, not blocked on.
	for i := 0; i < 257; i++ {
		e.Emit(Transfer{Amount: big.NewInt(int64(i))})
	}
	assert.Len(t, ch, 256)
}
