package storage

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalAppendAndQuery(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	emitter := events.NewEmitter()
	env1 := emitter.Emit(events.Transfer{
		From:   common.HexToAddress("0x1"),
		To:     common.HexToAddress("0x2"),
		Amount: big.NewInt(5),
	})
	env2 := emitter.Emit(events.WhitelistAdded{
		Account:   common.HexToAddress("0x3"),
		MaxAmount: big.NewInt(100),
	})

	require.NoError(t, j.Append(ctx, env1))
	require.NoError(t, j.Append(ctx, env2))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	transfers, err := j.ByKind(ctx, "transfer", 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, env1.ID, transfers[0].ID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(transfers[0].Payload, &payload))
	assert.Contains(t, payload, "amount")

	recent, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestJournalRunConsumesStream(t *testing.T) {
	j := openTestJournal(t)
	emitter := events.NewEmitter()
	ch := emitter.SubscribeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		j.Run(ctx, ch)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		emitter.Emit(events.Minted{Amount: big.NewInt(int64(i + 1))})
	}

	require.Eventually(t, func() bool {
		n, err := j.Count(context.Background())
		return err == nil && n == 5
	}, 2*time.Second, 10*time.Millisecond)

	emitter.Unsubscribe(ch)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on closed channel")
	}
}
