package monitoring

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

func TestMetricsObserveCounts(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))
	emitter := events.NewEmitter()
	ch := emitter.SubscribeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		m.Run(ctx, ch)
		close(done)
	}()

	addr := common.HexToAddress("0x1")
	emitter.Emit(events.Transfer{From: addr, To: addr, Amount: big.NewInt(1)})
	emitter.Emit(events.Transfer{From: addr, To: addr, Amount: big.NewInt(2)})
	emitter.Emit(events.Minted{To: addr, Amount: big.NewInt(3)})
	emitter.Emit(events.Burned{From: addr, Amount: big.NewInt(1)})
	emitter.Emit(events.WhitelistAdded{Account: addr, MaxAmount: big.NewInt(10)})
	emitter.Emit(events.WhitelistRemoved{Account: addr})
	emitter.Emit(events.RoleGranted{Account: addr, Role: "wl_operator"})
	emitter.Emit(events.RoleRevoked{Account: addr, Role: "wl_operator"})
	emitter.Emit(events.SeedsDeposited{Holder: addr, SeedAmount: big.NewInt(5)})
	emitter.Emit(events.FundsUnlocked{Member: addr, Amount: big.NewInt(5)})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.fundsUnlocked) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transfers))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mints))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.burns))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.whitelistAdds))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.whitelistRemoves))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.roleChanges.WithLabelValues("wl_operator", "grant")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.roleChanges.WithLabelValues("wl_operator", "revoke")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deposits))

	emitter.Unsubscribe(ch)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on closed channel")
	}
}

func TestMetricsGaugesAndHandler(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	m.SetTotalSupply(big.NewInt(12345))
	m.SetWhitelistLength(7)
	m.SetSeedRaised(big.NewInt(900))

	assert.Equal(t, float64(12345), testutil.ToFloat64(m.totalSupply))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.whitelistLength))
	assert.Equal(t, float64(900), testutil.ToFloat64(m.seedRaised))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "kifuda_whitelist_length 7")
}
