// Package monitoring exports operational metrics for the registry, token
// ledger and funding panel over Prometheus.
package monitoring

import (
	"context"
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

// Metrics holds the Prometheus collectors fed from the event stream.
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// Ledger activity
	transfers prometheus.Counter
	mints     prometheus.Counter
	burns     prometheus.Counter

	// Registry activity
	whitelistAdds    prometheus.Counter
	whitelistRemoves prometheus.Counter
	roleChanges      *prometheus.CounterVec

	// Funding activity
	deposits      prometheus.Counter
	fundsUnlocked prometheus.Counter

	// Gauges refreshed by the host
	totalSupply     prometheus.Gauge
	whitelistLength prometheus.Gauge
	seedRaised      prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),

		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_transfers_total",
			Help: "Completed token transfers",
		}),
		mints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_mints_total",
			Help: "Completed mints",
		}),
		burns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_burns_total",
			Help: "Completed burns",
		}),
		whitelistAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_whitelist_adds_total",
			Help: "Whitelist additions",
		}),
		whitelistRemoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_whitelist_removes_total",
			Help: "Whitelist removals",
		}),
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kifuda_role_changes_total",
			Help: "Role grants and revokes by role",
		}, []string{"role", "action"}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_seed_deposits_total",
			Help: "Accepted seed deposits",
		}),
		fundsUnlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kifuda_funds_unlocked_total",
			Help: "Fund releases to members",
		}),
		totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kifuda_token_total_supply",
			Help: "Current token total supply (base units)",
		}),
		whitelistLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kifuda_whitelist_length",
			Help: "Currently permitted whitelist entries",
		}),
		seedRaised: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kifuda_seed_raised_total",
			Help: "Cumulative seed raised by the funding panel (base units)",
		}),
	}

	m.registry.MustRegister(
		m.transfers, m.mints, m.burns,
		m.whitelistAdds, m.whitelistRemoves, m.roleChanges,
		m.deposits, m.fundsUnlocked,
		m.totalSupply, m.whitelistLength, m.seedRaised,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Run consumes the event stream and bumps counters until the context is done
// or the channel closes.
func (m *Metrics) Run(ctx context.Context, ch <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			m.observe(env)
		}
	}
}

func (m *Metrics) observe(env events.Envelope) {
	switch e := env.Event.(type) {
	case events.Transfer:
		m.transfers.Inc()
	case events.Minted:
		m.mints.Inc()
	case events.Burned:
		m.burns.Inc()
	case events.WhitelistAdded:
		m.whitelistAdds.Inc()
	case events.WhitelistRemoved:
		m.whitelistRemoves.Inc()
	case events.RoleGranted:
		m.roleChanges.WithLabelValues(e.Role, "grant").Inc()
	case events.RoleRevoked:
		m.roleChanges.WithLabelValues(e.Role, "revoke").Inc()
	case events.SeedsDeposited:
		m.deposits.Inc()
	case events.FundsUnlocked:
		m.fundsUnlocked.Inc()
	}
}

// SetTotalSupply refreshes the supply gauge.
func (m *Metrics) SetTotalSupply(v *big.Int) {
	f, _ := new(big.Float).SetInt(v).Float64()
	m.totalSupply.Set(f)
}

// SetWhitelistLength refreshes the whitelist length gauge.
func (m *Metrics) SetWhitelistLength(n uint64) {
	m.whitelistLength.Set(float64(n))
}

// SetSeedRaised refreshes the cumulative raised gauge.
func (m *Metrics) SetSeedRaised(v *big.Int) {
	f, _ := new(big.Float).SetInt(v).Float64()
	m.seedRaised.Set(f)
}
