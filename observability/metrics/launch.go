package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LaunchMetrics struct {
	contributions    *prometheus.CounterVec
	cashBacks        prometheus.Counter
	refunds          prometheus.Counter
	redemptions      prometheus.Counter
	settlements      prometheus.Counter
	rebalancePasses  *prometheus.CounterVec
	feeHarvests      prometheus.Counter
	arbitragePasses  *prometheus.CounterVec
	totalContributed prometheus.Gauge
	totalTokensSold  prometheus.Gauge
}

var (
	launchOnce     sync.Once
	launchRegistry *LaunchMetrics
)

func Launch() *LaunchMetrics {
	launchOnce.Do(func() {
		launchRegistry = &LaunchMetrics{
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launch_contributions_total",
				Help: "Count of accepted contributions by funding kind.",
			}, []string{"kind"}),
			cashBacks: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launch_cashbacks_total",
				Help: "Count of cash-back payments issued.",
			}),
			refunds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launch_refunds_total",
				Help: "Count of refunds paid out.",
			}),
			redemptions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launch_redemptions_total",
				Help: "Count of claim-token redemptions.",
			}),
			settlements: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launch_settlements_total",
				Help: "Count of settlement executions.",
			}),
			rebalancePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launch_rebalance_passes_total",
				Help: "Count of peg rebalancing passes by trigger.",
			}, []string{"trigger"}),
			feeHarvests: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launch_fee_harvests_total",
				Help: "Count of trading-fee extractions sent to the master.",
			}),
			arbitragePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launch_arbitrage_passes_total",
				Help: "Count of executed arbitrage corrections by side.",
			}, []string{"side"}),
			totalContributed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "launch_total_contributed",
				Help: "Aggregate base currency contributed to the window.",
			}),
			totalTokensSold: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "launch_total_tokens_sold",
				Help: "Aggregate claim tokens reserved in the window.",
			}),
		}
		prometheus.MustRegister(
			launchRegistry.contributions,
			launchRegistry.cashBacks,
			launchRegistry.refunds,
			launchRegistry.redemptions,
			launchRegistry.settlements,
			launchRegistry.rebalancePasses,
			launchRegistry.feeHarvests,
			launchRegistry.arbitragePasses,
			launchRegistry.totalContributed,
			launchRegistry.totalTokensSold,
		)
	})
	return launchRegistry
}

func (m *LaunchMetrics) ObserveContribution(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "base"
	}
	m.contributions.WithLabelValues(kind).Inc()
}

func (m *LaunchMetrics) ObserveCashBack() {
	if m == nil {
		return
	}
	m.cashBacks.Inc()
}

func (m *LaunchMetrics) ObserveRefund() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

func (m *LaunchMetrics) ObserveRedemption() {
	if m == nil {
		return
	}
	m.redemptions.Inc()
}

func (m *LaunchMetrics) ObserveSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}

func (m *LaunchMetrics) ObserveRebalance(trigger string) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	m.rebalancePasses.WithLabelValues(trigger).Inc()
}

func (m *LaunchMetrics) ObserveFeeHarvest() {
	if m == nil {
		return
	}
	m.feeHarvests.Inc()
}

func (m *LaunchMetrics) ObserveArbitrage(side string) {
	if m == nil {
		return
	}
	if side == "" {
		side = "unknown"
	}
	m.arbitragePasses.WithLabelValues(side).Inc()
}

func (m *LaunchMetrics) SetTotals(contributed, tokensSold float64) {
	if m == nil {
		return
	}
	m.totalContributed.Set(contributed)
	m.totalTokensSold.Set(tokensSold)
}
