package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PricingMetrics 定价与积分服务指标
type PricingMetrics struct {
	// 报价相关指标
	QuoteTotal    *prometheus.CounterVec   // 报价总数（按动作、结果）
	QuoteDuration *prometheus.HistogramVec // 报价耗时
	ManualPricing *prometheus.CounterVec   // 需人工定价次数（按原因、币种）

	// 账本相关指标
	LedgerMutationTotal    *prometheus.CounterVec   // 账本变更总数（按方向、结果）
	LedgerMutationDuration *prometheus.HistogramVec // 账本变更耗时
	LedgerCreditsTotal     *prometheus.CounterVec   // 积分变动数量（按方向）
	BalanceLowTotal        *prometheus.CounterVec   // 变更后余额低于阈值的次数（按方向）

	// 订阅配额指标
	QuotaConsumeTotal *prometheus.CounterVec // 配额消耗（按配额类型、来源）

	// 结算指标
	SettlementTotal *prometheus.CounterVec // 结算单总数（按来源、付款时机）

	// 价目表指标
	CatalogVersion       prometheus.Gauge       // 当前快照版本
	CatalogRefreshTotal  *prometheus.CounterVec // 快照刷新次数（按结果）
	ReconcileMismatchTot prometheus.Counter     // 对账不一致次数

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewPricingMetrics 创建指标
func NewPricingMetrics() *PricingMetrics {
	return &PricingMetrics{
		QuoteTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_quote_total",
				Help: "Total number of pricing resolutions",
			},
			[]string{"action", "result"}, // result: priced/manual_pricing/rejected/configuration_error
		),
		QuoteDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_quote_duration_seconds",
				Help:    "Duration of pricing resolutions",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"action"},
		),
		ManualPricing: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_manual_pricing_total",
				Help: "Hire quotes that require manual pricing",
			},
			[]string{"reason", "currency"},
		),

		LedgerMutationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_ledger_mutation_total",
				Help: "Total number of wallet ledger mutations",
			},
			[]string{"direction", "result"}, // result: applied/duplicate/rejected
		),
		LedgerMutationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_ledger_mutation_duration_seconds",
				Help:    "Duration of wallet ledger mutations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		LedgerCreditsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_ledger_credits_total",
				Help: "Credits moved through the ledger",
			},
			[]string{"direction"},
		),
		BalanceLowTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_balance_low_total",
				Help: "Ledger mutations that left a wallet below the low balance threshold",
			},
			[]string{"direction"},
		),

		QuotaConsumeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_quota_consume_total",
				Help: "Units of subscription quota consumed",
			},
			[]string{"quota", "source"}, // source: plan/credits
		),

		SettlementTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_settlement_total",
				Help: "Pay-per-hire settlements created",
			},
			[]string{"source", "timing"},
		),

		CatalogVersion: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricing_catalog_version",
				Help: "Version of the catalog snapshot in use",
			},
		),
		CatalogRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_catalog_refresh_total",
				Help: "Catalog snapshot reloads",
			},
			[]string{"result"},
		),
		ReconcileMismatchTot: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pricing_reconcile_mismatch_total",
				Help: "Wallets whose balance disagrees with the transaction log",
			},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricing_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}, // 毫秒级
			},
		),
	}
}

var (
	defaultMetrics *PricingMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例
func GetMetrics() *PricingMetrics {
	once.Do(func() {
		defaultMetrics = NewPricingMetrics()
	})
	return defaultMetrics
}
