package constants

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "pricing:balance:"
	// RedisKeyWalletLock 钱包变更锁 key 前缀
	RedisKeyWalletLock = "pricing:lock:wallet:"
	// RedisKeyQuotaLock 订阅配额锁 key 前缀
	RedisKeyQuotaLock = "pricing:lock:quota:"
	// RedisKeyCatalogVersion 价目表版本号
	RedisKeyCatalogVersion = "pricing:catalog:version"
)

// 流水方向常量
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// 计费模式常量
const (
	PricingModelSubscription = "subscription"
	PricingModelPayPerHire   = "pay_per_hire"
)

// 付款时机常量
const (
	TimingAdvance  = "advance"
	TimingDeferred = "deferred"
)

// 结算状态常量
const (
	SettlementStatusPending = "pending"
	SettlementStatusPaid    = "paid"
	SettlementStatusOverdue = "overdue"
)

// 订阅状态常量
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusExpired    = "expired"
	SubscriptionStatusSuperseded = "superseded"
)

// 报价结果常量（用于指标）
const (
	QuoteResultPriced       = "priced"
	QuoteResultManual       = "manual_pricing"
	QuoteResultRejected     = "rejected"
	QuoteResultConfigError  = "configuration_error"
	ResultSuccess           = "success"
	ResultFailed            = "failed"
	MutationResultApplied   = "applied"
	MutationResultDuplicate = "duplicate"
	MutationResultRejected  = "rejected"
)

// 默认值
const (
	// DefaultPageSize 流水分页默认条数
	DefaultPageSize = 20
	// MaxPageSize 流水分页最大条数
	MaxPageSize = 200
	// BalanceCacheTTLSeconds 余额缓存过期秒数
	BalanceCacheTTLSeconds = 300
)
