package biz

import (
	"context"
	"fmt"
	"time"

	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"
	"pricing-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseResult 购买积分包结果
type PurchaseResult struct {
	Quote     *Quote               `json:"quote,omitempty"`
	Entry     *TransactionLogEntry `json:"entry"`
	Duplicate bool                 `json:"duplicate"`
}

// SubscribeResult 订阅结果
type SubscribeResult struct {
	Quote        *Quote        `json:"quote,omitempty"`
	Subscription *Subscription `json:"subscription"`
	Duplicate    bool          `json:"duplicate"`
}

// ConsumeResult 配额消耗结果
type ConsumeResult struct {
	Consumption *QuotaConsumption `json:"consumption"`
	Remaining   int64             `json:"remaining"`
	Duplicate   bool              `json:"duplicate"`
}

// SettleResult PPH 结算结果；需人工定价时 Settlement 为空
type SettleResult struct {
	Quote      *Quote          `json:"quote,omitempty"`
	Settlement *HireSettlement `json:"settlement,omitempty"`
	Duplicate  bool            `json:"duplicate"`
}

// HireRequest 聘用结算请求
type HireRequest struct {
	EmployerID    string
	HireRef       string
	Salary        decimal.Decimal
	Currency      string
	HireCount     int32
	DiscountPct   *decimal.Decimal
	CorrelationID string
}

// EngineUseCase 积分与定价引擎（组合 UseCase）
// 负责协调价目表、定价解析与账本，处理跨领域的业务逻辑
type EngineUseCase struct {
	catalog       *CatalogUseCase
	resolver      *Resolver
	ledger        *LedgerUseCase
	subscriptions SubscriptionRepo
	settlements   SettlementRepo
	locker        Locker
	conf          *PricingConfig
	log           *log.Helper
	metrics       *metrics.PricingMetrics
}

// NewEngineUseCase 创建引擎 UseCase
func NewEngineUseCase(
	catalog *CatalogUseCase,
	resolver *Resolver,
	ledger *LedgerUseCase,
	subscriptions SubscriptionRepo,
	settlements SettlementRepo,
	locker Locker,
	conf *PricingConfig,
	logger log.Logger,
) *EngineUseCase {
	return &EngineUseCase{
		catalog:       catalog,
		resolver:      resolver,
		ledger:        ledger,
		subscriptions: subscriptions,
		settlements:   settlements,
		locker:        locker,
		conf:          conf,
		log:           log.NewHelper(logger),
		metrics:       metrics.GetMetrics(),
	}
}

// employerContext 钱包不存在时使用默认付款时机（后付）
func (uc *EngineUseCase) employerContext(ctx context.Context, employerID string) (EmployerContext, *Wallet, error) {
	emp := EmployerContext{EmployerID: employerID, Timing: PaymentTiming{Type: TimingDeferred}}
	w, err := uc.ledger.GetWallet(ctx, employerID)
	if err != nil {
		if pricingErrors.IsWalletNotFound(err) {
			return emp, nil, nil
		}
		return emp, nil, err
	}
	if w.Timing.Type != "" {
		emp.Timing = w.Timing
	}
	return emp, w, nil
}

func (uc *EngineUseCase) resolve(ctx context.Context, emp EmployerContext, a Action) (*Quote, error) {
	c, err := uc.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return uc.resolver.Resolve(c, emp, a)
}

// QuoteBundle 积分包报价
func (uc *EngineUseCase) QuoteBundle(ctx context.Context, bundleID, currency string) (*Quote, error) {
	return uc.resolve(ctx, EmployerContext{}, Action{Kind: ActionPurchaseBundle, BundleID: bundleID, Currency: currency})
}

// QuotePlan 订阅套餐报价
func (uc *EngineUseCase) QuotePlan(ctx context.Context, planID, currency string) (*Quote, error) {
	return uc.resolve(ctx, EmployerContext{}, Action{Kind: ActionSubscribe, PlanID: planID, Currency: currency})
}

// QuoteHire 聘用费用报价，无副作用
func (uc *EngineUseCase) QuoteHire(ctx context.Context, req *HireRequest) (*Quote, error) {
	emp, _, err := uc.employerContext(ctx, req.EmployerID)
	if err != nil {
		return nil, err
	}
	return uc.resolve(ctx, emp, hireAction(req))
}

func hireAction(req *HireRequest) Action {
	return Action{
		Kind:        ActionHireAtSalary,
		Salary:      req.Salary,
		Currency:    req.Currency,
		HireCount:   req.HireCount,
		DiscountPct: req.DiscountPct,
	}
}

// PurchaseBundle 购买积分包：报价后以同一关联 ID 入账
func (uc *EngineUseCase) PurchaseBundle(ctx context.Context, employerID, bundleID, currency, correlationID string) (*PurchaseResult, error) {
	if correlationID == "" {
		return nil, pricingErrors.ErrorValidation("correlation id is required")
	}
	prior, err := uc.ledger.FindEntry(ctx, employerID, correlationID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return uc.replayPurchase(ctx, prior, bundleID, correlationID)
	}

	q, err := uc.QuoteBundle(ctx, bundleID, currency)
	if err != nil {
		return nil, err
	}
	reason := fmt.Sprintf("bundle purchase %s (%d credits, %s)", q.BundleID, q.Credits, q.Display)
	res, err := uc.ledger.Credit(ctx, employerID, q.Credits, reason, correlationID)
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Quote: q, Entry: res.Entry, Duplicate: res.Duplicate}, nil
}

// replayPurchase 已入账的关联 ID 只能重放同一积分包的入账
func (uc *EngineUseCase) replayPurchase(ctx context.Context, prior *TransactionLogEntry, bundleID, correlationID string) (*PurchaseResult, error) {
	c, err := uc.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := c.Bundle(bundleID)
	if prior.Direction != DirectionCredit || !ok || prior.Amount != b.Credits {
		return nil, pricingErrors.ErrorCorrelationConflict(
			"correlation id %s was already used for %s %d", correlationID, prior.Direction, prior.Amount)
	}
	return &PurchaseResult{Entry: prior, Duplicate: true}, nil
}

// Subscribe 购买订阅套餐，替换当前生效的订阅
func (uc *EngineUseCase) Subscribe(ctx context.Context, employerID, planID, currency, correlationID string) (*SubscribeResult, error) {
	if correlationID == "" {
		return nil, pricingErrors.ErrorValidation("correlation id is required")
	}
	w, err := uc.ledger.GetWallet(ctx, employerID)
	if err != nil {
		return nil, err
	}

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyQuotaLock+employerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prior, err := uc.subscriptions.GetByCorrelation(ctx, employerID, correlationID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		// 上次激活成功但切换计费模式失败时，重试补齐钱包设置
		if prior.Status == SubscriptionActive &&
			(w.PricingModel != PricingModelSubscription || w.SubscriptionPlanID != prior.PlanID) {
			if _, err := uc.ledger.SetPricingModel(ctx, employerID, PricingModelSubscription, prior.PlanID); err != nil {
				return nil, err
			}
		}
		return &SubscribeResult{Subscription: prior, Duplicate: true}, nil
	}

	c, err := uc.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	q, err := uc.resolver.Resolve(c, EmployerContext{EmployerID: employerID},
		Action{Kind: ActionSubscribe, PlanID: planID, Currency: currency})
	if err != nil {
		return nil, err
	}
	plan, _ := c.Plan(q.PlanID)

	now := time.Now()
	sub := &Subscription{
		ID:            uuid.New().String(),
		EmployerID:    employerID,
		PlanID:        plan.ID,
		Currency:      q.Currency,
		Price:         q.FinalPrice,
		CorrelationID: correlationID,
		StartsAt:      now,
		EndsAt:        now.AddDate(0, 0, int(plan.DurationDays)),
		Status:        SubscriptionActive,
		Usage:         QuotaUsage{UsageDay: now.Format(TimeFormatDay)},
		CreatedAt:     now,
	}
	if err := uc.subscriptions.Activate(ctx, sub); err != nil {
		return nil, err
	}
	if _, err := uc.ledger.SetPricingModel(ctx, employerID, PricingModelSubscription, plan.ID); err != nil {
		return nil, err
	}

	uc.log.Infof("Subscribed: employer=%s, plan=%s v%d, ends=%s, correlation=%s",
		employerID, plan.Code, plan.Version, sub.EndsAt.Format(time.RFC3339), correlationID)
	return &SubscribeResult{Quote: q, Subscription: sub}, nil
}

// ConsumeQuota 消耗订阅配额：先用套餐额度，不足部分按配置的单价扣积分
func (uc *EngineUseCase) ConsumeQuota(ctx context.Context, employerID string, kind QuotaKind, count int64, correlationID string) (*ConsumeResult, error) {
	if count <= 0 {
		return nil, pricingErrors.ErrorValidation("invalid amount: count %d must be positive", count)
	}
	if correlationID == "" {
		return nil, pricingErrors.ErrorValidation("correlation id is required")
	}
	if _, ok := (PlanQuotas{}).Allowance(kind); !ok {
		return nil, pricingErrors.ErrorValidation("unknown quota %q", kind)
	}

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyQuotaLock+employerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prior, err := uc.subscriptions.FindConsumption(ctx, employerID, correlationID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if prior.Quota != kind || prior.Count != count {
			return nil, pricingErrors.ErrorCorrelationConflict(
				"correlation id %s was already used for %d %s", correlationID, prior.Count, prior.Quota)
		}
		return &ConsumeResult{Consumption: prior, Duplicate: true}, nil
	}

	now := time.Now()
	sub, err := uc.subscriptions.GetActive(ctx, employerID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.ActiveAt(now) {
		return nil, pricingErrors.ErrorNoActiveSubscription("employer %s has no active subscription", employerID)
	}
	c, err := uc.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	plan, ok := c.Plan(sub.PlanID)
	if !ok {
		return nil, pricingErrors.ErrorConfiguration("subscription %s references unknown plan %s", sub.ID, sub.PlanID)
	}

	usage := sub.Usage
	usage.rollDay(now)
	if kind == QuotaProfileViews && plan.Quotas.DailyProfileViewCap > 0 &&
		usage.ProfileViewsToday+count > plan.Quotas.DailyProfileViewCap {
		return nil, pricingErrors.ErrorQuotaExceeded("daily profile view cap %d reached", plan.Quotas.DailyProfileViewCap)
	}

	allowance, _ := plan.Quotas.Allowance(kind)
	remaining := allowance - usage.Used(kind)
	if remaining < 0 {
		remaining = 0
	}
	fromPlan := count
	if fromPlan > remaining {
		fromPlan = remaining
	}
	consumption := &QuotaConsumption{
		ID:             uuid.New().String(),
		EmployerID:     employerID,
		SubscriptionID: sub.ID,
		Quota:          kind,
		Count:          count,
		FromPlan:       fromPlan,
		FromCredits:    count - fromPlan,
		CorrelationID:  correlationID,
		CreatedAt:      now,
	}

	if consumption.FromCredits > 0 {
		cost := uc.conf.CreditCosts[kind]
		if cost <= 0 {
			return nil, pricingErrors.ErrorQuotaExceeded("%s quota exhausted and not purchasable with credits", kind)
		}
		consumption.CreditsDebited = consumption.FromCredits * cost
		reason := fmt.Sprintf("%s overage x%d", kind, consumption.FromCredits)
		res, err := uc.ledger.Debit(ctx, employerID, consumption.CreditsDebited, reason, correlationID)
		if err != nil {
			return nil, err
		}
		consumption.LedgerEntryID = res.Entry.ID
	}

	usage.add(kind, fromPlan)
	if kind == QuotaProfileViews {
		usage.ProfileViewsToday += count
	}
	expected := sub.Version
	sub.Usage = usage
	if err := uc.subscriptions.RecordConsumption(ctx, sub, expected, consumption); err != nil {
		uc.log.Errorf("RecordConsumption failed: employer=%s, correlation=%s, error=%v", employerID, correlationID, err)
		return nil, err
	}

	if fromPlan > 0 {
		uc.metrics.QuotaConsumeTotal.WithLabelValues(string(kind), "plan").Add(float64(fromPlan))
	}
	if consumption.FromCredits > 0 {
		uc.metrics.QuotaConsumeTotal.WithLabelValues(string(kind), "credits").Add(float64(consumption.FromCredits))
	}
	return &ConsumeResult{Consumption: consumption, Remaining: remaining - fromPlan}, nil
}

// SettleHire 按聘用付费结算；需人工定价时不落结算单也不触碰账本
func (uc *EngineUseCase) SettleHire(ctx context.Context, req *HireRequest) (*SettleResult, error) {
	if req.CorrelationID == "" {
		return nil, pricingErrors.ErrorValidation("correlation id is required")
	}
	if req.HireRef == "" {
		return nil, pricingErrors.ErrorValidation("hire reference is required")
	}
	prior, err := uc.settlements.GetByCorrelation(ctx, req.EmployerID, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return &SettleResult{Settlement: prior, Duplicate: true}, nil
	}

	w, err := uc.ledger.GetWallet(ctx, req.EmployerID)
	if err != nil {
		return nil, err
	}
	if w.PricingModel != PricingModelPayPerHire {
		return nil, pricingErrors.ErrorValidation("employer %s is not on pay-per-hire pricing", req.EmployerID)
	}

	emp := EmployerContext{EmployerID: req.EmployerID, Timing: w.Timing}
	if emp.Timing.Type == "" {
		emp.Timing.Type = TimingDeferred
	}
	q, err := uc.resolve(ctx, emp, hireAction(req))
	if err != nil {
		return nil, err
	}
	if q.RequiresManualPricing() {
		uc.log.Warnf("Hire requires manual pricing: employer=%s, hire=%s, salary=%s %s, reason=%s",
			req.EmployerID, req.HireRef, req.Salary, q.Currency, q.ManualReason)
		return &SettleResult{Quote: q}, nil
	}

	now := time.Now()
	s := &HireSettlement{
		ID:            uuid.New().String(),
		EmployerID:    req.EmployerID,
		CorrelationID: req.CorrelationID,
		HireRef:       req.HireRef,
		Salary:        req.Salary,
		Currency:      q.Currency,
		Fee:           q.Fee,
		DiscountPct:   q.DiscountPct,
		FinalPrice:    q.FinalPrice,
		Timing:        q.Timing,
		DueAt:         now,
		Source:        q.Source,
		OverrideID:    q.OverrideID,
		SlabID:        q.SlabID,
		Status:        SettlementPending,
		CreatedAt:     now,
	}
	if q.Split != nil {
		s.AdvanceAmount = q.Split.AdvanceAmount
		s.DeferredAmount = q.Split.DeferredAmount
		if q.Split.DeferredAmount.IsPositive() {
			s.DueAt = now.AddDate(0, 0, int(q.Split.DeferredDueDays))
		}
	}
	if err := uc.settlements.Create(ctx, s); err != nil {
		if pricingErrors.IsCorrelationConflict(err) {
			if prior, findErr := uc.settlements.GetByCorrelation(ctx, req.EmployerID, req.CorrelationID); findErr == nil && prior != nil {
				return &SettleResult{Settlement: prior, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	timingLabel := string(q.Timing)
	if timingLabel == "" {
		timingLabel = string(q.Source)
	}
	uc.metrics.SettlementTotal.WithLabelValues(string(q.Source), timingLabel).Inc()
	uc.log.Infof("Hire settled: employer=%s, hire=%s, final=%s, due=%s, source=%s",
		req.EmployerID, req.HireRef, FormatPrice(s.FinalPrice, s.Currency), s.DueAt.Format(time.RFC3339), s.Source)
	return &SettleResult{Quote: q, Settlement: s}, nil
}

// ApplyPaymentTiming 校验并保存企业的付款时机选择
func (uc *EngineUseCase) ApplyPaymentTiming(ctx context.Context, employerID string, timing TimingType, discountPct *decimal.Decimal) (*Quote, *Wallet, error) {
	if _, err := uc.ledger.GetWallet(ctx, employerID); err != nil {
		return nil, nil, err
	}
	q, err := uc.resolve(ctx, EmployerContext{EmployerID: employerID},
		Action{Kind: ActionApplyPaymentTiming, Timing: timing, DiscountPct: discountPct})
	if err != nil {
		return nil, nil, err
	}
	// 未指定折扣时不落具体值，结算时按当前配置的下限计算
	selection := PaymentTiming{Type: q.Timing}
	if q.Timing == TimingAdvance && discountPct != nil {
		d := *discountPct
		selection.DiscountPct = &d
	}
	w, err := uc.ledger.SetPaymentTiming(ctx, employerID, selection)
	if err != nil {
		return nil, nil, err
	}
	return q, w, nil
}
