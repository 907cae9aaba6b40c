package biz

import (
	"time"

	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"
	"pricing-service/internal/metrics"

	"github.com/shopspring/decimal"
)

// ActionKind 定价动作
type ActionKind string

const (
	ActionPurchaseBundle     ActionKind = "purchase_bundle"
	ActionSubscribe          ActionKind = "subscribe"
	ActionHireAtSalary       ActionKind = "hire_at_salary"
	ActionApplyPaymentTiming ActionKind = "apply_payment_timing"
)

// Action 定价请求
type Action struct {
	Kind        ActionKind
	BundleID    string
	PlanID      string
	Currency    string
	Salary      decimal.Decimal
	HireCount   int32
	Timing      TimingType
	DiscountPct *decimal.Decimal // 单次请求的折扣，nil 表示沿用钱包设置
}

// PaymentTiming 企业当前选择的付款时机
type PaymentTiming struct {
	Type        TimingType       `json:"type"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
}

// EmployerContext 定价时所需的企业上下文
type EmployerContext struct {
	EmployerID string
	Timing     PaymentTiming
}

// QuoteStatus 报价状态
type QuoteStatus string

const (
	QuotePriced                QuoteStatus = "priced"
	QuoteManualPricingRequired QuoteStatus = "manual_pricing_required"
)

// ManualReason 需人工定价的原因
type ManualReason string

const (
	ManualAboveCeiling     ManualReason = "above_ceiling"
	ManualNoSlabConfigured ManualReason = "no_slab_configured"
)

// PriceSource 价格来源
type PriceSource string

const (
	SourceBundle   PriceSource = "bundle"
	SourcePlan     PriceSource = "plan"
	SourceSlab     PriceSource = "slab"
	SourceOverride PriceSource = "override"
	SourceTiming   PriceSource = "timing"
)

// PaymentSplit 预付/后付拆分
type PaymentSplit struct {
	AdvancePct      decimal.Decimal `json:"advance_pct"`
	DeferredPct     decimal.Decimal `json:"deferred_pct"`
	AdvanceAmount   decimal.Decimal `json:"advance_amount"`
	DeferredAmount  decimal.Decimal `json:"deferred_amount"`
	DeferredDueDays int32           `json:"deferred_due_days"`
}

// Quote 定价结果
type Quote struct {
	Action          ActionKind      `json:"action"`
	Status          QuoteStatus     `json:"status"`
	ManualReason    ManualReason    `json:"manual_reason,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	Fee             decimal.Decimal `json:"fee"`
	DiscountPct     decimal.Decimal `json:"discount_pct"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	Display         string          `json:"display,omitempty"`
	Credits         int64           `json:"credits,omitempty"`
	BundleID        string          `json:"bundle_id,omitempty"`
	PlanID          string          `json:"plan_id,omitempty"`
	Source          PriceSource     `json:"source,omitempty"`
	OverrideID      string          `json:"override_id,omitempty"`
	SlabID          string          `json:"slab_id,omitempty"`
	Timing          TimingType      `json:"timing,omitempty"`
	PaymentTermDays int32           `json:"payment_term_days,omitempty"`
	Split           *PaymentSplit   `json:"split,omitempty"`
	CatalogVersion  int64           `json:"catalog_version"`
}

// RequiresManualPricing 是否需要人工定价
func (q *Quote) RequiresManualPricing() bool {
	return q.Status == QuoteManualPricingRequired
}

// Resolver 定价解析器，只读取传入的快照
type Resolver struct {
	metrics *metrics.PricingMetrics
}

// NewResolver 创建定价解析器
func NewResolver() *Resolver {
	return &Resolver{metrics: metrics.GetMetrics()}
}

// Resolve 根据动作类型分派
func (r *Resolver) Resolve(c *Catalog, emp EmployerContext, a Action) (q *Quote, err error) {
	start := time.Now()
	defer func() {
		r.observe(a.Kind, start, q, err)
	}()

	switch a.Kind {
	case ActionPurchaseBundle:
		return r.resolveBundle(c, a)
	case ActionSubscribe:
		return r.resolvePlan(c, a)
	case ActionHireAtSalary:
		return r.resolveHire(c, emp, a)
	case ActionApplyPaymentTiming:
		return r.resolveTiming(c, a.Timing, a.DiscountPct)
	default:
		return nil, pricingErrors.ErrorValidation("unknown action %q", a.Kind)
	}
}

func (r *Resolver) observe(kind ActionKind, start time.Time, q *Quote, err error) {
	if r.metrics == nil {
		return
	}
	result := constants.QuoteResultPriced
	switch {
	case pricingErrors.IsConfiguration(err):
		result = constants.QuoteResultConfigError
	case err != nil:
		result = constants.QuoteResultRejected
	case q.RequiresManualPricing():
		result = constants.QuoteResultManual
		r.metrics.ManualPricing.WithLabelValues(string(q.ManualReason), q.Currency).Inc()
	}
	r.metrics.QuoteTotal.WithLabelValues(string(kind), result).Inc()
	r.metrics.QuoteDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
}

func (r *Resolver) resolveBundle(c *Catalog, a Action) (*Quote, error) {
	bq, err := c.QuoteBundle(a.BundleID, a.Currency)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Action:         ActionPurchaseBundle,
		Status:         QuotePriced,
		Currency:       bq.Currency,
		Fee:            bq.Price,
		FinalPrice:     bq.Price,
		Display:        bq.Display,
		Credits:        bq.Bundle.Credits,
		BundleID:       bq.Bundle.ID,
		Source:         SourceBundle,
		CatalogVersion: c.Version(),
	}, nil
}

func (r *Resolver) resolvePlan(c *Catalog, a Action) (*Quote, error) {
	pq, err := c.QuotePlan(a.PlanID, a.Currency)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Action:         ActionSubscribe,
		Status:         QuotePriced,
		Currency:       pq.Currency,
		Fee:            pq.Price,
		FinalPrice:     pq.Price,
		Display:        pq.Display,
		PlanID:         pq.Plan.ID,
		Source:         SourcePlan,
		CatalogVersion: c.Version(),
	}, nil
}

func (r *Resolver) resolveHire(c *Catalog, emp EmployerContext, a Action) (*Quote, error) {
	if a.Salary.IsNegative() {
		return nil, pricingErrors.ErrorValidation("salary must not be negative")
	}
	hireCount := a.HireCount
	if hireCount <= 0 {
		hireCount = 1
	}

	override, err := c.FindActiveOverride(emp.EmployerID)
	if err != nil {
		return nil, err
	}
	if override != nil {
		return r.resolveOverride(c, override, hireCount)
	}

	sq, err := c.QuoteSlabFee(a.Salary, a.Currency)
	if err != nil {
		return nil, err
	}
	switch sq.Outcome {
	case SlabAboveCeiling:
		return manualQuote(c, sq.Currency, ManualAboveCeiling), nil
	case SlabNoSlabConfigured:
		return manualQuote(c, sq.Currency, ManualNoSlabConfigured), nil
	}

	timing := emp.Timing.Type
	if timing == "" {
		timing = TimingDeferred
	}
	requested := a.DiscountPct
	if requested == nil {
		requested = emp.Timing.DiscountPct
	}
	tq, err := r.resolveTiming(c, timing, requested)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Action:          ActionHireAtSalary,
		Status:          QuotePriced,
		Currency:        sq.Currency,
		Fee:             sq.Fee,
		DiscountPct:     tq.DiscountPct,
		Source:          SourceSlab,
		SlabID:          sq.Slab.ID,
		Timing:          timing,
		PaymentTermDays: tq.PaymentTermDays,
		CatalogVersion:  c.Version(),
	}
	if timing == TimingAdvance {
		q.FinalPrice = applyDiscount(sq.Fee, tq.DiscountPct, sq.Currency)
		q.Split = &PaymentSplit{AdvancePct: hundred, AdvanceAmount: q.FinalPrice}
	} else {
		q.FinalPrice = RoundMoney(sq.Fee, sq.Currency)
		q.Split = &PaymentSplit{DeferredPct: hundred, DeferredAmount: q.FinalPrice, DeferredDueDays: tq.PaymentTermDays}
	}
	q.Display = FormatPrice(q.FinalPrice, q.Currency)
	return q, nil
}

func manualQuote(c *Catalog, currency string, reason ManualReason) *Quote {
	return &Quote{
		Action:         ActionHireAtSalary,
		Status:         QuoteManualPricingRequired,
		ManualReason:   reason,
		Currency:       currency,
		Source:         SourceSlab,
		CatalogVersion: c.Version(),
	}
}

// resolveOverride 企业定制方案完全决定费用与拆分，忽略通用付款时机
func (r *Resolver) resolveOverride(c *Catalog, o *CustomCorporatePlan, hireCount int32) (*Quote, error) {
	if err := o.checkSplit(); err != nil {
		return nil, err
	}
	dueDays, ok := o.PaymentCycle.DueDays()
	if !ok {
		return nil, pricingErrors.ErrorConfiguration("override %s has unknown payment cycle %q", o.ID, o.PaymentCycle)
	}
	if o.PricePerHire.IsNegative() {
		return nil, pricingErrors.ErrorConfiguration("override %s has negative price per hire", o.ID)
	}

	final := RoundMoney(o.PricePerHire, o.Currency)
	discount := decimal.Zero
	if pct, ok := o.bulkDiscount(hireCount); ok {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return nil, pricingErrors.ErrorConfiguration("override %s has bulk discount %s outside [0, 100]", o.ID, pct)
		}
		discount = pct
		final = applyDiscount(o.PricePerHire, pct, o.Currency)
	}
	advance := portion(final, o.AdvancePct, o.Currency)

	return &Quote{
		Action:      ActionHireAtSalary,
		Status:      QuotePriced,
		Currency:    o.Currency,
		Fee:         o.PricePerHire,
		DiscountPct: discount,
		FinalPrice:  final,
		Display:     FormatPrice(final, o.Currency),
		Source:      SourceOverride,
		OverrideID:  o.ID,
		Split: &PaymentSplit{
			AdvancePct:      o.AdvancePct,
			DeferredPct:     o.DeferredPct,
			AdvanceAmount:   advance,
			DeferredAmount:  final.Sub(advance),
			DeferredDueDays: dueDays,
		},
		PaymentTermDays: dueDays,
		CatalogVersion:  c.Version(),
	}, nil
}

// resolveTiming 校验付款时机与折扣请求：预付折扣必须落在区间内（不截断），后付不允许折扣
func (r *Resolver) resolveTiming(c *Catalog, t TimingType, requested *decimal.Decimal) (*Quote, error) {
	if !t.Valid() {
		return nil, pricingErrors.ErrorValidation("unknown payment timing %q", t)
	}
	opt, err := c.TimingOption(t)
	if err != nil {
		return nil, err
	}
	q := &Quote{
		Action:         ActionApplyPaymentTiming,
		Status:         QuotePriced,
		Source:         SourceTiming,
		Timing:         t,
		CatalogVersion: c.Version(),
	}

	switch t {
	case TimingAdvance:
		if opt.MinDiscountPct.IsNegative() || opt.MaxDiscountPct.GreaterThan(hundred) || opt.MinDiscountPct.GreaterThan(opt.MaxDiscountPct) {
			return nil, pricingErrors.ErrorConfiguration("advance discount range [%s, %s] is malformed", opt.MinDiscountPct, opt.MaxDiscountPct)
		}
		discount := opt.MinDiscountPct
		if requested != nil {
			discount = *requested
			if discount.LessThan(opt.MinDiscountPct) || discount.GreaterThan(opt.MaxDiscountPct) {
				return nil, pricingErrors.ErrorValidation(
					"discount %s%% is outside the advance range [%s, %s]", discount, opt.MinDiscountPct, opt.MaxDiscountPct)
			}
		}
		q.DiscountPct = discount
	case TimingDeferred:
		if opt.PaymentTermDays <= 0 {
			return nil, pricingErrors.ErrorConfiguration("deferred payment term is not configured")
		}
		if requested != nil && !requested.IsZero() {
			return nil, pricingErrors.ErrorValidation("deferred payment does not allow a discount")
		}
		q.PaymentTermDays = opt.PaymentTermDays
	}
	return q, nil
}
