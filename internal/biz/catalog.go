package biz

import (
	"sort"
	"time"

	pricingErrors "pricing-service/internal/errors"

	"github.com/shopspring/decimal"
)

// Feature 套餐功能开关名称
type Feature string

const (
	FeaturePremiumVisibility Feature = "premium_visibility"
	FeatureAutoScreening     Feature = "auto_screening"
	FeatureAIFeatures        Feature = "ai_features"
	FeatureEmailOutreach     Feature = "email_outreach"
	FeatureSMSOutreach       Feature = "sms_outreach"
	FeatureWhatsAppOutreach  Feature = "whatsapp_outreach"
	FeatureVideoInterviews   Feature = "video_interviews"
)

// PlanFeatures 套餐功能开关（固定字段）
type PlanFeatures struct {
	PremiumVisibility bool `json:"premium_visibility"`
	AutoScreening     bool `json:"auto_screening"`
	AIFeatures        bool `json:"ai_features"`
	EmailOutreach     bool `json:"email_outreach"`
	SMSOutreach       bool `json:"sms_outreach"`
	WhatsAppOutreach  bool `json:"whatsapp_outreach"`
	VideoInterviews   bool `json:"video_interviews"`
}

// Has 查询功能是否开启，未知功能一律视为关闭
func (f PlanFeatures) Has(feature Feature) bool {
	switch feature {
	case FeaturePremiumVisibility:
		return f.PremiumVisibility
	case FeatureAutoScreening:
		return f.AutoScreening
	case FeatureAIFeatures:
		return f.AIFeatures
	case FeatureEmailOutreach:
		return f.EmailOutreach
	case FeatureSMSOutreach:
		return f.SMSOutreach
	case FeatureWhatsAppOutreach:
		return f.WhatsAppOutreach
	case FeatureVideoInterviews:
		return f.VideoInterviews
	default:
		return false
	}
}

// QuotaKind 可消耗的配额类型
type QuotaKind string

const (
	QuotaJobPosts      QuotaKind = "job_posts"
	QuotaProfileViews  QuotaKind = "profile_views"
	QuotaAutoSchedules QuotaKind = "auto_schedules"
	QuotaPreviews      QuotaKind = "previews"
)

// PlanQuotas 套餐配额
type PlanQuotas struct {
	JobPosts            int64 `json:"job_posts" validate:"gte=0"`
	ProfileViews        int64 `json:"profile_views" validate:"gte=0"`
	DailyProfileViewCap int64 `json:"daily_profile_view_cap" validate:"gte=0"` // 0 表示不限
	AutoSchedules       int64 `json:"auto_schedules" validate:"gte=0"`
	Previews            int64 `json:"previews" validate:"gte=0"`
}

// Allowance 返回套餐内某类配额总量
func (q PlanQuotas) Allowance(kind QuotaKind) (int64, bool) {
	switch kind {
	case QuotaJobPosts:
		return q.JobPosts, true
	case QuotaProfileViews:
		return q.ProfileViews, true
	case QuotaAutoSchedules:
		return q.AutoSchedules, true
	case QuotaPreviews:
		return q.Previews, true
	default:
		return 0, false
	}
}

// CreditBundle 积分包
type CreditBundle struct {
	ID        string                     `json:"id"`
	Code      string                     `json:"code" validate:"required,max=64"`
	Version   int32                      `json:"version"`
	Name      string                     `json:"name" validate:"max=128"`
	Credits   int64                      `json:"credits" validate:"gt=0"`
	Prices    map[string]decimal.Decimal `json:"prices" validate:"required,min=1,dive,keys,len=3,endkeys"`
	Active    bool                       `json:"active"`
	CreatedAt time.Time                  `json:"created_at"`
}

// SubscriptionPlan 订阅套餐
type SubscriptionPlan struct {
	ID           string                     `json:"id"`
	Code         string                     `json:"code" validate:"required,max=64"`
	Version      int32                      `json:"version"`
	Name         string                     `json:"name" validate:"required,max=128"`
	DurationDays int32                      `json:"duration_days" validate:"gt=0"`
	Prices       map[string]decimal.Decimal `json:"prices" validate:"required,min=1,dive,keys,len=3,endkeys"`
	Quotas       PlanQuotas                 `json:"quotas"`
	Features     PlanFeatures               `json:"features"`
	Active       bool                       `json:"active"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// SalarySlab 薪资区间，区间为 [MinSalary, MaxSalary)
type SalarySlab struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	MinSalary decimal.Decimal `json:"min_salary"`
	MaxSalary decimal.Decimal `json:"max_salary"`
	PPHFee    decimal.Decimal `json:"pph_fee"`
	Active    bool            `json:"active"`
}

// Contains 薪资是否落在区间内
func (s *SalarySlab) Contains(salary decimal.Decimal) bool {
	return salary.GreaterThanOrEqual(s.MinSalary) && salary.LessThan(s.MaxSalary)
}

// TimingType 付款时机
type TimingType string

const (
	TimingAdvance  TimingType = "advance"
	TimingDeferred TimingType = "deferred"
)

// Valid 是否为已知付款时机
func (t TimingType) Valid() bool {
	return t == TimingAdvance || t == TimingDeferred
}

// PaymentTimingOption 付款时机配置
type PaymentTimingOption struct {
	Type            TimingType      `json:"type"`
	MinDiscountPct  decimal.Decimal `json:"min_discount_pct"`
	MaxDiscountPct  decimal.Decimal `json:"max_discount_pct"`
	PaymentTermDays int32           `json:"payment_term_days"`
	Customizable    bool            `json:"customizable"`
}

// PaymentCycle 企业定制方案的结算周期
type PaymentCycle string

const (
	CycleWeekly    PaymentCycle = "weekly"
	CycleMonthly   PaymentCycle = "monthly"
	CycleQuarterly PaymentCycle = "quarterly"
)

// DueDays 周期对应的天数
func (c PaymentCycle) DueDays() (int32, bool) {
	switch c {
	case CycleWeekly:
		return 7, true
	case CycleMonthly:
		return 30, true
	case CycleQuarterly:
		return 90, true
	default:
		return 0, false
	}
}

// BulkTier 批量招聘折扣档位
type BulkTier struct {
	MinHires    int32           `json:"min_hires" validate:"gt=0"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

// CustomCorporatePlan 企业定制定价方案
type CustomCorporatePlan struct {
	ID                    string          `json:"id"`
	EmployerID            string          `json:"employer_id" validate:"required,max=64"`
	Currency              string          `json:"currency" validate:"required,len=3"`
	PricePerHire          decimal.Decimal `json:"price_per_hire"`
	PaymentCycle          PaymentCycle    `json:"payment_cycle" validate:"oneof=weekly monthly quarterly"`
	AdvancePct            decimal.Decimal `json:"advance_pct"`
	DeferredPct           decimal.Decimal `json:"deferred_pct"`
	ReplacementPeriodDays int32           `json:"replacement_period_days" validate:"gte=0"`
	BulkTiers             []BulkTier      `json:"bulk_tiers" validate:"dive"`
	Terms                 string          `json:"terms"`
	Active                bool            `json:"active"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// checkSplit 校验预付/后付比例
func (p *CustomCorporatePlan) checkSplit() error {
	if p.AdvancePct.IsNegative() || p.DeferredPct.IsNegative() {
		return pricingErrors.ErrorConfiguration("override %s has a negative payment split", p.ID)
	}
	if !p.AdvancePct.Add(p.DeferredPct).Equal(hundred) {
		return pricingErrors.ErrorConfiguration("override %s payment split %s/%s does not sum to 100",
			p.ID, p.AdvancePct, p.DeferredPct)
	}
	return nil
}

// bulkDiscount 返回命中的最高档位折扣
func (p *CustomCorporatePlan) bulkDiscount(hireCount int32) (decimal.Decimal, bool) {
	var (
		best  *BulkTier
		found bool
	)
	for i := range p.BulkTiers {
		tier := &p.BulkTiers[i]
		if tier.MinHires > hireCount {
			continue
		}
		if !found || tier.MinHires > best.MinHires {
			best, found = tier, true
		}
	}
	if !found {
		return decimal.Zero, false
	}
	return best.DiscountPct, true
}

// CatalogData 构建快照所需的原始数据
type CatalogData struct {
	Bundles       []*CreditBundle
	Plans         []*SubscriptionPlan
	Slabs         []*SalarySlab
	TimingOptions []*PaymentTimingOption
	Overrides     []*CustomCorporatePlan
}

// Catalog 价目表快照，构建后只读
type Catalog struct {
	version        int64
	loadedAt       time.Time
	bundles        map[string]*CreditBundle
	plans          map[string]*SubscriptionPlan
	slabs          map[string][]*SalarySlab
	slabFaults     map[string]error
	timing         map[TimingType]*PaymentTimingOption
	overrides      map[string]*CustomCorporatePlan
	overrideFaults map[string]error
}

// NewCatalog 构建快照；错误配置按币种/企业记录，查询时才失败
func NewCatalog(version int64, data CatalogData) *Catalog {
	c := &Catalog{
		version:        version,
		loadedAt:       time.Now(),
		bundles:        make(map[string]*CreditBundle, len(data.Bundles)),
		plans:          make(map[string]*SubscriptionPlan, len(data.Plans)),
		slabs:          make(map[string][]*SalarySlab),
		slabFaults:     make(map[string]error),
		timing:         make(map[TimingType]*PaymentTimingOption, len(data.TimingOptions)),
		overrides:      make(map[string]*CustomCorporatePlan),
		overrideFaults: make(map[string]error),
	}

	for _, b := range data.Bundles {
		cp := *b
		cp.Prices = normalizePrices(b.Prices)
		c.bundles[cp.ID] = &cp
	}
	for _, p := range data.Plans {
		cp := *p
		cp.Prices = normalizePrices(p.Prices)
		c.plans[cp.ID] = &cp
	}
	for _, s := range data.Slabs {
		if !s.Active {
			continue
		}
		cp := *s
		cp.Currency = NormalizeCurrency(s.Currency)
		c.slabs[cp.Currency] = append(c.slabs[cp.Currency], &cp)
	}
	for currency, slabs := range c.slabs {
		sort.Slice(slabs, func(i, j int) bool { return slabs[i].MinSalary.LessThan(slabs[j].MinSalary) })
		if err := checkSlabSet(currency, slabs); err != nil {
			c.slabFaults[currency] = err
		}
	}
	for _, t := range data.TimingOptions {
		cp := *t
		c.timing[cp.Type] = &cp
	}
	for _, o := range data.Overrides {
		if !o.Active {
			continue
		}
		if prev, ok := c.overrides[o.EmployerID]; ok {
			c.overrideFaults[o.EmployerID] = pricingErrors.ErrorConfiguration(
				"employer %s has more than one active override (%s, %s)", o.EmployerID, prev.ID, o.ID)
			continue
		}
		cp := *o
		cp.Currency = NormalizeCurrency(o.Currency)
		cp.BulkTiers = append([]BulkTier(nil), o.BulkTiers...)
		c.overrides[cp.EmployerID] = &cp
	}
	return c
}

func normalizePrices(prices map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		out[NormalizeCurrency(k)] = v
	}
	return out
}

// checkSlabSet 校验同一币种的区间集合：从 0 开始、无重叠、无缺口
func checkSlabSet(currency string, slabs []*SalarySlab) error {
	for i, s := range slabs {
		if !s.MinSalary.LessThan(s.MaxSalary) {
			return pricingErrors.ErrorConfiguration("slab %s (%s) has min %s >= max %s", s.ID, currency, s.MinSalary, s.MaxSalary)
		}
		if s.PPHFee.IsNegative() {
			return pricingErrors.ErrorConfiguration("slab %s (%s) has negative fee", s.ID, currency)
		}
		if i == 0 {
			if !s.MinSalary.IsZero() {
				return pricingErrors.ErrorConfiguration("%s slabs leave salaries below %s uncovered", currency, s.MinSalary)
			}
			continue
		}
		prev := slabs[i-1]
		switch s.MinSalary.Cmp(prev.MaxSalary) {
		case -1:
			return pricingErrors.ErrorConfiguration("%s slabs %s and %s overlap", currency, prev.ID, s.ID)
		case 1:
			return pricingErrors.ErrorConfiguration("%s slabs have a gap between %s and %s", currency, prev.MaxSalary, s.MinSalary)
		}
	}
	return nil
}

// Version 快照版本
func (c *Catalog) Version() int64 { return c.version }

// LoadedAt 快照构建时间
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// BundleQuote 积分包报价
type BundleQuote struct {
	Bundle   *CreditBundle
	Currency string
	Price    decimal.Decimal
	Display  string
}

// QuoteBundle 积分包报价；未激活或无该币种价格视为不存在
func (c *Catalog) QuoteBundle(bundleID, currency string) (*BundleQuote, error) {
	currency = NormalizeCurrency(currency)
	b, ok := c.bundles[bundleID]
	if !ok || !b.Active {
		return nil, pricingErrors.ErrorBundleNotFound("bundle %s not found", bundleID)
	}
	price, ok := b.Prices[currency]
	if !ok {
		return nil, pricingErrors.ErrorBundleNotFound("bundle %s has no %s price", bundleID, currency)
	}
	return &BundleQuote{Bundle: b, Currency: currency, Price: price, Display: FormatPrice(price, currency)}, nil
}

// PlanQuote 订阅套餐报价
type PlanQuote struct {
	Plan     *SubscriptionPlan
	Currency string
	Price    decimal.Decimal
	Quotas   PlanQuotas
	Features PlanFeatures
	Display  string
}

// QuotePlan 订阅套餐报价
func (c *Catalog) QuotePlan(planID, currency string) (*PlanQuote, error) {
	currency = NormalizeCurrency(currency)
	p, ok := c.plans[planID]
	if !ok || !p.Active {
		return nil, pricingErrors.ErrorPlanNotFound("plan %s not found", planID)
	}
	price, ok := p.Prices[currency]
	if !ok {
		return nil, pricingErrors.ErrorPlanNotFound("plan %s has no %s price", planID, currency)
	}
	return &PlanQuote{
		Plan:     p,
		Currency: currency,
		Price:    price,
		Quotas:   p.Quotas,
		Features: p.Features,
		Display:  FormatPrice(price, currency),
	}, nil
}

// Bundle 按 ID 查询积分包（包含已下线的历史版本）
func (c *Catalog) Bundle(bundleID string) (*CreditBundle, bool) {
	b, ok := c.bundles[bundleID]
	return b, ok
}

// Plan 按 ID 查询套餐（包含已下线的历史版本）
func (c *Catalog) Plan(planID string) (*SubscriptionPlan, bool) {
	p, ok := c.plans[planID]
	return p, ok
}

// SlabOutcome 区间查询结果
type SlabOutcome string

const (
	SlabMatched          SlabOutcome = "matched"
	SlabAboveCeiling     SlabOutcome = "above_ceiling"
	SlabNoSlabConfigured SlabOutcome = "no_slab_configured"
)

// SlabQuote 区间报价
type SlabQuote struct {
	Outcome  SlabOutcome
	Currency string
	Fee      decimal.Decimal
	Slab     *SalarySlab
	Ceiling  decimal.Decimal
}

// QuoteSlabFee 按月薪查询 PPH 费用
func (c *Catalog) QuoteSlabFee(salary decimal.Decimal, currency string) (*SlabQuote, error) {
	currency = NormalizeCurrency(currency)
	if salary.IsNegative() {
		return nil, pricingErrors.ErrorValidation("salary must not be negative")
	}
	if err, ok := c.slabFaults[currency]; ok {
		return nil, err
	}
	slabs := c.slabs[currency]
	if len(slabs) == 0 {
		return &SlabQuote{Outcome: SlabNoSlabConfigured, Currency: currency}, nil
	}
	ceiling := slabs[len(slabs)-1].MaxSalary
	if salary.GreaterThanOrEqual(ceiling) {
		return &SlabQuote{Outcome: SlabAboveCeiling, Currency: currency, Ceiling: ceiling}, nil
	}
	for _, s := range slabs {
		if s.Contains(salary) {
			return &SlabQuote{Outcome: SlabMatched, Currency: currency, Fee: s.PPHFee, Slab: s, Ceiling: ceiling}, nil
		}
	}
	// 集合已校验为从 0 开始连续，走到这里说明数据被破坏
	return nil, pricingErrors.ErrorConfiguration("%s slabs do not cover salary %s", currency, salary)
}

// FindActiveOverride 查询企业当前生效的定制方案
func (c *Catalog) FindActiveOverride(employerID string) (*CustomCorporatePlan, error) {
	if err, ok := c.overrideFaults[employerID]; ok {
		return nil, err
	}
	return c.overrides[employerID], nil
}

// TimingOption 查询付款时机配置
func (c *Catalog) TimingOption(t TimingType) (*PaymentTimingOption, error) {
	opt, ok := c.timing[t]
	if !ok {
		return nil, pricingErrors.ErrorConfiguration("payment timing option %s is not configured", t)
	}
	return opt, nil
}

// ActiveBundles 上架中的积分包，按积分数排序
func (c *Catalog) ActiveBundles() []*CreditBundle {
	out := make([]*CreditBundle, 0, len(c.bundles))
	for _, b := range c.bundles {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits == out[j].Credits {
			return out[i].Code < out[j].Code
		}
		return out[i].Credits < out[j].Credits
	})
	return out
}

// ActivePlans 上架中的订阅套餐
func (c *Catalog) ActivePlans() []*SubscriptionPlan {
	out := make([]*SubscriptionPlan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Slabs 某币种生效中的区间（已排序）
func (c *Catalog) Slabs(currency string) []*SalarySlab {
	return c.slabs[NormalizeCurrency(currency)]
}
