package biz

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"
	"pricing-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// CatalogRepo 价目表数据层接口
type CatalogRepo interface {
	LoadCatalog(ctx context.Context) (*CatalogData, error)

	CreateBundle(ctx context.Context, b *CreditBundle) error
	GetBundle(ctx context.Context, id string) (*CreditBundle, error)
	// ReviseBundle 在同一事务中下线 prevID 并写入新版本
	ReviseBundle(ctx context.Context, prevID string, next *CreditBundle) error
	SetBundleActive(ctx context.Context, id string, active bool) error

	CreatePlan(ctx context.Context, p *SubscriptionPlan) error
	GetPlan(ctx context.Context, id string) (*SubscriptionPlan, error)
	RevisePlan(ctx context.Context, prevID string, next *SubscriptionPlan) error
	SetPlanActive(ctx context.Context, id string, active bool) error

	// ReplaceSlabs 下线该币种全部生效区间并写入新集合
	ReplaceSlabs(ctx context.Context, currency string, slabs []*SalarySlab) error
	SaveTimingOption(ctx context.Context, opt *PaymentTimingOption) error

	CreateOverride(ctx context.Context, o *CustomCorporatePlan) error
	GetOverride(ctx context.Context, id string) (*CustomCorporatePlan, error)
	// SetOverrideActive 激活时同时下线该企业其他方案
	SetOverrideActive(ctx context.Context, id string, active bool) error
}

// CatalogVersionRepo 价目表版本号（跨进程广播）
type CatalogVersionRepo interface {
	CurrentVersion(ctx context.Context) (int64, error)
	BumpVersion(ctx context.Context) (int64, error)
}

// CatalogUseCase 价目表与企业定制方案
type CatalogUseCase struct {
	repo     CatalogRepo
	versions CatalogVersionRepo
	current  atomic.Pointer[Catalog]
	group    singleflight.Group
	log      *log.Helper
	metrics  *metrics.PricingMetrics
}

// NewCatalogUseCase 创建价目表 UseCase
func NewCatalogUseCase(repo CatalogRepo, versions CatalogVersionRepo, logger log.Logger) *CatalogUseCase {
	return &CatalogUseCase{
		repo:     repo,
		versions: versions,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

// Snapshot 返回当前快照，首次调用时加载
func (uc *CatalogUseCase) Snapshot(ctx context.Context) (*Catalog, error) {
	if c := uc.current.Load(); c != nil {
		return c, nil
	}
	return uc.reload(ctx)
}

// Refresh 版本号变化时重新加载快照，返回是否发生了替换
func (uc *CatalogUseCase) Refresh(ctx context.Context) (bool, error) {
	version, err := uc.versions.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	if c := uc.current.Load(); c != nil && c.Version() == version {
		return false, nil
	}
	if _, err := uc.reload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (uc *CatalogUseCase) reload(ctx context.Context) (*Catalog, error) {
	v, err, _ := uc.group.Do("catalog", func() (interface{}, error) {
		version, err := uc.versions.CurrentVersion(ctx)
		if err != nil {
			return nil, err
		}
		data, err := uc.repo.LoadCatalog(ctx)
		if err != nil {
			return nil, err
		}
		c := NewCatalog(version, *data)
		uc.current.Store(c)
		for currency, fault := range c.slabFaults {
			uc.log.Errorf("Catalog v%d: %s slabs unusable: %v", version, currency, fault)
		}
		for employerID, fault := range c.overrideFaults {
			uc.log.Errorf("Catalog v%d: override for employer=%s unusable: %v", version, employerID, fault)
		}
		return c, nil
	})
	if err != nil {
		uc.metrics.CatalogRefreshTotal.WithLabelValues(constants.ResultFailed).Inc()
		uc.log.Errorf("Catalog reload failed: %v", err)
		return nil, err
	}
	c := v.(*Catalog)
	uc.metrics.CatalogRefreshTotal.WithLabelValues(constants.ResultSuccess).Inc()
	uc.metrics.CatalogVersion.Set(float64(c.Version()))
	return c, nil
}

// afterWrite 广播新版本并刷新本进程快照
func (uc *CatalogUseCase) afterWrite(ctx context.Context, what string) {
	version, err := uc.versions.BumpVersion(ctx)
	if err != nil {
		uc.log.Errorf("BumpVersion failed after %s: %v", what, err)
	} else {
		uc.log.Infof("Catalog changed: %s, version=%d", what, version)
	}
	if _, err := uc.reload(ctx); err != nil {
		uc.log.Warnf("Local catalog reload failed after %s: %v", what, err)
	}
}

func checkBundle(b *CreditBundle) error {
	if err := validateStruct(b); err != nil {
		return err
	}
	return checkPrices(b.Prices)
}

// CreateBundle 新建积分包（版本 1）
func (uc *CatalogUseCase) CreateBundle(ctx context.Context, b *CreditBundle) (*CreditBundle, error) {
	if err := checkBundle(b); err != nil {
		return nil, err
	}
	created := *b
	created.ID = uuid.New().String()
	created.Version = 1
	created.Active = true
	created.Prices = normalizePrices(b.Prices)
	created.CreatedAt = time.Now()
	if err := uc.repo.CreateBundle(ctx, &created); err != nil {
		return nil, err
	}
	uc.afterWrite(ctx, "bundle "+created.Code+" created")
	return &created, nil
}

// ReviseBundle 修改积分包：生成新版本，旧版本下线但保留供历史引用
func (uc *CatalogUseCase) ReviseBundle(ctx context.Context, id string, changes *CreditBundle) (*CreditBundle, error) {
	prev, err := uc.repo.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, pricingErrors.ErrorBundleNotFound("bundle %s not found", id)
	}
	next := *changes
	next.Code = prev.Code
	if err := checkBundle(&next); err != nil {
		return nil, err
	}
	next.ID = uuid.New().String()
	next.Version = prev.Version + 1
	next.Active = true
	next.Prices = normalizePrices(changes.Prices)
	next.CreatedAt = time.Now()
	if err := uc.repo.ReviseBundle(ctx, prev.ID, &next); err != nil {
		return nil, err
	}
	uc.afterWrite(ctx, "bundle "+next.Code+" revised")
	return &next, nil
}

// SetBundleActive 上架/下架积分包
func (uc *CatalogUseCase) SetBundleActive(ctx context.Context, id string, active bool) error {
	prev, err := uc.repo.GetBundle(ctx, id)
	if err != nil {
		return err
	}
	if prev == nil {
		return pricingErrors.ErrorBundleNotFound("bundle %s not found", id)
	}
	if err := uc.repo.SetBundleActive(ctx, id, active); err != nil {
		return err
	}
	uc.afterWrite(ctx, "bundle "+prev.Code+" toggled")
	return nil
}

func checkPlan(p *SubscriptionPlan) error {
	if err := validateStruct(p); err != nil {
		return err
	}
	return checkPrices(p.Prices)
}

// CreatePlan 新建订阅套餐
func (uc *CatalogUseCase) CreatePlan(ctx context.Context, p *SubscriptionPlan) (*SubscriptionPlan, error) {
	if err := checkPlan(p); err != nil {
		return nil, err
	}
	created := *p
	created.ID = uuid.New().String()
	created.Version = 1
	created.Active = true
	created.Prices = normalizePrices(p.Prices)
	created.CreatedAt = time.Now()
	if err := uc.repo.CreatePlan(ctx, &created); err != nil {
		return nil, err
	}
	uc.afterWrite(ctx, "plan "+created.Code+" created")
	return &created, nil
}

// RevisePlan 修改套餐：生成新版本，已有订阅仍指向旧版本
func (uc *CatalogUseCase) RevisePlan(ctx context.Context, id string, changes *SubscriptionPlan) (*SubscriptionPlan, error) {
	prev, err := uc.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, pricingErrors.ErrorPlanNotFound("plan %s not found", id)
	}
	next := *changes
	next.Code = prev.Code
	if err := checkPlan(&next); err != nil {
		return nil, err
	}
	next.ID = uuid.New().String()
	next.Version = prev.Version + 1
	next.Active = true
	next.Prices = normalizePrices(changes.Prices)
	next.CreatedAt = time.Now()
	if err := uc.repo.RevisePlan(ctx, prev.ID, &next); err != nil {
		return nil, err
	}
	uc.afterWrite(ctx, "plan "+next.Code+" revised")
	return &next, nil
}

// SetPlanActive 上架/下架套餐
func (uc *CatalogUseCase) SetPlanActive(ctx context.Context, id string, active bool) error {
	prev, err := uc.repo.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if prev == nil {
		return pricingErrors.ErrorPlanNotFound("plan %s not found", id)
	}
	if err := uc.repo.SetPlanActive(ctx, id, active); err != nil {
		return err
	}
	uc.afterWrite(ctx, "plan "+prev.Code+" toggled")
	return nil
}

// ReplaceSlabs 整体替换某币种的薪资区间；空集合表示清空
func (uc *CatalogUseCase) ReplaceSlabs(ctx context.Context, currency string, slabs []*SalarySlab) ([]*SalarySlab, error) {
	currency = NormalizeCurrency(currency)
	if len(currency) != 3 {
		return nil, pricingErrors.ErrorValidation("currency %q is invalid", currency)
	}
	next := make([]*SalarySlab, 0, len(slabs))
	for _, s := range slabs {
		cp := *s
		cp.ID = uuid.New().String()
		cp.Currency = currency
		cp.Active = true
		if err := validateStruct(&cp); err != nil {
			return nil, err
		}
		next = append(next, &cp)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].MinSalary.LessThan(next[j].MinSalary) })
	if err := checkSlabSet(currency, next); err != nil {
		return nil, pricingErrors.ErrorValidation("rejected %s slab set", currency).WithCause(err)
	}
	if err := uc.repo.ReplaceSlabs(ctx, currency, next); err != nil {
		return nil, err
	}
	uc.afterWrite(ctx, currency+" slabs replaced")
	return next, nil
}

// SaveTimingOption 保存付款时机配置
func (uc *CatalogUseCase) SaveTimingOption(ctx context.Context, opt *PaymentTimingOption) error {
	switch opt.Type {
	case TimingAdvance:
		if err := checkPercent("min_discount_pct", opt.MinDiscountPct); err != nil {
			return err
		}
		if err := checkPercent("max_discount_pct", opt.MaxDiscountPct); err != nil {
			return err
		}
		if opt.MinDiscountPct.GreaterThan(opt.MaxDiscountPct) {
			return pricingErrors.ErrorValidation("advance discount range [%s, %s] is inverted", opt.MinDiscountPct, opt.MaxDiscountPct)
		}
		opt.Customizable = true
		opt.PaymentTermDays = 0
	case TimingDeferred:
		if opt.PaymentTermDays <= 0 {
			return pricingErrors.ErrorValidation("deferred payment term must be positive")
		}
		opt.MinDiscountPct = decimal.Zero
		opt.MaxDiscountPct = decimal.Zero
		opt.Customizable = false
	default:
		return pricingErrors.ErrorValidation("unknown payment timing %q", opt.Type)
	}
	if err := uc.repo.SaveTimingOption(ctx, opt); err != nil {
		return err
	}
	uc.afterWrite(ctx, "timing option "+string(opt.Type)+" saved")
	return nil
}

func checkOverride(o *CustomCorporatePlan) error {
	if err := validateStruct(o); err != nil {
		return err
	}
	if o.PricePerHire.IsNegative() {
		return pricingErrors.ErrorValidation("price_per_hire must not be negative")
	}
	if err := o.checkSplit(); err != nil {
		return pricingErrors.ErrorValidation("%s", err.Error())
	}
	for _, tier := range o.BulkTiers {
		if err := checkPercent("bulk tier discount", tier.DiscountPct); err != nil {
			return err
		}
	}
	return nil
}

// CreateOverride 新建企业定制方案；Active 为 true 时同时下线该企业其他方案
func (uc *CatalogUseCase) CreateOverride(ctx context.Context, o *CustomCorporatePlan) (*CustomCorporatePlan, error) {
	created := *o
	created.Currency = NormalizeCurrency(o.Currency)
	if err := checkOverride(&created); err != nil {
		return nil, err
	}
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	if err := uc.repo.CreateOverride(ctx, &created); err != nil {
		return nil, err
	}
	uc.afterWrite(ctx, "override for employer "+created.EmployerID+" created")
	return &created, nil
}

// SetOverrideActive 启用/停用企业定制方案
func (uc *CatalogUseCase) SetOverrideActive(ctx context.Context, id string, active bool) error {
	o, err := uc.repo.GetOverride(ctx, id)
	if err != nil {
		return err
	}
	if o == nil {
		return pricingErrors.ErrorOverrideNotFound("override %s not found", id)
	}
	if err := uc.repo.SetOverrideActive(ctx, id, active); err != nil {
		return err
	}
	uc.afterWrite(ctx, "override for employer "+o.EmployerID+" toggled")
	return nil
}
