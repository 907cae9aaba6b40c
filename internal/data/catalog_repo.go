package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pricing-service/internal/biz"
	"pricing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// catalogRepo 价目表数据访问
type catalogRepo struct {
	data *Data
	log  *log.Helper
}

// NewCatalogRepo 创建价目表 repo（返回 biz.CatalogRepo 接口）
func NewCatalogRepo(data *Data, logger log.Logger) biz.CatalogRepo {
	return &catalogRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// LoadCatalog 加载全部积分包/套餐（含历史版本）与生效中的区间、方案
func (r *catalogRepo) LoadCatalog(ctx context.Context) (*biz.CatalogData, error) {
	db := r.data.db.WithContext(ctx)

	var bundles []model.CreditBundle
	if err := db.Find(&bundles).Error; err != nil {
		return nil, fmt.Errorf("failed to load credit bundles: %w", err)
	}
	var plans []model.SubscriptionPlan
	if err := db.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscription plans: %w", err)
	}
	var slabs []model.SalarySlab
	if err := db.Where("active = ?", true).Order("currency, min_salary").Find(&slabs).Error; err != nil {
		return nil, fmt.Errorf("failed to load salary slabs: %w", err)
	}
	var timing []model.PaymentTimingOption
	if err := db.Find(&timing).Error; err != nil {
		return nil, fmt.Errorf("failed to load payment timing options: %w", err)
	}
	var overrides []model.CustomCorporatePlan
	if err := db.Where("active = ?", true).Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("failed to load corporate overrides: %w", err)
	}

	out := &biz.CatalogData{}
	for i := range bundles {
		b, err := toBizBundle(&bundles[i])
		if err != nil {
			return nil, err
		}
		out.Bundles = append(out.Bundles, b)
	}
	for i := range plans {
		p, err := toBizPlan(&plans[i])
		if err != nil {
			return nil, err
		}
		out.Plans = append(out.Plans, p)
	}
	for i := range slabs {
		out.Slabs = append(out.Slabs, toBizSlab(&slabs[i]))
	}
	for i := range timing {
		out.TimingOptions = append(out.TimingOptions, toBizTiming(&timing[i]))
	}
	for i := range overrides {
		o, err := toBizOverride(&overrides[i])
		if err != nil {
			return nil, err
		}
		out.Overrides = append(out.Overrides, o)
	}
	return out, nil
}

// ========== 积分包 ==========

func (r *catalogRepo) CreateBundle(ctx context.Context, b *biz.CreditBundle) error {
	m, err := fromBizBundle(b)
	if err != nil {
		return err
	}
	return r.data.db.WithContext(ctx).Create(m).Error
}

func (r *catalogRepo) GetBundle(ctx context.Context, id string) (*biz.CreditBundle, error) {
	var m model.CreditBundle
	if err := r.data.db.WithContext(ctx).Where("credit_bundle_id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizBundle(&m)
}

func (r *catalogRepo) ReviseBundle(ctx context.Context, prevID string, next *biz.CreditBundle) error {
	m, err := fromBizBundle(next)
	if err != nil {
		return err
	}
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CreditBundle{}).Where("credit_bundle_id = ?", prevID).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(m).Error
	})
}

func (r *catalogRepo) SetBundleActive(ctx context.Context, id string, active bool) error {
	return r.data.db.WithContext(ctx).Model(&model.CreditBundle{}).
		Where("credit_bundle_id = ?", id).Update("active", active).Error
}

// ========== 订阅套餐 ==========

func (r *catalogRepo) CreatePlan(ctx context.Context, p *biz.SubscriptionPlan) error {
	m, err := fromBizPlan(p)
	if err != nil {
		return err
	}
	return r.data.db.WithContext(ctx).Create(m).Error
}

func (r *catalogRepo) GetPlan(ctx context.Context, id string) (*biz.SubscriptionPlan, error) {
	var m model.SubscriptionPlan
	if err := r.data.db.WithContext(ctx).Where("subscription_plan_id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizPlan(&m)
}

func (r *catalogRepo) RevisePlan(ctx context.Context, prevID string, next *biz.SubscriptionPlan) error {
	m, err := fromBizPlan(next)
	if err != nil {
		return err
	}
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.SubscriptionPlan{}).Where("subscription_plan_id = ?", prevID).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(m).Error
	})
}

func (r *catalogRepo) SetPlanActive(ctx context.Context, id string, active bool) error {
	return r.data.db.WithContext(ctx).Model(&model.SubscriptionPlan{}).
		Where("subscription_plan_id = ?", id).Update("active", active).Error
}

// ========== 薪资区间 / 付款时机 ==========

func (r *catalogRepo) ReplaceSlabs(ctx context.Context, currency string, slabs []*biz.SalarySlab) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.SalarySlab{}).
			Where("currency = ? AND active = ?", currency, true).
			Update("active", false).Error; err != nil {
			return err
		}
		if len(slabs) == 0 {
			return nil
		}
		rows := make([]model.SalarySlab, 0, len(slabs))
		for _, s := range slabs {
			rows = append(rows, model.SalarySlab{
				SalarySlabID: s.ID,
				Currency:     s.Currency,
				MinSalary:    s.MinSalary,
				MaxSalary:    s.MaxSalary,
				PPHFee:       s.PPHFee,
				Active:       true,
			})
		}
		return tx.Create(&rows).Error
	})
}

func (r *catalogRepo) SaveTimingOption(ctx context.Context, opt *biz.PaymentTimingOption) error {
	m := &model.PaymentTimingOption{
		Type:            string(opt.Type),
		MinDiscountPct:  opt.MinDiscountPct,
		MaxDiscountPct:  opt.MaxDiscountPct,
		PaymentTermDays: opt.PaymentTermDays,
		Customizable:    opt.Customizable,
	}
	return r.data.db.WithContext(ctx).Save(m).Error
}

// ========== 企业定制方案 ==========

func (r *catalogRepo) CreateOverride(ctx context.Context, o *biz.CustomCorporatePlan) error {
	m, err := fromBizOverride(o)
	if err != nil {
		return err
	}
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if o.Active {
			if err := deactivateOverrides(tx, o.EmployerID); err != nil {
				return err
			}
		}
		return tx.Create(m).Error
	})
}

func (r *catalogRepo) GetOverride(ctx context.Context, id string) (*biz.CustomCorporatePlan, error) {
	var m model.CustomCorporatePlan
	if err := r.data.db.WithContext(ctx).Where("custom_corporate_plan_id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizOverride(&m)
}

func (r *catalogRepo) SetOverrideActive(ctx context.Context, id string, active bool) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.CustomCorporatePlan
		if err := tx.Where("custom_corporate_plan_id = ?", id).First(&m).Error; err != nil {
			return err
		}
		if active {
			if err := deactivateOverrides(tx, m.EmployerID); err != nil {
				return err
			}
		}
		return tx.Model(&model.CustomCorporatePlan{}).
			Where("custom_corporate_plan_id = ?", id).Update("active", active).Error
	})
}

// deactivateOverrides 保证同一企业至多一个生效方案
func deactivateOverrides(tx *gorm.DB, employerID string) error {
	return tx.Model(&model.CustomCorporatePlan{}).
		Where("employer_id = ? AND active = ?", employerID, true).
		Update("active", false).Error
}

// ========== 转换 ==========

func marshalJSON(v interface{}) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON(raw datatypes.JSON, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func fromBizBundle(b *biz.CreditBundle) (*model.CreditBundle, error) {
	prices, err := marshalJSON(b.Prices)
	if err != nil {
		return nil, err
	}
	return &model.CreditBundle{
		CreditBundleID: b.ID,
		Code:           b.Code,
		Version:        b.Version,
		Name:           b.Name,
		Credits:        b.Credits,
		Prices:         prices,
		Active:         b.Active,
		CreatedAt:      b.CreatedAt,
	}, nil
}

func toBizBundle(m *model.CreditBundle) (*biz.CreditBundle, error) {
	prices := map[string]decimal.Decimal{}
	if err := unmarshalJSON(m.Prices, &prices); err != nil {
		return nil, fmt.Errorf("bundle %s has malformed prices: %w", m.CreditBundleID, err)
	}
	return &biz.CreditBundle{
		ID:        m.CreditBundleID,
		Code:      m.Code,
		Version:   m.Version,
		Name:      m.Name,
		Credits:   m.Credits,
		Prices:    prices,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}, nil
}

func fromBizPlan(p *biz.SubscriptionPlan) (*model.SubscriptionPlan, error) {
	prices, err := marshalJSON(p.Prices)
	if err != nil {
		return nil, err
	}
	quotas, err := marshalJSON(p.Quotas)
	if err != nil {
		return nil, err
	}
	features, err := marshalJSON(p.Features)
	if err != nil {
		return nil, err
	}
	return &model.SubscriptionPlan{
		SubscriptionPlanID: p.ID,
		Code:               p.Code,
		Version:            p.Version,
		Name:               p.Name,
		DurationDays:       p.DurationDays,
		Prices:             prices,
		Quotas:             quotas,
		Features:           features,
		Active:             p.Active,
		CreatedAt:          p.CreatedAt,
	}, nil
}

func toBizPlan(m *model.SubscriptionPlan) (*biz.SubscriptionPlan, error) {
	p := &biz.SubscriptionPlan{
		ID:           m.SubscriptionPlanID,
		Code:         m.Code,
		Version:      m.Version,
		Name:         m.Name,
		DurationDays: m.DurationDays,
		Prices:       map[string]decimal.Decimal{},
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
	}
	if err := unmarshalJSON(m.Prices, &p.Prices); err != nil {
		return nil, fmt.Errorf("plan %s has malformed prices: %w", m.SubscriptionPlanID, err)
	}
	if err := unmarshalJSON(m.Quotas, &p.Quotas); err != nil {
		return nil, fmt.Errorf("plan %s has malformed quotas: %w", m.SubscriptionPlanID, err)
	}
	if err := unmarshalJSON(m.Features, &p.Features); err != nil {
		return nil, fmt.Errorf("plan %s has malformed features: %w", m.SubscriptionPlanID, err)
	}
	return p, nil
}

func toBizSlab(m *model.SalarySlab) *biz.SalarySlab {
	return &biz.SalarySlab{
		ID:        m.SalarySlabID,
		Currency:  m.Currency,
		MinSalary: m.MinSalary,
		MaxSalary: m.MaxSalary,
		PPHFee:    m.PPHFee,
		Active:    m.Active,
	}
}

func toBizTiming(m *model.PaymentTimingOption) *biz.PaymentTimingOption {
	return &biz.PaymentTimingOption{
		Type:            biz.TimingType(m.Type),
		MinDiscountPct:  m.MinDiscountPct,
		MaxDiscountPct:  m.MaxDiscountPct,
		PaymentTermDays: m.PaymentTermDays,
		Customizable:    m.Customizable,
	}
}

func fromBizOverride(o *biz.CustomCorporatePlan) (*model.CustomCorporatePlan, error) {
	tiers, err := marshalJSON(o.BulkTiers)
	if err != nil {
		return nil, err
	}
	return &model.CustomCorporatePlan{
		CustomCorporatePlanID: o.ID,
		EmployerID:            o.EmployerID,
		Currency:              o.Currency,
		PricePerHire:          o.PricePerHire,
		PaymentCycle:          string(o.PaymentCycle),
		AdvancePct:            o.AdvancePct,
		DeferredPct:           o.DeferredPct,
		ReplacementPeriodDays: o.ReplacementPeriodDays,
		BulkTiers:             tiers,
		Terms:                 o.Terms,
		Active:                o.Active,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}, nil
}

func toBizOverride(m *model.CustomCorporatePlan) (*biz.CustomCorporatePlan, error) {
	o := &biz.CustomCorporatePlan{
		ID:                    m.CustomCorporatePlanID,
		EmployerID:            m.EmployerID,
		Currency:              m.Currency,
		PricePerHire:          m.PricePerHire,
		PaymentCycle:          biz.PaymentCycle(m.PaymentCycle),
		AdvancePct:            m.AdvancePct,
		DeferredPct:           m.DeferredPct,
		ReplacementPeriodDays: m.ReplacementPeriodDays,
		Terms:                 m.Terms,
		Active:                m.Active,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if err := unmarshalJSON(m.BulkTiers, &o.BulkTiers); err != nil {
		return nil, fmt.Errorf("override %s has malformed bulk tiers: %w", m.CustomCorporatePlanID, err)
	}
	return o, nil
}
