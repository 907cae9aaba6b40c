package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"pricing-service/internal/biz"
)

// CatalogRepo 内存价目表
type CatalogRepo struct {
	mu        sync.RWMutex
	bundles   map[string]biz.CreditBundle
	plans     map[string]biz.SubscriptionPlan
	slabs     []biz.SalarySlab
	timing    map[biz.TimingType]biz.PaymentTimingOption
	overrides map[string]biz.CustomCorporatePlan
	loads     int64
}

// NewCatalogRepo 创建内存价目表
func NewCatalogRepo() *CatalogRepo {
	return &CatalogRepo{
		bundles:   make(map[string]biz.CreditBundle),
		plans:     make(map[string]biz.SubscriptionPlan),
		timing:    make(map[biz.TimingType]biz.PaymentTimingOption),
		overrides: make(map[string]biz.CustomCorporatePlan),
	}
}

var _ biz.CatalogRepo = (*CatalogRepo)(nil)

// Loads LoadCatalog 被调用的次数
func (r *CatalogRepo) Loads() int64 { return atomic.LoadInt64(&r.loads) }

func (r *CatalogRepo) LoadCatalog(ctx context.Context) (*biz.CatalogData, error) {
	atomic.AddInt64(&r.loads, 1)
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &biz.CatalogData{}
	for _, b := range r.bundles {
		b := b
		out.Bundles = append(out.Bundles, &b)
	}
	for _, p := range r.plans {
		p := p
		out.Plans = append(out.Plans, &p)
	}
	for _, s := range r.slabs {
		s := s
		if s.Active {
			out.Slabs = append(out.Slabs, &s)
		}
	}
	for _, t := range r.timing {
		t := t
		out.TimingOptions = append(out.TimingOptions, &t)
	}
	for _, o := range r.overrides {
		o := o
		if o.Active {
			o.BulkTiers = append([]biz.BulkTier(nil), o.BulkTiers...)
			out.Overrides = append(out.Overrides, &o)
		}
	}
	return out, nil
}

func (r *CatalogRepo) CreateBundle(ctx context.Context, b *biz.CreditBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[b.ID] = *b
	return nil
}

func (r *CatalogRepo) GetBundle(ctx context.Context, id string) (*biz.CreditBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *CatalogRepo) ReviseBundle(ctx context.Context, prevID string, next *biz.CreditBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.bundles[prevID]; ok {
		prev.Active = false
		r.bundles[prevID] = prev
	}
	r.bundles[next.ID] = *next
	return nil
}

func (r *CatalogRepo) SetBundleActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bundles[id]; ok {
		b.Active = active
		r.bundles[id] = b
	}
	return nil
}

func (r *CatalogRepo) CreatePlan(ctx context.Context, p *biz.SubscriptionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = *p
	return nil
}

func (r *CatalogRepo) GetPlan(ctx context.Context, id string) (*biz.SubscriptionPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *CatalogRepo) RevisePlan(ctx context.Context, prevID string, next *biz.SubscriptionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.plans[prevID]; ok {
		prev.Active = false
		r.plans[prevID] = prev
	}
	r.plans[next.ID] = *next
	return nil
}

func (r *CatalogRepo) SetPlanActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.plans[id]; ok {
		p.Active = active
		r.plans[id] = p
	}
	return nil
}

func (r *CatalogRepo) ReplaceSlabs(ctx context.Context, currency string, slabs []*biz.SalarySlab) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slabs {
		if r.slabs[i].Currency == currency {
			r.slabs[i].Active = false
		}
	}
	for _, s := range slabs {
		r.slabs = append(r.slabs, *s)
	}
	return nil
}

// PutSlabs 直接写入区间，不做集合校验（用于构造错误配置）
func (r *CatalogRepo) PutSlabs(slabs ...biz.SalarySlab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slabs = append(r.slabs, slabs...)
}

func (r *CatalogRepo) SaveTimingOption(ctx context.Context, opt *biz.PaymentTimingOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timing[opt.Type] = *opt
	return nil
}

func (r *CatalogRepo) CreateOverride(ctx context.Context, o *biz.CustomCorporatePlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.Active {
		r.deactivateOverrides(o.EmployerID)
	}
	cp := *o
	cp.BulkTiers = append([]biz.BulkTier(nil), o.BulkTiers...)
	r.overrides[o.ID] = cp
	return nil
}

// PutOverride 直接写入方案，不下线同企业其他方案（用于构造错误配置）
func (r *CatalogRepo) PutOverride(o biz.CustomCorporatePlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[o.ID] = o
}

func (r *CatalogRepo) GetOverride(ctx context.Context, id string) (*biz.CustomCorporatePlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overrides[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *CatalogRepo) SetOverrideActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.overrides[id]
	if !ok {
		return nil
	}
	if active {
		r.deactivateOverrides(o.EmployerID)
	}
	o.Active = active
	r.overrides[id] = o
	return nil
}

func (r *CatalogRepo) deactivateOverrides(employerID string) {
	for id, o := range r.overrides {
		if o.EmployerID == employerID && o.Active {
			o.Active = false
			r.overrides[id] = o
		}
	}
}

// VersionRepo 内存版本号
type VersionRepo struct {
	v int64
}

// NewVersionRepo 创建内存版本号
func NewVersionRepo() *VersionRepo { return &VersionRepo{} }

var _ biz.CatalogVersionRepo = (*VersionRepo)(nil)

func (r *VersionRepo) CurrentVersion(ctx context.Context) (int64, error) {
	return atomic.LoadInt64(&r.v), nil
}

func (r *VersionRepo) BumpVersion(ctx context.Context) (int64, error) {
	return atomic.AddInt64(&r.v, 1), nil
}
