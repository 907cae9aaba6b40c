package memory

import (
	"context"
	"sync"
	"time"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"
)

// SubscriptionRepo 内存订阅与配额消耗
type SubscriptionRepo struct {
	mu           sync.RWMutex
	subs         map[string]biz.Subscription
	consumptions map[string]biz.QuotaConsumption // employerID/correlationID
}

// NewSubscriptionRepo 创建内存订阅仓库
func NewSubscriptionRepo() *SubscriptionRepo {
	return &SubscriptionRepo{
		subs:         make(map[string]biz.Subscription),
		consumptions: make(map[string]biz.QuotaConsumption),
	}
}

var _ biz.SubscriptionRepo = (*SubscriptionRepo)(nil)

func (r *SubscriptionRepo) GetByCorrelation(ctx context.Context, employerID, correlationID string) (*biz.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.EmployerID == employerID && s.CorrelationID == correlationID {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *SubscriptionRepo) GetActive(ctx context.Context, employerID string) (*biz.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *biz.Subscription
	for _, s := range r.subs {
		s := s
		if s.EmployerID != employerID || s.Status != biz.SubscriptionActive {
			continue
		}
		if found == nil || s.StartsAt.After(found.StartsAt) {
			found = &s
		}
	}
	return found, nil
}

func (r *SubscriptionRepo) Activate(ctx context.Context, sub *biz.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.subs {
		if s.EmployerID == sub.EmployerID && s.CorrelationID == sub.CorrelationID {
			return pricingErrors.ErrorCorrelationConflict("subscription correlation id %s already used", sub.CorrelationID)
		}
		if s.EmployerID == sub.EmployerID && s.Status == biz.SubscriptionActive {
			s.Status = biz.SubscriptionSuperseded
			s.Version++
			r.subs[id] = s
		}
	}
	r.subs[sub.ID] = *sub
	return nil
}

func (r *SubscriptionRepo) FindConsumption(ctx context.Context, employerID, correlationID string) (*biz.QuotaConsumption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consumptions[corrKey(employerID, correlationID)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *SubscriptionRepo) RecordConsumption(ctx context.Context, sub *biz.Subscription, expectedVersion int64, c *biz.QuotaConsumption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.subs[sub.ID]
	if !ok || cur.Version != expectedVersion {
		return pricingErrors.ErrorConcurrentUpdate("subscription %s changed concurrently", sub.ID)
	}
	key := corrKey(c.EmployerID, c.CorrelationID)
	if _, dup := r.consumptions[key]; dup {
		return pricingErrors.ErrorCorrelationConflict("consumption correlation id %s already used", c.CorrelationID)
	}
	cur.Usage = sub.Usage
	cur.Version++
	r.subs[sub.ID] = cur
	r.consumptions[key] = *c
	sub.Version = cur.Version
	return nil
}

func (r *SubscriptionRepo) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.subs {
		if s.Status == biz.SubscriptionActive && !s.EndsAt.After(now) {
			s.Status = biz.SubscriptionExpired
			s.Version++
			r.subs[id] = s
			n++
		}
	}
	return n, nil
}

// Get 按 ID 查询
func (r *SubscriptionRepo) Get(id string) (biz.Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	return s, ok
}
