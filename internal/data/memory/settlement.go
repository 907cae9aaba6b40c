package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"
)

// SettlementRepo 内存结算单
type SettlementRepo struct {
	mu   sync.RWMutex
	rows map[string]biz.HireSettlement
}

// NewSettlementRepo 创建内存结算单仓库
func NewSettlementRepo() *SettlementRepo {
	return &SettlementRepo{rows: make(map[string]biz.HireSettlement)}
}

var _ biz.SettlementRepo = (*SettlementRepo)(nil)

func (r *SettlementRepo) GetByCorrelation(ctx context.Context, employerID, correlationID string) (*biz.HireSettlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.rows {
		if s.EmployerID == employerID && s.CorrelationID == correlationID {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *SettlementRepo) Get(ctx context.Context, id string) (*biz.HireSettlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SettlementRepo) Create(ctx context.Context, s *biz.HireSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.rows {
		if cur.EmployerID == s.EmployerID && cur.CorrelationID == s.CorrelationID {
			return pricingErrors.ErrorCorrelationConflict("settlement correlation id %s already used", s.CorrelationID)
		}
	}
	r.rows[s.ID] = *s
	return nil
}

func (r *SettlementRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok || s.Status == biz.SettlementPaid {
		return nil
	}
	s.Status = biz.SettlementPaid
	s.PaidAt = &paidAt
	r.rows[id] = s
	return nil
}

func (r *SettlementRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.rows {
		if s.Status == biz.SettlementPending && s.DueAt.Before(now) {
			s.Status = biz.SettlementOverdue
			r.rows[id] = s
			n++
		}
	}
	return n, nil
}

func (r *SettlementRepo) ListByEmployer(ctx context.Context, employerID string, page, pageSize int) ([]*biz.HireSettlement, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*biz.HireSettlement
	for _, s := range r.rows {
		s := s
		if s.EmployerID == employerID {
			all = append(all, &s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*biz.HireSettlement{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}
