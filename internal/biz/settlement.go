package biz

import (
	"context"
	"time"

	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// SettlementStatus 结算状态
type SettlementStatus string

const (
	SettlementPending SettlementStatus = constants.SettlementStatusPending
	SettlementPaid    SettlementStatus = constants.SettlementStatusPaid
	SettlementOverdue SettlementStatus = constants.SettlementStatusOverdue
)

// HireSettlement 按聘用付费的结算单
type HireSettlement struct {
	ID             string           `json:"id"`
	EmployerID     string           `json:"employer_id"`
	CorrelationID  string           `json:"correlation_id"`
	HireRef        string           `json:"hire_ref"`
	Salary         decimal.Decimal  `json:"salary"`
	Currency       string           `json:"currency"`
	Fee            decimal.Decimal  `json:"fee"`
	DiscountPct    decimal.Decimal  `json:"discount_pct"`
	FinalPrice     decimal.Decimal  `json:"final_price"`
	Timing         TimingType       `json:"timing,omitempty"`
	AdvanceAmount  decimal.Decimal  `json:"advance_amount"`
	DeferredAmount decimal.Decimal  `json:"deferred_amount"`
	DueAt          time.Time        `json:"due_at"`
	Source         PriceSource      `json:"source"`
	OverrideID     string           `json:"override_id,omitempty"`
	SlabID         string           `json:"slab_id,omitempty"`
	Status         SettlementStatus `json:"status"`
	PaidAt         *time.Time       `json:"paid_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// SettlementRepo 结算单数据层接口
type SettlementRepo interface {
	GetByCorrelation(ctx context.Context, employerID, correlationID string) (*HireSettlement, error)
	Get(ctx context.Context, id string) (*HireSettlement, error)
	Create(ctx context.Context, s *HireSettlement) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListByEmployer(ctx context.Context, employerID string, page, pageSize int) ([]*HireSettlement, int64, error)
}

// SettlementUseCase 结算单查询与状态流转
type SettlementUseCase struct {
	repo SettlementRepo
	log  *log.Helper
}

// NewSettlementUseCase 创建结算 UseCase
func NewSettlementUseCase(repo SettlementRepo, logger log.Logger) *SettlementUseCase {
	return &SettlementUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// MarkPaid 标记结算单已付款，重复调用无副作用
func (uc *SettlementUseCase) MarkPaid(ctx context.Context, id string) (*HireSettlement, error) {
	s, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, pricingErrors.ErrorSettlementNotFound("settlement %s not found", id)
	}
	if s.Status == SettlementPaid {
		return s, nil
	}
	now := time.Now()
	if err := uc.repo.MarkPaid(ctx, id, now); err != nil {
		return nil, err
	}
	s.Status = SettlementPaid
	s.PaidAt = &now
	uc.log.Infof("Settlement paid: id=%s, employer=%s, amount=%s %s", s.ID, s.EmployerID, s.FinalPrice, s.Currency)
	return s, nil
}

// MarkOverdue 将超过到期日仍未付款的结算单置为 overdue
func (uc *SettlementUseCase) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := uc.repo.MarkOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.log.Warnf("Marked %d settlements overdue at %s", n, now.Format(time.RFC3339))
	}
	return n, nil
}

// List 分页查询企业结算单
func (uc *SettlementUseCase) List(ctx context.Context, employerID string, page, pageSize int) ([]*HireSettlement, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > constants.MaxPageSize {
		pageSize = constants.DefaultPageSize
	}
	return uc.repo.ListByEmployer(ctx, employerID, page, pageSize)
}
