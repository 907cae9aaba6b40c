package data

import (
	"context"
	"errors"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/constants"
	"pricing-service/internal/data/model"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// settlementRepo PPH 结算单数据访问
type settlementRepo struct {
	data *Data
	log  *log.Helper
}

// NewSettlementRepo 创建结算单 repo（返回 biz.SettlementRepo 接口）
func NewSettlementRepo(data *Data, logger log.Logger) biz.SettlementRepo {
	return &settlementRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *settlementRepo) first(ctx context.Context, query string, args ...interface{}) (*biz.HireSettlement, error) {
	var m model.HireSettlement
	if err := r.data.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizSettlement(&m), nil
}

func (r *settlementRepo) GetByCorrelation(ctx context.Context, employerID, correlationID string) (*biz.HireSettlement, error) {
	return r.first(ctx, "employer_id = ? AND correlation_id = ?", employerID, correlationID)
}

func (r *settlementRepo) Get(ctx context.Context, id string) (*biz.HireSettlement, error) {
	return r.first(ctx, "hire_settlement_id = ?", id)
}

func (r *settlementRepo) Create(ctx context.Context, s *biz.HireSettlement) error {
	err := r.data.db.WithContext(ctx).Create(&model.HireSettlement{
		HireSettlementID: s.ID,
		EmployerID:       s.EmployerID,
		CorrelationID:    s.CorrelationID,
		HireRef:          s.HireRef,
		Salary:           s.Salary,
		Currency:         s.Currency,
		Fee:              s.Fee,
		DiscountPct:      s.DiscountPct,
		FinalPrice:       s.FinalPrice,
		Timing:           string(s.Timing),
		AdvanceAmount:    s.AdvanceAmount,
		DeferredAmount:   s.DeferredAmount,
		DueAt:            s.DueAt,
		Source:           string(s.Source),
		OverrideID:       s.OverrideID,
		SlabID:           s.SlabID,
		Status:           string(s.Status),
		CreatedAt:        s.CreatedAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pricingErrors.ErrorCorrelationConflict("settlement correlation id %s already used", s.CorrelationID)
	}
	return err
}

func (r *settlementRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	return r.data.db.WithContext(ctx).Model(&model.HireSettlement{}).
		Where("hire_settlement_id = ? AND status <> ?", id, constants.SettlementStatusPaid).
		Updates(map[string]interface{}{
			"status":  constants.SettlementStatusPaid,
			"paid_at": paidAt,
		}).Error
}

func (r *settlementRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.data.db.WithContext(ctx).Model(&model.HireSettlement{}).
		Where("status = ? AND due_at < ?", constants.SettlementStatusPending, now).
		Update("status", constants.SettlementStatusOverdue)
	return res.RowsAffected, res.Error
}

func (r *settlementRepo) ListByEmployer(ctx context.Context, employerID string, page, pageSize int) ([]*biz.HireSettlement, int64, error) {
	var total int64
	db := r.data.db.WithContext(ctx).Model(&model.HireSettlement{}).Where("employer_id = ?", employerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.HireSettlement
	if err := db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*biz.HireSettlement, 0, len(rows))
	for i := range rows {
		out = append(out, toBizSettlement(&rows[i]))
	}
	return out, total, nil
}

func toBizSettlement(m *model.HireSettlement) *biz.HireSettlement {
	return &biz.HireSettlement{
		ID:             m.HireSettlementID,
		EmployerID:     m.EmployerID,
		CorrelationID:  m.CorrelationID,
		HireRef:        m.HireRef,
		Salary:         m.Salary,
		Currency:       m.Currency,
		Fee:            m.Fee,
		DiscountPct:    m.DiscountPct,
		FinalPrice:     m.FinalPrice,
		Timing:         biz.TimingType(m.Timing),
		AdvanceAmount:  m.AdvanceAmount,
		DeferredAmount: m.DeferredAmount,
		DueAt:          m.DueAt,
		Source:         biz.PriceSource(m.Source),
		OverrideID:     m.OverrideID,
		SlabID:         m.SlabID,
		Status:         biz.SettlementStatus(m.Status),
		PaidAt:         m.PaidAt,
		CreatedAt:      m.CreatedAt,
	}
}
