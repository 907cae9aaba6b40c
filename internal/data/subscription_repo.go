package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/constants"
	"pricing-service/internal/data/model"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepo 订阅与配额消耗数据访问
type subscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionRepo 创建订阅 repo（返回 biz.SubscriptionRepo 接口）
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *subscriptionRepo) GetByCorrelation(ctx context.Context, employerID, correlationID string) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.db.WithContext(ctx).
		Where("employer_id = ? AND correlation_id = ?", employerID, correlationID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizSubscription(&m)
}

func (r *subscriptionRepo) GetActive(ctx context.Context, employerID string) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.db.WithContext(ctx).
		Where("employer_id = ? AND status = ?", employerID, constants.SubscriptionStatusActive).
		Order("starts_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizSubscription(&m)
}

// Activate 替换当前生效订阅
func (r *subscriptionRepo) Activate(ctx context.Context, sub *biz.Subscription) error {
	usage, err := marshalJSON(sub.Usage)
	if err != nil {
		return err
	}
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []model.Subscription
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("employer_id = ? AND status = ?", sub.EmployerID, constants.SubscriptionStatusActive).
			Find(&current).Error; err != nil {
			return err
		}
		for i := range current {
			if err := tx.Model(&current[i]).Updates(map[string]interface{}{
				"status":  constants.SubscriptionStatusSuperseded,
				"version": gorm.Expr("version + 1"),
			}).Error; err != nil {
				return err
			}
		}
		err := tx.Create(&model.Subscription{
			SubscriptionID: sub.ID,
			EmployerID:     sub.EmployerID,
			CorrelationID:  sub.CorrelationID,
			PlanID:         sub.PlanID,
			Currency:       sub.Currency,
			Price:          sub.Price,
			StartsAt:       sub.StartsAt,
			EndsAt:         sub.EndsAt,
			Status:         string(sub.Status),
			Usage:          usage,
			Version:        sub.Version,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return pricingErrors.ErrorCorrelationConflict("subscription correlation id %s already used", sub.CorrelationID)
		}
		return err
	})
}

func (r *subscriptionRepo) FindConsumption(ctx context.Context, employerID, correlationID string) (*biz.QuotaConsumption, error) {
	var m model.QuotaConsumption
	err := r.data.db.WithContext(ctx).
		Where("employer_id = ? AND correlation_id = ?", employerID, correlationID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &biz.QuotaConsumption{
		ID:             m.QuotaConsumptionID,
		EmployerID:     m.EmployerID,
		SubscriptionID: m.SubscriptionID,
		Quota:          biz.QuotaKind(m.Quota),
		Count:          m.Count,
		FromPlan:       m.FromPlan,
		FromCredits:    m.FromCredits,
		CreditsDebited: m.CreditsDebited,
		LedgerEntryID:  m.LedgerEntryID,
		CorrelationID:  m.CorrelationID,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// RecordConsumption 更新用量（版本号保护）并写入消耗记录
func (r *subscriptionRepo) RecordConsumption(ctx context.Context, sub *biz.Subscription, expectedVersion int64, c *biz.QuotaConsumption) error {
	usage, err := marshalJSON(sub.Usage)
	if err != nil {
		return err
	}
	err = r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Subscription{}).
			Where("subscription_id = ? AND version = ?", sub.ID, expectedVersion).
			Updates(map[string]interface{}{
				"usage":   usage,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pricingErrors.ErrorConcurrentUpdate("subscription %s changed concurrently", sub.ID)
		}
		err := tx.Create(&model.QuotaConsumption{
			QuotaConsumptionID: c.ID,
			EmployerID:         c.EmployerID,
			CorrelationID:      c.CorrelationID,
			SubscriptionID:     c.SubscriptionID,
			Quota:              string(c.Quota),
			Count:              c.Count,
			FromPlan:           c.FromPlan,
			FromCredits:        c.FromCredits,
			CreditsDebited:     c.CreditsDebited,
			LedgerEntryID:      c.LedgerEntryID,
			CreatedAt:          c.CreatedAt,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return pricingErrors.ErrorCorrelationConflict("consumption correlation id %s already used", c.CorrelationID)
		}
		return err
	})
	if err != nil {
		return err
	}
	sub.Version = expectedVersion + 1
	return nil
}

func (r *subscriptionRepo) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	res := r.data.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("status = ? AND ends_at <= ?", constants.SubscriptionStatusActive, now).
		Updates(map[string]interface{}{
			"status":  constants.SubscriptionStatusExpired,
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func toBizSubscription(m *model.Subscription) (*biz.Subscription, error) {
	s := &biz.Subscription{
		ID:            m.SubscriptionID,
		EmployerID:    m.EmployerID,
		PlanID:        m.PlanID,
		Currency:      m.Currency,
		Price:         m.Price,
		CorrelationID: m.CorrelationID,
		StartsAt:      m.StartsAt,
		EndsAt:        m.EndsAt,
		Status:        biz.SubscriptionStatus(m.Status),
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
	}
	if err := unmarshalJSON(m.Usage, &s.Usage); err != nil {
		return nil, fmt.Errorf("subscription %s has malformed usage: %w", m.SubscriptionID, err)
	}
	return s, nil
}
