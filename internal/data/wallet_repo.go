package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/constants"
	"pricing-service/internal/data/model"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// walletRepo 钱包与流水数据访问
type walletRepo struct {
	data *Data
	log  *log.Helper
}

// NewWalletRepo 创建钱包 repo（返回 biz.WalletRepo 接口）
func NewWalletRepo(data *Data, logger log.Logger) biz.WalletRepo {
	return &walletRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateWallet 开户，已存在时不修改
func (r *walletRepo) CreateWallet(ctx context.Context, w *biz.Wallet) (bool, error) {
	m := &model.EmployerWallet{
		EmployerID:         w.EmployerID,
		Balance:            0,
		PricingModel:       string(w.PricingModel),
		SubscriptionPlanID: w.SubscriptionPlanID,
		TimingType:         string(w.Timing.Type),
		TimingDiscountPct:  w.Timing.DiscountPct,
	}
	res := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetWallet 查询钱包，始终读库
func (r *walletRepo) GetWallet(ctx context.Context, employerID string) (*biz.Wallet, error) {
	var m model.EmployerWallet
	if err := r.data.db.WithContext(ctx).Where("employer_id = ?", employerID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("GetWallet failed: employer=%s, error=%v", employerID, err)
		return nil, fmt.Errorf("failed to query wallet from database: %w", err)
	}
	return toBizWallet(&m), nil
}

// GetBalance 优先读缓存，未命中读库并回写
func (r *walletRepo) GetBalance(ctx context.Context, employerID string) (int64, bool, error) {
	balanceKey := constants.RedisKeyBalance + employerID
	if v, err := r.data.rdb.Get(ctx, balanceKey).Int64(); err == nil {
		return v, true, nil
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warnf("read balance cache failed: employer=%s, error=%v", employerID, err)
	}

	w, err := r.GetWallet(ctx, employerID)
	if err != nil {
		return 0, false, err
	}
	if w == nil {
		return 0, false, nil
	}
	r.cacheBalance(employerID, w.Balance)
	return w.Balance, true, nil
}

// cacheBalance 写缓存（设置超时避免阻塞），失败不影响主流程
func (r *walletRepo) cacheBalance(employerID string, balance int64) {
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cacheCancel()
	key := constants.RedisKeyBalance + employerID
	ttl := constants.BalanceCacheTTLSeconds * time.Second
	if err := r.data.rdb.Set(cacheCtx, key, strconv.FormatInt(balance, 10), ttl).Err(); err != nil {
		r.log.Warnf("failed to update balance cache: employer=%s, error=%v", employerID, err)
	}
}

func (r *walletRepo) FindEntry(ctx context.Context, employerID, correlationID string) (*biz.TransactionLogEntry, error) {
	var m model.TransactionLog
	err := r.data.db.WithContext(ctx).
		Where("employer_id = ? AND correlation_id = ?", employerID, correlationID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizEntry(&m), nil
}

// AppendEntry 乐观锁更新余额并写入流水，二者同一事务
func (r *walletRepo) AppendEntry(ctx context.Context, entry *biz.TransactionLogEntry, expectedVersion int64) error {
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.EmployerWallet{}).
			Where("employer_id = ? AND version = ?", entry.EmployerID, expectedVersion).
			Updates(map[string]interface{}{
				"balance": entry.ResultingBalance,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pricingErrors.ErrorConcurrentUpdate("wallet %s changed concurrently", entry.EmployerID)
		}

		if err := tx.Create(&model.TransactionLog{
			TransactionLogID: entry.ID,
			EmployerID:       entry.EmployerID,
			CorrelationID:    entry.CorrelationID,
			Direction:        string(entry.Direction),
			Amount:           entry.Amount,
			ResultingBalance: entry.ResultingBalance,
			Reason:           entry.Reason,
			ActorID:          entry.ActorID,
			CreatedAt:        entry.CreatedAt,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pricingErrors.ErrorCorrelationConflict("correlation id %s already applied", entry.CorrelationID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.cacheBalance(entry.EmployerID, entry.ResultingBalance)
	return nil
}

func (r *walletRepo) UpdateWalletSettings(ctx context.Context, w *biz.Wallet, expectedVersion int64) error {
	res := r.data.db.WithContext(ctx).Model(&model.EmployerWallet{}).
		Where("employer_id = ? AND version = ?", w.EmployerID, expectedVersion).
		Updates(map[string]interface{}{
			"pricing_model":        string(w.PricingModel),
			"subscription_plan_id": w.SubscriptionPlanID,
			"timing_type":          string(w.Timing.Type),
			"timing_discount_pct":  w.Timing.DiscountPct,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pricingErrors.ErrorConcurrentUpdate("wallet %s changed concurrently", w.EmployerID)
	}
	return nil
}

func (r *walletRepo) ListEntries(ctx context.Context, employerID string, page, pageSize int) ([]*biz.TransactionLogEntry, int64, error) {
	var total int64
	db := r.data.db.WithContext(ctx).Model(&model.TransactionLog{}).Where("employer_id = ?", employerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.TransactionLog
	if err := db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	entries := make([]*biz.TransactionLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, toBizEntry(&rows[i]))
	}
	return entries, total, nil
}

func (r *walletRepo) SumEntries(ctx context.Context, employerID string) (int64, int64, error) {
	var row struct {
		Credits int64
		Debits  int64
	}
	err := r.data.db.WithContext(ctx).Model(&model.TransactionLog{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS credits, "+
			"COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS debits",
			constants.DirectionCredit, constants.DirectionDebit).
		Where("employer_id = ?", employerID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Credits, row.Debits, nil
}

func (r *walletRepo) ListEmployerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.db.WithContext(ctx).Model(&model.EmployerWallet{}).Pluck("employer_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func toBizWallet(m *model.EmployerWallet) *biz.Wallet {
	return &biz.Wallet{
		EmployerID:         m.EmployerID,
		Balance:            m.Balance,
		PricingModel:       biz.PricingModel(m.PricingModel),
		SubscriptionPlanID: m.SubscriptionPlanID,
		Timing: biz.PaymentTiming{
			Type:        biz.TimingType(m.TimingType),
			DiscountPct: m.TimingDiscountPct,
		},
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toBizEntry(m *model.TransactionLog) *biz.TransactionLogEntry {
	return &biz.TransactionLogEntry{
		ID:               m.TransactionLogID,
		EmployerID:       m.EmployerID,
		CreatedAt:        m.CreatedAt,
		Direction:        biz.Direction(m.Direction),
		Amount:           m.Amount,
		ResultingBalance: m.ResultingBalance,
		Reason:           m.Reason,
		CorrelationID:    m.CorrelationID,
		ActorID:          m.ActorID,
	}
}
