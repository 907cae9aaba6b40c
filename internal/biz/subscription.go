package biz

import (
	"context"
	"time"

	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus 订阅状态
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = constants.SubscriptionStatusActive
	SubscriptionExpired    SubscriptionStatus = constants.SubscriptionStatusExpired
	SubscriptionSuperseded SubscriptionStatus = constants.SubscriptionStatusSuperseded
)

// TimeFormatDay 按天统计用量
const TimeFormatDay = "2006-01-02"

// QuotaUsage 订阅周期内的套餐用量
type QuotaUsage struct {
	JobPosts          int64  `json:"job_posts"`
	ProfileViews      int64  `json:"profile_views"`
	AutoSchedules     int64  `json:"auto_schedules"`
	Previews          int64  `json:"previews"`
	ProfileViewsToday int64  `json:"profile_views_today"`
	UsageDay          string `json:"usage_day"`
}

// Used 已使用的套餐额度
func (u *QuotaUsage) Used(kind QuotaKind) int64 {
	switch kind {
	case QuotaJobPosts:
		return u.JobPosts
	case QuotaProfileViews:
		return u.ProfileViews
	case QuotaAutoSchedules:
		return u.AutoSchedules
	case QuotaPreviews:
		return u.Previews
	default:
		return 0
	}
}

func (u *QuotaUsage) add(kind QuotaKind, n int64) {
	switch kind {
	case QuotaJobPosts:
		u.JobPosts += n
	case QuotaProfileViews:
		u.ProfileViews += n
	case QuotaAutoSchedules:
		u.AutoSchedules += n
	case QuotaPreviews:
		u.Previews += n
	}
}

// rollDay 跨天时清零当日计数
func (u *QuotaUsage) rollDay(now time.Time) {
	day := now.Format(TimeFormatDay)
	if u.UsageDay != day {
		u.UsageDay = day
		u.ProfileViewsToday = 0
	}
}

// Subscription 企业订阅
type Subscription struct {
	ID            string             `json:"id"`
	EmployerID    string             `json:"employer_id"`
	PlanID        string             `json:"plan_id"`
	Currency      string             `json:"currency"`
	Price         decimal.Decimal    `json:"price"`
	CorrelationID string             `json:"correlation_id"`
	StartsAt      time.Time          `json:"starts_at"`
	EndsAt        time.Time          `json:"ends_at"`
	Status        SubscriptionStatus `json:"status"`
	Usage         QuotaUsage         `json:"usage"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ActiveAt 订阅在给定时间是否有效
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.Status == SubscriptionActive && !now.Before(s.StartsAt) && now.Before(s.EndsAt)
}

// QuotaConsumption 配额消耗记录，同时作为幂等凭证
type QuotaConsumption struct {
	ID             string    `json:"id"`
	EmployerID     string    `json:"employer_id"`
	SubscriptionID string    `json:"subscription_id"`
	Quota          QuotaKind `json:"quota"`
	Count          int64     `json:"count"`
	FromPlan       int64     `json:"from_plan"`
	FromCredits    int64     `json:"from_credits"`
	CreditsDebited int64     `json:"credits_debited"`
	LedgerEntryID  string    `json:"ledger_entry_id,omitempty"`
	CorrelationID  string    `json:"correlation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubscriptionRepo 订阅数据层接口
type SubscriptionRepo interface {
	GetByCorrelation(ctx context.Context, employerID, correlationID string) (*Subscription, error)
	// GetActive 不存在时返回 nil, nil
	GetActive(ctx context.Context, employerID string) (*Subscription, error)
	// Activate 在同一事务中将旧的生效订阅置为 superseded 并写入新订阅
	Activate(ctx context.Context, sub *Subscription) error
	FindConsumption(ctx context.Context, employerID, correlationID string) (*QuotaConsumption, error)
	// RecordConsumption 按版本号更新用量并写入消耗记录
	RecordConsumption(ctx context.Context, sub *Subscription, expectedVersion int64, c *QuotaConsumption) error
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

// SubscriptionUseCase 订阅查询与生命周期
type SubscriptionUseCase struct {
	repo SubscriptionRepo
	log  *log.Helper
}

// NewSubscriptionUseCase 创建订阅 UseCase
func NewSubscriptionUseCase(repo SubscriptionRepo, logger log.Logger) *SubscriptionUseCase {
	return &SubscriptionUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// GetActive 查询企业当前生效的订阅
func (uc *SubscriptionUseCase) GetActive(ctx context.Context, employerID string) (*Subscription, error) {
	sub, err := uc.repo.GetActive(ctx, employerID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.ActiveAt(time.Now()) {
		return nil, pricingErrors.ErrorNoActiveSubscription("employer %s has no active subscription", employerID)
	}
	return sub, nil
}

// ExpireSubscriptions 将已到期的订阅置为 expired
func (uc *SubscriptionUseCase) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	n, err := uc.repo.ExpireEnded(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.log.Infof("Expired %d subscriptions ending before %s", n, now.Format(time.RFC3339))
	}
	return n, nil
}
