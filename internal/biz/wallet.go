package biz

import (
	"context"
	"math"
	"strconv"
	"time"

	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"
	"pricing-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PricingModel 企业计费模式
type PricingModel string

const (
	PricingModelSubscription PricingModel = constants.PricingModelSubscription
	PricingModelPayPerHire   PricingModel = constants.PricingModelPayPerHire
)

// Valid 是否为已知计费模式
func (m PricingModel) Valid() bool {
	return m == PricingModelSubscription || m == PricingModelPayPerHire
}

// Direction 流水方向
type Direction string

const (
	DirectionCredit Direction = constants.DirectionCredit
	DirectionDebit  Direction = constants.DirectionDebit
)

// Wallet 企业钱包，余额只能通过 LedgerUseCase 变更
type Wallet struct {
	EmployerID         string        `json:"employer_id"`
	Balance            int64         `json:"balance"`
	PricingModel       PricingModel  `json:"pricing_model"`
	SubscriptionPlanID string        `json:"subscription_plan_id,omitempty"`
	Timing             PaymentTiming `json:"payment_timing"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TransactionLogEntry 账本流水，写入后不可修改
type TransactionLogEntry struct {
	ID               string    `json:"id"`
	EmployerID       string    `json:"employer_id"`
	CreatedAt        time.Time `json:"created_at"`
	Direction        Direction `json:"direction"`
	Amount           int64     `json:"amount"`
	ResultingBalance int64     `json:"resulting_balance"`
	Reason           string    `json:"reason"`
	CorrelationID    string    `json:"correlation_id"`
	ActorID          string    `json:"actor_id,omitempty"`
}

// LedgerResult 账本变更结果；Duplicate 表示幂等重放，返回的是首次写入的流水
type LedgerResult struct {
	Entry     *TransactionLogEntry `json:"entry"`
	Duplicate bool                 `json:"duplicate"`
}

// Reconciliation 对账结果
type Reconciliation struct {
	EmployerID string `json:"employer_id"`
	Balance    int64  `json:"balance"`
	Credits    int64  `json:"credits"`
	Debits     int64  `json:"debits"`
	Consistent bool   `json:"consistent"`
}

// WalletRepo 钱包与流水数据层接口
type WalletRepo interface {
	// CreateWallet 已存在时返回 false 且不修改
	CreateWallet(ctx context.Context, w *Wallet) (bool, error)
	// GetWallet 不存在时返回 nil, nil
	GetWallet(ctx context.Context, employerID string) (*Wallet, error)
	// GetBalance 读路径，可走缓存
	GetBalance(ctx context.Context, employerID string) (int64, bool, error)
	FindEntry(ctx context.Context, employerID, correlationID string) (*TransactionLogEntry, error)
	// AppendEntry 在同一事务内按 expectedVersion 更新余额并追加流水
	AppendEntry(ctx context.Context, entry *TransactionLogEntry, expectedVersion int64) error
	UpdateWalletSettings(ctx context.Context, w *Wallet, expectedVersion int64) error
	ListEntries(ctx context.Context, employerID string, page, pageSize int) ([]*TransactionLogEntry, int64, error)
	SumEntries(ctx context.Context, employerID string) (credits, debits int64, err error)
	ListEmployerIDs(ctx context.Context) ([]string, error)
}

// Locker 按 key 互斥
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier 账本变更通知
type Notifier interface {
	LedgerEntryApplied(ctx context.Context, entry *TransactionLogEntry) error
}

// LedgerUseCase 钱包账本，唯一允许修改余额的路径
type LedgerUseCase struct {
	repo     WalletRepo
	locker   Locker
	notifier Notifier
	conf     *PricingConfig
	log      *log.Helper
	metrics  *metrics.PricingMetrics
}

// NewLedgerUseCase 创建账本 UseCase
func NewLedgerUseCase(repo WalletRepo, locker Locker, notifier Notifier, conf *PricingConfig, logger log.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		conf:     conf,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

type mutation struct {
	employerID    string
	direction     Direction
	amount        int64
	reason        string
	correlationID string
	actorID       string
}

// Credit 增加积分
func (uc *LedgerUseCase) Credit(ctx context.Context, employerID string, amount int64, reason, correlationID string) (*LedgerResult, error) {
	return uc.apply(ctx, mutation{
		employerID:    employerID,
		direction:     DirectionCredit,
		amount:        amount,
		reason:        reason,
		correlationID: correlationID,
	})
}

// Debit 扣减积分，余额不足时整笔拒绝
func (uc *LedgerUseCase) Debit(ctx context.Context, employerID string, amount int64, reason, correlationID string) (*LedgerResult, error) {
	return uc.apply(ctx, mutation{
		employerID:    employerID,
		direction:     DirectionDebit,
		amount:        amount,
		reason:        reason,
		correlationID: correlationID,
	})
}

// ManualAdjust 管理员调账，delta 的符号决定方向
func (uc *LedgerUseCase) ManualAdjust(ctx context.Context, employerID string, delta int64, adminID, reason, correlationID string) (*LedgerResult, error) {
	if adminID == "" {
		return nil, pricingErrors.ErrorValidation("admin id is required for manual adjustments")
	}
	if delta == 0 {
		return nil, pricingErrors.ErrorValidation("invalid amount: adjustment must be non-zero")
	}
	m := mutation{
		employerID:    employerID,
		direction:     DirectionCredit,
		amount:        delta,
		reason:        reason,
		correlationID: correlationID,
		actorID:       adminID,
	}
	if delta < 0 {
		m.direction = DirectionDebit
		m.amount = -delta
	}
	return uc.apply(ctx, m)
}

func (uc *LedgerUseCase) apply(ctx context.Context, m mutation) (res *LedgerResult, err error) {
	startTime := time.Now()
	defer func() {
		result := constants.MutationResultApplied
		switch {
		case err != nil:
			result = constants.MutationResultRejected
		case res != nil && res.Duplicate:
			result = constants.MutationResultDuplicate
		}
		uc.metrics.LedgerMutationTotal.WithLabelValues(string(m.direction), result).Inc()
		uc.metrics.LedgerMutationDuration.WithLabelValues(string(m.direction)).Observe(time.Since(startTime).Seconds())
	}()

	if m.employerID == "" {
		return nil, pricingErrors.ErrorValidation("employer id is required")
	}
	if m.amount <= 0 {
		return nil, pricingErrors.ErrorValidation("invalid amount: %d must be positive", m.amount)
	}
	if m.correlationID == "" {
		return nil, pricingErrors.ErrorValidation("correlation id is required")
	}

	res, err = uc.withWalletLock(ctx, m)
	if err != nil {
		return nil, err
	}

	if !res.Duplicate {
		uc.metrics.LedgerCreditsTotal.WithLabelValues(string(m.direction)).Add(float64(m.amount))
		if res.Entry.ResultingBalance < uc.conf.LowBalanceThreshold {
			uc.metrics.BalanceLowTotal.WithLabelValues(string(m.direction)).Inc()
		}
		uc.notify(ctx, res.Entry)
	}
	return res, nil
}

func (uc *LedgerUseCase) withWalletLock(ctx context.Context, m mutation) (*LedgerResult, error) {
	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyWalletLock+m.employerID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return uc.applyLocked(ctx, m)
}

func (uc *LedgerUseCase) applyLocked(ctx context.Context, m mutation) (*LedgerResult, error) {
	prior, err := uc.repo.FindEntry(ctx, m.employerID, m.correlationID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return replay(prior, m)
	}

	w, err := uc.repo.GetWallet(ctx, m.employerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, pricingErrors.ErrorWalletNotFound("wallet for employer %s not found", m.employerID)
	}

	if m.direction == DirectionCredit && m.amount > math.MaxInt64-w.Balance {
		return nil, pricingErrors.ErrorValidation("invalid amount: credit %d would overflow balance %d", m.amount, w.Balance)
	}
	balance := w.Balance + m.amount
	if m.direction == DirectionDebit {
		balance = w.Balance - m.amount
	}
	if balance < 0 {
		uc.log.Warnf("Debit rejected: employer=%s, balance=%d, amount=%d, correlation=%s",
			m.employerID, w.Balance, m.amount, m.correlationID)
		return nil, pricingErrors.ErrorInsufficientBalance("balance %d is less than %d", w.Balance, m.amount).
			WithMetadata(map[string]string{
				"code":      strconv.Itoa(pricingErrors.ErrCodeInsufficientBalance),
				"balance":   strconv.FormatInt(w.Balance, 10),
				"requested": strconv.FormatInt(m.amount, 10),
			})
	}

	entry := &TransactionLogEntry{
		ID:               uuid.New().String(),
		EmployerID:       m.employerID,
		CreatedAt:        time.Now(),
		Direction:        m.direction,
		Amount:           m.amount,
		ResultingBalance: balance,
		Reason:           m.reason,
		CorrelationID:    m.correlationID,
		ActorID:          m.actorID,
	}
	if err := uc.repo.AppendEntry(ctx, entry, w.Version); err != nil {
		if pricingErrors.IsCorrelationConflict(err) {
			// 锁过期等情况下被并发写入，以已落库的流水为准
			prior, findErr := uc.repo.FindEntry(ctx, m.employerID, m.correlationID)
			if findErr == nil && prior != nil {
				return replay(prior, m)
			}
		}
		uc.log.Errorf("AppendEntry failed: employer=%s, correlation=%s, error=%v", m.employerID, m.correlationID, err)
		return nil, err
	}

	uc.log.Infof("Ledger %s applied: employer=%s, amount=%d, balance=%d, correlation=%s",
		m.direction, m.employerID, m.amount, balance, m.correlationID)
	return &LedgerResult{Entry: entry}, nil
}

// replay 幂等重放：同一关联 ID 必须对应相同的方向和数量
func replay(prior *TransactionLogEntry, m mutation) (*LedgerResult, error) {
	if prior.Direction != m.direction || prior.Amount != m.amount {
		return nil, pricingErrors.ErrorCorrelationConflict(
			"correlation id %s was already used for %s %d", m.correlationID, prior.Direction, prior.Amount)
	}
	return &LedgerResult{Entry: prior, Duplicate: true}, nil
}

func (uc *LedgerUseCase) notify(ctx context.Context, entry *TransactionLogEntry) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.LedgerEntryApplied(ctx, entry); err != nil {
		uc.log.Warnf("Notify ledger entry failed: entry=%s, employer=%s, error=%v", entry.ID, entry.EmployerID, err)
	}
}

// ProvisionWallet 开户，重复调用返回已有钱包
func (uc *LedgerUseCase) ProvisionWallet(ctx context.Context, employerID string, model PricingModel) (*Wallet, error) {
	if employerID == "" {
		return nil, pricingErrors.ErrorValidation("employer id is required")
	}
	if model == "" {
		model = PricingModelSubscription
	}
	if !model.Valid() {
		return nil, pricingErrors.ErrorValidation("unknown pricing model %q", model)
	}
	now := time.Now()
	w := &Wallet{
		EmployerID:   employerID,
		PricingModel: model,
		Timing:       PaymentTiming{Type: TimingDeferred},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := uc.repo.CreateWallet(ctx, w)
	if err != nil {
		return nil, err
	}
	if !created {
		return uc.GetWallet(ctx, employerID)
	}
	uc.log.Infof("Wallet provisioned: employer=%s, model=%s", employerID, model)
	return w, nil
}

// GetWallet 查询钱包
func (uc *LedgerUseCase) GetWallet(ctx context.Context, employerID string) (*Wallet, error) {
	w, err := uc.repo.GetWallet(ctx, employerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, pricingErrors.ErrorWalletNotFound("wallet for employer %s not found", employerID)
	}
	return w, nil
}

// FindEntry 按关联 ID 查询已写入的流水
func (uc *LedgerUseCase) FindEntry(ctx context.Context, employerID, correlationID string) (*TransactionLogEntry, error) {
	return uc.repo.FindEntry(ctx, employerID, correlationID)
}

// Balance 查询余额
func (uc *LedgerUseCase) Balance(ctx context.Context, employerID string) (int64, error) {
	balance, ok, err := uc.repo.GetBalance(ctx, employerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, pricingErrors.ErrorWalletNotFound("wallet for employer %s not found", employerID)
	}
	return balance, nil
}

// ListEntries 分页查询流水（按时间倒序）
func (uc *LedgerUseCase) ListEntries(ctx context.Context, employerID string, page, pageSize int) ([]*TransactionLogEntry, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return uc.repo.ListEntries(ctx, employerID, page, pageSize)
}

// Reconcile 校验余额与流水汇总是否一致
func (uc *LedgerUseCase) Reconcile(ctx context.Context, employerID string) (*Reconciliation, error) {
	w, err := uc.GetWallet(ctx, employerID)
	if err != nil {
		return nil, err
	}
	credits, debits, err := uc.repo.SumEntries(ctx, employerID)
	if err != nil {
		return nil, err
	}
	r := &Reconciliation{
		EmployerID: employerID,
		Balance:    w.Balance,
		Credits:    credits,
		Debits:     debits,
		Consistent: w.Balance == credits-debits,
	}
	if !r.Consistent {
		uc.metrics.ReconcileMismatchTot.Inc()
		uc.log.Errorf("Reconcile mismatch: employer=%s, balance=%d, credits=%d, debits=%d",
			employerID, w.Balance, credits, debits)
	}
	return r, nil
}

// ReconcileAll 对所有钱包对账，返回不一致的结果
func (uc *LedgerUseCase) ReconcileAll(ctx context.Context) (int, []*Reconciliation, error) {
	ids, err := uc.repo.ListEmployerIDs(ctx)
	if err != nil {
		return 0, nil, err
	}
	var mismatches []*Reconciliation
	for _, id := range ids {
		r, err := uc.Reconcile(ctx, id)
		if err != nil {
			uc.log.Warnf("Reconcile failed for employer=%s: %v", id, err)
			continue
		}
		if !r.Consistent {
			mismatches = append(mismatches, r)
		}
	}
	return len(ids), mismatches, nil
}

// SetPricingModel 切换计费模式
func (uc *LedgerUseCase) SetPricingModel(ctx context.Context, employerID string, model PricingModel, planID string) (*Wallet, error) {
	if !model.Valid() {
		return nil, pricingErrors.ErrorValidation("unknown pricing model %q", model)
	}
	return uc.updateSettings(ctx, employerID, func(w *Wallet) {
		w.PricingModel = model
		if model == PricingModelSubscription {
			w.SubscriptionPlanID = planID
		} else {
			w.SubscriptionPlanID = ""
		}
	})
}

// SetPaymentTiming 保存付款时机选择，调用方需先经 Resolver 校验
func (uc *LedgerUseCase) SetPaymentTiming(ctx context.Context, employerID string, timing PaymentTiming) (*Wallet, error) {
	if !timing.Type.Valid() {
		return nil, pricingErrors.ErrorValidation("unknown payment timing %q", timing.Type)
	}
	return uc.updateSettings(ctx, employerID, func(w *Wallet) {
		w.Timing = timing
	})
}

func (uc *LedgerUseCase) updateSettings(ctx context.Context, employerID string, change func(w *Wallet)) (*Wallet, error) {
	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyWalletLock+employerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := uc.GetWallet(ctx, employerID)
	if err != nil {
		return nil, err
	}
	expected := w.Version
	change(w)
	w.UpdatedAt = time.Now()
	if err := uc.repo.UpdateWalletSettings(ctx, w, expected); err != nil {
		return nil, err
	}
	w.Version = expected + 1
	return w, nil
}
