package memory

import (
	"context"
	"sort"
	"sync"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"
)

// WalletRepo 内存钱包与流水
type WalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]biz.Wallet
	entries []biz.TransactionLogEntry
	byCorr  map[string]int // employerID + "/" + correlationID -> entries 下标

	// SettingsErr 非空时 UpdateWalletSettings 直接返回该错误
	SettingsErr error
}

// NewWalletRepo 创建内存钱包
func NewWalletRepo() *WalletRepo {
	return &WalletRepo{
		wallets: make(map[string]biz.Wallet),
		byCorr:  make(map[string]int),
	}
}

var _ biz.WalletRepo = (*WalletRepo)(nil)

func corrKey(employerID, correlationID string) string {
	return employerID + "/" + correlationID
}

func (r *WalletRepo) CreateWallet(ctx context.Context, w *biz.Wallet) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.EmployerID]; ok {
		return false, nil
	}
	cp := *w
	cp.Balance = 0
	cp.Version = 0
	r.wallets[w.EmployerID] = cp
	return true, nil
}

func (r *WalletRepo) GetWallet(ctx context.Context, employerID string) (*biz.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[employerID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetBalance(ctx context.Context, employerID string) (int64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[employerID]
	return w.Balance, ok, nil
}

func (r *WalletRepo) FindEntry(ctx context.Context, employerID, correlationID string) (*biz.TransactionLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byCorr[corrKey(employerID, correlationID)]
	if !ok {
		return nil, nil
	}
	e := r.entries[i]
	return &e, nil
}

func (r *WalletRepo) AppendEntry(ctx context.Context, entry *biz.TransactionLogEntry, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[entry.EmployerID]
	if !ok || w.Version != expectedVersion {
		return pricingErrors.ErrorConcurrentUpdate("wallet %s changed concurrently", entry.EmployerID)
	}
	key := corrKey(entry.EmployerID, entry.CorrelationID)
	if _, dup := r.byCorr[key]; dup {
		return pricingErrors.ErrorCorrelationConflict("correlation id %s already applied", entry.CorrelationID)
	}
	w.Balance = entry.ResultingBalance
	w.Version++
	r.wallets[entry.EmployerID] = w
	r.entries = append(r.entries, *entry)
	r.byCorr[key] = len(r.entries) - 1
	return nil
}

func (r *WalletRepo) UpdateWalletSettings(ctx context.Context, w *biz.Wallet, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SettingsErr != nil {
		return r.SettingsErr
	}
	cur, ok := r.wallets[w.EmployerID]
	if !ok || cur.Version != expectedVersion {
		return pricingErrors.ErrorConcurrentUpdate("wallet %s changed concurrently", w.EmployerID)
	}
	cur.PricingModel = w.PricingModel
	cur.SubscriptionPlanID = w.SubscriptionPlanID
	cur.Timing = w.Timing
	cur.UpdatedAt = w.UpdatedAt
	cur.Version++
	r.wallets[w.EmployerID] = cur
	return nil
}

func (r *WalletRepo) ListEntries(ctx context.Context, employerID string, page, pageSize int) ([]*biz.TransactionLogEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*biz.TransactionLogEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].EmployerID == employerID {
			e := r.entries[i]
			all = append(all, &e)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*biz.TransactionLogEntry{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *WalletRepo) SumEntries(ctx context.Context, employerID string) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var credits, debits int64
	for _, e := range r.entries {
		if e.EmployerID != employerID {
			continue
		}
		if e.Direction == biz.DirectionCredit {
			credits += e.Amount
		} else {
			debits += e.Amount
		}
	}
	return credits, debits, nil
}

func (r *WalletRepo) ListEmployerIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.wallets))
	for id := range r.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Entries 某企业的全部流水（按写入顺序）
func (r *WalletRepo) Entries(employerID string) []biz.TransactionLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []biz.TransactionLogEntry
	for _, e := range r.entries {
		if e.EmployerID == employerID {
			out = append(out, e)
		}
	}
	return out
}

// ForceBalance 绕过账本直接改余额（用于对账测试）
func (r *WalletRepo) ForceBalance(employerID string, balance int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.wallets[employerID]
	w.Balance = balance
	r.wallets[employerID] = w
}

// RecordingNotifier 记录收到的账本通知，可配置返回错误
type RecordingNotifier struct {
	mu      sync.Mutex
	entries []biz.TransactionLogEntry
	Err     error
}

var _ biz.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) LedgerEntryApplied(ctx context.Context, entry *biz.TransactionLogEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, *entry)
	return n.Err
}

// Entries 已收到的通知
func (n *RecordingNotifier) Entries() []biz.TransactionLogEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]biz.TransactionLogEntry(nil), n.entries...)
}
