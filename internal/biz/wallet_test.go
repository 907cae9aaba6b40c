package biz_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/data/memory"
	pricingErrors "pricing-service/internal/errors"

	kratosErrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCreditDebitConservation(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)

	_, err := f.ledger.Credit(f.ctx, employerA, 100, "bundle", "c1")
	require.NoError(t, err)
	res, err := f.ledger.Debit(f.ctx, employerA, 30, "overage", "d1")
	require.NoError(t, err)
	assert.EqualValues(t, 70, res.Entry.ResultingBalance)
	assert.Equal(t, biz.DirectionDebit, res.Entry.Direction)

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 70, balance)

	entries := f.wallets.Entries(employerA)
	require.Len(t, entries, 2)
	assert.EqualValues(t, 100, entries[0].ResultingBalance)
	assert.EqualValues(t, 70, entries[1].ResultingBalance)

	rec, err := f.ledger.Reconcile(f.ctx, employerA)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.EqualValues(t, 100, rec.Credits)
	assert.EqualValues(t, 30, rec.Debits)
}

func TestLedgerInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 50)

	_, err := f.ledger.Debit(f.ctx, employerA, 51, "overage", "d1")
	require.Error(t, err)
	assert.True(t, pricingErrors.IsInsufficientBalance(err))
	assert.EqualValues(t, 402, kratosErrors.Code(err))
	assert.Equal(t, "50", kratosErrors.FromError(err).Metadata["balance"])

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 50, balance)
	assert.Len(t, f.wallets.Entries(employerA), 1)

	// 恰好扣到 0 是允许的
	_, err = f.ledger.Debit(f.ctx, employerA, 50, "overage", "d2")
	require.NoError(t, err)
}

func TestLedgerRejectsInvalidMutations(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 10)

	_, err := f.ledger.Credit(f.ctx, employerA, 0, "zero", "z1")
	assert.True(t, pricingErrors.IsValidation(err))
	_, err = f.ledger.Debit(f.ctx, employerA, -5, "negative", "n1")
	assert.True(t, pricingErrors.IsValidation(err))
	_, err = f.ledger.Credit(f.ctx, employerA, 5, "no correlation", "")
	assert.True(t, pricingErrors.IsValidation(err))
	_, err = f.ledger.Credit(f.ctx, "nobody", 5, "unknown", "u1")
	assert.True(t, pricingErrors.IsWalletNotFound(err))

	assert.Len(t, f.wallets.Entries(employerA), 1)
}

func TestLedgerIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)

	first, err := f.ledger.Credit(f.ctx, employerA, 100, "bundle", "order-1")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	again, err := f.ledger.Credit(f.ctx, employerA, 100, "bundle", "order-1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Entry.ID, again.Entry.ID)

	_, err = f.ledger.Credit(f.ctx, employerA, 200, "bundle", "order-1")
	assert.True(t, pricingErrors.IsCorrelationConflict(err))
	_, err = f.ledger.Debit(f.ctx, employerA, 100, "bundle", "order-1")
	assert.True(t, pricingErrors.IsCorrelationConflict(err))

	// 同一关联 ID 在不同企业下互不影响
	f.wallet(t, employerB, biz.PricingModelSubscription, 0)
	other, err := f.ledger.Credit(f.ctx, employerB, 100, "bundle", "order-1")
	require.NoError(t, err)
	assert.False(t, other.Duplicate)

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)
	assert.Len(t, f.wallets.Entries(employerA), 1)
	assert.Len(t, f.notifier.Entries(), 2)
}

func TestLedgerConcurrentDebits(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.Debit(f.ctx, employerA, 60, "overage", fmt.Sprintf("debit-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pricingErrors.IsInsufficientBalance(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 40, balance)
}

func TestLedgerConcurrentReplaySameCorrelation(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Credit(f.ctx, employerA, 25, "bundle", "order-42")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 25, balance)
	assert.Len(t, f.wallets.Entries(employerA), 1)
}

func TestManualAdjust(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 20)

	_, err := f.ledger.ManualAdjust(f.ctx, employerA, 10, "", "goodwill", "adj-1")
	assert.True(t, pricingErrors.IsValidation(err))
	_, err = f.ledger.ManualAdjust(f.ctx, employerA, 0, "ops-1", "noop", "adj-0")
	assert.True(t, pricingErrors.IsValidation(err))

	res, err := f.ledger.ManualAdjust(f.ctx, employerA, -15, "ops-1", "chargeback", "adj-2")
	require.NoError(t, err)
	assert.Equal(t, biz.DirectionDebit, res.Entry.Direction)
	assert.EqualValues(t, 15, res.Entry.Amount)
	assert.Equal(t, "ops-1", res.Entry.ActorID)
	assert.EqualValues(t, 5, res.Entry.ResultingBalance)

	_, err = f.ledger.ManualAdjust(f.ctx, employerA, -6, "ops-1", "chargeback", "adj-3")
	assert.True(t, pricingErrors.IsInsufficientBalance(err))
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)
	f.notifier.Err = errors.New("broker unavailable")

	res, err := f.ledger.Credit(f.ctx, employerA, 40, "bundle", "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 40, res.Entry.ResultingBalance)

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 40, balance)
}

func TestReconcileDetectsDrift(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)
	f.wallet(t, employerB, biz.PricingModelPayPerHire, 10)
	f.wallets.ForceBalance(employerB, 999)

	checked, mismatches, err := f.ledger.ReconcileAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	require.Len(t, mismatches, 1)
	assert.Equal(t, employerB, mismatches[0].EmployerID)
	assert.EqualValues(t, 999, mismatches[0].Balance)
	assert.EqualValues(t, 10, mismatches[0].Credits)
}

func TestProvisionWallet(t *testing.T) {
	f := newFixture(t)

	w, err := f.ledger.ProvisionWallet(f.ctx, employerA, "")
	require.NoError(t, err)
	assert.Equal(t, biz.PricingModelSubscription, w.PricingModel)
	assert.Equal(t, biz.TimingDeferred, w.Timing.Type)
	assert.EqualValues(t, 0, w.Balance)

	_, err = f.ledger.Credit(f.ctx, employerA, 5, "bundle", "c1")
	require.NoError(t, err)

	again, err := f.ledger.ProvisionWallet(f.ctx, employerA, biz.PricingModelPayPerHire)
	require.NoError(t, err)
	assert.EqualValues(t, 5, again.Balance)
	assert.Equal(t, biz.PricingModelSubscription, again.PricingModel)

	_, err = f.ledger.ProvisionWallet(f.ctx, employerB, "freemium")
	assert.True(t, pricingErrors.IsValidation(err))
	_, err = f.ledger.GetWallet(f.ctx, employerB)
	assert.True(t, pricingErrors.IsWalletNotFound(err))
}

func TestListEntriesPaging(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)
	for i := 0; i < 5; i++ {
		_, err := f.ledger.Credit(f.ctx, employerA, int64(i+1), "bundle", fmt.Sprintf("c%d", i))
		require.NoError(t, err)
	}

	entries, total, err := f.ledger.ListEntries(f.ctx, employerA, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, entries, 2)

	entries, _, err = f.ledger.ListEntries(f.ctx, employerA, 3, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, _, err = f.ledger.ListEntries(f.ctx, employerA, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestLedgerCreditOverflow(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 10)

	_, err := f.ledger.Credit(f.ctx, employerA, math.MaxInt64, "bundle", "c-max")
	assert.True(t, pricingErrors.IsValidation(err), "got %v", err)

	_, err = f.ledger.Credit(f.ctx, employerA, math.MaxInt64-10, "bundle", "c-fit")
	require.NoError(t, err)
	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, int64(math.MaxInt64), balance)
}

// panicOnceRepo 首次读取钱包时 panic
type panicOnceRepo struct {
	*memory.WalletRepo
	panicked bool
}

func (r *panicOnceRepo) GetWallet(ctx context.Context, employerID string) (*biz.Wallet, error) {
	if !r.panicked {
		r.panicked = true
		panic("driver failure")
	}
	return r.WalletRepo.GetWallet(ctx, employerID)
}

func TestLedgerReleasesLockOnPanic(t *testing.T) {
	ctx := context.Background()
	repo := &panicOnceRepo{WalletRepo: memory.NewWalletRepo()}
	_, err := repo.CreateWallet(ctx, &biz.Wallet{EmployerID: employerA, PricingModel: biz.PricingModelSubscription})
	require.NoError(t, err)
	conf := &biz.PricingConfig{CreditCosts: map[biz.QuotaKind]int64{}, LockExpiry: time.Second}
	ledger := biz.NewLedgerUseCase(repo, memory.NewKeyedLocker(), nil, conf, log.NewStdLogger(io.Discard))

	assert.Panics(t, func() {
		_, _ = ledger.Credit(ctx, employerA, 10, "bundle", "c1")
	})

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	res, err := ledger.Credit(timeout, employerA, 10, "bundle", "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.Entry.ResultingBalance)
}
