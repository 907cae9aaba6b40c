package biz_test

import (
	"errors"
	"testing"
	"time"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseBundle(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)

	res, err := f.engine.PurchaseBundle(f.ctx, employerA, bundleStarter, "INR", "pay-1")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Quote)
	assert.True(t, dec("4999").Equal(res.Quote.FinalPrice))
	assert.EqualValues(t, 100, res.Entry.Amount)
	assert.Equal(t, biz.DirectionCredit, res.Entry.Direction)

	again, err := f.engine.PurchaseBundle(f.ctx, employerA, bundleStarter, "INR", "pay-1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.Entry.ID, again.Entry.ID)

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)
	assert.Len(t, f.wallets.Entries(employerA), 1)
}

func TestPurchaseBundleUnknown(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)

	_, err := f.engine.PurchaseBundle(f.ctx, employerA, "missing", "INR", "pay-1")
	assert.True(t, pricingErrors.IsBundleNotFound(err))
	_, err = f.engine.PurchaseBundle(f.ctx, employerA, bundleStarter, "JPY", "pay-2")
	assert.True(t, pricingErrors.IsBundleNotFound(err))
	assert.Empty(t, f.wallets.Entries(employerA))
}

func TestPurchaseBundleCorrelationConflict(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 200)
	_, err := f.ledger.Debit(f.ctx, employerA, 50, "overage", "req-1")
	require.NoError(t, err)

	_, err = f.engine.PurchaseBundle(f.ctx, employerA, bundleStarter, "INR", "req-1")
	assert.True(t, pricingErrors.IsCorrelationConflict(err), "got %v", err)

	pro, err := f.catalog.CreateBundle(f.ctx, &biz.CreditBundle{
		Code: "pro", Name: "Pro", Credits: 500, Prices: map[string]decimal.Decimal{"INR": dec("19999")},
	})
	require.NoError(t, err)
	_, err = f.engine.PurchaseBundle(f.ctx, employerA, bundleStarter, "INR", "pay-1")
	require.NoError(t, err)
	_, err = f.engine.PurchaseBundle(f.ctx, employerA, pro.ID, "INR", "pay-1")
	assert.True(t, pricingErrors.IsCorrelationConflict(err), "got %v", err)

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 250, balance)
}

func subscribe(t *testing.T, f *fixture, employerID string) *biz.Subscription {
	t.Helper()
	res, err := f.engine.Subscribe(f.ctx, employerID, planBasic, "INR", "sub-"+employerID)
	require.NoError(t, err)
	return res.Subscription
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	res, err := f.engine.Subscribe(f.ctx, employerA, planBasic, "INR", "sub-1")
	require.NoError(t, err)
	sub := res.Subscription
	assert.Equal(t, planBasic, sub.PlanID)
	assert.True(t, dec("9999").Equal(sub.Price))
	assert.WithinDuration(t, sub.StartsAt.AddDate(0, 0, 30), sub.EndsAt, time.Second)

	w, err := f.ledger.GetWallet(f.ctx, employerA)
	require.NoError(t, err)
	assert.Equal(t, biz.PricingModelSubscription, w.PricingModel)
	assert.Equal(t, planBasic, w.SubscriptionPlanID)

	again, err := f.engine.Subscribe(f.ctx, employerA, planBasic, "INR", "sub-1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, sub.ID, again.Subscription.ID)

	// 新订阅替换旧订阅
	next, err := f.engine.Subscribe(f.ctx, employerA, planBasic, "INR", "sub-2")
	require.NoError(t, err)
	prev, ok := f.subscriptions.Get(sub.ID)
	require.True(t, ok)
	assert.Equal(t, biz.SubscriptionSuperseded, prev.Status)

	active, err := f.subs.GetActive(f.ctx, employerA)
	require.NoError(t, err)
	assert.Equal(t, next.Subscription.ID, active.ID)
}

func TestSubscribeRetryRepairsWalletModel(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	f.wallets.SettingsErr = errors.New("connection reset")
	_, err := f.engine.Subscribe(f.ctx, employerA, planBasic, "INR", "sub-1")
	require.Error(t, err)
	f.wallets.SettingsErr = nil

	again, err := f.engine.Subscribe(f.ctx, employerA, planBasic, "INR", "sub-1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	w, err := f.ledger.GetWallet(f.ctx, employerA)
	require.NoError(t, err)
	assert.Equal(t, biz.PricingModelSubscription, w.PricingModel)
	assert.Equal(t, planBasic, w.SubscriptionPlanID)
}

func TestSubscribeRequiresWallet(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Subscribe(f.ctx, employerA, planBasic, "INR", "sub-1")
	assert.True(t, pricingErrors.IsWalletNotFound(err))
}

func TestConsumeQuotaPlanThenCredits(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)
	subscribe(t, f, employerA)

	res, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 1, "post-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Consumption.FromPlan)
	assert.EqualValues(t, 0, res.Consumption.FromCredits)
	assert.EqualValues(t, 1, res.Remaining)

	// 剩 1 个套餐额度，另外 2 个按每个 10 积分扣
	res, err = f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 3, "post-2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Consumption.FromPlan)
	assert.EqualValues(t, 2, res.Consumption.FromCredits)
	assert.EqualValues(t, 20, res.Consumption.CreditsDebited)
	assert.NotEmpty(t, res.Consumption.LedgerEntryID)
	assert.EqualValues(t, 0, res.Remaining)

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 80, balance)

	active, err := f.subs.GetActive(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 2, active.Usage.JobPosts)
}

func TestConsumeQuotaReplay(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)
	subscribe(t, f, employerA)

	first, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 4, "post-1")
	require.NoError(t, err)

	again, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 4, "post-1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Consumption.ID, again.Consumption.ID)

	_, err = f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 5, "post-1")
	assert.True(t, pricingErrors.IsCorrelationConflict(err))

	balance, err := f.ledger.Balance(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 80, balance)
}

func TestConsumeQuotaInsufficientCredits(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 5)
	subscribe(t, f, employerA)

	_, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 3, "post-1")
	assert.True(t, pricingErrors.IsInsufficientBalance(err))

	// 失败的消耗不占用套餐额度
	active, err := f.subs.GetActive(f.ctx, employerA)
	require.NoError(t, err)
	assert.EqualValues(t, 0, active.Usage.JobPosts)
}

func TestConsumeQuotaDailyProfileViewCap(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)
	subscribe(t, f, employerA)

	_, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaProfileViews, 3, "view-1")
	require.NoError(t, err)
	_, err = f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaProfileViews, 1, "view-2")
	assert.True(t, pricingErrors.IsQuotaExceeded(err))
}

func TestConsumeQuotaNotPurchasable(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)
	subscribe(t, f, employerA)

	_, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaAutoSchedules, 1, "sched-1")
	assert.True(t, pricingErrors.IsQuotaExceeded(err))
}

func TestConsumeQuotaWithoutSubscription(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 100)

	_, err := f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 1, "post-1")
	assert.True(t, pricingErrors.IsNoActiveSubscription(err))

	_, err = f.engine.ConsumeQuota(f.ctx, employerA, "teleports", 1, "post-2")
	assert.True(t, pricingErrors.IsValidation(err))
	_, err = f.engine.ConsumeQuota(f.ctx, employerA, biz.QuotaJobPosts, 0, "post-3")
	assert.True(t, pricingErrors.IsValidation(err))
}

func TestExpireSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)
	sub := subscribe(t, f, employerA)

	n, err := f.subs.ExpireSubscriptions(f.ctx, sub.EndsAt.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.subs.GetActive(f.ctx, employerA)
	assert.True(t, pricingErrors.IsNoActiveSubscription(err))
}

func hire(employerID, corr, salary string) *biz.HireRequest {
	return &biz.HireRequest{
		EmployerID:    employerID,
		HireRef:       "cand-" + corr,
		Salary:        dec(salary),
		Currency:      "INR",
		CorrelationID: corr,
	}
}

func TestSettleHireDeferred(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	res, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "60000"))
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	s := res.Settlement
	assert.True(t, dec("900").Equal(s.FinalPrice))
	assert.True(t, dec("900").Equal(s.DeferredAmount))
	assert.Equal(t, biz.SettlementPending, s.Status)
	assert.WithinDuration(t, s.CreatedAt.AddDate(0, 0, 30), s.DueAt, time.Second)

	again, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "60000"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, s.ID, again.Settlement.ID)

	// PPH 结算不动积分余额
	assert.Empty(t, f.wallets.Entries(employerA))

	items, total, err := f.settle.List(f.ctx, employerA, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)
}

func TestSettleHireManualPricing(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	res, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "200000"))
	require.NoError(t, err)
	assert.Nil(t, res.Settlement)
	require.NotNil(t, res.Quote)
	assert.Equal(t, biz.ManualAboveCeiling, res.Quote.ManualReason)

	_, total, err := f.settle.List(f.ctx, employerA, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestSettleHireRequiresPayPerHire(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelSubscription, 0)

	_, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "60000"))
	assert.True(t, pricingErrors.IsValidation(err))

	_, err = f.engine.SettleHire(f.ctx, hire(employerB, "h1", "60000"))
	assert.True(t, pricingErrors.IsWalletNotFound(err))
}

func TestSettleHireReplayAfterModelSwitch(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	first, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "60000"))
	require.NoError(t, err)
	_, err = f.ledger.SetPricingModel(f.ctx, employerA, biz.PricingModelSubscription, planBasic)
	require.NoError(t, err)

	again, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "60000"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Settlement.ID, again.Settlement.ID)

	_, err = f.engine.SettleHire(f.ctx, hire(employerA, "h2", "60000"))
	assert.True(t, pricingErrors.IsValidation(err))
}

func TestSettleHireWithOverride(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)
	_, err := f.catalog.CreateOverride(f.ctx, &biz.CustomCorporatePlan{
		EmployerID: employerA, Currency: "INR", PricePerHire: dec("1200"), PaymentCycle: biz.CycleWeekly,
		AdvancePct: dec("25"), DeferredPct: dec("75"), Active: true,
	})
	require.NoError(t, err)

	res, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "500000"))
	require.NoError(t, err)
	s := res.Settlement
	require.NotNil(t, s)
	assert.Equal(t, biz.SourceOverride, s.Source)
	assert.True(t, dec("300").Equal(s.AdvanceAmount))
	assert.True(t, dec("900").Equal(s.DeferredAmount))
	assert.WithinDuration(t, s.CreatedAt.AddDate(0, 0, 7), s.DueAt, time.Second)
}

func TestMarkSettlementPaidAndOverdue(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	first, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "10000"))
	require.NoError(t, err)
	second, err := f.engine.SettleHire(f.ctx, hire(employerA, "h2", "10000"))
	require.NoError(t, err)

	paid, err := f.settle.MarkPaid(f.ctx, first.Settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, biz.SettlementPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	again, err := f.settle.MarkPaid(f.ctx, first.Settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, biz.SettlementPaid, again.Status)

	_, err = f.settle.MarkPaid(f.ctx, "missing")
	assert.True(t, pricingErrors.IsSettlementNotFound(err))

	n, err := f.settle.MarkOverdue(f.ctx, second.Settlement.DueAt.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestApplyPaymentTiming(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, employerA, biz.PricingModelPayPerHire, 0)

	_, _, err := f.engine.ApplyPaymentTiming(f.ctx, employerA, biz.TimingAdvance, decPtr("25"))
	assert.True(t, pricingErrors.IsValidation(err))

	q, w, err := f.engine.ApplyPaymentTiming(f.ctx, employerA, biz.TimingAdvance, decPtr("10"))
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(q.DiscountPct))
	assert.Equal(t, biz.TimingAdvance, w.Timing.Type)
	require.NotNil(t, w.Timing.DiscountPct)

	hq, err := f.engine.QuoteHire(f.ctx, hire(employerA, "q1", "60000"))
	require.NoError(t, err)
	assert.True(t, dec("810").Equal(hq.FinalPrice))

	res, err := f.engine.SettleHire(f.ctx, hire(employerA, "h1", "60000"))
	require.NoError(t, err)
	assert.True(t, dec("810").Equal(res.Settlement.AdvanceAmount))
	assert.WithinDuration(t, res.Settlement.CreatedAt, res.Settlement.DueAt, time.Second)

	_, w, err = f.engine.ApplyPaymentTiming(f.ctx, employerA, biz.TimingDeferred, nil)
	require.NoError(t, err)
	assert.Nil(t, w.Timing.DiscountPct)

	_, _, err = f.engine.ApplyPaymentTiming(f.ctx, employerB, biz.TimingDeferred, nil)
	assert.True(t, pricingErrors.IsWalletNotFound(err))
}

func TestQuoteHireWithoutWallet(t *testing.T) {
	f := newFixture(t)

	q, err := f.engine.QuoteHire(f.ctx, hire("prospect", "q1", "20000"))
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(q.FinalPrice))
	assert.Equal(t, biz.TimingDeferred, q.Timing)
}
