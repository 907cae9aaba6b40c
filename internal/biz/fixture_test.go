package biz_test

import (
	"context"
	"io"
	"testing"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/data/memory"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	bundleStarter = "bundle-starter"
	planBasic     = "plan-basic"
	employerA     = "emp-a"
	employerB     = "emp-b"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func inrSlabs() []biz.SalarySlab {
	return []biz.SalarySlab{
		{ID: "inr-1", Currency: "INR", MinSalary: dec("0"), MaxSalary: dec("50000"), PPHFee: dec("500"), Active: true},
		{ID: "inr-2", Currency: "INR", MinSalary: dec("50000"), MaxSalary: dec("100000"), PPHFee: dec("900"), Active: true},
		{ID: "inr-3", Currency: "INR", MinSalary: dec("100000"), MaxSalary: dec("150000"), PPHFee: dec("1500"), Active: true},
	}
}

func seedCatalogData() biz.CatalogData {
	slabs := inrSlabs()
	data := biz.CatalogData{
		Bundles: []*biz.CreditBundle{{
			ID: bundleStarter, Code: "starter", Version: 1, Name: "Starter", Credits: 100,
			Prices: map[string]decimal.Decimal{"INR": dec("4999"), "USD": dec("59")}, Active: true,
		}},
		Plans: []*biz.SubscriptionPlan{{
			ID: planBasic, Code: "basic", Version: 1, Name: "Basic", DurationDays: 30,
			Prices:   map[string]decimal.Decimal{"INR": dec("9999")},
			Quotas:   biz.PlanQuotas{JobPosts: 2, ProfileViews: 5, DailyProfileViewCap: 3, Previews: 10},
			Features: biz.PlanFeatures{EmailOutreach: true},
			Active:   true,
		}},
		TimingOptions: []*biz.PaymentTimingOption{
			{Type: biz.TimingAdvance, MinDiscountPct: dec("5"), MaxDiscountPct: dec("20"), Customizable: true},
			{Type: biz.TimingDeferred, PaymentTermDays: 30},
		},
	}
	for i := range slabs {
		data.Slabs = append(data.Slabs, &slabs[i])
	}
	return data
}

type fixture struct {
	ctx           context.Context
	catalogRepo   *memory.CatalogRepo
	versions      *memory.VersionRepo
	wallets       *memory.WalletRepo
	subscriptions *memory.SubscriptionRepo
	settlements   *memory.SettlementRepo
	notifier      *memory.RecordingNotifier
	conf          *biz.PricingConfig

	catalog *biz.CatalogUseCase
	ledger  *biz.LedgerUseCase
	engine  *biz.EngineUseCase
	settle  *biz.SettlementUseCase
	subs    *biz.SubscriptionUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	f := &fixture{
		ctx:           context.Background(),
		catalogRepo:   memory.NewCatalogRepo(),
		versions:      memory.NewVersionRepo(),
		wallets:       memory.NewWalletRepo(),
		subscriptions: memory.NewSubscriptionRepo(),
		settlements:   memory.NewSettlementRepo(),
		notifier:      &memory.RecordingNotifier{},
		conf: &biz.PricingConfig{
			CreditCosts: map[biz.QuotaKind]int64{
				biz.QuotaJobPosts:     10,
				biz.QuotaProfileViews: 1,
			},
			LowBalanceThreshold: 100,
			LockExpiry:          time.Second,
		},
	}

	data := seedCatalogData()
	for _, b := range data.Bundles {
		require.NoError(t, f.catalogRepo.CreateBundle(f.ctx, b))
	}
	for _, p := range data.Plans {
		require.NoError(t, f.catalogRepo.CreatePlan(f.ctx, p))
	}
	for _, s := range data.Slabs {
		f.catalogRepo.PutSlabs(*s)
	}
	for _, o := range data.TimingOptions {
		require.NoError(t, f.catalogRepo.SaveTimingOption(f.ctx, o))
	}
	_, err := f.versions.BumpVersion(f.ctx)
	require.NoError(t, err)

	locker := memory.NewKeyedLocker()
	f.catalog = biz.NewCatalogUseCase(f.catalogRepo, f.versions, logger)
	f.ledger = biz.NewLedgerUseCase(f.wallets, locker, f.notifier, f.conf, logger)
	f.engine = biz.NewEngineUseCase(f.catalog, biz.NewResolver(), f.ledger, f.subscriptions, f.settlements, locker, f.conf, logger)
	f.settle = biz.NewSettlementUseCase(f.settlements, logger)
	f.subs = biz.NewSubscriptionUseCase(f.subscriptions, logger)
	return f
}

// reload 绕过用例直接改仓库后，广播新版本并刷新快照
func (f *fixture) reload(t *testing.T) {
	t.Helper()
	_, err := f.versions.BumpVersion(f.ctx)
	require.NoError(t, err)
	refreshed, err := f.catalog.Refresh(f.ctx)
	require.NoError(t, err)
	require.True(t, refreshed)
}

func (f *fixture) wallet(t *testing.T, employerID string, model biz.PricingModel, balance int64) {
	t.Helper()
	_, err := f.ledger.ProvisionWallet(f.ctx, employerID, model)
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.ledger.Credit(f.ctx, employerID, balance, "opening balance", "seed-"+employerID)
		require.NoError(t, err)
	}
}
