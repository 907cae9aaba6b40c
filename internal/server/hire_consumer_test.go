package server

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/data/memory"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consumerFixture struct {
	consumer    *HireEventConsumer
	ledger      *biz.LedgerUseCase
	settlements *memory.SettlementRepo
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	ctx := context.Background()
	logger := log.NewStdLogger(io.Discard)

	catalogRepo := memory.NewCatalogRepo()
	catalogRepo.PutSlabs(
		biz.SalarySlab{ID: "inr-1", Currency: "INR", MinSalary: decimal.Zero, MaxSalary: decimal.NewFromInt(50000), PPHFee: decimal.NewFromInt(500), Active: true},
		biz.SalarySlab{ID: "inr-2", Currency: "INR", MinSalary: decimal.NewFromInt(50000), MaxSalary: decimal.NewFromInt(100000), PPHFee: decimal.NewFromInt(900), Active: true},
	)
	require.NoError(t, catalogRepo.SaveTimingOption(ctx, &biz.PaymentTimingOption{Type: biz.TimingDeferred, PaymentTermDays: 30}))
	versions := memory.NewVersionRepo()
	_, err := versions.BumpVersion(ctx)
	require.NoError(t, err)

	conf := &biz.PricingConfig{CreditCosts: map[biz.QuotaKind]int64{}, LockExpiry: time.Second}
	locker := memory.NewKeyedLocker()
	settlements := memory.NewSettlementRepo()
	catalog := biz.NewCatalogUseCase(catalogRepo, versions, logger)
	ledger := biz.NewLedgerUseCase(memory.NewWalletRepo(), locker, &memory.RecordingNotifier{}, conf, logger)
	engine := biz.NewEngineUseCase(catalog, biz.NewResolver(), ledger, memory.NewSubscriptionRepo(), settlements, locker, conf, logger)

	return &consumerFixture{
		consumer:    &HireEventConsumer{engine: engine, log: log.NewHelper(logger)},
		ledger:      ledger,
		settlements: settlements,
	}
}

func TestHireEventConsumer_Consume(t *testing.T) {
	ctx := context.Background()
	f := newConsumerFixture(t)
	_, err := f.ledger.ProvisionWallet(ctx, "emp-1", biz.PricingModelPayPerHire)
	require.NoError(t, err)

	body := []byte(`{"event_id":"evt-1","employer_id":"emp-1","hire_ref":"hire-9","salary":"80000","currency":"INR","hire_count":1}`)
	require.NoError(t, f.consumer.consume(ctx, body))

	s, err := f.settlements.GetByCorrelation(ctx, "emp-1", "hire:evt-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.FinalPrice.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, biz.SettlementPending, s.Status)

	// 重复投递只生成一张结算单
	require.NoError(t, f.consumer.consume(ctx, body))
	list, total, err := f.settlements.ListByEmployer(ctx, "emp-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestHireEventConsumer_DropsPermanentFailures(t *testing.T) {
	ctx := context.Background()
	f := newConsumerFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"event_id":`},
		{"missing event id", `{"employer_id":"emp-1","hire_ref":"h","salary":"1000","currency":"INR"}`},
		{"unknown wallet", `{"event_id":"evt-2","employer_id":"ghost","hire_ref":"h","salary":"1000","currency":"INR"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, f.consumer.consume(ctx, []byte(tt.body)))
		})
	}

	_, total, err := f.settlements.ListByEmployer(ctx, "ghost", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHireEventConsumer_ManualPricingAcked(t *testing.T) {
	ctx := context.Background()
	f := newConsumerFixture(t)
	_, err := f.ledger.ProvisionWallet(ctx, "emp-1", biz.PricingModelPayPerHire)
	require.NoError(t, err)

	body := []byte(`{"event_id":"evt-3","employer_id":"emp-1","hire_ref":"hire-1","salary":"250000","currency":"INR","hire_count":1}`)
	require.NoError(t, f.consumer.consume(ctx, body))

	s, err := f.settlements.GetByCorrelation(ctx, "emp-1", "hire:evt-3")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(pricingErrors.ErrorValidation("bad")))
	assert.True(t, permanent(pricingErrors.ErrorWalletNotFound("missing")))
	assert.True(t, permanent(pricingErrors.ErrorCorrelationConflict("dup")))
	assert.False(t, permanent(pricingErrors.ErrorLockFailed("busy")))
	assert.False(t, permanent(errors.New("connection reset")))
}
