package biz_test

import (
	"testing"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hireAt(salary string) biz.Action {
	return biz.Action{Kind: biz.ActionHireAtSalary, Salary: dec(salary), Currency: "INR"}
}

func deferredEmployer(id string) biz.EmployerContext {
	return biz.EmployerContext{EmployerID: id, Timing: biz.PaymentTiming{Type: biz.TimingDeferred}}
}

func TestResolveHireDeferred(t *testing.T) {
	c := biz.NewCatalog(7, seedCatalogData())
	r := biz.NewResolver()

	q, err := r.Resolve(c, deferredEmployer(employerA), hireAt("49999"))
	require.NoError(t, err)
	assert.Equal(t, biz.QuotePriced, q.Status)
	assert.Equal(t, biz.SourceSlab, q.Source)
	assert.Equal(t, "inr-1", q.SlabID)
	assert.True(t, dec("500").Equal(q.FinalPrice))
	assert.Equal(t, biz.TimingDeferred, q.Timing)
	require.NotNil(t, q.Split)
	assert.True(t, dec("500").Equal(q.Split.DeferredAmount))
	assert.True(t, q.Split.AdvanceAmount.IsZero())
	assert.EqualValues(t, 30, q.Split.DeferredDueDays)
	assert.EqualValues(t, 7, q.CatalogVersion)
	assert.Equal(t, "₹500.00", q.Display)
}

func TestResolveHireDefaultsToDeferred(t *testing.T) {
	c := biz.NewCatalog(1, seedCatalogData())

	q, err := biz.NewResolver().Resolve(c, biz.EmployerContext{EmployerID: employerA}, hireAt("80000"))
	require.NoError(t, err)
	assert.Equal(t, biz.TimingDeferred, q.Timing)
	assert.True(t, dec("900").Equal(q.FinalPrice))
}

func TestResolveHireAdvanceDiscount(t *testing.T) {
	c := biz.NewCatalog(1, seedCatalogData())
	r := biz.NewResolver()
	advance := biz.EmployerContext{EmployerID: employerA, Timing: biz.PaymentTiming{Type: biz.TimingAdvance}}

	tests := []struct {
		name     string
		emp      biz.EmployerContext
		discount *string
		final    string
		pct      string
	}{
		{name: "range minimum by default", emp: advance, final: "855", pct: "5"},
		{name: "request within range", emp: advance, discount: strPtr("20"), final: "720", pct: "20"},
		{name: "wallet selection", emp: biz.EmployerContext{EmployerID: employerA,
			Timing: biz.PaymentTiming{Type: biz.TimingAdvance, DiscountPct: decPtr("10")}}, final: "810", pct: "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := hireAt("80000")
			if tt.discount != nil {
				a.DiscountPct = decPtr(*tt.discount)
			}
			q, err := r.Resolve(c, tt.emp, a)
			require.NoError(t, err)
			assert.True(t, dec("900").Equal(q.Fee))
			assert.True(t, dec(tt.pct).Equal(q.DiscountPct), "pct %s", q.DiscountPct)
			assert.True(t, dec(tt.final).Equal(q.FinalPrice), "final %s", q.FinalPrice)
			assert.True(t, q.FinalPrice.Equal(q.Split.AdvanceAmount))
			assert.True(t, q.Split.DeferredAmount.IsZero())
		})
	}
}

func strPtr(s string) *string { return &s }

func TestResolveHireDiscountOutsideRangeRejected(t *testing.T) {
	c := biz.NewCatalog(1, seedCatalogData())
	r := biz.NewResolver()
	advance := biz.EmployerContext{EmployerID: employerA, Timing: biz.PaymentTiming{Type: biz.TimingAdvance}}

	for _, pct := range []string{"25", "4.99", "-1"} {
		a := hireAt("80000")
		a.DiscountPct = decPtr(pct)
		_, err := r.Resolve(c, advance, a)
		assert.True(t, pricingErrors.IsValidation(err), "discount %s: %v", pct, err)
	}
}

func TestResolveDeferredRejectsDiscount(t *testing.T) {
	c := biz.NewCatalog(1, seedCatalogData())
	r := biz.NewResolver()

	a := hireAt("80000")
	a.DiscountPct = decPtr("10")
	_, err := r.Resolve(c, deferredEmployer(employerA), a)
	assert.True(t, pricingErrors.IsValidation(err))

	a.DiscountPct = decPtr("0")
	q, err := r.Resolve(c, deferredEmployer(employerA), a)
	require.NoError(t, err)
	assert.True(t, dec("900").Equal(q.FinalPrice))
}

func TestResolveHireManualPricing(t *testing.T) {
	c := biz.NewCatalog(1, seedCatalogData())
	r := biz.NewResolver()

	q, err := r.Resolve(c, deferredEmployer(employerA), hireAt("150000"))
	require.NoError(t, err)
	assert.True(t, q.RequiresManualPricing())
	assert.Equal(t, biz.ManualAboveCeiling, q.ManualReason)
	assert.True(t, q.FinalPrice.IsZero())

	a := hireAt("1000")
	a.Currency = "GBP"
	q, err = r.Resolve(c, deferredEmployer(employerA), a)
	require.NoError(t, err)
	assert.Equal(t, biz.ManualNoSlabConfigured, q.ManualReason)
}

func overrideData(o *biz.CustomCorporatePlan) biz.CatalogData {
	data := seedCatalogData()
	data.Overrides = []*biz.CustomCorporatePlan{o}
	return data
}

func TestResolveOverride(t *testing.T) {
	o := &biz.CustomCorporatePlan{
		ID: "ov-1", EmployerID: employerA, Currency: "INR", PricePerHire: dec("1200"),
		PaymentCycle: biz.CycleMonthly, AdvancePct: dec("40"), DeferredPct: dec("60"),
		BulkTiers: []biz.BulkTier{{MinHires: 5, DiscountPct: dec("10")}, {MinHires: 10, DiscountPct: dec("15")}},
		Active:    true,
	}
	c := biz.NewCatalog(1, overrideData(o))
	r := biz.NewResolver()

	// 超出区间上限的薪资同样按定制价
	q, err := r.Resolve(c, deferredEmployer(employerA), hireAt("500000"))
	require.NoError(t, err)
	assert.Equal(t, biz.SourceOverride, q.Source)
	assert.Equal(t, "ov-1", q.OverrideID)
	assert.True(t, dec("1200").Equal(q.FinalPrice))
	assert.True(t, dec("480").Equal(q.Split.AdvanceAmount))
	assert.True(t, dec("720").Equal(q.Split.DeferredAmount))
	assert.EqualValues(t, 30, q.Split.DeferredDueDays)

	bulk := hireAt("50000")
	bulk.HireCount = 12
	q, err = r.Resolve(c, deferredEmployer(employerA), bulk)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(q.DiscountPct))
	assert.True(t, dec("1020").Equal(q.FinalPrice))
	assert.True(t, q.Split.AdvanceAmount.Add(q.Split.DeferredAmount).Equal(q.FinalPrice))

	// 其他企业不受影响
	q, err = r.Resolve(c, deferredEmployer(employerB), hireAt("50000"))
	require.NoError(t, err)
	assert.Equal(t, biz.SourceSlab, q.Source)
}

func TestResolveOverrideIgnoresPaymentTiming(t *testing.T) {
	o := &biz.CustomCorporatePlan{
		ID: "ov-1", EmployerID: employerA, Currency: "INR", PricePerHire: dec("1200"),
		PaymentCycle: biz.CycleMonthly, AdvancePct: dec("40"), DeferredPct: dec("60"), Active: true,
	}
	c := biz.NewCatalog(1, overrideData(o))
	advance := biz.EmployerContext{
		EmployerID: employerA,
		Timing:     biz.PaymentTiming{Type: biz.TimingAdvance, DiscountPct: decPtr("10")},
	}

	tests := []struct {
		name     string
		discount *string
	}{
		{"wallet advance discount", nil},
		{"requested discount", strPtr("20")},
		{"out of range discount", strPtr("25")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := hireAt("60000")
			if tt.discount != nil {
				a.DiscountPct = decPtr(*tt.discount)
			}
			q, err := biz.NewResolver().Resolve(c, advance, a)
			require.NoError(t, err)
			assert.Equal(t, biz.SourceOverride, q.Source)
			assert.Empty(t, q.Timing)
			assert.True(t, q.DiscountPct.IsZero())
			assert.True(t, dec("1200").Equal(q.FinalPrice))
			assert.True(t, dec("480").Equal(q.Split.AdvanceAmount))
			assert.True(t, dec("720").Equal(q.Split.DeferredAmount))
			assert.EqualValues(t, 30, q.Split.DeferredDueDays)
		})
	}
}

func TestResolveOverrideMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *biz.CustomCorporatePlan)
	}{
		{"split does not sum to 100", func(o *biz.CustomCorporatePlan) { o.DeferredPct = dec("40") }},
		{"unknown cycle", func(o *biz.CustomCorporatePlan) { o.PaymentCycle = "yearly" }},
		{"negative price", func(o *biz.CustomCorporatePlan) { o.PricePerHire = dec("-1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &biz.CustomCorporatePlan{
				ID: "ov-1", EmployerID: employerA, Currency: "INR", PricePerHire: dec("1200"),
				PaymentCycle: biz.CycleWeekly, AdvancePct: dec("50"), DeferredPct: dec("50"), Active: true,
			}
			tt.mutate(o)
			c := biz.NewCatalog(1, overrideData(o))

			_, err := biz.NewResolver().Resolve(c, deferredEmployer(employerA), hireAt("1000"))
			assert.True(t, pricingErrors.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestResolveBundleAndPlan(t *testing.T) {
	c := biz.NewCatalog(2, seedCatalogData())
	r := biz.NewResolver()

	q, err := r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionPurchaseBundle, BundleID: bundleStarter, Currency: "USD"})
	require.NoError(t, err)
	assert.EqualValues(t, 100, q.Credits)
	assert.True(t, dec("59").Equal(q.FinalPrice))
	assert.Equal(t, "$59.00", q.Display)

	q, err = r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionSubscribe, PlanID: planBasic, Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, planBasic, q.PlanID)
	assert.True(t, dec("9999").Equal(q.FinalPrice))

	_, err = r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: "refund"})
	assert.True(t, pricingErrors.IsValidation(err))
}

func TestResolvePaymentTiming(t *testing.T) {
	c := biz.NewCatalog(1, seedCatalogData())
	r := biz.NewResolver()

	q, err := r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionApplyPaymentTiming, Timing: biz.TimingAdvance})
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(q.DiscountPct))

	q, err = r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionApplyPaymentTiming, Timing: biz.TimingAdvance, DiscountPct: decPtr("20")})
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(q.DiscountPct))

	_, err = r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionApplyPaymentTiming, Timing: biz.TimingAdvance, DiscountPct: decPtr("25")})
	assert.True(t, pricingErrors.IsValidation(err))

	q, err = r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionApplyPaymentTiming, Timing: biz.TimingDeferred})
	require.NoError(t, err)
	assert.EqualValues(t, 30, q.PaymentTermDays)

	_, err = r.Resolve(c, biz.EmployerContext{}, biz.Action{Kind: biz.ActionApplyPaymentTiming, Timing: "instalments"})
	assert.True(t, pricingErrors.IsValidation(err))
}
