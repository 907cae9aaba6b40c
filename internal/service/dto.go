package service

import (
	"pricing-service/internal/biz"

	"github.com/shopspring/decimal"
)

// ========== 报价 ==========

type QuoteBundleRequest struct {
	BundleID string `json:"bundle_id" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type QuotePlanRequest struct {
	PlanID   string `json:"plan_id" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type HireRequest struct {
	EmployerID    string           `json:"employer_id" validate:"required"`
	HireRef       string           `json:"hire_ref"`
	Salary        decimal.Decimal  `json:"salary"`
	Currency      string           `json:"currency" validate:"required,len=3"`
	HireCount     int32            `json:"hire_count" validate:"gte=0"`
	DiscountPct   *decimal.Decimal `json:"discount_pct,omitempty"`
	CorrelationID string           `json:"correlation_id"`
}

func (r *HireRequest) toBiz() *biz.HireRequest {
	return &biz.HireRequest{
		EmployerID:    r.EmployerID,
		HireRef:       r.HireRef,
		Salary:        r.Salary,
		Currency:      r.Currency,
		HireCount:     r.HireCount,
		DiscountPct:   r.DiscountPct,
		CorrelationID: r.CorrelationID,
	}
}

type CatalogRequest struct {
	Currency string `json:"currency"`
}

type CatalogReply struct {
	Version int64                      `json:"version"`
	Bundles []*biz.CreditBundle        `json:"bundles"`
	Plans   []*biz.SubscriptionPlan    `json:"plans"`
	Slabs   []*biz.SalarySlab          `json:"slabs,omitempty"`
	Timing  []*biz.PaymentTimingOption `json:"timing_options,omitempty"`
}

// ========== 钱包 ==========

type EmployerRequest struct {
	EmployerID string `json:"employer_id" validate:"required,max=64"`
}

type ProvisionWalletRequest struct {
	EmployerID   string `json:"employer_id" validate:"required,max=64"`
	PricingModel string `json:"pricing_model" validate:"omitempty,oneof=subscription pay_per_hire"`
}

type BalanceReply struct {
	EmployerID string `json:"employer_id"`
	Balance    int64  `json:"balance"`
}

type ListPageRequest struct {
	EmployerID string `json:"employer_id" validate:"required"`
	Page       int    `json:"page" validate:"gte=0"`
	PageSize   int    `json:"page_size" validate:"gte=0"`
}

type ListEntriesReply struct {
	Entries []*biz.TransactionLogEntry `json:"entries"`
	Total   int64                      `json:"total"`
}

type ListSettlementsReply struct {
	Settlements []*biz.HireSettlement `json:"settlements"`
	Total       int64                 `json:"total"`
}

type PricingModelRequest struct {
	EmployerID   string `json:"employer_id" validate:"required"`
	PricingModel string `json:"pricing_model" validate:"required,oneof=subscription pay_per_hire"`
}

type PaymentTimingRequest struct {
	EmployerID  string           `json:"employer_id" validate:"required"`
	Type        string           `json:"type" validate:"required,oneof=advance deferred"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
}

type PaymentTimingReply struct {
	Quote  *biz.Quote  `json:"quote"`
	Wallet *biz.Wallet `json:"wallet"`
}

// ========== 购买 / 订阅 / 消耗 ==========

type PurchaseBundleRequest struct {
	EmployerID    string `json:"employer_id" validate:"required"`
	BundleID      string `json:"bundle_id" validate:"required"`
	Currency      string `json:"currency" validate:"required,len=3"`
	CorrelationID string `json:"correlation_id" validate:"required,max=128"`
}

type SubscribeRequest struct {
	EmployerID    string `json:"employer_id" validate:"required"`
	PlanID        string `json:"plan_id" validate:"required"`
	Currency      string `json:"currency" validate:"required,len=3"`
	CorrelationID string `json:"correlation_id" validate:"required,max=128"`
}

type ConsumeQuotaRequest struct {
	EmployerID    string `json:"employer_id" validate:"required"`
	Quota         string `json:"quota" validate:"required,oneof=job_posts profile_views auto_schedules previews"`
	Count         int64  `json:"count" validate:"gt=0"`
	CorrelationID string `json:"correlation_id" validate:"required,max=128"`
}

// ========== 管理后台 ==========

type ReviseBundleRequest struct {
	BundleID string           `json:"bundle_id" validate:"required"`
	Bundle   biz.CreditBundle `json:"bundle"`
}

type RevisePlanRequest struct {
	PlanID string               `json:"plan_id" validate:"required"`
	Plan   biz.SubscriptionPlan `json:"plan"`
}

type SetActiveRequest struct {
	ID     string `json:"id" validate:"required"`
	Active bool   `json:"active"`
}

type ReplaceSlabsRequest struct {
	Currency string            `json:"currency" validate:"required,len=3"`
	Slabs    []*biz.SalarySlab `json:"slabs"`
}

type ReplaceSlabsReply struct {
	Currency string            `json:"currency"`
	Slabs    []*biz.SalarySlab `json:"slabs"`
}

type ManualAdjustRequest struct {
	EmployerID    string `json:"employer_id" validate:"required"`
	Delta         int64  `json:"delta" validate:"ne=0"`
	Reason        string `json:"reason" validate:"required,max=255"`
	CorrelationID string `json:"correlation_id" validate:"required,max=128"`
}

type SettlementRequest struct {
	SettlementID string `json:"settlement_id" validate:"required"`
}

type RefreshReply struct {
	Refreshed bool  `json:"refreshed"`
	Version   int64 `json:"version"`
}

type EmptyReply struct{}
