package biz

import (
	"time"

	"github.com/shopspring/decimal"
)

// HireConfirmedEvent 招聘系统在候选人入职确认后投递到 RocketMQ 的消息
type HireConfirmedEvent struct {
	EventID     string           `json:"event_id"`
	EmployerID  string           `json:"employer_id"`
	HireRef     string           `json:"hire_ref"`
	Salary      decimal.Decimal  `json:"salary"`
	Currency    string           `json:"currency"`
	HireCount   int32            `json:"hire_count"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

// HireRequest 转为结算请求，事件 ID 作为关联 ID
func (e *HireConfirmedEvent) HireRequest() *HireRequest {
	return &HireRequest{
		EmployerID:    e.EmployerID,
		HireRef:       e.HireRef,
		Salary:        e.Salary,
		Currency:      e.Currency,
		HireCount:     e.HireCount,
		DiscountPct:   e.DiscountPct,
		CorrelationID: "hire:" + e.EventID,
	}
}
