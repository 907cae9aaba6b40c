package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CreditBundle 积分包表，修改时写入新版本行
type CreditBundle struct {
	CreditBundleID string         `gorm:"primaryKey;type:varchar(36)"`
	Code           string         `gorm:"type:varchar(64);not null;uniqueIndex:uk_code_version,priority:1"`
	Version        int32          `gorm:"not null;uniqueIndex:uk_code_version,priority:2"`
	Name           string         `gorm:"type:varchar(128)"`
	Credits        int64          `gorm:"not null"`
	Prices         datatypes.JSON `gorm:"type:json;not null"` // {"INR": "4999.00", "USD": "59.00"}
	Active         bool           `gorm:"not null;default:true;index"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (CreditBundle) TableName() string {
	return "credit_bundles"
}

// SubscriptionPlan 订阅套餐表
type SubscriptionPlan struct {
	SubscriptionPlanID string         `gorm:"primaryKey;type:varchar(36)"`
	Code               string         `gorm:"type:varchar(64);not null;uniqueIndex:uk_code_version,priority:1"`
	Version            int32          `gorm:"not null;uniqueIndex:uk_code_version,priority:2"`
	Name               string         `gorm:"type:varchar(128);not null"`
	DurationDays       int32          `gorm:"not null"`
	Prices             datatypes.JSON `gorm:"type:json;not null"`
	Quotas             datatypes.JSON `gorm:"type:json;not null"`
	Features           datatypes.JSON `gorm:"type:json;not null"`
	Active             bool           `gorm:"not null;default:true;index"`
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// SalarySlab 薪资区间表，区间为 [min_salary, max_salary)
type SalarySlab struct {
	SalarySlabID string          `gorm:"primaryKey;type:varchar(36)"`
	Currency     string          `gorm:"type:char(3);not null;index:idx_currency_active,priority:1"`
	MinSalary    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	MaxSalary    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PPHFee       decimal.Decimal `gorm:"column:pph_fee;type:decimal(14,2);not null"`
	Active       bool            `gorm:"not null;default:true;index:idx_currency_active,priority:2"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (SalarySlab) TableName() string {
	return "salary_slabs"
}

// PaymentTimingOption 付款时机配置表
type PaymentTimingOption struct {
	Type            string          `gorm:"primaryKey;type:enum('advance','deferred')"`
	MinDiscountPct  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.00"`
	MaxDiscountPct  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.00"`
	PaymentTermDays int32           `gorm:"not null;default:0"`
	Customizable    bool            `gorm:"not null;default:false"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (PaymentTimingOption) TableName() string {
	return "payment_timing_options"
}

// CustomCorporatePlan 企业定制方案表
type CustomCorporatePlan struct {
	CustomCorporatePlanID string          `gorm:"primaryKey;type:varchar(36)"`
	EmployerID            string          `gorm:"type:varchar(64);not null;index:idx_employer_active,priority:1"`
	Currency              string          `gorm:"type:char(3);not null"`
	PricePerHire          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PaymentCycle          string          `gorm:"type:enum('weekly','monthly','quarterly');not null"`
	AdvancePct            decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	DeferredPct           decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	ReplacementPeriodDays int32           `gorm:"not null;default:0"`
	BulkTiers             datatypes.JSON  `gorm:"type:json"` // [{"min_hires": 10, "discount_pct": "5"}]
	Terms                 string          `gorm:"type:text"`
	Active                bool            `gorm:"not null;default:false;index:idx_employer_active,priority:2"`
	CreatedAt             time.Time       `gorm:"autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CustomCorporatePlan) TableName() string {
	return "custom_corporate_plans"
}
