package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HireSettlement 按聘用付费结算单表
type HireSettlement struct {
	HireSettlementID string          `gorm:"primaryKey;type:varchar(36)"`
	EmployerID       string          `gorm:"type:varchar(64);not null;uniqueIndex:uk_employer_correlation,priority:1;index:idx_employer_created,priority:1"`
	CorrelationID    string          `gorm:"type:varchar(128);not null;uniqueIndex:uk_employer_correlation,priority:2"`
	HireRef          string          `gorm:"type:varchar(64);not null"`
	Salary           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Currency         string          `gorm:"type:char(3);not null"`
	Fee              decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	DiscountPct      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.00"`
	FinalPrice       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Timing           string          `gorm:"type:varchar(16)"`
	AdvanceAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0.00"`
	DeferredAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0.00"`
	DueAt            time.Time       `gorm:"not null;index:idx_status_due,priority:2"`
	Source           string          `gorm:"type:varchar(16);not null"`
	OverrideID       string          `gorm:"type:varchar(36)"`
	SlabID           string          `gorm:"type:varchar(36)"`
	Status           string          `gorm:"type:enum('pending','paid','overdue');not null;index:idx_status_due,priority:1"`
	PaidAt           *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_employer_created,priority:2"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (HireSettlement) TableName() string {
	return "hire_settlements"
}
