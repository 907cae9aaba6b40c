package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Subscription 企业订阅表
type Subscription struct {
	SubscriptionID string          `gorm:"primaryKey;type:varchar(36)"`
	EmployerID     string          `gorm:"type:varchar(64);not null;uniqueIndex:uk_employer_correlation,priority:1;index:idx_employer_status,priority:1"`
	CorrelationID  string          `gorm:"type:varchar(128);not null;uniqueIndex:uk_employer_correlation,priority:2"`
	PlanID         string          `gorm:"type:varchar(36);not null"`
	Currency       string          `gorm:"type:char(3);not null"`
	Price          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	StartsAt       time.Time       `gorm:"not null"`
	EndsAt         time.Time       `gorm:"not null;index"`
	Status         string          `gorm:"type:enum('active','expired','superseded');not null;index:idx_employer_status,priority:2"`
	Usage          datatypes.JSON  `gorm:"type:json;not null"`
	Version        int64           `gorm:"not null;default:0"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Subscription) TableName() string {
	return "subscriptions"
}

// QuotaConsumption 配额消耗记录表
type QuotaConsumption struct {
	QuotaConsumptionID string    `gorm:"primaryKey;type:varchar(36)"`
	EmployerID         string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_employer_correlation,priority:1"`
	CorrelationID      string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_employer_correlation,priority:2"`
	SubscriptionID     string    `gorm:"type:varchar(36);not null;index"`
	Quota              string    `gorm:"type:varchar(32);not null"`
	Count              int64     `gorm:"not null"`
	FromPlan           int64     `gorm:"not null;default:0"`
	FromCredits        int64     `gorm:"not null;default:0"`
	CreditsDebited     int64     `gorm:"not null;default:0"`
	LedgerEntryID      string    `gorm:"type:varchar(36)"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (QuotaConsumption) TableName() string {
	return "quota_consumptions"
}
