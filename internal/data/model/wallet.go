package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmployerWallet 企业钱包表
type EmployerWallet struct {
	EmployerID         string           `gorm:"primaryKey;type:varchar(64)"`
	Balance            int64            `gorm:"not null;default:0"`
	PricingModel       string           `gorm:"type:enum('subscription','pay_per_hire');not null"`
	SubscriptionPlanID string           `gorm:"type:varchar(36)"`
	TimingType         string           `gorm:"type:enum('advance','deferred');not null;default:'deferred'"`
	TimingDiscountPct  *decimal.Decimal `gorm:"type:decimal(5,2)"`
	Version            int64            `gorm:"not null;default:0"`
	CreatedAt          time.Time        `gorm:"autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (EmployerWallet) TableName() string {
	return "employer_wallets"
}

// TransactionLog 积分流水表，只追加
type TransactionLog struct {
	TransactionLogID string    `gorm:"primaryKey;type:varchar(36)"`
	EmployerID       string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_employer_correlation,priority:1;index:idx_employer_created,priority:1"`
	CorrelationID    string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_employer_correlation,priority:2"`
	Direction        string    `gorm:"type:enum('credit','debit');not null"`
	Amount           int64     `gorm:"not null"`
	ResultingBalance int64     `gorm:"not null"`
	Reason           string    `gorm:"type:varchar(255)"`
	ActorID          string    `gorm:"type:varchar(64)"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_employer_created,priority:2"`
}

// TableName 指定表名
func (TransactionLog) TableName() string {
	return "transaction_log"
}
