package biz

import (
	"time"

	"pricing-service/internal/conf"
)

// PricingConfig 定价服务运行参数
type PricingConfig struct {
	CreditCosts            map[QuotaKind]int64 // 超出套餐后每单位消耗的积分
	LowBalanceThreshold    int64               // 余额低阈值（积分）
	LockExpiry             time.Duration
	CatalogRefreshInterval time.Duration
}

// NewPricingConfig 从配置创建 PricingConfig
func NewPricingConfig(c *conf.Bootstrap) *PricingConfig {
	config := &PricingConfig{
		CreditCosts:            make(map[QuotaKind]int64),
		LowBalanceThreshold:    100,
		LockExpiry:             5 * time.Second,
		CatalogRefreshInterval: 10 * time.Second,
	}
	if c.Pricing != nil {
		for k, v := range c.Pricing.CreditCosts {
			config.CreditCosts[QuotaKind(k)] = v
		}
		if c.Pricing.LowBalanceThreshold > 0 {
			config.LowBalanceThreshold = c.Pricing.LowBalanceThreshold
		}
		if d := c.Pricing.LockExpiry.AsDuration(); d > 0 {
			config.LockExpiry = d
		}
		if d := c.Pricing.CatalogRefreshInterval.AsDuration(); d > 0 {
			config.CatalogRefreshInterval = d
		}
	}
	return config
}
