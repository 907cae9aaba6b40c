package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewPricingConfig,
	NewResolver,
	NewCatalogUseCase,
	NewLedgerUseCase,
	NewSubscriptionUseCase,
	NewSettlementUseCase,
	NewEngineUseCase, // 组合 UseCase
)
