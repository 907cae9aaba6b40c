package service

import (
	"context"

	"pricing-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// PricingService 面向企业端的定价与钱包接口
type PricingService struct {
	engine        *biz.EngineUseCase
	catalog       *biz.CatalogUseCase
	ledger        *biz.LedgerUseCase
	subscriptions *biz.SubscriptionUseCase
	settlements   *biz.SettlementUseCase
	log           *log.Helper
}

// NewPricingService 创建定价服务
func NewPricingService(
	engine *biz.EngineUseCase,
	catalog *biz.CatalogUseCase,
	ledger *biz.LedgerUseCase,
	subscriptions *biz.SubscriptionUseCase,
	settlements *biz.SettlementUseCase,
	logger log.Logger,
) *PricingService {
	return &PricingService{
		engine:        engine,
		catalog:       catalog,
		ledger:        ledger,
		subscriptions: subscriptions,
		settlements:   settlements,
		log:           log.NewHelper(logger),
	}
}

// GetCatalog 当前价目表快照
func (s *PricingService) GetCatalog(ctx context.Context, req *CatalogRequest) (*CatalogReply, error) {
	c, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	reply := &CatalogReply{
		Version: c.Version(),
		Bundles: c.ActiveBundles(),
		Plans:   c.ActivePlans(),
	}
	if req.Currency != "" {
		reply.Slabs = c.Slabs(req.Currency)
	}
	for _, t := range []biz.TimingType{biz.TimingAdvance, biz.TimingDeferred} {
		if opt, err := c.TimingOption(t); err == nil {
			reply.Timing = append(reply.Timing, opt)
		}
	}
	return reply, nil
}

// QuoteBundle 积分包报价
func (s *PricingService) QuoteBundle(ctx context.Context, req *QuoteBundleRequest) (*biz.Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.QuoteBundle(ctx, req.BundleID, req.Currency)
}

// QuotePlan 订阅套餐报价
func (s *PricingService) QuotePlan(ctx context.Context, req *QuotePlanRequest) (*biz.Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.QuotePlan(ctx, req.PlanID, req.Currency)
}

// QuoteHire 聘用费用试算
func (s *PricingService) QuoteHire(ctx context.Context, req *HireRequest) (*biz.Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.QuoteHire(ctx, req.toBiz())
}

// ProvisionWallet 开通钱包
func (s *PricingService) ProvisionWallet(ctx context.Context, req *ProvisionWalletRequest) (*biz.Wallet, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.ledger.ProvisionWallet(ctx, req.EmployerID, biz.PricingModel(req.PricingModel))
}

// GetWallet 查询钱包
func (s *PricingService) GetWallet(ctx context.Context, req *EmployerRequest) (*biz.Wallet, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.ledger.GetWallet(ctx, req.EmployerID)
}

// GetBalance 查询余额
func (s *PricingService) GetBalance(ctx context.Context, req *EmployerRequest) (*BalanceReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, req.EmployerID)
	if err != nil {
		return nil, err
	}
	return &BalanceReply{EmployerID: req.EmployerID, Balance: balance}, nil
}

// ListTransactions 流水列表
func (s *PricingService) ListTransactions(ctx context.Context, req *ListPageRequest) (*ListEntriesReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	entries, total, err := s.ledger.ListEntries(ctx, req.EmployerID, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	return &ListEntriesReply{Entries: entries, Total: total}, nil
}

// SetPricingModel 切换计费模式
func (s *PricingService) SetPricingModel(ctx context.Context, req *PricingModelRequest) (*biz.Wallet, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	planID := ""
	if biz.PricingModel(req.PricingModel) == biz.PricingModelSubscription {
		if sub, err := s.subscriptions.GetActive(ctx, req.EmployerID); err == nil {
			planID = sub.PlanID
		}
	}
	return s.ledger.SetPricingModel(ctx, req.EmployerID, biz.PricingModel(req.PricingModel), planID)
}

// SetPaymentTiming 选择付款时机
func (s *PricingService) SetPaymentTiming(ctx context.Context, req *PaymentTimingRequest) (*PaymentTimingReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	q, w, err := s.engine.ApplyPaymentTiming(ctx, req.EmployerID, biz.TimingType(req.Type), req.DiscountPct)
	if err != nil {
		return nil, err
	}
	return &PaymentTimingReply{Quote: q, Wallet: w}, nil
}

// PurchaseBundle 购买积分包
func (s *PricingService) PurchaseBundle(ctx context.Context, req *PurchaseBundleRequest) (*biz.PurchaseResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.PurchaseBundle(ctx, req.EmployerID, req.BundleID, req.Currency, req.CorrelationID)
}

// Subscribe 订阅套餐
func (s *PricingService) Subscribe(ctx context.Context, req *SubscribeRequest) (*biz.SubscribeResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.Subscribe(ctx, req.EmployerID, req.PlanID, req.Currency, req.CorrelationID)
}

// GetSubscription 当前生效的订阅
func (s *PricingService) GetSubscription(ctx context.Context, req *EmployerRequest) (*biz.Subscription, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.subscriptions.GetActive(ctx, req.EmployerID)
}

// ConsumeQuota 消耗配额
func (s *PricingService) ConsumeQuota(ctx context.Context, req *ConsumeQuotaRequest) (*biz.ConsumeResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.ConsumeQuota(ctx, req.EmployerID, biz.QuotaKind(req.Quota), req.Count, req.CorrelationID)
}

// SettleHire 聘用结算
func (s *PricingService) SettleHire(ctx context.Context, req *HireRequest) (*biz.SettleResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.engine.SettleHire(ctx, req.toBiz())
}

// ListSettlements 结算单列表
func (s *PricingService) ListSettlements(ctx context.Context, req *ListPageRequest) (*ListSettlementsReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	items, total, err := s.settlements.List(ctx, req.EmployerID, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	return &ListSettlementsReply{Settlements: items, Total: total}, nil
}
