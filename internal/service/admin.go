package service

import (
	"context"
	"strings"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

// HeaderAdminID 运营后台操作人
const HeaderAdminID = "X-Admin-ID"

// AdminService 运营后台接口：价目表维护、手工调账、结算确认
type AdminService struct {
	catalog     *biz.CatalogUseCase
	ledger      *biz.LedgerUseCase
	settlements *biz.SettlementUseCase
	log         *log.Helper
}

// NewAdminService 创建后台服务
func NewAdminService(
	catalog *biz.CatalogUseCase,
	ledger *biz.LedgerUseCase,
	settlements *biz.SettlementUseCase,
	logger log.Logger,
) *AdminService {
	return &AdminService{
		catalog:     catalog,
		ledger:      ledger,
		settlements: settlements,
		log:         log.NewHelper(logger),
	}
}

// adminID 从请求头读取操作人，所有后台写操作必填
func adminID(ctx context.Context) (string, error) {
	if tr, ok := transport.FromServerContext(ctx); ok {
		if id := strings.TrimSpace(tr.RequestHeader().Get(HeaderAdminID)); id != "" {
			return id, nil
		}
	}
	return "", pricingErrors.ErrorValidation("header %s is required", HeaderAdminID)
}

func (s *AdminService) audit(ctx context.Context, op, target string) error {
	id, err := adminID(ctx)
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Infof("Admin operation: admin=%s, op=%s, target=%s", id, op, target)
	return nil
}

// CreateBundle 新建积分包
func (s *AdminService) CreateBundle(ctx context.Context, req *biz.CreditBundle) (*biz.CreditBundle, error) {
	if err := s.audit(ctx, "create_bundle", req.Code); err != nil {
		return nil, err
	}
	return s.catalog.CreateBundle(ctx, req)
}

// ReviseBundle 修订积分包，生成新版本
func (s *AdminService) ReviseBundle(ctx context.Context, req *ReviseBundleRequest) (*biz.CreditBundle, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "revise_bundle", req.BundleID); err != nil {
		return nil, err
	}
	return s.catalog.ReviseBundle(ctx, req.BundleID, &req.Bundle)
}

// SetBundleActive 上下架积分包
func (s *AdminService) SetBundleActive(ctx context.Context, req *SetActiveRequest) (*EmptyReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "set_bundle_active", req.ID); err != nil {
		return nil, err
	}
	if err := s.catalog.SetBundleActive(ctx, req.ID, req.Active); err != nil {
		return nil, err
	}
	return &EmptyReply{}, nil
}

// CreatePlan 新建订阅套餐
func (s *AdminService) CreatePlan(ctx context.Context, req *biz.SubscriptionPlan) (*biz.SubscriptionPlan, error) {
	if err := s.audit(ctx, "create_plan", req.Code); err != nil {
		return nil, err
	}
	return s.catalog.CreatePlan(ctx, req)
}

// RevisePlan 修订订阅套餐
func (s *AdminService) RevisePlan(ctx context.Context, req *RevisePlanRequest) (*biz.SubscriptionPlan, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "revise_plan", req.PlanID); err != nil {
		return nil, err
	}
	return s.catalog.RevisePlan(ctx, req.PlanID, &req.Plan)
}

// SetPlanActive 上下架订阅套餐
func (s *AdminService) SetPlanActive(ctx context.Context, req *SetActiveRequest) (*EmptyReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "set_plan_active", req.ID); err != nil {
		return nil, err
	}
	if err := s.catalog.SetPlanActive(ctx, req.ID, req.Active); err != nil {
		return nil, err
	}
	return &EmptyReply{}, nil
}

// ReplaceSlabs 整体替换某币种的薪资区间
func (s *AdminService) ReplaceSlabs(ctx context.Context, req *ReplaceSlabsRequest) (*ReplaceSlabsReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "replace_slabs", req.Currency); err != nil {
		return nil, err
	}
	slabs, err := s.catalog.ReplaceSlabs(ctx, req.Currency, req.Slabs)
	if err != nil {
		return nil, err
	}
	return &ReplaceSlabsReply{Currency: biz.NormalizeCurrency(req.Currency), Slabs: slabs}, nil
}

// SaveTimingOption 保存付款时机配置
func (s *AdminService) SaveTimingOption(ctx context.Context, req *biz.PaymentTimingOption) (*biz.PaymentTimingOption, error) {
	if err := s.audit(ctx, "save_timing_option", string(req.Type)); err != nil {
		return nil, err
	}
	if err := s.catalog.SaveTimingOption(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// CreateOverride 新建企业定制方案
func (s *AdminService) CreateOverride(ctx context.Context, req *biz.CustomCorporatePlan) (*biz.CustomCorporatePlan, error) {
	if err := s.audit(ctx, "create_override", req.EmployerID); err != nil {
		return nil, err
	}
	return s.catalog.CreateOverride(ctx, req)
}

// SetOverrideActive 启停企业定制方案
func (s *AdminService) SetOverrideActive(ctx context.Context, req *SetActiveRequest) (*EmptyReply, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "set_override_active", req.ID); err != nil {
		return nil, err
	}
	if err := s.catalog.SetOverrideActive(ctx, req.ID, req.Active); err != nil {
		return nil, err
	}
	return &EmptyReply{}, nil
}

// RefreshCatalog 立即重新加载价目表
func (s *AdminService) RefreshCatalog(ctx context.Context, _ *EmptyReply) (*RefreshReply, error) {
	refreshed, err := s.catalog.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &RefreshReply{Refreshed: refreshed, Version: c.Version()}, nil
}

// ManualAdjust 手工调账
func (s *AdminService) ManualAdjust(ctx context.Context, req *ManualAdjustRequest) (*biz.LedgerResult, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	id, err := adminID(ctx)
	if err != nil {
		return nil, err
	}
	return s.ledger.ManualAdjust(ctx, req.EmployerID, req.Delta, id, req.Reason, req.CorrelationID)
}

// Reconcile 单个企业对账
func (s *AdminService) Reconcile(ctx context.Context, req *EmployerRequest) (*biz.Reconciliation, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.ledger.Reconcile(ctx, req.EmployerID)
}

// MarkSettlementPaid 确认结算单已收款
func (s *AdminService) MarkSettlementPaid(ctx context.Context, req *SettlementRequest) (*biz.HireSettlement, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "mark_settlement_paid", req.SettlementID); err != nil {
		return nil, err
	}
	return s.settlements.MarkPaid(ctx, req.SettlementID)
}
