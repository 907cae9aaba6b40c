package server

import (
	"context"

	"pricing-service/internal/conf"
	"pricing-service/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Server, pricing *service.PricingService, admin *service.AdminService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)
	srv.Handle("/metrics", promhttp.Handler())
	RegisterPricingHTTPServer(srv, pricing)
	RegisterAdminHTTPServer(srv, admin)
	return srv
}

// handle 将业务方法适配为 HTTP handler：依次绑定 body、query、path 参数，再走中间件链
func handle[T any, R any](operation string, fn func(context.Context, *T) (R, error)) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in T
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(ctx, req.(*T))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

const (
	OperationGetCatalog       = "/pricing.v1.Pricing/GetCatalog"
	OperationQuoteBundle      = "/pricing.v1.Pricing/QuoteBundle"
	OperationQuotePlan        = "/pricing.v1.Pricing/QuotePlan"
	OperationQuoteHire        = "/pricing.v1.Pricing/QuoteHire"
	OperationProvisionWallet  = "/pricing.v1.Pricing/ProvisionWallet"
	OperationGetWallet        = "/pricing.v1.Pricing/GetWallet"
	OperationGetBalance       = "/pricing.v1.Pricing/GetBalance"
	OperationListTransactions = "/pricing.v1.Pricing/ListTransactions"
	OperationSetPricingModel  = "/pricing.v1.Pricing/SetPricingModel"
	OperationSetPaymentTiming = "/pricing.v1.Pricing/SetPaymentTiming"
	OperationPurchaseBundle   = "/pricing.v1.Pricing/PurchaseBundle"
	OperationSubscribe        = "/pricing.v1.Pricing/Subscribe"
	OperationGetSubscription  = "/pricing.v1.Pricing/GetSubscription"
	OperationConsumeQuota     = "/pricing.v1.Pricing/ConsumeQuota"
	OperationSettleHire       = "/pricing.v1.Pricing/SettleHire"
	OperationListSettlements  = "/pricing.v1.Pricing/ListSettlements"

	OperationCreateBundle       = "/pricing.v1.Admin/CreateBundle"
	OperationReviseBundle       = "/pricing.v1.Admin/ReviseBundle"
	OperationSetBundleActive    = "/pricing.v1.Admin/SetBundleActive"
	OperationCreatePlan         = "/pricing.v1.Admin/CreatePlan"
	OperationRevisePlan         = "/pricing.v1.Admin/RevisePlan"
	OperationSetPlanActive      = "/pricing.v1.Admin/SetPlanActive"
	OperationReplaceSlabs       = "/pricing.v1.Admin/ReplaceSlabs"
	OperationSaveTimingOption   = "/pricing.v1.Admin/SaveTimingOption"
	OperationCreateOverride     = "/pricing.v1.Admin/CreateOverride"
	OperationSetOverrideActive  = "/pricing.v1.Admin/SetOverrideActive"
	OperationRefreshCatalog     = "/pricing.v1.Admin/RefreshCatalog"
	OperationManualAdjust       = "/pricing.v1.Admin/ManualAdjust"
	OperationReconcile          = "/pricing.v1.Admin/Reconcile"
	OperationMarkSettlementPaid = "/pricing.v1.Admin/MarkSettlementPaid"
)

// RegisterPricingHTTPServer 注册企业端路由
func RegisterPricingHTTPServer(s *http.Server, srv *service.PricingService) {
	r := s.Route("/")
	r.GET("/v1/catalog", handle(OperationGetCatalog, srv.GetCatalog))
	r.GET("/v1/quotes/bundles/{bundle_id}", handle(OperationQuoteBundle, srv.QuoteBundle))
	r.GET("/v1/quotes/plans/{plan_id}", handle(OperationQuotePlan, srv.QuotePlan))
	r.POST("/v1/quotes/hires", handle(OperationQuoteHire, srv.QuoteHire))

	r.POST("/v1/employers/{employer_id}/wallet", handle(OperationProvisionWallet, srv.ProvisionWallet))
	r.GET("/v1/employers/{employer_id}/wallet", handle(OperationGetWallet, srv.GetWallet))
	r.GET("/v1/employers/{employer_id}/balance", handle(OperationGetBalance, srv.GetBalance))
	r.GET("/v1/employers/{employer_id}/transactions", handle(OperationListTransactions, srv.ListTransactions))
	r.PUT("/v1/employers/{employer_id}/pricing-model", handle(OperationSetPricingModel, srv.SetPricingModel))
	r.PUT("/v1/employers/{employer_id}/payment-timing", handle(OperationSetPaymentTiming, srv.SetPaymentTiming))
	r.POST("/v1/employers/{employer_id}/bundle-purchases", handle(OperationPurchaseBundle, srv.PurchaseBundle))
	r.POST("/v1/employers/{employer_id}/subscriptions", handle(OperationSubscribe, srv.Subscribe))
	r.GET("/v1/employers/{employer_id}/subscription", handle(OperationGetSubscription, srv.GetSubscription))
	r.POST("/v1/employers/{employer_id}/quota-consumptions", handle(OperationConsumeQuota, srv.ConsumeQuota))
	r.POST("/v1/employers/{employer_id}/hires", handle(OperationSettleHire, srv.SettleHire))
	r.GET("/v1/employers/{employer_id}/settlements", handle(OperationListSettlements, srv.ListSettlements))
}

// RegisterAdminHTTPServer 注册运营后台路由，写操作需携带 X-Admin-ID
func RegisterAdminHTTPServer(s *http.Server, srv *service.AdminService) {
	r := s.Route("/")
	r.POST("/v1/admin/bundles", handle(OperationCreateBundle, srv.CreateBundle))
	r.PUT("/v1/admin/bundles/{bundle_id}", handle(OperationReviseBundle, srv.ReviseBundle))
	r.POST("/v1/admin/bundles/{id}/active", handle(OperationSetBundleActive, srv.SetBundleActive))
	r.POST("/v1/admin/plans", handle(OperationCreatePlan, srv.CreatePlan))
	r.PUT("/v1/admin/plans/{plan_id}", handle(OperationRevisePlan, srv.RevisePlan))
	r.POST("/v1/admin/plans/{id}/active", handle(OperationSetPlanActive, srv.SetPlanActive))
	r.PUT("/v1/admin/slabs/{currency}", handle(OperationReplaceSlabs, srv.ReplaceSlabs))
	r.PUT("/v1/admin/timing-options", handle(OperationSaveTimingOption, srv.SaveTimingOption))
	r.POST("/v1/admin/overrides", handle(OperationCreateOverride, srv.CreateOverride))
	r.POST("/v1/admin/overrides/{id}/active", handle(OperationSetOverrideActive, srv.SetOverrideActive))
	r.POST("/v1/admin/catalog/refresh", handle(OperationRefreshCatalog, srv.RefreshCatalog))
	r.POST("/v1/admin/employers/{employer_id}/adjustments", handle(OperationManualAdjust, srv.ManualAdjust))
	r.POST("/v1/admin/employers/{employer_id}/reconcile", handle(OperationReconcile, srv.Reconcile))
	r.POST("/v1/admin/settlements/{settlement_id}/paid", handle(OperationMarkSettlementPaid, srv.MarkSettlementPaid))
}
