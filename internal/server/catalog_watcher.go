package server

import (
	"context"
	"sync"
	"time"

	"pricing-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// CatalogWatcher 定期比对 Redis 中的价目表版本号，变化时替换本进程快照
type CatalogWatcher struct {
	catalog  *biz.CatalogUseCase
	interval time.Duration
	log      *log.Helper

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCatalogWatcher 创建价目表监听器
func NewCatalogWatcher(catalog *biz.CatalogUseCase, conf *biz.PricingConfig, logger log.Logger) *CatalogWatcher {
	return &CatalogWatcher{
		catalog:  catalog,
		interval: conf.CatalogRefreshInterval,
		log:      log.NewHelper(logger),
	}
}

// Start 预热快照并启动轮询；预热失败不阻止启动，首个请求会再次加载
func (w *CatalogWatcher) Start(ctx context.Context) error {
	if _, err := w.catalog.Snapshot(ctx); err != nil {
		w.log.Errorf("Initial catalog load failed: %v", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(runCtx)
	w.log.Infof("CatalogWatcher started, interval=%s", w.interval)
	return nil
}

// Stop 停止轮询
func (w *CatalogWatcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.log.Info("CatalogWatcher stopped")
	return nil
}

func (w *CatalogWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *CatalogWatcher) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()
	refreshed, err := w.catalog.Refresh(pollCtx)
	if err != nil {
		// 保留旧快照继续服务
		w.log.Warnf("Catalog refresh failed, keeping current snapshot: %v", err)
		return
	}
	if refreshed {
		w.log.Info("Catalog snapshot replaced")
	}
}
