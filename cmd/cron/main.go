package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	subscriptions *biz.SubscriptionUseCase
	settlements   *biz.SettlementUseCase
	ledger        *biz.LedgerUseCase
}

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         bc.Log.GetLevel(),
		Format:        bc.Log.GetFormat(),
		Output:        bc.Log.GetOutput(),
		FilePath:      bc.Log.GetFilePath("logs/pricing-cron.log"),
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: bc.Log.GetEnableConsole(),
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "pricing-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 订阅到期 - 每 5 分钟
	addJob(cronScheduler, logHelper, "0 */5 * * * *", "subscription expiry", time.Minute, func(ctx context.Context) error {
		n, err := app.subscriptions.ExpireSubscriptions(ctx, time.Now())
		if err == nil {
			logHelper.Infof("[CRON] Expired subscriptions: count=%d", n)
		}
		return err
	})

	// 结算单逾期 - 每小时整点
	addJob(cronScheduler, logHelper, "0 0 * * * *", "settlement overdue", 5*time.Minute, func(ctx context.Context) error {
		n, err := app.settlements.MarkOverdue(ctx, time.Now())
		if err == nil {
			logHelper.Infof("[CRON] Settlements marked overdue: count=%d", n)
		}
		return err
	})

	// 账本对账 - 每天 03:00
	addJob(cronScheduler, logHelper, "0 0 3 * * *", "ledger reconciliation", 30*time.Minute, func(ctx context.Context) error {
		checked, mismatches, err := app.ledger.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		logHelper.Infof("[CRON] Reconciled wallets: checked=%d, mismatches=%d", checked, len(mismatches))
		for i, m := range mismatches {
			if i >= 10 {
				logHelper.Infof("[CRON] ... %d more mismatches", len(mismatches)-10)
				break
			}
			logHelper.Errorf("[CRON] Ledger mismatch: employer=%s, balance=%d, credits=%d, debits=%d",
				m.EmployerID, m.Balance, m.Credits, m.Debits)
		}
		return nil
	})

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Info("  - Subscription expiry: every 5 minutes")
	logHelper.Info("  - Settlement overdue: every hour")
	logHelper.Info("  - Ledger reconciliation: every day at 03:00")
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}

// addJob 注册带超时的任务，注册失败只记录日志
func addJob(s *cron.Cron, logHelper *log.Helper, spec, name string, timeout time.Duration, job func(ctx context.Context) error) {
	_, err := s.AddFunc(spec, func() {
		logHelper.Infof("[CRON] Starting %s...", name)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := job(ctx); err != nil {
			logHelper.Errorf("[CRON] Error running %s: %v", name, err)
			return
		}
		logHelper.Infof("[CRON] Finished %s", name)
	})
	if err != nil {
		logHelper.Errorf("Failed to add %s job: %v", name, err)
	}
}
