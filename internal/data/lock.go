package data

import (
	"context"
	"time"

	"pricing-service/internal/biz"
	"pricing-service/internal/constants"
	pricingErrors "pricing-service/internal/errors"
	"pricing-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// redisLocker 基于 redsync 的按 key 互斥
type redisLocker struct {
	sync    *redsync.Redsync
	expiry  time.Duration
	log     *log.Helper
	metrics *metrics.PricingMetrics
}

// NewLocker 创建分布式锁（返回 biz.Locker 接口）
func NewLocker(sync *redsync.Redsync, conf *biz.PricingConfig, logger log.Logger) biz.Locker {
	return &redisLocker{
		sync:    sync,
		expiry:  conf.LockExpiry,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockStartTime := time.Now()
	mutex := l.sync.NewMutex(key, redsync.WithExpiry(l.expiry))
	if err := mutex.LockContext(ctx); err != nil {
		l.metrics.LockAcquireTotal.WithLabelValues(constants.ResultFailed).Inc()
		l.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
		l.log.Warnf("acquire lock failed: key=%s, error=%v", key, err)
		return nil, pricingErrors.ErrorLockFailed("could not acquire lock %s", key).WithCause(err)
	}
	l.metrics.LockAcquireTotal.WithLabelValues(constants.ResultSuccess).Inc()
	l.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())

	return func() {
		// 解锁不继承调用方 ctx，避免请求取消后锁残留到过期
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.log.Warnf("release lock failed: key=%s, ok=%v, error=%v", key, ok, err)
		}
	}, nil
}
