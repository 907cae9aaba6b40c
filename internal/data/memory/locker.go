// Package memory provides in-process implementations of the biz repositories
// and collaborators. They keep the same uniqueness and version-guard rules as
// the MySQL repositories.
package memory

import (
	"context"
	"sync"

	"pricing-service/internal/biz"
	pricingErrors "pricing-service/internal/errors"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker 进程内按 key 互斥，不同 key 互不阻塞
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewKeyedLocker 创建进程内锁
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

var _ biz.Locker = (*KeyedLocker)(nil)

// Lock 阻塞直到获得锁或 ctx 结束
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, pricingErrors.ErrorLockFailed("could not acquire lock %s", key).WithCause(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *KeyedLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// held 当前仍被引用的 key 数量
func (l *KeyedLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
