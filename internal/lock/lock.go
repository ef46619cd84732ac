package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout 在上下文结束前未能获得锁
var ErrLockTimeout = errors.New("timed out waiting for dealer lock")

// DealerLocker 经销商级别的串行化点，所有对经销商资金字段的读改写都在锁内完成
type DealerLocker interface {
	Lock(ctx context.Context, dealerId string) (unlock func(), err error)
}

// LocalLocker 进程内按 key 加锁，单实例部署和测试使用
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock 获取 dealerId 对应的锁，ctx 取消时放弃等待
func (l *LocalLocker) Lock(ctx context.Context, dealerId string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[dealerId]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[dealerId] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(dealerId, kl)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(dealerId, kl)
		})
	}, nil
}

func (l *LocalLocker) release(dealerId string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, dealerId)
	}
}
