package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy 重试耗尽仍未拿到锁
var ErrLockBusy = errors.New("lock busy")

// Locker 按 key 互斥，Acquire 返回的 release 必须调用
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type options struct {
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
	prefix     string
}

type Option func(*options)

func WithExpiry(d time.Duration) Option {
	return func(o *options) { o.expiry = d }
}

func WithTries(n int) Option {
	return func(o *options) { o.tries = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.retryDelay = d }
}

func WithPrefix(p string) Option {
	return func(o *options) { o.prefix = p }
}

// RedisLocker 基于 redsync 的分布式锁
type RedisLocker struct {
	rs   *redsync.Redsync
	opts options
}

func NewRedisLocker(client *redis.Client, opts ...Option) *RedisLocker {
	o := options{
		expiry:     30 * time.Second,
		tries:      32,
		retryDelay: 100 * time.Millisecond,
		prefix:     "ustp:lock:",
	}
	for _, opt := range opts {
		opt(&o)
	}

	pool := goredis.NewPool(client)
	return &RedisLocker{
		rs:   redsync.New(pool),
		opts: o,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(l.opts.prefix+key,
		redsync.WithExpiry(l.opts.expiry),
		redsync.WithTries(l.opts.tries),
		redsync.WithRetryDelay(l.opts.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// redsync 重试耗尽时返回 ErrFailed 或 ErrTaken，统一视为锁忙
		return nil, fmt.Errorf("%w: %s: %v", ErrLockBusy, key, err)
	}

	return func() {
		// 锁过期后解锁失败不影响业务，已处理标记和唯一索引兜底
		_, _ = mutex.UnlockContext(context.Background())
	}, nil
}

// LocalLocker 进程内实现，单实例部署和测试用
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
