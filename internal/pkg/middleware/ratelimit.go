package middleware

import (
	"net/http"
	"sync"
	"time"

	"ustp_things/pkg/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按 key (IP 或用户 ID) 维护令牌桶
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	r        rate.Limit
	b        int
	ttl      time.Duration
	now      func() time.Time
}

// NewRateLimiter r: 每秒允许的请求数, b: 桶大小
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		r:        r,
		b:        b,
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.r, l.b)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// Cleanup 清理长时间未访问的 key，由定时任务调用
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimitMiddleware 按客户端 IP 限流
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return limitBy(limiter, func(c *gin.Context) string { return c.ClientIP() })
}

// UserRateLimitMiddleware 按登录用户限流，挂在 AuthMiddleware 之后
// 用于下单这类重复提交代价高的接口
func UserRateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return limitBy(limiter, func(c *gin.Context) string {
		if sess, ok := CurrentSession(c); ok && !sess.Anonymous() {
			return "user:" + sess.UserID
		}
		return c.ClientIP()
	})
}

func limitBy(limiter *RateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(key(c)) {
			response.Error(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
