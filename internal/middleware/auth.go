package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ============ 限流器实现 ============

// RateLimiter 基于令牌桶的限流器
type RateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*tokenBucket
	rate        float64       // 每秒生成的令牌数
	capacity    int           // 桶容量
	cleanupTick time.Duration // 清理间隔
}

// tokenBucket 令牌桶
type tokenBucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter 创建限流器
// rate: 每秒允许的请求数, capacity: 突发容量
func NewRateLimiter(rate float64, capacity int) *RateLimiter {
	rl := &RateLimiter{
		buckets:     make(map[string]*tokenBucket),
		rate:        rate,
		capacity:    capacity,
		cleanupTick: 5 * time.Minute,
	}
	// 启动定期清理过期桶
	go rl.cleanup()
	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, exists := rl.buckets[key]

	if !exists {
		rl.buckets[key] = &tokenBucket{
			tokens:     float64(rl.capacity) - 1,
			lastUpdate: now,
		}
		return true
	}

	// 计算经过的时间，添加令牌
	elapsed := now.Sub(bucket.lastUpdate).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > float64(rl.capacity) {
		bucket.tokens = float64(rl.capacity)
	}
	bucket.lastUpdate = now

	// 检查是否有令牌
	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// cleanup 定期清理过期的桶
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupTick)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, bucket := range rl.buckets {
			// 清理10分钟未使用的桶
			if now.Sub(bucket.lastUpdate) > 10*time.Minute {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// 全局限流器实例
var (
	apiRateLimiter   *RateLimiter
	loginRateLimiter *RateLimiter
)

func init() {
	apiRateLimiter = NewRateLimiter(20, 50)
	loginRateLimiter = NewRateLimiter(2, 5)
}

// AdminAuth 管理员认证中间件
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取Token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": -1,
				"msg":  "未登录",
			})
			c.Abort()
			return
		}

		// 解析Bearer Token
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": -1,
				"msg":  "Token格式错误",
			})
			c.Abort()
			return
		}

		// 验证Token
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWT.Secret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": -1,
				"msg":  "Token无效或已过期",
			})
			c.Abort()
			return
		}

		// 提取Claims
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			adminID := uint(claims["admin_id"].(float64))
			username := claims["username"].(string)

			c.Set("admin_id", adminID)
			c.Set("username", username)
		}

		c.Next()
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Requested-With, X-Obl-Signature, X-Obl-Order-Token")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit API限流中间件
func RateLimit() gin.HandlerFunc {
	return RateLimitWithConfig(apiRateLimiter)
}

// RateLimitWithConfig 带配置的限流中间件
func RateLimitWithConfig(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Allow(clientIP) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code": -1,
				"msg":  "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRateLimit 登录接口限流中间件（更严格）
func LoginRateLimit() gin.HandlerFunc {
	return RateLimitWithConfig(loginRateLimiter)
}
