package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis键前缀
const (
	allocLockPrefix  = "LOCK:PAYMENT:"
	nonceLockPrefix  = "obl:usdt:api-sign:nonce:"
	orderTokenPrefix = "obl:usdt:order-token:"
)

// AllocLockKey 金额分配锁键: 地址+固定4位小数金额
func AllocLockKey(address, amountStr string) string {
	return fmt.Sprintf("%s%s:%s", allocLockPrefix, address, amountStr)
}

// NonceLockKey 签名防重放nonce键
func NonceLockKey(nonce string) string {
	return nonceLockPrefix + nonce
}

// OrderTokenKey 订单凭证键
func OrderTokenKey(orderNo string) string {
	return orderTokenPrefix + orderNo
}

// Locker 分布式互斥锁
type Locker interface {
	// Acquire 尝试获取锁，已被占用时返回false
	Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Release 按键释放锁
	Release(ctx context.Context, key string) error
}

// RedisLocker 基于Redis SET NX EX的锁实现
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %v", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("释放锁失败: %v", err)
	}
	return nil
}

// MemoryLocker 进程内锁实现，用于单机部署和测试
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryLockEntry
}

type memoryLockEntry struct {
	value    string
	expireAt time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]memoryLockEntry)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.entries[key]; ok && e.expireAt.After(now) {
		return false, nil
	}
	l.entries[key] = memoryLockEntry{value: value, expireAt: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}
