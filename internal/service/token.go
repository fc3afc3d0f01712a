package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// 订单凭证在链外的保留时间边界
const (
	orderTokenMinTTL   = time.Minute
	orderTokenMaxTTL   = 48 * time.Hour
	orderTokenTailTime = 10 * time.Minute // 订单过期后仍可查询的余量
)

// OrderTokenService 订单查询凭证服务
// 数据库只存凭证哈希，Redis缓存明文用于幂等创建时原样返回
type OrderTokenService struct {
	client *redis.Client
}

var (
	orderTokenService *OrderTokenService
	orderTokenOnce    sync.Once
)

func GetOrderTokenService() *OrderTokenService {
	orderTokenOnce.Do(func() {
		orderTokenService = &OrderTokenService{}
	})
	return orderTokenService
}

// Init 注入Redis客户端
func (s *OrderTokenService) Init(client *redis.Client) {
	s.client = client
}

// tokenTTL 计算凭证保留时间: 订单剩余有效期+余量，钳制在1分钟~48小时
func tokenTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + orderTokenTailTime
	if ttl < orderTokenMinTTL {
		return orderTokenMinTTL
	}
	if ttl > orderTokenMaxTTL {
		return orderTokenMaxTTL
	}
	return ttl
}

// SaveToken 保存凭证明文，供同业务单号的幂等创建原样返回
func (s *OrderTokenService) SaveToken(ctx context.Context, orderNo, token string, expiresAt time.Time) error {
	key := OrderTokenKey(orderNo)
	if err := s.client.Set(ctx, key, token, tokenTTL(expiresAt)).Err(); err != nil {
		return fmt.Errorf("保存订单凭证失败: %v", err)
	}
	return nil
}

// GetToken 读取凭证明文，不存在时返回空字符串
func (s *OrderTokenService) GetToken(ctx context.Context, orderNo string) (string, error) {
	val, err := s.client.Get(ctx, OrderTokenKey(orderNo)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("读取订单凭证失败: %v", err)
	}
	return val, nil
}

// DeleteToken 删除凭证
func (s *OrderTokenService) DeleteToken(ctx context.Context, orderNo string) error {
	return s.client.Del(ctx, OrderTokenKey(orderNo)).Err()
}
