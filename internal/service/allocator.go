package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoWalletsAvailable 没有启用的收款钱包
	ErrNoWalletsAvailable = errors.New("没有可用的收款钱包")
	// ErrAllocationExhausted 所有金额偏移组合都被占用
	ErrAllocationExhausted = errors.New("金额组合已耗尽，请稍后重试")
)

// 金额偏移范围: 在基础金额上加 0.0001 ~ 0.9999
const (
	minAmountOffset = 1
	maxAmountOffset = 9999
	walletBatchSize = 100
)

// Allocation 金额分配结果
type Allocation struct {
	WalletID      uint
	WalletAddress string
	ActualAmount  decimal.Decimal // 4位小数
	AmountStr     string          // 固定4位小数字符串，也是锁键的一部分
	LockKey       string
	LockValue     string
}

// AmountService 收款金额分配服务
// 通过"基础金额+4位小数偏移"为每笔订单生成全局唯一的收款金额
type AmountService struct {
	locker Locker
}

var (
	amountService *AmountService
	amountOnce    sync.Once
)

func GetAmountService() *AmountService {
	amountOnce.Do(func() {
		amountService = &AmountService{}
	})
	return amountService
}

// Init 注入分布式锁实现
func (s *AmountService) Init(locker Locker) {
	s.locker = locker
}

// AllocateAmount 为基础金额分配唯一的(钱包,实际金额)组合
// 外层遍历金额偏移，内层遍历钱包，保证小偏移优先被用掉
func (s *AmountService) AllocateAmount(ctx context.Context, baseAmount decimal.Decimal, lockTTL time.Duration) (*Allocation, error) {
	wallets, err := s.loadActiveWallets()
	if err != nil {
		return nil, err
	}
	return searchAllocation(ctx, s.locker, wallets, baseAmount, lockTTL)
}

// loadActiveWallets 按优先级和最近使用时间取一批启用钱包
func (s *AmountService) loadActiveWallets() ([]model.Wallet, error) {
	var wallets []model.Wallet
	err := model.GetDB().
		Where("is_active = ?", true).
		Order("priority ASC").
		Order("COALESCE(last_used_at, '1970-01-01 00:00:00') ASC").
		Limit(walletBatchSize).
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("查询收款钱包失败: %v", err)
	}
	return wallets, nil
}

// searchAllocation 在钱包集合上搜索未被占用的金额组合
func searchAllocation(ctx context.Context, locker Locker, wallets []model.Wallet, baseAmount decimal.Decimal, lockTTL time.Duration) (*Allocation, error) {
	if len(wallets) == 0 {
		return nil, ErrNoWalletsAvailable
	}

	lockValue := "TEMP_" + uuid.New().String()

	for i := minAmountOffset; i <= maxAmountOffset; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candidate := baseAmount.Add(decimal.New(int64(i), -4))
		amountStr := candidate.StringFixed(4)

		for _, w := range wallets {
			key := AllocLockKey(w.Address, amountStr)
			ok, err := locker.Acquire(ctx, key, lockValue, lockTTL)
			if err != nil {
				return nil, fmt.Errorf("获取金额锁失败: %v", err)
			}
			if !ok {
				continue
			}
			return &Allocation{
				WalletID:      w.ID,
				WalletAddress: w.Address,
				ActualAmount:  candidate,
				AmountStr:     amountStr,
				LockKey:       key,
				LockValue:     lockValue,
			}, nil
		}
	}

	return nil, ErrAllocationExhausted
}

// ReleaseAllocation 释放金额锁
// 锁按键整体释放，不比对持有者，碰撞概率由金额唯一性兜底
func (s *AmountService) ReleaseAllocation(ctx context.Context, walletAddress, amountStr string) {
	key := AllocLockKey(walletAddress, amountStr)
	if err := s.locker.Release(ctx, key); err != nil {
		log.Printf("[amount] 释放金额锁失败 key=%s: %v", key, err)
	}
}

// TouchWallet 刷新钱包最近使用时间
func (s *AmountService) TouchWallet(walletID uint) {
	now := time.Now()
	if err := model.GetDB().Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Update("last_used_at", now).Error; err != nil {
		log.Printf("[amount] 更新钱包使用时间失败 id=%d: %v", walletID, err)
	}
}
