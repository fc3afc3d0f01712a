package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/Olleigeigei/ObeliskUsdt/internal/util"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrInvalidBizOrderNo 业务单号无效
	ErrInvalidBizOrderNo = errors.New("业务单号不能为空且长度不能超过64")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("订单不存在")
	// ErrInvalidStatus 订单状态不允许该操作
	ErrInvalidStatus = errors.New("只能取消待支付订单")
	// ErrConcurrentModification 订单状态被并发修改
	ErrConcurrentModification = errors.New("订单状态已变更，无法取消")
)

// CreateOrderParams 创建订单参数
type CreateOrderParams struct {
	BizOrderNo string
	BaseAmount decimal.Decimal // 已规范为2位小数
	Metadata   map[string]interface{}
}

// OrderService 订单服务
type OrderService struct {
	amount   *AmountService
	settings *SettingsService
}

var (
	orderService *OrderService
	orderOnce    sync.Once
)

func GetOrderService() *OrderService {
	orderOnce.Do(func() {
		orderService = &OrderService{}
	})
	return orderService
}

// Init 注入依赖
func (s *OrderService) Init(amount *AmountService, settings *SettingsService) {
	s.amount = amount
	s.settings = settings
}

// activeStatuses 未终结的订单状态
func activeStatuses() []model.OrderStatus {
	return []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusPaid,
		model.OrderStatusConfirmed,
	}
}

// CreateOrder 创建支付订单
// 为订单分配唯一的(钱包,金额)组合，确认数在创建时快照
func (s *OrderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*model.Order, error) {
	bizOrderNo := params.BizOrderNo
	if !util.IsValidBizOrderNo(bizOrderNo) {
		return nil, ErrInvalidBizOrderNo
	}
	if params.BaseAmount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmountFormat
	}

	allocation, err := s.amount.AllocateAmount(ctx, params.BaseAmount, s.settings.LockTTL())
	if err != nil {
		return nil, err
	}

	expireMinutes := s.settings.OrderExpireMinutes()
	order := &model.Order{
		OrderNo:               util.GenerateOrderNo(),
		BizOrderNo:            bizOrderNo,
		BaseAmount:            params.BaseAmount,
		ActualAmount:          allocation.ActualAmount,
		AmountInSun:           util.AmountToSun(allocation.ActualAmount),
		WalletAddress:         allocation.WalletAddress,
		WalletID:              allocation.WalletID,
		Status:                model.OrderStatusPending,
		RequiredConfirmations: s.settings.RequiredConfirmations(),
		ExpiresAt:             time.Now().Add(time.Duration(expireMinutes) * time.Minute),
		Metadata:              datatypes.JSONMap(params.Metadata),
	}

	if err := model.GetDB().Create(order).Error; err != nil {
		// 创建失败必须退还金额锁，否则组合会被占用到TTL结束
		s.amount.ReleaseAllocation(ctx, allocation.WalletAddress, allocation.AmountStr)
		return nil, fmt.Errorf("创建订单失败: %v", err)
	}

	s.amount.TouchWallet(allocation.WalletID)

	log.Printf("[order] 创建订单成功 orderNo=%s biz=%s amount=%s wallet=%s",
		order.OrderNo, order.BizOrderNo, allocation.AmountStr, order.WalletAddress)
	return order, nil
}

// FindActiveByBizOrderNo 查找业务单号对应的未终结且未过期订单，最新优先
func (s *OrderService) FindActiveByBizOrderNo(bizOrderNo string) (*model.Order, error) {
	var order model.Order
	err := model.GetDB().
		Where("biz_order_no = ?", bizOrderNo).
		Where("status IN ?", activeStatuses()).
		Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByOrderNo 按平台订单号查询
func (s *OrderService) GetOrderByOrderNo(orderNo string) (*model.Order, error) {
	var order model.Order
	err := model.GetDB().Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByID 按主键查询
func (s *OrderService) GetOrderByID(id uint) (*model.Order, error) {
	var order model.Order
	err := model.GetDB().First(&order, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CancelOrder 取消待支付订单
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string) error {
	order, err := s.GetOrderByOrderNo(orderNo)
	if err != nil {
		return err
	}
	return s.cancelPending(ctx, order)
}

// CancelOrderByID 按主键取消待支付订单
func (s *OrderService) CancelOrderByID(ctx context.Context, id uint) error {
	order, err := s.GetOrderByID(id)
	if err != nil {
		return err
	}
	return s.cancelPending(ctx, order)
}

// cancelPending 条件更新保证不会取消已被扫描器标记为已支付的订单
func (s *OrderService) cancelPending(ctx context.Context, order *model.Order) error {
	if order.Status != model.OrderStatusPending {
		return ErrInvalidStatus
	}

	result := model.GetDB().Model(&model.Order{}).
		Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
		Update("status", model.OrderStatusCancelled)
	if result.Error != nil {
		return fmt.Errorf("取消订单失败: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentModification
	}

	s.amount.ReleaseAllocation(ctx, order.WalletAddress, order.ActualAmount.StringFixed(4))
	log.Printf("[order] 订单已取消 orderNo=%s", order.OrderNo)
	return nil
}

// ProcessExpiredOrders 将超时未支付的订单标记为已过期并释放金额锁
func (s *OrderService) ProcessExpiredOrders(ctx context.Context) error {
	var orders []model.Order
	err := model.GetDB().
		Where("status = ? AND expires_at < ?", model.OrderStatusPending, time.Now()).
		Find(&orders).Error
	if err != nil {
		return fmt.Errorf("查询过期订单失败: %v", err)
	}

	for _, order := range orders {
		result := model.GetDB().Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
			Update("status", model.OrderStatusExpired)
		if result.Error != nil {
			log.Printf("[order] 标记过期失败 orderNo=%s: %v", order.OrderNo, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// 扫描器刚刚匹配到付款，跳过
			continue
		}
		s.amount.ReleaseAllocation(ctx, order.WalletAddress, order.ActualAmount.StringFixed(4))
		log.Printf("[order] 订单已过期 orderNo=%s", order.OrderNo)
	}
	return nil
}

// StartExpireWorker 启动过期订单清理任务
func (s *OrderService) StartExpireWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		log.Printf("[order] 过期订单清理任务已启动")
		for {
			select {
			case <-ctx.Done():
				log.Printf("[order] 过期订单清理任务已停止")
				return
			case <-ticker.C:
				if err := s.ProcessExpiredOrders(ctx); err != nil {
					log.Printf("[order] 清理过期订单失败: %v", err)
				}
			}
		}
	}()
}

// IsOrderExpired 判断订单是否已超过有效期
func (s *OrderService) IsOrderExpired(order *model.Order) bool {
	return time.Now().After(order.ExpiresAt)
}
