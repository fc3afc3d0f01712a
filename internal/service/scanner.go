package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfirmedOrder 确认完成的订单回调载荷
type ConfirmedOrder struct {
	ID                    uint                   `json:"id"`
	OrderNo               string                 `json:"orderNo"`
	BizOrderNo            string                 `json:"bizOrderNo"`
	BaseAmount            string                 `json:"baseAmount"`
	ActualAmount          string                 `json:"actualAmount"`
	WalletAddress         string                 `json:"walletAddress"`
	TxHash                string                 `json:"txHash"`
	BlockNumber           int64                  `json:"blockNumber"`
	Confirmations         int                    `json:"confirmations"`
	RequiredConfirmations int                    `json:"requiredConfirmations"`
	Metadata              map[string]interface{} `json:"metadata"`
}

// ConfirmedHandler 订单确认完成的处理接口
// 处理失败时返回错误，订单停留在已确认状态等待下一轮重试
type ConfirmedHandler interface {
	HandleConfirmed(ctx context.Context, order *ConfirmedOrder) error
}

// ConfirmedHandlerFunc 函数适配器
type ConfirmedHandlerFunc func(ctx context.Context, order *ConfirmedOrder) error

func (f ConfirmedHandlerFunc) HandleConfirmed(ctx context.Context, order *ConfirmedOrder) error {
	return f(ctx, order)
}

// ComputeConfirmations 按当前高度计算交易确认数，所在区块本身计1次
func ComputeConfirmations(currentBlock, txBlock int64) int {
	if txBlock <= 0 || currentBlock < txBlock {
		return 0
	}
	return int(currentBlock - txBlock + 1)
}

// BuildConfirmedPayload 构造回调载荷，metadata剥离内部字段
func BuildConfirmedPayload(order *model.Order) *ConfirmedOrder {
	return &ConfirmedOrder{
		ID:                    order.ID,
		OrderNo:               order.OrderNo,
		BizOrderNo:            order.BizOrderNo,
		BaseAmount:            order.BaseAmount.StringFixed(2),
		ActualAmount:          order.ActualAmount.StringFixed(4),
		WalletAddress:         order.WalletAddress,
		TxHash:                order.TxHash,
		BlockNumber:           order.BlockNumber,
		Confirmations:         order.Confirmations,
		RequiredConfirmations: order.RequiredConfirmations,
		Metadata:              order.SafeMetadata(),
	}
}

// ScannerService 链上扫描服务
// 每轮先匹配收款交易，再更新确认数并推进状态机
type ScannerService struct {
	ledger   LedgerClient
	amount   *AmountService
	settings *SettingsService
	handler  ConfirmedHandler

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

var (
	scannerService *ScannerService
	scannerOnce    sync.Once
)

func GetScannerService() *ScannerService {
	scannerOnce.Do(func() {
		scannerService = &ScannerService{}
	})
	return scannerService
}

// Init 注入依赖，handler可为nil
func (s *ScannerService) Init(ledger LedgerClient, amount *AmountService, settings *SettingsService, handler ConfirmedHandler) {
	s.ledger = ledger
	s.amount = amount
	s.settings = settings
	s.handler = handler
}

// Start 启动扫描循环，重复调用无效果
func (s *ScannerService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)
	log.Printf("[scanner] 扫描器已启动 mode=%s interval=%v", s.settings.NetworkMode(), s.settings.ScanInterval())
}

// Stop 停止扫描循环并等待当前轮结束
func (s *ScannerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("[scanner] 扫描器已停止")
}

func (s *ScannerService) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		s.scanOnce(ctx)

		// 每轮结束后重新读取扫描间隔，后台调整实时生效
		timer := time.NewTimer(s.settings.ScanInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// scanOnce 执行一轮扫描: 转账匹配 + 确认数推进
func (s *ScannerService) scanOnce(ctx context.Context) {
	if err := s.scanWalletTransfers(ctx); err != nil {
		log.Printf("[scanner] 扫描钱包转账失败: %v", err)
	}
	if err := s.UpdateConfirmations(ctx); err != nil {
		log.Printf("[scanner] 更新确认数失败: %v", err)
	}
}

// scanWalletTransfers 逐钱包拉取转账并尝试匹配订单
func (s *ScannerService) scanWalletTransfers(ctx context.Context) error {
	var wallets []model.Wallet
	if err := model.GetDB().Where("is_active = ?", true).Find(&wallets).Error; err != nil {
		return err
	}

	for _, wallet := range wallets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		transfers, err := s.ledger.ListIncomingTransfers(ctx, wallet.Address)
		if err != nil {
			// 单个钱包失败不影响其他钱包
			log.Printf("[scanner] 拉取转账失败 wallet=%s: %v", wallet.Address, err)
			continue
		}
		for i := range transfers {
			s.processTransfer(ctx, &transfers[i])
		}
	}
	return nil
}

// processTransfer 幂等入库转账并匹配待支付订单
func (s *ScannerService) processTransfer(ctx context.Context, transfer *Transfer) {
	db := model.GetDB()

	// 以tx_hash幂等入库
	tx := model.Transaction{
		TxHash:         transfer.TxHash,
		FromAddress:    transfer.FromAddress,
		ToAddress:      transfer.ToAddress,
		Amount:         transfer.AmountSun,
		AmountInUSDT:   transfer.AmountUSDT,
		BlockNumber:    transfer.BlockNumber,
		BlockTimestamp: transfer.BlockTimestamp,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoNothing: true,
	}).Create(&tx).Error; err != nil {
		log.Printf("[scanner] 记录转账失败 tx=%s: %v", transfer.TxHash, err)
		return
	}

	var record model.Transaction
	if err := db.Where("tx_hash = ?", transfer.TxHash).First(&record).Error; err != nil {
		log.Printf("[scanner] 查询转账记录失败 tx=%s: %v", transfer.TxHash, err)
		return
	}
	if record.IsMatched {
		return
	}

	// 金额+钱包唯一定位订单，取最早创建且未过期的待支付单
	var order model.Order
	err := db.Where("status = ?", model.OrderStatusPending).
		Where("wallet_address = ?", transfer.ToAddress).
		Where("actual_amount = ?", transfer.AmountUSDT).
		Where("expires_at > ?", time.Now()).
		Order("created_at ASC").
		First(&order).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("[scanner] 匹配订单查询失败 tx=%s: %v", transfer.TxHash, err)
		}
		return
	}

	now := time.Now()
	result := db.Model(&model.Order{}).
		Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusPaid,
			"tx_hash":      transfer.TxHash,
			"block_number": transfer.BlockNumber,
			"paid_at":      now,
		})
	if result.Error != nil {
		log.Printf("[scanner] 标记已支付失败 orderNo=%s: %v", order.OrderNo, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		// 订单已被取消或过期
		return
	}

	if err := db.Model(&record).Updates(map[string]interface{}{
		"order_id":   order.ID,
		"order_no":   order.OrderNo,
		"is_matched": true,
		"matched_at": now,
	}).Error; err != nil {
		log.Printf("[scanner] 标记转账已匹配失败 tx=%s: %v", transfer.TxHash, err)
	}

	// 钱包累计统计
	if err := db.Model(&model.Wallet{}).
		Where("id = ?", order.WalletID).
		Updates(map[string]interface{}{
			"total_orders": gorm.Expr("total_orders + 1"),
			"total_amount": gorm.Expr("total_amount + ?", transfer.AmountUSDT),
		}).Error; err != nil {
		log.Printf("[scanner] 更新钱包统计失败 id=%d: %v", order.WalletID, err)
	}

	// 金额组合立即归还池子
	s.amount.ReleaseAllocation(ctx, order.WalletAddress, order.ActualAmount.StringFixed(4))

	log.Printf("[scanner] 匹配到支付交易 orderNo=%s tx=%s wallet=%s amount=%s",
		order.OrderNo, transfer.TxHash, transfer.ToAddress, transfer.AmountUSDT.StringFixed(4))
}

// UpdateConfirmations 更新确认数并推进 paid→confirmed→completed
func (s *ScannerService) UpdateConfirmations(ctx context.Context) error {
	db := model.GetDB()

	var orders []model.Order
	err := db.Where("status IN ?", []model.OrderStatus{model.OrderStatusPaid, model.OrderStatusConfirmed}).
		Where("tx_hash <> ''").
		Order("updated_at ASC").
		Limit(100).
		Find(&orders).Error
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	currentBlock, err := s.ledger.CurrentBlockNumber(ctx)
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]
		if order.BlockNumber <= 0 {
			continue
		}
		confirmations := ComputeConfirmations(currentBlock, order.BlockNumber)
		if err := db.Model(order).Update("confirmations", confirmations).Error; err != nil {
			log.Printf("[scanner] 更新确认数失败 orderNo=%s: %v", order.OrderNo, err)
			continue
		}
		order.Confirmations = confirmations

		if confirmations < order.RequiredConfirmations {
			continue
		}

		if order.Status == model.OrderStatusPaid {
			now := time.Now()
			result := db.Model(&model.Order{}).
				Where("id = ? AND status = ?", order.ID, model.OrderStatusPaid).
				Updates(map[string]interface{}{
					"status":       model.OrderStatusConfirmed,
					"confirmed_at": now,
				})
			if result.Error != nil || result.RowsAffected == 0 {
				continue
			}
			order.Status = model.OrderStatusConfirmed
			log.Printf("[scanner] 订单已确认 orderNo=%s tx=%s confirmations=%d/%d",
				order.OrderNo, order.TxHash, confirmations, order.RequiredConfirmations)
		}

		if order.Status == model.OrderStatusConfirmed {
			if err := s.completeOrder(ctx, order); err != nil {
				// 回调失败订单停留在已确认状态，下一轮重试
				log.Printf("[scanner] 回调处理失败，等待下次重试 orderNo=%s: %v", order.OrderNo, err)
			}
		}
	}
	return nil
}

// completeOrder 执行确认回调，成功后标记完成
// 回调至少一次语义：完成标记失败时下一轮会重复回调
func (s *ScannerService) completeOrder(ctx context.Context, order *model.Order) error {
	if s.handler != nil {
		if err := s.handler.HandleConfirmed(ctx, BuildConfirmedPayload(order)); err != nil {
			return err
		}
	}

	now := time.Now()
	result := model.GetDB().Model(&model.Order{}).
		Where("id = ? AND status = ?", order.ID, model.OrderStatusConfirmed).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[scanner] 订单已完成 orderNo=%s tx=%s", order.OrderNo, order.TxHash)
	}
	return nil
}

// DispatchConfirmedOrder 手动重发指定订单的确认回调
func (s *ScannerService) DispatchConfirmedOrder(ctx context.Context, orderID uint) error {
	var order model.Order
	if err := model.GetDB().First(&order, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrOrderNotFound
		}
		return err
	}
	if s.handler == nil {
		return nil
	}
	return s.handler.HandleConfirmed(ctx, BuildConfirmedPayload(&order))
}
