package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus 订单状态
type OrderStatus int8

const (
	OrderStatusPending   OrderStatus = 0 // 待支付
	OrderStatusPaid      OrderStatus = 1 // 已支付(等待确认)
	OrderStatusConfirmed OrderStatus = 2 // 已确认(等待回调)
	OrderStatusCompleted OrderStatus = 3 // 已完成
	OrderStatusExpired   OrderStatus = 4 // 已过期
	OrderStatusCancelled OrderStatus = 5 // 已取消
	OrderStatusFailed    OrderStatus = 6 // 已失败
)

// String 状态名称 (对外接口使用)
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusPaid:
		return "paid"
	case OrderStatusConfirmed:
		return "confirmed"
	case OrderStatusCompleted:
		return "completed"
	case OrderStatusExpired:
		return "expired"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MetaKeyOrderTokenHash 订单访问令牌哈希在 metadata 中的保留键
// 只存哈希值，明文令牌仅在创建时下发一次，对外接口永不返回该键
const MetaKeyOrderTokenHash = "order_token_hash"

// Order 支付订单表
type Order struct {
	ID                    uint              `gorm:"primaryKey" json:"id"`
	OrderNo               string            `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_no"`
	BizOrderNo            string            `gorm:"type:varchar(64);not null;index:idx_biz_order_no" json:"biz_order_no"`
	BaseAmount            decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"base_amount"`                            // 请求金额(2位小数)
	ActualAmount          decimal.Decimal   `gorm:"type:decimal(10,4);not null;index:idx_wallet_amount" json:"actual_amount"` // 实际应付金额(4位小数,唯一标识)
	AmountInSun           int64             `gorm:"not null" json:"amount_in_sun"`                                             // 实际金额对应的sun(向下取整)
	WalletAddress         string            `gorm:"type:varchar(42);not null;index:idx_wallet_amount" json:"wallet_address"`
	WalletID              uint              `gorm:"not null" json:"wallet_id"`
	Status                OrderStatus       `gorm:"default:0;index" json:"status"`
	TxHash                string            `gorm:"type:varchar(64);index" json:"tx_hash"`
	BlockNumber           int64             `gorm:"default:0" json:"block_number"`
	Confirmations         int               `gorm:"default:0" json:"confirmations"`
	RequiredConfirmations int               `gorm:"default:6" json:"required_confirmations"` // 创建时快照，后续策略调整不影响已有订单
	ExpiresAt             time.Time         `gorm:"not null;index" json:"expires_at"`
	PaidAt                *time.Time        `json:"paid_at"`
	ConfirmedAt           *time.Time        `json:"confirmed_at"`
	CompletedAt           *time.Time        `json:"completed_at"`
	ErrorMessage          string            `gorm:"type:text" json:"error_message"`
	Metadata              datatypes.JSONMap `json:"metadata"`
	CreatedAt             time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func (Order) TableName() string {
	return "obl_payment_orders"
}

// SafeMetadata 返回剥离内部安全字段后的 metadata 副本
func (o *Order) SafeMetadata() map[string]interface{} {
	if len(o.Metadata) == 0 {
		return nil
	}
	safe := make(map[string]interface{}, len(o.Metadata))
	for k, v := range o.Metadata {
		if k == MetaKeyOrderTokenHash {
			continue
		}
		safe[k] = v
	}
	if len(safe) == 0 {
		return nil
	}
	return safe
}
