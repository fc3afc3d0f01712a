package model

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// tronAddressRegex TRON base58 地址格式
var tronAddressRegex = regexp.MustCompile(`^T[A-Za-z1-9]{33}$`)

// IsValidTronAddress 校验TRON收款地址格式
func IsValidTronAddress(address string) bool {
	return tronAddressRegex.MatchString(address)
}

// Wallet 收款钱包表
type Wallet struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Address     string          `gorm:"type:varchar(42);uniqueIndex;not null" json:"address"`
	Label       string          `gorm:"type:varchar(100)" json:"label"`
	IsActive    bool            `gorm:"default:true;index:idx_active_priority" json:"is_active"`
	Priority    int             `gorm:"default:0;index:idx_active_priority" json:"priority"` // 越小越优先
	TotalOrders int             `gorm:"default:0" json:"total_orders"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"total_amount"`
	LastUsedAt  *time.Time      `gorm:"index" json:"last_used_at"` // 最后分配时间（用于轮询）
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "obl_payment_wallets"
}
