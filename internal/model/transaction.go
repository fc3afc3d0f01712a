package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction 链上转账记录表
// 以 tx_hash 为自然键幂等入库：同一笔转账被多轮扫描观察到只记录一次
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TxHash         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"tx_hash"`
	FromAddress    string          `gorm:"type:varchar(42);not null" json:"from_address"`
	ToAddress      string          `gorm:"type:varchar(42);not null;index" json:"to_address"`
	Amount         string          `gorm:"type:varchar(20);not null" json:"amount"`                 // 原始金额(sun)
	AmountInUSDT   decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"amount_in_usdt"`       // 换算后的USDT金额(4位小数)
	BlockNumber    int64           `gorm:"not null;index" json:"block_number"`
	BlockTimestamp int64           `gorm:"not null" json:"block_timestamp"` // 毫秒时间戳
	OrderID        *uint           `gorm:"index" json:"order_id"`
	OrderNo        string          `gorm:"type:varchar(32)" json:"order_no"`
	IsMatched      bool            `gorm:"default:false;index" json:"is_matched"` // 至多匹配一次
	MatchedAt      *time.Time      `json:"matched_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "obl_payment_transactions"
}
