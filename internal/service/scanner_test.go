package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func TestComputeConfirmations(t *testing.T) {
	tests := []struct {
		current int64
		tx      int64
		want    int
	}{
		{105, 100, 6},
		{100, 100, 1},
		{99, 100, 0},  // 当前高度落后于交易区块
		{100, 0, 0},   // 交易区块未知
		{100, -5, 0},
	}
	for _, tt := range tests {
		if got := ComputeConfirmations(tt.current, tt.tx); got != tt.want {
			t.Errorf("ComputeConfirmations(%d, %d) = %d, want %d", tt.current, tt.tx, got, tt.want)
		}
	}
}

func TestBuildConfirmedPayloadStripsTokenHash(t *testing.T) {
	order := &model.Order{
		ID:                    7,
		OrderNo:               "PAY17000000000001A2B3C",
		BizOrderNo:            "ORD-001",
		BaseAmount:            decimal.RequireFromString("10"),
		ActualAmount:          decimal.RequireFromString("10.0001"),
		WalletAddress:         "TWalletA111111111111111111111111111",
		TxHash:                "deadbeef",
		BlockNumber:           12345,
		Confirmations:         6,
		RequiredConfirmations: 6,
		Metadata: datatypes.JSONMap{
			"customerId":               "c-1",
			model.MetaKeyOrderTokenHash: "should-not-leak",
		},
	}

	payload := BuildConfirmedPayload(order)
	if payload.BaseAmount != "10.00" {
		t.Errorf("BaseAmount = %s", payload.BaseAmount)
	}
	if payload.ActualAmount != "10.0001" {
		t.Errorf("ActualAmount = %s", payload.ActualAmount)
	}
	if _, ok := payload.Metadata[model.MetaKeyOrderTokenHash]; ok {
		t.Error("回调载荷不应包含令牌哈希")
	}
	if payload.Metadata["customerId"] != "c-1" {
		t.Error("业务metadata应保留")
	}
}

func TestBuildConfirmedPayloadEmptyMetadata(t *testing.T) {
	order := &model.Order{
		BaseAmount:   decimal.RequireFromString("5"),
		ActualAmount: decimal.RequireFromString("5.0002"),
		Metadata:     datatypes.JSONMap{model.MetaKeyOrderTokenHash: "only-internal"},
	}
	payload := BuildConfirmedPayload(order)
	if payload.Metadata != nil {
		t.Error("只含内部字段的metadata应序列化为null")
	}
}

func TestFilterIncomingTransfers(t *testing.T) {
	address := "TWalletA111111111111111111111111111"
	raw := `{
		"data": [
			{"to": "TWalletA111111111111111111111111111", "from": "TPayer", "amount": "10000100", "hash": "tx1", "block": 100, "block_timestamp": 1700000000000, "contract_ret": "SUCCESS"},
			{"to": "twalleta111111111111111111111111111", "from": "TPayer", "amount": "5000200", "hash": "tx2", "block": 101, "block_timestamp": 1700000001000, "contract_ret": "SUCCESS"},
			{"to": "TOtherWallet", "from": "TPayer", "amount": "10000100", "hash": "tx3", "block": 102, "block_timestamp": 1700000002000, "contract_ret": "SUCCESS"},
			{"to": "TWalletA111111111111111111111111111", "from": "TPayer", "amount": "10000100", "hash": "tx4", "block": 103, "block_timestamp": 1700000003000, "contract_ret": "REVERT"},
			{"to": "TWalletA111111111111111111111111111", "from": "TPayer", "amount": "", "hash": "tx5", "block": 104, "block_timestamp": 1700000004000, "contract_ret": "SUCCESS"},
			{"to": "TWalletA111111111111111111111111111", "from": "TPayer", "amount": "bogus", "hash": "tx6", "block": 105, "block_timestamp": 1700000005000, "contract_ret": "SUCCESS"}
		]
	}`

	var resp tronscanTransferResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("解析测试数据失败: %v", err)
	}

	transfers := filterIncomingTransfers(resp.Data, address)
	if len(transfers) != 2 {
		t.Fatalf("应保留2笔转账, got %d", len(transfers))
	}

	if transfers[0].TxHash != "tx1" {
		t.Errorf("TxHash = %s", transfers[0].TxHash)
	}
	if transfers[0].AmountUSDT.StringFixed(4) != "10.0001" {
		t.Errorf("AmountUSDT = %s", transfers[0].AmountUSDT.StringFixed(4))
	}
	if transfers[0].BlockNumber != 100 {
		t.Errorf("BlockNumber = %d", transfers[0].BlockNumber)
	}

	// 收款地址比较大小写不敏感
	if transfers[1].TxHash != "tx2" {
		t.Errorf("TxHash = %s", transfers[1].TxHash)
	}
	if transfers[1].AmountUSDT.StringFixed(4) != "5.0002" {
		t.Errorf("AmountUSDT = %s", transfers[1].AmountUSDT.StringFixed(4))
	}
}

func TestTokenTTLBounds(t *testing.T) {
	// 正常区间: 剩余有效期+10分钟
	ttl := tokenTTL(time.Now().Add(15 * time.Minute))
	if ttl < 24*time.Minute || ttl > 26*time.Minute {
		t.Errorf("ttl = %v, want ~25m", ttl)
	}

	// 已过期订单钳制到下限
	if got := tokenTTL(time.Now().Add(-2 * time.Hour)); got != orderTokenMinTTL {
		t.Errorf("过期订单ttl = %v, want %v", got, orderTokenMinTTL)
	}

	// 超长有效期钳制到上限
	if got := tokenTTL(time.Now().Add(100 * 24 * time.Hour)); got != orderTokenMaxTTL {
		t.Errorf("超长ttl = %v, want %v", got, orderTokenMaxTTL)
	}
}
