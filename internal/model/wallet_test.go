package model

import "testing"

func TestIsValidTronAddress(t *testing.T) {
	valid := []string{
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		"TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs",
	}
	for _, addr := range valid {
		if !IsValidTronAddress(addr) {
			t.Errorf("%s 应为合法地址", addr)
		}
	}

	invalid := []string{
		"",
		"tR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",  // 不以大写T开头
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6",   // 长度不足
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6tt", // 长度超出
		"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj60",  // 包含0
		"0x742d35Cc6634C0532925a3b844Bc454e",  // 以太坊地址
	}
	for _, addr := range invalid {
		if IsValidTronAddress(addr) {
			t.Errorf("%s 不应为合法地址", addr)
		}
	}
}

func TestOrderStatusString(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   string
	}{
		{OrderStatusPending, "pending"},
		{OrderStatusPaid, "paid"},
		{OrderStatusConfirmed, "confirmed"},
		{OrderStatusCompleted, "completed"},
		{OrderStatusExpired, "expired"},
		{OrderStatusCancelled, "cancelled"},
		{OrderStatusFailed, "failed"},
		{OrderStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("OrderStatus(%d).String() = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestSafeMetadata(t *testing.T) {
	order := &Order{
		Metadata: map[string]interface{}{
			"userId":              "u-1",
			MetaKeyOrderTokenHash: "hash",
		},
	}
	safe := order.SafeMetadata()
	if _, ok := safe[MetaKeyOrderTokenHash]; ok {
		t.Error("SafeMetadata不应包含令牌哈希")
	}
	if safe["userId"] != "u-1" {
		t.Error("业务字段应保留")
	}

	only := &Order{Metadata: map[string]interface{}{MetaKeyOrderTokenHash: "hash"}}
	if only.SafeMetadata() != nil {
		t.Error("仅含内部字段时应返回nil")
	}

	empty := &Order{}
	if empty.SafeMetadata() != nil {
		t.Error("空metadata应返回nil")
	}
}
