package util

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("admin123", hash) {
		t.Error("正确密码应通过校验")
	}
	if CheckPassword("wrong", hash) {
		t.Error("错误密码不应通过校验")
	}
}

func TestGenerateOrderNo(t *testing.T) {
	orderNo := GenerateOrderNo()
	if !strings.HasPrefix(orderNo, "PAY") {
		t.Errorf("订单号应以PAY开头: %s", orderNo)
	}
	if len(orderNo) < 3+13+6 {
		t.Errorf("订单号长度异常: %s", orderNo)
	}
	if orderNo == GenerateOrderNo() {
		t.Error("订单号不应重复")
	}
}

func TestGenerateOrderToken(t *testing.T) {
	token := GenerateOrderToken()
	if len(token) != 48 {
		t.Errorf("令牌应为48位十六进制, got %d", len(token))
	}
	if token == GenerateOrderToken() {
		t.Error("令牌不应重复")
	}

	hash := HashOrderToken(token)
	if len(hash) != 64 {
		t.Errorf("令牌哈希应为64位十六进制, got %d", len(hash))
	}
	if hash != HashOrderToken(token) {
		t.Error("相同令牌哈希应一致")
	}
	if hash == HashOrderToken(GenerateOrderToken()) {
		t.Error("不同令牌哈希不应一致")
	}
}
