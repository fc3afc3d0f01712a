package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidMoneyString(t *testing.T) {
	valid := []string{"1", "10", "10.5", "10.50", "0.01", "100000.99"}
	for _, s := range valid {
		if !IsValidMoneyString(s) {
			t.Errorf("%q 应为合法金额", s)
		}
	}

	invalid := []string{"", "-1", "1.234", "1.", ".5", "abc", "1e3", "10,5", " 10"}
	for _, s := range invalid {
		if IsValidMoneyString(s) {
			t.Errorf("%q 不应为合法金额", s)
		}
	}
}

func TestParseBaseAmountString(t *testing.T) {
	got, err := ParseBaseAmount("10.5")
	if err != nil {
		t.Fatalf("ParseBaseAmount: %v", err)
	}
	if got.StringFixed(2) != "10.50" {
		t.Errorf("应规范为2位小数, got %s", got.StringFixed(2))
	}

	for _, s := range []string{"0", "1.234", "-1", "abc", ""} {
		if _, err := ParseBaseAmount(s); err == nil {
			t.Errorf("ParseBaseAmount(%q) 应返回错误", s)
		}
	}
}

func TestParseBaseAmountNumber(t *testing.T) {
	got, err := ParseBaseAmount(float64(10.5))
	if err != nil {
		t.Fatalf("ParseBaseAmount: %v", err)
	}
	if got.StringFixed(2) != "10.50" {
		t.Errorf("got %s, want 10.50", got.StringFixed(2))
	}

	if _, err := ParseBaseAmount(float64(10.123)); err == nil {
		t.Error("超过2位小数的数字应返回错误")
	}
	if _, err := ParseBaseAmount(float64(0)); err == nil {
		t.Error("零金额应返回错误")
	}
	if _, err := ParseBaseAmount([]string{"10"}); err == nil {
		t.Error("非法类型应返回错误")
	}
}

func TestAmountToSun(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"1", 1000000},
		{"10.0001", 10000100},
		{"0.0001", 100},
		{"123.4567", 123456700},
	}
	for _, tt := range tests {
		d, _ := decimal.NewFromString(tt.amount)
		if got := AmountToSun(d); got != tt.want {
			t.Errorf("AmountToSun(%s) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestSunToUSDTForMatch(t *testing.T) {
	got, err := SunToUSDTForMatch("10000100")
	if err != nil {
		t.Fatalf("SunToUSDTForMatch: %v", err)
	}
	if got.StringFixed(4) != "10.0001" {
		t.Errorf("got %s, want 10.0001", got.StringFixed(4))
	}

	// 不足1 sun精度的部分四舍五入到4位
	got, err = SunToUSDTForMatch("10000150")
	if err != nil {
		t.Fatalf("SunToUSDTForMatch: %v", err)
	}
	if got.StringFixed(4) != "10.0002" {
		t.Errorf("got %s, want 10.0002", got.StringFixed(4))
	}

	if _, err := SunToUSDTForMatch("abc"); err == nil {
		t.Error("非法sun数量应返回错误")
	}
}
