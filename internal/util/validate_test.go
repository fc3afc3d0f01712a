package util

import (
	"strings"
	"testing"
)

func TestBizOrderNoLen(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"ascii", "ORD-001", 7},
		{"cjk", "订单编号", 4},
		{"emoji surrogate pair", "😀", 2},
		{"mixed", "ORD-订单-😀", 10},
	}
	for _, tt := range tests {
		if got := BizOrderNoLen(tt.input); got != tt.want {
			t.Errorf("%s: BizOrderNoLen(%q) = %d, want %d", tt.name, tt.input, got, tt.want)
		}
	}
}

func TestIsValidBizOrderNo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"empty", "", false},
		{"simple", "ORD-001", true},
		{"64 ascii", strings.Repeat("a", 64), true},
		{"65 ascii", strings.Repeat("a", 65), false},
		// 64个汉字按字符数计合法，按字节数计会超限
		{"64 cjk", strings.Repeat("单", 64), true},
		{"65 cjk", strings.Repeat("单", 65), false},
		// 代理对按2个码元计
		{"32 emoji", strings.Repeat("😀", 32), true},
		{"33 emoji", strings.Repeat("😀", 33), false},
	}
	for _, tt := range tests {
		if got := IsValidBizOrderNo(tt.input); got != tt.want {
			t.Errorf("%s: IsValidBizOrderNo = %v, want %v", tt.name, got, tt.want)
		}
	}
}
