package util

import "unicode/utf16"

// 业务单号最大长度（按UTF-16码元计）
const maxBizOrderNoLen = 64

// BizOrderNoLen 按UTF-16码元计算业务单号长度
// 与JS接入方 String.prototype.length 的语义保持一致
func BizOrderNoLen(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// IsValidBizOrderNo 业务单号非空且不超过64个字符
func IsValidBizOrderNo(s string) bool {
	n := BizOrderNoLen(s)
	return n > 0 && n <= maxBizOrderNoLen
}
