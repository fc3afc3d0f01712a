package util

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// moneyRegex 金额格式: 整数或最多2位小数
var moneyRegex = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ErrInvalidAmountFormat 金额格式无效
var ErrInvalidAmountFormat = errors.New("支付金额无效（仅支持最多 2 位小数）")

// IsValidMoneyString 校验金额字符串格式
func IsValidMoneyString(s string) bool {
	return moneyRegex.MatchString(s)
}

// ParseBaseAmount 解析请求金额
// 接受字符串或JSON数字，必须为正数且最多2位小数，返回2位小数标准化结果
func ParseBaseAmount(input interface{}) (decimal.Decimal, error) {
	var d decimal.Decimal

	switch v := input.(type) {
	case string:
		if !moneyRegex.MatchString(v) {
			return decimal.Zero, ErrInvalidAmountFormat
		}
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, ErrInvalidAmountFormat
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
		// 超过2位小数的浮点输入视为非法
		if !d.Round(2).Equal(d) {
			return decimal.Zero, ErrInvalidAmountFormat
		}
	case decimal.Decimal:
		d = v
		if !d.Round(2).Equal(d) {
			return decimal.Zero, ErrInvalidAmountFormat
		}
	default:
		return decimal.Zero, ErrInvalidAmountFormat
	}

	if d.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmountFormat
	}
	return d.Round(2), nil
}

// AmountToSun USDT金额换算为sun (1 USDT = 1,000,000 sun)，向下取整
func AmountToSun(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(1000000)).Floor().IntPart()
}

// SunToUSDT sun换算为USDT金额
func SunToUSDT(sun string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(sun)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid sun amount %q: %w", sun, err)
	}
	return d.Div(decimal.NewFromInt(1000000)), nil
}

// SunToUSDTForMatch sun换算为4位小数的USDT金额，与订单actual_amount同精度比较
func SunToUSDTForMatch(sun string) (decimal.Decimal, error) {
	d, err := SunToUSDT(sun)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(4), nil
}
