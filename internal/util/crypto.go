package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword 密码加密
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateOrderNo 生成订单号
// 格式: PAY + 毫秒时间戳 + 6位随机大写十六进制
func GenerateOrderNo() string {
	return fmt.Sprintf("PAY%d%s", time.Now().UnixMilli(), strings.ToUpper(GenerateRandomHex(3)))
}

// GenerateRandomHex 生成随机十六进制字符串
func GenerateRandomHex(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GenerateOrderToken 生成订单访问令牌 (48位十六进制)
// 数据库只保存其哈希，明文仅在创建响应中下发
func GenerateOrderToken() string {
	return GenerateRandomHex(24)
}

// HashOrderToken 计算订单访问令牌的SHA256哈希
func HashOrderToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
