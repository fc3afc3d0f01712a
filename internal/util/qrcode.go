package util

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// GenerateAddressQR 生成收款地址二维码PNG
func GenerateAddressQR(address string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(address, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("生成二维码失败: %v", err)
	}
	return png, nil
}
