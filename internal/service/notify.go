package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/util"
)

// WebhookNotifier 订单确认回调通知器
// 向上游系统POST确认订单载荷，非2xx视为失败由扫描器下一轮重试
type WebhookNotifier struct {
	url     string
	secret  string
	client  *http.Client
	timeout time.Duration
}

func NewWebhookNotifier(url, secret string, timeoutSeconds int) *WebhookNotifier {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	return &WebhookNotifier{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// HandleConfirmed 实现ConfirmedHandler
func (n *WebhookNotifier) HandleConfirmed(ctx context.Context, order *ConfirmedOrder) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("序列化回调载荷失败: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		// 回调签名: HMAC-SHA256(ts.body)
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set("X-Obl-Timestamp", ts)
		req.Header.Set("X-Obl-Signature", util.HmacSHA256Hex(n.secret, ts+"."+string(body)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("回调请求失败: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("回调返回异常状态: HTTP %d", resp.StatusCode)
	}
	return nil
}
