package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 共享HTTP客户端
var httpClient = &http.Client{
	Timeout: 15 * time.Second,
}

// Transfer 链上TRC20转账记录
type Transfer struct {
	TxHash         string
	FromAddress    string
	ToAddress      string
	AmountSun      string          // 原始sun数量
	AmountUSDT     decimal.Decimal // 4位小数
	BlockNumber    int64
	BlockTimestamp int64 // 毫秒
}

// LedgerClient 链上账本查询接口
type LedgerClient interface {
	// ListIncomingTransfers 查询地址在扫描窗口内收到的USDT转账
	ListIncomingTransfers(ctx context.Context, address string) ([]Transfer, error)
	// CurrentBlockNumber 查询当前区块高度
	CurrentBlockNumber(ctx context.Context) (int64, error)
}

// TronClient 基于Tronscan和TronGrid的账本客户端
type TronClient struct {
	settings *SettingsService
}

func NewTronClient(settings *SettingsService) *TronClient {
	return &TronClient{settings: settings}
}

// tronscanTransferItem Tronscan转账列表条目
type tronscanTransferItem struct {
	To             string `json:"to"`
	From           string `json:"from"`
	Amount         string `json:"amount"`
	BlockTimestamp int64  `json:"block_timestamp"`
	Hash           string `json:"hash"`
	Block          int64  `json:"block"`
	ContractRet    string `json:"contract_ret"`
}

type tronscanTransferResponse struct {
	Data []tronscanTransferItem `json:"data"`
}

// ListIncomingTransfers 拉取钱包收款记录
// 只保留执行成功且收款方匹配的转账
func (c *TronClient) ListIncomingTransfers(ctx context.Context, address string) ([]Transfer, error) {
	chain := c.settings.Chain()
	now := time.Now().UnixMilli()
	start := now - c.settings.ScanWindow().Milliseconds()

	params := url.Values{}
	params.Set("address", address)
	params.Set("start_timestamp", strconv.FormatInt(start, 10))
	params.Set("end_timestamp", strconv.FormatInt(now, 10))
	params.Set("limit", strconv.Itoa(c.settings.ScanLimit()))
	params.Set("trc20Id", chain.USDTContract)
	params.Set("direction", "2")
	params.Set("sort", "-timestamp")
	params.Set("start", "0")
	params.Set("db_version", "1")

	apiURL := strings.TrimRight(chain.TronscanAPI, "/") + "/api/transfer/trc20?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	if chain.TronscanAPIKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", chain.TronscanAPIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求Tronscan失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tronscan返回异常状态: HTTP %d", resp.StatusCode)
	}

	var result tronscanTransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析Tronscan响应失败: %v", err)
	}

	return filterIncomingTransfers(result.Data, address), nil
}

// filterIncomingTransfers 规范化Tronscan转账条目
func filterIncomingTransfers(items []tronscanTransferItem, address string) []Transfer {
	transfers := make([]Transfer, 0, len(items))
	for _, item := range items {
		if item.ContractRet != "SUCCESS" {
			continue
		}
		if item.Hash == "" || item.Amount == "" || item.To == "" {
			continue
		}
		if !strings.EqualFold(item.To, address) {
			continue
		}
		sun, err := decimal.NewFromString(item.Amount)
		if err != nil {
			continue
		}
		transfers = append(transfers, Transfer{
			TxHash:         item.Hash,
			FromAddress:    item.From,
			ToAddress:      item.To,
			AmountSun:      item.Amount,
			AmountUSDT:     sun.Div(decimal.New(1, 6)).Round(4),
			BlockNumber:    item.Block,
			BlockTimestamp: item.BlockTimestamp,
		})
	}
	return transfers
}

// nowBlockResponse TronGrid getnowblock响应
type nowBlockResponse struct {
	BlockHeader struct {
		RawData struct {
			Number int64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
}

// CurrentBlockNumber 查询TronGrid当前区块高度
func (c *TronClient) CurrentBlockNumber(ctx context.Context) (int64, error) {
	chain := c.settings.Chain()
	apiURL := strings.TrimRight(chain.TrongridAPI, "/") + "/wallet/getnowblock"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if chain.TrongridAPIKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", chain.TrongridAPIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("请求TronGrid失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("TronGrid返回异常状态: HTTP %d", resp.StatusCode)
	}

	var result nowBlockResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("解析TronGrid响应失败: %v", err)
	}
	if result.BlockHeader.RawData.Number <= 0 {
		return 0, fmt.Errorf("TronGrid返回无效区块高度")
	}
	return result.BlockHeader.RawData.Number, nil
}
