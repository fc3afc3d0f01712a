package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/Olleigeigei/ObeliskUsdt/internal/service"
	"github.com/Olleigeigei/ObeliskUsdt/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// metadata序列化后的最大字节数
const maxMetadataBytes = 8000

// PaymentHandler 对外支付接口处理器
type PaymentHandler struct {
	orders *service.OrderService
	tokens *service.OrderTokenService
}

func NewPaymentHandler(orders *service.OrderService, tokens *service.OrderTokenService) *PaymentHandler {
	return &PaymentHandler{orders: orders, tokens: tokens}
}

// createPaymentRequest 创建订单请求
type createPaymentRequest struct {
	BizOrderNo string                 `json:"bizOrderNo"`
	BaseAmount interface{}            `json:"baseAmount"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// paymentCreatedResponse 创建订单响应
type paymentCreatedResponse struct {
	ID            uint      `json:"id"`
	OrderNo       string    `json:"orderNo"`
	BizOrderNo    string    `json:"bizOrderNo"`
	Status        string    `json:"status"`
	ActualAmount  string    `json:"actualAmount"`
	WalletAddress string    `json:"walletAddress"`
	ExpiresAt     time.Time `json:"expiresAt"`
	OrderToken    string    `json:"orderToken"`
}

func buildCreatedResponse(order *model.Order, token string) paymentCreatedResponse {
	return paymentCreatedResponse{
		ID:            order.ID,
		OrderNo:       order.OrderNo,
		BizOrderNo:    order.BizOrderNo,
		Status:        order.Status.String(),
		ActualAmount:  order.ActualAmount.StringFixed(4),
		WalletAddress: order.WalletAddress,
		ExpiresAt:     order.ExpiresAt,
		OrderToken:    token,
	}
}

// CreatePayment 创建支付订单
// 同业务单号存在未终结订单时按金额一致性幂等返回
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "参数错误")
		return
	}

	baseAmount, err := util.ParseBaseAmount(req.BaseAmount)
	if err != nil {
		util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "支付金额无效（仅支持最多 2 位小数）")
		return
	}

	bizOrderNo := strings.TrimSpace(req.BizOrderNo)
	if bizOrderNo == "" {
		util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "业务单号不能为空")
		return
	}
	if len(bizOrderNo) > 64 {
		util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "业务单号长度不能超过64")
		return
	}

	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "metadata 格式不合法")
			return
		}
		if len(raw) > maxMetadataBytes {
			util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "metadata 过大")
			return
		}
	}

	ctx := c.Request.Context()

	// 幂等: 同业务单号下存在未终结未过期订单
	existing, err := h.orders.FindActiveByBizOrderNo(bizOrderNo)
	if err != nil {
		util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "查询订单失败")
		return
	}
	if existing != nil {
		if !existing.BaseAmount.Equal(baseAmount) {
			util.ErrorWithCode(c, http.StatusConflict, util.CodeConflict, "业务单号已存在且金额不一致")
			return
		}

		token, err := h.tokens.GetToken(ctx, existing.OrderNo)
		if err != nil {
			util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "订单令牌存储读失败")
			return
		}
		if token == "" {
			// 缓存丢失，轮换新令牌并同步哈希
			token = util.GenerateOrderToken()
			metadata := map[string]interface{}(existing.Metadata)
			if metadata == nil {
				metadata = make(map[string]interface{})
			}
			metadata[model.MetaKeyOrderTokenHash] = util.HashOrderToken(token)
			if err := model.GetDB().Model(existing).Update("metadata", datatypes.JSONMap(metadata)).Error; err != nil {
				util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "订单令牌存储写失败")
				return
			}
			if err := h.tokens.SaveToken(ctx, existing.OrderNo, token, existing.ExpiresAt); err != nil {
				util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "订单令牌存储写失败")
				return
			}
		}
		util.SuccessWithMsg(c, "创建支付订单成功", buildCreatedResponse(existing, token))
		return
	}

	orderToken := util.GenerateOrderToken()
	metadata := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata[model.MetaKeyOrderTokenHash] = util.HashOrderToken(orderToken)

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderParams{
		BizOrderNo: bizOrderNo,
		BaseAmount: baseAmount,
		Metadata:   metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoWalletsAvailable):
			util.ErrorWithCode(c, http.StatusServiceUnavailable, util.CodeNoWallets, err.Error())
		case errors.Is(err, service.ErrAllocationExhausted):
			util.ErrorWithCode(c, http.StatusServiceUnavailable, util.CodeAllocationExhausted, err.Error())
		case errors.Is(err, service.ErrInvalidBizOrderNo), errors.Is(err, util.ErrInvalidAmountFormat):
			util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, err.Error())
		default:
			util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "创建支付订单失败")
		}
		return
	}

	if err := h.tokens.SaveToken(ctx, order.OrderNo, orderToken, order.ExpiresAt); err != nil {
		util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "订单令牌存储写失败")
		return
	}

	util.SuccessWithMsg(c, "创建支付订单成功", buildCreatedResponse(order, orderToken))
}

// orderTokenFromRequest 提取订单令牌: 请求头优先于查询参数
func orderTokenFromRequest(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader("X-Obl-Order-Token")); token != "" {
		return token
	}
	if token := strings.TrimSpace(c.GetHeader("X-Order-Token")); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}

// authorizeOrder 按令牌取订单
// 订单不存在和令牌不匹配返回同样的结果，避免探测订单号
func (h *PaymentHandler) authorizeOrder(c *gin.Context) *model.Order {
	orderNo := strings.TrimSpace(c.Param("orderNo"))
	if orderNo == "" {
		util.ErrorWithCode(c, http.StatusBadRequest, util.CodeValidation, "订单号不能为空")
		return nil
	}

	token := orderTokenFromRequest(c)
	if token == "" {
		util.ErrorWithCode(c, http.StatusUnauthorized, util.CodeUnauthorized, "缺少订单令牌")
		return nil
	}

	order, err := h.orders.GetOrderByOrderNo(orderNo)
	if err != nil || !tokenMatched(order, token) {
		util.ErrorWithCode(c, http.StatusNotFound, util.CodeNotFound, "订单不存在或无权限查看")
		return nil
	}
	return order
}

// tokenMatched 校验令牌哈希与metadata中记录的一致
func tokenMatched(order *model.Order, token string) bool {
	if order == nil || len(order.Metadata) == 0 {
		return false
	}
	expected, _ := order.Metadata[model.MetaKeyOrderTokenHash].(string)
	if expected == "" {
		return false
	}
	return expected == util.HashOrderToken(token)
}

// paymentStatusResponse 订单状态响应
type paymentStatusResponse struct {
	ID                    uint       `json:"id"`
	OrderNo               string     `json:"orderNo"`
	BizOrderNo            string     `json:"bizOrderNo"`
	Status                string     `json:"status"`
	ActualAmount          string     `json:"actualAmount"`
	WalletAddress         string     `json:"walletAddress"`
	TxHash                string     `json:"txHash"`
	Confirmations         int        `json:"confirmations"`
	RequiredConfirmations int        `json:"requiredConfirmations"`
	PaidAt                *time.Time `json:"paidAt"`
	ConfirmedAt           *time.Time `json:"confirmedAt"`
	CompletedAt           *time.Time `json:"completedAt"`
	ExpiresAt             time.Time  `json:"expiresAt"`
}

// GetPaymentStatus 查询订单状态
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	order := h.authorizeOrder(c)
	if order == nil {
		return
	}

	util.SuccessWithMsg(c, "获取支付状态成功", paymentStatusResponse{
		ID:                    order.ID,
		OrderNo:               order.OrderNo,
		BizOrderNo:            order.BizOrderNo,
		Status:                order.Status.String(),
		ActualAmount:          order.ActualAmount.StringFixed(4),
		WalletAddress:         order.WalletAddress,
		TxHash:                order.TxHash,
		Confirmations:         order.Confirmations,
		RequiredConfirmations: order.RequiredConfirmations,
		PaidAt:                order.PaidAt,
		ConfirmedAt:           order.ConfirmedAt,
		CompletedAt:           order.CompletedAt,
		ExpiresAt:             order.ExpiresAt,
	})
}

// CancelPayment 取消待支付订单
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	order := h.authorizeOrder(c)
	if order == nil {
		return
	}

	if err := h.orders.CancelOrder(c.Request.Context(), order.OrderNo); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			util.ErrorWithCode(c, http.StatusBadRequest, util.CodeInvalidStatus, err.Error())
		case errors.Is(err, service.ErrConcurrentModification):
			util.ErrorWithCode(c, http.StatusConflict, util.CodeConcurrentModified, err.Error())
		case errors.Is(err, service.ErrOrderNotFound):
			util.ErrorWithCode(c, http.StatusNotFound, util.CodeNotFound, "订单不存在或无权限查看")
		default:
			util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "取消订单失败")
		}
		return
	}
	util.SuccessWithMsg(c, "取消订单成功", gin.H{"orderNo": order.OrderNo})
}

// GetPaymentQR 生成收款地址二维码
func (h *PaymentHandler) GetPaymentQR(c *gin.Context) {
	order := h.authorizeOrder(c)
	if order == nil {
		return
	}

	png, err := util.GenerateAddressQR(order.WalletAddress, 256)
	if err != nil {
		util.ErrorWithCode(c, http.StatusInternalServerError, util.CodeServerError, "生成二维码失败")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
