package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/config"
	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/Olleigeigei/ObeliskUsdt/internal/service"
	"github.com/Olleigeigei/ObeliskUsdt/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// escapeLike 转义 SQL LIKE 通配符
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// AdminHandler 管理后台处理器
type AdminHandler struct {
	cfg      *config.Config
	settings *service.SettingsService
	orders   *service.OrderService
	scanner  *service.ScannerService
}

// NewAdminHandler 创建处理器
func NewAdminHandler(cfg *config.Config, settings *service.SettingsService, orders *service.OrderService, scanner *service.ScannerService) *AdminHandler {
	return &AdminHandler{cfg: cfg, settings: settings, orders: orders, scanner: scanner}
}

// Login 管理员登录
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, "参数错误")
		return
	}

	var admin model.Admin
	if err := model.GetDB().Where("username = ? AND status = 1", req.Username).First(&admin).Error; err != nil {
		util.Error(c, "用户名或密码错误")
		return
	}

	if !util.CheckPassword(req.Password, admin.Password) {
		util.Error(c, "用户名或密码错误")
		return
	}

	// 更新最后登录时间
	now := time.Now()
	model.GetDB().Model(&admin).Update("last_login", &now)

	// 生成JWT
	claims := jwt.MapClaims{
		"admin_id": admin.ID,
		"username": admin.Username,
		"exp":      time.Now().Add(time.Duration(h.cfg.JWT.ExpireHour) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(h.cfg.JWT.Secret))
	if err != nil {
		util.Error(c, "生成Token失败")
		return
	}

	util.Success(c, gin.H{
		"token":    tokenString,
		"username": admin.Username,
	})
}

// ChangePassword 修改管理员密码
func (h *AdminHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, "参数错误，新密码至少6位")
		return
	}

	adminID := c.GetUint("admin_id")
	var admin model.Admin
	if err := model.GetDB().First(&admin, adminID).Error; err != nil {
		util.Error(c, "管理员不存在")
		return
	}

	if !util.CheckPassword(req.OldPassword, admin.Password) {
		util.Error(c, "原密码错误")
		return
	}

	hashed, err := util.HashPassword(req.NewPassword)
	if err != nil {
		util.Error(c, "密码加密失败")
		return
	}
	if err := model.GetDB().Model(&admin).Update("password", hashed).Error; err != nil {
		util.Error(c, "修改密码失败")
		return
	}
	util.SuccessWithMsg(c, "修改密码成功", nil)
}

// ============ 钱包管理 ============

// ListWallets 钱包列表
func (h *AdminHandler) ListWallets(c *gin.Context) {
	var wallets []model.Wallet
	if err := model.GetDB().Order("priority ASC, id ASC").Find(&wallets).Error; err != nil {
		util.Error(c, "查询钱包失败")
		return
	}
	util.Success(c, wallets)
}

// CreateWallet 新增收款钱包
func (h *AdminHandler) CreateWallet(c *gin.Context) {
	var req struct {
		Address  string `json:"address" binding:"required"`
		Label    string `json:"label"`
		Priority int    `json:"priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, "参数错误")
		return
	}

	address := strings.TrimSpace(req.Address)
	if !model.IsValidTronAddress(address) {
		util.Error(c, "TRON地址格式无效")
		return
	}

	wallet := model.Wallet{
		Address:  address,
		Label:    req.Label,
		IsActive: true,
		Priority: req.Priority,
	}
	if err := model.GetDB().Create(&wallet).Error; err != nil {
		util.Error(c, "创建钱包失败，地址可能已存在")
		return
	}
	util.Success(c, wallet)
}

// UpdateWallet 更新钱包标签/优先级/启用状态
func (h *AdminHandler) UpdateWallet(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, "钱包ID无效")
		return
	}

	var req struct {
		Label    *string `json:"label"`
		Priority *int    `json:"priority"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, "参数错误")
		return
	}

	updates := map[string]interface{}{}
	if req.Label != nil {
		updates["label"] = *req.Label
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		util.Error(c, "没有需要更新的字段")
		return
	}

	result := model.GetDB().Model(&model.Wallet{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		util.Error(c, "更新钱包失败")
		return
	}
	if result.RowsAffected == 0 {
		util.ErrorWithCode(c, http.StatusNotFound, util.CodeNotFound, "钱包不存在")
		return
	}
	util.SuccessWithMsg(c, "更新成功", nil)
}

// DeleteWallet 删除钱包
// 有历史订单引用的钱包不允许删除，只能停用
func (h *AdminHandler) DeleteWallet(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, "钱包ID无效")
		return
	}

	var count int64
	if err := model.GetDB().Model(&model.Order{}).Where("wallet_id = ?", id).Count(&count).Error; err != nil {
		util.Error(c, "查询钱包订单失败")
		return
	}
	if count > 0 {
		util.Error(c, "该钱包存在历史订单，请停用而非删除")
		return
	}

	result := model.GetDB().Delete(&model.Wallet{}, id)
	if result.Error != nil {
		util.Error(c, "删除钱包失败")
		return
	}
	if result.RowsAffected == 0 {
		util.ErrorWithCode(c, http.StatusNotFound, util.CodeNotFound, "钱包不存在")
		return
	}
	util.SuccessWithMsg(c, "删除成功", nil)
}

// ============ 订单管理 ============

// ListOrders 订单列表，支持状态/业务单号/时间过滤
func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := model.GetDB().Model(&model.Order{})

	if status := c.Query("status"); status != "" {
		if s, err := strconv.Atoi(status); err == nil {
			query = query.Where("status = ?", s)
		}
	}
	if biz := strings.TrimSpace(c.Query("biz_order_no")); biz != "" {
		query = query.Where("biz_order_no LIKE ?", "%"+escapeLike(biz)+"%")
	}
	if orderNo := strings.TrimSpace(c.Query("order_no")); orderNo != "" {
		query = query.Where("order_no = ?", orderNo)
	}
	if wallet := strings.TrimSpace(c.Query("wallet_address")); wallet != "" {
		query = query.Where("wallet_address = ?", wallet)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		util.Error(c, "查询订单失败")
		return
	}

	var orders []model.Order
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error; err != nil {
		util.Error(c, "查询订单失败")
		return
	}

	// 列表响应剥离metadata中的内部字段
	list := make([]gin.H, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		list = append(list, gin.H{
			"id":                     o.ID,
			"order_no":               o.OrderNo,
			"biz_order_no":           o.BizOrderNo,
			"base_amount":            o.BaseAmount.StringFixed(2),
			"actual_amount":          o.ActualAmount.StringFixed(4),
			"wallet_address":         o.WalletAddress,
			"status":                 o.Status,
			"status_text":            o.Status.String(),
			"tx_hash":                o.TxHash,
			"confirmations":          o.Confirmations,
			"required_confirmations": o.RequiredConfirmations,
			"expires_at":             o.ExpiresAt,
			"paid_at":                o.PaidAt,
			"completed_at":           o.CompletedAt,
			"metadata":               o.SafeMetadata(),
			"created_at":             o.CreatedAt,
		})
	}

	util.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetOrder 订单详情
func (h *AdminHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, "订单ID无效")
		return
	}

	order, err := h.orders.GetOrderByID(uint(id))
	if err != nil {
		util.ErrorWithCode(c, http.StatusNotFound, util.CodeNotFound, "订单不存在")
		return
	}

	var txs []model.Transaction
	model.GetDB().Where("order_id = ?", order.ID).Find(&txs)

	util.Success(c, gin.H{
		"order":        order,
		"transactions": txs,
	})
}

// CancelOrder 管理员取消待支付订单
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, "订单ID无效")
		return
	}

	if err := h.orders.CancelOrderByID(c.Request.Context(), uint(id)); err != nil {
		util.Error(c, err.Error())
		return
	}
	util.SuccessWithMsg(c, "取消订单成功", nil)
}

// ResendCallback 手动重发确认回调
func (h *AdminHandler) ResendCallback(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, "订单ID无效")
		return
	}

	if err := h.scanner.DispatchConfirmedOrder(c.Request.Context(), uint(id)); err != nil {
		util.Error(c, "回调发送失败: "+err.Error())
		return
	}
	util.SuccessWithMsg(c, "回调已发送", nil)
}

// ============ 运维操作 ============

// SweepExpiredOrders 手动执行过期订单清理
func (h *AdminHandler) SweepExpiredOrders(c *gin.Context) {
	if err := h.orders.ProcessExpiredOrders(c.Request.Context()); err != nil {
		util.Error(c, err.Error())
		return
	}
	util.SuccessWithMsg(c, "过期订单清理完成", nil)
}

// RefreshConfirmations 手动执行一轮确认数更新
func (h *AdminHandler) RefreshConfirmations(c *gin.Context) {
	if err := h.scanner.UpdateConfirmations(c.Request.Context()); err != nil {
		util.Error(c, err.Error())
		return
	}
	util.SuccessWithMsg(c, "确认数更新完成", nil)
}

// ============ 运行时配置 ============

// GetSettings 读取全部运行时配置
func (h *AdminHandler) GetSettings(c *gin.Context) {
	var settings []model.Setting
	if err := model.GetDB().Order("`key` ASC").Find(&settings).Error; err != nil {
		util.Error(c, "查询配置失败")
		return
	}

	util.Success(c, gin.H{
		"settings": settings,
		"effective": gin.H{
			"network_mode":           h.settings.NetworkMode(),
			"required_confirmations": h.settings.RequiredConfirmations(),
			"scan_interval_seconds":  int(h.settings.ScanInterval().Seconds()),
			"lock_ttl_seconds":       int(h.settings.LockTTL().Seconds()),
			"order_expire_minutes":   h.settings.OrderExpireMinutes(),
			"scan_window_seconds":    int(h.settings.ScanWindow().Seconds()),
			"scan_limit":             h.settings.ScanLimit(),
		},
	})
}

// UpdateSetting 更新运行时配置
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Key         string `json:"key" binding:"required"`
		Value       string `json:"value" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, "参数错误")
		return
	}

	key := strings.TrimSpace(req.Key)
	if !strings.HasPrefix(key, "payment_") {
		util.Error(c, "不支持的配置键")
		return
	}

	if err := h.settings.UpdateSetting(key, strings.TrimSpace(req.Value), req.Description); err != nil {
		util.Error(c, "保存配置失败")
		return
	}
	util.SuccessWithMsg(c, "保存成功", nil)
}

// ============ 概览统计 ============

// Dashboard 订单概览统计
func (h *AdminHandler) Dashboard(c *gin.Context) {
	db := model.GetDB()

	var totalOrders, pendingOrders, completedOrders int64
	db.Model(&model.Order{}).Count(&totalOrders)
	db.Model(&model.Order{}).Where("status = ?", model.OrderStatusPending).Count(&pendingOrders)
	db.Model(&model.Order{}).Where("status = ?", model.OrderStatusCompleted).Count(&completedOrders)

	var activeWallets int64
	db.Model(&model.Wallet{}).Where("is_active = ?", true).Count(&activeWallets)

	type sumRow struct {
		Total string
	}
	var row sumRow
	db.Model(&model.Order{}).
		Select("COALESCE(SUM(actual_amount), 0) as total").
		Where("status = ?", model.OrderStatusCompleted).
		Scan(&row)

	util.Success(c, gin.H{
		"total_orders":     totalOrders,
		"pending_orders":   pendingOrders,
		"completed_orders": completedOrders,
		"active_wallets":   activeWallets,
		"completed_amount": row.Total,
		"network_mode":     h.settings.NetworkMode(),
	})
}
