package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 统一错误码定义
const (
	CodeSuccess      = 1    // 成功
	CodeError        = -1   // 通用错误
	CodeUnauthorized = -401 // 未授权
	CodeNotFound     = -404 // 资源不存在
	CodeConflict     = -409 // 业务单号冲突
	CodeValidation   = -422 // 参数验证失败
	CodeServerError  = -500 // 服务器内部错误

	CodeNoWallets           = -610 // 没有可用收款钱包
	CodeAllocationExhausted = -611 // 金额组合耗尽
	CodeInvalidStatus       = -612 // 订单状态不允许该操作
	CodeConcurrentModified  = -613 // 订单状态已被并发变更

	CodeSignatureRequired      = -620 // 缺少签名
	CodeSignatureParamsMissing = -621 // 缺少签名必填参数
	CodeSignatureInvalid       = -622 // 签名无效
	CodeSignatureExpired       = -623 // 签名时间戳过期
	CodeSignatureReplayed      = -624 // 签名重放
	CodeMisconfiguredSigning   = -625 // 签名配置缺失
)

// Response 统一响应结构
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  "success",
		Data: data,
	})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  msg,
		Data: data,
	})
}

// Error 错误响应
func Error(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: CodeError,
		Msg:  msg,
	})
}

// ErrorWithCode 带错误码的错误响应
func ErrorWithCode(c *gin.Context, httpStatus, code int, msg string) {
	c.JSON(httpStatus, Response{
		Code: code,
		Msg:  msg,
	})
}

// AbortWithCode 中间件拒绝请求
func AbortWithCode(c *gin.Context, httpStatus, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code: code,
		Msg:  msg,
	})
}
