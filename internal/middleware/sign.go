package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/service"
	"github.com/Olleigeigei/ObeliskUsdt/internal/util"
	"github.com/gin-gonic/gin"
)

// 签名校验时间戳边界: 大于该值按毫秒解析，否则按秒
const tsMillisThreshold = 1e12

// signBody 创建订单请求中参与签名的字段
type signBody struct {
	BizOrderNo string
	BaseAmount string
	Ts         string
	Nonce      string
	Metadata   interface{}
	Signature  string
}

// parseSignBody 从JSON请求体提取签名字段，数字和字符串都接受
func parseSignBody(raw []byte) signBody {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return signBody{}
	}

	return signBody{
		BizOrderNo: stringField(body["bizOrderNo"]),
		BaseAmount: stringField(body["baseAmount"]),
		Ts:         stringField(body["ts"]),
		Nonce:      stringField(body["nonce"]),
		Metadata:   body["metadata"],
		Signature:  stringField(body["signature"]),
	}
}

// stringField 把JSON标量转为去除首尾空白的字符串
func stringField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		// JSON数字，整数不带小数点
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// buildSignParams 组装参与签名的参数，空值不参与
// metadata为非空对象时以稳定序列化结果参与
func buildSignParams(body signBody) map[string]string {
	params := make(map[string]string)
	if body.BizOrderNo != "" {
		params["bizOrderNo"] = body.BizOrderNo
	}
	if body.BaseAmount != "" {
		params["baseAmount"] = body.BaseAmount
	}
	if body.Ts != "" {
		params["ts"] = body.Ts
	}
	if body.Nonce != "" {
		params["nonce"] = body.Nonce
	}
	// 仅对象/数组类型的metadata参与签名，标量值不参与
	switch body.Metadata.(type) {
	case map[string]interface{}, []interface{}:
		raw := util.StableStringify(body.Metadata)
		if raw != "" && raw != "{}" && raw != "[]" {
			params["metadata"] = raw
		}
	}
	return params
}

// parseTsToMs 解析签名时间戳为毫秒，支持秒和毫秒两种精度
func parseTsToMs(raw string) (int64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	if v > tsMillisThreshold {
		return int64(v), true
	}
	return int64(v * 1000), true
}

// signatureFromRequest 按优先级提取签名: 请求头 > 请求体 > 查询参数
func signatureFromRequest(c *gin.Context, body signBody) string {
	if sig := strings.TrimSpace(c.GetHeader("X-Obl-Signature")); sig != "" {
		return sig
	}
	if sig := strings.TrimSpace(c.GetHeader("X-Signature")); sig != "" {
		return sig
	}
	if body.Signature != "" {
		return body.Signature
	}
	return strings.TrimSpace(c.Query("signature"))
}

// SignGuard 创建订单接口的HMAC签名校验中间件
// 校验通过后请求体原样恢复供后续handler读取
func SignGuard(settings *service.SettingsService, locker service.Locker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if settings.SignMode() == "off" {
			c.Next()
			return
		}

		secret := settings.SignSecret()
		if secret == "" {
			util.AbortWithCode(c, http.StatusInternalServerError, util.CodeMisconfiguredSigning, "签名配置缺失")
			return
		}

		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			util.AbortWithCode(c, http.StatusBadRequest, util.CodeSignatureParamsMissing, "读取请求体失败")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		body := parseSignBody(raw)

		signature := signatureFromRequest(c, body)
		if signature == "" {
			util.AbortWithCode(c, http.StatusUnauthorized, util.CodeSignatureRequired, "缺少签名")
			return
		}

		if body.BizOrderNo == "" || body.BaseAmount == "" || body.Ts == "" || body.Nonce == "" {
			util.AbortWithCode(c, http.StatusBadRequest, util.CodeSignatureParamsMissing, "缺少签名必填参数")
			return
		}
		if util.BizOrderNoLen(body.BizOrderNo) > 64 {
			util.AbortWithCode(c, http.StatusBadRequest, util.CodeSignatureParamsMissing, "业务单号长度不能超过64")
			return
		}
		if !util.IsValidMoneyString(body.BaseAmount) {
			util.AbortWithCode(c, http.StatusBadRequest, util.CodeSignatureParamsMissing, "支付金额格式无效（仅支持最多 2 位小数）")
			return
		}

		tsMs, ok := parseTsToMs(body.Ts)
		if !ok {
			util.AbortWithCode(c, http.StatusBadRequest, util.CodeSignatureParamsMissing, "签名时间戳无效")
			return
		}
		maxSkew := settings.SignMaxSkew()
		nowMs := time.Now().UnixMilli()
		diff := nowMs - tsMs
		if diff < 0 {
			diff = -diff
		}
		if diff > maxSkew.Milliseconds() {
			util.AbortWithCode(c, http.StatusUnauthorized, util.CodeSignatureExpired, "签名时间戳已过期")
			return
		}

		if len(body.Nonce) < 8 || len(body.Nonce) > 128 {
			util.AbortWithCode(c, http.StatusBadRequest, util.CodeSignatureParamsMissing, "签名随机串无效")
			return
		}

		// nonce一次性使用，同一nonce二次出现视为重放
		acquired, err := locker.Acquire(c.Request.Context(), service.NonceLockKey(body.Nonce), "1", settings.NonceTTL())
		if err != nil {
			util.AbortWithCode(c, http.StatusInternalServerError, util.CodeServerError, fmt.Sprintf("防重放校验失败: %v", err))
			return
		}
		if !acquired {
			util.AbortWithCode(c, http.StatusUnauthorized, util.CodeSignatureReplayed, "签名已使用，请重试")
			return
		}

		canonical := util.BuildCanonicalQuery(buildSignParams(body))
		expected := util.HmacSHA256Hex(secret, canonical)
		if !strings.EqualFold(signature, expected) {
			util.AbortWithCode(c, http.StatusUnauthorized, util.CodeSignatureInvalid, "签名无效")
			return
		}

		c.Next()
	}
}
