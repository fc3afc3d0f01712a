package util

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// StableStringify 稳定JSON序列化
// 对象键递归排序，保证与键顺序无关的确定性输出，用于 metadata 参与签名
func StableStringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var builder strings.Builder
		builder.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				builder.WriteString(",")
			}
			builder.WriteString(jsonEncodeRaw(k))
			builder.WriteString(":")
			builder.WriteString(StableStringify(v[k]))
		}
		builder.WriteString("}")
		return builder.String()
	case []interface{}:
		var builder strings.Builder
		builder.WriteString("[")
		for i, item := range v {
			if i > 0 {
				builder.WriteString(",")
			}
			builder.WriteString(StableStringify(item))
		}
		builder.WriteString("]")
		return builder.String()
	default:
		return jsonEncodeRaw(v)
	}
}

// jsonEncodeRaw 标量JSON序列化，不做HTML转义
// & < > 保持原样，与JS侧 JSON.stringify 的输出一致
func jsonEncodeRaw(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// encodeURIComponentReplacer 将 QueryEscape 的输出修正为 RFC3986 风格
// 空格转 %20，保留 ! ' ( ) * 不转义
var encodeURIComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent RFC3986 风格的URL编码
func EncodeURIComponent(s string) string {
	return encodeURIComponentReplacer.Replace(url.QueryEscape(s))
}

// BuildCanonicalQuery 构建签名串
// 按键名字母序排序后拼接为 key1=value1&key2=value2，值做URL编码
func BuildCanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, k := range keys {
		if i > 0 {
			builder.WriteString("&")
		}
		builder.WriteString(k)
		builder.WriteString("=")
		builder.WriteString(EncodeURIComponent(params[k]))
	}
	return builder.String()
}

// HmacSHA256Hex 计算HMAC-SHA256十六进制签名
func HmacSHA256Hex(secret, content string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 验证签名 (十六进制大小写不敏感)
func VerifySignature(params map[string]string, secret, signature string) bool {
	expected := HmacSHA256Hex(secret, BuildCanonicalQuery(params))
	return strings.EqualFold(expected, signature)
}
