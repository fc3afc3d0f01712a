package util

import (
	"strings"
	"testing"
)

func TestStableStringifyKeyOrder(t *testing.T) {
	a := map[string]interface{}{
		"b": "2",
		"a": "1",
		"c": map[string]interface{}{"y": float64(2), "x": float64(1)},
	}
	b := map[string]interface{}{
		"c": map[string]interface{}{"x": float64(1), "y": float64(2)},
		"a": "1",
		"b": "2",
	}

	got := StableStringify(a)
	want := `{"a":"1","b":"2","c":{"x":1,"y":2}}`
	if got != want {
		t.Errorf("StableStringify = %s, want %s", got, want)
	}
	if StableStringify(b) != got {
		t.Errorf("序列化结果应与键顺序无关: %s vs %s", StableStringify(b), got)
	}
}

func TestStableStringifyValues(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"nil", nil, ""},
		{"string", "hello", `"hello"`},
		{"number", float64(3), "3"},
		{"decimal number", float64(1.5), "1.5"},
		{"bool", true, "true"},
		{"empty object", map[string]interface{}{}, "{}"},
		{"empty array", []interface{}{}, "[]"},
		{"array", []interface{}{"a", float64(1)}, `["a",1]`},
		{"nested nil", map[string]interface{}{"k": nil}, `{"k":}`},
	}
	for _, tt := range tests {
		if got := StableStringify(tt.input); got != tt.want {
			t.Errorf("%s: StableStringify = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStableStringifyNoHTMLEscape(t *testing.T) {
	// & < > 不做HTML转义，与JS侧 JSON.stringify 输出一致
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"html chars", map[string]interface{}{"note": "a&b<c>"}, `{"note":"a&b<c>"}`},
		{"url value", map[string]interface{}{"returnUrl": "https://shop.example/cb?a=1&b=2"}, `{"returnUrl":"https://shop.example/cb?a=1&b=2"}`},
		{"html chars in key", map[string]interface{}{"a&b": "v"}, `{"a&b":"v"}`},
		{"scalar string", "x<y>&z", `"x<y>&z"`},
		{"array", []interface{}{"a&b"}, `["a&b"]`},
	}
	for _, tt := range tests {
		if got := StableStringify(tt.input); got != tt.want {
			t.Errorf("%s: StableStringify = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc123", "abc123"},
		{"a b", "a%20b"},
		{"a&b=c", "a%26b%3Dc"},
		{"!'()*", "!'()*"},
		{"a/b", "a%2Fb"},
		{"中文", "%E4%B8%AD%E6%96%87"},
		{`{"k":"v"}`, "%7B%22k%22%3A%22v%22%7D"},
	}
	for _, tt := range tests {
		if got := EncodeURIComponent(tt.input); got != tt.want {
			t.Errorf("EncodeURIComponent(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildCanonicalQuery(t *testing.T) {
	params := map[string]string{
		"ts":         "1700000000",
		"bizOrderNo": "ORD-001",
		"baseAmount": "10.50",
		"nonce":      "abcdef123456",
	}
	got := BuildCanonicalQuery(params)
	want := "baseAmount=10.50&bizOrderNo=ORD-001&nonce=abcdef123456&ts=1700000000"
	if got != want {
		t.Errorf("BuildCanonicalQuery = %s, want %s", got, want)
	}
}

func TestBuildCanonicalQueryEscapesValues(t *testing.T) {
	got := BuildCanonicalQuery(map[string]string{"metadata": `{"k":"v"}`})
	want := "metadata=%7B%22k%22%3A%22v%22%7D"
	if got != want {
		t.Errorf("BuildCanonicalQuery = %s, want %s", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	params := map[string]string{
		"bizOrderNo": "ORD-001",
		"baseAmount": "10.50",
		"ts":         "1700000000",
		"nonce":      "abcdef123456",
	}
	secret := "test-secret"

	sig := HmacSHA256Hex(secret, BuildCanonicalQuery(params))
	if len(sig) != 64 {
		t.Fatalf("签名应为64位十六进制, got %d", len(sig))
	}

	if !VerifySignature(params, secret, sig) {
		t.Error("正确签名应通过校验")
	}
	// 十六进制大小写不敏感
	if !VerifySignature(params, secret, strings.ToUpper(sig)) {
		t.Error("大写签名应通过校验")
	}
	if VerifySignature(params, "wrong-secret", sig) {
		t.Error("错误密钥不应通过校验")
	}
	if VerifySignature(params, secret, sig[:63]+"0") && sig[63] != '0' {
		t.Error("篡改签名不应通过校验")
	}

	params["baseAmount"] = "10.51"
	if VerifySignature(params, secret, sig) {
		t.Error("参数变化后旧签名不应通过校验")
	}
}

func TestHmacSHA256HexDeterministic(t *testing.T) {
	a := HmacSHA256Hex("secret", "content")
	b := HmacSHA256Hex("secret", "content")
	if a != b {
		t.Error("相同输入应产生相同签名")
	}
	if a == HmacSHA256Hex("secret", "content2") {
		t.Error("不同内容不应产生相同签名")
	}
}
