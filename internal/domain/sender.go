package domain

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// SenderSignature 是发送者的轻量环境指纹。
// 客户端可以直接上报；缺省时由服务端根据请求头推导。
// 它只用于给收件人提供模糊线索，不具备任何身份鉴别能力。
type SenderSignature struct {
	IP          string `json:"-"`
	Browser     string `json:"browser"`
	Device      string `json:"device"`
	Fingerprint string `json:"fingerprint"`
	Country     string `json:"country"`
	ScreenW     int    `json:"screenW"`
	ScreenH     int    `json:"screenH"`
}

var (
	mobilePattern = regexp.MustCompile(`(?i)Mobile|Android|iPhone`)
	tabletPattern = regexp.MustCompile(`(?i)Tablet|iPad`)
)

// 浏览器匹配顺序有意固定：Chrome 的 UA 同时包含 Safari，
// 所以 Chrome 必须先于 Safari 判断。
var browserNames = []string{"Firefox", "Chrome", "Safari", "Edge"}

// DetectBrowser 从 User-Agent 推断浏览器名称。
func DetectBrowser(userAgent string) string {
	for _, name := range browserNames {
		if strings.Contains(userAgent, name) {
			return name
		}
	}
	return "Unknown"
}

// DetectDevice 从 User-Agent 推断设备类型。
func DetectDevice(userAgent string) string {
	if mobilePattern.MatchString(userAgent) {
		return "Mobile"
	}
	if tabletPattern.MatchString(userAgent) {
		return "Tablet"
	}
	return "Desktop"
}

// Fingerprint 由 User-Agent 和屏幕尺寸生成 16 字符的模糊指纹。
func Fingerprint(userAgent string, screenW, screenH int) string {
	raw := fmt.Sprintf("%s%d%d", userAgent, screenW, screenH)
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))
	if len(encoded) > 16 {
		return encoded[:16]
	}
	return encoded
}

// DeriveSignature 在客户端没有上报指纹时，根据 User-Agent 推导一份。
func DeriveSignature(userAgent string) SenderSignature {
	return SenderSignature{
		Browser:     DetectBrowser(userAgent),
		Device:      DetectDevice(userAgent),
		Fingerprint: Fingerprint(userAgent, 0, 0),
		Country:     "unknown",
	}
}
