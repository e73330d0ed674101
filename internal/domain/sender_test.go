package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaSafariIPad    = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/604.1"
	uaAndroidChrome = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
)

func TestDetectBrowser(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"Chrome on Mac", uaChromeMac, "Chrome"},
		{"Firefox on Linux", uaFirefoxLinux, "Firefox"},
		{"Safari on iPhone", uaSafariIPhone, "Safari"},
		{"Chrome wins over bundled Safari token", uaAndroidChrome, "Chrome"},
		{"Plain Edge", "Edge/18.0", "Edge"},
		{"Unknown agent", "curl/8.4.0", "Unknown"},
		{"Empty agent", "", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectBrowser(tt.userAgent))
		})
	}
}

func TestDetectDevice(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"iPhone is mobile", uaSafariIPhone, "Mobile"},
		{"Android is mobile", uaAndroidChrome, "Mobile"},
		{"iPad is tablet", uaSafariIPad, "Tablet"},
		{"Desktop fallback", uaChromeMac, "Desktop"},
		{"Empty agent is desktop", "", "Desktop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectDevice(tt.userAgent))
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint(uaChromeMac, 1920, 1080)
	assert.Len(t, fp, 16)

	// 相同输入必须稳定
	assert.Equal(t, fp, Fingerprint(uaChromeMac, 1920, 1080))

	// 不同 User-Agent 产生不同指纹
	assert.NotEqual(t, fp, Fingerprint(uaFirefoxLinux, 1920, 1080))

	// 短输入不截断也不报错
	short := Fingerprint("x", 0, 0)
	assert.NotEmpty(t, short)
	assert.LessOrEqual(t, len(short), 16)
}

func TestDeriveSignature(t *testing.T) {
	sig := DeriveSignature(uaAndroidChrome)
	assert.Equal(t, "Chrome", sig.Browser)
	assert.Equal(t, "Mobile", sig.Device)
	assert.Len(t, sig.Fingerprint, 16)
	assert.Equal(t, "unknown", sig.Country)
}
