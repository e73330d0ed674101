package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidHandle 表示输入无法解析为合法的 Instagram handle。
var ErrInvalidHandle = errors.New("invalid handle")

var (
	instagramURLPattern = regexp.MustCompile(`instagram\.com/([a-zA-Z0-9._]+)`)
	instagramShortURL   = regexp.MustCompile(`instagr\.am/([a-zA-Z0-9._]+)`)
	bareHandlePattern   = regexp.MustCompile(`^@?([a-zA-Z0-9._]+)$`)
	handlePattern       = regexp.MustCompile(`^[a-zA-Z0-9._]{1,30}$`)
)

// NormalizeHandle 把用户输入（主页链接或裸 handle）规范化为 handle，保留原始大小写。
// 支持的输入形式：
//   - https://instagram.com/somebody 或 instagram.com/somebody/?hl=en
//   - https://instagr.am/somebody
//   - @somebody 或 somebody
//
// 解析失败或结果不符合 Instagram 用户名规则时返回 ErrInvalidHandle。
func NormalizeHandle(raw string) (string, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return "", ErrInvalidHandle
	}

	var handle string
	if m := instagramURLPattern.FindStringSubmatch(input); m != nil {
		handle = m[1]
	} else if m := instagramShortURL.FindStringSubmatch(input); m != nil {
		handle = m[1]
	} else if m := bareHandlePattern.FindStringSubmatch(input); m != nil {
		handle = m[1]
	} else {
		return "", ErrInvalidHandle
	}

	if !handlePattern.MatchString(handle) {
		return "", ErrInvalidHandle
	}
	return handle, nil
}

// ProfileURL 返回 handle 对应的 Instagram 主页地址。
func ProfileURL(handle string) string {
	return fmt.Sprintf("https://instagram.com/%s", handle)
}

// ShareURL 返回给他人发消息用的分享链接。
func ShareURL(base, handle string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), handle)
}
