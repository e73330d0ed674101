package httptransport

import (
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// Identity 错误
	domain.ErrInvalidHandle:     "Instagram 用户名格式无效",
	service.ErrIdentityNotFound: "该用户名尚未被认领",

	// Message 错误
	service.ErrEmptyMessage:   "消息内容不能为空",
	service.ErrMessageTooLong: "消息内容超过长度限制",

	// Inbox 错误
	service.ErrAccessDenied:     "访问凭证无效或已过期",
	service.ErrNotMessageOwner:  "您无权操作这条消息",
	service.ErrMessageNotFound:  "消息不存在",
	service.ErrNoRememberedCode: "没有记住的访问凭证",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"
	MsgClientIDRequired = "缺少 X-Client-ID 请求头"

	// 认证相关
	MsgAuthRequired = "需要有效的访问凭证"

	// 身份相关
	MsgIdentityClaimFailed  = "认领失败"
	MsgIdentityNotFound     = "该用户名尚未被认领"
	MsgIdentityLookupFailed = "查询用户名失败"
	MsgCodeIssueFailed      = "签发访问凭证失败"

	// 消息相关
	MsgMessageSendFailed     = "发送消息失败"
	MsgMessageNotFound       = "消息不存在"
	MsgMessageMarkReadFailed = "标记已读失败"
	MsgMessageDeleteFailed   = "删除消息失败"

	// 收件箱相关
	MsgInboxOpenFailed       = "打开收件箱失败"
	MsgRememberedSaveFailed  = "记住访问凭证失败"
	MsgRememberedClearFailed = "清除记住的凭证失败"

	// 统计相关
	MsgStatisticsGetFailed = "获取统计数据失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
