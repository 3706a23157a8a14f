package httptransport

import (
	"whisperflow/backend/internal/auth"
	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/moderation"
	"whisperflow/backend/internal/service"
	"whisperflow/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// Link 错误
	storage.ErrLinkNotFound:   "信箱不存在",
	service.ErrTokenExhausted: "令牌生成失败，请稍后重试",
	domain.ErrNicknameEmpty:   "昵称不能为空",
	domain.ErrNicknameTooLong: "昵称过长",

	// Message 错误
	storage.ErrMessageNotFound: "留言不存在",
	domain.ErrContentEmpty:     "留言内容不能为空",
	domain.ErrContentTooLong:   "留言内容过长",

	// 切换协议错误
	moderation.ErrUnknownLink:       "信箱不存在",
	moderation.ErrPendingUsed:       "该切换请求已被处理",
	moderation.ErrPendingSuperseded: "该切换请求已过期",

	// Auth 错误
	auth.ErrInvalidEmail:       "邮箱格式无效",
	auth.ErrEmailExists:        "邮箱已被注册",
	auth.ErrUserNotFound:       "用户不存在",
	auth.ErrInvalidCredentials: "邮箱或密码错误",
	auth.ErrUserInactive:       "账号已被禁用",
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
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidJSON    = "JSON格式错误"
	MsgInternalError  = "服务器内部错误"
)
