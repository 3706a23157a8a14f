package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNicknameEmpty 昵称为空（或仅包含空白字符）
	ErrNicknameEmpty = errors.New("nickname is empty")
	// ErrNicknameTooLong 昵称超出长度限制
	ErrNicknameTooLong = errors.New("nickname too long")
	// ErrContentEmpty 留言内容为空（或仅包含空白字符）
	ErrContentEmpty = errors.New("content is empty")
	// ErrContentTooLong 留言内容超出长度限制
	ErrContentTooLong = errors.New("content too long")
)

const (
	// MaxNicknameLength 昵称最大字符数
	MaxNicknameLength = 100
	// MaxContentLength 单条留言最大字符数
	MaxContentLength = 5000
)

// ValidateNickname 校验并规范化昵称，使用默认长度限制。
func ValidateNickname(nickname string) (string, error) {
	return ValidateNicknameWithLimit(nickname, MaxNicknameLength)
}

// ValidateNicknameWithLimit 按给定的最大字符数校验昵称，
// 返回去除首尾空白后的值。maxLen 不为正时使用默认限制。
func ValidateNicknameWithLimit(nickname string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = MaxNicknameLength
	}
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" {
		return "", ErrNicknameEmpty
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", ErrNicknameTooLong
	}
	return trimmed, nil
}

// ValidateContent 校验并规范化留言内容，使用默认长度限制。
func ValidateContent(content string) (string, error) {
	return ValidateContentWithLimit(content, MaxContentLength)
}

// ValidateContentWithLimit 按给定的最大字符数校验留言内容，
// 返回去除首尾空白后的值。maxLen 不为正时使用默认限制。
func ValidateContentWithLimit(content string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = MaxContentLength
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrContentEmpty
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", ErrContentTooLong
	}
	return trimmed, nil
}
