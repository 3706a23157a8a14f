// Package token 生成用作 bearer 凭证的不可猜测标识符。
//
// PublicID 与 InboxID 是"持有即授权"的能力令牌，必须使用
// 密码学安全的随机源生成；可预测的令牌会直接破坏匿名保证。
package token

import (
	"crypto/rand"
	"fmt"
)

const (
	// Length 令牌字符数。base62 下 32 字符约携带 190 位熵，
	// 远高于凭证要求的 128 位下限。
	Length = 32

	alphabet = "abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// New 生成一个新的能力令牌。
//
// 随机源失败属于不可恢复的运行环境错误，直接 panic。
func New() string {
	tok, err := generate(Length)
	if err != nil {
		panic(fmt.Sprintf("token: secure random source unavailable: %v", err))
	}
	return tok
}

func generate(length int) (string, error) {
	// 拒绝采样：只接受 [0, 248) 的字节，248 是 62 的整数倍，
	// 保证 62 个字符等概率出现，没有取模偏差。
	const limit = byte(248)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
