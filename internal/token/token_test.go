package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Length(t *testing.T) {
	tok := New()
	assert.Len(t, tok, Length)
}

func TestNew_Alphabet(t *testing.T) {
	tok := New()
	for _, r := range tok {
		assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
	}
}

func TestNew_FullAlphabetCoverage(t *testing.T) {
	// 1000 个令牌共 32000 次采样，每个字符缺席的概率可以忽略。
	// 采样上界算错（例如截掉字母表尾部）时这里会失败。
	seen := make(map[rune]bool, len(alphabet))
	for i := 0; i < 1000; i++ {
		for _, r := range New() {
			seen[r] = true
		}
	}
	for _, r := range alphabet {
		assert.True(t, seen[r], "character %q never generated", r)
	}
}

func TestNew_Uniqueness(t *testing.T) {
	// 生成大量令牌验证不重复
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tok := New()
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated: %s", tok)
		seen[tok] = struct{}{}
	}
}
