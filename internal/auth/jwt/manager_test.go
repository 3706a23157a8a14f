package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-32-characters-long!!"

func newTestManager() *Manager {
	return NewManager(testSecret, "whisperflow", 15*time.Minute, 7*24*time.Hour)
}

func TestGenerateTokenPair(t *testing.T) {
	m := newTestManager()

	pair, err := m.GenerateTokenPair("user-1", "admin@example.com", "admin")

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)
}

func TestValidateToken(t *testing.T) {
	t.Run("验证有效令牌", func(t *testing.T) {
		m := newTestManager()
		pair, err := m.GenerateTokenPair("user-1", "admin@example.com", "admin")
		require.NoError(t, err)

		claims, err := m.ValidateToken(pair.AccessToken)

		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "admin@example.com", claims.Email)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, "whisperflow", claims.Issuer)
	})

	t.Run("拒绝篡改的令牌", func(t *testing.T) {
		m := newTestManager()
		pair, err := m.GenerateTokenPair("user-1", "admin@example.com", "admin")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("拒绝其他密钥签发的令牌", func(t *testing.T) {
		m := newTestManager()
		other := NewManager("another-secret-key-32-chars-long!!!!", "whisperflow", time.Minute, time.Hour)

		pair, err := other.GenerateTokenPair("user-1", "admin@example.com", "admin")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("拒绝过期令牌", func(t *testing.T) {
		m := NewManager(testSecret, "whisperflow", -time.Minute, time.Hour)

		pair, err := m.GenerateTokenPair("user-1", "admin@example.com", "admin")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("拒绝空令牌", func(t *testing.T) {
		m := newTestManager()

		_, err := m.ValidateToken("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("刷新成功", func(t *testing.T) {
		m := newTestManager()
		pair, err := m.GenerateTokenPair("user-1", "admin@example.com", "admin")
		require.NoError(t, err)

		newToken, err := m.RefreshAccessToken(pair.RefreshToken)

		require.NoError(t, err)
		claims, err := m.ValidateToken(newToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("无效刷新令牌被拒绝", func(t *testing.T) {
		m := newTestManager()

		_, err := m.RefreshAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
