package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"WHISPERFLOW_JWT_SECRET",
		"WHISPERFLOW_SERVER_HOST",
		"WHISPERFLOW_SERVER_PORT",
		"WHISPERFLOW_LINK_MAX_NICKNAME_LENGTH",
		"WHISPERFLOW_LINK_MAX_CONTENT_LENGTH",
		"WHISPERFLOW_LINK_CACHE_TTL",
		"WHISPERFLOW_SMTP_ENABLED",
		"WHISPERFLOW_SMTP_BIND_ADDR",
		"WHISPERFLOW_SMTP_DOMAIN",
		"WHISPERFLOW_CORS_ALLOWED_ORIGINS",
		"WHISPERFLOW_LOG_LEVEL",
		"WHISPERFLOW_LOG_DEVELOPMENT",
		"WHISPERFLOW_DATABASE_TYPE",
		"WHISPERFLOW_REDIS_ENABLED",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnvs := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnvs()

		// 设置必需的JWT密钥
		os.Setenv("WHISPERFLOW_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 100, cfg.Link.MaxNicknameLength)
		assert.Equal(t, 5000, cfg.Link.MaxContentLength)
		assert.Equal(t, 5*time.Minute, cfg.Link.CacheTTL)
		assert.False(t, cfg.SMTP.Enabled)
		assert.Equal(t, ":25", cfg.SMTP.BindAddr)
		assert.Equal(t, "whisper.flow", cfg.SMTP.Domain)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "", cfg.Database.Type)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Address)
		assert.Equal(t, "whisperflow", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiry)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnvs()

		os.Setenv("WHISPERFLOW_JWT_SECRET", "custom-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("WHISPERFLOW_SERVER_HOST", "127.0.0.1")
		os.Setenv("WHISPERFLOW_SERVER_PORT", "9090")
		os.Setenv("WHISPERFLOW_LINK_MAX_CONTENT_LENGTH", "280")
		os.Setenv("WHISPERFLOW_LINK_CACHE_TTL", "30s")
		os.Setenv("WHISPERFLOW_SMTP_ENABLED", "true")
		os.Setenv("WHISPERFLOW_SMTP_BIND_ADDR", ":2525")
		os.Setenv("WHISPERFLOW_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
		os.Setenv("WHISPERFLOW_LOG_LEVEL", "debug")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 280, cfg.Link.MaxContentLength)
		assert.Equal(t, 30*time.Second, cfg.Link.CacheTTL)
		assert.True(t, cfg.SMTP.Enabled)
		assert.Equal(t, ":2525", cfg.SMTP.BindAddr)
		assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("缺少JWT密钥时报错", func(t *testing.T) {
		clearEnvs()

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret")
	})

	t.Run("JWT密钥过短时报错", func(t *testing.T) {
		clearEnvs()
		os.Setenv("WHISPERFLOW_JWT_SECRET", "too-short")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "32 characters")
	})

	t.Run("非法缓存时长时报错", func(t *testing.T) {
		clearEnvs()
		os.Setenv("WHISPERFLOW_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("WHISPERFLOW_LINK_CACHE_TTL", "not-a-duration")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestParseList(t *testing.T) {
	t.Run("解析逗号分隔列表", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, parseList("a, b ,c"))
	})

	t.Run("忽略空白项", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, parseList("a,, , "))
	})

	t.Run("空字符串返回空列表", func(t *testing.T) {
		assert.Empty(t, parseList(""))
	})
}
