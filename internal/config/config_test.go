package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"UNKAHI_SERVER_HOST",
		"UNKAHI_SERVER_PORT",
		"UNKAHI_SHARE_BASE_URL",
		"UNKAHI_SHARE_CODE_TTL",
		"UNKAHI_CORS_ALLOWED_ORIGINS",
		"UNKAHI_LOG_LEVEL",
		"UNKAHI_LOG_DEVELOPMENT",
		"UNKAHI_DATABASE_TYPE",
		"UNKAHI_DATABASE_DSN",
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

	t.Run("默认配置", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "https://unkahi.app", cfg.Share.BaseURL)
		assert.Equal(t, 365*24*time.Hour, cfg.Share.CodeTTL)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	})

	t.Run("环境变量覆盖", func(t *testing.T) {
		os.Setenv("UNKAHI_SERVER_HOST", "127.0.0.1")
		os.Setenv("UNKAHI_SERVER_PORT", "9000")
		os.Setenv("UNKAHI_SHARE_BASE_URL", "https://example.com/")
		os.Setenv("UNKAHI_SHARE_CODE_TTL", "720h")
		os.Setenv("UNKAHI_CORS_ALLOWED_ORIGINS", "https://a.com, https://b.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		// 基址末尾的斜杠被去掉
		assert.Equal(t, "https://example.com", cfg.Share.BaseURL)
		assert.Equal(t, 720*time.Hour, cfg.Share.CodeTTL)
		assert.Equal(t, []string{"https://a.com", "https://b.com"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("非法凭证有效期", func(t *testing.T) {
		os.Setenv("UNKAHI_SHARE_CODE_TTL", "not-a-duration")
		defer os.Unsetenv("UNKAHI_SHARE_CODE_TTL")

		_, err := Load()
		assert.Error(t, err)
	})
}
