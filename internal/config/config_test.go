package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清除测试涉及的环境变量，t.Setenv 会在测试结束时恢复原值
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"TEMPMAIL_SERVER_HOST",
		"TEMPMAIL_SERVER_PORT",
		"TEMPMAIL_SERVER_TRUSTED_PROXIES",
		"TEMPMAIL_MAILBOX_DOMAIN",
		"TEMPMAIL_MAILBOX_RETENTION_HOURS",
		"TEMPMAIL_MAILBOX_MAX_PER_USER",
		"TEMPMAIL_MAILBOX_ALLOW_ANONYMOUS",
		"TEMPMAIL_AUTH_ALLOW_REGISTRATION",
		"TEMPMAIL_AUTH_SESSION_TTL_HOURS",
		"TEMPMAIL_AUTH_ADMIN_USERNAME",
		"TEMPMAIL_AUTH_ADMIN_PASSWORD",
		"TEMPMAIL_RATELIMIT_PER_MINUTE",
		"TEMPMAIL_RATELIMIT_BACKEND",
		"TEMPMAIL_SWEEPER_INTERVAL",
		"TEMPMAIL_SMTP_BIND_ADDR",
		"TEMPMAIL_SMTP_DOMAIN",
		"TEMPMAIL_CORS_ALLOWED_ORIGINS",
		"TEMPMAIL_LOG_LEVEL",
		"TEMPMAIL_DATABASE_TYPE",
		"RETENTION_HOURS",
		"EMAIL_DOMAIN",
		"MAX_MAILBOXES_PER_USER",
		"RATE_LIMIT_PER_MINUTE",
		"ALLOW_REGISTRATION",
		"SESSION_EXPIRY_HOURS",
		"ADMIN_USERNAME",
		"ADMIN_PASSWORD",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Empty(t, cfg.Server.TrustedProxies)
		assert.Equal(t, "temp.mail", cfg.Mailbox.Domain)
		assert.Equal(t, 24, cfg.Mailbox.RetentionHours)
		assert.Equal(t, 24*time.Hour, cfg.Mailbox.Retention())
		assert.Equal(t, 5, cfg.Mailbox.MaxPerUser)
		assert.False(t, cfg.Mailbox.AllowAnonymous)
		assert.True(t, cfg.Auth.AllowRegistration)
		assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL())
		assert.Empty(t, cfg.Auth.AdminUsername)
		assert.Equal(t, 60, cfg.RateLimit.PerMinute)
		assert.Equal(t, "memory", cfg.RateLimit.Backend)
		assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
		assert.Equal(t, ":2525", cfg.SMTP.BindAddr)
		assert.Equal(t, "temp.mail", cfg.SMTP.Domain)
		assert.Equal(t, int64(10*1024*1024), cfg.SMTP.MaxMessageBytes)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Database.Type)
		assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_SERVER_PORT", "9090")
		t.Setenv("TEMPMAIL_MAILBOX_DOMAIN", "Burn.Example")
		t.Setenv("TEMPMAIL_MAILBOX_RETENTION_HOURS", "48")
		t.Setenv("TEMPMAIL_MAILBOX_ALLOW_ANONYMOUS", "true")
		t.Setenv("TEMPMAIL_RATELIMIT_BACKEND", "redis")
		t.Setenv("TEMPMAIL_SWEEPER_INTERVAL", "1m")
		t.Setenv("TEMPMAIL_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("TEMPMAIL_SERVER_TRUSTED_PROXIES", "10.0.0.1, 172.16.0.0/12")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "burn.example", cfg.Mailbox.Domain)
		assert.Equal(t, "burn.example", cfg.SMTP.Domain)
		assert.Equal(t, 48*time.Hour, cfg.Mailbox.Retention())
		assert.True(t, cfg.Mailbox.AllowAnonymous)
		assert.Equal(t, "redis", cfg.RateLimit.Backend)
		assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
	})

	t.Run("支持旧版环境变量名", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RETENTION_HOURS", "12")
		t.Setenv("EMAIL_DOMAIN", "legacy.mail")
		t.Setenv("MAX_MAILBOXES_PER_USER", "2")
		t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
		t.Setenv("SESSION_EXPIRY_HOURS", "6")
		t.Setenv("ADMIN_USERNAME", "root")
		t.Setenv("ADMIN_PASSWORD", "secret123")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 12, cfg.Mailbox.RetentionHours)
		assert.Equal(t, "legacy.mail", cfg.Mailbox.Domain)
		assert.Equal(t, 2, cfg.Mailbox.MaxPerUser)
		assert.Equal(t, 30, cfg.RateLimit.PerMinute)
		assert.Equal(t, 6*time.Hour, cfg.Auth.SessionTTL())
		assert.Equal(t, "root", cfg.Auth.AdminUsername)
		assert.Equal(t, "secret123", cfg.Auth.AdminPassword)
	})

	t.Run("新变量名优先于旧变量名", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_MAILBOX_RETENTION_HOURS", "36")
		t.Setenv("RETENTION_HOURS", "12")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 36, cfg.Mailbox.RetentionHours)
	})

	t.Run("只有false才关闭注册", func(t *testing.T) {
		cases := map[string]bool{
			"false": false,
			"FALSE": false,
			"true":  true,
			"0":     true,
			"no":    true,
		}
		for value, want := range cases {
			clearEnv(t)
			t.Setenv("ALLOW_REGISTRATION", value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, cfg.Auth.AllowRegistration, "ALLOW_REGISTRATION=%s", value)
		}
	})

	t.Run("非法数值返回错误", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_MAILBOX_RETENTION_HOURS", "0")
		_, err := Load()
		assert.Error(t, err)

		clearEnv(t)
		t.Setenv("RATE_LIMIT_PER_MINUTE", "abc")
		_, err = Load()
		assert.Error(t, err)
	})

	t.Run("非法限流后端返回错误", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_RATELIMIT_BACKEND", "memcached")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法可信代理返回错误", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_SERVER_TRUSTED_PROXIES", "proxy.internal")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法清理间隔返回错误", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_SWEEPER_INTERVAL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a, ,b "))
	assert.Empty(t, parseList(""))
}
