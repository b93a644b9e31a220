package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnmail/backend/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("非法日志级别返回错误", func(t *testing.T) {
		_, err := New(config.LogConfig{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("写入日志文件", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logs", "burnmail.log")
		log, err := New(config.LogConfig{Level: "info", File: file, MaxSize: 1})
		require.NoError(t, err)

		log.Info("邮箱已创建")
		_ = log.Sync()

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "邮箱已创建")
	})

	t.Run("级别过滤", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "warn"})
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(-1))
		assert.True(t, log.Core().Enabled(1))
	})
}

func TestNewDevelopmentLogger(t *testing.T) {
	assert.NotNil(t, NewDevelopmentLogger())
}
