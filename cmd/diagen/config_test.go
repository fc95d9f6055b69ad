package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, ":4200", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0 3 * * *", cfg.RetentionCron)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DIAGEN_LISTEN_ADDR", ":9999")
	t.Setenv("DIAGEN_AI_MODEL", "test-model")
	t.Setenv("DIAGEN_RETENTION_DAYS", "7")
	t.Setenv("DIAGEN_LOG_LEVEL", "debug")

	cfg := loadConfig()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "test-model", cfg.AIModel)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, "debug", cfg.LogLevel)
}
