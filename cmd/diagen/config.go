package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all diagen server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`

	AIBaseURL string `json:"ai_base_url"`
	AIAPIKey  string `json:"ai_api_key"`
	AIModel   string `json:"ai_model"`

	RendererURL string `json:"renderer_url"`

	RetentionCron string `json:"retention_cron"`
	RetentionDays int    `json:"retention_days"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:    ":4200",
		DBPath:        filepath.Join(diagenDir(), "diagen.db"),
		LogLevel:      "info",
		AIBaseURL:     "https://api.openai.com",
		RendererURL:   "http://localhost:4201",
		RetentionCron: "0 3 * * *",
		RetentionDays: 30,
	}
}

func diagenDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".diagen"
	}
	return filepath.Join(home, ".diagen")
}

func settingsPath() string {
	return filepath.Join(diagenDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("DIAGEN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DIAGEN_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DIAGEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DIAGEN_AI_BASE_URL"); v != "" {
		cfg.AIBaseURL = v
	}
	if v := os.Getenv("DIAGEN_AI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("DIAGEN_AI_MODEL"); v != "" {
		cfg.AIModel = v
	}
	if v := os.Getenv("DIAGEN_RENDERER_URL"); v != "" {
		cfg.RendererURL = v
	}
	if v := os.Getenv("DIAGEN_RETENTION_CRON"); v != "" {
		cfg.RetentionCron = v
	}
	if v := os.Getenv("DIAGEN_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetentionDays = n
		}
	}

	return cfg
}
