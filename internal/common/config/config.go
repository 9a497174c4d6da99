package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port           string   `mapstructure:"port" validate:"required,numeric"`
	Environment    string   `mapstructure:"env" validate:"required"`
	ReadTimeout    int      `mapstructure:"read_timeout" validate:"gte=1"`
	WriteTimeout   int      `mapstructure:"write_timeout" validate:"gte=1"`
	DBPath         string   `mapstructure:"drawing_db_path" validate:"required"`
	ExportDir      string   `mapstructure:"export_dir" validate:"required"`
	LogLevel       string   `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat      string   `mapstructure:"log_format" validate:"oneof=json console"`
	MaxBodyBytes   int      `mapstructure:"max_body_bytes" validate:"gte=1024"`
	HistoryDepth   int      `mapstructure:"history_depth" validate:"gte=1"`
	RejectWarnings bool     `mapstructure:"reject_warnings"`
	CORSOrigins    []string `mapstructure:"cors_origins" validate:"dive,required"`
}

var defaults = map[string]any{
	"port":            "3000",
	"env":             "development",
	"read_timeout":    10,
	"write_timeout":   10,
	"drawing_db_path": "data/db/drawings.db",
	"export_dir":      "data/exports",
	"log_level":       "info",
	"log_format":      "json",
	"max_body_bytes":  16 << 20,
	"history_depth":   256,
	"reject_warnings": false,
	"cors_origins":    []string{"*"},
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML-файл из
// DRAWING_CONFIG (если задан), затем переменные окружения (PORT, LOG_LEVEL, ...).
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("DRAWING_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
