package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv 用环境变量覆盖配置
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("HOTWATCH_CLASSES"); v != "" {
		cfg.Classes = v
	}
	if v := os.Getenv("HOTWATCH_JARS"); v != "" {
		cfg.Jars = v
	}
	if v := os.Getenv("HOTWATCH_PERIOD"); v != "" {
		if d, ok := parsePeriod(v); ok {
			cfg.Period = d
		}
	}
	if v := os.Getenv("HOTWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HOTWATCH_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("HOTWATCH_WAKE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Wake = b
		}
	}
	if v := os.Getenv("HOTWATCH_ERROR_LOG_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ErrorLogRate = r
		}
	}
}

// parsePeriod 接受 "1s" 这样的时长，或者毫秒数
func parsePeriod(v string) (time.Duration, bool) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, true
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	return 0, false
}
