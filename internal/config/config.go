// Package config 读取 hotwatch 的配置：YAML 文件、环境变量以及 agent 参数字符串
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Config 是进程级配置
type Config struct {
	Classes      string        `yaml:"classes"`
	Jars         string        `yaml:"jars"`
	Period       time.Duration `yaml:"period"`
	LogLevel     string        `yaml:"log_level"`
	HTTPAddr     string        `yaml:"http_addr"`
	Wake         bool          `yaml:"wake"`
	ErrorLogRate float64       `yaml:"error_log_rate"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Period:       500 * time.Millisecond,
		LogLevel:     "info",
		HTTPAddr:     ":9464",
		ErrorLogRate: 1,
	}
}

// Load 在默认配置上叠加 YAML 文件的内容
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyAgentArgs 用 agent 参数覆盖目录和周期，未给出的项保持不变
func (c *Config) ApplyAgentArgs(args AgentArgs) {
	if args.Classes != "" {
		c.Classes = args.Classes
	}
	if args.Jars != "" {
		c.Jars = args.Jars
	}
	if args.Period > 0 {
		c.Period = time.Duration(args.Period) * time.Millisecond
	}
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}
}

// Validate 检查必填项并把目录解析为绝对路径
func (c *Config) Validate() error {
	if c.Classes == "" {
		return errors.New("config: classes folder is required")
	}
	classes, err := ResolveFolder(c.Classes)
	if err != nil {
		return fmt.Errorf("config: classes: %w", err)
	}
	c.Classes = classes

	if c.Jars != "" {
		jars, err := ResolveFolder(c.Jars)
		if err != nil {
			return fmt.Errorf("config: jars: %w", err)
		}
		c.Jars = jars
	}
	return nil
}

// ResolveFolder 返回 NFC 规范化后的绝对路径，不检查是否存在
func ResolveFolder(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(abs), nil
}
