// cmd/hotwatch/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/shuakami/hotwatch"
	"github.com/shuakami/hotwatch/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	agentArgs := flag.String("args", "", "agent arguments: classes=DIR,jars=DIR,period=MS or DIR[,DIR[,MS]]")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			_, _ = os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if *agentArgs != "" {
		cfg.ApplyAgentArgs(config.ParseAgentArgs(*agentArgs))
	}

	logger, levelErr := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	if levelErr != nil {
		logger.Warn("unknown log level, using info", zap.String("level", cfg.LogLevel), zap.Error(levelErr))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := hotwatch.NewMetrics(reg)

	agent, err := hotwatch.NewAgent(hotwatch.AgentConfig{
		Classes: cfg.Classes,
		Jars:    cfg.Jars,
		Period:  cfg.Period,
		Wake:    cfg.Wake,
		Logger:  logger,
		Errors:  hotwatch.NewLogSink(logger, cfg.ErrorLogRate),
		Metrics: metrics,
	}, newLogReloader(logger))
	if err != nil {
		logger.Fatal("failed to create agent", zap.Error(err))
	}

	var group hotwatch.Group
	group.Add(agent)
	if err := agent.Start(); err != nil {
		logger.Fatal("failed to start agent", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(&group, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")
	group.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// newLogger 按级别创建生产日志，级别无法识别时使用 info 并返回解析错误
func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, levelErr := zap.ParseAtomicLevel(level)
	if levelErr == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop(), err
	}
	return logger, levelErr
}
