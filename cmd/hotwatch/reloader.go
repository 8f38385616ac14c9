package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/shuakami/hotwatch"
)

// logReloader 读取变更后的字节并记录日志
//
// 真正的运行时替换由宿主进程完成，这里只确认内容可读
type logReloader struct {
	logger *zap.Logger
}

func newLogReloader(logger *zap.Logger) *logReloader {
	return &logReloader{logger: logger}
}

func (r *logReloader) Reload(c hotwatch.Change) error {
	rc, err := c.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", c.ClassName, err)
	}
	defer rc.Close()

	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.ClassName, err)
	}
	fields := []zap.Field{
		zap.String("kind", c.Kind.String()),
		zap.String("class", c.ClassName),
		zap.String("path", c.Path),
		zap.Int64("bytes", n),
	}
	if c.Entry != "" {
		fields = append(fields, zap.String("entry", c.Entry))
	}
	r.logger.Info("class changed", fields...)
	return nil
}
