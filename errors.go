package hotwatch

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// 构造阶段的配置错误，检测器不会被创建
var (
	ErrNotAbsolute  = errors.New("watch root is not an absolute path")
	ErrNotDirectory = errors.New("watch root is not an existing directory")
	ErrNoExtension  = errors.New("file extension is required")
)

// 本地故障的操作名
const (
	OpStat        = "stat"
	OpReadDir     = "readdir"
	OpOpenArchive = "open_archive"
	OpListener    = "listener"
	OpScan        = "scan"
)

// Error 描述扫描过程中的一次本地故障
//
// 这类故障不会中断扫描，出错的条目在本轮被跳过，下一轮自动重试
type Error struct {
	Op    string // 出错的操作
	Path  string // 相对于监控根目录的路径
	Entry string // 归档条目名，非归档故障为空
	Err   error
}

func (e *Error) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("%s %s!%s: %v", e.Op, e.Path, e.Entry, e.Err)
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorSink 接收本地故障，每个故障调用一次 Report
type ErrorSink interface {
	Report(err *Error)
}

// ErrorSinkFunc 把普通函数适配为 ErrorSink
type ErrorSinkFunc func(err *Error)

func (f ErrorSinkFunc) Report(err *Error) { f(err) }

// LogSink 把故障写入 zap 日志，并按速率限流
//
// 一个持续损坏的归档每轮都会出错，限流避免日志被刷屏。
// 被丢弃的报告数量会附加在下一条输出的日志上。
type LogSink struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// NewLogSink 创建日志 ErrorSink
//
// perSecond <= 0 表示不限流
func NewLogSink(logger *zap.Logger, perSecond float64) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &LogSink{logger: logger, limiter: rate.NewLimiter(limit, burst)}
}

func (s *LogSink) Report(err *Error) {
	if !s.limiter.Allow() {
		s.suppressed.Add(1)
		return
	}
	fields := []zap.Field{zap.String("op", err.Op), zap.String("path", err.Path)}
	if err.Entry != "" {
		fields = append(fields, zap.String("entry", err.Entry))
	}
	if n := s.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}
	fields = append(fields, zap.Error(err.Err))
	s.logger.Warn("local failure, skipped for this pass", fields...)
}
