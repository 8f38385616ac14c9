package hotwatch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MinPeriod 是两次扫描之间的最小间隔，更小的周期会被提升到这个值
const MinPeriod = 500 * time.Millisecond

// Scanner 是可以被调度的检测器，Detector 和 ArchiveDetector 都实现了它
type Scanner interface {
	Scan() []FileEvent
}

// ClampPeriod 把周期提升到 MinPeriod
func ClampPeriod(period time.Duration) time.Duration {
	if period < MinPeriod {
		return MinPeriod
	}
	return period
}

// SchedulerConfig 用于配置 Scheduler
//
// Workers：同时执行扫描的最大数量，小于 2 时使用 2
// Errors：扫描 panic 时以 OpScan 报告，可为 nil
type SchedulerConfig struct {
	Workers int
	Logger  *zap.Logger
	Errors  ErrorSink
}

// Scheduler 以固定延迟周期性地执行检测器
//
// 每个检测器对应一个独立任务：启动后立即扫描一次，之后每次扫描结束
// 等待一个周期再开始下一次(固定延迟，而不是固定频率)。
// 同一任务的扫描严格串行；不同任务共享 worker 池，彼此并发。
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	pool   chan struct{}
	logger *zap.Logger
	errs   ErrorSink
}

// NewScheduler 创建调度器
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Workers < 2 {
		cfg.Workers = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:   make(map[string]*Job),
		pool:   make(chan struct{}, cfg.Workers),
		logger: cfg.Logger,
		errs:   cfg.Errors,
	}
}

// Job 是一个正在调度中的检测器
type Job struct {
	ID     string
	Period time.Duration

	scanner  Scanner
	wake     <-chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runs     atomic.Int64
}

// JobOption 调整单个任务
type JobOption func(j *Job)

// WithWake 允许 ch 提前唤醒下一次扫描
//
// 唤醒后下一次扫描不会早于上一次扫描结束后的 MinPeriod
func WithWake(ch <-chan struct{}) JobOption {
	return func(j *Job) {
		j.wake = ch
	}
}

// Start 开始调度 sc，立即执行第一次扫描
//
// period 小于 MinPeriod(包括非正数)时使用 MinPeriod
func (s *Scheduler) Start(sc Scanner, period time.Duration, opts ...JobOption) *Job {
	j := &Job{
		ID:      uuid.NewString(),
		Period:  ClampPeriod(period),
		scanner: sc,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	s.logger.Info("job scheduled", zap.String("job", j.ID), zap.Duration("period", j.Period))
	go s.loop(j)
	return j
}

// Stop 阻止 j 之后的扫描开始，正在进行的扫描会执行完
func (s *Scheduler) Stop(j *Job) {
	j.cancel()
}

// StopAll 停止所有任务
func (s *Scheduler) StopAll() {
	for _, j := range s.Jobs() {
		j.cancel()
	}
}

// Wait 等待所有任务退出
func (s *Scheduler) Wait() {
	for _, j := range s.Jobs() {
		j.Wait()
	}
}

// Jobs 返回仍在运行的任务
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

func (s *Scheduler) loop(j *Job) {
	defer func() {
		s.mu.Lock()
		delete(s.jobs, j.ID)
		s.mu.Unlock()
		close(j.done)
		s.logger.Info("job stopped", zap.String("job", j.ID), zap.Int64("runs", j.runs.Load()))
	}()

	for {
		if !s.runOnce(j) {
			return
		}
		if !j.sleep() {
			return
		}
	}
}

// runOnce 从 worker 池取得令牌后执行一次扫描，任务已停止时返回 false
func (s *Scheduler) runOnce(j *Job) bool {
	select {
	case s.pool <- struct{}{}:
	case <-j.stop:
		return false
	}
	defer func() { <-s.pool }()

	select {
	case <-j.stop:
		return false
	default:
	}

	s.scan(j)
	j.runs.Add(1)
	return true
}

func (s *Scheduler) scan(j *Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan panicked", zap.String("job", j.ID), zap.Any("panic", r))
			if s.errs != nil {
				s.errs.Report(&Error{Op: OpScan, Err: fmt.Errorf("scan panic: %v", r)})
			}
		}
	}()
	j.scanner.Scan()
}

// sleep 在两次扫描之间等待，任务停止时返回 false
func (j *Job) sleep() bool {
	finished := time.Now()
	timer := time.NewTimer(j.Period)
	defer timer.Stop()

	select {
	case <-j.stop:
		return false
	case <-timer.C:
		return true
	case <-j.wake:
		left := time.Until(finished.Add(MinPeriod))
		if left <= 0 {
			return true
		}
		floor := time.NewTimer(left)
		defer floor.Stop()
		select {
		case <-j.stop:
			return false
		case <-floor.C:
			return true
		}
	}
}

func (j *Job) cancel() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// Wait 等待任务退出(包括正在进行的扫描)
func (j *Job) Wait() {
	<-j.done
}

// Done 在任务退出后关闭
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Runs 返回已完成的扫描次数
func (j *Job) Runs() int64 {
	return j.runs.Load()
}
