package hotwatch

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shuakami/hotwatch/vfs"
)

// ChangeKind 区分 Change 的来源
type ChangeKind int

const (
	// ClassFile 类目录中的 .class 文件被修改
	ClassFile ChangeKind = iota + 1
	// ArchiveEntry 归档目录中某个 jar 内的 .class 条目被修改
	ArchiveEntry
)

func (k ChangeKind) String() string {
	switch k {
	case ClassFile:
		return "class"
	case ArchiveEntry:
		return "archive_entry"
	default:
		return "unknown"
	}
}

// Change 是交给 Reloader 的一次需要重新加载的变更
//
// Path：类文件或归档相对于各自监控根目录的路径
// Entry：归档内条目名，类文件为空
// ClassName：由路径推导出的类名，如 "a.b.C"
// Open：读取新的字节内容；对归档条目只在 Reload 调用期间有效
type Change struct {
	Kind      ChangeKind
	Path      string
	Entry     string
	ClassName string
	Open      func() (io.ReadCloser, error)
}

// Reloader 对变更执行实际的重新加载动作
type Reloader interface {
	Reload(c Change) error
}

// ReloaderFunc 把普通函数适配为 Reloader
type ReloaderFunc func(c Change) error

func (f ReloaderFunc) Reload(c Change) error { return f(c) }

// AgentConfig 用于配置 Agent
//
// Classes：类文件目录，必填
// Jars：jar 目录，可为空
// Period：扫描间隔，小于 MinPeriod 时使用 MinPeriod
// Wake：是否用 fsnotify 提前唤醒扫描
type AgentConfig struct {
	Classes string
	Jars    string
	Period  time.Duration
	Wake    bool
	FS      vfs.FS
	Logger  *zap.Logger
	Errors  ErrorSink
	Metrics *Metrics
}

// Agent 把类文件检测器、可选的 jar 检测器和调度器组合在一起，
// 把需要重新加载的变更交给 Reloader
type Agent struct {
	cfg       AgentConfig
	reloader  Reloader
	logger    *zap.Logger
	scheduler *Scheduler

	classes *Detector
	jars    *ArchiveDetector

	mu     sync.Mutex
	jobs   []*Job
	wakers []*NotifyWaker
}

// NewAgent 创建 Agent，目录无效时返回错误
func NewAgent(cfg AgentConfig, reloader Reloader) (*Agent, error) {
	if reloader == nil {
		return nil, errors.New("reloader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.FS == nil {
		cfg.FS = vfs.OS{}
	}
	cfg.Period = ClampPeriod(cfg.Period)

	a := &Agent{
		cfg:       cfg,
		reloader:  reloader,
		logger:    cfg.Logger,
		scheduler: NewScheduler(SchedulerConfig{Workers: 2, Logger: cfg.Logger, Errors: cfg.Errors}),
	}

	classes, err := NewDetector(DetectorConfig{
		Root:      cfg.Classes,
		Extension: "class",
		FS:        cfg.FS,
		Logger:    cfg.Logger,
		Errors:    cfg.Errors,
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("class folder: %w", err)
	}
	classes.OnModified(a.classModified)
	a.classes = classes

	if cfg.Jars != "" {
		jars, err := NewArchiveDetector(ArchiveConfig{
			Root:    cfg.Jars,
			FS:      cfg.FS,
			Logger:  cfg.Logger,
			Errors:  cfg.Errors,
			Metrics: cfg.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("jar folder: %w", err)
		}
		jars.OnEntryModified(a.entryModified)
		a.jars = jars
	}
	return a, nil
}

// Start 开始周期性扫描
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.schedule(a.classes, a.classes.Root()); err != nil {
		a.rollback()
		return err
	}
	if a.jars != nil {
		if err := a.schedule(a.jars, a.jars.Files().Root()); err != nil {
			a.rollback()
			return err
		}
	}

	a.logger.Info("agent started",
		zap.String("classes", a.cfg.Classes),
		zap.String("jars", a.cfg.Jars),
		zap.Duration("period", a.cfg.Period),
		zap.Bool("wake", a.cfg.Wake))
	return nil
}

func (a *Agent) schedule(sc Scanner, root string) error {
	var opts []JobOption
	if a.cfg.Wake {
		w, err := NewNotifyWaker(root, a.logger)
		if err != nil {
			return err
		}
		a.wakers = append(a.wakers, w)
		opts = append(opts, WithWake(w.C()))
	}
	a.jobs = append(a.jobs, a.scheduler.Start(sc, a.cfg.Period, opts...))
	return nil
}

// Stop 停止调度，正在进行的扫描会执行完
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.scheduler.StopAll()
	a.closeWakers()
	a.jobs = nil
	a.logger.Info("agent stopped")
}

// rollback 撤销 Start 中已经启动的任务和唤醒器，调用方持有 mu
func (a *Agent) rollback() {
	for _, j := range a.jobs {
		a.scheduler.Stop(j)
	}
	a.jobs = nil
	a.closeWakers()
}

func (a *Agent) closeWakers() {
	for _, w := range a.wakers {
		if err := w.Close(); err != nil {
			a.logger.Warn("close waker", zap.Error(err))
		}
	}
	a.wakers = nil
}

// Wait 等待所有任务退出
func (a *Agent) Wait() {
	a.scheduler.Wait()
}

// Classes 返回类文件检测器
func (a *Agent) Classes() *Detector { return a.classes }

// Jars 返回 jar 检测器，未配置 jar 目录时为 nil
func (a *Agent) Jars() *ArchiveDetector { return a.jars }

// Period 返回生效的扫描间隔
func (a *Agent) Period() time.Duration { return a.cfg.Period }

func (a *Agent) classModified(ev FileEvent) error {
	abs := filepath.Join(a.classes.Root(), ev.Path)
	return a.reloader.Reload(Change{
		Kind:      ClassFile,
		Path:      ev.Path,
		ClassName: ClassName(ev.Path),
		Open: func() (io.ReadCloser, error) {
			return a.cfg.FS.Open(abs)
		},
	})
}

func (a *Agent) entryModified(ev ArchiveEvent) error {
	if !strings.HasSuffix(ev.Entry, ".class") {
		return nil
	}
	return a.reloader.Reload(Change{
		Kind:      ArchiveEntry,
		Path:      ev.Path,
		Entry:     ev.Entry,
		ClassName: ClassName(ev.Entry),
		Open:      ev.Open,
	})
}

// ClassName 把类文件路径转换为类名，如 "a/b/C.class" -> "a.b.C"
func ClassName(path string) string {
	name := strings.TrimSuffix(path, ".class")
	name = strings.ReplaceAll(name, string(filepath.Separator), ".")
	return strings.ReplaceAll(name, "/", ".")
}

// Group 是入口持有的 Agent 集合，用于统一停止
type Group struct {
	mu     sync.Mutex
	agents []*Agent
}

// Add 加入一个 Agent
func (g *Group) Add(a *Agent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agents = append(g.agents, a)
}

// Agents 返回已加入的 Agent
func (g *Group) Agents() []*Agent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Agent(nil), g.agents...)
}

// StopAll 停止所有 Agent 并等待正在进行的扫描结束
func (g *Group) StopAll() {
	agents := g.Agents()
	for _, a := range agents {
		a.Stop()
	}
	for _, a := range agents {
		a.Wait()
	}
}
