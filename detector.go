package hotwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shuakami/hotwatch/vfs"
)

// DetectorConfig 用于配置 Detector
//
// Root：监控根目录，必须是已存在目录的绝对路径
// Extension：要监控的文件扩展名(如 "class")，前导点可省略，每个检测器只能有一个
// Name：日志和指标中使用的名称，默认 "<ext>:<root>"
// FS：文件系统，默认 vfs.OS
// Logger：默认 zap.NewNop()
// Errors：本地故障的接收者，默认写入 Logger
// Metrics：可为 nil
type DetectorConfig struct {
	Root      string
	Extension string
	Name      string
	FS        vfs.FS
	Logger    *zap.Logger
	Errors    ErrorSink
	Metrics   *Metrics
}

// Detector 递归扫描一个目录树，与上次扫描的结果比较，
// 为新增、修改、删除的匹配文件分别触发事件
//
// 每次扫描分两步：
//  1. 删除检查：表中已不存在的路径触发 Deleted，检查结束后才从表中移除
//  2. 新增/修改检查：递归遍历目录树，未知路径触发 Added，修改时间变化触发 Modified
//
// 因此重命名总是表现为旧路径的 Deleted 在前、新路径的 Added 在后。
//
// 同一个 Detector 的扫描互斥执行。监听器在扫描中同步调用，
// 监听器内部不能再调用同一个 Detector 的 Scan。
type Detector struct {
	scanMu sync.Mutex

	// tableMu 只用于让 Snapshot 与扫描并发安全，扫描本身由 scanMu 串行化
	tableMu sync.RWMutex
	table   *pathTable

	root   string
	prefix string
	suffix string
	ext    string
	name   string

	fs      vfs.FS
	logger  *zap.Logger
	errs    ErrorSink
	metrics *Metrics

	added    listeners[FileEvent]
	modified listeners[FileEvent]
	deleted  listeners[FileEvent]
}

// NewDetector 根据配置创建 Detector
//
// 根目录不是绝对路径或不是已存在的目录时返回错误，不会重试。
// 创建时不扫描，第一次 Scan 会为已存在的匹配文件触发 Added。
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.FS == nil {
		cfg.FS = vfs.OS{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Errors == nil {
		cfg.Errors = NewLogSink(cfg.Logger, 0)
	}

	ext := strings.TrimPrefix(strings.TrimSpace(cfg.Extension), ".")
	if ext == "" {
		return nil, ErrNoExtension
	}
	if !filepath.IsAbs(cfg.Root) {
		return nil, fmt.Errorf("%w: %q", ErrNotAbsolute, cfg.Root)
	}
	root := filepath.Clean(cfg.Root)
	info, err := cfg.FS.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotDirectory, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	name := cfg.Name
	if name == "" {
		name = ext + ":" + root
	}

	return &Detector{
		table:   newPathTable(),
		root:    root,
		prefix:  prefix,
		suffix:  "." + ext,
		ext:     ext,
		name:    name,
		fs:      cfg.FS,
		logger:  cfg.Logger.With(zap.String("detector", name)),
		errs:    cfg.Errors,
		metrics: cfg.Metrics,
	}, nil
}

// Root 返回监控根目录
func (d *Detector) Root() string { return d.root }

// Extension 返回监控的扩展名(不含点)
func (d *Detector) Extension() string { return d.ext }

// Name 返回检测器名称
func (d *Detector) Name() string { return d.name }

// OnAdded 注册新增事件监听器
func (d *Detector) OnAdded(fn FileListener) { d.added.add(fn) }

// OnModified 注册修改事件监听器
func (d *Detector) OnModified(fn FileListener) { d.modified.add(fn) }

// OnDeleted 注册删除事件监听器
func (d *Detector) OnDeleted(fn FileListener) { d.deleted.add(fn) }

// Scan 执行一次完整扫描，同步分发事件，并按分发顺序返回这些事件
//
// 没有文件系统变化时连续两次扫描，第二次不产生任何事件。
func (d *Detector) Scan() []FileEvent {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	start := time.Now()
	var events []FileEvent
	emit := func(ev FileEvent) {
		events = append(events, ev)
		d.dispatch(ev)
	}

	d.checkDeletion(emit)
	d.checkAddAndModify(d.root, emit, make(map[string]struct{}))

	took := time.Since(start)
	tracked := d.tracked()
	d.metrics.scanned(d.name, took, tracked)
	d.logger.Debug("scan complete",
		zap.Int("events", len(events)),
		zap.Int("tracked", tracked),
		zap.Duration("took", took))
	return events
}

// Snapshot 返回当前已知文件的副本：相对路径 -> 修改时间
//
// 可以与扫描并发调用，也可以在监听器中调用
func (d *Detector) Snapshot() map[string]time.Time {
	d.tableMu.RLock()
	defer d.tableMu.RUnlock()
	out := make(map[string]time.Time, d.table.len())
	for p, v := range d.table.m {
		out[d.rel(p)] = time.Unix(0, v)
	}
	return out
}

// tracks 报告 rel 是否在最近一次扫描后仍被跟踪
func (d *Detector) tracks(rel string) bool {
	d.tableMu.RLock()
	defer d.tableMu.RUnlock()
	_, ok := d.table.lookup(d.abs(rel))
	return ok
}

func (d *Detector) tracked() int {
	d.tableMu.RLock()
	defer d.tableMu.RUnlock()
	return d.table.len()
}

// checkDeletion 检查表中的路径是否仍然存在
//
// 先收集再移除，遍历期间不修改表
func (d *Detector) checkDeletion(emit func(FileEvent)) {
	var gone []string
	for abs := range d.table.m {
		info, err := d.fs.Stat(abs)
		switch {
		case err == nil && !info.IsDir():
			continue
		case err == nil || errors.Is(err, fs.ErrNotExist):
			// 不存在，或者同名路径已经变成了目录
			gone = append(gone, abs)
			emit(FileEvent{Path: d.rel(abs), Kind: Deleted})
		default:
			// 状态未知，保留在表中，下一轮再查
			d.report(&Error{Op: OpStat, Path: d.rel(abs), Err: err})
		}
	}
	if len(gone) == 0 {
		return
	}
	d.tableMu.Lock()
	d.table.removeAll(gone)
	d.tableMu.Unlock()
}

// checkAddAndModify 递归检查 dir 下的新增和修改
//
// 目录总是被遍历(包括指向目录的符号链接)，目录本身不产生事件。
// visited 按解析后的真实路径记录本轮已遍历的目录，链接成环时只走一次。
func (d *Detector) checkAddAndModify(dir string, emit func(FileEvent), visited map[string]struct{}) {
	key := vfs.Resolve(d.fs, dir)
	if _, ok := visited[key]; ok {
		return
	}
	visited[key] = struct{}{}

	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		// 子目录在列举前被删除是正常情况，下一轮的删除检查会处理其中的文件
		if dir == d.root || !errors.Is(err, fs.ErrNotExist) {
			d.report(&Error{Op: OpReadDir, Path: d.rel(dir), Err: err})
		}
		return
	}

	for _, entry := range entries {
		abs := filepath.Join(dir, entry.Name())
		if entry.IsDir() || d.linksToDir(entry, abs) {
			d.checkAddAndModify(abs, emit, visited)
			continue
		}
		if !d.matches(entry.Name()) {
			continue
		}

		info, err := d.fs.Stat(abs)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				d.report(&Error{Op: OpStat, Path: d.rel(abs), Err: err})
			}
			continue
		}
		if info.IsDir() {
			d.checkAddAndModify(abs, emit, visited)
			continue
		}

		mod := stamp(info.ModTime())
		old, known := d.table.lookup(abs)
		switch {
		case !known:
			d.store(abs, mod)
			emit(FileEvent{Path: d.rel(abs), Kind: Added})
		case old != mod:
			d.store(abs, mod)
			emit(FileEvent{Path: d.rel(abs), Kind: Modified})
		}
	}
}

func (d *Detector) linksToDir(entry fs.DirEntry, abs string) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := d.fs.Stat(abs)
	return err == nil && info.IsDir()
}

func (d *Detector) store(abs string, mod int64) {
	d.tableMu.Lock()
	d.table.put(abs, mod)
	d.tableMu.Unlock()
}

func (d *Detector) matches(name string) bool {
	return strings.HasSuffix(name, d.suffix)
}

// rel 去掉根目录前缀，事件中不会泄露根目录的位置
func (d *Detector) rel(abs string) string {
	if abs == d.root {
		return ""
	}
	return strings.TrimPrefix(abs, d.prefix)
}

func (d *Detector) abs(rel string) string {
	return filepath.Join(d.root, rel)
}

func (d *Detector) dispatch(ev FileEvent) {
	d.metrics.event(d.name, ev.Kind)

	var l *listeners[FileEvent]
	switch ev.Kind {
	case Added:
		l = &d.added
	case Modified:
		l = &d.modified
	case Deleted:
		l = &d.deleted
	default:
		return
	}
	l.notify(ev, func(err error) {
		d.report(&Error{Op: OpListener, Path: ev.Path, Err: err})
	})
}

func (d *Detector) report(err *Error) {
	d.metrics.failure(err.Op)
	d.errs.Report(err)
}
