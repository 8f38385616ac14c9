package hotwatch

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shuakami/hotwatch/vfs"
)

// DefaultArchiveExtension 是 ArchiveConfig.Extension 的默认值
const DefaultArchiveExtension = "jar"

// ArchiveConfig 用于配置 ArchiveDetector，字段含义同 DetectorConfig
//
// Extension 默认 "jar"
type ArchiveConfig struct {
	Root      string
	Extension string
	Name      string
	FS        vfs.FS
	Logger    *zap.Logger
	Errors    ErrorSink
	Metrics   *Metrics
}

// archiveIndex 条目名 -> 条目修改时间
type archiveIndex map[string]int64

// ArchiveDetector 在文件级检测之上跟踪归档内部条目的变化
//
// 它订阅一个只匹配归档扩展名的 Detector：
//   - Added：打开归档，记录全部条目作为基线，不产生条目事件
//   - Modified：重新打开归档，已跟踪条目的时间变化时触发 ArchiveEvent，
//     新出现的条目只记入基线
//   - Deleted：丢弃该归档的索引
//
// 归档自身的时间戳是一道廉价的闸门，只有它变化时才会枚举条目。
// 打开失败的归档在本轮跳过，已有索引保留，之后每一轮都会重试，
// 即使归档的时间戳没有再变化。
type ArchiveDetector struct {
	files *Detector
	fs    vfs.FS

	// mu 只用于让 Index/Archives 与扫描并发安全
	mu      sync.RWMutex
	indexes map[string]archiveIndex
	// pending 打开失败、等待重试的归档 -> 失败时处理的事件类型
	pending map[string]Kind

	entries listeners[ArchiveEvent]
}

// NewArchiveDetector 根据配置创建 ArchiveDetector
func NewArchiveDetector(cfg ArchiveConfig) (*ArchiveDetector, error) {
	if cfg.Extension == "" {
		cfg.Extension = DefaultArchiveExtension
	}
	if cfg.FS == nil {
		cfg.FS = vfs.OS{}
	}
	files, err := NewDetector(DetectorConfig{
		Root:      cfg.Root,
		Extension: cfg.Extension,
		Name:      cfg.Name,
		FS:        cfg.FS,
		Logger:    cfg.Logger,
		Errors:    cfg.Errors,
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	a := &ArchiveDetector{
		files:   files,
		fs:      cfg.FS,
		indexes: make(map[string]archiveIndex),
		pending: make(map[string]Kind),
	}
	files.OnAdded(a.archiveAdded)
	files.OnModified(a.archiveModified)
	files.OnDeleted(a.archiveDeleted)
	return a, nil
}

// Scan 执行一次扫描，返回归档文件级别的事件，条目事件通过监听器分发
//
// 之前打开失败的归档如果本轮没有文件级事件，会在扫描之后重试一次
func (a *ArchiveDetector) Scan() []FileEvent {
	retry := a.takePending()
	events := a.files.Scan()
	if len(retry) == 0 {
		return events
	}

	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		seen[ev.Path] = struct{}{}
	}
	for rel, kind := range retry {
		if _, ok := seen[rel]; ok || !a.files.tracks(rel) {
			continue
		}
		ev := FileEvent{Path: rel, Kind: kind}
		if kind == Added {
			_ = a.archiveAdded(ev)
		} else {
			_ = a.archiveModified(ev)
		}
	}
	return events
}

// takePending 取出并清空等待重试的归档
func (a *ArchiveDetector) takePending() map[string]Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return nil
	}
	out := a.pending
	a.pending = make(map[string]Kind)
	return out
}

// Files 返回底层的文件级检测器
func (a *ArchiveDetector) Files() *Detector { return a.files }

// Name 返回检测器名称
func (a *ArchiveDetector) Name() string { return a.files.Name() }

// OnEntryModified 注册条目修改监听器
func (a *ArchiveDetector) OnEntryModified(fn EntryListener) { a.entries.add(fn) }

// OnAdded 注册归档新增监听器，在内部索引建立之后调用
func (a *ArchiveDetector) OnAdded(fn FileListener) { a.files.OnAdded(fn) }

// OnModified 注册归档修改监听器，在条目事件分发之后调用
func (a *ArchiveDetector) OnModified(fn FileListener) { a.files.OnModified(fn) }

// OnDeleted 注册归档删除监听器
func (a *ArchiveDetector) OnDeleted(fn FileListener) { a.files.OnDeleted(fn) }

// Archives 返回已建立索引的归档相对路径，按字典序
func (a *ArchiveDetector) Archives() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.indexes))
	for p := range a.indexes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Index 返回某个归档索引的副本，未跟踪时返回 nil
func (a *ArchiveDetector) Index(rel string) map[string]time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.indexes[rel]
	if !ok {
		return nil
	}
	out := make(map[string]time.Time, len(idx))
	for name, v := range idx {
		out[name] = time.Unix(0, v)
	}
	return out
}

func (a *ArchiveDetector) archiveAdded(ev FileEvent) error {
	ar, ok := a.open(ev)
	if !ok {
		return nil
	}
	defer ar.Close()

	a.baseline(ev.Path, ar)
	return nil
}

func (a *ArchiveDetector) archiveModified(ev FileEvent) error {
	ar, ok := a.open(ev)
	if !ok {
		return nil
	}
	defer ar.Close()

	a.mu.Lock()
	idx, known := a.indexes[ev.Path]
	if !known {
		a.mu.Unlock()
		// 首次打开失败过，这是第一次成功读到它
		a.baseline(ev.Path, ar)
		return nil
	}
	var changed []string
	for _, e := range uniqueEntries(ar.Entries()) {
		mod := stamp(e.Modified)
		old, tracked := idx[e.Name]
		if !tracked {
			idx[e.Name] = mod
			continue
		}
		if old != mod {
			idx[e.Name] = mod
			changed = append(changed, e.Name)
		}
	}
	a.mu.Unlock()

	for _, name := range changed {
		a.files.metrics.entryEvent(a.files.name)
		entryEv := ArchiveEvent{Path: ev.Path, Entry: name, Archive: ar}
		a.entries.notify(entryEv, func(err error) {
			a.files.report(&Error{Op: OpListener, Path: ev.Path, Entry: name, Err: err})
		})
	}
	if len(changed) > 0 {
		a.files.logger.Debug("archive entries changed",
			zap.String("archive", ev.Path),
			zap.Strings("entries", changed))
	}
	return nil
}

func (a *ArchiveDetector) archiveDeleted(ev FileEvent) error {
	a.mu.Lock()
	delete(a.indexes, ev.Path)
	delete(a.pending, ev.Path)
	a.mu.Unlock()
	return nil
}

// baseline 用归档当前的条目建立新索引，不产生事件
func (a *ArchiveDetector) baseline(rel string, ar vfs.Archive) {
	entries := uniqueEntries(ar.Entries())
	idx := make(archiveIndex, len(entries))
	for _, e := range entries {
		idx[e.Name] = stamp(e.Modified)
	}
	a.mu.Lock()
	a.indexes[rel] = idx
	a.mu.Unlock()
}

// open 打开 ev 对应的归档，失败时报告并登记到下一轮重试
func (a *ArchiveDetector) open(ev FileEvent) (vfs.Archive, bool) {
	ar, err := a.fs.OpenArchive(a.files.abs(ev.Path))
	if err != nil {
		a.mu.Lock()
		// 新增时失败的归档一直没有索引，仍按新增重试
		if a.pending[ev.Path] != Added {
			a.pending[ev.Path] = ev.Kind
		}
		a.mu.Unlock()
		a.files.report(&Error{Op: OpOpenArchive, Path: ev.Path, Err: err})
		return nil, false
	}
	return ar, true
}

// uniqueEntries 去掉重名条目，同名的只保留第一个
func uniqueEntries(entries []vfs.ArchiveEntry) []vfs.ArchiveEntry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e)
	}
	return out
}
