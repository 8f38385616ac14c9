// Package memfs 提供一个内存中的 vfs.FS 实现，用于测试
//
// 路径均为绝对路径，修改时间由调用方显式给出，
// 这样扫描结果完全可预测，不依赖磁盘的时间戳精度。
// 支持按路径注入错误，用来模拟瞬时 I/O 故障。
package memfs

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shuakami/hotwatch/vfs"
)

// Entry 是写入内存归档的一个条目
type Entry struct {
	Name     string
	Modified time.Time
	Data     []byte
}

type node struct {
	data    []byte
	modTime time.Time
	// 非 nil 表示这是一个可以被 OpenArchive 打开的归档
	entries []Entry
}

// FS 内存文件系统，并发安全
type FS struct {
	mu    sync.RWMutex
	dirs  map[string]time.Time
	files map[string]*node

	statErr    map[string]error
	readDirErr map[string]error
	openErr    map[string]error
}

var _ vfs.FS = (*FS)(nil)

// New 创建只包含根目录的内存文件系统
func New() *FS {
	return &FS{
		dirs:       map[string]time.Time{string(filepath.Separator): {}},
		files:      make(map[string]*node),
		statErr:    make(map[string]error),
		readDirErr: make(map[string]error),
		openErr:    make(map[string]error),
	}
}

// MkdirAll 创建目录及其所有父目录
func (m *FS) MkdirAll(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(filepath.Clean(dir))
}

func (m *FS) mkdirAll(dir string) {
	for {
		if _, ok := m.dirs[dir]; ok {
			return
		}
		m.dirs[dir] = time.Time{}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// WriteFile 写入普通文件，父目录自动创建
func (m *FS) WriteFile(name string, data []byte, mod time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	m.mkdirAll(filepath.Dir(name))
	m.files[name] = &node{data: append([]byte(nil), data...), modTime: mod}
}

// WriteArchive 写入归档文件，条目按给定顺序保存
func (m *FS) WriteArchive(name string, mod time.Time, entries ...Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	m.mkdirAll(filepath.Dir(name))
	m.files[name] = &node{modTime: mod, entries: append([]Entry{}, entries...)}
}

// Touch 只修改文件的修改时间
func (m *FS) Touch(name string, mod time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.files[filepath.Clean(name)]
	if !ok {
		return &fs.PathError{Op: "touch", Path: name, Err: fs.ErrNotExist}
	}
	n.modTime = mod
	return nil
}

// Remove 删除文件，或递归删除目录
func (m *FS) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	delete(m.files, name)
	delete(m.dirs, name)
	prefix := name + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
		}
	}
	for p := range m.dirs {
		if strings.HasPrefix(p, prefix) {
			delete(m.dirs, p)
		}
	}
}

// Rename 移动一个文件，内容与修改时间保持不变
func (m *FS) Rename(oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldName, newName = filepath.Clean(oldName), filepath.Clean(newName)
	n, ok := m.files[oldName]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldName, Err: fs.ErrNotExist}
	}
	delete(m.files, oldName)
	m.mkdirAll(filepath.Dir(newName))
	m.files[newName] = n
	return nil
}

// FailStat 让之后对 name 的 Stat 返回 err，err 为 nil 时取消注入
func (m *FS) FailStat(name string, err error) {
	m.setFailure(m.statErr, name, err)
}

// FailReadDir 让之后对 name 的 ReadDir 返回 err
func (m *FS) FailReadDir(name string, err error) {
	m.setFailure(m.readDirErr, name, err)
}

// FailOpen 让之后对 name 的 Open/OpenArchive 返回 err
func (m *FS) FailOpen(name string, err error) {
	m.setFailure(m.openErr, name, err)
}

func (m *FS) setFailure(into map[string]error, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	if err == nil {
		delete(into, name)
		return
	}
	into[name] = err
}

func (m *FS) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if err, ok := m.statErr[name]; ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	if n, ok := m.files[name]; ok {
		return fileInfo{name: filepath.Base(name), size: int64(len(n.data)), modTime: n.modTime}, nil
	}
	if mod, ok := m.dirs[name]; ok {
		return fileInfo{name: filepath.Base(name), modTime: mod, dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir 返回直接子项，按名称排序(与 os.ReadDir 一致)
func (m *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if err, ok := m.readDirErr[name]; ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if _, ok := m.dirs[name]; !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	var out []fs.DirEntry
	for p, n := range m.files {
		if filepath.Dir(p) == name {
			out = append(out, fs.FileInfoToDirEntry(fileInfo{name: filepath.Base(p), size: int64(len(n.data)), modTime: n.modTime}))
		}
	}
	for p, mod := range m.dirs {
		if p != name && filepath.Dir(p) == name {
			out = append(out, fs.FileInfoToDirEntry(fileInfo{name: filepath.Base(p), modTime: mod, dir: true}))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (m *FS) Open(name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if err, ok := m.openErr[name]; ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	n, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(n.data)), nil
}

// OpenArchive 返回归档在打开时刻的快照
func (m *FS) OpenArchive(name string) (vfs.Archive, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if err, ok := m.openErr[name]; ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	n, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if n.entries == nil {
		return nil, fmt.Errorf("%s: not a valid archive", name)
	}
	return &archive{path: name, entries: append([]Entry{}, n.entries...)}, nil
}

type archive struct {
	path    string
	entries []Entry
	closed  bool
}

func (a *archive) Path() string { return a.path }

func (a *archive) Entries() []vfs.ArchiveEntry {
	out := make([]vfs.ArchiveEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, vfs.ArchiveEntry{Name: e.Name, Modified: e.Modified})
	}
	return out
}

func (a *archive) Open(entry string) (io.ReadCloser, error) {
	if a.closed {
		return nil, fs.ErrClosed
	}
	for _, e := range a.entries {
		if e.Name == entry {
			return io.NopCloser(bytes.NewReader(e.Data)), nil
		}
	}
	return nil, &fs.PathError{Op: "open", Path: a.path + "!" + entry, Err: fs.ErrNotExist}
}

func (a *archive) Close() error {
	a.closed = true
	return nil
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return fi.dir }
func (fi fileInfo) Sys() any           { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
