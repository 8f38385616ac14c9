// Package vfs 抽象出变更检测所需的全部文件系统操作
//
// 检测器只通过 FS 接口访问磁盘：目录列举、文件状态(存在性与修改时间)、
// 打开文件以及打开归档(zip/jar)并枚举其条目。
// 生产环境使用 OS，测试中使用 memfs 替换为内存文件系统。
package vfs

import (
	"io"
	"io/fs"
	"time"
)

// FS 是检测器使用的文件系统
//
// 所有路径均为绝对路径
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Open(name string) (io.ReadCloser, error)
	OpenArchive(name string) (Archive, error)
}

// ArchiveEntry 描述归档中的一个条目
//
// 只需要名称和修改时间两个属性
type ArchiveEntry struct {
	Name     string
	Modified time.Time
}

// Archive 表示一个已打开的归档文件
type Archive interface {
	// Path 返回归档的绝对路径
	Path() string
	// Entries 按归档内的顺序返回全部条目
	Entries() []ArchiveEntry
	// Open 打开指定条目的内容
	Open(entry string) (io.ReadCloser, error)
	Close() error
}

// Resolver 由支持符号链接的 FS 实现，返回去掉链接后的真实路径
type Resolver interface {
	EvalSymlinks(name string) (string, error)
}

// Resolve 返回 name 的真实路径；fsys 不支持链接或解析失败时原样返回 name
func Resolve(fsys FS, name string) string {
	r, ok := fsys.(Resolver)
	if !ok {
		return name
	}
	resolved, err := r.EvalSymlinks(name)
	if err != nil {
		return name
	}
	return resolved
}
