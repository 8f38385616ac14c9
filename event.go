package hotwatch

import (
	"io"

	"github.com/shuakami/hotwatch/vfs"
)

// Kind 表示文件级变更的类型
type Kind int

const (
	Added Kind = iota + 1
	Modified
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent 表示一次文件级变更
//
// Path：相对于监控根目录的路径，不包含根目录本身
// Kind：变更类型
type FileEvent struct {
	Path string
	Kind Kind
}

// ArchiveEvent 表示归档内某个已跟踪条目的修改时间发生了变化
//
// Path：归档文件相对于监控根目录的路径
// Entry：归档内的条目名
// Archive：已打开的归档，仅在监听器调用期间有效，监听器返回后会被关闭
type ArchiveEvent struct {
	Path    string
	Entry   string
	Archive vfs.Archive
}

// Open 重新读取该条目的内容
func (e ArchiveEvent) Open() (io.ReadCloser, error) {
	return e.Archive.Open(e.Entry)
}
