package hotwatch

import "time"

// pathTable 记录每个已观察到的匹配文件的最近修改时间
//
// 键为绝对路径。某路径在表中当且仅当最近一次完成的扫描中
// 它作为匹配文件存在。只由所属检测器在扫描中修改。
type pathTable struct {
	m map[string]int64
}

func newPathTable() *pathTable {
	return &pathTable{m: make(map[string]int64)}
}

func (t *pathTable) lookup(path string) (int64, bool) {
	v, ok := t.m[path]
	return v, ok
}

func (t *pathTable) put(path string, stamp int64) {
	t.m[path] = stamp
}

// removeAll 在删除检查结束后统一移除，遍历期间不修改表
func (t *pathTable) removeAll(paths []string) {
	for _, p := range paths {
		delete(t.m, p)
	}
}

func (t *pathTable) len() int {
	return len(t.m)
}

// stamp 把修改时间转换为表中保存的整数形式
func stamp(t time.Time) int64 {
	return t.UnixNano()
}
