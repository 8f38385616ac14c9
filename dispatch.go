package hotwatch

import (
	"fmt"
	"sync"
)

// FileListener 处理文件级事件，返回的错误会被报告给 ErrorSink
type FileListener func(ev FileEvent) error

// EntryListener 处理归档条目事件
type EntryListener func(ev ArchiveEvent) error

// listeners 是某一类事件的监听器列表，只追加不删除
//
// 调用是同步的，按注册顺序进行。某个监听器出错(或 panic)
// 不影响后续监听器，也不会中断当前扫描。
type listeners[E any] struct {
	mu  sync.RWMutex
	fns []func(E) error
}

func (l *listeners[E]) add(fn func(E) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

// notify 依次调用监听器，每个失败调用一次 fail
func (l *listeners[E]) notify(ev E, fail func(err error)) {
	l.mu.RLock()
	fns := l.fns
	l.mu.RUnlock()

	for _, fn := range fns {
		if err := invoke(fn, ev); err != nil {
			fail(err)
		}
	}
}

func invoke[E any](fn func(E) error, ev E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ev)
}
