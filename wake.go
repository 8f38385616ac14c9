package hotwatch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// NotifyWaker 用 fsnotify 监听目录树，有任何事件时发出一次唤醒信号
//
// 它只用来让调度器提前开始下一次扫描，变更本身仍由扫描比较得出。
// 短时间内的多个事件合并为一个信号(通道容量为 1)。
type NotifyWaker struct {
	fsWatcher *fsnotify.Watcher
	logger    *zap.Logger
	c         chan struct{}
	stopChan  chan struct{}
	done      chan struct{}
}

// NewNotifyWaker 递归监听 root 下的所有目录
func NewNotifyWaker(root string, logger *zap.Logger) (*NotifyWaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	n := &NotifyWaker{
		fsWatcher: fsw,
		logger:    logger,
		c:         make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			n.add(p)
		}
		return nil
	})
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to walk watch path %s: %w", root, err)
	}

	go n.run()
	return n, nil
}

// C 返回唤醒信号通道，可以直接传给 WithWake
func (n *NotifyWaker) C() <-chan struct{} {
	return n.c
}

// Close 停止监听
func (n *NotifyWaker) Close() error {
	close(n.stopChan)
	err := n.fsWatcher.Close()
	<-n.done
	return err
}

func (n *NotifyWaker) run() {
	defer close(n.done)
	for {
		select {
		case ev, ok := <-n.fsWatcher.Events:
			if !ok {
				return
			}
			// 新建的目录也要监听
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					n.add(ev.Name)
				}
			}
			n.poke()

		case err, ok := <-n.fsWatcher.Errors:
			if !ok {
				return
			}
			n.logger.Warn("fsnotify error", zap.Error(err))

		case <-n.stopChan:
			return
		}
	}
}

func (n *NotifyWaker) add(dir string) {
	if err := n.fsWatcher.Add(dir); err != nil {
		n.logger.Warn("cannot watch dir", zap.String("dir", dir), zap.Error(err))
	}
}

func (n *NotifyWaker) poke() {
	select {
	case n.c <- struct{}{}:
	default:
	}
}
