package hotwatch

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuakami/hotwatch/vfs/memfs"
)

var t1 = t0.Add(time.Minute)

func newTestArchiveDetector(t *testing.T, m *memfs.FS) (*ArchiveDetector, *errorLog, *[]ArchiveEvent) {
	t.Helper()
	errs := &errorLog{}
	a, err := NewArchiveDetector(ArchiveConfig{Root: "/w", FS: m, Errors: errs})
	require.NoError(t, err)
	var got []ArchiveEvent
	a.OnEntryModified(func(ev ArchiveEvent) error {
		got = append(got, ev)
		return nil
	})
	return a, errs, &got
}

// TestArchiveBaseline 新归档只产生一个文件级 Added，不产生条目事件
func TestArchiveBaseline(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0,
		memfs.Entry{Name: "X.class", Modified: t0},
		memfs.Entry{Name: "Y.class", Modified: t0},
	)
	a, _, got := newTestArchiveDetector(t, m)

	assert.Equal(t, []FileEvent{{Path: "lib.jar", Kind: Added}}, a.Scan())
	assert.Empty(t, *got)
	assert.Equal(t, []string{"lib.jar"}, a.Archives())

	idx := a.Index("lib.jar")
	require.Len(t, idx, 2)
	assert.True(t, idx["X.class"].Equal(t0))
	assert.True(t, idx["Y.class"].Equal(t0))
}

// TestArchiveEntryModified 归档被修改时只报告时间变化的已跟踪条目
func TestArchiveEntryModified(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0,
		memfs.Entry{Name: "X.class", Modified: t0},
		memfs.Entry{Name: "Y.class", Modified: t0},
	)
	a, _, got := newTestArchiveDetector(t, m)
	a.Scan()

	m.WriteArchive("/w/lib.jar", t1,
		memfs.Entry{Name: "X.class", Modified: t1, Data: []byte("new X")},
		memfs.Entry{Name: "Y.class", Modified: t0},
	)
	assert.Equal(t, []FileEvent{{Path: "lib.jar", Kind: Modified}}, a.Scan())
	require.Len(t, *got, 1)
	assert.Equal(t, "lib.jar", (*got)[0].Path)
	assert.Equal(t, "X.class", (*got)[0].Entry)
	assert.True(t, a.Index("lib.jar")["X.class"].Equal(t1))
	assert.True(t, a.Index("lib.jar")["Y.class"].Equal(t0))

	assert.Empty(t, a.Scan())
	assert.Len(t, *got, 1)
}

// TestArchiveEntryReadableDuringDispatch 监听器可以通过事件读取条目内容
func TestArchiveEntryReadableDuringDispatch(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0, memfs.Entry{Name: "a/X.class", Modified: t0})
	a, errs, _ := newTestArchiveDetector(t, m)
	a.Scan()

	var content string
	a.OnEntryModified(func(ev ArchiveEvent) error {
		rc, err := ev.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		content = string(b)
		return err
	})
	m.WriteArchive("/w/lib.jar", t1, memfs.Entry{Name: "a/X.class", Modified: t1, Data: []byte("bytes")})
	a.Scan()

	assert.Equal(t, "bytes", content)
	assert.Empty(t, errs.all())
}

// TestArchiveNewEntryIsBaseline 已跟踪归档中新出现的条目只记入基线
func TestArchiveNewEntryIsBaseline(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0, memfs.Entry{Name: "X.class", Modified: t0})
	a, _, got := newTestArchiveDetector(t, m)
	a.Scan()

	m.WriteArchive("/w/lib.jar", t1,
		memfs.Entry{Name: "X.class", Modified: t0},
		memfs.Entry{Name: "Z.class", Modified: t1},
	)
	a.Scan()
	assert.Empty(t, *got)
	assert.Contains(t, a.Index("lib.jar"), "Z.class")

	// 之后 Z 的变化会被报告
	m.WriteArchive("/w/lib.jar", t1.Add(time.Second),
		memfs.Entry{Name: "X.class", Modified: t0},
		memfs.Entry{Name: "Z.class", Modified: t1.Add(time.Second)},
	)
	a.Scan()
	require.Len(t, *got, 1)
	assert.Equal(t, "Z.class", (*got)[0].Entry)
}

// TestArchiveDeletedDiscardsIndex 归档删除后索引被丢弃，重新出现时重新建立基线
func TestArchiveDeletedDiscardsIndex(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/sub/lib.jar", t0, memfs.Entry{Name: "X.class", Modified: t0})
	a, _, got := newTestArchiveDetector(t, m)
	a.Scan()
	require.NotNil(t, a.Index("sub/lib.jar"))

	m.Remove("/w/sub/lib.jar")
	assert.Equal(t, []FileEvent{{Path: "sub/lib.jar", Kind: Deleted}}, a.Scan())
	assert.Nil(t, a.Index("sub/lib.jar"))
	assert.Empty(t, a.Archives())

	m.WriteArchive("/w/sub/lib.jar", t1, memfs.Entry{Name: "X.class", Modified: t1})
	assert.Equal(t, []FileEvent{{Path: "sub/lib.jar", Kind: Added}}, a.Scan())
	assert.Empty(t, *got)
}

// TestArchiveOpenFailureKeepsStaleIndex 打开失败时跳过并保留旧索引，
// 下一轮在归档时间戳不变的情况下重试并补发条目事件
func TestArchiveOpenFailureKeepsStaleIndex(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0, memfs.Entry{Name: "X.class", Modified: t0})
	a, errs, got := newTestArchiveDetector(t, m)
	a.Scan()

	m.WriteArchive("/w/lib.jar", t1, memfs.Entry{Name: "X.class", Modified: t1})
	m.FailOpen("/w/lib.jar", errors.New("truncated"))
	assert.Equal(t, []FileEvent{{Path: "lib.jar", Kind: Modified}}, a.Scan())
	assert.Empty(t, *got)
	require.Len(t, errs.all(), 1)
	assert.Equal(t, OpOpenArchive, errs.all()[0].Op)
	assert.Equal(t, "lib.jar", errs.all()[0].Path)
	assert.True(t, a.Index("lib.jar")["X.class"].Equal(t0))

	// 仍然失败：每轮报告一次，继续保留旧索引
	assert.Empty(t, a.Scan())
	assert.Len(t, errs.all(), 2)
	assert.Empty(t, *got)

	m.FailOpen("/w/lib.jar", nil)
	assert.Empty(t, a.Scan())
	require.Len(t, *got, 1)
	assert.Equal(t, "X.class", (*got)[0].Entry)
	assert.True(t, a.Index("lib.jar")["X.class"].Equal(t1))

	assert.Empty(t, a.Scan())
	assert.Len(t, *got, 1)
	assert.Len(t, errs.all(), 2)
}

// TestArchiveAddedOpenFailure 首次打开失败时不建立索引，下一轮重试时建立基线
func TestArchiveAddedOpenFailure(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0, memfs.Entry{Name: "X.class", Modified: t0})
	m.FailOpen("/w/lib.jar", fs.ErrPermission)
	a, errs, got := newTestArchiveDetector(t, m)

	assert.Equal(t, []FileEvent{{Path: "lib.jar", Kind: Added}}, a.Scan())
	assert.Nil(t, a.Index("lib.jar"))
	assert.Len(t, errs.all(), 1)

	m.FailOpen("/w/lib.jar", nil)
	assert.Empty(t, a.Scan())
	assert.Empty(t, *got)
	assert.True(t, a.Index("lib.jar")["X.class"].Equal(t0))

	m.WriteArchive("/w/lib.jar", t1, memfs.Entry{Name: "X.class", Modified: t1})
	a.Scan()
	require.Len(t, *got, 1)
	assert.Equal(t, "X.class", (*got)[0].Entry)
}

// TestArchiveDeletedWhilePending 等待重试的归档被删除后不再重试
func TestArchiveDeletedWhilePending(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0, memfs.Entry{Name: "X.class", Modified: t0})
	m.FailOpen("/w/lib.jar", fs.ErrPermission)
	a, errs, _ := newTestArchiveDetector(t, m)
	a.Scan()
	require.Len(t, errs.all(), 1)

	m.Remove("/w/lib.jar")
	assert.Equal(t, []FileEvent{{Path: "lib.jar", Kind: Deleted}}, a.Scan())
	assert.Empty(t, a.Scan())
	assert.Len(t, errs.all(), 1)
	assert.Nil(t, a.Index("lib.jar"))
}

// TestArchiveDuplicateEntryNames 同名条目只取第一个，不会反复报告修改
func TestArchiveDuplicateEntryNames(t *testing.T) {
	m := memfs.New()
	dup := []memfs.Entry{
		{Name: "X.class", Modified: t0},
		{Name: "X.class", Modified: t1},
	}
	m.WriteArchive("/w/lib.jar", t0, dup...)
	a, _, got := newTestArchiveDetector(t, m)
	a.Scan()
	assert.True(t, a.Index("lib.jar")["X.class"].Equal(t0))

	m.WriteArchive("/w/lib.jar", t1, dup...)
	a.Scan()
	require.NoError(t, m.Touch("/w/lib.jar", t1.Add(time.Second)))
	a.Scan()
	assert.Empty(t, *got)
	assert.True(t, a.Index("lib.jar")["X.class"].Equal(t0))
}

// TestArchiveEntryListenerError 条目监听器出错时报告条目名，其它条目照常分发
func TestArchiveEntryListenerError(t *testing.T) {
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0,
		memfs.Entry{Name: "X.class", Modified: t0},
		memfs.Entry{Name: "Y.class", Modified: t0},
	)
	errs := &errorLog{}
	a, err := NewArchiveDetector(ArchiveConfig{Root: "/w", FS: m, Errors: errs})
	require.NoError(t, err)

	var seen []string
	a.OnEntryModified(func(ev ArchiveEvent) error {
		seen = append(seen, ev.Entry)
		if ev.Entry == "X.class" {
			return errors.New("redefine failed")
		}
		return nil
	})
	a.Scan()

	m.WriteArchive("/w/lib.jar", t1,
		memfs.Entry{Name: "X.class", Modified: t1},
		memfs.Entry{Name: "Y.class", Modified: t1},
	)
	a.Scan()
	assert.Equal(t, []string{"X.class", "Y.class"}, seen)
	require.Len(t, errs.all(), 1)
	assert.Equal(t, OpListener, errs.all()[0].Op)
	assert.Equal(t, "X.class", errs.all()[0].Entry)
	assert.Equal(t, "listener lib.jar!X.class: redefine failed", errs.all()[0].Error())
}

// TestArchiveIgnoresOtherFiles 只有归档扩展名的文件会被打开
func TestArchiveIgnoresOtherFiles(t *testing.T) {
	m := memfs.New()
	m.WriteFile("/w/readme.txt", nil, t0)
	m.WriteFile("/w/A.class", nil, t0)
	a, errs, _ := newTestArchiveDetector(t, m)

	assert.Empty(t, a.Scan())
	assert.Empty(t, errs.all())
	assert.Equal(t, "jar", a.Files().Extension())
}
