package vfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// OS 是基于本地磁盘的 FS 实现
type OS struct{}

var (
	_ FS       = OS{}
	_ Resolver = OS{}
)

func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (OS) EvalSymlinks(name string) (string, error) {
	return filepath.EvalSymlinks(name)
}

func (OS) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// OpenArchive 以 zip 格式打开归档(jar 也是 zip)
func (OS) OpenArchive(name string) (Archive, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, err
	}
	a := &zipArchive{
		path:   name,
		rc:     rc,
		byName: make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		a.entries = append(a.entries, ArchiveEntry{Name: f.Name, Modified: f.Modified})
		a.byName[f.Name] = f
	}
	return a, nil
}

type zipArchive struct {
	path    string
	rc      *zip.ReadCloser
	entries []ArchiveEntry
	byName  map[string]*zip.File
}

func (a *zipArchive) Path() string { return a.path }

func (a *zipArchive) Entries() []ArchiveEntry { return a.entries }

func (a *zipArchive) Open(entry string) (io.ReadCloser, error) {
	f, ok := a.byName[entry]
	if !ok {
		return nil, fmt.Errorf("entry %s not found in %s: %w", entry, a.path, fs.ErrNotExist)
	}
	return f.Open()
}

func (a *zipArchive) Close() error {
	return a.rc.Close()
}
