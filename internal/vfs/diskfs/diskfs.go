// Package diskfs implements the persistent-user backend on the host
// filesystem. Every virtual path maps into a single root directory;
// validated segments cannot address anything outside it. Writes are
// atomic: content lands in a temp file that is renamed into place, so
// a crash never leaves a half-written file at a visible path.
package diskfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FS is the disk-backed adapter. Safe for concurrent use; atomicity of
// individual operations is delegated to the host filesystem.
type FS struct {
	scheme vfs.Scheme
	root   string
}

// New creates the root directory if needed and returns the adapter.
func New(scheme vfs.Scheme, root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "mount", root, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "mount", root, err)
	}
	return &FS{scheme: scheme, root: abs}, nil
}

func (f *FS) Scheme() vfs.Scheme { return f.scheme }

// Root returns the host directory backing the mount.
func (f *FS) Root() string { return f.root }

// hostPath maps a virtual path into the root. Segments were validated
// at parse time, so the join cannot climb out.
func (f *FS) hostPath(p vfs.Path) string {
	return filepath.Join(append([]string{f.root}, p.Segments()...)...)
}

func mapOSError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return vfs.NewError(vfs.CodeNotFound, op, path)
	case errors.Is(err, fs.ErrExist):
		return vfs.NewError(vfs.CodeAlreadyExists, op, path)
	case errors.Is(err, fs.ErrPermission):
		return vfs.WrapError(vfs.CodeAccessDenied, op, path, err)
	default:
		return vfs.WrapError(vfs.CodeStorageError, op, path, err)
	}
}

func (f *FS) entryFor(p vfs.Path, info fs.FileInfo, withMIME bool) vfs.Entry {
	e := vfs.Entry{
		Name:     p.Base(),
		Path:     p.String(),
		Kind:     vfs.KindFile,
		Size:     info.Size(),
		Created:  info.ModTime(), // host fs exposes no birth time portably
		Modified: info.ModTime(),
	}
	if info.IsDir() {
		e.Kind = vfs.KindDirectory
		e.Size = 0
	} else if withMIME {
		if mt, err := mimetype.DetectFile(f.hostPath(p)); err == nil {
			e.MIME = mt.String()
		}
	}
	return e
}

func (f *FS) List(ctx context.Context, p vfs.Path) ([]vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "list", p.String(), err)
	}
	host := f.hostPath(p)
	children, err := os.ReadDir(host)
	if err != nil {
		if info, statErr := os.Stat(host); statErr == nil && !info.IsDir() {
			return nil, vfs.WrapError(vfs.CodeInvalidPath, "list", p.String(), errors.New("not a directory"))
		}
		return nil, mapOSError("list", p.String(), err)
	}

	entries := make([]vfs.Entry, 0, len(children))
	for _, child := range children {
		childPath, err := p.Join(child.Name())
		if err != nil {
			continue
		}
		info, err := child.Info()
		if err != nil {
			continue
		}
		entries = append(entries, f.entryFor(childPath, info, true))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (f *FS) Stat(ctx context.Context, p vfs.Path) (vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return vfs.Entry{}, vfs.WrapError(vfs.CodeStorageError, "stat", p.String(), err)
	}
	info, err := os.Stat(f.hostPath(p))
	if err != nil {
		return vfs.Entry{}, mapOSError("stat", p.String(), err)
	}
	return f.entryFor(p, info, true), nil
}

func (f *FS) Read(ctx context.Context, p vfs.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "read", p.String(), err)
	}
	host := f.hostPath(p)
	if info, err := os.Stat(host); err == nil && info.IsDir() {
		return nil, vfs.WrapError(vfs.CodeInvalidPath, "read", p.String(), errors.New("is a directory"))
	}
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, mapOSError("read", p.String(), err)
	}
	return data, nil
}

// Write stores data atomically: temp file in the destination directory,
// then rename over the final name.
func (f *FS) Write(ctx context.Context, p vfs.Path, data []byte) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, "write", p.String(), err)
	}
	host := f.hostPath(p)
	if info, err := os.Stat(host); err == nil && info.IsDir() {
		return vfs.WrapError(vfs.CodeInvalidPath, "write", p.String(), errors.New("is a directory"))
	}

	dir := filepath.Dir(host)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return mapOSError("write", p.String(), err)
	}

	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return mapOSError("write", p.String(), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return mapOSError("write", p.String(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return mapOSError("write", p.String(), err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return mapOSError("write", p.String(), err)
	}
	if err := os.Rename(tmpName, host); err != nil {
		os.Remove(tmpName)
		return mapOSError("write", p.String(), err)
	}
	return nil
}

func (f *FS) Mkdir(ctx context.Context, p vfs.Path) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, "mkdir", p.String(), err)
	}
	host := f.hostPath(p)
	if _, err := os.Stat(host); err == nil {
		return vfs.NewError(vfs.CodeAlreadyExists, "mkdir", p.String())
	}
	if err := os.MkdirAll(host, dirPerm); err != nil {
		return mapOSError("mkdir", p.String(), err)
	}
	return nil
}

func (f *FS) Delete(ctx context.Context, p vfs.Path) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, "delete", p.String(), err)
	}
	host := f.hostPath(p)
	if _, err := os.Stat(host); err != nil {
		return mapOSError("delete", p.String(), err)
	}
	if err := os.RemoveAll(host); err != nil {
		return mapOSError("delete", p.String(), err)
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, src, dst vfs.Path) error {
	return f.relocate(ctx, "rename", src, dst)
}

func (f *FS) Move(ctx context.Context, src, dst vfs.Path) error {
	return f.relocate(ctx, "move", src, dst)
}

func (f *FS) relocate(ctx context.Context, op string, src, dst vfs.Path) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, op, src.String(), err)
	}
	if err := vfs.CheckMoveBounds(op, src, dst); err != nil {
		return err
	}
	srcHost, dstHost := f.hostPath(src), f.hostPath(dst)
	if _, err := os.Stat(srcHost); err != nil {
		return mapOSError(op, src.String(), err)
	}
	if _, err := os.Stat(dstHost); err == nil {
		return vfs.NewError(vfs.CodeAlreadyExists, op, dst.String())
	}
	if err := os.MkdirAll(filepath.Dir(dstHost), dirPerm); err != nil {
		return mapOSError(op, dst.String(), err)
	}
	if err := os.Rename(srcHost, dstHost); err != nil {
		return mapOSError(op, src.String(), err)
	}
	return nil
}

func (f *FS) Exists(ctx context.Context, p vfs.Path) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, vfs.WrapError(vfs.CodeStorageError, "exists", p.String(), err)
	}
	if _, err := os.Stat(f.hostPath(p)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapOSError("exists", p.String(), err)
	}
	return true, nil
}

// Wipe removes everything under the root but keeps the root itself, so
// the mount stays usable afterwards.
func (f *FS) Wipe(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, vfs.WrapError(vfs.CodeStorageError, "wipe", "", err)
	}

	removed := 0
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, f.root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || path == f.root {
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return 0, vfs.WrapError(vfs.CodeStorageError, "wipe", "", err)
	}

	children, err := os.ReadDir(f.root)
	if err != nil {
		return 0, mapOSError("wipe", "", err)
	}
	for _, child := range children {
		if err := os.RemoveAll(filepath.Join(f.root, child.Name())); err != nil {
			return 0, mapOSError("wipe", child.Name(), err)
		}
	}
	return removed, nil
}

// Usage walks the mount and reports file count and total bytes. Feeds
// the health endpoint; not part of the adapter contract.
func (f *FS) Usage(ctx context.Context) (files int, bytes int64, err error) {
	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, f.root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files++
		bytes += info.Size()
		return nil
	})
	if walkErr != nil {
		return 0, 0, vfs.WrapError(vfs.CodeStorageError, "usage", "", walkErr)
	}
	return files, bytes, nil
}
