// Package memfs implements the volatile-temp backend: an in-memory
// tree that lives exactly as long as the process. Nothing here survives
// a restart, and a CLEAR logout empties it wholesale.
package memfs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

type node struct {
	name     string
	kind     vfs.EntryKind
	data     []byte
	mime     string
	created  time.Time
	modified time.Time
	children map[string]*node
}

func newDir(name string, now time.Time) *node {
	return &node{
		name:     name,
		kind:     vfs.KindDirectory,
		created:  now,
		modified: now,
		children: make(map[string]*node),
	}
}

// FS is the in-memory adapter. Safe for concurrent use.
type FS struct {
	mu     sync.RWMutex
	scheme vfs.Scheme
	root   *node
}

// New returns an empty volatile filesystem serving scheme.
func New(scheme vfs.Scheme) *FS {
	return &FS{
		scheme: scheme,
		root:   newDir("", time.Now()),
	}
}

func (f *FS) Scheme() vfs.Scheme { return f.scheme }

// resolve walks to the node at p. Callers hold f.mu.
func (f *FS) resolve(p vfs.Path) (*node, bool) {
	cur := f.root
	for _, seg := range p.Segments() {
		if cur.children == nil {
			return nil, false
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// materialize walks to the parent of p, creating missing directories.
// Callers hold f.mu for writing.
func (f *FS) materialize(p vfs.Path, now time.Time) (*node, error) {
	cur := f.root
	for _, seg := range p.Dir().Segments() {
		next, ok := cur.children[seg]
		if !ok {
			next = newDir(seg, now)
			cur.children[seg] = next
		}
		if next.kind != vfs.KindDirectory {
			return nil, vfs.WrapError(vfs.CodeInvalidPath, "write", p.String(), errors.New("parent is a file"))
		}
		cur = next
	}
	return cur, nil
}

func (f *FS) entryFor(n *node, p vfs.Path) vfs.Entry {
	return vfs.Entry{
		Name:     n.name,
		Path:     p.String(),
		Kind:     n.kind,
		Size:     int64(len(n.data)),
		MIME:     n.mime,
		Created:  n.created,
		Modified: n.modified,
	}
}

func (f *FS) List(ctx context.Context, p vfs.Path) ([]vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "list", p.String(), err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir, ok := f.resolve(p)
	if !ok {
		return nil, vfs.NewError(vfs.CodeNotFound, "list", p.String())
	}
	if dir.kind != vfs.KindDirectory {
		return nil, vfs.WrapError(vfs.CodeInvalidPath, "list", p.String(), errors.New("not a directory"))
	}

	entries := make([]vfs.Entry, 0, len(dir.children))
	for name, child := range dir.children {
		childPath, err := p.Join(name)
		if err != nil {
			continue
		}
		entries = append(entries, f.entryFor(child, childPath))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (f *FS) Stat(ctx context.Context, p vfs.Path) (vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return vfs.Entry{}, vfs.WrapError(vfs.CodeStorageError, "stat", p.String(), err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.resolve(p)
	if !ok {
		return vfs.Entry{}, vfs.NewError(vfs.CodeNotFound, "stat", p.String())
	}
	return f.entryFor(n, p), nil
}

func (f *FS) Read(ctx context.Context, p vfs.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "read", p.String(), err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.resolve(p)
	if !ok {
		return nil, vfs.NewError(vfs.CodeNotFound, "read", p.String())
	}
	if n.kind == vfs.KindDirectory {
		return nil, vfs.WrapError(vfs.CodeInvalidPath, "read", p.String(), errors.New("is a directory"))
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

func (f *FS) Write(ctx context.Context, p vfs.Path, data []byte) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, "write", p.String(), err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	parent, err := f.materialize(p, now)
	if err != nil {
		return err
	}

	name := p.Base()
	if existing, ok := parent.children[name]; ok && existing.kind == vfs.KindDirectory {
		return vfs.WrapError(vfs.CodeInvalidPath, "write", p.String(), errors.New("is a directory"))
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	n := &node{
		name:     name,
		kind:     vfs.KindFile,
		data:     stored,
		mime:     mimetype.Detect(stored).String(),
		created:  now,
		modified: now,
	}
	if existing, ok := parent.children[name]; ok {
		n.created = existing.created // overwrite keeps creation time
	}
	parent.children[name] = n
	return nil
}

func (f *FS) Mkdir(ctx context.Context, p vfs.Path) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, "mkdir", p.String(), err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.resolve(p); ok {
		return vfs.NewError(vfs.CodeAlreadyExists, "mkdir", p.String())
	}
	now := time.Now()
	parent, err := f.materialize(p, now)
	if err != nil {
		return err
	}
	parent.children[p.Base()] = newDir(p.Base(), now)
	return nil
}

func (f *FS) Delete(ctx context.Context, p vfs.Path) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(vfs.CodeStorageError, "delete", p.String(), err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, ok := f.resolve(p.Dir())
	if !ok {
		return vfs.NewError(vfs.CodeNotFound, "delete", p.String())
	}
	if _, ok := parent.children[p.Base()]; !ok {
		return vfs.NewError(vfs.CodeNotFound, "delete", p.String())
	}
	delete(parent.children, p.Base())
	parent.modified = time.Now()
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
	f.mu.Lock()
	defer f.mu.Unlock()

	srcParent, ok := f.resolve(src.Dir())
	if !ok {
		return vfs.NewError(vfs.CodeNotFound, op, src.String())
	}
	n, ok := srcParent.children[src.Base()]
	if !ok {
		return vfs.NewError(vfs.CodeNotFound, op, src.String())
	}
	if _, taken := f.resolve(dst); taken {
		return vfs.NewError(vfs.CodeAlreadyExists, op, dst.String())
	}

	now := time.Now()
	dstParent, err := f.materialize(dst, now)
	if err != nil {
		return err
	}
	delete(srcParent.children, src.Base())
	n.name = dst.Base()
	n.modified = now
	dstParent.children[dst.Base()] = n
	return nil
}

func (f *FS) Exists(ctx context.Context, p vfs.Path) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, vfs.WrapError(vfs.CodeStorageError, "exists", p.String(), err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.resolve(p)
	return ok, nil
}

func (f *FS) Wipe(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, vfs.WrapError(vfs.CodeStorageError, "wipe", "", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := countNodes(f.root) - 1 // everything but the root itself
	f.root = newDir("", time.Now())
	return removed, nil
}

func countNodes(n *node) int {
	total := 1
	for _, child := range n.children {
		total += countNodes(child)
	}
	return total
}
