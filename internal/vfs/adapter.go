package vfs

import (
	"context"
	"time"
)

// EntryKind discriminates listed entries.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// Entry is the metadata surface returned by List and Stat.
type Entry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Kind     EntryKind `json:"kind"`
	Size     int64     `json:"size"`
	MIME     string    `json:"mime,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// Adapter is the capability contract every backend implements. The ten
// capabilities are a closed set; a backend has no surface beyond them.
//
// Implementations must be safe for concurrent use. A read-only backend
// returns AccessDenied from every mutating capability regardless of the
// caller; the guard lives at the adapter boundary, not only in the
// policy layer above it.
type Adapter interface {
	// Scheme identifies the mount this adapter serves.
	Scheme() Scheme

	// List returns the direct children of a directory.
	List(ctx context.Context, p Path) ([]Entry, error)

	// Stat returns metadata for a file or directory.
	Stat(ctx context.Context, p Path) (Entry, error)

	// Read returns the full contents of a file.
	Read(ctx context.Context, p Path) ([]byte, error)

	// Write stores data at p, overwriting any existing file
	// (last-write-wins) and materializing parent directories lazily.
	Write(ctx context.Context, p Path, data []byte) error

	// Mkdir creates a directory; AlreadyExists if p is taken.
	Mkdir(ctx context.Context, p Path) error

	// Delete removes a file or directory subtree.
	Delete(ctx context.Context, p Path) error

	// Rename changes the final segment: src and dst share a parent.
	Rename(ctx context.Context, src, dst Path) error

	// Move relocates src to dst within the same scheme.
	Move(ctx context.Context, src, dst Path) error

	// Exists reports presence without classifying kind.
	Exists(ctx context.Context, p Path) (bool, error)

	// Wipe removes every entry and reports how many were removed.
	Wipe(ctx context.Context) (int, error)
}

// CheckMoveBounds validates the shared preconditions of Rename and
// Move: both within one scheme, rename only within one directory.
// Backends call it before touching storage.
func CheckMoveBounds(op string, src, dst Path) error {
	if src.Scheme() != dst.Scheme() {
		return NewError(CodeInvalidPath, op, src.String()+" -> "+dst.String())
	}
	if op == "rename" && !src.Dir().Equal(dst.Dir()) {
		return NewError(CodeInvalidPath, op, src.String()+" -> "+dst.String())
	}
	return nil
}
