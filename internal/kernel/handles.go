package kernel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// HandleMode is what a handle is allowed to be used for.
type HandleMode string

const (
	ModeRead  HandleMode = "read"
	ModeWrite HandleMode = "write"
)

// ParseHandleMode validates a caller-supplied mode string. Empty means
// read.
func ParseHandleMode(s string) (HandleMode, error) {
	switch HandleMode(s) {
	case ModeRead, ModeWrite:
		return HandleMode(s), nil
	case "":
		return ModeRead, nil
	}
	return "", vfs.NewError(vfs.CodeInvalidPath, "open-handle", s)
}

// Handle is a tracked, revocable reference to an open path. The kernel
// owns the table exclusively; an id absent from the table is invalid
// for every subsequent operation.
type Handle struct {
	ID       string     `json:"id"`
	Path     vfs.Path   `json:"path"`
	Mode     HandleMode `json:"mode"`
	Owner    string     `json:"owner,omitempty"`
	OpenedAt time.Time  `json:"openedAt"`
}

// OpenHandle registers a new handle on p and returns its descriptor.
// A read handle requires the target to exist; a write handle may point
// at a path that will be created later.
func (k *Kernel) OpenHandle(ctx context.Context, p vfs.Path, mode HandleMode, owner string) (Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.checkState("open-handle", p.String()); err != nil {
		return Handle{}, err
	}
	if mode != ModeRead && mode != ModeWrite {
		return Handle{}, vfs.NewError(vfs.CodeInvalidPath, "open-handle", p.String())
	}
	a, err := k.adapter("open-handle", p)
	if err != nil {
		return Handle{}, err
	}
	if mode == ModeRead {
		ok, err := a.Exists(ctx, p)
		if err != nil {
			return Handle{}, err
		}
		if !ok {
			return Handle{}, vfs.NewError(vfs.CodeNotFound, "open-handle", p.String())
		}
	}
	h := Handle{
		ID:       uuid.NewString(),
		Path:     p,
		Mode:     mode,
		Owner:    owner,
		OpenedAt: time.Now().UTC(),
	}
	k.handles[h.ID] = h
	return h, nil
}

// CloseHandle removes a handle from the table and returns its final
// descriptor. Unknown ids fail NotFound.
func (k *Kernel) CloseHandle(id string) (Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.checkState("close-handle", id); err != nil {
		return Handle{}, err
	}
	h, ok := k.handles[id]
	if !ok {
		return Handle{}, vfs.NewError(vfs.CodeNotFound, "close-handle", id)
	}
	delete(k.handles, id)
	return h, nil
}

// ShareHandle duplicates an open handle for another owner under a
// fresh id. The original stays open and unchanged.
func (k *Kernel) ShareHandle(id, owner string) (Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.checkState("share-handle", id); err != nil {
		return Handle{}, err
	}
	src, ok := k.handles[id]
	if !ok {
		return Handle{}, vfs.NewError(vfs.CodeNotFound, "share-handle", id)
	}
	dup := src
	dup.ID = uuid.NewString()
	dup.Owner = owner
	dup.OpenedAt = time.Now().UTC()
	k.handles[dup.ID] = dup
	return dup, nil
}

// Handle looks up one handle without touching the lock state. It is an
// introspection surface, not a capability call.
func (k *Kernel) Handle(id string) (Handle, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	h, ok := k.handles[id]
	return h, ok
}
