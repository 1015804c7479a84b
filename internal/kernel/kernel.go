// Package kernel is the single point of contact for storage. It owns
// the scheme→adapter table, the ACTIVE/LOCKED state machine, and the
// open-handle table. Callers never see an adapter; every capability
// call goes through a Kernel method, which fails fast with AuthRequired
// while the system is locked.
package kernel

import (
	"context"
	"sort"
	"sync"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// State is the system lock state.
type State string

const (
	StateActive State = "ACTIVE"
	StateLocked State = "LOCKED"
)

// LogoutMode selects how much a logout tears down.
type LogoutMode string

const (
	// LogoutSoftLock closes handles and locks; storage is untouched.
	LogoutSoftLock LogoutMode = "SOFT_LOCK"

	// LogoutClear additionally wipes the temp and user mounts before
	// locking. The system mount is never wiped.
	LogoutClear LogoutMode = "CLEAR"
)

// ParseLogoutMode validates a caller-supplied mode string.
func ParseLogoutMode(s string) (LogoutMode, error) {
	switch LogoutMode(s) {
	case LogoutSoftLock, LogoutClear:
		return LogoutMode(s), nil
	case "":
		return LogoutSoftLock, nil
	}
	return "", vfs.NewError(vfs.CodeInvalidPath, "logout", s)
}

// LogoutReport says what a logout actually did.
type LogoutReport struct {
	HandlesClosed int      `json:"handlesClosed"`
	WipedSchemes  []string `json:"wipedSchemes"`
}

// Stats is a point-in-time snapshot for health and status surfaces.
type Stats struct {
	State       State    `json:"state"`
	OpenHandles int      `json:"openHandles"`
	Mounts      []string `json:"mounts"`
}

// Kernel routes capability calls to the adapter mounted for the path's
// scheme. The mount table is fixed at construction; the lock state and
// the handle table are the only mutable fields, and both change only
// under the kernel mutex. Capability methods hold a read lock across
// the adapter call, so Lock and Logout wait for in-flight I/O instead
// of interleaving with it.
type Kernel struct {
	mu      sync.RWMutex
	state   State
	mounts  map[vfs.Scheme]vfs.Adapter
	handles map[string]Handle
}

// New mounts one adapter per scheme. There is no remount surface; the
// table lives as long as the kernel.
func New(user, temp, system vfs.Adapter) *Kernel {
	return &Kernel{
		state: StateActive,
		mounts: map[vfs.Scheme]vfs.Adapter{
			vfs.SchemeUser:   user,
			vfs.SchemeTemp:   temp,
			vfs.SchemeSystem: system,
		},
		handles: make(map[string]Handle),
	}
}

// State returns the current lock state.
func (k *Kernel) State() State {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// Locked reports whether the system is LOCKED.
func (k *Kernel) Locked() bool { return k.State() == StateLocked }

// Snapshot returns current stats.
func (k *Kernel) Snapshot() Stats {
	k.mu.RLock()
	defer k.mu.RUnlock()
	mounts := make([]string, 0, len(k.mounts))
	for _, s := range vfs.Schemes() {
		if _, ok := k.mounts[s]; ok {
			mounts = append(mounts, string(s))
		}
	}
	return Stats{State: k.state, OpenHandles: len(k.handles), Mounts: mounts}
}

// checkState fails fast with AuthRequired while LOCKED. Callers hold
// k.mu in either mode.
func (k *Kernel) checkState(op, path string) error {
	if k.state == StateLocked {
		return vfs.NewError(vfs.CodeAuthRequired, op, path)
	}
	return nil
}

// adapter resolves the mount for p's scheme. Callers hold k.mu.
func (k *Kernel) adapter(op string, p vfs.Path) (vfs.Adapter, error) {
	a, ok := k.mounts[p.Scheme()]
	if !ok {
		return nil, vfs.NewError(vfs.CodeUnknownScheme, op, p.String())
	}
	return a, nil
}

// List returns the direct children of the directory at p.
func (k *Kernel) List(ctx context.Context, p vfs.Path) ([]vfs.Entry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("list", p.String()); err != nil {
		return nil, err
	}
	a, err := k.adapter("list", p)
	if err != nil {
		return nil, err
	}
	return a.List(ctx, p)
}

// Stat returns metadata for the file or directory at p.
func (k *Kernel) Stat(ctx context.Context, p vfs.Path) (vfs.Entry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("stat", p.String()); err != nil {
		return vfs.Entry{}, err
	}
	a, err := k.adapter("stat", p)
	if err != nil {
		return vfs.Entry{}, err
	}
	return a.Stat(ctx, p)
}

// Read returns the full contents of the file at p.
func (k *Kernel) Read(ctx context.Context, p vfs.Path) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("read", p.String()); err != nil {
		return nil, err
	}
	a, err := k.adapter("read", p)
	if err != nil {
		return nil, err
	}
	return a.Read(ctx, p)
}

// Write stores data at p, last-write-wins.
func (k *Kernel) Write(ctx context.Context, p vfs.Path, data []byte) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("write", p.String()); err != nil {
		return err
	}
	a, err := k.adapter("write", p)
	if err != nil {
		return err
	}
	return a.Write(ctx, p, data)
}

// Mkdir creates a directory at p.
func (k *Kernel) Mkdir(ctx context.Context, p vfs.Path) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("mkdir", p.String()); err != nil {
		return err
	}
	a, err := k.adapter("mkdir", p)
	if err != nil {
		return err
	}
	return a.Mkdir(ctx, p)
}

// Delete removes the file or directory subtree at p.
func (k *Kernel) Delete(ctx context.Context, p vfs.Path) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("delete", p.String()); err != nil {
		return err
	}
	a, err := k.adapter("delete", p)
	if err != nil {
		return err
	}
	return a.Delete(ctx, p)
}

// Rename changes the final segment of src to dst within one directory.
func (k *Kernel) Rename(ctx context.Context, src, dst vfs.Path) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("rename", src.String()); err != nil {
		return err
	}
	if src.Scheme() != dst.Scheme() {
		return vfs.NewError(vfs.CodeInvalidPath, "rename", dst.String())
	}
	a, err := k.adapter("rename", src)
	if err != nil {
		return err
	}
	return a.Rename(ctx, src, dst)
}

// Move relocates src to dst within the same scheme. Relocation across
// schemes goes through Copy plus Delete; the adapters only ever see
// pairs inside their own mount.
func (k *Kernel) Move(ctx context.Context, src, dst vfs.Path) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("move", src.String()); err != nil {
		return err
	}
	if src.Scheme() != dst.Scheme() {
		return vfs.NewError(vfs.CodeInvalidPath, "move", dst.String())
	}
	a, err := k.adapter("move", src)
	if err != nil {
		return err
	}
	return a.Move(ctx, src, dst)
}

// Copy duplicates a file by reading the source and writing the
// destination. It is the one relocation that may cross schemes, which
// is why it is composed here instead of inside an adapter.
func (k *Kernel) Copy(ctx context.Context, src, dst vfs.Path) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("copy", src.String()); err != nil {
		return err
	}
	from, err := k.adapter("copy", src)
	if err != nil {
		return err
	}
	to, err := k.adapter("copy", dst)
	if err != nil {
		return err
	}
	data, err := from.Read(ctx, src)
	if err != nil {
		return err
	}
	return to.Write(ctx, dst, data)
}

// Exists reports whether anything lives at p.
func (k *Kernel) Exists(ctx context.Context, p vfs.Path) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("exists", p.String()); err != nil {
		return false, err
	}
	a, err := k.adapter("exists", p)
	if err != nil {
		return false, err
	}
	return a.Exists(ctx, p)
}

// Wipe clears every entry under one scheme and reports how many were
// removed. The system mount refuses at its own boundary.
func (k *Kernel) Wipe(ctx context.Context, scheme vfs.Scheme) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.checkState("wipe", string(scheme)); err != nil {
		return 0, err
	}
	a, ok := k.mounts[scheme]
	if !ok {
		return 0, vfs.NewError(vfs.CodeUnknownScheme, "wipe", string(scheme))
	}
	return a.Wipe(ctx)
}

// Lock closes every open handle and transitions to LOCKED, returning
// the number of handles closed so the caller can record the closure.
// Locking an already-locked kernel closes nothing and stays LOCKED.
func (k *Kernel) Lock() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := len(k.handles)
	k.handles = make(map[string]Handle)
	k.state = StateLocked
	return n
}

// Unlock returns the system to ACTIVE.
func (k *Kernel) Unlock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = StateActive
}

// Logout applies the lifecycle policy for a departing session:
// SOFT_LOCK closes handles and locks, CLEAR first wipes the temp and
// user mounts in that order. Wiping an already-empty mount succeeds,
// so CLEAR is idempotent; the system mount is never touched. The lock
// transition happens even when a wipe fails.
func (k *Kernel) Logout(ctx context.Context, mode LogoutMode) (LogoutReport, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	report := LogoutReport{WipedSchemes: []string{}}
	var firstErr error
	if mode == LogoutClear {
		for _, scheme := range []vfs.Scheme{vfs.SchemeTemp, vfs.SchemeUser} {
			if _, err := k.mounts[scheme].Wipe(ctx); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			report.WipedSchemes = append(report.WipedSchemes, string(scheme))
		}
	}
	report.HandlesClosed = len(k.handles)
	k.handles = make(map[string]Handle)
	k.state = StateLocked
	return report, firstErr
}

// Handles returns a copy of the open-handle table, oldest first.
func (k *Kernel) Handles() []Handle {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Handle, 0, len(k.handles))
	for _, h := range k.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HandleCount returns the number of open handles.
func (k *Kernel) HandleCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.handles)
}
