// Package policy turns intents into decisions. Evaluation does no I/O
// and reads no clock, so a decision depends only on the intent and the
// engine's configuration, and the same intent always yields the same
// verdict.
package policy

import (
	"fmt"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// Action is the closed set of operations an intent may request. The
// boundary parses into this enum and rejects everything else; nothing
// downstream dispatches on raw strings.
type Action string

const (
	ActionRead        Action = "read"
	ActionWrite       Action = "write"
	ActionDelete      Action = "delete"
	ActionList        Action = "list"
	ActionMkdir       Action = "mkdir"
	ActionStat        Action = "stat"
	ActionRename      Action = "rename"
	ActionMove        Action = "move"
	ActionCopy        Action = "copy"
	ActionOpenHandle  Action = "open-handle"
	ActionCloseHandle Action = "close-handle"
	ActionShareHandle Action = "share-handle"
)

// Actions returns the closed action set.
func Actions() []Action {
	return []Action{
		ActionRead, ActionWrite, ActionDelete, ActionList, ActionMkdir,
		ActionStat, ActionRename, ActionMove, ActionCopy,
		ActionOpenHandle, ActionCloseHandle, ActionShareHandle,
	}
}

// Valid reports membership in the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionDelete, ActionList, ActionMkdir,
		ActionStat, ActionRename, ActionMove, ActionCopy,
		ActionOpenHandle, ActionCloseHandle, ActionShareHandle:
		return true
	}
	return false
}

// ParseAction validates a wire string into the enum.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", raw)
	}
	return a, nil
}

// Mutating reports whether the action belongs to the set a read-only
// scheme refuses: write, delete, move, copy, rename, mkdir.
func (a Action) Mutating() bool {
	switch a {
	case ActionWrite, ActionDelete, ActionMove, ActionCopy, ActionRename, ActionMkdir:
		return true
	}
	return false
}

// NeedsDest reports whether the action addresses a destination path.
func (a Action) NeedsDest() bool {
	switch a {
	case ActionRename, ActionMove, ActionCopy:
		return true
	}
	return false
}

// Intent is one requested operation. Treat it as immutable once built:
// the gateway constructs it, the engine only reads it.
type Intent struct {
	Action  Action
	Path    vfs.Path
	Dest    vfs.Path // zero when the action has no destination
	Size    int64
	Content []byte
}

// Effect is the decision outcome. Two values, never a third.
type Effect string

const (
	Allow Effect = "ALLOW"
	Deny  Effect = "DENY"
)

// Decision is the engine's verdict on one intent.
type Decision struct {
	Outcome Effect   `json:"outcome"`
	Code    vfs.Code `json:"errorCode,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Allowed reports whether execution may proceed.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

func allowed() Decision {
	return Decision{Outcome: Allow}
}

func denied(code vfs.Code, reason string) Decision {
	return Decision{Outcome: Deny, Code: code, Reason: reason}
}

// DefaultQuota is the per-operation size ceiling: 50 MiB.
const DefaultQuota int64 = 50 * 1024 * 1024

// Engine applies the ordered rule list.
type Engine struct {
	quota int64
}

// NewEngine builds an engine with the given per-operation quota;
// zero or negative selects the default.
func NewEngine(quota int64) *Engine {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Engine{quota: quota}
}

// Quota reports the configured ceiling.
func (e *Engine) Quota() int64 { return e.quota }

// Evaluate applies the rules in fixed order and returns the first
// match:
//
//  1. a mutating action targeting the read-only-system scheme, or a
//     destination landing on it, is denied;
//  2. a size above the per-operation quota is denied;
//  3. everything else is allowed.
//
// Unrecognized actions never reach this point: ParseAction already
// refused them at the boundary.
func (e *Engine) Evaluate(in Intent) Decision {
	if in.Action.Mutating() && in.Path.Scheme() == vfs.SchemeSystem {
		return denied(vfs.CodeAccessDenied,
			fmt.Sprintf("scheme read-only-system denies %s", in.Action))
	}
	if in.Action.NeedsDest() && !in.Dest.IsZero() && in.Dest.Scheme() == vfs.SchemeSystem {
		return denied(vfs.CodeAccessDenied,
			fmt.Sprintf("destination on read-only-system denies %s", in.Action))
	}
	if in.Size > e.quota {
		return denied(vfs.CodeAccessDenied,
			fmt.Sprintf("size %d exceeds per-operation quota %d", in.Size, e.quota))
	}
	return allowed()
}
