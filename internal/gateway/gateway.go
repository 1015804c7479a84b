// Package gateway mediates every storage intent. Callers never touch
// the kernel or an adapter directly: an intent enters here, the policy
// engine rules on it, the kernel executes it, and the audit ledger
// seals the outcome. The gateway serializes that pipeline so ledger
// order is decision order even when transports submit concurrently.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/logging"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/monitoring"
	"github.com/gemimi2525-star/super-platform-sub003/internal/kernel"
	"github.com/gemimi2525-star/super-platform-sub003/internal/policy"
	"github.com/gemimi2525-star/super-platform-sub003/internal/shared/id"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// Request is one intent as submitted over the wire. Action and path
// arrive as raw strings; the gateway parses them into the closed enums
// and rejects everything outside them. Content is carried as a plain
// JSON string, matching the text-centric adapters behind the kernel.
type Request struct {
	Action   string `json:"action"`
	Path     string `json:"path,omitempty"`
	Dest     string `json:"destPath,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Content  string `json:"content,omitempty"`
	HandleID string `json:"handleId,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

// Response is the settled outcome of one intent. Decision is always
// present; Data only on success; Error and ErrorCode only when an
// allowed operation failed during execution.
type Response struct {
	Success   bool            `json:"success"`
	Data      any             `json:"data,omitempty"`
	Decision  policy.Decision `json:"decision"`
	TraceID   string          `json:"traceId"`
	OpID      string          `json:"opId,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode vfs.Code        `json:"errorCode,omitempty"`
}

// ListResult is the data payload of a list intent.
type ListResult struct {
	Entries []vfs.Entry `json:"entries"`
	Count   int         `json:"count"`
}

// ReadResult is the data payload of a read intent.
type ReadResult struct {
	Content string `json:"content"`
	Size    int64  `json:"size"`
}

// WriteResult is the data payload of a write intent.
type WriteResult struct {
	Path    string `json:"path"`
	Written int64  `json:"written"`
}

// PathResult is the data payload of mkdir and delete intents.
type PathResult struct {
	Path string `json:"path"`
}

// TransferResult is the data payload of rename, move, and copy.
type TransferResult struct {
	Path string `json:"path"`
	Dest string `json:"destPath"`
}

// LockReport describes a lock transition.
type LockReport struct {
	State         kernel.State `json:"state"`
	HandlesClosed int          `json:"handlesClosed"`
	TraceID       string       `json:"traceId"`
}

// UnlockReport describes an unlock transition.
type UnlockReport struct {
	State   kernel.State `json:"state"`
	TraceID string       `json:"traceId"`
}

// LogoutReport describes a logout: the resulting state, how many
// handles were force-closed, and which schemes were wiped.
type LogoutReport struct {
	State         kernel.State `json:"state"`
	Mode          string       `json:"mode"`
	HandlesClosed int          `json:"handlesClosed"`
	WipedSchemes  []string     `json:"wipedSchemes"`
	TraceID       string       `json:"traceId"`
}

// submission is one parsed intent plus the handle metadata the policy
// engine never sees.
type submission struct {
	intent   policy.Intent
	mode     kernel.HandleMode
	handleID string
	owner    string
}

// Gateway owns the evaluate-execute-audit pipeline.
type Gateway struct {
	mu      sync.Mutex
	kernel  *kernel.Kernel
	engine  *policy.Engine
	ledger  *audit.Ledger
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New builds a gateway over an unlocked kernel, a policy engine, and an
// open ledger. Metrics may be nil when no collector is registered.
func New(k *kernel.Kernel, engine *policy.Engine, ledger *audit.Ledger, log *logging.Logger, metrics *monitoring.Metrics) *Gateway {
	if log == nil {
		log = logging.NewNop()
	}
	return &Gateway{
		kernel:  k,
		engine:  engine,
		ledger:  ledger,
		log:     log,
		metrics: metrics,
	}
}

// Submit runs one intent through the full pipeline and returns its
// settled outcome. Every submission produces exactly one audit entry,
// whatever its fate: refused while locked, rejected at parse, denied by
// policy, or executed to success or failure.
//
// A locked kernel refuses before anything else. The request is not
// parsed and the policy engine is not consulted; the caller learns only
// that authentication is required.
func (g *Gateway) Submit(ctx context.Context, req Request) Response {
	g.mu.Lock()
	defer g.mu.Unlock()

	traceID := id.NewTraceID().String()
	started := time.Now()

	if g.kernel.Locked() {
		dec := policy.Decision{
			Outcome: policy.Deny,
			Code:    vfs.CodeAuthRequired,
			Reason:  "kernel is locked",
		}
		g.seal(audit.Record{
			TraceID:    traceID,
			Action:     req.Action,
			Capability: "gate",
			Path:       req.Path,
			Decision:   string(dec.Outcome),
			Result:     audit.ResultFailed,
			ErrorCode:  string(dec.Code),
		})
		g.observeIntent(metricAction(req.Action), dec, started)
		g.log.Info("intent refused while locked",
			zap.String("trace_id", traceID),
			zap.String("action", req.Action))
		return Response{Success: false, Decision: dec, TraceID: traceID}
	}

	action, err := policy.ParseAction(req.Action)
	if err != nil {
		// Unknown actions fail closed: they are denied, not errored.
		dec := policy.Decision{
			Outcome: policy.Deny,
			Code:    vfs.CodeAccessDenied,
			Reason:  err.Error(),
		}
		g.seal(audit.Record{
			TraceID:    traceID,
			Action:     req.Action,
			Capability: "gate",
			Path:       req.Path,
			Decision:   string(dec.Outcome),
			Result:     audit.ResultFailed,
			ErrorCode:  string(dec.Code),
		})
		g.observeIntent(metricAction(req.Action), dec, started)
		return Response{Success: false, Decision: dec, TraceID: traceID}
	}

	sub, err := g.parse(action, req)
	if err != nil {
		dec := policy.Decision{
			Outcome: policy.Deny,
			Code:    vfs.CodeOf(err),
			Reason:  err.Error(),
		}
		opID := newOpID(traceID, action, req.Path)
		g.seal(audit.Record{
			TraceID:    traceID,
			OpID:       opID,
			Action:     string(action),
			Capability: capabilityFor(action),
			Path:       req.Path,
			Decision:   string(dec.Outcome),
			Result:     audit.ResultFailed,
			ErrorCode:  string(dec.Code),
		})
		g.observeIntent(string(action), dec, started)
		g.log.Info("intent rejected at parse",
			zap.String("trace_id", traceID),
			zap.String("action", string(action)),
			zap.String("code", string(dec.Code)))
		return Response{Success: false, Decision: dec, TraceID: traceID, OpID: opID}
	}

	in := sub.intent
	opID := newOpID(traceID, action, pathString(in.Path))

	dec := g.engine.Evaluate(in)
	if !dec.Allowed() {
		g.seal(auditRecord(traceID, opID, action, in, dec, audit.ResultFailed, string(dec.Code)))
		g.observeIntent(string(action), dec, started)
		g.log.Info("intent denied",
			zap.String("trace_id", traceID),
			zap.String("op_id", opID),
			zap.String("code", string(dec.Code)),
			zap.String("reason", dec.Reason))
		return Response{Success: false, Decision: dec, TraceID: traceID, OpID: opID}
	}

	data, execErr := g.execute(ctx, action, sub)

	result := audit.ResultSuccess
	errCode := ""
	if execErr != nil {
		result = audit.ResultFailed
		errCode = string(vfs.CodeOf(execErr))
	}
	sealErr := g.seal(auditRecord(traceID, opID, action, in, dec, result, errCode))
	g.observeIntent(string(action), dec, started)

	switch {
	case execErr != nil:
		if g.metrics != nil {
			g.metrics.RecordIntentError(string(action), errCode)
		}
		g.log.Warn("intent failed during execution",
			zap.String("trace_id", traceID),
			zap.String("op_id", opID),
			zap.String("code", errCode),
			zap.Error(execErr))
		return Response{
			Success:   false,
			Decision:  dec,
			TraceID:   traceID,
			OpID:      opID,
			Error:     execErr.Error(),
			ErrorCode: vfs.CodeOf(execErr),
		}
	case sealErr != nil:
		// The operation ran but the ledger could not record it. An
		// unrecorded mutation must not look settled to the caller.
		return Response{
			Success:   false,
			Decision:  dec,
			TraceID:   traceID,
			OpID:      opID,
			Error:     "operation executed but could not be audited",
			ErrorCode: vfs.CodeStorageError,
		}
	default:
		g.log.Debug("intent executed",
			zap.String("trace_id", traceID),
			zap.String("op_id", opID))
		return Response{Success: true, Data: data, Decision: dec, TraceID: traceID, OpID: opID}
	}
}

// parse validates the raw request into a submission. Path, destination,
// and handle mode are all checked here so that everything past this
// point works on the closed types only.
func (g *Gateway) parse(action policy.Action, req Request) (submission, error) {
	sub := submission{
		handleID: req.HandleID,
		owner:    req.Owner,
		intent:   policy.Intent{Action: action},
	}

	switch action {
	case policy.ActionCloseHandle, policy.ActionShareHandle:
		if req.HandleID == "" {
			return sub, vfs.NewError(vfs.CodeInvalidPath, string(action), "handle id required")
		}
		// Resolve the descriptor so the audit entry names the real
		// path. An unknown id stays unresolved and fails in the
		// kernel, after policy has had its say.
		if h, ok := g.kernel.Handle(req.HandleID); ok {
			sub.intent.Path = h.Path
		}
		return sub, nil
	}

	p, err := vfs.Parse(req.Path)
	if err != nil {
		return sub, err
	}
	sub.intent.Path = p

	if action.NeedsDest() {
		if req.Dest == "" {
			return sub, vfs.NewError(vfs.CodeInvalidPath, string(action), "destination path required")
		}
		dst, err := vfs.Parse(req.Dest)
		if err != nil {
			return sub, err
		}
		sub.intent.Dest = dst
	}

	if action == policy.ActionOpenHandle {
		mode, err := kernel.ParseHandleMode(req.Mode)
		if err != nil {
			return sub, err
		}
		sub.mode = mode
	}

	if action == policy.ActionWrite {
		sub.intent.Content = []byte(req.Content)
	}
	sub.intent.Size = req.Size
	if n := len(req.Content); n > 0 {
		sub.intent.Size = int64(n)
	}
	return sub, nil
}

// execute dispatches one allowed intent to the kernel. The switch is
// exhaustive over the action enum; parse already refused anything
// outside it.
func (g *Gateway) execute(ctx context.Context, action policy.Action, sub submission) (any, error) {
	in := sub.intent
	switch action {
	case policy.ActionList:
		entries, err := g.kernel.List(ctx, in.Path)
		if err != nil {
			return nil, err
		}
		return ListResult{Entries: entries, Count: len(entries)}, nil

	case policy.ActionStat:
		return g.kernel.Stat(ctx, in.Path)

	case policy.ActionRead:
		data, err := g.kernel.Read(ctx, in.Path)
		if err != nil {
			return nil, err
		}
		return ReadResult{Content: string(data), Size: int64(len(data))}, nil

	case policy.ActionWrite:
		if err := g.kernel.Write(ctx, in.Path, in.Content); err != nil {
			return nil, err
		}
		return WriteResult{Path: in.Path.String(), Written: int64(len(in.Content))}, nil

	case policy.ActionMkdir:
		if err := g.kernel.Mkdir(ctx, in.Path); err != nil {
			return nil, err
		}
		return PathResult{Path: in.Path.String()}, nil

	case policy.ActionDelete:
		if err := g.kernel.Delete(ctx, in.Path); err != nil {
			return nil, err
		}
		return PathResult{Path: in.Path.String()}, nil

	case policy.ActionRename:
		if err := g.kernel.Rename(ctx, in.Path, in.Dest); err != nil {
			return nil, err
		}
		return TransferResult{Path: in.Path.String(), Dest: in.Dest.String()}, nil

	case policy.ActionMove:
		if err := g.kernel.Move(ctx, in.Path, in.Dest); err != nil {
			return nil, err
		}
		return TransferResult{Path: in.Path.String(), Dest: in.Dest.String()}, nil

	case policy.ActionCopy:
		if err := g.kernel.Copy(ctx, in.Path, in.Dest); err != nil {
			return nil, err
		}
		return TransferResult{Path: in.Path.String(), Dest: in.Dest.String()}, nil

	case policy.ActionOpenHandle:
		h, err := g.kernel.OpenHandle(ctx, in.Path, sub.mode, sub.owner)
		g.syncHandleGauge()
		return h, err

	case policy.ActionCloseHandle:
		h, err := g.kernel.CloseHandle(sub.handleID)
		g.syncHandleGauge()
		return h, err

	case policy.ActionShareHandle:
		h, err := g.kernel.ShareHandle(sub.handleID, sub.owner)
		g.syncHandleGauge()
		return h, err
	}
	return nil, vfs.NewError(vfs.CodeAccessDenied, string(action), pathString(in.Path))
}

// Lock transitions the kernel to LOCKED, closing every open handle.
func (g *Gateway) Lock() LockReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	traceID := id.NewTraceID().String()
	closed := g.kernel.Lock()

	g.seal(audit.Record{
		TraceID:    traceID,
		Action:     "lock",
		Capability: "kernel",
		Decision:   string(policy.Allow),
		Result:     audit.ResultSuccess,
		Size:       int64(closed),
	})
	if g.metrics != nil {
		g.metrics.SetKernelLocked(true)
		g.metrics.SetHandlesOpen(0)
	}
	g.log.Info("kernel locked",
		zap.String("trace_id", traceID),
		zap.Int("handles_closed", closed))
	return LockReport{State: g.kernel.State(), HandlesClosed: closed, TraceID: traceID}
}

// Unlock returns the kernel to ACTIVE.
func (g *Gateway) Unlock() UnlockReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	traceID := id.NewTraceID().String()
	g.kernel.Unlock()

	g.seal(audit.Record{
		TraceID:    traceID,
		Action:     "unlock",
		Capability: "kernel",
		Decision:   string(policy.Allow),
		Result:     audit.ResultSuccess,
	})
	if g.metrics != nil {
		g.metrics.SetKernelLocked(false)
	}
	g.log.Info("kernel unlocked", zap.String("trace_id", traceID))
	return UnlockReport{State: g.kernel.State(), TraceID: traceID}
}

// Logout applies a logout policy: SOFT_LOCK locks and closes handles,
// CLEAR additionally wipes the volatile and persistent user schemes.
// The kernel ends up locked either way, wipe failures included.
func (g *Gateway) Logout(ctx context.Context, mode string) (LogoutReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	traceID := id.NewTraceID().String()

	m, err := kernel.ParseLogoutMode(mode)
	if err != nil {
		g.seal(audit.Record{
			TraceID:    traceID,
			Action:     "logout",
			Capability: "kernel",
			Decision:   string(policy.Deny),
			Result:     audit.ResultFailed,
			ErrorCode:  string(vfs.CodeOf(err)),
		})
		return LogoutReport{State: g.kernel.State(), TraceID: traceID}, err
	}

	report, logoutErr := g.kernel.Logout(ctx, m)

	result := audit.ResultSuccess
	errCode := ""
	if logoutErr != nil {
		result = audit.ResultFailed
		errCode = string(vfs.CodeOf(logoutErr))
	}
	g.seal(audit.Record{
		TraceID:    traceID,
		Action:     "logout",
		Capability: "kernel",
		Path:       string(m),
		Decision:   string(policy.Allow),
		Result:     result,
		ErrorCode:  errCode,
		Size:       int64(report.HandlesClosed),
	})
	if g.metrics != nil {
		g.metrics.SetKernelLocked(true)
		g.metrics.SetHandlesOpen(0)
	}
	g.log.Info("logout policy applied",
		zap.String("trace_id", traceID),
		zap.String("mode", string(m)),
		zap.Int("handles_closed", report.HandlesClosed),
		zap.Strings("wiped_schemes", report.WipedSchemes))

	return LogoutReport{
		State:         g.kernel.State(),
		Mode:          string(m),
		HandlesClosed: report.HandlesClosed,
		WipedSchemes:  report.WipedSchemes,
		TraceID:       traceID,
	}, logoutErr
}

// seal appends one entry to the ledger. A failed append is reported to
// the caller: an unrecorded operation must not pass as settled.
func (g *Gateway) seal(rec audit.Record) error {
	if _, err := g.ledger.Append(rec); err != nil {
		if g.metrics != nil {
			g.metrics.RecordAuditAppendError()
		}
		g.log.Error("audit append failed",
			zap.String("trace_id", rec.TraceID),
			zap.Error(err))
		return err
	}
	if g.metrics != nil {
		g.metrics.RecordAuditEntry()
	}
	return nil
}

func (g *Gateway) observeIntent(action string, dec policy.Decision, started time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordIntent(action, string(dec.Outcome), time.Since(started))
}

func (g *Gateway) syncHandleGauge() {
	if g.metrics != nil {
		g.metrics.SetHandlesOpen(g.kernel.HandleCount())
	}
}

// newOpID names one operation: trace id, action, and subject path
// joined by colons. The trace prefix keeps to the [A-Za-z0-9-]
// alphabet, so the first colon always terminates the trace id.
func newOpID(traceID string, action policy.Action, path string) string {
	return fmt.Sprintf("%s:%s:%s", traceID, action, path)
}

// metricAction bounds the action label on boundary rejections. The
// audit entry keeps the raw string for attribution; metric labels only
// ever carry enum members, or "invalid" for everything outside it.
func metricAction(raw string) string {
	if a, err := policy.ParseAction(raw); err == nil {
		return string(a)
	}
	return "invalid"
}

// capabilityFor names the adapter capability an action exercises:
// direct actions map one to one, copy spans a read and a write, and
// the handle actions touch only the kernel's handle table.
func capabilityFor(action policy.Action) string {
	switch action {
	case policy.ActionCopy:
		return "read+write"
	case policy.ActionOpenHandle, policy.ActionCloseHandle, policy.ActionShareHandle:
		return "handle"
	}
	return string(action)
}

func auditRecord(traceID, opID string, action policy.Action, in policy.Intent, dec policy.Decision, result audit.Result, errCode string) audit.Record {
	return audit.Record{
		TraceID:    traceID,
		OpID:       opID,
		Action:     string(action),
		Capability: capabilityFor(action),
		Scheme:     string(in.Path.Scheme()),
		Path:       pathString(in.Path),
		Decision:   string(dec.Outcome),
		Result:     result,
		ErrorCode:  errCode,
		Size:       in.Size,
	}
}

// pathString renders a path for audit fields; a zero path (a handle id
// that resolved to nothing) stays empty rather than printing a bare
// scheme separator.
func pathString(p vfs.Path) string {
	if p.IsZero() {
		return ""
	}
	return p.String()
}
