package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/logging"
	"github.com/gemimi2525-star/super-platform-sub003/internal/kernel"
	"github.com/gemimi2525-star/super-platform-sub003/internal/policy"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs/bundlefs"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs/memfs"
)

func newTestGateway(t *testing.T, quota int64) (*Gateway, *kernel.Kernel, *audit.Ledger) {
	t.Helper()
	system, err := bundlefs.New(bundlefs.DefaultAssets())
	require.NoError(t, err)
	k := kernel.New(memfs.New(vfs.SchemeUser), memfs.New(vfs.SchemeTemp), system)
	ledger, err := audit.Open(audit.NewMemStore(), nil)
	require.NoError(t, err)
	return New(k, policy.NewEngine(quota), ledger, logging.NewNop(), nil), k, ledger
}

func TestWriteIntentRoundTrip(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	resp := g.Submit(ctx, Request{Action: "write", Path: "user://docs/a.txt", Content: "hi"})
	require.True(t, resp.Success)
	assert.Equal(t, policy.Allow, resp.Decision.Outcome)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9-]+:write:user://docs/a\.txt$`), resp.OpID)

	written, ok := resp.Data.(WriteResult)
	require.True(t, ok)
	assert.Equal(t, int64(2), written.Written)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "ALLOW", entries[0].Decision)
	assert.Equal(t, audit.ResultSuccess, entries[0].Result)
	assert.Equal(t, "write", entries[0].Capability)
	assert.Equal(t, "user", entries[0].Scheme)
	assert.Equal(t, resp.OpID, entries[0].OpID)

	read := g.Submit(ctx, Request{Action: "read", Path: "user://docs/a.txt"})
	require.True(t, read.Success)
	content, ok := read.Data.(ReadResult)
	require.True(t, ok)
	assert.Equal(t, "hi", content.Content)
	assert.Equal(t, int64(2), content.Size)
}

func TestSystemWriteDenied(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)

	resp := g.Submit(context.Background(), Request{Action: "write", Path: "system://hack.txt", Content: "own"})
	require.False(t, resp.Success)
	assert.Equal(t, policy.Deny, resp.Decision.Outcome)
	assert.Equal(t, vfs.CodeAccessDenied, resp.Decision.Code)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "DENY", entries[0].Decision)
	assert.Equal(t, audit.ResultFailed, entries[0].Result)
	assert.Equal(t, string(vfs.CodeAccessDenied), entries[0].ErrorCode)
}

func TestLockedRefusesBeforePolicy(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	g.Lock()

	// A system write would be denied AccessDenied if policy ran. While
	// locked the answer is AuthRequired, proving the refusal happens
	// before evaluation.
	resp := g.Submit(ctx, Request{Action: "write", Path: "system://hack.txt", Content: "x"})
	require.False(t, resp.Success)
	assert.Equal(t, policy.Deny, resp.Decision.Outcome)
	assert.Equal(t, vfs.CodeAuthRequired, resp.Decision.Code)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "gate", entries[0].Capability)
	assert.Equal(t, string(vfs.CodeAuthRequired), entries[0].ErrorCode)

	g.Unlock()
	resp = g.Submit(ctx, Request{Action: "write", Path: "user://a.txt", Content: "x"})
	assert.True(t, resp.Success)
}

func TestQuotaDenyAppliesToDeclaredSize(t *testing.T) {
	g, _, _ := newTestGateway(t, 16)
	ctx := context.Background()

	resp := g.Submit(ctx, Request{Action: "write", Path: "user://big.bin", Content: strings.Repeat("a", 17)})
	require.False(t, resp.Success)
	assert.Equal(t, vfs.CodeAccessDenied, resp.Decision.Code)
	assert.Contains(t, resp.Decision.Reason, "quota")

	// Non-mutating actions are also held to the quota when a size is
	// attached.
	resp = g.Submit(ctx, Request{Action: "read", Path: "user://big.bin", Size: 64})
	require.False(t, resp.Success)
	assert.Equal(t, vfs.CodeAccessDenied, resp.Decision.Code)

	resp = g.Submit(ctx, Request{Action: "write", Path: "user://small.bin", Content: "ok"})
	assert.True(t, resp.Success)
}

func TestUnknownActionFailsClosed(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)

	resp := g.Submit(context.Background(), Request{Action: "format-disk", Path: "user://x"})
	require.False(t, resp.Success)
	assert.Equal(t, policy.Deny, resp.Decision.Outcome)
	assert.Equal(t, vfs.CodeAccessDenied, resp.Decision.Code)
	assert.Empty(t, resp.OpID)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "format-disk", entries[0].Action)
	assert.Equal(t, "gate", entries[0].Capability)
}

func TestMalformedPathDeniedAndAudited(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		code vfs.Code
	}{
		{name: "traversal", path: "user://docs/../etc", code: vfs.CodeInvalidPath},
		{name: "encoded traversal", path: "user://docs/%2e%2e/etc", code: vfs.CodeInvalidPath},
		{name: "empty after scheme", path: "user://", code: vfs.CodeInvalidPath},
		{name: "unknown scheme", path: "junk://x", code: vfs.CodeUnknownScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := g.Submit(ctx, Request{Action: "read", Path: tt.path})
			require.False(t, resp.Success)
			assert.Equal(t, policy.Deny, resp.Decision.Outcome)
			assert.Equal(t, tt.code, resp.Decision.Code)

			entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
			require.Len(t, entries, 1)
			assert.Equal(t, string(tt.code), entries[0].ErrorCode)
			assert.Equal(t, tt.path, entries[0].Path)
		})
	}
}

func TestRenameRequiresDest(t *testing.T) {
	g, _, _ := newTestGateway(t, 0)

	resp := g.Submit(context.Background(), Request{Action: "rename", Path: "user://a.txt"})
	require.False(t, resp.Success)
	assert.Equal(t, vfs.CodeInvalidPath, resp.Decision.Code)
	assert.Contains(t, resp.Decision.Reason, "destination")
}

func TestCopyIntentCrossesSchemes(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "user://src.txt", Content: "payload"}).Success)

	resp := g.Submit(ctx, Request{Action: "copy", Path: "user://src.txt", Dest: "temp://dst.txt"})
	require.True(t, resp.Success)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "read+write", entries[0].Capability)

	read := g.Submit(ctx, Request{Action: "read", Path: "temp://dst.txt"})
	require.True(t, read.Success)
	assert.Equal(t, "payload", read.Data.(ReadResult).Content)
}

func TestCopyToSystemDenied(t *testing.T) {
	g, _, _ := newTestGateway(t, 0)
	ctx := context.Background()

	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "user://src.txt", Content: "x"}).Success)

	resp := g.Submit(ctx, Request{Action: "copy", Path: "user://src.txt", Dest: "system://dst.txt"})
	require.False(t, resp.Success)
	assert.Equal(t, vfs.CodeAccessDenied, resp.Decision.Code)
}

func TestHandleLifecycleThroughIntents(t *testing.T) {
	g, k, _ := newTestGateway(t, 0)
	ctx := context.Background()

	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "user://doc.txt", Content: "x"}).Success)

	opened := g.Submit(ctx, Request{Action: "open-handle", Path: "user://doc.txt", Mode: "read", Owner: "alice"})
	require.True(t, opened.Success)
	h, ok := opened.Data.(kernel.Handle)
	require.True(t, ok)
	assert.Equal(t, "alice", h.Owner)
	assert.Equal(t, 1, k.HandleCount())

	shared := g.Submit(ctx, Request{Action: "share-handle", HandleID: h.ID, Owner: "bob"})
	require.True(t, shared.Success)
	dup := shared.Data.(kernel.Handle)
	assert.NotEqual(t, h.ID, dup.ID)
	assert.Equal(t, "bob", dup.Owner)
	assert.Equal(t, 2, k.HandleCount())

	// The audit trail names the real path even though the request only
	// carried a handle id.
	assert.Contains(t, shared.OpID, ":share-handle:user://doc.txt")

	closed := g.Submit(ctx, Request{Action: "close-handle", HandleID: h.ID})
	require.True(t, closed.Success)
	assert.Equal(t, 1, k.HandleCount())

	require.True(t, g.Submit(ctx, Request{Action: "close-handle", HandleID: dup.ID}).Success)
	assert.Equal(t, 0, k.HandleCount())
}

func TestCloseUnknownHandleFailsAfterPolicy(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)

	resp := g.Submit(context.Background(), Request{Action: "close-handle", HandleID: "no-such-id"})
	require.False(t, resp.Success)
	// Policy had no grounds to deny; the kernel failed the lookup.
	assert.Equal(t, policy.Allow, resp.Decision.Outcome)
	assert.Equal(t, vfs.CodeNotFound, resp.ErrorCode)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "ALLOW", entries[0].Decision)
	assert.Equal(t, audit.ResultFailed, entries[0].Result)
	assert.Equal(t, string(vfs.CodeNotFound), entries[0].ErrorCode)
}

func TestOpenHandleBadModeRejected(t *testing.T) {
	g, _, _ := newTestGateway(t, 0)

	resp := g.Submit(context.Background(), Request{Action: "open-handle", Path: "user://doc.txt", Mode: "append"})
	require.False(t, resp.Success)
	assert.Equal(t, policy.Deny, resp.Decision.Outcome)
	assert.Equal(t, vfs.CodeInvalidPath, resp.Decision.Code)
}

func TestTraceIDsUniqueAcrossSubmissions(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp := g.Submit(ctx, Request{
			Action:  "write",
			Path:    fmt.Sprintf("user://f%02d.txt", i),
			Content: "x",
		})
		require.True(t, resp.Success)
		require.False(t, seen[resp.TraceID], "trace id %s repeated", resp.TraceID)
		seen[resp.TraceID] = true
	}

	report := ledger.Verify()
	assert.True(t, report.Valid)
	assert.Equal(t, 50, report.TotalEntries)
}

func TestChainStaysOrderedUnderConcurrentSubmissions(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	const workers = 4
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				g.Submit(ctx, Request{
					Action:  "write",
					Path:    fmt.Sprintf("user://w%d/f%02d.txt", w, i),
					Content: "x",
				})
			}
		}(w)
	}
	wg.Wait()

	report := ledger.Verify()
	assert.True(t, report.Valid)
	assert.Equal(t, workers*perWorker, report.TotalEntries)
	assert.Equal(t, workers*perWorker-1, report.LastValidIndex)
}

func TestLockReportCountsHandles(t *testing.T) {
	g, k, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "user://a.txt", Content: "x"}).Success)
	require.True(t, g.Submit(ctx, Request{Action: "open-handle", Path: "user://a.txt", Mode: "read"}).Success)
	require.True(t, g.Submit(ctx, Request{Action: "open-handle", Path: "user://a.txt", Mode: "write"}).Success)

	report := g.Lock()
	assert.Equal(t, kernel.StateLocked, report.State)
	assert.Equal(t, 2, report.HandlesClosed)
	assert.Equal(t, 0, k.HandleCount())

	entries := ledger.Find(audit.Query{TraceID: report.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "lock", entries[0].Action)
	assert.Equal(t, "kernel", entries[0].Capability)
	assert.Equal(t, int64(2), entries[0].Size)

	unlocked := g.Unlock()
	assert.Equal(t, kernel.StateActive, unlocked.State)
}

func TestLogoutClearThroughGateway(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "user://keep.txt", Content: "u"}).Success)
	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "temp://scratch.txt", Content: "t"}).Success)

	report, err := g.Logout(ctx, "CLEAR")
	require.NoError(t, err)
	assert.Equal(t, kernel.StateLocked, report.State)
	assert.Equal(t, "CLEAR", report.Mode)
	assert.Equal(t, []string{"temp", "user"}, report.WipedSchemes)

	entries := ledger.Find(audit.Query{TraceID: report.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "logout", entries[0].Action)
	assert.Equal(t, audit.ResultSuccess, entries[0].Result)

	g.Unlock()
	read := g.Submit(ctx, Request{Action: "read", Path: "user://keep.txt"})
	require.False(t, read.Success)
	assert.Equal(t, vfs.CodeNotFound, read.ErrorCode)
}

func TestLogoutSoftLockKeepsData(t *testing.T) {
	g, _, _ := newTestGateway(t, 0)
	ctx := context.Background()

	require.True(t, g.Submit(ctx, Request{Action: "write", Path: "user://keep.txt", Content: "u"}).Success)

	report, err := g.Logout(ctx, "SOFT_LOCK")
	require.NoError(t, err)
	assert.Equal(t, kernel.StateLocked, report.State)
	assert.Empty(t, report.WipedSchemes)

	g.Unlock()
	read := g.Submit(ctx, Request{Action: "read", Path: "user://keep.txt"})
	require.True(t, read.Success)
	assert.Equal(t, "u", read.Data.(ReadResult).Content)
}

func TestLogoutUnknownModeRejected(t *testing.T) {
	g, k, _ := newTestGateway(t, 0)

	_, err := g.Logout(context.Background(), "HARD_RESET")
	require.Error(t, err)
	assert.Equal(t, vfs.CodeInvalidPath, vfs.CodeOf(err))
	assert.Equal(t, kernel.StateActive, k.State())
}

func TestEveryIntentProducesExactlyOneEntry(t *testing.T) {
	g, _, ledger := newTestGateway(t, 0)
	ctx := context.Background()

	submissions := []Request{
		{Action: "mkdir", Path: "user://dir"},
		{Action: "write", Path: "user://dir/a.txt", Content: "1"},
		{Action: "stat", Path: "user://dir/a.txt"},
		{Action: "list", Path: "user://dir"},
		{Action: "rename", Path: "user://dir/a.txt", Dest: "user://dir/b.txt"},
		{Action: "move", Path: "user://dir/b.txt", Dest: "user://c.txt"},
		{Action: "delete", Path: "user://c.txt"},
		{Action: "read", Path: "user://c.txt"}, // fails NotFound, still audited
	}
	for _, req := range submissions {
		g.Submit(ctx, req)
	}

	assert.Equal(t, len(submissions), ledger.Len())
	report := ledger.Verify()
	assert.True(t, report.Valid)
}

// MockAdapter is a mock backend for failure injection.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Scheme() vfs.Scheme { return vfs.SchemeUser }

func (m *MockAdapter) List(ctx context.Context, p vfs.Path) ([]vfs.Entry, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vfs.Entry), args.Error(1)
}

func (m *MockAdapter) Stat(ctx context.Context, p vfs.Path) (vfs.Entry, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(vfs.Entry), args.Error(1)
}

func (m *MockAdapter) Read(ctx context.Context, p vfs.Path) ([]byte, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockAdapter) Write(ctx context.Context, p vfs.Path, data []byte) error {
	args := m.Called(ctx, p, data)
	return args.Error(0)
}

func (m *MockAdapter) Mkdir(ctx context.Context, p vfs.Path) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockAdapter) Delete(ctx context.Context, p vfs.Path) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockAdapter) Rename(ctx context.Context, src, dst vfs.Path) error {
	args := m.Called(ctx, src, dst)
	return args.Error(0)
}

func (m *MockAdapter) Move(ctx context.Context, src, dst vfs.Path) error {
	args := m.Called(ctx, src, dst)
	return args.Error(0)
}

func (m *MockAdapter) Exists(ctx context.Context, p vfs.Path) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdapter) Wipe(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestStorageFailureAuditedAsFailed(t *testing.T) {
	system, err := bundlefs.New(bundlefs.DefaultAssets())
	require.NoError(t, err)

	user := new(MockAdapter)
	user.On("Write", mock.Anything, mock.Anything, mock.Anything).
		Return(vfs.NewError(vfs.CodeStorageError, "write", "user://fragile.txt"))

	k := kernel.New(user, memfs.New(vfs.SchemeTemp), system)
	ledger, err := audit.Open(audit.NewMemStore(), nil)
	require.NoError(t, err)
	g := New(k, policy.NewEngine(0), ledger, logging.NewNop(), nil)

	resp := g.Submit(context.Background(), Request{Action: "write", Path: "user://fragile.txt", Content: "x"})
	require.False(t, resp.Success)
	assert.Equal(t, policy.Allow, resp.Decision.Outcome, "policy allowed; the backend failed")
	assert.Equal(t, vfs.CodeStorageError, resp.ErrorCode)

	entries := ledger.Find(audit.Query{TraceID: resp.TraceID})
	require.Len(t, entries, 1)
	assert.Equal(t, "ALLOW", entries[0].Decision)
	assert.Equal(t, audit.ResultFailed, entries[0].Result)
	assert.Equal(t, string(vfs.CodeStorageError), entries[0].ErrorCode)

	user.AssertExpectations(t)
}
