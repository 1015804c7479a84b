package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

func TestReadOnlySchemeDeniesMutations(t *testing.T) {
	e := NewEngine(0)
	target := vfs.MustParse("system://hack.txt")

	for _, action := range []Action{ActionWrite, ActionDelete, ActionMove, ActionCopy, ActionRename, ActionMkdir} {
		d := e.Evaluate(Intent{Action: action, Path: target})
		assert.Equal(t, Deny, d.Outcome, string(action))
		assert.Equal(t, vfs.CodeAccessDenied, d.Code, string(action))
		assert.Contains(t, d.Reason, "read-only-system")
	}
}

func TestReadOnlySchemeAllowsReads(t *testing.T) {
	e := NewEngine(0)
	target := vfs.MustParse("system://etc/motd")

	for _, action := range []Action{ActionRead, ActionList, ActionStat, ActionOpenHandle, ActionCloseHandle, ActionShareHandle} {
		d := e.Evaluate(Intent{Action: action, Path: target})
		assert.True(t, d.Allowed(), string(action))
		assert.Empty(t, d.Code)
	}
}

func TestDestinationOnReadOnlyScheme(t *testing.T) {
	e := NewEngine(0)

	d := e.Evaluate(Intent{
		Action: ActionCopy,
		Path:   vfs.MustParse("user://a.txt"),
		Dest:   vfs.MustParse("system://a.txt"),
	})
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, vfs.CodeAccessDenied, d.Code)
}

func TestQuotaBoundary(t *testing.T) {
	e := NewEngine(0)
	p := vfs.MustParse("user://big.bin")

	atLimit := e.Evaluate(Intent{Action: ActionWrite, Path: p, Size: DefaultQuota})
	assert.True(t, atLimit.Allowed())

	overLimit := e.Evaluate(Intent{Action: ActionWrite, Path: p, Size: DefaultQuota + 1})
	assert.Equal(t, Deny, overLimit.Outcome)
	assert.Equal(t, vfs.CodeAccessDenied, overLimit.Code)
	assert.Contains(t, overLimit.Reason, "quota")
}

func TestCustomQuota(t *testing.T) {
	e := NewEngine(1024)
	require.Equal(t, int64(1024), e.Quota())

	d := e.Evaluate(Intent{Action: ActionWrite, Path: vfs.MustParse("user://f"), Size: 2048})
	assert.Equal(t, Deny, d.Outcome)
}

func TestRuleOrderSchemeBeforeQuota(t *testing.T) {
	// A huge write to system:// must report the read-only denial, not
	// the quota denial: rule 1 fires before rule 2.
	e := NewEngine(0)
	d := e.Evaluate(Intent{
		Action: ActionWrite,
		Path:   vfs.MustParse("system://huge.bin"),
		Size:   DefaultQuota * 10,
	})
	assert.Equal(t, Deny, d.Outcome)
	assert.Contains(t, d.Reason, "read-only-system")
	assert.False(t, strings.Contains(d.Reason, "quota"))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEngine(0)
	in := Intent{Action: ActionWrite, Path: vfs.MustParse("user://a"), Size: 10}

	first := e.Evaluate(in)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, e.Evaluate(in))
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		parsed, err := ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	for _, bad := range []string{"", "format", "WRITE", "open_handle", "readwrite"} {
		_, err := ParseAction(bad)
		assert.Error(t, err, bad)
	}
}

func TestMutatingSet(t *testing.T) {
	mutating := map[Action]bool{
		ActionWrite: true, ActionDelete: true, ActionMove: true,
		ActionCopy: true, ActionRename: true, ActionMkdir: true,
	}
	for _, a := range Actions() {
		assert.Equal(t, mutating[a], a.Mutating(), string(a))
	}
}
