// Package governance decides whether the system may boot. Two
// attestations are checked on every call, never cached: the kernel
// definition is frozen on disk, and the audit chain verifies. A
// failing verdict is fatal to startup; retrying cannot change it
// without remediation.
package governance

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// MarkerFile is the freeze attestation read from the governance root.
const MarkerFile = "kernel.lock.yaml"

// FreezeMarker is the declarative document inside the marker file. The
// status must literally declare a frozen state; absence of the file and
// a present-but-unfrozen marker are distinct failures.
type FreezeMarker struct {
	Status        string `yaml:"status"`
	KernelVersion string `yaml:"kernel_version,omitempty"`
	FrozenAt      string `yaml:"frozen_at,omitempty"`
	Reason        string `yaml:"reason,omitempty"`
}

// frozen reports whether the declared status counts as frozen.
func (m FreezeMarker) frozen() bool {
	return m.Status == "frozen" || m.Status == "locked"
}

// Verdict is one boot-readiness evaluation. Both booleans are always
// resolved; there is no unknown state. Code carries the first failing
// check in fixed order: the freeze check before the chain check.
type Verdict struct {
	OK           bool      `json:"ok"`
	KernelFrozen bool      `json:"kernelFrozen"`
	HashValid    bool      `json:"hashValid"`
	Code         vfs.Code  `json:"errorCode,omitempty"`
	BrokenIndex  *int      `json:"brokenIndex,omitempty"`
	TotalEntries int       `json:"totalEntries"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// CheckKernelFrozen reads the freeze marker under root. A missing file
// fails with KernelFreezeFileMissing; a file that cannot be parsed or
// does not declare a frozen status fails with KernelNotFrozen.
func CheckKernelFrozen(root string) error {
	path := filepath.Join(root, MarkerFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return vfs.NewError(vfs.CodeKernelFreezeFileMissing, "governance", path)
		}
		return vfs.WrapError(vfs.CodeKernelFreezeFileMissing, "governance", path, err)
	}
	var marker FreezeMarker
	if err := yaml.Unmarshal(raw, &marker); err != nil {
		return vfs.WrapError(vfs.CodeKernelNotFrozen, "governance", path, err)
	}
	if !marker.frozen() {
		return vfs.NewError(vfs.CodeKernelNotFrozen, "governance", path)
	}
	return nil
}

// CheckHashChain verifies the ledger chain. A ledger that could not be
// opened is LedgerInitFailed, distinct from a ledger that opened and
// then failed verification, which is HashChainBroken.
func CheckHashChain(ledger *audit.Ledger, openErr error) (audit.Report, error) {
	if openErr != nil {
		return audit.Report{LastValidIndex: -1}, vfs.WrapError(vfs.CodeLedgerInitFailed, "governance", "", openErr)
	}
	if ledger == nil {
		return audit.Report{LastValidIndex: -1}, vfs.NewError(vfs.CodeLedgerInitFailed, "governance", "")
	}
	report := ledger.Verify()
	if !report.Valid {
		return report, vfs.NewError(vfs.CodeHashChainBroken, "governance", "")
	}
	return report, nil
}

// Check runs both attestations and combines them. Both always run, so
// each field is a definite boolean even when the other check failed;
// the surfaced code is the freeze failure when both fail.
func Check(root string, ledger *audit.Ledger, openErr error) Verdict {
	verdict := Verdict{CheckedAt: time.Now().UTC()}

	freezeErr := CheckKernelFrozen(root)
	verdict.KernelFrozen = freezeErr == nil

	report, chainErr := CheckHashChain(ledger, openErr)
	verdict.HashValid = chainErr == nil
	verdict.BrokenIndex = report.BrokenIndex
	verdict.TotalEntries = report.TotalEntries

	verdict.OK = verdict.KernelFrozen && verdict.HashValid
	switch {
	case freezeErr != nil:
		verdict.Code = vfs.CodeOf(freezeErr)
	case chainErr != nil:
		verdict.Code = vfs.CodeOf(chainErr)
	}
	return verdict
}

// WriteMarker freezes the kernel definition under root. Used by the
// governance CLI; the server only ever reads the marker.
func WriteMarker(root, version, reason string) error {
	marker := FreezeMarker{
		Status:        "frozen",
		KernelVersion: version,
		FrozenAt:      time.Now().UTC().Format(time.RFC3339),
		Reason:        reason,
	}
	raw, err := yaml.Marshal(marker)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, MarkerFile), raw, 0o644)
}
