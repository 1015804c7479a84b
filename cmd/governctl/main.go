// Command governctl manages the governance state of a deployment:
// writing the kernel freeze marker and verifying the audit chain. The
// server refuses to boot until `governctl freeze` has been run against
// its governance root.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/governance"
	"github.com/gemimi2525-star/super-platform-sub003/internal/shared/hashing"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "freeze":
		freeze(os.Args[2:])
	case "check":
		check(os.Args[2:])
	case "verify":
		verify(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "governctl: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage:
  governctl freeze -root DIR [-version V] [-reason TEXT]
      Write the kernel freeze marker.

  governctl check -root DIR -ledger PATH [-hash ALGO]
      Run the boot-identical governance gate: freeze marker first,
      then the hash chain. Exit 1 when the verdict is not ok.

  governctl verify -ledger PATH [-hash ALGO]
      Verify only the hash chain of a persisted ledger. Exit 1 when
      the chain is broken.
`)
}

func freeze(args []string) {
	fs := flag.NewFlagSet("freeze", flag.ExitOnError)
	root := fs.String("root", ".", "governance root directory")
	version := fs.String("version", "0.3.0", "kernel version recorded in the marker")
	reason := fs.String("reason", "definition finalized", "why the kernel is frozen")
	fs.Parse(args)

	if err := governance.WriteMarker(*root, *version, *reason); err != nil {
		fatal("freeze failed: %v", err)
	}
	fmt.Printf("froze kernel %s under %s\n", *version, *root)
}

func check(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	root := fs.String("root", ".", "governance root directory")
	ledgerPath := fs.String("ledger", "", "path to the audit ledger")
	algo := fs.String("hash", string(hashing.SHA256), "chain hash algorithm")
	fs.Parse(args)

	if *ledgerPath == "" {
		fatal("check: -ledger is required")
	}
	hasher, err := hashing.New(hashing.Algorithm(*algo))
	if err != nil {
		fatal("check: %v", err)
	}

	var ledger *audit.Ledger
	store, openErr := audit.OpenFileStore(*ledgerPath)
	if openErr == nil {
		ledger, openErr = audit.Open(store, hasher)
	}

	verdict := governance.Check(*root, ledger, openErr)
	printJSON(verdict)
	if !verdict.OK {
		os.Exit(1)
	}
}

func verify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	ledgerPath := fs.String("ledger", "", "path to the audit ledger or a .gz export")
	algo := fs.String("hash", string(hashing.SHA256), "chain hash algorithm")
	fs.Parse(args)

	if *ledgerPath == "" {
		fatal("verify: -ledger is required")
	}
	hasher, err := hashing.New(hashing.Algorithm(*algo))
	if err != nil {
		fatal("verify: %v", err)
	}

	entries, err := loadEntries(*ledgerPath)
	if err != nil {
		fatal("verify: %v", err)
	}

	report := audit.VerifyEntries(hasher, entries)
	printJSON(report)
	if !report.Valid {
		os.Exit(1)
	}
}

// loadEntries reads either the live NDJSON ledger or a gzip archive
// produced by the export endpoint.
func loadEntries(path string) ([]audit.Entry, error) {
	if !strings.HasSuffix(path, ".gz") {
		return audit.LoadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return audit.ImportGzip(f)
}

func printJSON(v any) {
	out, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode: %v", err)
	}
	fmt.Println(string(out))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "governctl: "+format+"\n", args...)
	os.Exit(1)
}
