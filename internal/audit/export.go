package audit

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
)

// ExportGzip writes the full chain to w as one gzip-compressed JSON
// array, ready for offline inspection or archival.
func (l *Ledger) ExportGzip(w io.Writer) error {
	entries := l.Entries()
	if entries == nil {
		entries = []Entry{}
	}

	data, err := sonic.Marshal(entries)
	if err != nil {
		return fmt.Errorf("audit export encode: %w", err)
	}

	gz := gzip.NewWriter(w)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return fmt.Errorf("audit export write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("audit export flush: %w", err)
	}
	return nil
}

// ImportGzip reads an exported archive back into a verifiable entry
// slice.
func ImportGzip(r io.Reader) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("audit import open: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("audit import read: %w", err)
	}
	var entries []Entry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("audit import decode: %w", err)
	}
	return entries, nil
}
