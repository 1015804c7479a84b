// Package audit implements the tamper-evident operation ledger. Every
// evaluated intent becomes one sealed entry; entries are hash-chained
// in decision order, so any later mutation of a persisted entry breaks
// verification at exactly that index.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gemimi2525-star/super-platform-sub003/internal/shared/hashing"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// Result records how an allowed execution settled. Denied intents never
// execute and are sealed as FAILED.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailed  Result = "FAILED"
)

// Entry is one sealed ledger record. Index, timestamp, and both hashes
// are assigned at append time; everything else comes from the caller.
// Wire names are camelCase to stay readable next to the shell's own
// exports of the same records.
type Entry struct {
	Index      int       `json:"index"`
	TraceID    string    `json:"traceId"`
	OpID       string    `json:"opId,omitempty"`
	Action     string    `json:"action"`
	Capability string    `json:"capability"`
	Scheme     string    `json:"scheme,omitempty"`
	Path       string    `json:"path,omitempty"`
	Decision   string    `json:"decision"`
	Result     Result    `json:"result"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Size       int64     `json:"size"`
	Timestamp  time.Time `json:"timestamp"`
	PrevHash   string    `json:"prevHash"`
	Hash       string    `json:"hash"`
}

// Record is the caller-supplied part of an entry.
type Record struct {
	TraceID    string
	OpID       string
	Action     string
	Capability string
	Scheme     string
	Path       string
	Decision   string
	Result     Result
	ErrorCode  string
	Size       int64
}

// Report is the chain verification verdict. An empty ledger is valid
// with LastValidIndex == -1.
type Report struct {
	Valid          bool `json:"isValid"`
	LastValidIndex int  `json:"lastValidIndex"`
	BrokenIndex    *int `json:"brokenIndex,omitempty"`
	TotalEntries   int  `json:"totalEntries"`
}

// Ledger is the in-process chain head over a persistent store.
type Ledger struct {
	mu      sync.RWMutex
	hasher  *hashing.Hasher
	store   Store
	entries []Entry
	subs    map[int]chan Entry
	nextSub int
}

// Open loads the persisted chain and resumes appending after its last
// entry. A store that cannot be read or decoded is an init failure,
// distinct from a loaded chain that fails verification.
func Open(store Store, hasher *hashing.Hasher) (*Ledger, error) {
	if hasher == nil {
		hasher = hashing.Default()
	}
	entries, err := store.Load()
	if err != nil {
		return nil, vfs.WrapError(vfs.CodeLedgerInitFailed, "audit", "", err)
	}
	return &Ledger{
		hasher:  hasher,
		store:   store,
		entries: entries,
		subs:    make(map[int]chan Entry),
	}, nil
}

// sealHash computes an entry's own hash: the digest of its canonical
// encoding (own hash blanked) chained with the previous hash. The
// canonical encoding is encoding/json; the store codec may differ, the
// hash input may not.
func sealHash(h *hashing.Hasher, e Entry) (string, error) {
	e.Hash = ""
	content, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return h.Chain(content, e.PrevHash), nil
}

// Append seals rec into the chain. Index, timestamp, and hashes are
// assigned under the ledger lock in call order, so the caller's
// decision order is the chain order. The entry is persisted before the
// in-memory chain advances; a store failure leaves both unchanged.
func (l *Ledger) Append(rec Record) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].Hash
	}

	e := Entry{
		Index:      len(l.entries),
		TraceID:    rec.TraceID,
		OpID:       rec.OpID,
		Action:     rec.Action,
		Capability: rec.Capability,
		Scheme:     rec.Scheme,
		Path:       rec.Path,
		Decision:   rec.Decision,
		Result:     rec.Result,
		ErrorCode:  rec.ErrorCode,
		Size:       rec.Size,
		Timestamp:  time.Now().UTC(),
		PrevHash:   prev,
	}

	hash, err := sealHash(l.hasher, e)
	if err != nil {
		return Entry{}, vfs.WrapError(vfs.CodeStorageError, "audit", "", err)
	}
	e.Hash = hash

	if err := l.store.Append(e); err != nil {
		return Entry{}, vfs.WrapError(vfs.CodeStorageError, "audit", "", err)
	}
	l.entries = append(l.entries, e)
	l.notify(e)
	return e, nil
}

// Verify recomputes every link and stops at the first mismatch.
func (l *Ledger) Verify() Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyEntries(l.hasher, l.entries)
}

// VerifyEntries checks a chain outside any ledger. Offline tooling
// verifies exported or foreign files through this.
func VerifyEntries(hasher *hashing.Hasher, entries []Entry) Report {
	if hasher == nil {
		hasher = hashing.Default()
	}
	return verifyEntries(hasher, entries)
}

func verifyEntries(h *hashing.Hasher, entries []Entry) Report {
	report := Report{Valid: true, LastValidIndex: -1, TotalEntries: len(entries)}
	prev := ""
	for i := range entries {
		e := entries[i]
		want, err := sealHash(h, e)
		if err != nil || e.Index != i || e.PrevHash != prev || e.Hash != want {
			idx := i
			report.Valid = false
			report.BrokenIndex = &idx
			return report
		}
		report.LastValidIndex = i
		prev = e.Hash
	}
	return report
}

// Len reports the chain length.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the full chain.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Query filters lookups. Zero fields match everything; Limit keeps the
// most recent N.
type Query struct {
	TraceID  string
	OpID     string
	PathGlob string
	Limit    int
}

// Find returns entries matching q in chain order.
func (l *Ledger) Find(q Query) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, e := range l.entries {
		if q.TraceID != "" && e.TraceID != q.TraceID {
			continue
		}
		if q.OpID != "" && e.OpID != q.OpID {
			continue
		}
		if q.PathGlob != "" {
			ok, err := doublestar.Match(q.PathGlob, e.Path)
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, e)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Subscribe registers a buffered live feed of appended entries. Slow
// consumers lose entries rather than stalling the chain. The returned
// cancel is idempotent.
func (l *Ledger) Subscribe(buffer int) (<-chan Entry, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if buffer <= 0 {
		buffer = 16
	}
	id := l.nextSub
	l.nextSub++
	ch := make(chan Entry, buffer)
	l.subs[id] = ch

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// notify fans an entry out to subscribers. Callers hold l.mu.
func (l *Ledger) notify(e Entry) {
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	return l.store.Close()
}
