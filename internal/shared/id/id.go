// Package id provides centralized ID generation for the service.
//
// IDs are prefixed ULIDs, so they sort by mint time and stay readable
// in logs. The generator uses monotonic entropy behind a mutex, so two
// IDs minted in the same millisecond still differ. The separator is a
// dash because trace IDs embed into colon-delimited op IDs and must
// stay inside the [A-Za-z0-9-] alphabet.
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TraceID correlates one intent end to end: decision, audit entry,
// execution result.
type TraceID string

// RequestID tags one HTTP request in logs and response headers.
type RequestID string

func (id TraceID) String() string   { return string(id) }
func (id RequestID) String() string { return string(id) }

const (
	TracePrefix   = "trace"
	RequestPrefix = "req"

	sep = "-"
)

// Generator mints ULIDs from a single monotonic entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographic entropy.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate mints one ULID. Within a millisecond the monotonic source
// strictly increments, so uniqueness is guaranteed, not statistical.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix mints a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + sep + g.Generate().String()
}

// NewTraceID mints a trace ID.
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// NewRequestID mints a request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// Suffix returns the ULID portion of a prefixed ID.
func Suffix(id string) string {
	if idx := strings.Index(id, sep); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// IsValid reports whether id carries a parseable ULID suffix.
func IsValid(id string) bool {
	_, err := ulid.Parse(Suffix(id))
	return err == nil
}

// Timestamp extracts minting time from a prefixed ID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(Suffix(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
