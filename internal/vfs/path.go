// Package vfs defines the virtual filesystem model shared by every
// layer above storage: the scheme table, the normalized path type, the
// adapter capability contract, and the error taxonomy.
//
// Paths look like user://documents/notes.txt. The scheme selects one of
// three mounted backends with different durability and mutability;
// everything after the separator is a case-sensitive segment list that
// never escapes its mount.
package vfs

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// Scheme selects one of the three mounted storage backends.
type Scheme string

const (
	// SchemeUser is the persistent-user namespace: durable across
	// restarts, read-write.
	SchemeUser Scheme = "user"

	// SchemeTemp is the volatile-temp namespace: read-write, lost on
	// restart, emptied by a CLEAR logout.
	SchemeTemp Scheme = "temp"

	// SchemeSystem is the read-only-system namespace: bundled assets.
	// Every mutation is refused at the adapter boundary.
	SchemeSystem Scheme = "system"
)

const schemeSep = "://"

// Schemes returns the closed scheme set in mount order.
func Schemes() []Scheme {
	return []Scheme{SchemeUser, SchemeTemp, SchemeSystem}
}

// ValidScheme reports whether s is one of the mounted schemes.
func ValidScheme(s Scheme) bool {
	switch s {
	case SchemeUser, SchemeTemp, SchemeSystem:
		return true
	}
	return false
}

// Path is an immutable, normalized location inside one scheme. The zero
// value is not valid; construct through Parse, Join, or Dir.
type Path struct {
	scheme   Scheme
	segments []string
}

// Parse validates and normalizes a raw path string.
//
// Rejections: missing "://" separator, a scheme outside the closed set,
// an empty path after the scheme, NUL bytes, and any segment spelling
// "." or "..", literally or through percent-encoding. Normalization
// collapses duplicate separators and strips a trailing one; parsing an
// already-rendered path yields the identical rendering, so
// normalization is idempotent.
func Parse(raw string) (Path, error) {
	idx := strings.Index(raw, schemeSep)
	if idx < 0 {
		return Path{}, WrapError(CodeInvalidPath, "parse", raw, errors.New("missing scheme separator"))
	}
	scheme := Scheme(raw[:idx])
	if !ValidScheme(scheme) {
		return Path{}, NewError(CodeUnknownScheme, "parse", raw)
	}
	segments, err := splitSegments(raw[idx+len(schemeSep):])
	if err != nil {
		return Path{}, WrapError(CodeInvalidPath, "parse", raw, err)
	}
	if len(segments) == 0 {
		return Path{}, WrapError(CodeInvalidPath, "parse", raw, errors.New("empty path after scheme"))
	}
	return Path{scheme: scheme, segments: segments}, nil
}

// MustParse is Parse for compile-time-known paths; it panics on error.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Normalize parses raw and renders it back. The result is stable:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) (string, error) {
	p, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

func splitSegments(rest string) ([]string, error) {
	parts := strings.Split(rest, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			// Collapses duplicate separators and the trailing one.
			continue
		}
		if err := checkSegment(part); err != nil {
			return nil, err
		}
		segments = append(segments, part)
	}
	return segments, nil
}

func checkSegment(seg string) error {
	if strings.ContainsRune(seg, 0) {
		return errors.New("segment contains NUL")
	}
	if strings.ContainsRune(seg, '/') {
		// Unreachable from Parse, which splits on the separator, but
		// Join accepts caller-built segments.
		return errors.New("segment contains separator")
	}
	if isDotSegment(seg) {
		return errors.New("path traversal segment")
	}
	return nil
}

// isDotSegment catches "." and ".." in raw and percent-encoded
// spellings (%2e, %2E, and mixes like ".%2e").
func isDotSegment(seg string) bool {
	if decoded, err := url.PathUnescape(seg); err == nil {
		seg = decoded
	}
	return seg == "." || seg == ".."
}

// Scheme returns the path's scheme.
func (p Path) Scheme() Scheme { return p.scheme }

// Segments returns a copy of the segment list.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// String renders the canonical form: scheme://seg/seg.
func (p Path) String() string {
	return string(p.scheme) + schemeSep + strings.Join(p.segments, "/")
}

// IsZero reports whether p was never constructed.
func (p Path) IsZero() bool { return p.scheme == "" }

// IsRoot reports whether p is a scheme root. Roots are never produced
// by Parse; they exist only as Dir() of a single-segment path, so
// adapters can reason about parents.
func (p Path) IsRoot() bool { return p.scheme != "" && len(p.segments) == 0 }

// Base returns the final segment, or "" for a scheme root.
func (p Path) Base() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Dir returns the parent path; the parent of a single-segment path is
// the scheme root.
func (p Path) Dir() Path {
	if len(p.segments) == 0 {
		return p
	}
	parent := make([]string, len(p.segments)-1)
	copy(parent, p.segments[:len(p.segments)-1])
	return Path{scheme: p.scheme, segments: parent}
}

// Join appends extra segments, validating each like Parse does.
func (p Path) Join(extra ...string) (Path, error) {
	joined := make([]string, len(p.segments), len(p.segments)+len(extra))
	copy(joined, p.segments)
	for _, seg := range extra {
		if seg == "" {
			continue
		}
		if err := checkSegment(seg); err != nil {
			return Path{}, WrapError(CodeInvalidPath, "join", p.String()+"/"+seg, err)
		}
		joined = append(joined, seg)
	}
	return Path{scheme: p.scheme, segments: joined}, nil
}

// Equal reports scheme and segment equality. Comparison is
// case-sensitive; there is no folding anywhere in the path model.
func (p Path) Equal(o Path) bool {
	if p.scheme != o.scheme || len(p.segments) != len(o.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// MarshalJSON renders the canonical string form.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a path with the same validation as Parse.
func (p *Path) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
