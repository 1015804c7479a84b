// Package hashing provides the content hashing used by the audit
// ledger and governance tooling. Digests are rendered as
// algorithm-prefixed hex ("sha256:ab12…") so a persisted chain is
// self-describing about how it was built.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Algorithm selects the digest function.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
)

// Hasher computes prefixed digests with a fixed algorithm.
type Hasher struct {
	algorithm Algorithm
}

// New returns a hasher for the given algorithm.
func New(algorithm Algorithm) (*Hasher, error) {
	switch algorithm {
	case SHA256, BLAKE2b:
		return &Hasher{algorithm: algorithm}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

// Default returns the sha256 hasher.
func Default() *Hasher {
	return &Hasher{algorithm: SHA256}
}

// Algorithm reports the configured digest function.
func (h *Hasher) Algorithm() Algorithm { return h.algorithm }

// Sum computes the prefixed digest of data.
func (h *Hasher) Sum(data []byte) string {
	switch h.algorithm {
	case BLAKE2b:
		d := blake2b.Sum256(data)
		return string(BLAKE2b) + ":" + hex.EncodeToString(d[:])
	default:
		d := sha256.Sum256(data)
		return string(SHA256) + ":" + hex.EncodeToString(d[:])
	}
}

// SumString computes the prefixed digest of a string.
func (h *Hasher) SumString(s string) string {
	return h.Sum([]byte(s))
}

// Chain computes the link digest for a hash chain: the digest of the
// entry content concatenated with the previous link. The first link
// chains from the empty string.
func (h *Hasher) Chain(content []byte, prev string) string {
	buf := make([]byte, 0, len(content)+len(prev))
	buf = append(buf, content...)
	buf = append(buf, prev...)
	return h.Sum(buf)
}
