package types

import (
	"crypto/sha256"
	"time"

	"github.com/cespare/xxhash/v2"
)

// FileSnapshot identifies a specific content of a file: the pair
// (content hash, filesystem mtime). Two snapshots compare equal iff both
// components match. FastHash is an xxhash of the content, used as a cheap
// probe before falling back to the full SHA-256 comparison in ContentHash
// — the same dual-hash split the teacher uses for its own snapshot type.
type FileSnapshot struct {
	ContentHash [32]byte
	FastHash    uint64
	ModTime     time.Time
}

// NewFileSnapshot computes a snapshot from file content and its mtime.
func NewFileSnapshot(content []byte, modTime time.Time) FileSnapshot {
	return FileSnapshot{
		ContentHash: sha256.Sum256(content),
		FastHash:    xxhash.Sum64(content),
		ModTime:     modTime,
	}
}

// Equal reports whether two snapshots identify the same content version.
func (s FileSnapshot) Equal(other FileSnapshot) bool {
	if s.FastHash != other.FastHash {
		return false
	}
	return s.ContentHash == other.ContentHash && s.ModTime.Equal(other.ModTime)
}
