package zerog

import (
	"strings"

	"github.com/cespare/xxhash"
	"github.com/jburman/ZeroG-sub001/cache"
)

const (
	kindFind  = "find"
	kindCount = "count"
)

const keySeparator = "\x1f"

// queryKey identifies a cacheable query. Query holds the constraint (or
// the index values) together with the options that change the result.
type queryKey struct {
	ObjectType string
	Kind       string
	Query      string
	Indexes    []string
}

func (k queryKey) String() string {
	parts := make([]string, 0, 3+len(k.Indexes))
	parts = append(parts, k.ObjectType, k.Kind, k.Query)
	parts = append(parts, k.Indexes...)
	return strings.Join(parts, keySeparator)
}

// fingerprint hashes the key, or returns cache.NoFingerprint when the key
// is longer than bound.
func (k queryKey) fingerprint(bound int) uint64 {
	n := len(k.ObjectType) + len(k.Kind) + len(k.Query) + 2
	for _, idx := range k.Indexes {
		n += len(idx) + 1
	}
	if n > bound {
		return cache.NoFingerprint
	}
	fp := xxhash.Sum64([]byte(k.String()))
	if fp == cache.NoFingerprint {
		fp = 1
	}
	return fp
}
