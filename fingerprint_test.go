package zerog

import (
	"strings"
	"testing"

	"github.com/jburman/ZeroG-sub001/cache"
	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Stable(t *testing.T) {
	k := queryKey{ObjectType: "app.Person", Kind: kindFind, Query: `{"A":1}`, Indexes: []string{"A", "B"}}
	same := queryKey{ObjectType: "app.Person", Kind: kindFind, Query: `{"A":1}`, Indexes: []string{"A", "B"}}
	fp := k.fingerprint(4096)
	assert.NotEqual(t, cache.NoFingerprint, fp)
	assert.Equal(t, fp, same.fingerprint(4096))

	variants := []queryKey{
		{ObjectType: "app.Order", Kind: kindFind, Query: `{"A":1}`, Indexes: []string{"A", "B"}},
		{ObjectType: "app.Person", Kind: kindCount, Query: `{"A":1}`, Indexes: []string{"A", "B"}},
		{ObjectType: "app.Person", Kind: kindFind, Query: `{"A":2}`, Indexes: []string{"A", "B"}},
		{ObjectType: "app.Person", Kind: kindFind, Query: `{"A":1}`, Indexes: []string{"B", "A"}},
		{ObjectType: "app.Person", Kind: kindFind, Query: `{"A":1}`},
	}
	for _, v := range variants {
		assert.NotEqual(t, fp, v.fingerprint(4096), v.String())
	}
}

func TestFingerprint_Bound(t *testing.T) {
	k := queryKey{ObjectType: "app.Person", Kind: kindFind, Query: strings.Repeat("x", 100)}
	n := len(k.String())
	assert.NotEqual(t, cache.NoFingerprint, k.fingerprint(n))
	assert.Equal(t, cache.NoFingerprint, k.fingerprint(n-1))

	k.Indexes = []string{"Name"}
	assert.Equal(t, cache.NoFingerprint, k.fingerprint(n))
	assert.NotEqual(t, cache.NoFingerprint, k.fingerprint(len(k.String())))
}
