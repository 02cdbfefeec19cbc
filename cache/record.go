package cache

import (
	"sync"
)

// NoFingerprint marks a query as never cacheable.
const NoFingerprint uint64 = 0

type Value struct {
	ids  []int32
	uses uint32
	seq  uint64
}

// Record holds the cached results of one object type, valid for exactly
// one ledger version.
type Record struct {
	lock       sync.Mutex
	objectType string
	version    uint32
	dirty      bool
	totalIDs   uint32
	entries    map[uint64]*Value
}

func newRecord(objectType string, version uint32) *Record {
	return &Record{
		objectType: objectType,
		version:    version,
		entries:    make(map[uint64]*Value),
	}
}

func (r *Record) stale(version uint32) bool {
	return r.dirty || r.version != version
}

// reset discards every entry and restamps the record.
func (r *Record) reset(version uint32) {
	r.version = version
	r.dirty = false
	r.totalIDs = 0
	r.entries = make(map[uint64]*Value)
}

func (r *Record) sub(n int) {
	if uint32(n) > r.totalIDs {
		r.totalIDs = 0
		return
	}
	r.totalIDs -= uint32(n)
}

func (r *Record) put(fp uint64, ids []int32, seq uint64) {
	if prev, ok := r.entries[fp]; ok {
		r.sub(len(prev.ids))
	}
	r.entries[fp] = &Value{ids: ids, seq: seq}
	r.totalIDs += uint32(len(ids))
}

// remove drops the entry for fp if it is still the one inserted with seq.
func (r *Record) remove(fp uint64, seq uint64) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	v, ok := r.entries[fp]
	if !ok || v.seq != seq {
		return false
	}
	delete(r.entries, fp)
	r.sub(len(v.ids))
	return true
}
