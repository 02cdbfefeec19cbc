// Package cache keeps object id sets computed by the index backend, keyed
// by query fingerprint, per object type.
//
// # Coherence
//
// Every record is stamped with the ledger version of its object type. A
// record whose stamp differs from the current version (or that was
// invalidated) is dirty: it is discarded and rebuilt empty on the next
// access, never patched. One write therefore drops all cached queries of
// its object type.
//
// Get returns a Stamp: the version it observed plus the invalidation
// generation of the object type. Set takes the stamp back and only stores
// the ids when both are still current, so a result computed while a write
// was landing is never cached, even when the write could not move the
// ledger and was only invalidated in memory.
//
// Fingerprint NoFingerprint is never cached: Get misses and Set is a no-op.
//
// # Locking
//
// Records live in a concurrent map; each record has its own mutex, so
// object types do not contend with each other. The Cleaner snapshots
// entries under each record lock in turn and removes victims afterwards,
// re-checking that the entry was not replaced in between.
package cache

import (
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/puzpuzpuz/xsync/v3"
)

// Versions is the read side of the version ledger.
type Versions interface {
	Current(objectType string) (uint32, error)
}

type Cache struct {
	versions Versions
	records  *xsync.MapOf[string, *Record]
	// advanced by Invalidate and Remove, kept across record rebuilds
	generations *xsync.MapOf[string, uint64]
	seq         atomic.Uint64
	log         utils.Logger
}

// Stamp is what a lookup was made against; hand it back to Set.
type Stamp struct {
	Version    uint32
	Generation uint64
}

type Stats struct {
	Records int
	Queries int
	Values  int
}

func New(versions Versions, log utils.Logger) *Cache {
	if log == nil {
		log = utils.NewDefaultLogger(slog.LevelWarn)
	}
	return &Cache{
		versions:    versions,
		records:     xsync.NewMapOf[string, *Record](),
		generations: xsync.NewMapOf[string, uint64](),
		log:         log,
	}
}

func (c *Cache) generation(objectType string) uint64 {
	gen, _ := c.generations.Load(objectType)
	return gen
}

func (c *Cache) advance(objectType string) {
	c.generations.Compute(objectType, func(gen uint64, _ bool) (uint64, bool) {
		return gen + 1, false
	})
}

// Get looks up the ids cached for fp. The returned stamp is the state the
// lookup was made against; pass it to Set after a miss.
func (c *Cache) Get(objectType string, fp uint64) (ids []int32, stamp Stamp, ok bool, err error) {
	stamp.Generation = c.generation(objectType)
	version, err := c.versions.Current(objectType)
	if err != nil {
		return nil, Stamp{}, false, err
	}
	stamp.Version = version
	r, found := c.records.Load(objectType)
	if !found {
		CacheMisses.WithLabelValues(objectType).Inc()
		return nil, stamp, false, nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.stale(version) {
		if r.version > version && !r.dirty {
			// stamped by a caller that saw a newer version than ours
			CacheMisses.WithLabelValues(objectType).Inc()
			return nil, stamp, false, nil
		}
		c.log.Debug("dirty cache record rebuilt", "object_type", objectType, "was", r.version, "now", version)
		CacheRebuilds.WithLabelValues(objectType).Inc()
		r.reset(version)
	}
	if fp == NoFingerprint {
		CacheMisses.WithLabelValues(objectType).Inc()
		return nil, stamp, false, nil
	}
	v, hit := r.entries[fp]
	if !hit {
		CacheMisses.WithLabelValues(objectType).Inc()
		return nil, stamp, false, nil
	}
	v.uses++
	CacheHits.WithLabelValues(objectType).Inc()
	return slices.Clone(v.ids), stamp, true, nil
}

// Set caches ids for fp if stamp is still the current state of the object
// type. It reports whether the ids were stored.
func (c *Cache) Set(objectType string, stamp Stamp, fp uint64, ids []int32) (bool, error) {
	if fp == NoFingerprint {
		CacheStores.WithLabelValues(objectType, "uncacheable").Inc()
		return false, nil
	}
	current, err := c.versions.Current(objectType)
	if err != nil {
		return false, err
	}
	if current != stamp.Version || c.generation(objectType) != stamp.Generation {
		CacheStores.WithLabelValues(objectType, "outdated").Inc()
		return false, nil
	}
	r, _ := c.records.LoadOrCompute(objectType, func() *Record {
		return newRecord(objectType, current)
	})
	r.lock.Lock()
	defer r.lock.Unlock()
	// Invalidate advances the generation before it takes the record lock
	if c.generation(objectType) != stamp.Generation {
		CacheStores.WithLabelValues(objectType, "outdated").Inc()
		return false, nil
	}
	if r.stale(current) {
		if r.version > current && !r.dirty {
			CacheStores.WithLabelValues(objectType, "outdated").Inc()
			return false, nil
		}
		CacheRebuilds.WithLabelValues(objectType).Inc()
		r.reset(current)
	}
	r.put(fp, slices.Clone(ids), c.seq.Add(1))
	CacheStores.WithLabelValues(objectType, "stored").Inc()
	return true, nil
}

// Invalidate marks the record of an object type dirty; it is rebuilt on
// next access. Lookups stamped before the call can no longer store.
func (c *Cache) Invalidate(objectType string) {
	c.advance(objectType)
	r, ok := c.records.Load(objectType)
	if !ok {
		return
	}
	r.lock.Lock()
	r.dirty = true
	r.lock.Unlock()
}

// Remove forgets the cached results of an object type.
func (c *Cache) Remove(objectType string) {
	c.advance(objectType)
	c.records.Delete(objectType)
}

func (c *Cache) Reset() {
	c.records.Clear()
}

func (c *Cache) Stats() (s Stats) {
	c.records.Range(func(_ string, r *Record) bool {
		r.lock.Lock()
		s.Records++
		s.Queries += len(r.entries)
		s.Values += int(r.totalIDs)
		r.lock.Unlock()
		return true
	})
	return
}

// RecordStats reports the state of one record: stamped version, number of
// cached queries and cached ids.
func (c *Cache) RecordStats(objectType string) (version uint32, queries int, values int, ok bool) {
	r, ok := c.records.Load(objectType)
	if !ok {
		return 0, 0, 0, false
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.version, len(r.entries), int(r.totalIDs), true
}
