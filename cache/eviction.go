package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jburman/ZeroG-sub001/utils"
)

type EvictionOptions struct {
	// MaxQueries is the number of cached queries, across all object types,
	// above which the cache needs cleaning.
	MaxQueries int `yaml:"max_queries"`
	// MaxValues is the number of cached ids above which the cache needs
	// cleaning.
	MaxValues int `yaml:"max_values"`
	// ReductionFactor: a clean removes 1/ReductionFactor of all cached
	// queries. At least 2.
	ReductionFactor int `yaml:"reduction_factor"`
	// Interval of the background sweep; zero or negative disables it.
	Interval time.Duration `yaml:"interval"`
}

func (o *EvictionOptions) SetDefaults() {
	if o.MaxQueries <= 0 {
		o.MaxQueries = 10000
	}
	if o.MaxValues <= 0 {
		o.MaxValues = 1000000
	}
	if o.ReductionFactor < 2 {
		o.ReductionFactor = 4
	}
}

// Candidate is a snapshot of one cache entry, ranked for eviction.
type Candidate struct {
	ObjectType  string
	Fingerprint uint64
	Uses        uint32
	Size        int
	Seq         uint64
}

// Rank orders candidates; entries that compare lowest are evicted first.
type Rank func(a, b Candidate) bool

// ByUseCount evicts the least used entries first, oldest first on ties.
func ByUseCount(a, b Candidate) bool {
	if a.Uses != b.Uses {
		return a.Uses < b.Uses
	}
	return a.Seq < b.Seq
}

// ByUseCountThenSize evicts the least used entries first, bigger id sets
// first on ties.
func ByUseCountThenSize(a, b Candidate) bool {
	if a.Uses != b.Uses {
		return a.Uses < b.Uses
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.Seq < b.Seq
}

// Cleaner bounds the cache: once a threshold is exceeded it drops a fixed
// fraction of the lowest ranked entries in one sweep.
type Cleaner struct {
	cache *Cache
	opts  EvictionOptions
	rank  Rank
	log   utils.Logger
	lock  sync.Mutex
}

func NewCleaner(c *Cache, opts EvictionOptions, rank Rank, log utils.Logger) *Cleaner {
	opts.SetDefaults()
	if rank == nil {
		rank = ByUseCount
	}
	if log == nil {
		log = c.log
	}
	return &Cleaner{
		cache: c,
		opts:  opts,
		rank:  rank,
		log:   log,
	}
}

func (cl *Cleaner) Options() EvictionOptions {
	return cl.opts
}

func (cl *Cleaner) NeedsCleaning() bool {
	s := cl.cache.Stats()
	return s.Queries > cl.opts.MaxQueries || s.Values > cl.opts.MaxValues
}

// Clean removes total/ReductionFactor entries, lowest ranked first, and
// reports whether anything was removed.
func (cl *Cleaner) Clean() bool {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	start := time.Now()

	heap := utils.NewHeap(cl.rank, 0)
	cl.cache.records.Range(func(_ string, r *Record) bool {
		r.lock.Lock()
		for fp, v := range r.entries {
			heap.Push(Candidate{
				ObjectType:  r.objectType,
				Fingerprint: fp,
				Uses:        v.uses,
				Size:        len(v.ids),
				Seq:         v.seq,
			})
		}
		r.lock.Unlock()
		return true
	})

	total := heap.Len()
	toRemove := total / cl.opts.ReductionFactor
	removed := 0
	for removed < toRemove && heap.Len() > 0 {
		victim := heap.Pop()
		r, ok := cl.cache.records.Load(victim.ObjectType)
		if !ok {
			continue
		}
		if r.remove(victim.Fingerprint, victim.Seq) {
			removed++
		}
	}

	took := time.Since(start)
	CacheEvictions.Add(float64(removed))
	CacheCleanDuration.Observe(float64(took.Milliseconds()))
	cl.log.Info("query cache cleaned", "queries", total, "removed", removed, "took", took)
	return removed > 0
}

// Run sweeps the cache every Interval until ctx is done.
func (cl *Cleaner) Run(ctx context.Context) {
	if cl.opts.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(cl.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cl.NeedsCleaning() {
				cl.Clean()
			}
		}
	}
}
