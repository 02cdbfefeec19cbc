// Package zerog is the secondary index query layer of an object store.
//
// An Indexer validates queries against registered object metadata, answers
// Find and Count from a versioned result cache when it can, and otherwise
// compiles the constraint and dispatches it to an index provider. Every
// write through the Indexer bumps the object type's version in the ledger,
// which makes all cached results of that type stale.
package zerog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jburman/ZeroG-sub001/cache"
	"github.com/jburman/ZeroG-sub001/constraint"
	"github.com/jburman/ZeroG-sub001/provider"
	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Versions is the version ledger as the Indexer uses it.
type Versions interface {
	Current(objectType string) (uint32, error)
	Bump(objectType string) (uint32, error)
}

type compiled struct {
	root *constraint.Constraint
	pred *constraint.Predicate
}

type Indexer struct {
	provider provider.Provider
	versions Versions
	cache    *cache.Cache
	cleaner  *cache.Cleaner
	compiled *lru.Cache[string, compiled]
	metadata *xsync.MapOf[string, provider.ObjectMetadata]
	opts     Options
	log      utils.Logger

	// bulk loads never interleave
	bulk sync.Mutex

	closed atomic.Bool
	cancel context.CancelFunc
	sweep  sync.WaitGroup
}

func New(p provider.Provider, v Versions, opts Options) (*Indexer, error) {
	opts.SetDefaults()
	if opts.Logger == nil {
		opts.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
	compiledCache, err := lru.New[string, compiled](opts.CompiledCacheSize)
	if err != nil {
		return nil, err
	}
	c := cache.New(v, opts.Logger)
	ix := &Indexer{
		provider: p,
		versions: v,
		cache:    c,
		cleaner:  cache.NewCleaner(c, opts.Eviction, cache.ByUseCount, opts.Logger),
		compiled: compiledCache,
		metadata: xsync.NewMapOf[string, provider.ObjectMetadata](),
		opts:     opts,
		log:      opts.Logger,
	}
	ctx, cancel := context.WithCancel(context.Background())
	ix.cancel = cancel
	if ix.cleaner.Options().Interval > 0 {
		ix.sweep.Add(1)
		go func() {
			defer ix.sweep.Done()
			ix.cleaner.Run(ctx)
		}()
	}
	return ix, nil
}

// Close stops the background sweep. The provider and the ledger are owned
// by the caller and stay open.
func (ix *Indexer) Close() error {
	if ix.closed.Swap(true) {
		return nil
	}
	ix.cancel()
	ix.sweep.Wait()
	ix.cache.Reset()
	ix.compiled.Purge()
	return nil
}

func (ix *Indexer) Cache() *cache.Cache {
	return ix.cache
}

// Clean runs one eviction sweep and reports whether anything was removed.
func (ix *Indexer) Clean() bool {
	return ix.cleaner.Clean()
}

func (ix *Indexer) NeedsCleaning() bool {
	return ix.cleaner.NeedsCleaning()
}

// Metadata returns the registered metadata of an object type.
func (ix *Indexer) Metadata(objectType string) (provider.ObjectMetadata, bool) {
	return ix.metadata.Load(objectType)
}

// ObjectTypes lists the registered object types.
func (ix *Indexer) ObjectTypes() []string {
	names := make([]string, 0, ix.metadata.Size())
	ix.metadata.Range(func(name string, _ provider.ObjectMetadata) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (ix *Indexer) lookup(objectType string) (provider.ObjectMetadata, error) {
	if ix.closed.Load() {
		return provider.ObjectMetadata{}, zerog_errors.ErrClosed
	}
	md, ok := ix.metadata.Load(objectType)
	if !ok {
		return md, fmt.Errorf("%w: %s", zerog_errors.ErrTypeUnknown, objectType)
	}
	return md, nil
}

func (ix *Indexer) types(md *provider.ObjectMetadata) map[string]constraint.ValueType {
	types := md.Types()
	types[provider.IDIndex] = constraint.TypeInt32
	return types
}

// validate checks order and select names against the declared indexes.
func validate(md *provider.ObjectMetadata, opts provider.QueryOptions) error {
	for _, name := range opts.Order.Indexes {
		if !md.HasIndex(name) {
			return fmt.Errorf("%w: %s has no index %q", zerog_errors.ErrUnknownOrder, md.ObjectFullName, name)
		}
	}
	for _, name := range opts.Select {
		if !md.HasIndex(name) {
			return fmt.Errorf("%w: %s has no index %q", zerog_errors.ErrBadSelect, md.ObjectFullName, name)
		}
	}
	if opts.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", zerog_errors.ErrSyntax, opts.Limit)
	}
	return nil
}

func checkNames(md *provider.ObjectMetadata, names []string) error {
	for _, name := range names {
		if !md.HasIndex(name) {
			return fmt.Errorf("%w: %s has no index %q", zerog_errors.ErrUnknownIndex, md.ObjectFullName, name)
		}
	}
	return nil
}

// compile parses and compiles a constraint document for an object type,
// going through the compiled constraint cache. An empty document matches
// every row and compiles to nothing.
func (ix *Indexer) compile(md *provider.ObjectMetadata, doc string) (compiled, error) {
	if strings.TrimSpace(doc) == "" {
		return compiled{}, nil
	}
	key := md.ObjectFullName + keySeparator + doc
	if c, ok := ix.compiled.Get(key); ok {
		return c, nil
	}
	root, err := constraint.ParseJSON(doc)
	if err != nil {
		return compiled{}, err
	}
	if err = checkNames(md, root.Names()); err != nil {
		return compiled{}, err
	}
	compiler := constraint.Compiler{Dialect: ix.provider.Dialect(), Types: ix.types(md)}
	pred, err := compiler.Compile(root)
	if err != nil {
		return compiled{}, err
	}
	c := compiled{root: root, pred: pred}
	ix.compiled.Add(key, c)
	return c, nil
}

func (ix *Indexer) compileJSON(md *provider.ObjectMetadata, doc string) (*constraint.Predicate, error) {
	c, err := ix.compile(md, doc)
	return c.pred, err
}

// Explain returns the constraint tree and the predicate a document
// compiles to for an object type.
func (ix *Indexer) Explain(objectType string, doc string) (*constraint.Constraint, *constraint.Predicate, error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return nil, nil, err
	}
	c, err := ix.compile(&md, doc)
	return c.root, c.pred, err
}

// compileValues builds an equality conjunction over index values.
func (ix *Indexer) compileValues(md *provider.ObjectMetadata, values []provider.IndexValue) (*constraint.Predicate, error) {
	if len(values) == 0 {
		return nil, nil
	}
	names := make([]string, len(values))
	vals := make([]any, len(values))
	for i, v := range values {
		names[i] = v.Name
		vals[i] = v.Value
	}
	if err := checkNames(md, names); err != nil {
		return nil, err
	}
	compiler := constraint.Compiler{Dialect: ix.provider.Dialect(), Types: ix.types(md)}
	return compiler.Compile(constraint.Equals(names, vals))
}

func describeValues(values []provider.IndexValue) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteString(keySeparator)
		}
		fmt.Fprintf(&sb, "%s=%T:%v", v.Name, v.Value, v.Value)
	}
	return sb.String()
}

func describeOptions(opts provider.QueryOptions) string {
	return fmt.Sprintf("limit=%d desc=%t", opts.Limit, opts.Order.Descending)
}

// cached answers from the cache or runs query and caches its result.
func (ix *Indexer) cached(ctx context.Context, key queryKey, query func() ([]int32, error)) ([]int32, error) {
	if ix.opts.DisableCache {
		QueryCount.WithLabelValues(key.Kind, "provider").Inc()
		return query()
	}
	fp := key.fingerprint(ix.opts.MaxFingerprintSource)
	ids, stamp, ok, err := ix.cache.Get(key.ObjectType, fp)
	if err != nil {
		return nil, err
	}
	if ok {
		QueryCount.WithLabelValues(key.Kind, "cache").Inc()
		return ids, nil
	}
	QueryCount.WithLabelValues(key.Kind, "provider").Inc()
	if ids, err = query(); err != nil {
		return nil, err
	}
	stored, err := ix.cache.Set(key.ObjectType, stamp, fp, ids)
	if err != nil {
		return nil, err
	}
	if stored && ix.cleaner.NeedsCleaning() {
		ix.cleaner.Clean()
	}
	ix.log.DebugCtx(ctx, "query cached", "fingerprint", fp, "stored", stored)
	return ids, nil
}

func observe(op string, start time.Time) {
	ProviderDuration.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (ix *Indexer) find(ctx context.Context, md *provider.ObjectMetadata, key queryKey, opts provider.QueryOptions, compile func() (*constraint.Predicate, error)) ([]int32, error) {
	ctx = utils.WithDefaultArgs(utils.WithObjectType(ctx, md.ObjectFullName), "kind", key.Kind)
	return ix.cached(ctx, key, func() ([]int32, error) {
		pred, err := compile()
		if err != nil {
			return nil, err
		}
		defer observe("find", time.Now())
		return ix.provider.Find(ctx, md.ObjectFullName, pred, opts)
	})
}

// Find returns the ids of objects whose index values equal all of values,
// or every id when values is empty.
func (ix *Indexer) Find(ctx context.Context, objectType string, opts provider.QueryOptions, values ...provider.IndexValue) ([]int32, error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return nil, err
	}
	if err = validate(&md, opts); err != nil {
		return nil, err
	}
	key := queryKey{
		ObjectType: objectType,
		Kind:       kindFind,
		Query:      describeValues(values) + keySeparator + describeOptions(opts),
		Indexes:    opts.Order.Indexes,
	}
	return ix.find(ctx, &md, key, opts, func() (*constraint.Predicate, error) {
		return ix.compileValues(&md, values)
	})
}

// FindJSON returns the ids of objects matching a JSON constraint.
func (ix *Indexer) FindJSON(ctx context.Context, objectType string, doc string, opts provider.QueryOptions) ([]int32, error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return nil, err
	}
	if err = validate(&md, opts); err != nil {
		return nil, err
	}
	key := queryKey{
		ObjectType: objectType,
		Kind:       kindFind,
		Query:      doc + keySeparator + describeOptions(opts),
		Indexes:    opts.Order.Indexes,
	}
	return ix.find(ctx, &md, key, opts, func() (*constraint.Predicate, error) {
		return ix.compileJSON(&md, doc)
	})
}

func (ix *Indexer) count(ctx context.Context, md *provider.ObjectMetadata, key queryKey, compile func() (*constraint.Predicate, error)) (int, error) {
	ctx = utils.WithDefaultArgs(utils.WithObjectType(ctx, md.ObjectFullName), "kind", key.Kind)
	var n int
	ids, err := ix.cached(ctx, key, func() ([]int32, error) {
		pred, err := compile()
		if err != nil {
			return nil, err
		}
		start := time.Now()
		n, err = ix.provider.Count(ctx, md.ObjectFullName, pred)
		observe("count", start)
		if err != nil {
			return nil, err
		}
		if n > math.MaxInt32 {
			// too big for the cache, key it as uncacheable
			return nil, errCountOverflow
		}
		return []int32{int32(n)}, nil
	})
	switch {
	case errors.Is(err, errCountOverflow):
		return n, nil
	case err != nil:
		return 0, err
	case len(ids) == 1:
		return int(ids[0]), nil
	}
	return n, nil
}

// errCountOverflow keeps counts above MaxInt32 out of the cache.
var errCountOverflow = errors.New("count overflows the cache")

// Count returns the number of objects whose index values equal all of
// values.
func (ix *Indexer) Count(ctx context.Context, objectType string, values ...provider.IndexValue) (int, error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return 0, err
	}
	key := queryKey{ObjectType: objectType, Kind: kindCount, Query: describeValues(values)}
	return ix.count(ctx, &md, key, func() (*constraint.Predicate, error) {
		return ix.compileValues(&md, values)
	})
}

// CountJSON returns the number of objects matching a JSON constraint.
func (ix *Indexer) CountJSON(ctx context.Context, objectType string, doc string) (int, error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return 0, err
	}
	key := queryKey{ObjectType: objectType, Kind: kindCount, Query: doc}
	return ix.count(ctx, &md, key, func() (*constraint.Predicate, error) {
		return ix.compileJSON(&md, doc)
	})
}

// Exists reports whether any object matches a JSON constraint. Not cached.
func (ix *Indexer) Exists(ctx context.Context, objectType string, doc string) (bool, error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return false, err
	}
	pred, err := ix.compileJSON(&md, doc)
	if err != nil {
		return false, err
	}
	QueryCount.WithLabelValues("exists", "provider").Inc()
	defer observe("exists", time.Now())
	return ix.provider.Exists(ctx, objectType, pred)
}

// Iterate streams the rows matching a JSON constraint from a live cursor.
// The sequence can be ranged over once. Not cached.
func (ix *Indexer) Iterate(ctx context.Context, objectType string, doc string, opts provider.QueryOptions) (iter.Seq2[provider.Row, error], error) {
	md, err := ix.lookup(objectType)
	if err != nil {
		return nil, err
	}
	if err = validate(&md, opts); err != nil {
		return nil, err
	}
	pred, err := ix.compileJSON(&md, doc)
	if err != nil {
		return nil, err
	}
	QueryCount.WithLabelValues("iterate", "provider").Inc()
	return ix.provider.Iterate(ctx, objectType, pred, opts)
}
