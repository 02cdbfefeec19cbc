package zerog

import (
	"context"
	"fmt"
	"time"

	"github.com/jburman/ZeroG-sub001/constraint"
	"github.com/jburman/ZeroG-sub001/provider"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
)

// coerceValues checks value names against the declared indexes and
// converts the values to the declared column types.
func coerceValues(md *provider.ObjectMetadata, values []provider.IndexValue) ([]provider.IndexValue, error) {
	types := md.Types()
	out := make([]provider.IndexValue, len(values))
	for i, v := range values {
		t, ok := types[v.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no index %q", zerog_errors.ErrUnknownIndex, md.ObjectFullName, v.Name)
		}
		val, err := constraint.Coerce(v.Value, t)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", md.ObjectFullName, v.Name, err)
		}
		out[i] = provider.IndexValue{Name: v.Name, Value: val}
	}
	return out, nil
}

// written records a successful write: the object type's version moves on
// so every cached result of it goes stale. If the ledger fails the record
// is invalidated in memory anyway.
func (ix *Indexer) written(ctx context.Context, op string, objectType string) error {
	WriteCount.WithLabelValues(op, "ok").Inc()
	if _, err := ix.versions.Bump(objectType); err != nil {
		ix.cache.Invalidate(objectType)
		ix.log.ErrorCtx(ctx, "version bump failed", "object_type", objectType, "op", op, "err", err)
		return err
	}
	return nil
}

func (ix *Indexer) failed(op string, err error) error {
	WriteCount.WithLabelValues(op, "error").Inc()
	return err
}

// UpsertIndexValues stores the index values of one object.
func (ix *Indexer) UpsertIndexValues(ctx context.Context, objectType string, id int32, values ...provider.IndexValue) error {
	md, err := ix.lookup(objectType)
	if err != nil {
		return err
	}
	values, err = coerceValues(&md, values)
	if err != nil {
		return err
	}
	start := time.Now()
	err = ix.provider.UpsertIndexValues(ctx, objectType, id, values)
	observe("upsert", start)
	if err != nil {
		return ix.failed("upsert", err)
	}
	return ix.written(ctx, "upsert", objectType)
}

// RemoveIndexValues removes the index rows of the given objects.
func (ix *Indexer) RemoveIndexValues(ctx context.Context, objectType string, ids ...int32) error {
	if _, err := ix.lookup(objectType); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	var err error
	if len(ids) == 1 {
		err = ix.provider.RemoveIndexValue(ctx, objectType, ids[0])
	} else {
		err = ix.provider.RemoveIndexValues(ctx, objectType, ids)
	}
	observe("remove", start)
	if err != nil {
		return ix.failed("remove", err)
	}
	return ix.written(ctx, "remove", objectType)
}

// BulkIndex writes many rows at once. Bulk loads are serialized across
// all object types.
func (ix *Indexer) BulkIndex(ctx context.Context, md provider.ObjectMetadata, rows []provider.IndexRow) error {
	if ix.closed.Load() {
		return zerog_errors.ErrClosed
	}
	if err := md.Validate(); err != nil {
		return err
	}
	prepared := make([]provider.IndexRow, len(rows))
	for i, row := range rows {
		values, err := coerceValues(&md, row.Values)
		if err != nil {
			return fmt.Errorf("row #%d: %w", row.ID, err)
		}
		prepared[i] = provider.IndexRow{ID: row.ID, Values: values}
	}

	ix.bulk.Lock()
	defer ix.bulk.Unlock()
	start := time.Now()
	err := ix.provider.BulkIndex(ctx, md, prepared)
	observe("bulk_index", start)
	if err != nil {
		return ix.failed("bulk_index", err)
	}
	ix.log.InfoCtx(ctx, "bulk indexed", "object_type", md.ObjectFullName, "rows", len(rows), "took", time.Since(start))
	return ix.written(ctx, "bulk_index", md.ObjectFullName)
}

// RegisterMetadata makes an already provisioned object type known.
func (ix *Indexer) RegisterMetadata(md provider.ObjectMetadata) error {
	if err := md.Validate(); err != nil {
		return err
	}
	ix.metadata.Store(md.ObjectFullName, md)
	// column types may have changed
	ix.compiled.Purge()
	return nil
}

// ProvisionIndex creates or extends the index table of an object type and
// registers its metadata.
func (ix *Indexer) ProvisionIndex(ctx context.Context, md provider.ObjectMetadata) error {
	if ix.closed.Load() {
		return zerog_errors.ErrClosed
	}
	if err := md.Validate(); err != nil {
		return err
	}
	if err := ix.provider.ProvisionIndex(ctx, md); err != nil {
		return ix.failed("provision", err)
	}
	WriteCount.WithLabelValues("provision", "ok").Inc()
	return ix.RegisterMetadata(md)
}

// UnprovisionIndex drops the index table of an object type and forgets
// its metadata and cached results.
func (ix *Indexer) UnprovisionIndex(ctx context.Context, objectType string) error {
	if ix.closed.Load() {
		return zerog_errors.ErrClosed
	}
	if err := ix.provider.UnprovisionIndex(ctx, objectType); err != nil {
		return ix.failed("unprovision", err)
	}
	ix.metadata.Delete(objectType)
	ix.compiled.Purge()
	err := ix.written(ctx, "unprovision", objectType)
	ix.cache.Remove(objectType)
	return err
}

// Truncate removes every index row of an object type.
func (ix *Indexer) Truncate(ctx context.Context, objectType string) error {
	if _, err := ix.lookup(objectType); err != nil {
		return err
	}
	if err := ix.provider.Truncate(ctx, objectType); err != nil {
		return ix.failed("truncate", err)
	}
	err := ix.written(ctx, "truncate", objectType)
	ix.cache.Invalidate(objectType)
	return err
}
