// Package provider defines the contract of a tabular index backend: one
// table per object type, one column per declared index, queried with
// predicates compiled by package constraint.
package provider

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/jburman/ZeroG-sub001/constraint"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
)

// IDIndex is the implicit index holding the object id of every row.
const IDIndex = "ID"

type IndexDefinition struct {
	Name string               `json:"name" yaml:"name"`
	Type constraint.ValueType `json:"type" yaml:"type"`
}

type ObjectMetadata struct {
	ObjectFullName string            `json:"name" yaml:"name"`
	Indexes        []IndexDefinition `json:"indexes" yaml:"indexes"`
}

// Types maps declared index names to their value types.
func (md *ObjectMetadata) Types() map[string]constraint.ValueType {
	types := make(map[string]constraint.ValueType, len(md.Indexes))
	for _, idx := range md.Indexes {
		types[idx.Name] = idx.Type
	}
	return types
}

// HasIndex reports whether name is declared, or is the id index.
func (md *ObjectMetadata) HasIndex(name string) bool {
	if name == IDIndex {
		return true
	}
	for _, idx := range md.Indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

func (md *ObjectMetadata) Validate() error {
	if md.ObjectFullName == "" {
		return fmt.Errorf("%w: empty object name", zerog_errors.ErrBadMetadata)
	}
	// column names are case insensitive in SQL backends
	seen := make(map[string]struct{}, len(md.Indexes))
	for _, idx := range md.Indexes {
		if idx.Name == "" || strings.EqualFold(idx.Name, IDIndex) {
			return fmt.Errorf("%w: %s: bad index name %q", zerog_errors.ErrBadMetadata, md.ObjectFullName, idx.Name)
		}
		folded := strings.ToLower(idx.Name)
		if _, dup := seen[folded]; dup {
			return fmt.Errorf("%w: %s: duplicate index %q", zerog_errors.ErrBadMetadata, md.ObjectFullName, idx.Name)
		}
		seen[folded] = struct{}{}
	}
	return nil
}

type IndexValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type IndexRow struct {
	ID     int32
	Values []IndexValue
}

type Order struct {
	Indexes    []string
	Descending bool
}

type QueryOptions struct {
	// Limit caps the number of results, 0 means unlimited.
	Limit int
	Order Order
	// Select restricts the columns Iterate returns; empty selects all.
	Select []string
}

// Row is one row of an Iterate result, keyed by column name.
type Row map[string]any

type Provider interface {
	Dialect() constraint.Dialect

	// A nil predicate matches every row.
	Find(ctx context.Context, objectType string, pred *constraint.Predicate, opts QueryOptions) ([]int32, error)
	Count(ctx context.Context, objectType string, pred *constraint.Predicate) (int, error)
	Exists(ctx context.Context, objectType string, pred *constraint.Predicate) (bool, error)
	// Iterate streams rows from a live cursor. The sequence is single pass.
	Iterate(ctx context.Context, objectType string, pred *constraint.Predicate, opts QueryOptions) (iter.Seq2[Row, error], error)

	ProvisionIndex(ctx context.Context, md ObjectMetadata) error
	UnprovisionIndex(ctx context.Context, objectType string) error
	UpsertIndexValues(ctx context.Context, objectType string, id int32, values []IndexValue) error
	RemoveIndexValue(ctx context.Context, objectType string, id int32) error
	RemoveIndexValues(ctx context.Context, objectType string, ids []int32) error
	// BulkIndex writes all rows or none.
	BulkIndex(ctx context.Context, md ObjectMetadata, rows []IndexRow) error
	Truncate(ctx context.Context, objectType string) error

	Close() error
}
