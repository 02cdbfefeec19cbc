package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jburman/ZeroG-sub001/constraint"
	"github.com/jburman/ZeroG-sub001/provider"
	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var personMetadata = provider.ObjectMetadata{
	ObjectFullName: "app.Person",
	Indexes: []provider.IndexDefinition{
		{Name: "Name", Type: constraint.TypeString},
		{Name: "Age", Type: constraint.TypeInt32},
	},
}

func testProvider(t *testing.T) *Provider {
	dir, err := os.MkdirTemp("", "zerog-sqlite-*")
	require.NoError(t, err)
	p, err := Open(filepath.Join(dir, "index.db"), utils.NewDefaultLogger(slog.LevelError))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close()
		_ = os.RemoveAll(dir)
	})
	require.NoError(t, p.ProvisionIndex(context.Background(), personMetadata))
	return p
}

func seed(t *testing.T, p *Provider) {
	rows := []provider.IndexRow{
		{ID: 1, Values: []provider.IndexValue{{Name: "Name", Value: "alice"}, {Name: "Age", Value: int32(31)}}},
		{ID: 2, Values: []provider.IndexValue{{Name: "Name", Value: "bob"}, {Name: "Age", Value: int32(25)}}},
		{ID: 3, Values: []provider.IndexValue{{Name: "Name", Value: "bobby"}, {Name: "Age", Value: int32(40)}}},
		{ID: 4, Values: []provider.IndexValue{{Name: "Name", Value: "carol"}}},
	}
	require.NoError(t, p.BulkIndex(context.Background(), personMetadata, rows))
}

func compile(t *testing.T, doc string) *constraint.Predicate {
	_, pred, err := constraint.CompileJSON(doc, constraint.SQLite{}, personMetadata.Types())
	require.NoError(t, err)
	return pred
}

func TestProvider_Find(t *testing.T) {
	p := testProvider(t)
	seed(t, p)
	ctx := context.Background()

	ids, err := p.Find(ctx, "app.Person", nil, provider.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, ids)

	ids, err = p.Find(ctx, "app.Person", compile(t, `{"Name":"bob*","Op":"LIKE"}`), provider.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int32{2, 3}, ids)

	ids, err = p.Find(ctx, "app.Person", compile(t, `{"Age":30,"Op":">","OR":{"Name":"bob"}}`),
		provider.QueryOptions{Order: provider.Order{Indexes: []string{"Age"}, Descending: true}, Limit: 2})
	assert.NoError(t, err)
	assert.Equal(t, []int32{3, 1}, ids)

	ids, err = p.Find(ctx, "app.Person", compile(t, `{"Age":[25,40],"Op":"IN"}`), provider.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int32{2, 3}, ids)

	ids, err = p.Find(ctx, "app.Person", compile(t, `{"Name":"nobody"}`), provider.QueryOptions{})
	assert.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestProvider_CountExists(t *testing.T) {
	p := testProvider(t)
	seed(t, p)
	ctx := context.Background()

	n, err := p.Count(ctx, "app.Person", nil)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = p.Count(ctx, "app.Person", compile(t, `{"Age":30,"Op":"<"}`))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := p.Exists(ctx, "app.Person", compile(t, `{"Name":"carol"}`))
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(ctx, "app.Person", compile(t, `{"Name":"dave"}`))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestProvider_IterateSinglePass(t *testing.T) {
	p := testProvider(t)
	seed(t, p)

	seq, err := p.Iterate(context.Background(), "app.Person", compile(t, `{"Name":"bob*","Op":"LIKE"}`),
		provider.QueryOptions{Select: []string{"ID", "Name"}})
	require.NoError(t, err)

	var names []any
	for row, err := range seq {
		require.NoError(t, err)
		assert.Len(t, row, 2)
		names = append(names, row["Name"])
	}
	assert.Equal(t, []any{"bob", "bobby"}, names)

	for _, err := range seq {
		assert.ErrorIs(t, err, zerog_errors.ErrIteratorConsumed)
	}
}

func TestProvider_UpsertRemove(t *testing.T) {
	p := testProvider(t)
	ctx := context.Background()

	require.NoError(t, p.UpsertIndexValues(ctx, "app.Person", 7, []provider.IndexValue{{Name: "Name", Value: "eve"}}))
	require.NoError(t, p.UpsertIndexValues(ctx, "app.Person", 7, []provider.IndexValue{{Name: "Age", Value: int32(50)}}))
	require.NoError(t, p.UpsertIndexValues(ctx, "app.Person", 8, nil))

	ids, err := p.Find(ctx, "app.Person", compile(t, `{"Name":"eve","AND":{"Age":50}}`), provider.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int32{7}, ids)

	require.NoError(t, p.RemoveIndexValue(ctx, "app.Person", 7))
	n, err := p.Count(ctx, "app.Person", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	seed(t, p)
	require.NoError(t, p.RemoveIndexValues(ctx, "app.Person", []int32{1, 3, 8, 99}))
	ids, err = p.Find(ctx, "app.Person", nil, provider.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int32{2, 4}, ids)
}

func TestProvider_BulkIndexAllOrNothing(t *testing.T) {
	p := testProvider(t)
	ctx := context.Background()

	err := p.BulkIndex(ctx, personMetadata, []provider.IndexRow{
		{ID: 1, Values: []provider.IndexValue{{Name: "Name", Value: "alice"}}},
		{ID: 2, Values: []provider.IndexValue{{Name: "Shoe", Value: 42}}},
	})
	assert.ErrorIs(t, err, zerog_errors.ErrUnknownIndex)

	n, err := p.Count(ctx, "app.Person", nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProvider_ProvisionAddsColumns(t *testing.T) {
	p := testProvider(t)
	ctx := context.Background()
	seed(t, p)

	md := personMetadata
	md.Indexes = append(append([]provider.IndexDefinition{}, md.Indexes...),
		provider.IndexDefinition{Name: "Score", Type: constraint.TypeDouble})
	require.NoError(t, p.ProvisionIndex(ctx, md))
	// idempotent
	require.NoError(t, p.ProvisionIndex(ctx, md))

	require.NoError(t, p.UpsertIndexValues(ctx, "app.Person", 2, []provider.IndexValue{{Name: "Score", Value: 9.5}}))
	_, pred, err := constraint.CompileJSON(`{"Score":9,"Op":">="}`, constraint.SQLite{}, md.Types())
	require.NoError(t, err)
	ids, err := p.Find(ctx, "app.Person", pred, provider.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int32{2}, ids)
}

func TestProvider_TruncateUnprovision(t *testing.T) {
	p := testProvider(t)
	ctx := context.Background()
	seed(t, p)

	require.NoError(t, p.Truncate(ctx, "app.Person"))
	n, err := p.Count(ctx, "app.Person", nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, p.UnprovisionIndex(ctx, "app.Person"))
	_, err = p.Count(ctx, "app.Person", nil)
	assert.Error(t, err)
	// dropping twice is fine
	assert.NoError(t, p.UnprovisionIndex(ctx, "app.Person"))
}
