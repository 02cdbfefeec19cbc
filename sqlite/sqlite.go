// Package sqlite is an index provider storing one SQLite table per object
// type.
//
// Table "ZeroG_<object type>" has an INTEGER PRIMARY KEY "ID" column and one
// column plus one SQL index per declared index. Provisioning is additive:
// re-provisioning with more indexes adds the missing columns.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/jburman/ZeroG-sub001/constraint"
	"github.com/jburman/ZeroG-sub001/provider"
	"github.com/jburman/ZeroG-sub001/utils"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const TablePrefix = "ZeroG_"

// removeChunk bounds the number of ids per DELETE ... IN statement
const removeChunk = 500

type Provider struct {
	db      *sql.DB
	dialect constraint.SQLite
	log     utils.Logger
}

var _ provider.Provider = (*Provider)(nil)

// Open opens the database file at path, creating it if needed.
func Open(path string, log utils.Logger) (*Provider, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: open %s", path)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "sqlite: open %s", path)
	}
	return New(db, log), nil
}

// New wraps an already open database.
func New(db *sql.DB, log utils.Logger) *Provider {
	if log == nil {
		log = utils.NewDefaultLogger(slog.LevelWarn)
	}
	return &Provider{db: db, log: log}
}

func (p *Provider) Dialect() constraint.Dialect {
	return p.dialect
}

func (p *Provider) Close() error {
	return p.db.Close()
}

func (p *Provider) table(objectType string) string {
	return p.dialect.QuoteName(TablePrefix + objectType)
}

func columnType(t constraint.ValueType) string {
	switch t {
	case constraint.TypeInt32, constraint.TypeInt64, constraint.TypeBool:
		return "INTEGER"
	case constraint.TypeDouble:
		return "REAL"
	case constraint.TypeBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func where(pred *constraint.Predicate) (string, []any) {
	if pred == nil || pred.Text == "" {
		return "", nil
	}
	return " WHERE " + pred.Text, pred.Args()
}

func (p *Provider) orderLimit(opts provider.QueryOptions) string {
	var sb strings.Builder
	indexes := opts.Order.Indexes
	if len(indexes) == 0 {
		indexes = []string{provider.IDIndex}
	}
	dir := " ASC"
	if opts.Order.Descending {
		dir = " DESC"
	}
	sb.WriteString(" ORDER BY ")
	for i, name := range indexes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.dialect.QuoteName(name) + dir)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}
	return sb.String()
}

func (p *Provider) Find(ctx context.Context, objectType string, pred *constraint.Predicate, opts provider.QueryOptions) ([]int32, error) {
	w, args := where(pred)
	q := "SELECT " + p.dialect.QuoteName(provider.IDIndex) + " FROM " + p.table(objectType) + w + p.orderLimit(opts)
	p.log.Debug("find", "object_type", objectType, "sql", q)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: find in %s", objectType)
	}
	defer rows.Close()
	ids := make([]int32, 0)
	for rows.Next() {
		var id int32
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrapf(err, "sqlite: find in %s", objectType)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "sqlite: find in %s", objectType)
	}
	return ids, nil
}

func (p *Provider) Count(ctx context.Context, objectType string, pred *constraint.Predicate) (int, error) {
	w, args := where(pred)
	q := "SELECT COUNT(1) FROM " + p.table(objectType) + w
	var n int
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "sqlite: count in %s", objectType)
	}
	return n, nil
}

func (p *Provider) Exists(ctx context.Context, objectType string, pred *constraint.Predicate) (bool, error) {
	w, args := where(pred)
	q := "SELECT EXISTS(SELECT 1 FROM " + p.table(objectType) + w + ")"
	var found bool
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&found); err != nil {
		return false, errors.Wrapf(err, "sqlite: exists in %s", objectType)
	}
	return found, nil
}

func (p *Provider) Iterate(ctx context.Context, objectType string, pred *constraint.Predicate, opts provider.QueryOptions) (iter.Seq2[provider.Row, error], error) {
	cols := "*"
	if len(opts.Select) > 0 {
		quoted := make([]string, len(opts.Select))
		for i, name := range opts.Select {
			quoted[i] = p.dialect.QuoteName(name)
		}
		cols = strings.Join(quoted, ", ")
	}
	w, args := where(pred)
	q := "SELECT " + cols + " FROM " + p.table(objectType) + w + p.orderLimit(opts)
	var consumed atomic.Bool
	return func(yield func(provider.Row, error) bool) {
		if consumed.Swap(true) {
			yield(nil, zerog_errors.ErrIteratorConsumed)
			return
		}
		rows, err := p.db.QueryContext(ctx, q, args...)
		if err != nil {
			yield(nil, errors.Wrapf(err, "sqlite: iterate %s", objectType))
			return
		}
		defer rows.Close()
		names, err := rows.Columns()
		if err != nil {
			yield(nil, errors.Wrapf(err, "sqlite: iterate %s", objectType))
			return
		}
		for rows.Next() {
			vals := make([]any, len(names))
			ptrs := make([]any, len(names))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err = rows.Scan(ptrs...); err != nil {
				yield(nil, errors.Wrapf(err, "sqlite: iterate %s", objectType))
				return
			}
			row := make(provider.Row, len(names))
			for i, name := range names {
				row[name] = vals[i]
			}
			if !yield(row, nil) {
				return
			}
		}
		if err = rows.Err(); err != nil {
			yield(nil, errors.Wrapf(err, "sqlite: iterate %s", objectType))
		}
	}, nil
}

func (p *Provider) columns(ctx context.Context, tx *sql.Tx, objectType string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", TablePrefix+objectType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

func (p *Provider) ProvisionIndex(ctx context.Context, md provider.ObjectMetadata) (err error) {
	objectType := md.ObjectFullName
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "sqlite: provision %s", objectType)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	table := p.table(objectType)
	_, err = tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+table+
		" ("+p.dialect.QuoteName(provider.IDIndex)+" INTEGER PRIMARY KEY)")
	if err != nil {
		return errors.Wrapf(err, "sqlite: provision %s", objectType)
	}
	existing, err := p.columns(ctx, tx, objectType)
	if err != nil {
		return errors.Wrapf(err, "sqlite: provision %s", objectType)
	}
	for _, idx := range md.Indexes {
		col := p.dialect.QuoteName(idx.Name)
		if _, ok := existing[idx.Name]; !ok {
			_, err = tx.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+col+" "+columnType(idx.Type))
			if err != nil {
				return errors.Wrapf(err, "sqlite: provision %s.%s", objectType, idx.Name)
			}
		}
		ixName := p.dialect.QuoteName(TablePrefix + objectType + "_" + idx.Name)
		_, err = tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS "+ixName+" ON "+table+" ("+col+")")
		if err != nil {
			return errors.Wrapf(err, "sqlite: provision %s.%s", objectType, idx.Name)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "sqlite: provision %s", objectType)
	}
	p.log.Info("index provisioned", "object_type", objectType, "indexes", len(md.Indexes))
	return nil
}

func (p *Provider) UnprovisionIndex(ctx context.Context, objectType string) error {
	if _, err := p.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+p.table(objectType)); err != nil {
		return errors.Wrapf(err, "sqlite: unprovision %s", objectType)
	}
	p.log.Info("index unprovisioned", "object_type", objectType)
	return nil
}

func (p *Provider) upsertSQL(objectType string, names []string) string {
	cols := make([]string, 0, len(names)+1)
	marks := make([]string, 0, len(names)+1)
	sets := make([]string, 0, len(names))
	cols = append(cols, p.dialect.QuoteName(provider.IDIndex))
	marks = append(marks, "?")
	for _, name := range names {
		col := p.dialect.QuoteName(name)
		cols = append(cols, col)
		marks = append(marks, "?")
		sets = append(sets, col+" = excluded."+col)
	}
	q := "INSERT INTO " + p.table(objectType) + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	if len(sets) == 0 {
		return q + " ON CONFLICT DO NOTHING"
	}
	return q + " ON CONFLICT(" + p.dialect.QuoteName(provider.IDIndex) + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func (p *Provider) UpsertIndexValues(ctx context.Context, objectType string, id int32, values []provider.IndexValue) error {
	names := make([]string, len(values))
	args := make([]any, 0, len(values)+1)
	args = append(args, id)
	for i, v := range values {
		names[i] = v.Name
		args = append(args, v.Value)
	}
	if _, err := p.db.ExecContext(ctx, p.upsertSQL(objectType, names), args...); err != nil {
		return errors.Wrapf(err, "sqlite: upsert %s #%d", objectType, id)
	}
	return nil
}

func (p *Provider) RemoveIndexValue(ctx context.Context, objectType string, id int32) error {
	q := "DELETE FROM " + p.table(objectType) + " WHERE " + p.dialect.QuoteName(provider.IDIndex) + " = ?"
	if _, err := p.db.ExecContext(ctx, q, id); err != nil {
		return errors.Wrapf(err, "sqlite: remove %s #%d", objectType, id)
	}
	return nil
}

func (p *Provider) RemoveIndexValues(ctx context.Context, objectType string, ids []int32) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "sqlite: remove from %s", objectType)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for start := 0; start < len(ids); start += removeChunk {
		chunk := ids[start:min(start+removeChunk, len(ids))]
		marks := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		q := "DELETE FROM " + p.table(objectType) + " WHERE " + p.dialect.QuoteName(provider.IDIndex) + " IN (" + marks + ")"
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrapf(err, "sqlite: remove from %s", objectType)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "sqlite: remove from %s", objectType)
	}
	return nil
}

// BulkIndex replaces the rows in one transaction. Values missing from a
// row are stored as NULL.
func (p *Provider) BulkIndex(ctx context.Context, md provider.ObjectMetadata, rows []provider.IndexRow) (err error) {
	objectType := md.ObjectFullName
	names := make([]string, len(md.Indexes))
	cols := make([]string, 0, len(md.Indexes)+1)
	cols = append(cols, p.dialect.QuoteName(provider.IDIndex))
	position := make(map[string]int, len(md.Indexes))
	for i, idx := range md.Indexes {
		names[i] = idx.Name
		cols = append(cols, p.dialect.QuoteName(idx.Name))
		position[idx.Name] = i + 1
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	q := "INSERT OR REPLACE INTO " + p.table(objectType) + " (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "sqlite: bulk index %s", objectType)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return errors.Wrapf(err, "sqlite: bulk index %s", objectType)
	}
	defer stmt.Close()
	for _, row := range rows {
		args := make([]any, len(cols))
		args[0] = row.ID
		for _, v := range row.Values {
			pos, ok := position[v.Name]
			if !ok {
				err = fmt.Errorf("%w: %s has no index %q", zerog_errors.ErrUnknownIndex, objectType, v.Name)
				return err
			}
			args[pos] = v.Value
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "sqlite: bulk index %s #%d", objectType, row.ID)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "sqlite: bulk index %s", objectType)
	}
	p.log.Debug("bulk indexed", "object_type", objectType, "rows", len(rows))
	return nil
}

func (p *Provider) Truncate(ctx context.Context, objectType string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM "+p.table(objectType)); err != nil {
		return errors.Wrapf(err, "sqlite: truncate %s", objectType)
	}
	return nil
}
