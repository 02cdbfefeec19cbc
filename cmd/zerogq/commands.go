package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/jburman/ZeroG-sub001/provider"
	"gopkg.in/yaml.v3"
)

const helpText = `provision {name: app.Person, indexes: [{name: Name, type: string}]}
provision @metadata.yaml
types
drop <type>
truncate <type>
index <type> <id> {"Name":"bob","Age":25}
remove <type> <id>...
find <type> [-limit N] [-order A,B] [-desc] [constraint]
count <type> [constraint]
exists <type> [constraint]
iter <type> [-select A,B] [-limit N] [-order A,B] [-desc] [constraint]
explain <type> <constraint>
stats [type]
clean
exit
`

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func next(s string) (word, rest string) {
	word, rest, _ = strings.Cut(strings.TrimSpace(s), " ")
	return word, strings.TrimSpace(rest)
}

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)
}

type query struct {
	objectType string
	doc        string
	opts       provider.QueryOptions
}

// parseQuery reads "<type> [-flag value]... [constraint]".
func parseQuery(arg string) (q query, err error) {
	q.objectType, arg = next(arg)
	if q.objectType == "" {
		return q, usage("object type expected")
	}
	for strings.HasPrefix(arg, "-") {
		var flag, val string
		flag, arg = next(arg)
		switch flag {
		case "-desc":
			q.opts.Order.Descending = true
			continue
		case "-limit", "-order", "-select":
			val, arg = next(arg)
			if val == "" {
				return q, usage("%s needs a value", flag)
			}
		default:
			return q, usage("unknown flag %s", flag)
		}
		switch flag {
		case "-limit":
			if q.opts.Limit, err = strconv.Atoi(val); err != nil {
				return q, usage("bad limit %q", val)
			}
		case "-order":
			q.opts.Order.Indexes = strings.Split(val, ",")
		case "-select":
			q.opts.Select = strings.Split(val, ",")
		}
	}
	q.doc = arg
	return q, nil
}

func (repl *REPL) CommandHelp(out io.Writer) error {
	_, err := io.WriteString(out, helpText)
	return err
}

func (repl *REPL) CommandProvision(ctx context.Context, arg string, out io.Writer) error {
	if arg == "" {
		return usage("metadata expected")
	}
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return err
		}
	}
	var md provider.ObjectMetadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return err
	}
	if err := repl.ix.ProvisionIndex(ctx, md); err != nil {
		return err
	}
	if err := repl.catalog.save(md); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "provisioned %s (%d indexes)\n", md.ObjectFullName, len(md.Indexes))
	return err
}

func (repl *REPL) CommandTypes(out io.Writer) error {
	names := repl.ix.ObjectTypes()
	slices.Sort(names)
	for _, name := range names {
		md, _ := repl.ix.Metadata(name)
		cols := make([]string, len(md.Indexes))
		for i, idx := range md.Indexes {
			cols[i] = idx.Name + ":" + idx.Type.String()
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(cols, " ")); err != nil {
			return err
		}
	}
	return nil
}

func (repl *REPL) CommandDrop(ctx context.Context, arg string, out io.Writer) error {
	objectType, _ := next(arg)
	if objectType == "" {
		return usage("object type expected")
	}
	if err := repl.ix.UnprovisionIndex(ctx, objectType); err != nil {
		return err
	}
	if err := repl.catalog.remove(objectType); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "dropped %s\n", objectType)
	return err
}

func (repl *REPL) CommandTruncate(ctx context.Context, arg string, out io.Writer) error {
	objectType, _ := next(arg)
	if objectType == "" {
		return usage("object type expected")
	}
	if err := repl.ix.Truncate(ctx, objectType); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "truncated %s\n", objectType)
	return err
}

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, usage("bad id %q", s)
	}
	return int32(id), nil
}

func (repl *REPL) CommandIndex(ctx context.Context, arg string, out io.Writer) error {
	objectType, rest := next(arg)
	idText, doc := next(rest)
	if objectType == "" || idText == "" || doc == "" {
		return usage("index <type> <id> <values>")
	}
	id, err := parseID(idText)
	if err != nil {
		return err
	}
	fields := make(map[string]any)
	if err = json.UnmarshalFromString(doc, &fields); err != nil {
		return usage("bad values: %v", err)
	}
	values := make([]provider.IndexValue, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		values = append(values, provider.IndexValue{Name: name, Value: fields[name]})
	}
	if err = repl.ix.UpsertIndexValues(ctx, objectType, id, values...); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "indexed %s #%d\n", objectType, id)
	return err
}

func (repl *REPL) CommandRemove(ctx context.Context, arg string, out io.Writer) error {
	objectType, rest := next(arg)
	words := strings.Fields(rest)
	if objectType == "" || len(words) == 0 {
		return usage("remove <type> <id>...")
	}
	ids := make([]int32, len(words))
	for i, w := range words {
		var err error
		if ids[i], err = parseID(w); err != nil {
			return err
		}
	}
	if err := repl.ix.RemoveIndexValues(ctx, objectType, ids...); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "removed %d from %s\n", len(ids), objectType)
	return err
}

func (repl *REPL) CommandFind(ctx context.Context, arg string, out io.Writer) error {
	q, err := parseQuery(arg)
	if err != nil {
		return err
	}
	ids, err := repl.ix.FindJSON(ctx, q.objectType, q.doc, q.opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, ids)
	return err
}

func (repl *REPL) CommandCount(ctx context.Context, arg string, out io.Writer) error {
	q, err := parseQuery(arg)
	if err != nil {
		return err
	}
	n, err := repl.ix.CountJSON(ctx, q.objectType, q.doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, n)
	return err
}

func (repl *REPL) CommandExists(ctx context.Context, arg string, out io.Writer) error {
	q, err := parseQuery(arg)
	if err != nil {
		return err
	}
	ok, err := repl.ix.Exists(ctx, q.objectType, q.doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, ok)
	return err
}

func (repl *REPL) CommandIter(ctx context.Context, arg string, out io.Writer) error {
	q, err := parseQuery(arg)
	if err != nil {
		return err
	}
	rows, err := repl.ix.Iterate(ctx, q.objectType, q.doc, q.opts)
	if err != nil {
		return err
	}
	for row, err := range rows {
		if err != nil {
			return err
		}
		line, err := json.MarshalToString(row)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func (repl *REPL) CommandExplain(arg string, out io.Writer) error {
	objectType, doc := next(arg)
	if objectType == "" || doc == "" {
		return usage("explain <type> <constraint>")
	}
	_, pred, err := repl.ix.Explain(objectType, doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, pred.String())
	return err
}

func (repl *REPL) CommandStats(arg string, out io.Writer) error {
	objectType, _ := next(arg)
	if objectType == "" {
		s := repl.ix.Cache().Stats()
		_, err := fmt.Fprintf(out, "records %d queries %d values %d cleaning %t\n",
			s.Records, s.Queries, s.Values, repl.ix.NeedsCleaning())
		return err
	}
	current, err := repl.ledger.Current(objectType)
	if err != nil {
		return err
	}
	version, queries, values, ok := repl.ix.Cache().RecordStats(objectType)
	if !ok {
		_, err = fmt.Fprintf(out, "%s version %d, not cached\n", objectType, current)
		return err
	}
	_, err = fmt.Fprintf(out, "%s version %d, cached at %d: queries %d values %d\n",
		objectType, current, version, queries, values)
	return err
}

func (repl *REPL) CommandClean(out io.Writer) error {
	before := repl.ix.Cache().Stats().Queries
	repl.ix.Clean()
	after := repl.ix.Cache().Stats().Queries
	_, err := fmt.Fprintf(out, "removed %d of %d cached queries\n", before-after, before)
	return err
}
