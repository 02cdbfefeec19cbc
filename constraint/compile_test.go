package constraint

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSQLite(t *testing.T, doc string) *Predicate {
	_, pred, err := CompileJSON(doc, SQLite{}, nil)
	require.NoError(t, err, doc)
	return pred
}

func TestCompile_Grouping(t *testing.T) {
	pred := compileSQLite(t, `{"A":1,"Op":"=","AND":{"B":2,"Op":"="}}`)
	assert.Equal(t, `"A" = ? AND "B" = ?`, pred.Text)
	assert.Equal(t, []any{int64(1), int64(2)}, pred.Args())
}

func TestCompile_MixedGroupOverride(t *testing.T) {
	pred := compileSQLite(t, `{"A":1,"Op":"=","OR":[{"B":2,"Op":"="},"AND",{"C":3,"Op":"="}]}`)
	assert.Equal(t, `"A" = ? OR ("B" = ? AND "C" = ?)`, pred.Text)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, pred.Args())
}

func TestCompile_GroupDefaultsToParentLogic(t *testing.T) {
	pred := compileSQLite(t, `{"A":1,"OR":[{"B":2},{"C":3},"AND",{"D":4}]}`)
	assert.Equal(t, `"A" = ? OR ("B" = ? OR "C" = ? AND "D" = ?)`, pred.Text)
	assert.Len(t, pred.Parameters, 3+1)
}

func TestCompile_Null(t *testing.T) {
	pred := compileSQLite(t, `{"A":null}`)
	assert.Equal(t, `"A" = NULL`, pred.Text)
	assert.Empty(t, pred.Parameters)

	pred = compileSQLite(t, `{"A":null,"Op":"<>"}`)
	assert.Equal(t, `"A" <> NULL`, pred.Text)

	_, _, err := CompileJSON(`{"A":null,"Op":">"}`, SQLite{}, nil)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)
}

func TestCompile_InList(t *testing.T) {
	pred := compileSQLite(t, `{"A":[1,2,3],"Op":"IN"}`)
	assert.Equal(t, `"A" IN (?,?,?)`, pred.Text)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, pred.Args())

	pred = compileSQLite(t, `{"A":["x"],"Op":"NOT IN"}`)
	assert.Equal(t, `"A" NOT IN (?)`, pred.Text)
	assert.Equal(t, []any{"x"}, pred.Args())

	pred = compileSQLite(t, `{"A":7,"Op":"IN"}`)
	assert.Equal(t, `"A" IN (?)`, pred.Text)

	_, _, err := CompileJSON(`{"A":[],"Op":"IN"}`, SQLite{}, nil)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)

	_, _, err = CompileJSON(`{"A":[1,2],"Op":"<"}`, SQLite{}, nil)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)
}

func TestCompile_UnknownOperator(t *testing.T) {
	root, pred, err := CompileJSON(`{"A":1,"Op":"~="}`, SQLite{}, nil)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)
	assert.Nil(t, root)
	assert.Nil(t, pred)
}

func TestCompile_Like(t *testing.T) {
	pred := compileSQLite(t, `{"Name":"50%_off*","Op":"LIKE"}`)
	assert.Equal(t, `"Name" LIKE ? ESCAPE '\'`, pred.Text)
	assert.Equal(t, []any{`50\%\_off%`}, pred.Args())

	_, pred, err := CompileJSON(`{"Name":"[a]*","Op":"NOT LIKE"}`, SQLServer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, `[Name] NOT LIKE @p0`, pred.Text)
	assert.Equal(t, "@p0", pred.Parameters[0].Name)
	assert.Equal(t, "[[]a]%", pred.Parameters[0].Value)

	_, _, err = CompileJSON(`{"Name":3,"Op":"LIKE"}`, SQLite{}, nil)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)
}

func TestCompile_Dialects(t *testing.T) {
	doc := `{"A":1,"Op":">=","AND":[{"B":"x"},{"C":[1,2],"Op":"IN"}]}`

	_, pred, err := CompileJSON(doc, MySQL{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "`A` >= ? AND (`B` = ? AND `C` IN (?,?))", pred.Text)

	_, pred, err = CompileJSON(doc, SQLServer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "[A] >= @p0 AND ([B] = @p1 AND [C] IN (@p2,@p3))", pred.Text)
	assert.Len(t, pred.NamedArgs(), 4)
}

func TestCompile_TypeCoercion(t *testing.T) {
	id := uuid.New()
	types := map[string]ValueType{"Age": TypeInt32, "Score": TypeDouble, "Key": TypeGUID, "Flag": TypeBool}
	doc := `{"Age":30,"AND":[{"Score":2},{"Key":"` + id.String() + `"},{"Flag":"true"}]}`
	_, pred, err := CompileJSON(doc, SQLite{}, types)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(30), float64(2), id, true}, pred.Args())

	_, _, err = CompileJSON(`{"Age":3000000000}`, SQLite{}, types)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)

	pred = compileSQLite(t, `{"Score":2.5}`)
	assert.Equal(t, []any{2.5}, pred.Args())
}

func TestCompile_NestedGroupsBindTighter(t *testing.T) {
	pred := compileSQLite(t, `{"A":1,"AND":{"B":2,"OR":{"C":3}}}`)
	assert.Equal(t, `"A" = ? AND ("B" = ? OR "C" = ?)`, pred.Text)

	pred = compileSQLite(t, `{"OR":[{"A":1},{"B":2,"AND":[{"C":3},{"D":4}]}]}`)
	assert.Equal(t, `("A" = ? OR ("B" = ? AND ("C" = ? AND "D" = ?)))`, pred.Text)
}

func TestCompile_PlaceholdersMatchParameters(t *testing.T) {
	docs := []string{
		`{"A":1}`,
		`{"A":null}`,
		`{"A":[1,2,3],"Op":"IN"}`,
		`{"A":"x*","Op":"LIKE","OR":[{"B":[4,5],"Op":"NOT IN"},"AND",{"C":true}]}`,
		`{"A":1,"AND":[{"B":2,"OR":{"C":null}},{"D":[1],"Op":"IN"}]}`,
	}
	for _, doc := range docs {
		pred := compileSQLite(t, doc)
		assert.Equal(t, strings.Count(pred.Text, "?"), pred.Placeholders(), doc)
		for i, param := range pred.Parameters {
			assert.Equal(t, SQLite{}.MakeParam(i), param.Name, doc)
		}
	}
}

func TestPredicate_String(t *testing.T) {
	pred := compileSQLite(t, `{"A":1,"AND":{"B":"x"}}`)
	assert.Equal(t, `"A" = ? AND "B" = ? [p0=1, p1=x]`, pred.String())
}

func TestEquals(t *testing.T) {
	c := Compiler{Dialect: SQLite{}}
	pred, err := c.Compile(Equals([]string{"A", "B", "C"}, []any{1, "b", nil}))
	require.NoError(t, err)
	assert.Equal(t, `"A" = ? AND ("B" = ? AND "C" = NULL)`, pred.Text)
	assert.Equal(t, []any{1, "b"}, pred.Args())
}
