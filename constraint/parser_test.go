package constraint

import (
	"encoding/json"
	"testing"

	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultOperator(t *testing.T) {
	root, err := ParseJSON(`{"Name":"bob"}`)
	require.NoError(t, err)
	assert.Equal(t, "Name", root.Name)
	assert.Equal(t, Eq, root.Operator)
	assert.Equal(t, "bob", root.Value)
	assert.Equal(t, NotSet, root.Logic)
	assert.Empty(t, root.Children)
}

func TestParse_Tree(t *testing.T) {
	root, err := ParseJSON(`{"A":1,"Op":"<","OR":[{"B":[1,2],"Op":"IN"},"AND",{"C":true}]}`)
	require.NoError(t, err)
	assert.Equal(t, Lt, root.Operator)
	assert.Equal(t, json.Number("1"), root.Value)
	assert.Equal(t, Or, root.Logic)
	require.Len(t, root.Children, 2)

	b, c := root.Children[0], root.Children[1]
	assert.Equal(t, In, b.Operator)
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, b.ArrayValues)
	assert.Nil(t, b.Value)
	assert.Equal(t, And, b.Join)
	assert.Equal(t, true, c.Value)
	assert.Equal(t, NotSet, c.Join)

	assert.Equal(t, []string{"A", "B", "C"}, root.Names())
}

func TestParse_SingleValueFallback(t *testing.T) {
	root, err := ParseJSON(`{"A":["x"],"Op":"IN"}`)
	require.NoError(t, err)
	assert.Equal(t, "x", root.Value)
	assert.Nil(t, root.ArrayValues)
}

func TestParse_Null(t *testing.T) {
	root, err := ParseJSON(`{"A":null}`)
	require.NoError(t, err)
	assert.True(t, root.IsNull())
}

func TestParse_LogicObjectAndArrayCombine(t *testing.T) {
	root, err := ParseJSON(`{"A":1,"AND":{"B":2},"AND":[{"C":3}]}`)
	require.NoError(t, err)
	assert.Equal(t, And, root.Logic)
	assert.Len(t, root.Children, 2)
}

func TestParse_SyntaxErrors(t *testing.T) {
	docs := map[string]string{
		"unknown operator":        `{"A":1,"Op":"~="}`,
		"operator not a string":   `{"A":1,"Op":5}`,
		"logic on a scalar":       `{"A":1,"AND":5}`,
		"logic on a string":       `{"A":1,"OR":"B"}`,
		"marker without a target": `{"A":1,"OR":["AND",{"B":2}]}`,
		"unknown marker":          `{"A":1,"OR":[{"B":2},"XOR",{"C":3}]}`,
		"scalar in group":         `{"A":1,"OR":[{"B":2},7]}`,
		"empty group":             `{"A":1,"OR":[]}`,
		"mixed logic":             `{"A":1,"AND":{"B":2},"OR":{"C":3}}`,
		"two fields":              `{"A":1,"B":2}`,
		"object value":            `{"A":{"B":2}}`,
		"nested list":             `{"A":[[1]],"Op":"IN"}`,
		"no index":                `{"Op":"="}`,
		"array root":              `[{"A":1}]`,
		"scalar root":             `"A"`,
		"duplicate op":            `{"A":1,"Op":"=","Op":"<"}`,
	}
	for name, doc := range docs {
		root, err := ParseJSON(doc)
		assert.ErrorIs(t, err, zerog_errors.ErrSyntax, name)
		assert.Nil(t, root, name)
	}
}

func TestParse_KeyWithoutRoot(t *testing.T) {
	src := NewSliceSource(
		Event{Kind: Key, Text: "A"},
		Event{Kind: Number, Text: "1"},
	)
	_, err := Parse(src)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)
}

func TestParse_Unterminated(t *testing.T) {
	src := NewSliceSource(
		Event{Kind: ObjectStart},
		Event{Kind: Key, Text: "A"},
		Event{Kind: Number, Text: "1"},
	)
	_, err := Parse(src)
	assert.ErrorIs(t, err, zerog_errors.ErrSyntax)
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := ParseJSON(`{"A":`)
	assert.Error(t, err)
}
