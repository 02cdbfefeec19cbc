package constraint

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkJSON(t *testing.T) {
	events, err := WalkJSON(`{"A":[1,"x"],"B":null,"C":false}`)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Kind: ObjectStart},
		{Kind: Key, Text: "A"},
		{Kind: ArrayStart},
		{Kind: Number, Text: "1"},
		{Kind: ArrayNext},
		{Kind: String, Text: "x"},
		{Kind: ArrayEnd},
		{Kind: Key, Text: "B"},
		{Kind: Null},
		{Kind: Key, Text: "C"},
		{Kind: Boolean, Bool: false},
		{Kind: ObjectEnd},
	}, events)
}

func TestJSONSource_Pull(t *testing.T) {
	src := NewJSONSource(`{"A":2.5}`)
	var kinds []EventKind
	for {
		e, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{ObjectStart, Key, Number, ObjectEnd}, kinds)

	_, err := src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "array_next", ArrayNext.String())
	assert.Equal(t, "EventKind(99)", EventKind(99).String())
}
