package constraint

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jburman/ZeroG-sub001/zerog_errors"
	jsoniter "github.com/json-iterator/go"
)

type EventKind byte

const (
	ObjectStart EventKind = iota
	ObjectEnd
	ArrayStart
	ArrayNext
	ArrayEnd
	Key
	String
	Number
	Boolean
	Null
)

var eventNames = [...]string{
	ObjectStart: "object_start",
	ObjectEnd:   "object_end",
	ArrayStart:  "array_start",
	ArrayNext:   "array_next",
	ArrayEnd:    "array_end",
	Key:         "key",
	String:      "string",
	Number:      "number",
	Boolean:     "boolean",
	Null:        "null",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", byte(k))
}

// Event is one document-order step of a JSON walk. Text carries the key,
// string or decimal number text; Bool the boolean leaf.
type Event struct {
	Kind EventKind
	Text string
	Bool bool
}

// EventSource yields events in document order and io.EOF after the last one.
type EventSource interface {
	Next() (Event, error)
}

// SliceSource replays a prepared event list.
type SliceSource struct {
	events []Event
	pos    int
}

func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

func (s *SliceSource) Next() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

// JSONSource walks a JSON document. The document is walked on the first
// call to Next; a malformed document surfaces as the error of that call.
type JSONSource struct {
	doc    string
	walked bool
	err    error
	SliceSource
}

func NewJSONSource(doc string) *JSONSource {
	return &JSONSource{doc: doc}
}

func (s *JSONSource) Next() (Event, error) {
	if !s.walked {
		s.walked = true
		s.events, s.err = WalkJSON(s.doc)
	}
	if s.err != nil {
		return Event{}, s.err
	}
	return s.SliceSource.Next()
}

// WalkJSON flattens a JSON document into its event sequence.
func WalkJSON(doc string) ([]Event, error) {
	it := jsoniter.ParseString(jsoniter.ConfigCompatibleWithStandardLibrary, doc)
	var events []Event
	walkValue(it, func(e Event) { events = append(events, e) })
	if it.Error != nil {
		return nil, fmt.Errorf("%w: bad constraint json: %v", zerog_errors.ErrSyntax, it.Error)
	}
	return events, nil
}

func walkValue(it *jsoniter.Iterator, emit func(Event)) {
	switch it.WhatIsNext() {
	case jsoniter.ObjectValue:
		emit(Event{Kind: ObjectStart})
		it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			emit(Event{Kind: Key, Text: key})
			walkValue(it, emit)
			return it.Error == nil
		})
		emit(Event{Kind: ObjectEnd})
	case jsoniter.ArrayValue:
		emit(Event{Kind: ArrayStart})
		first := true
		it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			if !first {
				emit(Event{Kind: ArrayNext})
			}
			first = false
			walkValue(it, emit)
			return it.Error == nil
		})
		emit(Event{Kind: ArrayEnd})
	case jsoniter.StringValue:
		emit(Event{Kind: String, Text: it.ReadString()})
	case jsoniter.NumberValue:
		emit(Event{Kind: Number, Text: string(it.ReadNumber())})
	case jsoniter.BoolValue:
		emit(Event{Kind: Boolean, Bool: it.ReadBool()})
	case jsoniter.NilValue:
		it.ReadNil()
		emit(Event{Kind: Null})
	default:
		it.ReportError("walkValue", "unexpected json value")
	}
}

// number keeps the decimal text of a JSON number until compilation decides
// its type.
type number = json.Number
