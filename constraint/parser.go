package constraint

import (
	"fmt"
	"io"

	"github.com/jburman/ZeroG-sub001/zerog_errors"
)

type frameKind byte

const (
	objectFrame frameKind = iota
	valueListFrame
	groupFrame
)

// frame is a partially built piece of the tree. An object frame builds
// node; a value list frame collects node's ArrayValues; a group frame
// collects children for node joined with logic.
type frame struct {
	kind   frameKind
	node   *Constraint
	key    string
	hasKey bool
	hasOp  bool
	logic  Logic
	values []any
	items  []*Constraint
}

type parser struct {
	stack []*frame
	root  *Constraint
	done  bool
}

func syntaxError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", zerog_errors.ErrSyntax, fmt.Sprintf(format, args...))
}

// Parse consumes a complete event stream and returns the root constraint.
// Any grammar violation aborts parsing; no partial tree is returned.
func Parse(src EventSource) (*Constraint, error) {
	p := parser{}
	for {
		e, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err = p.event(e); err != nil {
			return nil, err
		}
	}
	if p.root == nil {
		return nil, syntaxError("empty constraint")
	}
	if len(p.stack) > 0 {
		return nil, syntaxError("unterminated constraint")
	}
	return p.root, nil
}

// ParseJSON parses a constraint document.
func ParseJSON(doc string) (*Constraint, error) {
	return Parse(NewJSONSource(doc))
}

func (p *parser) push(f *frame) {
	p.stack = append(p.stack, f)
}

func (p *parser) pop() *frame {
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return f
}

func (p *parser) event(e Event) error {
	if p.done {
		return syntaxError("unexpected %s after the root constraint", e.Kind)
	}
	if len(p.stack) == 0 {
		switch e.Kind {
		case ObjectStart:
			p.root = &Constraint{}
			p.push(&frame{kind: objectFrame, node: p.root})
			return nil
		case Key:
			return syntaxError("key %q without a root constraint", e.Text)
		default:
			return syntaxError("constraint must be a JSON object, got %s", e.Kind)
		}
	}
	top := p.stack[len(p.stack)-1]
	switch top.kind {
	case valueListFrame:
		return p.valueListEvent(top, e)
	case groupFrame:
		return p.groupEvent(top, e)
	default:
		return p.objectEvent(top, e)
	}
}

func (p *parser) objectEvent(top *frame, e Event) error {
	switch e.Kind {
	case Key:
		if top.hasKey {
			return syntaxError("key %q has no value", top.key)
		}
		top.key, top.hasKey = e.Text, true
		return nil
	case ObjectEnd:
		if top.hasKey {
			return syntaxError("key %q has no value", top.key)
		}
		return p.closeObject()
	}
	if !top.hasKey {
		return syntaxError("unexpected %s inside a constraint", e.Kind)
	}
	key := top.key
	top.key, top.hasKey = "", false
	node := top.node

	if key == keyOp {
		if e.Kind != String {
			return syntaxError("Op must be an operator string, got %s", e.Kind)
		}
		if top.hasOp {
			return syntaxError("duplicate Op")
		}
		op, err := ParseOperator(e.Text)
		if err != nil {
			return err
		}
		node.Operator, top.hasOp = op, true
		return nil
	}

	if logic, ok := parseLogic(key); ok {
		if node.Logic != NotSet && node.Logic != logic {
			return syntaxError("constraint mixes AND and OR children")
		}
		switch e.Kind {
		case ObjectStart:
			node.Logic = logic
			p.push(&frame{kind: objectFrame, node: &Constraint{}})
		case ArrayStart:
			node.Logic = logic
			p.push(&frame{kind: groupFrame, node: node, logic: logic})
		default:
			return syntaxError("%s must hold a constraint object or array, got %s", key, e.Kind)
		}
		return nil
	}

	if node.Name != "" {
		return syntaxError("constraint on %q also names %q", node.Name, key)
	}
	node.Name = key
	switch e.Kind {
	case String:
		node.Value = e.Text
	case Number:
		node.Value = number(e.Text)
	case Boolean:
		node.Value = e.Bool
	case Null:
		node.Value = nil
	case ArrayStart:
		p.push(&frame{kind: valueListFrame, node: node, values: make([]any, 0)})
	default:
		return syntaxError("value of %q must be a scalar or a list, got %s", key, e.Kind)
	}
	return nil
}

func (p *parser) closeObject() error {
	f := p.pop()
	if f.node.Name == "" && len(f.node.Children) == 0 {
		return syntaxError("constraint names no index")
	}
	if len(p.stack) == 0 {
		p.done = true
		return nil
	}
	parent := p.stack[len(p.stack)-1]
	switch parent.kind {
	case groupFrame:
		parent.items = append(parent.items, f.node)
	case objectFrame:
		parent.node.Children = append(parent.node.Children, f.node)
	default:
		return syntaxError("constraint inside a value list")
	}
	return nil
}

func (p *parser) valueListEvent(top *frame, e Event) error {
	switch e.Kind {
	case String:
		top.values = append(top.values, e.Text)
	case Number:
		top.values = append(top.values, number(e.Text))
	case Boolean:
		top.values = append(top.values, e.Bool)
	case Null:
		top.values = append(top.values, nil)
	case ArrayNext:
	case ArrayEnd:
		p.pop()
		if len(top.values) == 1 && top.values[0] != nil {
			top.node.Value = top.values[0]
		} else {
			top.node.ArrayValues = top.values
		}
	default:
		return syntaxError("value list of %q may only hold scalars, got %s", top.node.Name, e.Kind)
	}
	return nil
}

func (p *parser) groupEvent(top *frame, e Event) error {
	switch e.Kind {
	case ObjectStart:
		p.push(&frame{kind: objectFrame, node: &Constraint{}})
	case String:
		logic, ok := parseLogic(e.Text)
		if !ok {
			return syntaxError("unexpected %q in %s group", e.Text, top.logic)
		}
		if len(top.items) == 0 {
			return syntaxError("%s marker without a preceding constraint", logic)
		}
		top.items[len(top.items)-1].Join = logic
	case ArrayNext:
	case ArrayEnd:
		p.pop()
		if len(top.items) == 0 {
			return syntaxError("empty %s group", top.logic)
		}
		top.node.Children = append(top.node.Children, top.items...)
	default:
		return syntaxError("%s group may only hold constraints and AND/OR markers, got %s", top.logic, e.Kind)
	}
	return nil
}
