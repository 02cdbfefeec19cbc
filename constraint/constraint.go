// Package constraint turns the JSON constraint language into parameterized
// predicates for a tabular index backend.
//
// A constraint document is a JSON object. Reserved keys:
//
//   - "Op" names the comparison operator by symbol: =, <>, LIKE, NOT LIKE,
//     IN, NOT IN, <, <=, >, >=. Defaults to = when omitted.
//   - "AND" / "OR" hold a nested constraint object, or an array of them,
//     joined to the current one with that logic. Inside such an array a bare
//     "AND"/"OR" string sets the logic between the constraint before it and
//     the one after it, so [c1, "AND", c2] groups c1 AND c2 even under OR.
//
// Any other key names the index; its value is the compared value, or a list
// of values for IN / NOT IN. A null (or missing) value compiles to an
// explicit NULL comparison.
//
//	{"Name":"bob%","Op":"LIKE","OR":[{"Age":[1,2],"Op":"IN"},"AND",{"Tag":null}]}
package constraint

import (
	"fmt"

	"github.com/jburman/ZeroG-sub001/zerog_errors"
)

type Operator byte

const (
	Eq Operator = iota
	NotEq
	Like
	NotLike
	In
	NotIn
	Lt
	Lte
	Gt
	Gte
)

var operatorSymbols = [...]string{
	Eq:      "=",
	NotEq:   "<>",
	Like:    "LIKE",
	NotLike: "NOT LIKE",
	In:      "IN",
	NotIn:   "NOT IN",
	Lt:      "<",
	Lte:     "<=",
	Gt:      ">",
	Gte:     ">=",
}

// ParseOperator maps a persisted operator symbol to its Operator.
func ParseOperator(symbol string) (Operator, error) {
	for op, sym := range operatorSymbols {
		if sym == symbol {
			return Operator(op), nil
		}
	}
	return Eq, fmt.Errorf("%w: unsupported operator %q", zerog_errors.ErrSyntax, symbol)
}

func (op Operator) String() string {
	if int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return fmt.Sprintf("Operator(%d)", byte(op))
}

func (op Operator) IsList() bool {
	return op == In || op == NotIn
}

func (op Operator) IsLike() bool {
	return op == Like || op == NotLike
}

type Logic byte

const (
	NotSet Logic = iota
	And
	Or
)

const (
	keyOp  = "Op"
	keyAnd = "AND"
	keyOr  = "OR"
)

func parseLogic(s string) (Logic, bool) {
	switch s {
	case keyAnd:
		return And, true
	case keyOr:
		return Or, true
	}
	return NotSet, false
}

func (l Logic) String() string {
	switch l {
	case And:
		return keyAnd
	case Or:
		return keyOr
	}
	return ""
}

// Constraint is one node of a parsed constraint tree.
//
// Children are joined to the node with Logic. Join holds the logic an
// "AND"/"OR" marker gave this node inside a group array; it separates the
// node from the sibling that follows it and is NotSet when no marker was
// present.
type Constraint struct {
	Name        string
	Operator    Operator
	Value       any
	ArrayValues []any
	Logic       Logic
	Join        Logic
	Children    []*Constraint
}

// IsNull reports whether the node compares against NULL.
func (c *Constraint) IsNull() bool {
	return c.Value == nil && c.ArrayValues == nil
}

// Names lists the index names referenced in the tree, in pre-order,
// without duplicates.
func (c *Constraint) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	var walk func(n *Constraint)
	walk = func(n *Constraint) {
		if n.Name != "" {
			if _, ok := seen[n.Name]; !ok {
				seen[n.Name] = struct{}{}
				names = append(names, n.Name)
			}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(c)
	return names
}

// Equals builds an AND chain of equality constraints, one per name/value
// pair, in the given order.
func Equals(names []string, values []any) *Constraint {
	if len(names) == 0 {
		return nil
	}
	root := &Constraint{Name: names[0], Operator: Eq, Value: values[0]}
	for i := 1; i < len(names); i++ {
		root.Children = append(root.Children, &Constraint{Name: names[i], Operator: Eq, Value: values[i]})
	}
	if len(root.Children) > 0 {
		root.Logic = And
	}
	return root
}
