package constraint

import (
	"database/sql"
	"fmt"
	"strings"
)

type Parameter struct {
	Name  string
	Value any
}

// Predicate is a compiled constraint: text with placeholders and the bound
// parameters in placeholder order.
type Predicate struct {
	Text       string
	Parameters []Parameter
}

// Placeholders is the number of parameters the text references.
func (p *Predicate) Placeholders() int {
	return len(p.Parameters)
}

// Args returns the parameter values for positional placeholders.
func (p *Predicate) Args() []any {
	args := make([]any, len(p.Parameters))
	for i, param := range p.Parameters {
		args[i] = param.Value
	}
	return args
}

// NamedArgs returns the parameters as sql.NamedArg for named placeholders.
func (p *Predicate) NamedArgs() []any {
	args := make([]any, len(p.Parameters))
	for i, param := range p.Parameters {
		args[i] = sql.Named(strings.TrimLeft(param.Name, "@:$"), param.Value)
	}
	return args
}

func (p *Predicate) String() string {
	var sb strings.Builder
	sb.WriteString(p.Text)
	sb.WriteString(" [")
	for i, param := range p.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", param.Name, param.Value)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Compiler renders constraint trees for one dialect. Types, when set, maps
// index names to the column types values are coerced to before binding.
type Compiler struct {
	Dialect Dialect
	Types   map[string]ValueType
}

type builder struct {
	*Compiler
	sb     strings.Builder
	params []Parameter
}

// Compile renders the tree depth-first, pre-order. On error nothing is
// returned.
func (c *Compiler) Compile(root *Constraint) (*Predicate, error) {
	if root == nil {
		return nil, syntaxError("empty constraint")
	}
	b := builder{Compiler: c}
	if err := b.node(root); err != nil {
		return nil, err
	}
	return &Predicate{Text: b.sb.String(), Parameters: b.params}, nil
}

// CompileJSON parses and compiles a constraint document.
func CompileJSON(doc string, dialect Dialect, types map[string]ValueType) (*Constraint, *Predicate, error) {
	root, err := ParseJSON(doc)
	if err != nil {
		return nil, nil, err
	}
	c := Compiler{Dialect: dialect, Types: types}
	pred, err := c.Compile(root)
	if err != nil {
		return nil, nil, err
	}
	return root, pred, nil
}

func (b *builder) node(n *Constraint) error {
	if n.Name == "" && len(n.Children) == 0 {
		return syntaxError("constraint names no index")
	}
	if n.Name != "" {
		if err := b.comparison(n); err != nil {
			return err
		}
		if len(n.Children) == 0 {
			return nil
		}
		logic := n.Logic
		if logic == NotSet {
			logic = And
		}
		b.sb.WriteString(" " + logic.String() + " ")
	}
	if len(n.Children) == 1 {
		return b.child(n.Children[0])
	}
	b.sb.WriteByte('(')
	for i, child := range n.Children {
		if i > 0 {
			sep := n.Children[i-1].Join
			if sep == NotSet {
				sep = n.Logic
			}
			if sep == NotSet {
				sep = And
			}
			b.sb.WriteString(" " + sep.String() + " ")
		}
		if err := b.child(child); err != nil {
			return err
		}
	}
	b.sb.WriteByte(')')
	return nil
}

// child wraps a child that carries its own children, so its logic binds
// tighter than the separator around it.
func (b *builder) child(n *Constraint) error {
	if len(n.Children) == 0 || n.Name == "" {
		return b.node(n)
	}
	b.sb.WriteByte('(')
	if err := b.node(n); err != nil {
		return err
	}
	b.sb.WriteByte(')')
	return nil
}

func (b *builder) bind(v any) string {
	name := b.Dialect.MakeParam(len(b.params))
	b.params = append(b.params, Parameter{Name: name, Value: v})
	return b.Dialect.MakeParamReference(name)
}

func (b *builder) coerce(name string, v any) (any, error) {
	if t, ok := b.Types[name]; ok {
		return Coerce(v, t)
	}
	return untyped(v), nil
}

func (b *builder) comparison(n *Constraint) error {
	b.sb.WriteString(b.Dialect.QuoteName(n.Name))
	op := n.Operator
	switch {
	case n.IsNull():
		if op != Eq && op != NotEq {
			return syntaxError("operator %s can not compare %q with NULL", op, n.Name)
		}
		b.sb.WriteString(" " + op.String() + " NULL")
	case op.IsList():
		values := n.ArrayValues
		if values == nil {
			values = []any{n.Value}
		}
		if len(values) == 0 {
			return syntaxError("empty value list for %q", n.Name)
		}
		refs := make([]string, len(values))
		for i, v := range values {
			cv, err := b.coerce(n.Name, v)
			if err != nil {
				return err
			}
			refs[i] = b.bind(cv)
		}
		b.sb.WriteString(" " + op.String() + " (" + strings.Join(refs, ",") + ")")
	case n.ArrayValues != nil:
		return syntaxError("operator %s takes a single value for %q", op, n.Name)
	case op.IsLike():
		s, ok := n.Value.(string)
		if !ok {
			return syntaxError("%s pattern for %q must be a string", op, n.Name)
		}
		ref := b.bind(b.Dialect.MakeLikeParam(s))
		b.sb.WriteString(" " + op.String() + " " + ref + b.Dialect.LikeEscape())
	default:
		cv, err := b.coerce(n.Name, n.Value)
		if err != nil {
			return err
		}
		b.sb.WriteString(" " + op.String() + " " + b.bind(cv))
	}
	return nil
}
