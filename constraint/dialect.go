package constraint

import (
	"fmt"
	"strings"
)

// Dialect is what the compiler needs to know about a backend's SQL flavor.
//
// MakeParam names the i-th bound parameter; MakeParamReference renders the
// placeholder text for a parameter name. MakeLikeParam escapes a LIKE
// pattern where '*' is the caller's wildcard, and LikeEscape is appended
// after a LIKE placeholder.
type Dialect interface {
	QuoteName(name string) string
	MakeParam(i int) string
	MakeParamReference(name string) string
	MakeLikeParam(value string) string
	LikeEscape() string
}

type SQLite struct{}

func (SQLite) QuoteName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) MakeParam(i int) string {
	return fmt.Sprintf("p%d", i)
}

func (SQLite) MakeParamReference(string) string {
	return "?"
}

var backslashLike = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)

func (SQLite) MakeLikeParam(value string) string {
	return backslashLike.Replace(value)
}

func (SQLite) LikeEscape() string {
	return ` ESCAPE '\'`
}

type MySQL struct{}

func (MySQL) QuoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) MakeParam(i int) string {
	return fmt.Sprintf("p%d", i)
}

func (MySQL) MakeParamReference(string) string {
	return "?"
}

// backslash is MySQL's default LIKE escape character
func (MySQL) MakeLikeParam(value string) string {
	return backslashLike.Replace(value)
}

func (MySQL) LikeEscape() string {
	return ""
}

type SQLServer struct{}

func (SQLServer) QuoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (SQLServer) MakeParam(i int) string {
	return fmt.Sprintf("@p%d", i)
}

func (SQLServer) MakeParamReference(name string) string {
	return name
}

var bracketLike = strings.NewReplacer(`[`, `[[]`, `%`, `[%]`, `_`, `[_]`, `*`, `%`)

func (SQLServer) MakeLikeParam(value string) string {
	return bracketLike.Replace(value)
}

func (SQLServer) LikeEscape() string {
	return ""
}
