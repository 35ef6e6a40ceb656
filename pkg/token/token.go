package token

import "fmt"

type Type int

const (
	Illegal Type = iota

	// Keywords
	Var
	Fun
	Main
	If
	Else
	While
	Return

	// Operators
	Plus
	Minus
	Star
	Slash
	EqEq
	Lt
	Gt
)

var KeywordMap = map[string]Type{
	"var":    Var,
	"fun":    Fun,
	"main":   Main,
	"if":     If,
	"else":   Else,
	"while":  While,
	"return": Return,
}

var opStrings = map[Type]string{
	Plus:  "+",
	Minus: "-",
	Star:  "*",
	Slash: "/",
	EqEq:  "==",
	Lt:    "<",
	Gt:    ">",
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range opStrings {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsKeyword reports whether name is reserved and cannot be used as an identifier.
func IsKeyword(name string) bool {
	_, ok := KeywordMap[name]
	return ok
}

// IsComparison reports whether op yields 0 or 1.
func IsComparison(op Type) bool { return op == EqEq || op == Lt || op == Gt }

// Pos is a location in the source text. Line and Column are 1-based, Offset
// is a rune index.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
