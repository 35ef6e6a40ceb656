package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/smolc/pkg/token"
)

func TestWalk(t *testing.T) {
	var p token.Pos
	// while n > 0 { if f(n, 1) { n = n - 1; } else { } }
	loop := NewWhile(p, NewBinaryOp(p, token.Gt, NewIdent(p, "n"), NewNumber(p, 0)), []*Node{
		NewIf(p, NewFuncCall(p, "f", []*Node{NewIdent(p, "n"), NewNumber(p, 1)}),
			[]*Node{NewAssign(p, "n", NewBinaryOp(p, token.Minus, NewIdent(p, "n"), NewNumber(p, 1)))},
			nil),
	})

	var got []string
	Walk(loop, func(n *Node) { got = append(got, n.Type.String()) })
	want := []string{
		"While", "BinaryOp", "Ident", "Number",
		"If", "FuncCall", "Ident", "Number",
		"Assign", "BinaryOp", "Ident", "Number",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk order mismatch (-want +got):\n%s", diff)
	}
}
