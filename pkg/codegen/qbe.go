package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/smolc/pkg/ast"
	"github.com/xplshn/smolc/pkg/checker"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/token"
)

// qbeBackend emits QBE IL. Every variable lives in memory: globals in a
// data definition, parameters and locals in an alloc8 slot, so the IL
// mirrors the NASM frame layout and evaluation order.
type qbeBackend struct{}

func NewQBEBackend() Backend { return &qbeBackend{} }

type qbeEmitter struct {
	out    *strings.Builder
	labels int             // shared with every function, never reset
	temps  int             // reset per function
	frame  map[string]bool // names with a stack slot in the current function
}

func (b *qbeBackend) Generate(prog *ast.Program, info *checker.Info, cfg *config.Config) (*bytes.Buffer, error) {
	e := &qbeEmitter{out: &strings.Builder{}}
	e.program(prog, info.Globals)
	return bytes.NewBufferString(e.out.String()), nil
}

func (e *qbeEmitter) emit(format string, args ...interface{}) {
	e.out.WriteByte('\t')
	fmt.Fprintf(e.out, format, args...)
	e.out.WriteByte('\n')
}

func (e *qbeEmitter) label(format string, args ...interface{}) {
	fmt.Fprintf(e.out, "@"+format+"\n", args...)
}

func (e *qbeEmitter) newLabel() int {
	n := e.labels
	e.labels++
	return n
}

func (e *qbeEmitter) newTemp() string {
	t := fmt.Sprintf("%%t%d", e.temps)
	e.temps++
	return t
}

func (e *qbeEmitter) program(prog *ast.Program, globals []string) {
	for _, g := range globals {
		fmt.Fprintf(e.out, "data $smol_%s = { l 0 }\n", g)
	}

	for _, fn := range prog.Funcs {
		e.function(fn)
	}

	e.frame, e.temps = nil, 0
	e.out.WriteString("\nexport function w $main() {\n")
	e.label("start")
	for _, g := range prog.Globals {
		v := e.expr(g.Init)
		e.emit("storel %s, $smol_%s", v, g.Name)
	}
	e.cmds(prog.Main)
	e.emit("ret %s", e.expr(prog.Return))
	e.out.WriteString("}\n")
}

func (e *qbeEmitter) function(fn *ast.FuncDecl) {
	e.frame, e.temps = make(map[string]bool), 0

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = "l %p." + p.Name
	}
	fmt.Fprintf(e.out, "\nfunction l $smol_%s(%s) {\n", fn.Name, strings.Join(params, ", "))
	e.label("start")
	for _, p := range fn.Params {
		e.frame[p.Name] = true
		e.emit("%%s.%s =l alloc8 8", p.Name)
		e.emit("storel %%p.%s, %%s.%s", p.Name, p.Name)
	}
	for _, l := range fn.Locals {
		e.frame[l.Name] = true
		e.emit("%%s.%s =l alloc8 8", l.Name)
	}

	for _, l := range fn.Locals {
		v := e.expr(l.Init)
		e.emit("storel %s, %s", v, e.address(l.Name))
	}
	e.cmds(fn.Body)
	e.emit("ret %s", e.expr(fn.Return))
	e.out.WriteString("}\n")
}

func (e *qbeEmitter) address(name string) string {
	if e.frame[name] {
		return "%s." + name
	}
	return "$smol_" + name
}

func (e *qbeEmitter) cmds(cmds []*ast.Node) {
	for _, cmd := range cmds {
		e.cmd(cmd)
	}
}

func (e *qbeEmitter) cmd(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.AssignNode:
		v := e.expr(d.Expr)
		e.emit("storel %s, %s", v, e.address(d.Name))

	case ast.IfNode:
		lfalse, lend := e.newLabel(), e.newLabel()
		c := e.expr(d.Cond)
		e.emit("jnz %s, @Lthen%d, @Lfalse%d", c, lfalse, lfalse)
		e.label("Lthen%d", lfalse)
		e.cmds(d.ThenBody)
		e.emit("jmp @Lend%d", lend)
		e.label("Lfalse%d", lfalse)
		e.cmds(d.ElseBody)
		e.label("Lend%d", lend)

	case ast.WhileNode:
		lstart, lend := e.newLabel(), e.newLabel()
		e.label("Lstart%d", lstart)
		c := e.expr(d.Cond)
		e.emit("jnz %s, @Lbody%d, @Lend%d", c, lstart, lend)
		e.label("Lbody%d", lstart)
		e.cmds(d.Body)
		e.emit("jmp @Lstart%d", lstart)
		e.label("Lend%d", lend)

	default:
		panic(fmt.Sprintf("codegen: unexpected command node %s", node.Type))
	}
}

var qbeOps = map[token.Type]string{
	token.Plus:  "add",
	token.Minus: "sub",
	token.Star:  "mul",
	token.Slash: "div",
	token.EqEq:  "ceql",
	token.Lt:    "csltl",
	token.Gt:    "csgtl",
}

// expr evaluates node into a fresh temporary and returns its name.
func (e *qbeEmitter) expr(node *ast.Node) string {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		t := e.newTemp()
		e.emit("%s =l copy %d", t, d.Value)
		return t

	case ast.IdentNode:
		t := e.newTemp()
		e.emit("%s =l loadl %s", t, e.address(d.Name))
		return t

	case ast.BinaryOpNode:
		op, ok := qbeOps[d.Op]
		if !ok {
			panic(fmt.Sprintf("codegen: invalid operator %s", d.Op))
		}
		r := e.expr(d.Right)
		l := e.expr(d.Left)
		t := e.newTemp()
		e.emit("%s =l %s %s, %s", t, op, l, r)
		return t

	case ast.FuncCallNode:
		args := make([]string, len(d.Args))
		for i := len(d.Args) - 1; i >= 0; i-- {
			args[i] = "l " + e.expr(d.Args[i])
		}
		t := e.newTemp()
		e.emit("%s =l call $smol_%s(%s)", t, d.Name, strings.Join(args, ", "))
		return t

	default:
		panic(fmt.Sprintf("codegen: unexpected expression node %s", node.Type))
	}
}
