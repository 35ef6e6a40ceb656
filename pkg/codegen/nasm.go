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

// nasmBackend emits x86-64 NASM assembly for Linux. Expressions are
// evaluated into rax, with rbx holding the right operand of binary
// operators; parameters live above rbp and locals below it.
type nasmBackend struct{}

func NewNASMBackend() Backend { return &nasmBackend{} }

// nasmEmitter is the state threaded through one compilation.
type nasmEmitter struct {
	out    *strings.Builder
	labels int            // next label number, never reset
	frame  map[string]int // rbp offsets of the current function, nil in _start
}

func (b *nasmBackend) Generate(prog *ast.Program, info *checker.Info, cfg *config.Config) (*bytes.Buffer, error) {
	e := &nasmEmitter{out: &strings.Builder{}}
	e.program(prog, info.Globals)
	return bytes.NewBufferString(e.out.String()), nil
}

func (e *nasmEmitter) emit(format string, args ...interface{}) {
	fmt.Fprintf(e.out, format, args...)
	e.out.WriteByte('\n')
}

func (e *nasmEmitter) newLabel() int {
	n := e.labels
	e.labels++
	return n
}

func (e *nasmEmitter) program(prog *ast.Program, globals []string) {
	e.emit("section .bss")
	for _, g := range globals {
		e.emit("%s: resq 1", nasmSymbol(g))
	}
	e.emit("section .text")
	e.emit("global _start")

	for _, fn := range prog.Funcs {
		e.function(fn)
	}

	e.frame = nil
	e.emit("\n_start:")
	for _, g := range prog.Globals {
		e.expr(g.Init)
		e.emit("mov [%s], rax", nasmSymbol(g.Name))
	}
	e.cmds(prog.Main)
	e.expr(prog.Return)
	e.emit("mov rdi, rax")
	e.emit("mov rax, 60")
	e.emit("syscall")
}

func (e *nasmEmitter) function(fn *ast.FuncDecl) {
	e.frame = make(map[string]int, len(fn.Params)+len(fn.Locals))
	for i, p := range fn.Params {
		e.frame[p.Name] = 16 + 8*i
	}
	for i, l := range fn.Locals {
		e.frame[l.Name] = -8 * (i + 1)
	}

	e.emit("\n%s:", nasmSymbol(fn.Name))
	e.emit("push rbp")
	e.emit("mov rbp, rsp")
	stack := 8 * len(fn.Locals)
	if stack > 0 {
		e.emit("sub rsp, %d", stack)
	}

	for _, l := range fn.Locals {
		e.expr(l.Init)
		e.emit("mov %s, rax", e.address(l.Name))
	}
	e.cmds(fn.Body)
	e.expr(fn.Return)

	if stack > 0 {
		e.emit("add rsp, %d", stack)
	}
	e.emit("pop rbp")
	e.emit("ret")
}

// address returns the memory operand of a variable: frame-relative when the
// name belongs to the current function, a global label otherwise.
func (e *nasmEmitter) address(name string) string {
	if off, ok := e.frame[name]; ok {
		if off < 0 {
			return fmt.Sprintf("[rbp-%d]", -off)
		}
		return fmt.Sprintf("[rbp+%d]", off)
	}
	return fmt.Sprintf("[%s]", nasmSymbol(name))
}

func (e *nasmEmitter) cmds(cmds []*ast.Node) {
	for _, cmd := range cmds {
		e.cmd(cmd)
	}
}

func (e *nasmEmitter) cmd(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.AssignNode:
		e.expr(d.Expr)
		e.emit("mov %s, rax", e.address(d.Name))

	case ast.IfNode:
		lfalse, lend := e.newLabel(), e.newLabel()
		e.expr(d.Cond)
		e.emit("cmp rax, 0")
		e.emit("je Lfalse%d", lfalse)
		e.cmds(d.ThenBody)
		e.emit("jmp Lend%d", lend)
		e.emit("Lfalse%d:", lfalse)
		e.cmds(d.ElseBody)
		e.emit("Lend%d:", lend)

	case ast.WhileNode:
		lstart, lend := e.newLabel(), e.newLabel()
		e.emit("Lstart%d:", lstart)
		e.expr(d.Cond)
		e.emit("cmp rax, 0")
		e.emit("je Lend%d", lend)
		e.cmds(d.Body)
		e.emit("jmp Lstart%d", lstart)
		e.emit("Lend%d:", lend)

	default:
		panic(fmt.Sprintf("codegen: unexpected command node %s", node.Type))
	}
}

func (e *nasmEmitter) expr(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		e.emit("mov rax, %d", d.Value)

	case ast.IdentNode:
		e.emit("mov rax, %s", e.address(d.Name))

	case ast.BinaryOpNode:
		e.expr(d.Right)
		e.emit("push rax")
		e.expr(d.Left)
		e.emit("pop rbx")
		e.binaryOp(d.Op)

	case ast.FuncCallNode:
		for i := len(d.Args) - 1; i >= 0; i-- {
			e.expr(d.Args[i])
			e.emit("push rax")
		}
		e.emit("call %s", nasmSymbol(d.Name))
		if len(d.Args) > 0 {
			e.emit("add rsp, %d", 8*len(d.Args))
		}

	default:
		panic(fmt.Sprintf("codegen: unexpected expression node %s", node.Type))
	}
}

func (e *nasmEmitter) binaryOp(op token.Type) {
	switch op {
	case token.Plus:
		e.emit("add rax, rbx")
	case token.Minus:
		e.emit("sub rax, rbx")
	case token.Star:
		e.emit("imul rax, rbx")
	case token.Slash:
		e.emit("cqo")
		e.emit("idiv rbx")
	case token.EqEq, token.Lt, token.Gt:
		set := map[token.Type]string{token.EqEq: "setz", token.Lt: "setl", token.Gt: "setg"}[op]
		e.emit("xor rcx, rcx")
		e.emit("cmp rax, rbx")
		e.emit("%s cl", set)
		e.emit("mov rax, rcx")
	default:
		panic(fmt.Sprintf("codegen: invalid operator %s", op))
	}
}

// nasmReserved holds identifiers NASM would read as registers or keywords.
var nasmReserved = func() map[string]bool {
	m := make(map[string]bool)
	for _, r := range []string{"ax", "bx", "cx", "dx", "si", "di", "bp", "sp"} {
		m["r"+r], m["e"+r], m[r] = true, true, true
	}
	for _, r := range []string{"al", "bl", "cl", "dl", "ah", "bh", "ch", "dh", "sil", "dil", "bpl", "spl", "rip"} {
		m[r] = true
	}
	for i := 8; i <= 15; i++ {
		for _, suffix := range []string{"", "d", "w", "b"} {
			m[fmt.Sprintf("r%d%s", i, suffix)] = true
		}
	}
	for _, kw := range []string{
		"byte", "word", "dword", "qword", "tword", "oword", "yword", "zword",
		"section", "segment", "global", "extern", "common", "bits", "default",
		"resb", "resw", "resd", "resq", "db", "dw", "dd", "dq", "equ", "times",
		"rel", "abs", "seg", "wrt", "strict", "nosplit", "ptr", "far", "near", "short",
		"mov", "push", "pop", "add", "sub", "imul", "idiv", "cqo", "xor", "cmp",
		"setz", "setl", "setg", "je", "jmp", "call", "ret", "syscall",
	} {
		m[kw] = true
	}
	return m
}()

// nasmSymbol escapes names that NASM would otherwise treat as reserved words.
func nasmSymbol(name string) string {
	if nasmReserved[strings.ToLower(name)] {
		return "$" + name
	}
	return name
}
