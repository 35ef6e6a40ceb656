// Package checker resolves names in a parsed program before code generation.
// It rejects undeclared and duplicate names and calls with the wrong number
// of arguments, and collects the warnings enabled in the configuration.
package checker

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/xplshn/smolc/pkg/ast"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/token"
	"github.com/xplshn/smolc/pkg/util"
)

// Info is the result of a successful check.
type Info struct {
	Globals  []string // declared globals in order, then implicit ones in first-use order
	Funcs    map[string]int
	Warnings []util.Diagnostic
}

// Globals and functions share the assembler's symbol namespace with the
// labels generated for if and while.
var generatedLabel = regexp.MustCompile(`^L(false|end|start)[0-9]+$`)

type checker struct {
	cfg      *config.Config
	info     *Info
	errs     []error
	globals  map[string]bool
	implicit bool
	calls    map[string]int // calls to each function from outside its own body
	current  string         // function being checked, "" for globals and main
	frame    map[string]bool
}

// Check resolves every name in prog. All errors are reported together.
func Check(prog *ast.Program, cfg *config.Config) (*Info, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	c := &checker{
		cfg:      cfg,
		info:     &Info{Funcs: make(map[string]int)},
		globals:  make(map[string]bool),
		implicit: cfg.IsFeatureEnabled(config.FeatImplicitGlobals),
		calls:    make(map[string]int),
	}
	c.declare(prog)

	for _, g := range prog.Globals {
		c.checkExpr(g.Init)
	}
	for _, fn := range prog.Funcs {
		c.checkFunc(fn)
	}
	c.current, c.frame = "", nil
	c.checkCmds(prog.Main)
	c.checkExpr(prog.Return)

	c.legacyWarnings(prog)
	for _, fn := range prog.Funcs {
		if c.calls[fn.Name] == 0 {
			c.warn(config.WarnUnusedFunc, fn.Pos, "function '%s' is never called", fn.Name)
		}
	}

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return c.info, nil
}

func (c *checker) errorf(kind util.ErrorKind, pos token.Pos, name, format string, args ...interface{}) {
	c.errs = append(c.errs, util.NewError(kind, pos, name, format, args...))
}

func (c *checker) warn(w config.Warning, pos token.Pos, format string, args ...interface{}) {
	if !c.cfg.IsWarningEnabled(w) {
		return
	}
	c.info.Warnings = append(c.info.Warnings, util.Diagnostic{Warning: w, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (c *checker) reserved(pos token.Pos, name string) {
	if generatedLabel.MatchString(name) {
		c.errorf(util.ReservedName, pos, name, "'%s' has the form of a generated label and cannot name a global or function", name)
	}
}

func (c *checker) declare(prog *ast.Program) {
	for _, g := range prog.Globals {
		c.reserved(g.Pos, g.Name)
		if c.globals[g.Name] {
			c.errorf(util.DuplicateName, g.Pos, g.Name, "global '%s' is already declared", g.Name)
			continue
		}
		c.globals[g.Name] = true
		c.info.Globals = append(c.info.Globals, g.Name)
	}
	for _, fn := range prog.Funcs {
		c.reserved(fn.Pos, fn.Name)
		if _, ok := c.info.Funcs[fn.Name]; ok {
			c.errorf(util.DuplicateName, fn.Pos, fn.Name, "function '%s' is already declared", fn.Name)
			continue
		}
		if c.globals[fn.Name] {
			c.errorf(util.DuplicateName, fn.Pos, fn.Name, "'%s' is declared both as a global and as a function", fn.Name)
		}
		c.info.Funcs[fn.Name] = len(fn.Params)
	}
}

func (c *checker) checkFunc(fn *ast.FuncDecl) {
	c.current = fn.Name
	c.frame = make(map[string]bool)

	add := func(pos token.Pos, name string) {
		if c.frame[name] {
			c.errorf(util.DuplicateName, pos, name, "'%s' is already declared in function '%s'", name, fn.Name)
			return
		}
		c.frame[name] = true
		if c.globals[name] {
			c.warn(config.WarnShadow, pos, "'%s' shadows the global of the same name", name)
		}
	}
	for _, p := range fn.Params {
		add(p.Pos, p.Name)
	}
	for _, l := range fn.Locals {
		add(l.Pos, l.Name)
	}

	for _, l := range fn.Locals {
		c.checkExpr(l.Init)
	}
	c.checkCmds(fn.Body)
	c.checkExpr(fn.Return)
}

func (c *checker) checkCmds(cmds []*ast.Node) {
	for _, cmd := range cmds {
		switch d := cmd.Data.(type) {
		case ast.AssignNode:
			c.checkExpr(d.Expr)
			c.resolveVar(cmd.Pos, d.Name, "assignment to")
		case ast.IfNode:
			c.checkExpr(d.Cond)
			c.checkCmds(d.ThenBody)
			c.checkCmds(d.ElseBody)
		case ast.WhileNode:
			c.checkExpr(d.Cond)
			c.checkCmds(d.Body)
		}
	}
}

func (c *checker) checkExpr(expr *ast.Node) {
	ast.Walk(expr, func(n *ast.Node) {
		switch d := n.Data.(type) {
		case ast.IdentNode:
			c.resolveVar(n.Pos, d.Name, "use of")
		case ast.FuncCallNode:
			c.checkCall(n.Pos, d)
		case ast.BinaryOpNode:
			if token.IsComparison(d.Op) && (isComparison(d.Left) || isComparison(d.Right)) {
				c.warn(config.WarnChainedCompare, n.Pos, "comparison result is compared again; this is not a range check")
			}
			if d.Op == token.Slash && isZero(d.Right) {
				c.warn(config.WarnExtra, n.Pos, "division by constant zero")
			}
		}
	})
}

func isZero(n *ast.Node) bool {
	d, ok := n.Data.(ast.NumberNode)
	return ok && d.Value == 0
}

func isComparison(n *ast.Node) bool {
	d, ok := n.Data.(ast.BinaryOpNode)
	return ok && token.IsComparison(d.Op)
}

func (c *checker) checkCall(pos token.Pos, call ast.FuncCallNode) {
	arity, ok := c.info.Funcs[call.Name]
	if !ok {
		c.errorf(util.UnresolvedReference, pos, call.Name, "call to undeclared function '%s'", call.Name)
		return
	}
	if call.Name != c.current {
		c.calls[call.Name]++
	}
	if len(call.Args) != arity {
		c.errorf(util.ArityMismatch, pos, call.Name, "function '%s' expects %d argument(s), got %d", call.Name, arity, len(call.Args))
	}
}

func (c *checker) resolveVar(pos token.Pos, name, what string) {
	if c.frame[name] || c.globals[name] {
		return
	}
	if !c.implicit {
		c.errorf(util.UnresolvedReference, pos, name, "%s undeclared variable '%s'", what, name)
		return
	}
	c.reserved(pos, name)
	c.globals[name] = true
	c.info.Globals = append(c.info.Globals, name)
	c.warn(config.WarnImplicitDecl, pos, "implicit declaration of global '%s'", name)
}

func (c *checker) legacyWarnings(prog *ast.Program) {
	for _, g := range prog.Globals {
		if g.Bare {
			c.warn(config.WarnLegacySyntax, g.Pos, "global '%s' declared without 'var'", g.Name)
		}
	}
	if prog.BareMain {
		c.warn(config.WarnLegacySyntax, prog.MainPos, "main block written without the 'main' keyword")
	}
}
