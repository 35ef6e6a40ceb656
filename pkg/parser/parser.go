package parser

import (
	"strconv"
	"strings"

	"github.com/xplshn/smolc/pkg/ast"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/lexer"
	"github.com/xplshn/smolc/pkg/token"
	"github.com/xplshn/smolc/pkg/util"
)

// Parser is a scannerless recursive-descent parser. Its only state is the
// cursor position; the first error aborts the parse.
type Parser struct {
	cur      *lexer.Cursor
	bareDecl bool
	bareMain bool
}

// NewParser creates a parser for src. A nil cfg means the default feature set.
func NewParser(src string, cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Parser{
		cur:      lexer.NewCursor(src),
		bareDecl: cfg.IsFeatureEnabled(config.FeatBareDecl),
		bareMain: cfg.IsFeatureEnabled(config.FeatBareMain),
	}
}

// Parse parses a whole program with the default feature set.
func Parse(src string) (*ast.Program, error) {
	return NewParser(src, nil).ParseProgram()
}

// --- Error Helpers ---

func (p *Parser) errorf(pos token.Pos, format string, args ...interface{}) error {
	return util.NewError(util.SyntaxError, pos, "", format, args...)
}

func (p *Parser) found() string {
	r, ok := p.cur.Peek()
	if !ok {
		return "end of input"
	}
	return strconv.QuoteRune(r)
}

func (p *Parser) expect(ch rune, context string) error {
	pos := p.cur.Pos()
	if !p.cur.Is(ch) {
		return p.errorf(pos, "expected '%c' %s, found %s", ch, context, p.found())
	}
	p.cur.Advance()
	return nil
}

func (p *Parser) expectKeyword(kw, context string) error {
	pos := p.cur.Pos()
	if !p.cur.MatchKeyword(kw) {
		return p.errorf(pos, "expected '%s' %s, found %s", kw, context, p.found())
	}
	return nil
}

// --- Program And Declarations ---

func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for {
		pos := p.cur.Pos()
		switch {
		case p.cur.MatchKeyword("var"):
			decl, err := p.parseVarDeclRest(pos)
			if err != nil {
				return nil, err
			}
			prog.Globals = append(prog.Globals, decl)

		case p.cur.MatchKeyword("fun"):
			fn, err := p.parseFuncDeclRest(pos)
			if err != nil {
				return nil, err
			}
			prog.Funcs = append(prog.Funcs, fn)

		case p.cur.MatchKeyword("main"):
			return p.parseMain(prog, pos)

		case p.cur.Is('{'):
			if !p.bareMain {
				return nil, p.errorf(pos, "expected 'main' before the main block (enable with -Fbare-main)")
			}
			prog.BareMain = true
			return p.parseMain(prog, pos)

		case p.peekIdentStart():
			if !p.bareDecl {
				return nil, p.errorf(pos, "global declarations need 'var' (enable bare declarations with -Fbare-decl)")
			}
			decl, err := p.parseVarDeclRest(pos)
			if err != nil {
				return nil, err
			}
			decl.Bare = true
			prog.Globals = append(prog.Globals, decl)

		default:
			return nil, p.errorf(pos, "expected a declaration or the main block, found %s", p.found())
		}
	}
}

func (p *Parser) parseMain(prog *ast.Program, pos token.Pos) (*ast.Program, error) {
	prog.MainPos = pos
	body, ret, err := p.parseReturnBlock()
	if err != nil {
		return nil, err
	}
	prog.Main, prog.Return = body, ret
	if !p.cur.AtEnd() {
		return nil, p.errorf(p.cur.Pos(), "unexpected %s after the main block", p.found())
	}
	return prog, nil
}

// parseVarDeclRest parses `ident = expr ;` after an optional `var`.
func (p *Parser) parseVarDeclRest(pos token.Pos) (*ast.VarDecl, error) {
	name, _, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect('=', "in declaration"); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(';', "after declaration"); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Pos: pos, Name: name, Init: init}, nil
}

func (p *Parser) parseFuncDeclRest(pos token.Pos) (*ast.FuncDecl, error) {
	name, _, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	fn := &ast.FuncDecl{Pos: pos, Name: name}

	if err := p.expect('(', "after function name"); err != nil {
		return nil, err
	}
	if !p.cur.Is(')') {
		for {
			param, paramPos, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, ast.Param{Pos: paramPos, Name: param})
			if !p.cur.Is(',') {
				break
			}
			p.cur.Advance()
		}
	}
	if err := p.expect(')', "after parameters"); err != nil {
		return nil, err
	}
	if err := p.expect('{', "to open the function body"); err != nil {
		return nil, err
	}

	for {
		localPos := p.cur.Pos()
		if !p.cur.MatchKeyword("var") {
			break
		}
		local, err := p.parseVarDeclRest(localPos)
		if err != nil {
			return nil, err
		}
		fn.Locals = append(fn.Locals, local)
	}

	fn.Body, fn.Return, err = p.parseReturnTail()
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// parseReturnBlock parses `{ cmd* return expr ; }`.
func (p *Parser) parseReturnBlock() ([]*ast.Node, *ast.Node, error) {
	if err := p.expect('{', "to open the block"); err != nil {
		return nil, nil, err
	}
	return p.parseReturnTail()
}

// parseReturnTail parses `cmd* return expr ; }` once the brace is consumed.
func (p *Parser) parseReturnTail() ([]*ast.Node, *ast.Node, error) {
	var body []*ast.Node
	for !p.cur.MatchKeyword("return") {
		if p.cur.AtEnd() || p.cur.Is('}') {
			return nil, nil, p.errorf(p.cur.Pos(), "expected 'return' before end of block, found %s", p.found())
		}
		cmd, err := p.parseCmd()
		if err != nil {
			return nil, nil, err
		}
		body = append(body, cmd)
	}
	ret, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if err := p.expect(';', "after return expression"); err != nil {
		return nil, nil, err
	}
	if err := p.expect('}', "to close the block"); err != nil {
		return nil, nil, err
	}
	return body, ret, nil
}

// --- Commands ---

func (p *Parser) parseCmd() (*ast.Node, error) {
	pos := p.cur.Pos()
	switch {
	case p.cur.MatchKeyword("if"):
		return p.parseIfRest(pos)
	case p.cur.MatchKeyword("while"):
		return p.parseWhileRest(pos)
	default:
		return p.parseAssign()
	}
}

func (p *Parser) parseIfRest(pos token.Pos) (*ast.Node, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else", "after if block"); err != nil {
		return nil, err
	}
	elseBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewIf(pos, cond, thenBody, elseBody), nil
}

func (p *Parser) parseWhileRest(pos token.Pos) (*ast.Node, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(pos, cond, body), nil
}

func (p *Parser) parseAssign() (*ast.Node, error) {
	name, pos, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect('=', "in assignment"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(';', "after assignment"); err != nil {
		return nil, err
	}
	return ast.NewAssign(pos, name, expr), nil
}

// parseBlock parses `{ cmd* }`; an empty block is valid.
func (p *Parser) parseBlock() ([]*ast.Node, error) {
	if err := p.expect('{', "to open the block"); err != nil {
		return nil, err
	}
	var cmds []*ast.Node
	for !p.cur.Is('}') {
		if p.cur.AtEnd() {
			return nil, p.errorf(p.cur.Pos(), "expected '}' to close the block, found end of input")
		}
		cmd, err := p.parseCmd()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	p.cur.Advance()
	return cmds, nil
}

// --- Expressions ---

func (p *Parser) parseExpr() (*ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.cur.Pos()
		var op token.Type
		switch {
		case p.cur.Is('<'):
			op = token.Lt
			p.cur.Advance()
		case p.cur.Is('>'):
			op = token.Gt
			p.cur.Advance()
		case p.cur.Is('='):
			p.cur.Advance()
			if !p.cur.Is('=') {
				return nil, p.errorf(pos, "expected '==' but found a lone '='")
			}
			p.cur.Advance()
			op = token.EqEq
		default:
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(pos, op, left, right)
	}
}

func (p *Parser) parseAdditive() (*ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.cur.Pos()
		var op token.Type
		switch {
		case p.cur.Is('+'):
			op = token.Plus
		case p.cur.Is('-'):
			op = token.Minus
		default:
			return left, nil
		}
		p.cur.Advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(pos, op, left, right)
	}
}

func (p *Parser) parseMultiplicative() (*ast.Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.cur.Pos()
		var op token.Type
		switch {
		case p.cur.Is('*'):
			op = token.Star
		case p.cur.Is('/'):
			op = token.Slash
		default:
			return left, nil
		}
		p.cur.Advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(pos, op, left, right)
	}
}

func (p *Parser) parsePrimary() (*ast.Node, error) {
	pos := p.cur.Pos()
	r, ok := p.cur.Peek()
	switch {
	case !ok:
		return nil, p.errorf(pos, "expected an expression, found end of input")

	case lexer.IsDigit(r):
		return p.parseNumber()

	case lexer.IsAlpha(r):
		name, _, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if !p.cur.Is('(') {
			return ast.NewIdent(pos, name), nil
		}
		p.cur.Advance()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return ast.NewFuncCall(pos, name, args), nil

	case r == '(':
		p.cur.Advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')', "to close the parenthesized expression"); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.errorf(pos, "expected an expression, found %s", p.found())
	}
}

// parseArgs parses `[expr ("," expr)*] ")"` after the opening parenthesis.
func (p *Parser) parseArgs() ([]*ast.Node, error) {
	var args []*ast.Node
	if p.cur.Is(')') {
		p.cur.Advance()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.cur.Is(',') {
			break
		}
		p.cur.Advance()
	}
	if err := p.expect(')', "to close the argument list"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseNumber() (*ast.Node, error) {
	pos := p.cur.Pos()
	var sb strings.Builder
	for {
		r, ok := p.cur.Peek()
		if !ok || !lexer.IsDigit(r) {
			break
		}
		sb.WriteRune(r)
		p.cur.Advance()
	}
	val, err := strconv.ParseInt(sb.String(), 10, 32)
	if err != nil {
		return nil, p.errorf(pos, "integer constant %s does not fit in 32 bits", sb.String())
	}
	return ast.NewNumber(pos, int32(val)), nil
}

func (p *Parser) peekIdentStart() bool {
	r, ok := p.cur.Peek()
	return ok && lexer.IsAlpha(r)
}

func (p *Parser) parseIdent() (string, token.Pos, error) {
	pos := p.cur.Pos()
	if !p.peekIdentStart() {
		return "", pos, p.errorf(pos, "expected an identifier, found %s", p.found())
	}
	var sb strings.Builder
	for {
		r, ok := p.cur.Peek()
		if !ok || !lexer.IsAlnum(r) {
			break
		}
		sb.WriteRune(r)
		p.cur.Advance()
	}
	name := sb.String()
	if token.IsKeyword(name) {
		return "", pos, p.errorf(pos, "keyword '%s' cannot be used as an identifier", name)
	}
	return name, pos, nil
}

