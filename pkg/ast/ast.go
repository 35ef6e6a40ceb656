// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/xplshn/smolc/pkg/token"
)

// NodeType defines the kind of an expression or command node
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Ident
	BinaryOp
	FuncCall

	// Commands
	Assign
	If
	While
)

var nodeTypeNames = [...]string{
	Number:   "Number",
	Ident:    "Ident",
	BinaryOp: "BinaryOp",
	FuncCall: "FuncCall",
	Assign:   "Assign",
	If:       "If",
	While:    "While",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "NodeType(?)"
}

// Node is an expression or a command. Nodes are immutable once the parser
// returns them.
type Node struct {
	Type NodeType
	Pos  token.Pos
	Data interface{}
}

// --- Node Data Structs ---
type NumberNode struct{ Value int32 }
type IdentNode struct{ Name string }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type FuncCallNode struct {
	Name string
	Args []*Node
}
type AssignNode struct {
	Name string
	Expr *Node
}
type IfNode struct {
	Cond               *Node
	ThenBody, ElseBody []*Node
}
type WhileNode struct {
	Cond *Node
	Body []*Node
}

// VarDecl is a global or local declaration with its initializer.
type VarDecl struct {
	Pos  token.Pos
	Name string
	Init *Node
	Bare bool // declared as `name = expr;` without the var keyword
}

type Param struct {
	Pos  token.Pos
	Name string
}

type FuncDecl struct {
	Pos    token.Pos
	Name   string
	Params []Param
	Locals []*VarDecl
	Body   []*Node
	Return *Node
}

type Program struct {
	Globals  []*VarDecl
	Funcs    []*FuncDecl
	Main     []*Node
	Return   *Node
	MainPos  token.Pos
	BareMain bool // main block written without the main keyword
}

// --- Node Constructors ---

func NewNumber(pos token.Pos, value int32) *Node {
	return &Node{Type: Number, Pos: pos, Data: NumberNode{Value: value}}
}
func NewIdent(pos token.Pos, name string) *Node {
	return &Node{Type: Ident, Pos: pos, Data: IdentNode{Name: name}}
}
func NewBinaryOp(pos token.Pos, op token.Type, left, right *Node) *Node {
	return &Node{Type: BinaryOp, Pos: pos, Data: BinaryOpNode{Op: op, Left: left, Right: right}}
}
func NewFuncCall(pos token.Pos, name string, args []*Node) *Node {
	return &Node{Type: FuncCall, Pos: pos, Data: FuncCallNode{Name: name, Args: args}}
}
func NewAssign(pos token.Pos, name string, expr *Node) *Node {
	return &Node{Type: Assign, Pos: pos, Data: AssignNode{Name: name, Expr: expr}}
}
func NewIf(pos token.Pos, cond *Node, thenBody, elseBody []*Node) *Node {
	return &Node{Type: If, Pos: pos, Data: IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}}
}
func NewWhile(pos token.Pos, cond *Node, body []*Node) *Node {
	return &Node{Type: While, Pos: pos, Data: WhileNode{Cond: cond, Body: body}}
}

// Walk calls visit for node and every node below it, parents first.
func Walk(node *Node, visit func(n *Node)) {
	if node == nil {
		return
	}
	visit(node)

	switch d := node.Data.(type) {
	case BinaryOpNode:
		Walk(d.Left, visit)
		Walk(d.Right, visit)
	case FuncCallNode:
		for _, arg := range d.Args {
			Walk(arg, visit)
		}
	case AssignNode:
		Walk(d.Expr, visit)
	case IfNode:
		Walk(d.Cond, visit)
		WalkList(d.ThenBody, visit)
		WalkList(d.ElseBody, visit)
	case WhileNode:
		Walk(d.Cond, visit)
		WalkList(d.Body, visit)
	}
}

func WalkList(nodes []*Node, visit func(n *Node)) {
	for _, n := range nodes {
		Walk(n, visit)
	}
}
