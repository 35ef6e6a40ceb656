// Package lexer provides the character-level reader the parser scans with.
// The language has no separate token stream: the parser pulls characters
// directly, with whitespace skipped transparently.
package lexer

import (
	"unicode"

	"github.com/xplshn/smolc/pkg/token"
)

// Cursor is a rewindable, whitespace-skipping reader over source text.
type Cursor struct {
	source []rune
	pos    int
	line   int
	column int
}

// Mark is a saved Cursor position, see Cursor.Mark and Cursor.Reset.
type Mark struct {
	pos, line, column int
}

func NewCursor(source string) *Cursor {
	return &Cursor{source: []rune(source), line: 1, column: 1}
}

// Peek returns the next non-whitespace character without consuming it.
func (c *Cursor) Peek() (rune, bool) {
	m := c.Mark()
	c.SkipSpace()
	ch, ok := c.peekRaw()
	c.Reset(m)
	return ch, ok
}

// Advance consumes and returns the next non-whitespace character.
func (c *Cursor) Advance() (rune, bool) {
	c.SkipSpace()
	if c.isAtEnd() {
		return 0, false
	}
	return c.advanceRaw(), true
}

// Is reports whether the next non-whitespace character is ch.
func (c *Cursor) Is(ch rune) bool {
	next, ok := c.Peek()
	return ok && next == ch
}

func (c *Cursor) Mark() Mark { return Mark{c.pos, c.line, c.column} }

func (c *Cursor) Reset(m Mark) { c.pos, c.line, c.column = m.pos, m.line, m.column }

// MatchKeyword consumes kw if it is spelled contiguously at the next
// non-whitespace position and is not immediately followed by an ASCII letter
// or digit. Otherwise the cursor is left untouched.
func (c *Cursor) MatchKeyword(kw string) bool {
	m := c.Mark()
	c.SkipSpace()
	for _, want := range kw {
		got, ok := c.peekRaw()
		if !ok || got != want {
			c.Reset(m)
			return false
		}
		c.advanceRaw()
	}
	if next, ok := c.peekRaw(); ok && IsAlnum(next) {
		c.Reset(m)
		return false
	}
	return true
}

// Pos returns the position of the next non-whitespace character, or of the
// end of input.
func (c *Cursor) Pos() token.Pos {
	m := c.Mark()
	c.SkipSpace()
	p := token.Pos{Offset: c.pos, Line: c.line, Column: c.column}
	c.Reset(m)
	return p
}

func (c *Cursor) AtEnd() bool {
	_, ok := c.Peek()
	return !ok
}

func (c *Cursor) SkipSpace() {
	for !c.isAtEnd() && unicode.IsSpace(c.source[c.pos]) {
		c.advanceRaw()
	}
}

func (c *Cursor) isAtEnd() bool { return c.pos >= len(c.source) }

func (c *Cursor) peekRaw() (rune, bool) {
	if c.isAtEnd() {
		return 0, false
	}
	return c.source[c.pos], true
}

func (c *Cursor) advanceRaw() rune {
	ch := c.source[c.pos]
	if ch == '\n' {
		c.line++
		c.column = 1
	} else {
		c.column++
	}
	c.pos++
	return ch
}

func IsAlpha(ch rune) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }
func IsDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
func IsAlnum(ch rune) bool { return IsAlpha(ch) || IsDigit(ch) }
