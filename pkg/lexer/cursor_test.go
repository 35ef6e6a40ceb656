package lexer

import (
	"testing"

	"github.com/xplshn/smolc/pkg/token"
)

func TestCursorSkipsWhitespace(t *testing.T) {
	c := NewCursor("  a \n\t b  ")
	var got []rune
	for {
		ch, ok := c.Advance()
		if !ok {
			break
		}
		got = append(got, ch)
	}
	if string(got) != "ab" {
		t.Fatalf("Advance sequence = %q, want %q", string(got), "ab")
	}
	if _, ok := c.Peek(); ok {
		t.Fatalf("Peek after end should report no character")
	}
}

func TestCursorPeekDoesNotConsume(t *testing.T) {
	c := NewCursor("   x")
	for i := 0; i < 3; i++ {
		ch, ok := c.Peek()
		if !ok || ch != 'x' {
			t.Fatalf("Peek #%d = %q, %v", i, ch, ok)
		}
	}
	if ch, _ := c.Advance(); ch != 'x' {
		t.Fatalf("Advance = %q, want 'x'", ch)
	}
}

func TestCursorMarkReset(t *testing.T) {
	c := NewCursor("abc")
	m := c.Mark()
	c.Advance()
	c.Advance()
	c.Reset(m)
	if ch, _ := c.Advance(); ch != 'a' {
		t.Fatalf("after Reset, Advance = %q, want 'a'", ch)
	}
}

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kw    string
		match bool
		next  rune
	}{
		{"plain", "if x", "if", true, 'x'},
		{"leading space", "   while(", "while", true, '('},
		{"followed by brace", "else{", "else", true, '{'},
		{"identifier prefix", "ifx = 1;", "if", false, 'i'},
		{"digit suffix", "var1", "var", false, 'v'},
		{"split keyword", "i f", "if", false, 'i'},
		{"at end", "return", "return", true, 0},
		{"different word", "main", "fun", false, 'm'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.input)
			if got := c.MatchKeyword(tt.kw); got != tt.match {
				t.Fatalf("MatchKeyword(%q) on %q = %v, want %v", tt.kw, tt.input, got, tt.match)
			}
			ch, _ := c.Peek()
			if ch != tt.next {
				t.Errorf("next char = %q, want %q", ch, tt.next)
			}
		})
	}
}

func TestCursorPos(t *testing.T) {
	c := NewCursor("a\n  b")
	c.Advance()
	want := token.Pos{Offset: 4, Line: 2, Column: 3}
	if got := c.Pos(); got != want {
		t.Fatalf("Pos() = %+v, want %+v", got, want)
	}
}
