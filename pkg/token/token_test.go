package token

import "testing"

func TestKeywords(t *testing.T) {
	for _, kw := range []string{"var", "fun", "main", "if", "else", "while", "return"} {
		if !IsKeyword(kw) {
			t.Errorf("IsKeyword(%q) = false", kw)
		}
		if got := KeywordMap[kw].String(); got != kw {
			t.Errorf("String() = %q, want %q", got, kw)
		}
	}
	for _, name := range []string{"ifx", "Main", "returned", "x"} {
		if IsKeyword(name) {
			t.Errorf("IsKeyword(%q) = true", name)
		}
	}
}

func TestOperators(t *testing.T) {
	tests := []struct {
		op      Type
		str     string
		compare bool
	}{
		{Plus, "+", false},
		{Minus, "-", false},
		{Star, "*", false},
		{Slash, "/", false},
		{EqEq, "==", true},
		{Lt, "<", true},
		{Gt, ">", true},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := IsComparison(tt.op); got != tt.compare {
			t.Errorf("IsComparison(%s) = %v, want %v", tt.str, got, tt.compare)
		}
	}
}

func TestPos(t *testing.T) {
	if got := (Pos{}).String(); got != "-" {
		t.Errorf("zero Pos = %q, want -", got)
	}
	if got := (Pos{Offset: 12, Line: 3, Column: 4}).String(); got != "3:4" {
		t.Errorf("Pos = %q, want 3:4", got)
	}
}
