package codegen

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/smolc/pkg/ast"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/parser"
	"github.com/xplshn/smolc/pkg/token"
	"github.com/xplshn/smolc/pkg/util"
)

func generate(t *testing.T, src string, cfg *config.Config) string {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	asm, err := Generate(prog, cfg)
	if err != nil {
		t.Fatalf("Generate(%q): %v", src, err)
	}
	return asm
}

func lines(s ...string) string { return strings.Join(s, "\n") + "\n" }

// containsInOrder reports whether every want line appears in asm after the
// previous one.
func containsInOrder(asm string, want ...string) bool {
	rest := asm
	for _, w := range want {
		i := strings.Index(rest, w+"\n")
		if i < 0 {
			return false
		}
		rest = rest[i+len(w)+1:]
	}
	return true
}

func TestGenerateIfElse(t *testing.T) {
	got := generate(t, "x = 1; { if x == 1 { x = 2; } else { x = 3; } return x; }", nil)
	want := lines(
		"section .bss",
		"x: resq 1",
		"section .text",
		"global _start",
		"",
		"_start:",
		"mov rax, 1",
		"mov [x], rax",
		"mov rax, 1",
		"push rax",
		"mov rax, [x]",
		"pop rbx",
		"xor rcx, rcx",
		"cmp rax, rbx",
		"setz cl",
		"mov rax, rcx",
		"cmp rax, 0",
		"je Lfalse0",
		"mov rax, 2",
		"mov [x], rax",
		"jmp Lend1",
		"Lfalse0:",
		"mov rax, 3",
		"mov [x], rax",
		"Lend1:",
		"mov rax, [x]",
		"mov rdi, rax",
		"mov rax, 60",
		"syscall",
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assembly mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFunction(t *testing.T) {
	got := generate(t, "fun sum(a, b) { var t = a + b; return t; } main { return sum(1, 2); }", nil)
	want := lines(
		"section .bss",
		"section .text",
		"global _start",
		"",
		"sum:",
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 8",
		"mov rax, [rbp+24]",
		"push rax",
		"mov rax, [rbp+16]",
		"pop rbx",
		"add rax, rbx",
		"mov [rbp-8], rax",
		"mov rax, [rbp-8]",
		"add rsp, 8",
		"pop rbp",
		"ret",
		"",
		"_start:",
		"mov rax, 2",
		"push rax",
		"mov rax, 1",
		"push rax",
		"call sum",
		"add rsp, 16",
		"mov rdi, rax",
		"mov rax, 60",
		"syscall",
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assembly mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFrameLayout(t *testing.T) {
	got := generate(t, `
var g = 0;
fun f(a, b, c) {
    var x = 1;
    var y = 2;
    g = c;
    y = a;
    return b;
}
fun zero() { return 0; }
main { return f(1, 2, 3) + zero(); }`, nil)

	for _, want := range [][]string{
		{"f:", "push rbp", "mov rbp, rsp", "sub rsp, 16", "mov rax, 1", "mov [rbp-8], rax", "mov rax, 2", "mov [rbp-16], rax"},
		{"mov rax, [rbp+32]", "mov [g], rax", "mov rax, [rbp+16]", "mov [rbp-16], rax", "mov rax, [rbp+24]", "add rsp, 16", "pop rbp", "ret"},
		{"zero:", "push rbp", "mov rbp, rsp", "mov rax, 0", "pop rbp", "ret"},
		{"call zero", "push rax", "mov rax, 1", "push rax", "call f", "add rsp, 24", "pop rbx", "add rax, rbx"},
	} {
		if !containsInOrder(got, want...) {
			t.Errorf("assembly is missing the sequence %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "sub rsp, 0") || strings.Contains(got, "add rsp, 0") {
		t.Errorf("zero-sized frame adjustment emitted:\n%s", got)
	}
	if strings.Contains(got, "call zero\nadd rsp") {
		t.Errorf("stack cleanup emitted for a call without arguments:\n%s", got)
	}
}

func TestGenerateGlobalOrder(t *testing.T) {
	got := generate(t, "var zeta = 1; var alpha = 2; var mid = zeta + alpha; main { return mid; }", nil)
	if !containsInOrder(got, "zeta: resq 1", "alpha: resq 1", "mid: resq 1", "_start:", "mov [zeta], rax", "mov [alpha], rax", "mov [mid], rax") {
		t.Errorf("globals are not emitted in declaration order:\n%s", got)
	}
}

var labelDef = regexp.MustCompile(`(?m)^(L\w+\d+):$`)

func labelsOf(asm string) []string {
	var out []string
	for _, m := range labelDef.FindAllStringSubmatch(asm, -1) {
		out = append(out, m[1])
	}
	return out
}

func TestGenerateLabelUniqueness(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		count int
	}{
		{"sibling ifs", "x = 0; { if x { x = 1; } else { x = 2; } if x { x = 3; } else { x = 4; } return x; }", 4},
		{"nested", "x = 0; { while x < 3 { if x == 1 { x = x + 2; } else { x = x + 1; } } return x; }", 4},
		{"across functions", "fun f(a) { while a > 0 { a = a - 1; } return a; } fun g(a) { if a { a = 1; } else { a = 2; } return a; } { return f(3) + g(0); }", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := labelsOf(generate(t, tt.src, nil))
			if len(labels) != tt.count {
				t.Fatalf("got %d labels %v, want %d", len(labels), labels, tt.count)
			}
			seen := make(map[string]bool)
			for _, l := range labels {
				if seen[l] {
					t.Errorf("label %s defined twice in %v", l, labels)
				}
				seen[l] = true
			}
		})
	}
}

func TestGenerateSiblingIfLabels(t *testing.T) {
	got := labelsOf(generate(t, "x = 0; { if x { x = 1; } else { x = 2; } if x { x = 3; } else { x = 4; } return x; }", nil))
	want := []string{"Lfalse0", "Lend1", "Lfalse2", "Lend3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateWhile(t *testing.T) {
	got := generate(t, "i = 0; { while i < 3 { i = i + 1; } return i; }", nil)
	if !containsInOrder(got,
		"Lstart0:",
		"mov rax, 3", "push rax", "mov rax, [i]", "pop rbx", "setl cl",
		"cmp rax, 0", "je Lend1",
		"add rax, rbx", "mov [i], rax",
		"jmp Lstart0",
		"Lend1:",
		"mov rax, [i]", "mov rdi, rax", "mov rax, 60", "syscall",
	) {
		t.Errorf("loop shape not found:\n%s", got)
	}
}

func TestGenerateDivision(t *testing.T) {
	got := generate(t, "a = 10; b = 5; c = 0; { c = a / b; return c; }", nil)
	if !containsInOrder(got, "mov rax, [b]", "push rax", "mov rax, [a]", "pop rbx", "cqo", "idiv rbx", "mov [c], rax") {
		t.Errorf("division sequence not found:\n%s", got)
	}
}

func TestGenerateOperators(t *testing.T) {
	tests := []struct {
		op   string
		want []string
	}{
		{"+", []string{"add rax, rbx"}},
		{"-", []string{"sub rax, rbx"}},
		{"*", []string{"imul rax, rbx"}},
		{"/", []string{"cqo", "idiv rbx"}},
		{"==", []string{"xor rcx, rcx", "cmp rax, rbx", "setz cl", "mov rax, rcx"}},
		{"<", []string{"xor rcx, rcx", "cmp rax, rbx", "setl cl", "mov rax, rcx"}},
		{">", []string{"xor rcx, rcx", "cmp rax, rbx", "setg cl", "mov rax, rcx"}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got := generate(t, "{ return 7 "+tt.op+" 2; }", nil)
			want := append([]string{"mov rax, 2", "push rax", "mov rax, 7", "pop rbx"}, tt.want...)
			if !containsInOrder(got, want...) {
				t.Errorf("operator %s: sequence %q not found:\n%s", tt.op, want, got)
			}
		})
	}
}

func TestGenerateReservedNames(t *testing.T) {
	got := generate(t, "var rax = 1; fun push(a) { return a; } main { rax = push(rax); return rax; }", nil)
	for _, want := range []string{"$rax: resq 1", "\n$push:\n", "mov [$rax], rax", "mov rax, [$rax]", "call $push"} {
		if !strings.Contains(got, want) {
			t.Errorf("assembly is missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateImplicitGlobals(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatImplicitGlobals, true)

	prog, err := parser.Parse("var a = 1; { b = a + 1; return b; }")
	if err != nil {
		t.Fatal(err)
	}
	res, err := Compile(prog, cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsInOrder(res.Text, "a: resq 1", "b: resq 1", "_start:", "mov [a], rax", "mov [b], rax") {
		t.Errorf("implicit global not reserved:\n%s", res.Text)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Warning != config.WarnImplicitDecl {
		t.Errorf("Warnings = %+v, want one implicit-decl warning", res.Warnings)
	}
}

func TestGenerateUnresolved(t *testing.T) {
	prog, err := parser.Parse("{ y = 1; return y; }")
	if err != nil {
		t.Fatal(err)
	}
	asm, err := Generate(prog, nil)
	if err == nil {
		t.Fatalf("Generate succeeded:\n%s", asm)
	}
	if asm != "" {
		t.Errorf("assembly produced alongside an error:\n%s", asm)
	}
	var cerr *util.CompileError
	if !errors.As(err, &cerr) || cerr.Kind != util.UnresolvedReference || cerr.Name != "y" {
		t.Errorf("error = %v, want an unresolved reference to y", err)
	}
}

func TestGenerateLabelNameClash(t *testing.T) {
	for _, src := range []string{
		"var Lend1 = 0; main { if 1 { } else { } return Lend1; }",
		"fun Lstart0() { return 0; } main { while 0 { } return Lstart0(); }",
	} {
		prog, err := parser.Parse(src)
		if err != nil {
			t.Fatal(err)
		}
		asm, err := Generate(prog, nil)
		if err == nil {
			t.Errorf("Generate(%q) succeeded:\n%s", src, asm)
			continue
		}
		var cerr *util.CompileError
		if !errors.As(err, &cerr) || cerr.Kind != util.ReservedName {
			t.Errorf("Generate(%q) error = %v, want a reserved name error", src, err)
		}
	}
}

func TestGenerateInvalidOperatorPanics(t *testing.T) {
	prog := &ast.Program{
		Return: ast.NewBinaryOp(token.Pos{}, token.Illegal, ast.NewNumber(token.Pos{}, 1), ast.NewNumber(token.Pos{}, 2)),
	}
	defer func() {
		if recover() == nil {
			t.Error("an invalid operator did not panic")
		}
	}()
	Generate(prog, nil)
}

func TestSelect(t *testing.T) {
	for _, name := range []string{"", "nasm", "qbe"} {
		if _, err := Select(name); err != nil {
			t.Errorf("Select(%q): %v", name, err)
		}
	}
	if _, err := Select("llvm"); err == nil {
		t.Error("Select(llvm) succeeded")
	}
}
