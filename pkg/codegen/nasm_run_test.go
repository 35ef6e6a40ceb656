package codegen

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// runNASM assembles and links asm with the system nasm and ld, runs the
// result and returns its exit status.
func runNASM(t *testing.T, asm string) int {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.asm")
	obj := filepath.Join(dir, "prog.o")
	bin := filepath.Join(dir, "prog")
	if err := os.WriteFile(src, []byte(asm), 0644); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command("nasm", "-f", "elf64", src, "-o", obj).CombinedOutput(); err != nil {
		t.Fatalf("nasm: %v\n%s\n%s", err, out, asm)
	}
	if out, err := exec.Command("ld", obj, "-o", bin).CombinedOutput(); err != nil {
		t.Fatalf("ld: %v\n%s", err, out)
	}
	return exitStatus(t, bin)
}

// runQBE lowers il for the host with Assemble, links it with cc, runs the
// result and returns its exit status.
func runQBE(t *testing.T, il, target string) int {
	t.Helper()
	buf, err := Assemble(il, target)
	if err != nil {
		t.Fatalf("Assemble: %v\n%s", err, il)
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.s")
	bin := filepath.Join(dir, "prog")
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command("cc", "-no-pie", "-o", bin, src).CombinedOutput(); err != nil {
		t.Fatalf("cc: %v\n%s\n%s", err, out, buf)
	}
	return exitStatus(t, bin)
}

func exitStatus(t *testing.T, bin string) int {
	t.Helper()
	err := exec.Command(bin).Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	default:
		t.Fatalf("running %s: %v", bin, err)
		return -1
	}
}

func TestRunNASM(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("native NASM output targets linux/amd64")
	}
	for _, tool := range []string{"nasm", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not found in PATH", tool)
		}
	}

	tests := []struct {
		name string
		src  string
		want int
	}{
		{"if", "x = 1; { if x == 1 { x = 2; } else { x = 3; } return x; }", 2},
		{"else", "x = 5; { if x == 1 { x = 2; } else { x = 3; } return x; }", 3},
		{"while", "i = 0; { while i < 3 { i = i + 1; } return i; }", 3},
		{"division", "a = 10; b = 5; c = 0; { c = a / b; return c; }", 2},
		{"precedence", "{ return 2 + 3 * 4 - 8 / 2; }", 10},
		{"left associative", "{ return 8 - 3 - 2; }", 3},
		{"calls", "fun sub2(a, b) { return a - b; } main { return sub2(10, 3); }", 7},
		{"locals", "fun f(n) { var acc = 0; var i = 0; while i < n { i = i + 1; acc = acc + i; } return acc; } main { return f(10); }", 55},
		{"recursion", "fun fact(n) { var r = 1; if n > 1 { r = n * fact(n - 1); } else { } return r; } main { return fact(5); }", 120},
		{"globals from functions", "var g = 4; fun bump() { g = g + 1; return g; } main { g = bump() + bump(); return g; }", 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runNASM(t, generate(t, tt.src, nil)); got != tt.want {
				t.Errorf("exit status = %d, want %d", got, tt.want)
			}
		})
	}
}
