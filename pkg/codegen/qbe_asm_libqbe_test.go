//go:build !windows

package codegen

import (
	"runtime"
	"strings"
	"testing"

	"modernc.org/libqbe"
)

func TestAssemble(t *testing.T) {
	il := generate(t, qbeSample, qbeConfig(t))
	asm, err := Assemble(il, libqbe.DefaultTarget(runtime.GOOS, runtime.GOARCH))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out := asm.String()
	for _, sym := range []string{"smol_sq", "smol_g", "main"} {
		if !strings.Contains(out, sym) {
			t.Errorf("assembly does not mention %s:\n%s", sym, out)
		}
	}
}
