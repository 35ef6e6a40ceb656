//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/xplshn/smolc/pkg/util"
)

// Assemble lowers QBE IL by running the system 'qbe', since libqbe is not
// available on Windows.
func Assemble(il, target string) (*bytes.Buffer, error) {
	util.Info("self-contained QBE is not supported on Windows, falling back to the system 'qbe'")
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("QBE not found in PATH: %w", err)
	}

	in, err := os.CreateTemp("", "smolc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(in.Name())
	if _, err := in.WriteString(il); err != nil {
		in.Close()
		return nil, err
	}
	in.Close()

	out := in.Name() + ".s"
	defer os.Remove(out)
	if output, err := exec.Command("qbe", "-o", out, "-t", target, in.Name()).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\n%s\nError: %w", il, output, err)
	}

	asm, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(asm), nil
}
