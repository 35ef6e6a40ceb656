//go:build !windows

package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"modernc.org/libqbe"
)

// Assemble lowers QBE IL to native assembly for target.
func Assemble(il, target string) (*bytes.Buffer, error) {
	var asmBuf bytes.Buffer
	if err := libqbe.Main(target, "input.ssa", strings.NewReader(il), &asmBuf, nil); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nlibqbe error: %w", il, err)
	}
	return &asmBuf, nil
}
