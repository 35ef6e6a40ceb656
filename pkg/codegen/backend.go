package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/smolc/pkg/ast"
	"github.com/xplshn/smolc/pkg/checker"
	"github.com/xplshn/smolc/pkg/config"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate renders a checked program as the backend's textual output:
	// NASM assembly or QBE IL.
	Generate(prog *ast.Program, info *checker.Info, cfg *config.Config) (*bytes.Buffer, error)
}

// Select returns the backend registered under name.
func Select(name string) (Backend, error) {
	switch name {
	case "", "nasm":
		return NewNASMBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend '%s'", name)
	}
}
