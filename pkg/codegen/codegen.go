package codegen

import (
	"github.com/xplshn/smolc/pkg/ast"
	"github.com/xplshn/smolc/pkg/checker"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/util"
)

// Result is the output of a compilation together with the warnings raised
// while checking the program.
type Result struct {
	Text     string
	Info     *checker.Info
	Warnings []util.Diagnostic
}

// Compile checks prog and renders it with the backend named in cfg. No text
// is produced when the check fails.
func Compile(prog *ast.Program, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	info, err := checker.Check(prog, cfg)
	if err != nil {
		return nil, err
	}
	backend, err := Select(cfg.BackendName)
	if err != nil {
		return nil, err
	}
	buf, err := backend.Generate(prog, info, cfg)
	if err != nil {
		return nil, err
	}
	return &Result{Text: buf.String(), Info: info, Warnings: info.Warnings}, nil
}

// Generate checks prog and returns its assembly listing. A nil cfg selects
// the NASM backend with default features.
func Generate(prog *ast.Program, cfg *config.Config) (string, error) {
	res, err := Compile(prog, cfg)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
