package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goforj/godump"
	"github.com/xplshn/smolc/pkg/cli"
	"github.com/xplshn/smolc/pkg/codegen"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/parser"
	"github.com/xplshn/smolc/pkg/util"
)

func main() {
	app := cli.NewApp("smolc")
	app.Synopsis = "[options] <input.sm>"
	app.Description = "A compiler for a small imperative language of integers, loops and functions. Emits NASM for x86-64 Linux, or QBE IL for everything QBE targets."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/smolc>"
	app.Since = 2025

	var (
		outFile      string
		target       string
		linkerArgs   []string
		compilerArgs []string
		pedantic     bool
		asmOnly      bool
		dumpIR       bool
		dumpAST      bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.out", "Place the output into <file>.", "file")
	fs.String(&target, "target", "t", "nasm", "Set the backend and target ABI (nasm, qbe, qbe/<target>).", "backend/target")
	fs.Bool(&asmOnly, "asm", "S", false, "Write the assembly to the output file instead of linking.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Print the backend output (NASM or QBE IL) and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the syntax tree and exit.")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.List(&compilerArgs, "compiler-arg", "C", []string{}, "Pass a compiler-specific argument (e.g., -C linker_args='-s').", "arg")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings about non-canonical syntax.")

	cfg := config.NewConfig()
	groups := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if pedantic {
			cfg.SetPedantic()
		}
		cfg.Apply(groups)

		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Fatal("%v", err)
		}

		cfg.LinkerArgs = append(cfg.LinkerArgs, linkerArgs...)
		for _, carg := range compilerArgs {
			key, value, ok := strings.Cut(carg, "=")
			if !ok || key != "linker_args" {
				util.Fatal("unknown compiler argument '%s'", carg)
			}
			parsed, err := config.ParseCLIString(value)
			if err != nil {
				util.Fatal("invalid -C linker_args value: %v", err)
			}
			cfg.LinkerArgs = append(cfg.LinkerArgs, parsed...)
		}

		if len(inputFiles) != 1 {
			util.Fatal("expected exactly one input file, got %d", len(inputFiles))
		}
		input := inputFiles[0]
		content, err := os.ReadFile(input)
		if err != nil {
			util.Fatal("could not read file '%s': %v", input, err)
		}
		util.SetSource(input, string(content))

		fmt.Println("----------------------")
		fmt.Printf("Parsing %s (%s)...\n", input, humanize.Bytes(uint64(len(content))))
		prog, err := parser.NewParser(string(content), cfg).ParseProgram()
		if err != nil {
			util.Report(os.Stderr, err)
			return err
		}

		if dumpAST {
			godump.Dump(prog)
			return nil
		}

		fmt.Printf("Generating code with '%s' backend...\n", cfg.BackendName)
		res, err := codegen.Compile(prog, cfg)
		if err != nil {
			util.Report(os.Stderr, err)
			return err
		}
		for _, w := range res.Warnings {
			util.Warn(cfg, os.Stderr, w)
		}

		if dumpIR {
			fmt.Print(res.Text)
			return nil
		}

		asm := res.Text
		if cfg.BackendName == "qbe" {
			fmt.Printf("Lowering QBE IL for '%s'...\n", cfg.BackendTarget)
			buf, err := codegen.Assemble(res.Text, cfg.BackendTarget)
			if err != nil {
				util.Fatal("qbe failed: %v", err)
			}
			asm = buf.String()
		}

		if asmOnly {
			if err := os.WriteFile(outFile, []byte(asm), 0644); err != nil {
				util.Fatal("could not write '%s': %v", outFile, err)
			}
			fmt.Printf("Wrote %s (%s)\n", outFile, humanize.Bytes(uint64(len(asm))))
			return nil
		}

		fmt.Printf("Linking to create '%s'...\n", outFile)
		if cfg.BackendName == "nasm" {
			err = assembleAndLinkNASM(outFile, asm, cfg.LinkerArgs)
		} else {
			err = assembleAndLinkCC(outFile, asm, cfg.LinkerArgs)
		}
		if err != nil {
			util.Fatal("assembler/linker failed: %v", err)
		}
		if info, err := os.Stat(outFile); err == nil {
			fmt.Printf("Wrote %s (%s)\n", outFile, humanize.Bytes(uint64(info.Size())))
		}

		fmt.Println("----------------------")
		fmt.Println("Done!")
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// assembleAndLinkNASM runs `nasm -f elf64` and `ld` on the generated listing.
func assembleAndLinkNASM(outFile, asm string, linkerArgs []string) error {
	dir, err := os.MkdirTemp("", "smolc-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	asmFile := filepath.Join(dir, "main.asm")
	objFile := filepath.Join(dir, "main.o")
	if err := os.WriteFile(asmFile, []byte(asm), 0644); err != nil {
		return fmt.Errorf("failed to write temp asm file: %w", err)
	}

	if output, err := exec.Command("nasm", "-f", "elf64", asmFile, "-o", objFile).CombinedOutput(); err != nil {
		return fmt.Errorf("nasm command failed: %w\nOutput:\n%s", err, output)
	}
	ldArgs := append([]string{objFile, "-o", outFile}, linkerArgs...)
	if output, err := exec.Command("ld", ldArgs...).CombinedOutput(); err != nil {
		return fmt.Errorf("ld command failed: %w\nOutput:\n%s", err, output)
	}
	return nil
}

// assembleAndLinkCC hands QBE's assembly to the system C compiler.
func assembleAndLinkCC(outFile, asm string, linkerArgs []string) error {
	asmFile, err := os.CreateTemp("", "smolc-main-*.s")
	if err != nil {
		return fmt.Errorf("failed to create temp file for main asm: %w", err)
	}
	defer os.Remove(asmFile.Name())
	if _, err := asmFile.WriteString(asm); err != nil {
		asmFile.Close()
		return fmt.Errorf("failed to write to temp file for main asm: %w", err)
	}
	asmFile.Close()

	ccArgs := append([]string{"-no-pie", "-o", outFile, asmFile.Name()}, linkerArgs...)
	if output, err := exec.Command("cc", ccArgs...).CombinedOutput(); err != nil {
		return fmt.Errorf("cc command failed: %w\nOutput:\n%s", err, output)
	}
	return nil
}
