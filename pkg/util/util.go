package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/xplshn/smolc/pkg/config"
	"github.com/xplshn/smolc/pkg/token"
)

// ErrorKind classifies user-facing compile errors.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	UnresolvedReference
	DuplicateName
	ArityMismatch
	ReservedName
)

var errorKindNames = map[ErrorKind]string{
	SyntaxError:         "syntax error",
	UnresolvedReference: "unresolved reference",
	DuplicateName:       "duplicate name",
	ArityMismatch:       "arity mismatch",
	ReservedName:        "reserved name",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

// CompileError is a positioned error in the user's program. Name holds the
// offending identifier, if any.
type CompileError struct {
	Kind ErrorKind
	Pos  token.Pos
	Name string
	Msg  string
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func NewError(kind ErrorKind, pos token.Pos, name, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Name: name, Msg: fmt.Sprintf(format, args...)}
}

// Diagnostic is a warning produced while compiling.
type Diagnostic struct {
	Warning config.Warning
	Pos     token.Pos
	Msg     string
}

// SourceFileRecord tracks the name and content of the file being compiled.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var source = SourceFileRecord{Name: "<input>"}

// SetSource stores the source code for rich error messages
func SetSource(name string, content string) {
	source = SourceFileRecord{Name: name, Content: []rune(content)}
}

var useColor = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

// SetColor forces ANSI colors on or off.
func SetColor(enabled bool) { useColor = enabled }

func paint(code, s string) string {
	if !useColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// printErrorLine prints the source line and a caret indicating the position
func printErrorLine(w io.Writer, pos token.Pos, length int) {
	if !pos.IsValid() {
		return
	}
	content := source.Content
	lineNum := pos.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	caret := "^"
	if length > 1 {
		caret += strings.Repeat("~", length-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", pos.Column-1), paint("32", caret))
}

// Report prints err in the `file:line:col: error: msg` form. Joined errors are
// printed one by one.
func Report(w io.Writer, err error) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			Report(w, e)
		}
		return
	}

	var ce *CompileError
	if !errors.As(err, &ce) {
		fmt.Fprintf(w, "%s: %s %s\n", source.Name, paint("31", "error:"), err)
		return
	}
	if !ce.Pos.IsValid() {
		fmt.Fprintf(w, "%s: %s %s\n", source.Name, paint("31", "error:"), ce.Msg)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: %s %s\n", source.Name, ce.Pos.Line, ce.Pos.Column, paint("31", "error:"), ce.Msg)
	printErrorLine(w, ce.Pos, len(ce.Name))
}

// Warn prints a formatted warning if the corresponding warning is enabled
func Warn(cfg *config.Config, w io.Writer, d Diagnostic) {
	if !cfg.IsWarningEnabled(d.Warning) {
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: %s %s [-W%s]\n", source.Name, d.Pos.Line, d.Pos.Column, paint("33", "warning:"), d.Msg, cfg.Warnings[d.Warning].Name)
	printErrorLine(w, d.Pos, 1)
}

// Info prints a progress line on stderr.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "smolc: info: "+format+"\n", args...)
}

// Fatal prints a formatted error message and exits the program
func Fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "smolc: %s ", paint("31", "error:"))
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}
