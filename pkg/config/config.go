package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/smolc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatImplicitGlobals Feature = iota
	FeatBareDecl
	FeatBareMain
	FeatCount
)

type Warning int

const (
	WarnImplicitDecl Warning = iota
	WarnChainedCompare
	WarnShadow
	WarnLegacySyntax
	WarnUnusedFunc
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	BackendName   string // "nasm" or "qbe"
	BackendTarget string // "elf64" for nasm, a QBE target name for qbe
	TargetOS      string
	TargetArch    string
	WordSize      int
	LinkerArgs    []string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		WordSize:   8,

		BackendName:   "nasm",
		BackendTarget: "elf64",
	}

	features := map[Feature]Info{
		FeatImplicitGlobals: {"implicit-globals", false, "Treat undeclared variables as implicitly declared globals."},
		FeatBareDecl:        {"bare-decl", true, "Allow `name = expr;` global declarations without `var`."},
		FeatBareMain:        {"bare-main", true, "Allow the main block without the `main` keyword."},
	}

	warnings := map[Warning]Info{
		WarnImplicitDecl:   {"implicit-decl", true, "Warn about implicitly declared globals."},
		WarnChainedCompare: {"chained-compare", true, "Warn when a comparison result is compared again (`a < b < c`)."},
		WarnShadow:         {"shadow", false, "Warn when a parameter or local hides a global."},
		WarnLegacySyntax:   {"legacy-syntax", false, "Warn on bare declarations and a main block without `main`."},
		WarnUnusedFunc:     {"unused-func", false, "Warn about functions that are never called."},
		WarnPedantic:       {"pedantic", false, "Issue all warnings about non-canonical syntax."},
		WarnExtra:          {"extra", true, "Warn about likely runtime faults such as division by constant zero."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the backend from a `backend[/target]` spec.
func (c *Config) SetTarget(goos, goarch, spec string) error {
	c.TargetOS, c.TargetArch = goos, goarch
	backend, target, _ := strings.Cut(spec, "/")
	if backend == "" {
		backend = "nasm"
	}

	switch backend {
	case "nasm":
		if target == "" {
			target = "elf64"
		}
		if target != "elf64" {
			return fmt.Errorf("unsupported nasm target '%s'. Supported: 'elf64'", target)
		}
	case "qbe":
		if target == "" {
			target = libqbe.DefaultTarget(goos, goarch)
		}
		switch target {
		case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		default:
			return fmt.Errorf("unsupported qbe target '%s'", target)
		}
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'nasm', 'qbe'", backend)
	}

	c.BackendName, c.BackendTarget = backend, target
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetAllWarnings backs -Wall and -Wno-all; pedantic is left alone.
func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		if i != WarnPedantic {
			c.SetWarning(i, enabled)
		}
	}
}

// SetPedantic turns on the pedantic warning and everything it implies.
func (c *Config) SetPedantic() {
	c.SetWarning(WarnPedantic, true)
	c.SetWarning(WarnLegacySyntax, true)
}

// FlagGroupEntries holds the -W and -F toggles registered on a flag set.
type FlagGroupEntries struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
	All      cli.FlagGroupEntry
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name> on fs.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *FlagGroupEntries {
	entries := &FlagGroupEntries{
		Warnings: make([]cli.FlagGroupEntry, WarnCount),
		Features: make([]cli.FlagGroupEntry, FeatCount),
	}
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		entries.Warnings[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: new(bool), Disabled: new(bool), Default: info.Enabled}
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		entries.Features[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: new(bool), Disabled: new(bool), Default: info.Enabled}
	}
	entries.All = cli.FlagGroupEntry{Name: "all", Prefix: "W", Usage: "Enable all warnings except pedantic.", Enabled: new(bool), Disabled: new(bool)}

	fs.AddFlagGroup("Warning Flags", "Toggle individual warnings.", "warning", "Available Warnings:", append(entries.Warnings, entries.All))
	fs.AddFlagGroup("Feature Flags", "Toggle language features.", "feature", "Available Features:", entries.Features)
	return entries
}

// Apply copies the parsed -W/-F toggles into c. -Wall/-Wno-all go first so
// that individual flags can override them.
func (c *Config) Apply(entries *FlagGroupEntries) {
	if *entries.All.Enabled {
		c.SetAllWarnings(true)
	}
	if *entries.All.Disabled {
		c.SetAllWarnings(false)
	}
	for i, entry := range entries.Warnings {
		if *entry.Enabled {
			if Warning(i) == WarnPedantic {
				c.SetPedantic()
			}
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range entries.Features {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// ParseCLIString splits a shell-like argument string, honoring single and
// double quotes and backslash escapes.
func ParseCLIString(s string) ([]string, error) {
	var args []string
	var current strings.Builder
	var quote rune
	inArg, escaped := false, false

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped, inArg = false, true
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inArg = r, true
		case r == ' ' || r == '\t' || r == '\n':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in string: %s", s)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in string: %s", s)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
