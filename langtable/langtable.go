// Package langtable holds the process-wide, read-only language→command
// table used by Precomputer and Hatch to invoke a cell's interpreter. The
// table is built once, before any pipeline runs, from defaults +
// environment + any host-supplied extensions, and never mutated
// mid-pipeline; a Table value is immutable after New returns.
package langtable

import (
	"sort"
	"sync"

	"github.com/henhouse/egg/eggconfig"
)

// Table is an immutable language→command-vector mapping.
type Table struct {
	commands map[string][]string
}

// New builds the default table (python/r/bash), then applies EGG_CMD_<LANG>
// overrides, then host-supplied extra mappings (a plugin discovery
// mechanism supplies these; this module exposes only the extension point,
// not plugin discovery itself).
func New(extra map[string][]string) *Table {
	commands := map[string][]string{
		"python": {currentInterpreter()},
		"r":      {"Rscript"},
		"bash":   {"bash"},
	}
	for lang := range commands {
		if override, ok := eggconfig.LanguageCommandOverride(lang); ok {
			commands[lang] = override
		}
	}
	for lang, cmd := range extra {
		commands[lang] = cmd
	}
	return &Table{commands: commands}
}

// currentInterpreter returns the default python command. A Go process has
// no equivalent of a running Python interpreter's own executable path, so
// the default falls back to "python3" on PATH, overridable via
// EGG_CMD_PYTHON like any other language entry.
func currentInterpreter() string {
	return "python3"
}

// Lookup returns the command vector for language, or (nil, false) if the
// language is unsupported.
func (t *Table) Lookup(language string) ([]string, bool) {
	cmd, ok := t.commands[language]
	if !ok {
		return nil, false
	}
	out := make([]string, len(cmd))
	copy(out, cmd)
	return out, true
}

// Languages returns every supported language name, sorted.
func (t *Table) Languages() []string {
	out := make([]string, 0, len(t.commands))
	for lang := range t.commands {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table, initializing it on first use.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable = New(nil)
	})
	return defaultTable
}
