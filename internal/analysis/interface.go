// Package analysis defines the pluggable Analysis contract: the four
// operations (Init, Preprocess, Compile, Intern) that decide what a mine
// run extracts. The core drives any compiled-in Analysis through this
// interface without knowing its concrete type.
package analysis

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
)

// MatchData is an opaque, analysis-specific payload produced by Compile and
// consumed by Intern. Concrete analyses recover their own shape with a type
// assertion — the "downcast by the same plugin that produced it" strategy.
type MatchData any

// InitInput is passed to Init once per process, before any file is mined.
type InitInput struct {
	DB *sqlx.DB
}

// PreInput is passed to Preprocess once per source file.
type PreInput struct {
	Root string // repository root
	File string // path relative to Root
}

// CompileInput is passed to Compile once per header-set attempt.
type CompileInput struct {
	Root    string
	File    string
	Content string   // output of Preprocess
	Headers []string // candidate include-search directories for this attempt
}

// CompileResult is the outcome of one Compile attempt. Log is appended to
// the per-repository log verbatim regardless of outcome.
type CompileResult struct {
	Data MatchData // nil if this attempt failed
	OK   bool
	Log  string
}

// InternInput is passed to Intern once per repository, after every file has
// been compiled (or has exhausted its attempts), inside a transaction owned
// by the caller.
type InternInput struct {
	RepoID int64
	Data   []MatchData
	Tx     *sqlx.Tx
}

// Interface is the contract a pluggable analysis implements. Analyses are
// compiled in (no dynamic loading): the set of available analyses is a
// closed, build-time-known set of structs satisfying this interface.
type Interface interface {
	// Init runs once per process, before any repository is mined. Intended
	// for creating analysis-owned tables. A non-nil error is fatal.
	Init(ctx context.Context, in InitInput) error

	// Preprocess runs once per source file; its result is handed to every
	// Compile attempt for that file.
	Preprocess(ctx context.Context, in PreInput) (string, error)

	// Compile runs for each header-set attempt. A successful result is
	// handed to Intern; otherwise the File Compiler tries the next
	// header set.
	Compile(ctx context.Context, in CompileInput) CompileResult

	// Intern runs once per repository, after all files have been
	// compiled, within a transaction owned by the caller.
	Intern(ctx context.Context, in InternInput) error
}

// DefaultPreprocess implements the default Preprocess behavior described in
// spec §4.3: read the file as UTF-8. Concrete analyses that don't need
// custom preprocessing can delegate to this.
func DefaultPreprocess(in PreInput) (string, error) {
	b, err := os.ReadFile(filepath.Join(in.Root, in.File))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
