// Package textsearch is a concrete, compiled-in Analysis. It syntax-checks
// each source file with clang under a wall-clock timeout and stores the
// diagnostics clang produced for every file that compiles; a file that
// compiles with no diagnostics adds no row.
package textsearch

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ossminer/crawler/internal/analysis"
)

// compileTimeout bounds the clang invocation; exit code 124 (from the
// `timeout` wrapper) denotes a timeout and is treated as this attempt's
// failure, never propagated as an error.
const compileTimeout = "10"

// diagPattern matches a clang diagnostic line: file:line:col: kind: text.
var diagPattern = regexp.MustCompile(`^(.+):(\d+):(\d+): (warning|error): (.*)$`)

// Diagnostic is one parsed clang diagnostic line.
type Diagnostic struct {
	Line int
	Col  int
	Kind string
	Text string
}

// Match is the MatchData this analysis produces: one compiled file and the
// diagnostics clang reported for it.
type Match struct {
	File        string
	Diagnostics []Diagnostic
}

// Analysis implements analysis.Interface by syntax-checking each file with
// clang and recording its diagnostics.
type Analysis struct {
	db *sqlx.DB
}

// New creates a textsearch Analysis.
func New() *Analysis {
	return &Analysis{}
}

var _ analysis.Interface = (*Analysis)(nil)

// Init creates this analysis's own table for storing matches.
func (a *Analysis) Init(ctx context.Context, in analysis.InitInput) error {
	a.db = in.DB
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS textsearch_matches (
			id        BIGSERIAL PRIMARY KEY,
			repo_id   BIGINT NOT NULL,
			file_path TEXT NOT NULL,
			line      INTEGER NOT NULL,
			col       INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			message   TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create textsearch_matches table: %w", err)
	}
	return nil
}

// Preprocess delegates to the default UTF-8 read.
func (a *Analysis) Preprocess(ctx context.Context, in analysis.PreInput) (string, error) {
	return analysis.DefaultPreprocess(in)
}

// Compile runs `clang -fsyntax-only` against the file with the given
// header-search directories, under a wall-clock timeout, and parses its
// diagnostics.
func (a *Analysis) Compile(ctx context.Context, in analysis.CompileInput) analysis.CompileResult {
	args := []string{compileTimeout, "clang", "-fsyntax-only"}
	for _, h := range in.Headers {
		args = append(args, "-I"+h)
	}
	args = append(args, in.File)

	cmd := exec.CommandContext(ctx, "timeout", args...)
	cmd.Dir = in.Root

	out, runErr := cmd.CombinedOutput()

	log := fmt.Sprintf("==============================\nfile: %s\nheaders: %v\noutput:\n%s\n", in.File, in.Headers, out)

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 124 {
			log += "timed out\n"
		} else {
			log += "failed\n"
		}
		return analysis.CompileResult{OK: false, Log: log}
	}

	diags := parseDiagnostics(string(out))
	log += "success\n"

	return analysis.CompileResult{
		Data: Match{File: in.File, Diagnostics: diags},
		OK:   true,
		Log:  log,
	}
}

// Intern inserts every Match's diagnostics for repoID within the caller's
// transaction.
func (a *Analysis) Intern(ctx context.Context, in analysis.InternInput) error {
	for _, d := range in.Data {
		m, ok := d.(Match)
		if !ok {
			continue
		}
		for _, diag := range m.Diagnostics {
			_, err := in.Tx.ExecContext(ctx, `
				INSERT INTO textsearch_matches (repo_id, file_path, line, col, kind, message)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, in.RepoID, m.File, diag.Line, diag.Col, diag.Kind, diag.Text)
			if err != nil {
				return fmt.Errorf("insert textsearch match: %w", err)
			}
		}
	}
	return nil
}

func parseDiagnostics(output string) []Diagnostic {
	var acc []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		m := diagPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		acc = append(acc, Diagnostic{Line: lineNo, Col: col, Kind: m[4], Text: m[5]})
	}
	return acc
}
