// Package compiler drives the Selector and an Analysis across one source
// file: preprocess once, try header sets until one compiles or the budget
// is spent, aggregating a per-file log as it goes.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ossminer/crawler/internal/analysis"
	"github.com/ossminer/crawler/internal/apperrors"
	"github.com/ossminer/crawler/internal/depgraph"
	"github.com/ossminer/crawler/internal/selector"
)

// Compiler attempts to produce match data for one source file by iterating
// header-set hypotheses from a Selector and handing each to an Analysis.
type Compiler struct {
	file  depgraph.File
	root  string
	tries int

	iface analysis.Interface
	log   *logrus.Logger
}

// New creates a Compiler for file, rooted at dg, budgeted for at most
// `tries` distinct header-set attempts.
func New(file depgraph.File, dg *depgraph.DependencyGraph, iface analysis.Interface, tries int, log *logrus.Logger) *Compiler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Compiler{file: file, root: dg.Root(), tries: tries, iface: iface, log: log}
}

// Result is the terminal outcome of running a Compiler: either match data
// (OK true) or a failure (OK false), plus the accumulated per-file log text.
type Result struct {
	Data analysis.MatchData
	OK   bool
	Log  string
}

// Run executes the full preprocess/try-headers/compile loop described in
// spec §4.4 and returns the terminal result.
func (c *Compiler) Run(ctx context.Context, dg *depgraph.DependencyGraph) Result {
	var logBuf strings.Builder

	content, err := c.iface.Preprocess(ctx, analysis.PreInput{Root: c.root, File: c.file.Path})
	if err != nil {
		appErr := apperrors.Wrapf(err, apperrors.PreprocessFailed, "preprocess %s", c.file.Path)
		c.log.WithError(appErr).Warn("compiler: preprocess failed")
		return Result{OK: false, Log: logBuf.String()}
	}

	sel := selector.New(c.file, dg, c.tries)

	for {
		headers := sel.Step()
		if headers == nil {
			break
		}

		res := c.tryCompile(ctx, content, headers)
		logBuf.WriteString(res.Log)

		if res.OK {
			return Result{Data: res.Data, OK: true, Log: logBuf.String()}
		}
	}

	appErr := apperrors.New(apperrors.CompileFailed, fmt.Sprintf("no header set compiled %s", c.file.Path))
	c.log.WithError(appErr).Warn("compiler: exhausted header sets")
	return Result{OK: false, Log: logBuf.String()}
}

// tryCompile invokes the Analysis's Compile for one header set inside a
// panic guard: a panic is caught, logged, and treated as this attempt's
// failure, never propagated to the caller or across files.
func (c *Compiler) tryCompile(ctx context.Context, content string, headers []string) (result analysis.CompileResult) {
	defer func() {
		if r := recover(); r != nil {
			appErr := apperrors.Newf(apperrors.PanicCaught, "panic compiling %s: %v", c.file.Path, r)
			c.log.WithError(appErr).Error("compiler: recovered panic in Compile")
			result = analysis.CompileResult{
				OK:  false,
				Log: fmt.Sprintf("panic: %v\n", r),
			}
		}
	}()

	return c.iface.Compile(ctx, analysis.CompileInput{
		Root:    c.root,
		File:    c.file.Path,
		Content: content,
		Headers: headers,
	})
}
