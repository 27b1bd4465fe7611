// Package miner drives the per-repository mine: build the dependency graph,
// fan a bounded worker pool across the repository's source files, collect
// match data, and roll up the per-repository log and statistics.
package miner

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ossminer/crawler/internal/analysis"
	"github.com/ossminer/crawler/internal/apperrors"
	"github.com/ossminer/crawler/internal/compiler"
	"github.com/ossminer/crawler/internal/depgraph"
)

// Result is the aggregate outcome of mining one repository.
type Result struct {
	Matches  []analysis.MatchData
	NFiles   int
	NSuccess int
	NError   int
	Elapsed  time.Duration
}

// Miner mines a single cloned repository: one instance is constructed per
// repository and discarded after Run returns.
type Miner struct {
	root    string
	iface   analysis.Interface
	tries   int
	workers int
	logPath string
	log     *logrus.Logger
}

// Config bundles the tunables a Miner needs, mirroring the `miner` TOML
// section: number of per-file workers and the Selector try budget.
type Config struct {
	Threads int
	Tries   int
}

// New creates a Miner for the repository cloned at root, writing its raw
// per-file logs to logPath before they are compressed in Run.
func New(root string, iface analysis.Interface, cfg Config, logPath string, log *logrus.Logger) *Miner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Miner{root: root, iface: iface, tries: cfg.Tries, workers: cfg.Threads, logPath: logPath, log: log}
}

// Run builds the dependency graph, mines every source file across a bounded
// worker pool, and compresses the accumulated log on completion.
func (m *Miner) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	dg, err := depgraph.Build(m.root, m.log)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CloneFailed, "build dependency graph")
	}

	logFile, err := os.OpenFile(m.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.DbTransient, "open per-repo log file")
	}
	defer logFile.Close()

	var logMu sync.Mutex
	var resMu sync.Mutex
	var matches []analysis.MatchData
	nSuccess, nError := 0, 0

	files := dg.SourceFiles()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.workers))

	for _, f := range files {
		f := f
		g.Go(func() error {
			res := m.mineFile(gctx, f, dg)

			logMu.Lock()
			_, _ = logFile.WriteString(res.Log)
			logMu.Unlock()

			resMu.Lock()
			if res.OK {
				nSuccess++
				matches = append(matches, res.Data)
			} else {
				nError++
			}
			resMu.Unlock()

			// Per-file failures never abort the repository's mine.
			return nil
		})
	}
	// errgroup's error is always nil here since mineFile swallows its own
	// failures; Wait still joins every worker before we compress the log.
	_ = g.Wait()

	if err := m.compressLog(); err != nil {
		m.log.WithError(err).Warn("miner: failed to compress per-repo log, leaving raw log in place")
	}

	return Result{
		Matches:  matches,
		NFiles:   len(files),
		NSuccess: nSuccess,
		NError:   nError,
		Elapsed:  time.Since(start),
	}, nil
}

// mineFile runs the File Compiler for one source file, isolating any panic
// so that one misbehaving file never takes down the repository's mine.
func (m *Miner) mineFile(ctx context.Context, f depgraph.File, dg *depgraph.DependencyGraph) (result compiler.Result) {
	defer func() {
		if r := recover(); r != nil {
			appErr := apperrors.Newf(apperrors.PanicCaught, "panic mining %s: %v", f.Path, r)
			m.log.WithError(appErr).Error("miner: recovered panic compiling file")
			result = compiler.Result{OK: false, Log: appErr.DetailedString() + "\n"}
		}
	}()

	c := compiler.New(f, dg, m.iface, m.tries, m.log)
	return c.Run(ctx, dg)
}

// compressLog replaces the raw per-repo log file with a tar+gzip archive at
// the same path plus ".tar.gz", per spec §4.5 ("the compressed artifact
// replaces the uncompressed file iff compression succeeded").
func (m *Miner) compressLog() error {
	raw, err := os.Open(m.logPath)
	if err != nil {
		return err
	}
	defer raw.Close()

	info, err := raw.Stat()
	if err != nil {
		return err
	}

	archivePath := m.logPath + ".tar.gz"
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name: filepath.Base(m.logPath),
		Mode: 0o644,
		Size: info.Size(),
	}
	writeErr := func() error {
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := copyAll(tw, raw); err != nil {
			return err
		}
		if err := tw.Close(); err != nil {
			return err
		}
		return gz.Close()
	}()

	if cerr := out.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(archivePath)
		return writeErr
	}

	return os.Remove(m.logPath)
}

func copyAll(dst *tar.Writer, src *os.File) (int64, error) {
	n, err := io.Copy(dst, src)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}
