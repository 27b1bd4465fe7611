// Package runner drives a full mining run: load the un-mined repository
// list, clone and mine each one across a two-tier worker pool, and persist
// results with per-repository panic isolation.
package runner

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ossminer/crawler/internal/analysis"
	"github.com/ossminer/crawler/internal/apperrors"
	"github.com/ossminer/crawler/internal/gitremote"
	"github.com/ossminer/crawler/internal/miner"
	"github.com/ossminer/crawler/internal/store"
)

// Config bundles the `runner` TOML section's tunables the Runner itself
// needs (search and logging concerns live in their own packages).
type Config struct {
	Threads int
	TmpDir  string
	LogDir  string

	// MarkMinedOnInternFailure preserves spec §4.6's at-most-once behavior
	// (mark mined even when intern failed) but makes it configurable.
	MarkMinedOnInternFailure bool
}

// Runner owns one mining run across every currently un-mined repository.
// Its outer pool is `runner.threads` wide, one task per repository; each
// task drives its own Miner with an inner pool `miner.threads` wide, so a
// slow repository never starves file workers of a faster one.
type Runner struct {
	store    *store.Store
	iface    analysis.Interface
	cfg      Config
	minerCfg miner.Config
	log      *logrus.Logger
}

// New creates a Runner.
func New(st *store.Store, iface analysis.Interface, cfg Config, minerCfg miner.Config, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{store: st, iface: iface, cfg: cfg, minerCfg: minerCfg, log: log}
}

// Run calls the analysis's Init once, loads the un-mined repository list,
// and mines every repository across the outer pool. Init failure is fatal,
// per spec §4.6.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.iface.Init(ctx, analysis.InitInput{DB: r.store.DB()}); err != nil {
		return apperrors.Wrap(err, apperrors.InitFailed, "analysis init")
	}

	repos, err := r.store.UnminedRepos(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.DbTransient, "load unmined repos")
	}
	r.log.WithField("count", len(repos)).Info("runner: starting mine run")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Threads))

	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			r.processRepo(gctx, repo)
			// Per-repository failures are logged and isolated; they never
			// abort the run.
			return nil
		})
	}

	return g.Wait()
}

// processRepo clones, mines, and interns one repository, recovering from
// any panic so that one repository never stalls the rest of the run.
func (r *Runner) processRepo(ctx context.Context, repo store.Repo) {
	defer func() {
		if rec := recover(); rec != nil {
			appErr := apperrors.Newf(apperrors.PanicCaught, "panic processing repo %s: %v", repo.FullName, rec)
			r.log.WithError(appErr).Error("runner: recovered panic, skipping repository")
		}
	}()

	clone, err := gitremote.Acquire(r.cfg.TmpDir, repo.ID, repo.FullName, repo.CloneURL, r.log)
	if err != nil {
		r.log.WithError(err).WithField("repo", repo.FullName).Warn("runner: clone failed, skipping")
		return
	}
	// Releasing the clone directory only after mining finishes keeps it
	// alive for the duration of the repository's Miner worker pool, even
	// though Acquire itself runs synchronously on this goroutine.
	defer clone.Release()

	logPath := filepath.Join(r.cfg.LogDir, "repo-"+strconv.FormatInt(repo.ID, 10)+".log")
	m := miner.New(clone.Dir, r.iface, r.minerCfg, logPath, r.log)

	result, err := m.Run(ctx)
	if err != nil {
		r.log.WithError(err).WithField("repo", repo.FullName).Warn("runner: mine failed, skipping intern")
		return
	}

	r.intern(ctx, repo, result)
}

// intern runs the analysis's Intern inside a transaction, then records
// mined/stats. Per spec §4.6's at-most-once semantics for repeat work, the
// repository is marked mined even when intern failed, unless the operator
// has turned MarkMinedOnInternFailure off (spec §9's Open Question).
func (r *Runner) intern(ctx context.Context, repo store.Repo, result miner.Result) {
	internErr := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.iface.Intern(ctx, analysis.InternInput{RepoID: repo.ID, Data: result.Matches, Tx: tx})
	})
	if internErr != nil {
		appErr := apperrors.Wrap(internErr, apperrors.InternFailed, "intern repo "+repo.FullName)
		r.log.WithError(appErr).Warn("runner: intern failed")
	}

	if internErr != nil && !r.cfg.MarkMinedOnInternFailure {
		r.log.WithField("repo", repo.FullName).Warn("runner: leaving repository unmined after intern failure")
		return
	}

	if err := r.store.MarkMined(ctx, repo.ID); err != nil {
		r.log.WithError(err).WithField("repo", repo.FullName).Warn("runner: failed to mark repo mined")
	}

	st := store.Stats{
		RepoID:    repo.ID,
		NFiles:    result.NFiles,
		NSuccess:  result.NSuccess,
		NError:    result.NError,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
	if err := r.store.SaveStats(ctx, st); err != nil {
		r.log.WithError(err).WithField("repo", repo.FullName).Warn("runner: failed to save stats")
	}
}
