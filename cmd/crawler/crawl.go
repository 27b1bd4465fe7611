package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ossminer/crawler/internal/analyses/textsearch"
	"github.com/ossminer/crawler/internal/config"
	"github.com/ossminer/crawler/internal/miner"
	"github.com/ossminer/crawler/internal/runner"
	"github.com/ossminer/crawler/internal/search"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <CONFIG>",
	Short: "Run the full pipeline: search for repositories, then mine them",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(args[0])
		ctx := context.Background()

		if err := config.NewEnvLoader().ValidateWithGitHub(cfg); err != nil {
			logger.WithError(err).Fatal("missing required configuration")
		}

		st := openStore(cfg)
		defer st.Close()

		sr := search.New(cfg.Runner.GitHubAPIKey, cfg.Runner.MinStars, st, logger)
		if err := sr.Run(ctx); err != nil {
			logger.WithError(err).Error("search phase failed, continuing to mine phase")
		}

		iface := textsearch.New()
		r := runner.New(st, iface,
			runner.Config{
				Threads:                  cfg.Runner.Threads,
				TmpDir:                   cfg.Runner.TmpDir,
				LogDir:                   cfg.Runner.LogDir,
				MarkMinedOnInternFailure: cfg.Runner.MarkMinedOnInternFailure,
			},
			miner.Config{Threads: cfg.Miner.Threads, Tries: cfg.Miner.Tries},
			logger,
		)

		if err := r.Run(ctx); err != nil {
			logger.WithError(err).Fatal("mine phase failed")
		}
	},
}
