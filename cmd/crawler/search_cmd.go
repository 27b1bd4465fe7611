package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ossminer/crawler/internal/config"
	"github.com/ossminer/crawler/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <CONFIG>",
	Short: "Search GitHub for candidate repositories without mining them",
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
			logger.WithError(err).Fatal("search failed")
		}
	},
}
