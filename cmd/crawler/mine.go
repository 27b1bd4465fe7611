package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ossminer/crawler/internal/analyses/textsearch"
	"github.com/ossminer/crawler/internal/analysis"
	"github.com/ossminer/crawler/internal/config"
	"github.com/ossminer/crawler/internal/miner"
	"github.com/ossminer/crawler/internal/store"
)

var mineCmd = &cobra.Command{
	Use:   "mine <CONFIG> <PATH>",
	Short: "Mine a single local repository directory",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(args[0])
		root := args[1]

		if err := config.NewEnvLoader().Validate(cfg); err != nil {
			logger.WithError(err).Fatal("missing required configuration")
		}

		st := openStore(cfg)
		defer st.Close()

		iface := textsearch.New()
		ctx := context.Background()

		if err := iface.Init(ctx, analysis.InitInput{DB: st.DB()}); err != nil {
			logger.WithError(err).Fatal("analysis init failed")
		}

		logPath := filepath.Join(cfg.Runner.LogDir, filepath.Base(root)+".log")
		m := miner.New(root, iface, miner.Config{Threads: cfg.Miner.Threads, Tries: cfg.Miner.Tries}, logPath, logger)

		result, err := m.Run(ctx)
		if err != nil {
			logger.WithError(err).Fatal("mine failed")
		}

		fmt.Printf("files=%d success=%d error=%d elapsed=%s\n", result.NFiles, result.NSuccess, result.NError, result.Elapsed)
	},
}

// openStore opens the database connection shared across subcommands.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.Open(store.Config{
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Host:     cfg.Database.Host,
		Database: cfg.Database.Database,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	return st
}
