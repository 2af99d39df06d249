package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xblueprint/internal/app"
	"github.com/ibeckermayer/xblueprint/internal/scheduler"
	"github.com/ibeckermayer/xblueprint/internal/store"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run the request-log prune job once against a file-backed store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Path == store.MemoryPath {
			return fmt.Errorf("store is in memory; nothing to prune")
		}
		if minutes, _ := cmd.Flags().GetInt("retain-minutes"); minutes > 0 {
			cfg.Store.RetainMinutes = minutes
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		a, err := app.FromConfig(cfg, app.Options{Store: st, Logger: logger})
		if err != nil {
			return err
		}
		sched, err := scheduler.New("", logger)
		if err != nil {
			return err
		}
		if err := sched.RunNow(app.JobPruneStore, a.PruneStore); err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "pruned rows older than %d minutes from %s\n", cfg.Store.RetainMinutes, cfg.Store.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().Int("retain-minutes", 0, "override [store] retain_minutes")
}
