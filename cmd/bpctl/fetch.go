package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xblueprint/internal/app"
	"github.com/ibeckermayer/xblueprint/internal/scraper"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <handle>",
	Short: "Walk the configured sources for a handle and print the posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := app.NormalizeHandle(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		fetcher, err := scraper.FromConfig(cfg.Scraping, logger, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		outcome := fetcher.Fetch(cmd.Context(), handle)
		for _, f := range outcome.Failures {
			fmt.Fprintf(out, "skipped %s: %v\n", f.Name, f.Err)
		}
		if !outcome.Success {
			return fmt.Errorf("no source returned enough posts for @%s", handle)
		}

		fmt.Fprintf(out, "\n%s (@%s) via %s\n", outcome.Profile.DisplayName, outcome.Profile.Handle, outcome.Source)
		for i, item := range outcome.Items {
			fmt.Fprintf(out, "%2d. %s\n", i+1, item.Text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
