package main

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xblueprint/internal/config"
)

var openCmd = &cobra.Command{
	Use:       "open <config>",
	Short:     "Open the config file in the default editor",
	ValidArgs: []string{"config"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.ConfigPath(); err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}
		}
		return browser.OpenFile(path)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Default().Save(); err != nil {
			return err
		}
		path, _ := config.ConfigPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Created default config at: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(initCmd)
}
