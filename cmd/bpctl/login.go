package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/scraper"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to X in a browser and save the session for browser sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		cf, path, err := cookieFile()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Opening browser for X login...")
		if err := scraper.CaptureSession(cmd.Context(), cf, timeout); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session saved to: %s\n", path)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the saved X session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, _, err := cookieFile()
		if err != nil {
			return err
		}
		return cf.Clear()
	},
}

// cookieFile returns the configured cookie path, or cookies.json next to the config
func cookieFile() (*scraper.CookieFile, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	path := cfg.Scraping.CookiesPath
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, "", err
		}
		path = filepath.Join(dir, "cookies.json")
	}
	return scraper.NewCookieFile(path), path, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for the login to finish")
}
