package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xblueprint/internal/app"
	"github.com/ibeckermayer/xblueprint/internal/digest"
	"github.com/ibeckermayer/xblueprint/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <handle>",
	Short: "Run the full pipeline for a handle",
	Long: `Fetch posts for a handle, generate a blueprint and print it.

Examples:
  bpctl analyze levelsio                 # Markdown to stdout
  bpctl analyze @tibo_maker --format json
  bpctl analyze levelsio --open          # Render HTML and open it`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("format", "f", "markdown", "output format: markdown, json or html")
	analyzeCmd.Flags().Bool("open", false, "write the HTML rendering to a file and open it")
	analyzeCmd.Flags().String("out-dir", filepath.Join(os.TempDir(), "xblueprint"), "directory for --open output")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	open, _ := cmd.Flags().GetBool("open")
	outDir, _ := cmd.Flags().GetString("out-dir")

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	resp, err := a.Analyze(cmd.Context(), "cli", args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	builder, err := digest.New()
	if err != nil {
		return err
	}
	d, err := builder.Build(resp)
	if err != nil {
		return err
	}

	if open {
		path, err := d.WriteHTML(outDir, resp.Profile.Handle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Blueprint saved to: %s\n", path)
		return browser.OpenFile(path)
	}

	switch format {
	case "html":
		_, err = fmt.Fprint(out, d.HTMLBody)
	case "markdown", "md":
		_, err = fmt.Fprint(out, d.Markdown)
	default:
		err = fmt.Errorf("unknown format: %s", format)
	}
	return err
}
