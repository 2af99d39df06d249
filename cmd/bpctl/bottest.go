package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	browseropts "github.com/ibeckermayer/xblueprint/internal/browser"
)

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open bot.sannysoft.com to audit the browser source's fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := browseropts.Options(false, "") // non-headless so you can see it

		allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
		defer cancel()

		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		err := chromedp.Run(ctx,
			chromedp.Navigate("https://bot.sannysoft.com"),
			chromedp.WaitVisible("body", chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("failed to navigate: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botTestCmd)
}
