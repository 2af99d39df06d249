package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xblueprint/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent requests and model exchanges from a file-backed store",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		exchanges, _ := cmd.Flags().GetBool("exchanges")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Path == store.MemoryPath {
			return fmt.Errorf("store is in memory; set [store] path to a file to keep history")
		}

		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		if exchanges {
			rows, err := st.RecentExchanges(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "TIME\tREQUEST\tPROVIDER\tCOMBO\tDURATION\tERROR")
			for _, e := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%s\t%s\n",
					e.CreatedAt.Format(time.DateTime), e.RequestID, e.Provider, e.Version, e.Model,
					e.Duration.Round(time.Millisecond), e.Error)
			}
			return nil
		}

		rows, err := st.RecentRequests(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TIME\tHANDLE\tOUTCOME\tSOURCE\tITEMS\tDURATION")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t@%s\t%s\t%s\t%d\t%s\n",
				r.CreatedAt.Format(time.DateTime), r.Handle, r.Outcome, r.Source, r.ItemCount,
				r.Duration.Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "number of rows")
	historyCmd.Flags().Bool("exchanges", false, "list model exchanges instead of requests")
}
