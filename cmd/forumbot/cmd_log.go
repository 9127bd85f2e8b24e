package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/forumbot/internal/state"
)

var (
	logDay   string
	logLimit int
)

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logTailCmd)
	logTailCmd.Flags().StringVar(&logDay, "day", "", "day to read (YYYY-MM-DD, default today)")
	logTailCmd.Flags().IntVarP(&logLimit, "lines", "n", 20, "number of entries")
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect the local execution log",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent executions recorded in the data dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		day := time.Now().UTC()
		if logDay != "" {
			d, err := time.Parse(time.DateOnly, logDay)
			if err != nil {
				return fmt.Errorf("invalid --day: %w", err)
			}
			day = d
		}

		entries, err := state.NewExecutionFile(cfg.DataDir).Tail(context.Background(), day, logLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stdout, "No executions recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tTRIGGER\tACTION\tTOKENS\tOUTPUT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				e.At.Format(time.TimeOnly), e.Source, e.TriggerID, e.Action, e.ApproxTokenCount, truncate(e.OutputText, 60))
		}
		return w.Flush()
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
