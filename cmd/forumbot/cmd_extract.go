package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/forumbot/internal/poll"
)

var (
	extractTitle      string
	extractAggressive bool
)

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "post title, used as the poll question fallback")
	extractCmd.Flags().BoolVar(&extractAggressive, "aggressive", false, "treat short unpunctuated lines as options")
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Detect poll options in text read from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}

		res := poll.Extract(string(data), extractAggressive)
		out := map[string]any{
			"clean_text": res.CleanText,
			"options":    res.Options,
		}
		if extractTitle != "" {
			content, draft := poll.Reconcile(extractTitle, string(data), nil)
			out["post_content"] = content
			if draft != nil {
				out["poll"] = draft
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
