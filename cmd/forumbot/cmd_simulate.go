package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/forumbot/internal/runtime"
	"github.com/user/forumbot/internal/state/memstore"
	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
)

var (
	simTable    string
	simAuthor   string
	simPostID   string
	simSettings []string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simTable, "table", "comments", "table the simulated row was inserted into")
	simulateCmd.Flags().StringVar(&simAuthor, "author", "sim-user", "author user id")
	simulateCmd.Flags().StringVar(&simPostID, "post", "sim-post", "parent post id")
	simulateCmd.Flags().StringArrayVar(&simSettings, "set", nil, "settings row as key=value (repeatable)")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <message>",
	Short: "Run one trigger against an in-memory forum using the configured provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		if cfg.BotUserID == "" {
			cfg.BotUserID = "forumbot"
		}

		settings := make(map[string]string, len(simSettings))
		for _, kv := range simSettings {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid setting %q, expected key=value", kv)
			}
			settings[strings.TrimSpace(k)] = v
		}

		store := memstore.New()
		store.SetSettings(settings)
		store.AddProfile(simAuthor, simAuthor)
		store.AddPost(types.Post{ID: simPostID, Title: "Simulated post", AuthorID: simAuthor})

		record := trigger.Record{
			"id":      types.NewRowID(),
			"user_id": simAuthor,
			"content": args[0],
		}
		switch simTable {
		case "posts":
			record["id"] = simPostID
			record["title"] = "Simulated post"
		case "comments":
			record["post_id"] = simPostID
		}

		rt := runtime.New(cfg, store, store)
		res, err := rt.Process(context.Background(), &trigger.Event{Type: "INSERT", Table: simTable, Record: record})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "message: %s\n", res.Message)
		if res.Reason != "" {
			fmt.Fprintf(os.Stdout, "reason:  %s\n", res.Reason)
		}
		if res.Action != "" {
			fmt.Fprintf(os.Stdout, "action:  %s\n", res.Action)
		}
		for _, reply := range store.Replies() {
			fmt.Fprintf(os.Stdout, "\n[%s reply to %s]\n%s\n", reply.Table, reply.ParentID, reply.Content)
		}
		for _, p := range store.Posts() {
			if p.ID != simPostID {
				fmt.Fprintf(os.Stdout, "\n[new post %s] %s\n%s\n", p.ID, p.Title, p.Description)
			}
		}
		return nil
	},
}
