package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/forumbot/internal/personality"
)

var (
	promptPreset    string
	promptTone      int
	promptEmoji     string
	promptExpertise string
	promptVerbosity string
)

func init() {
	rootCmd.AddCommand(promptCmd)
	def := personality.Default()
	promptCmd.Flags().StringVar(&promptPreset, "preset", def.Preset, "personality preset")
	promptCmd.Flags().IntVar(&promptTone, "tone", def.ToneValue, "tone value (0-100)")
	promptCmd.Flags().StringVar(&promptEmoji, "emoji", def.EmojiLevel, "emoji level")
	promptCmd.Flags().StringVar(&promptExpertise, "expertise", def.ExpertiseLevel, "expertise level")
	promptCmd.Flags().StringVar(&promptVerbosity, "verbosity", def.Verbosity, "verbosity")
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the personality prompt for the given settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := personality.FromSettings(map[string]string{
			personality.KeyPreset:    promptPreset,
			personality.KeyTone:      strconv.Itoa(promptTone),
			personality.KeyEmoji:     promptEmoji,
			personality.KeyExpertise: promptExpertise,
			personality.KeyVerbosity: promptVerbosity,
		})
		fmt.Fprintln(os.Stdout, personality.Build(cfg))
		return nil
	},
}
