package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loqalabs/voicedoc/internal/tts"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the available voices",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, v := range tts.Voices() {
			marker := " "
			if v.Name == tts.DefaultVoice {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-10s %s\n", marker, v.Name, v.Archetype)
		}
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}
