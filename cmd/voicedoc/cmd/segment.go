package cmd

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/loqalabs/voicedoc/internal/tts"
)

var (
	segmentFile     string
	segmentMaxChars int
)

var segmentCmd = &cobra.Command{
	Use:   "segment [text...]",
	Short: "Show how text is split before synthesis",
	Long: `Prints the segments that "voicedoc speak" would send to the
speech backend, one per block, with their character counts.

Examples:
  voicedoc segment --file notes.md
  voicedoc segment --max-chars 80 "First sentence. Second sentence."`,
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().StringVarP(&segmentFile, "file", "f", "", "read text from file (- for stdin)")
	segmentCmd.Flags().IntVar(&segmentMaxChars, "max-chars", tts.MaxSegmentChars, "character budget per segment")
}

func runSegment(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, segmentFile, args)
	if err != nil {
		return err
	}
	if segmentMaxChars <= 0 {
		return fmt.Errorf("--max-chars must be positive")
	}
	out := cmd.OutOrStdout()
	for i, seg := range tts.Segment(text, segmentMaxChars) {
		fmt.Fprintf(out, "--- segment %d (%d chars)\n%s\n", i, utf8.RuneCountInString(seg), seg)
	}
	return nil
}
