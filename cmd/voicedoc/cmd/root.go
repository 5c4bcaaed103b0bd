package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/runtime"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "voicedoc",
	Short: "Dictate documents and listen to them",
	Long: `voicedoc turns recordings into text and text back into speech.

Commands run the configured backends locally; the voicedocd daemon
exposes the same operations over HTTP and NATS.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus VOICEDOC_* env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend activity to stderr")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return runtime.NewLogger("debug", os.Stderr)
}

// readText returns args joined by spaces, or the contents of path when set.
// A path of "-" reads stdin.
func readText(cmd *cobra.Command, path string, args []string) (string, error) {
	switch path {
	case "":
		if len(args) == 0 {
			return "", fmt.Errorf("no text given; pass it as arguments or with --file")
		}
		return strings.Join(args, " "), nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}
}
