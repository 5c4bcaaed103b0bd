package cmd

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loqalabs/voicedoc/internal/runtime"
	"github.com/loqalabs/voicedoc/internal/stt"
)

var (
	transcribeLanguage string
	transcribeMimeType string
	transcribeOut      string
	transcribeMode     string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a recording into text",
	Long: `Sends a recording to the configured transcription backend and prints
the text, or writes it to --out.

Examples:
  voicedoc transcribe memo.wav
  voicedoc transcribe memo.mp3 --language de --out memo.md`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().StringVar(&transcribeLanguage, "language", "", "spoken language (default: stt.language)")
	transcribeCmd.Flags().StringVar(&transcribeMimeType, "mime-type", "", "audio MIME type (default: from file extension)")
	transcribeCmd.Flags().StringVarP(&transcribeOut, "out", "o", "", "write the transcript to this file")
	transcribeCmd.Flags().StringVar(&transcribeMode, "mode", "", "override stt.mode (mock|gemini|exec)")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	path := args[0]
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("%s is empty", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transcribeMode != "" {
		cfg.STT.Mode = transcribeMode
	}
	cfg.STT.Enabled = true
	cfg.TTS.Enabled = false

	mimeType := transcribeMimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(audio)
	}
	language := transcribeLanguage
	if language == "" {
		language = cfg.STT.Language
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := runtime.NewGeminiClient(ctx, cfg)
	if err != nil {
		return err
	}
	transcriber, err := stt.NewTranscriber(cfg.STT, client)
	if err != nil {
		return err
	}
	newLogger().Debug("transcribing", "path", path, "mime_type", mimeType, "bytes", len(audio))

	text, err := transcriber.Transcribe(ctx, stt.TranscribeRequest{Audio: audio, MimeType: mimeType, Language: language})
	if err != nil {
		return fmt.Errorf("%w: %w", stt.ErrTranscription, err)
	}
	if transcribeOut == "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}
	if err := os.WriteFile(transcribeOut, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", transcribeOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", transcribeOut)
	return nil
}
