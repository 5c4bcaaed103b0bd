package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loqalabs/voicedoc/internal/runtime"
	"github.com/loqalabs/voicedoc/internal/tts"
)

var (
	speakFile  string
	speakVoice string
	speakOut   string
	speakMode  string
)

var speakCmd = &cobra.Command{
	Use:   "speak [text...]",
	Short: "Synthesize text into a WAV file",
	Long: `Synthesizes text with the configured speech backend and writes a
single WAV file. Long text is split into segments that are voiced in order.

Examples:
  voicedoc speak "Meeting notes, March third."
  voicedoc speak --file notes.md --voice calm --out notes.wav
  cat notes.md | voicedoc speak --file - --mode gemini`,
	RunE: runSpeak,
}

func init() {
	rootCmd.AddCommand(speakCmd)

	speakCmd.Flags().StringVarP(&speakFile, "file", "f", "", "read text from file (- for stdin)")
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "voice name or archetype (see: voicedoc voices)")
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "speech.wav", "output WAV path")
	speakCmd.Flags().StringVar(&speakMode, "mode", "", "override tts.mode (mock|gemini|exec)")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, speakFile, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if speakMode != "" {
		cfg.TTS.Mode = speakMode
	}
	cfg.TTS.Enabled = true
	cfg.STT.Enabled = false

	voiceName := speakVoice
	if voiceName == "" {
		voiceName = cfg.TTS.Voice
	}
	voice, err := tts.ParseVoice(voiceName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := runtime.NewGeminiClient(ctx, cfg)
	if err != nil {
		return err
	}
	synth, err := tts.NewSynthesizer(cfg.TTS, client)
	if err != nil {
		return err
	}
	pipeline := tts.NewPipeline(synth, newLogger(),
		tts.WithMaxChars(cfg.TTS.MaxSegmentChars),
		tts.WithFormat(tts.FormatFromConfig(cfg.TTS)))

	audio, err := pipeline.Synthesize(ctx, tts.SynthRequest{SessionID: uuid.NewString(), Text: text, Voice: voice})
	if err != nil {
		return err
	}
	if err := audio.WriteFile(speakOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d segments, %s, voice %s)\n",
		speakOut, audio.Segments, audio.Duration().Round(10*time.Millisecond), voice)
	return nil
}
