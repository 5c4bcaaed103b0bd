package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/voicedoc/internal/tts"

// Pipeline segments text, synthesizes each segment in order and joins the
// resulting PCM into one buffer. Calls are strictly sequential.
type Pipeline struct {
	synth    Synthesizer
	maxChars int
	format   Format
	logger   *slog.Logger
	tracer   trace.Tracer

	segmentCounter metric.Int64Counter
	byteCounter    metric.Int64Counter
	failureCounter metric.Int64Counter
}

type PipelineOption func(*Pipeline)

// WithMaxChars overrides the per-segment character budget.
func WithMaxChars(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// WithFormat sets the PCM format the synthesizer produces.
func WithFormat(f Format) PipelineOption {
	return func(p *Pipeline) { p.format = f }
}

func NewPipeline(synth Synthesizer, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		synth:    synth,
		maxChars: MaxSegmentChars,
		format:   DefaultFormat,
		logger:   logger.With(slog.String("component", "tts-pipeline")),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.initMetrics()
	return p
}

func (p *Pipeline) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	if p.segmentCounter, err = meter.Int64Counter("voicedoc.tts.segments",
		metric.WithDescription("Segments sent to the speech synthesizer")); err != nil {
		p.logger.Warn("failed to create segment counter", slogError(err))
	}
	if p.byteCounter, err = meter.Int64Counter("voicedoc.tts.bytes",
		metric.WithDescription("PCM bytes produced by the speech synthesizer"),
		metric.WithUnit("By")); err != nil {
		p.logger.Warn("failed to create byte counter", slogError(err))
	}
	if p.failureCounter, err = meter.Int64Counter("voicedoc.tts.failures",
		metric.WithDescription("Synthesis requests that returned no audio")); err != nil {
		p.logger.Warn("failed to create failure counter", slogError(err))
	}
}

// SynthesizeAndCombine runs a default pipeline over text with the given voice.
func SynthesizeAndCombine(ctx context.Context, synth Synthesizer, text string, voice Voice) (Audio, error) {
	return NewPipeline(synth, nil).Synthesize(ctx, SynthRequest{Text: text, Voice: voice})
}

// Synthesize converts req.Text into a single PCM buffer. The first segment
// failure aborts the run; no partial audio is returned.
func (p *Pipeline) Synthesize(ctx context.Context, req SynthRequest) (Audio, error) {
	ctx, span := p.tracer.Start(ctx, "tts.synthesize", trace.WithAttributes(
		attribute.String("tts.session_id", req.SessionID),
		attribute.String("tts.voice", string(req.Voice)),
		attribute.Int("tts.text_chars", utf8.RuneCountInString(req.Text)),
	))
	defer span.End()

	start := time.Now()
	segments := Segment(req.Text, p.maxChars)

	var (
		payloads [][]byte
		total    int
	)
	for i, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Audio{}, p.fail(ctx, span, fmt.Errorf("%w: %w", ErrSynthesis, err))
		}
		pcm, err := p.synthesizeSegment(ctx, req, i, seg)
		if err != nil {
			p.logger.Warn("segment synthesis failed",
				slog.String("session_id", req.SessionID),
				slog.Int("segment", i),
				slogError(err))
			return Audio{}, p.fail(ctx, span, fmt.Errorf("%w: segment %d: %w", ErrSynthesis, i, err))
		}
		payloads = append(payloads, pcm)
		total += len(pcm)
	}

	if total == 0 {
		return Audio{}, p.fail(ctx, span, ErrNoAudio)
	}

	combined := make([]byte, total)
	offset := 0
	for _, pcm := range payloads {
		offset += copy(combined[offset:], pcm)
	}

	audio := Audio{Format: p.format, PCM: combined, Segments: len(payloads)}
	span.SetAttributes(
		attribute.Int("tts.segments", len(payloads)),
		attribute.Int("tts.bytes", total),
	)
	p.logger.Info("speech synthesized",
		slog.String("session_id", req.SessionID),
		slog.Int("segments", len(payloads)),
		slog.Int("bytes", total),
		slog.Duration("audio", audio.Duration()),
		slog.Duration("latency", time.Since(start)))
	return audio, nil
}

func (p *Pipeline) synthesizeSegment(ctx context.Context, req SynthRequest, index int, text string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "tts.segment", trace.WithAttributes(
		attribute.Int("tts.segment.index", index),
		attribute.Int("tts.segment.chars", utf8.RuneCountInString(text)),
	))
	defer span.End()

	pcm, err := p.synth.Synthesize(ctx, SynthRequest{SessionID: req.SessionID, Text: text, Voice: req.Voice})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("tts.segment.bytes", len(pcm)))
	if p.segmentCounter != nil {
		p.segmentCounter.Add(ctx, 1)
	}
	if p.byteCounter != nil {
		p.byteCounter.Add(ctx, int64(len(pcm)))
	}
	return pcm, nil
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "synthesis failed")
	if p.failureCounter != nil {
		p.failureCounter.Add(ctx, 1)
	}
	return err
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
