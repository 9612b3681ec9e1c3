// Package finalize produces the complete timestamped transcript after capture stops.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/media"
	"github.com/aishanisingh/ai-meeting-notes/internal/stt"
	"github.com/aishanisingh/ai-meeting-notes/internal/transcript"
)

// ErrEmptyTranscript signals no usable audio rather than a near-empty success.
var ErrEmptyTranscript = errors.New("no usable audio in recording")

const (
	retryAttempts    = 3
	shortBackoff     = 2 * time.Second
	rateLimitBackoff = 15 * time.Second

	// minSplitSeconds bounds how far an oversized span is bisected before the
	// size rejection is surfaced instead.
	minSplitSeconds = 30
)

// Engine turns one final audio artifact into a timestamped transcript,
// chunking artifacts that exceed the speech service's single-request limit.
type Engine struct {
	cfg    config.FinalizeConfig
	speech stt.Transcriber
	logger *slog.Logger

	// Probe/extract/sleep primitives are injectable for tests.
	duration func(ctx context.Context, path string) (float64, error)
	extract  func(ctx context.Context, src string, dst string, startSec float64, durSec float64) error
	sleep    func(ctx context.Context, d time.Duration)
}

// NewEngine builds a finalization engine over the speech client.
func NewEngine(cfg config.FinalizeConfig, speech stt.Transcriber, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:      cfg,
		speech:   speech,
		logger:   logger,
		duration: media.Duration,
		extract:  media.ExtractRegion,
		sleep:    sleepContext,
	}
}

// Transcribe produces the final transcript for a completed artifact.
func (e *Engine) Transcribe(ctx context.Context, artifactPath string) (string, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return "", fmt.Errorf("stat artifact %q: %w", artifactPath, err)
	}

	var text string
	if info.Size() <= e.cfg.MaxUploadBytes {
		text, err = e.transcribeWhole(ctx, artifactPath)
		if errors.Is(err, stt.ErrTooLarge) {
			// The service's effective limit can undercut the configured one.
			text, err = e.transcribeChunked(ctx, artifactPath)
		}
	} else {
		text, err = e.transcribeChunked(ctx, artifactPath)
	}
	if err != nil {
		return "", err
	}

	if len(strings.TrimSpace(text)) < e.cfg.MinTranscriptChars {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// transcribeWhole submits the artifact as one request.
func (e *Engine) transcribeWhole(ctx context.Context, artifactPath string) (string, error) {
	result, err := e.transcribeWithRetry(ctx, artifactPath)
	if err != nil {
		return "", err
	}
	if len(result.Segments) == 0 {
		// No segment breakdown: flat text without per-line timestamps.
		return strings.TrimSpace(result.Text), nil
	}
	return transcript.Render(segmentLines(result, 0)), nil
}

// transcribeChunked splits the artifact into fixed-duration chunks and
// re-bases each chunk's timestamps by its deterministic start offset. A chunk
// that exhausts its retries is skipped, trading a gap for partial results.
func (e *Engine) transcribeChunked(ctx context.Context, artifactPath string) (string, error) {
	total, err := e.duration(ctx, artifactPath)
	if err != nil {
		return "", fmt.Errorf("probe artifact duration: %w", err)
	}

	chunkCount := int(math.Ceil(total / e.cfg.ChunkSeconds))
	if chunkCount < 1 {
		chunkCount = 1
	}

	var lines []transcript.Line
	for i := 0; i < chunkCount; i++ {
		offset := float64(i) * e.cfg.ChunkSeconds
		spanLines, err := e.transcribeSpan(ctx, artifactPath, offset, e.cfg.ChunkSeconds)
		if err != nil {
			return "", err
		}
		lines = append(lines, spanLines...)
	}

	return transcript.Render(lines), nil
}

// transcribeSpan extracts and submits one span of the artifact. A span the
// service rejects as too large (possible when chunk_seconds is configured
// well above the default) is bisected until it fits or falls below
// minSplitSeconds; a span that exhausts its retries is skipped.
func (e *Engine) transcribeSpan(ctx context.Context, artifactPath string, offset float64, span float64) ([]transcript.Line, error) {
	chunkPath := fmt.Sprintf("%s.chunk-%.0f.wav", artifactPath, offset)

	if err := e.extract(ctx, artifactPath, chunkPath, offset, span); err != nil {
		e.logger.Warn("chunk extract failed; skipping span",
			"offset_seconds", offset, "span_seconds", span, "error", err.Error())
		_ = os.Remove(chunkPath)
		return nil, nil
	}

	result, err := e.transcribeWithRetry(ctx, chunkPath)
	_ = os.Remove(chunkPath)
	if err == nil {
		return segmentLines(result, offset), nil
	}

	if errors.Is(err, stt.ErrTooLarge) {
		half := span / 2
		if half < minSplitSeconds {
			return nil, fmt.Errorf("chunk at %.0fs still exceeds the upload limit at %.0fs; lower finalize.chunk_seconds: %w", offset, span, err)
		}
		e.logger.Warn("chunk exceeds upload limit; splitting span",
			"offset_seconds", offset, "span_seconds", span)
		first, err := e.transcribeSpan(ctx, artifactPath, offset, half)
		if err != nil {
			return nil, err
		}
		second, err := e.transcribeSpan(ctx, artifactPath, offset+half, span-half)
		if err != nil {
			return nil, err
		}
		return append(first, second...), nil
	}

	if !stt.Retryable(err) {
		return nil, err
	}
	e.logger.Warn("chunk transcription exhausted retries; skipping span",
		"offset_seconds", offset, "span_seconds", span, "error", err.Error())
	return nil, nil
}

// transcribeWithRetry applies the bounded retry policy: auth failures surface
// immediately, rate limits back off longer, everything else shorter.
func (e *Engine) transcribeWithRetry(ctx context.Context, path string) (stt.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		result, err := e.speech.Transcribe(ctx, path)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !stt.Retryable(err) || errors.Is(err, stt.ErrTooLarge) {
			return stt.Result{}, err
		}
		if attempt == retryAttempts {
			break
		}

		backoff := shortBackoff * time.Duration(attempt)
		if errors.Is(err, stt.ErrRateLimited) {
			backoff = rateLimitBackoff * time.Duration(attempt)
		}
		e.logger.Warn("transcription attempt failed; backing off",
			"attempt", attempt, "backoff", backoff.String(), "error", err.Error())
		e.sleep(ctx, backoff)
		if ctx.Err() != nil {
			return stt.Result{}, ctx.Err()
		}
	}
	return stt.Result{}, fmt.Errorf("transcription failed after %d attempts: %w", retryAttempts, lastErr)
}

// segmentLines converts service segments into offset-rebased transcript lines.
func segmentLines(result stt.Result, offset float64) []transcript.Line {
	if len(result.Segments) == 0 {
		if strings.TrimSpace(result.Text) == "" {
			return nil
		}
		return []transcript.Line{{Offset: offset, Text: result.Text}}
	}
	lines := make([]transcript.Line, 0, len(result.Segments))
	for _, segment := range result.Segments {
		lines = append(lines, transcript.Line{Offset: offset + segment.Start, Text: segment.Text})
	}
	return lines
}

func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
