// Package live implements incremental transcription of a growing recording.
//
// The engine never reads the live artifact directly: each poll cycle asks the
// capture supervisor for a point-in-time snapshot, slices off the audio past
// the cursor, and submits only that region to the speech service.
package live

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/media"
	"github.com/aishanisingh/ai-meeting-notes/internal/stt"
	"github.com/aishanisingh/ai-meeting-notes/internal/transcript"
)

// UpdateKind distinguishes advisory states from transcript content.
type UpdateKind string

const (
	// KindListening is emitted once before any audio has been transcribed.
	KindListening UpdateKind = "listening"
	// KindNotConfigured is emitted once when no speech credential exists.
	KindNotConfigured UpdateKind = "not-configured"
	// KindTranscript carries the full accumulated buffer, not a delta.
	KindTranscript UpdateKind = "transcript"
)

// Update is one live-callback message.
type Update struct {
	Kind UpdateKind
	Text string
}

// OnUpdate receives live updates. Listeners replace, never append, displayed
// text for KindTranscript since Text is the whole buffer so far.
type OnUpdate func(Update)

// Snapshotter is the capture-supervisor subset the engine depends on.
type Snapshotter interface {
	Snapshot(ctx context.Context, sessionID string) (string, error)
	TempPath(sessionID string, kind string) string
	CleanupSession(sessionID string)
}

// Engine polls one session's growing artifact and maintains its live buffer.
type Engine struct {
	cfg    config.LiveConfig
	snaps  Snapshotter
	speech stt.Transcriber
	logger *slog.Logger

	// Probe/extract primitives and the poll schedule are injectable for tests.
	duration    func(ctx context.Context, path string) (float64, error)
	extract     func(ctx context.Context, src string, dst string, startSec float64, durSec float64) error
	earlyProbes []time.Duration
	pollEvery   time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	cursor    float64
	fragments []string
}

// NewEngine builds a live engine over the capture supervisor and speech client.
func NewEngine(cfg config.LiveConfig, snaps Snapshotter, speech stt.Transcriber, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:         cfg,
		snaps:       snaps,
		speech:      speech,
		logger:      logger,
		duration:    media.Duration,
		extract:     media.ExtractRegion,
		earlyProbes: []time.Duration{5 * time.Second, 10 * time.Second},
		pollEvery:   time.Duration(cfg.PollSeconds) * time.Second,
	}
}

// StartLive begins the poll schedule for a session. The first update is an
// advisory placeholder; credentialless sessions get the not-configured state
// and no polling at all.
func (e *Engine) StartLive(ctx context.Context, sessionID string, onUpdate OnUpdate) {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	if !e.speech.Configured() {
		onUpdate(Update{Kind: KindNotConfigured})
		return
	}
	onUpdate(Update{Kind: KindListening})

	pollCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.cursor = 0
	e.fragments = nil
	e.mu.Unlock()

	// One goroutine runs every poll, so cycles for a session never overlap a
	// concurrent snapshot of the same artifact.
	go func() {
		start := time.Now()
		for _, probe := range e.earlyProbes {
			wait := probe - time.Since(start)
			if wait < 0 {
				wait = 0
			}
			select {
			case <-pollCtx.Done():
				return
			case <-time.After(wait):
				e.poll(pollCtx, sessionID, onUpdate)
			}
		}

		ticker := time.NewTicker(e.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				e.poll(pollCtx, sessionID, onUpdate)
			}
		}
	}()
}

// StopLive cancels the poll schedule, resets state, and sweeps temp files.
func (e *Engine) StopLive(sessionID string) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.cursor = 0
	e.fragments = nil
	e.mu.Unlock()

	e.snaps.CleanupSession(sessionID)
}

// Buffer returns the accumulated live transcript, space-joined.
func (e *Engine) Buffer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return transcript.JoinFragments(e.fragments)
}

// Cursor returns the duration boundary already transcribed, in seconds.
func (e *Engine) Cursor() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// poll runs one cycle. Every failure path is logged and swallowed: a missed
// cycle only means slightly stale live text, and the next tick retries.
func (e *Engine) poll(ctx context.Context, sessionID string, onUpdate OnUpdate) {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	snap, err := e.snaps.Snapshot(ctx, sessionID)
	if err != nil || snap == "" {
		return
	}
	defer os.Remove(snap)

	duration, err := e.duration(ctx, snap)
	if err != nil {
		e.logger.Warn("live poll duration probe failed", "session", sessionID, "error", err.Error())
		return
	}

	e.mu.Lock()
	cursor := e.cursor
	e.mu.Unlock()

	if duration-cursor < e.cfg.MinDeltaSeconds {
		return
	}

	chunk := e.snaps.TempPath(sessionID, "delta")
	if err := e.extract(ctx, snap, chunk, cursor, 0); err != nil {
		e.logger.Warn("live poll region extract failed", "session", sessionID, "error", err.Error())
		_ = os.Remove(chunk)
		return
	}
	defer os.Remove(chunk)

	if info, err := os.Stat(chunk); err != nil || info.Size() < e.cfg.MinChunkBytes {
		// Too little data to be speech; not an error.
		return
	}

	result, err := e.speech.Transcribe(ctx, chunk)
	if err != nil {
		e.logger.Warn("live poll transcription failed", "session", sessionID, "error", err.Error())
		return
	}

	e.mu.Lock()
	if result.Text != "" {
		e.fragments = append(e.fragments, result.Text)
	}
	// The cursor only advances after the region was successfully submitted.
	e.cursor = duration
	buffer := transcript.JoinFragments(e.fragments)
	e.mu.Unlock()

	onUpdate(Update{Kind: KindTranscript, Text: buffer})
}
