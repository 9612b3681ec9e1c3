package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/media"
)

const (
	snapshotTimeout = 5 * time.Second
	stopHardTimeout = 5 * time.Second
	stopGraceDelay  = 1200 * time.Millisecond
	settleDelay     = 400 * time.Millisecond
)

// Supervisor owns at most one capture backend per active session and mediates
// all reads of the growing artifact through point-in-time copies.
type Supervisor struct {
	cfg    config.Config
	logger *slog.Logger

	// Backend constructors, the copy primitive, and stop timings are
	// injectable for tests.
	newPrimary  func(outPath string) Backend
	newFallback func(outPath string) Backend
	copyFile    func(ctx context.Context, src string, dst string) error
	graceDelay  time.Duration
	hardTimeout time.Duration
	settle      time.Duration

	mu        sync.Mutex
	backend   Backend
	sessionID string
	stopping  bool
}

// NewSupervisor builds a supervisor using ffmpeg primary and pulse fallback.
func NewSupervisor(cfg config.Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Supervisor{
		cfg:    cfg,
		logger: logger,
		newPrimary: func(outPath string) Backend {
			return NewFFmpeg(cfg.Capture.Device, cfg.Capture.SampleRate, outPath)
		},
		newFallback: func(outPath string) Backend {
			return NewPulse(cfg.Capture.Device, cfg.Capture.SampleRate, outPath)
		},
		copyFile:    media.StreamCopy,
		graceDelay:  stopGraceDelay,
		hardTimeout: stopHardTimeout,
		settle:      settleDelay,
	}
}

// ArtifactPath returns the deterministic recording location for a session.
func (s *Supervisor) ArtifactPath(sessionID string) string {
	return filepath.Join(s.cfg.Capture.RecordingsDir, sessionID+".wav")
}

// TempPath returns a unique scratch path tagged with the session id so
// CleanupSession can sweep leftovers.
func (s *Supervisor) TempPath(sessionID string, kind string) string {
	return filepath.Join(s.cfg.Capture.RecordingsDir, fmt.Sprintf("tmp-%s-%s-%d.wav", sessionID, kind, time.Now().UnixNano()))
}

// Start launches capture for one session. A primary launch failure falls back
// to the native backend; only when both fail is capture reported unavailable.
// onEarlyExit fires if the backend dies without a stop request.
func (s *Supervisor) Start(ctx context.Context, sessionID string, onEarlyExit func()) error {
	s.mu.Lock()
	if s.backend != nil && s.backend.Alive() {
		s.mu.Unlock()
		return fmt.Errorf("capture already active for session %s", s.sessionID)
	}
	s.mu.Unlock()

	if err := os.MkdirAll(s.cfg.Capture.RecordingsDir, 0o700); err != nil {
		return fmt.Errorf("create recordings dir: %w", err)
	}
	s.sweepTemp("")

	artifact := s.ArtifactPath(sessionID)
	backend := s.newPrimary(artifact)
	if err := backend.Start(ctx); err != nil {
		s.logger.Warn("primary capture failed to launch; trying fallback",
			"backend", backend.Name(), "error", err.Error())
		fallback := s.newFallback(artifact)
		if fbErr := fallback.Start(ctx); fbErr != nil {
			s.logger.Error("all capture backends failed",
				"primary_error", err.Error(), "fallback_error", fbErr.Error())
			return fmt.Errorf("%w: primary: %v; fallback: %v", ErrUnavailable, err, fbErr)
		}
		backend = fallback
	}

	s.mu.Lock()
	s.backend = backend
	s.sessionID = sessionID
	s.stopping = false
	s.mu.Unlock()

	s.logger.Info("capture started", "session", sessionID, "backend", backend.Name(), "artifact", artifact)

	go func() {
		<-backend.Done()
		s.mu.Lock()
		requested := s.stopping
		s.mu.Unlock()
		if !requested {
			s.logger.Warn("capture process exited early", "session", sessionID, "backend", backend.Name())
			if onEarlyExit != nil {
				onEarlyExit()
			}
		}
	}()

	return nil
}

// Alive reports whether a capture backend is currently recording.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend != nil && s.backend.Alive()
}

// Snapshot produces a read-consistent copy of the in-progress artifact, or ""
// when the artifact is too new to be meaningful or the copy does not complete
// within its bound. Never returns an error for a not-ready artifact: the next
// poll cycle simply retries.
func (s *Supervisor) Snapshot(ctx context.Context, sessionID string) (string, error) {
	artifact := s.ArtifactPath(sessionID)
	info, err := os.Stat(artifact)
	if err != nil || info.Size() < s.cfg.Live.MinArtifactBytes {
		return "", nil
	}

	copyCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	dst := s.TempPath(sessionID, "snap")
	if err := s.copyFile(copyCtx, artifact, dst); err != nil {
		_ = os.Remove(dst)
		s.logger.Warn("snapshot copy failed", "session", sessionID, "error", err.Error())
		return "", nil
	}
	if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
		_ = os.Remove(dst)
		return "", nil
	}
	return dst, nil
}

// Stop requests graceful termination, escalating through interrupt to kill
// under a hard deadline, then waits a settle delay for the filesystem. It
// returns the final artifact path, or "" when nothing usable exists on disk.
func (s *Supervisor) Stop(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	backend := s.backend
	s.stopping = true
	s.backend = nil
	s.mu.Unlock()

	deadline := time.Now().Add(s.hardTimeout)

	if backend != nil && backend.Alive() {
		if err := backend.RequestGracefulStop(); err != nil {
			s.logger.Warn("graceful stop request failed", "error", err.Error())
		}
		if !waitDone(ctx, backend, s.graceDelay) {
			_ = backend.Interrupt()
			remaining := time.Until(deadline) - s.settle
			if remaining < 0 {
				remaining = 0
			}
			if !waitDone(ctx, backend, remaining) {
				s.logger.Warn("capture unresponsive; forcing stop", "session", sessionID, "backend", backend.Name())
				_ = backend.ForceStop()
				waitDone(ctx, backend, time.Until(deadline))
			}
		}
	}

	// Let any buffered audio reach disk before sizing the artifact.
	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
	}

	artifact := s.ArtifactPath(sessionID)
	info, err := os.Stat(artifact)
	if err != nil || info.Size() < s.cfg.Live.MinArtifactBytes {
		s.logger.Warn("no usable artifact after stop", "session", sessionID, "artifact", artifact)
		return "", nil
	}
	s.logger.Info("capture stopped", "session", sessionID, "artifact", artifact, "bytes", info.Size())
	return artifact, nil
}

// CleanupSession removes scratch files left behind for one session.
func (s *Supervisor) CleanupSession(sessionID string) {
	s.sweepTemp(sessionID)
}

// sweepTemp deletes scratch files, optionally scoped to one session id. This
// covers both snapshot temp files and finalization chunk files, so a crash
// mid-finalize never leaves chunks behind past the next start.
func (s *Supervisor) sweepTemp(sessionID string) {
	patterns := []string{"tmp-*", "*.wav.chunk-*"}
	if sessionID != "" {
		patterns = []string{"tmp-" + sessionID + "-*", sessionID + ".wav.chunk-*"}
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.cfg.Capture.RecordingsDir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			_ = os.Remove(path)
		}
	}
}

// waitDone blocks until backend exit, timeout, or context cancellation.
func waitDone(ctx context.Context, backend Backend, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-backend.Done():
			return true
		default:
			return false
		}
	}
	select {
	case <-backend.Done():
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}
