// Package notify surfaces session state changes as desktop notifications and
// short audio cues.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
)

const (
	recordingText  = "Recording meeting…"
	processingText = "Transcribing recording…"
	failedText     = "Recording failed"

	// Pinned notifications stay up until replaced or dismissed.
	pinnedTimeoutMS = 300000
	failedTimeoutMS = 4000

	dispatchTimeout = 400 * time.Millisecond
)

// Notifier pushes state-change notifications through the configured backend
// and plays audio cues. Every method is fire-and-forget: failures are logged
// at debug level and never interrupt the session.
type Notifier struct {
	cfg    config.NotifyConfig
	logger *slog.Logger

	mu             sync.Mutex
	notificationID uint32

	soundMu sync.Mutex
}

// New creates a notifier from config.
func New(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

// Recording signals that capture has begun.
func (n *Notifier) Recording(ctx context.Context) {
	n.playCue(cueStart)
	n.show(ctx, 1, pinnedTimeoutMS, "rgb(89b4fa)", recordingText)
}

// Processing signals that capture has ended and finalization is underway.
func (n *Notifier) Processing(ctx context.Context) {
	n.playCue(cueStop)
	n.show(ctx, 1, pinnedTimeoutMS, "rgb(cba6f7)", processingText)
}

// Completed dismisses the pinned notification and plays the completion cue.
func (n *Notifier) Completed(ctx context.Context) {
	n.playCue(cueComplete)
	n.hide(ctx)
}

// Failed surfaces the failure reason and plays the error cue.
func (n *Notifier) Failed(ctx context.Context, reason string) {
	n.playCue(cueError)
	text := failedText
	if strings.TrimSpace(reason) != "" {
		text = failedText + ": " + strings.TrimSpace(reason)
	}
	n.show(ctx, 3, failedTimeoutMS, "rgb(f38ba8)", text)
}

func (n *Notifier) show(ctx context.Context, icon int, timeoutMS int, color string, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		if n.cfg.Backend == "hyprland" {
			return hyprNotify(ctx, icon, timeoutMS, color, text)
		}
		return n.notifyDesktop(ctx, timeoutMS, text)
	})
}

func (n *Notifier) hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		if n.cfg.Backend == "hyprland" {
			return hyprDismiss(ctx)
		}
		return n.dismissDesktop(ctx)
	})
}

// notifyDesktop sends a replaceable desktop notification and remembers its ID
// so later states update the same bubble instead of stacking new ones.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	id, err := desktopNotify(ctx, "meetnotes", replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes one notification dispatch with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("notification dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.Sound {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			n.log("audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
