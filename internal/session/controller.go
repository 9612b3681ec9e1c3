package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aishanisingh/ai-meeting-notes/internal/capture"
	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/finalize"
	"github.com/aishanisingh/ai-meeting-notes/internal/fsm"
	"github.com/aishanisingh/ai-meeting-notes/internal/ipc"
	"github.com/aishanisingh/ai-meeting-notes/internal/live"
	"github.com/aishanisingh/ai-meeting-notes/internal/store"
	"github.com/aishanisingh/ai-meeting-notes/internal/summary"
	"github.com/aishanisingh/ai-meeting-notes/internal/transcript"
)

// ErrNoAudio reports a session that never produced a usable artifact.
var ErrNoAudio = errors.New("no audio recorded")

const (
	processingSettle = 3 * time.Second
	artifactRetry    = 2 * time.Second
)

type action int

const actionStop action = iota + 1

// Capturer is the controller-facing subset of the capture supervisor.
type Capturer interface {
	Start(ctx context.Context, sessionID string, onEarlyExit func()) error
	Stop(ctx context.Context, sessionID string) (string, error)
	ArtifactPath(sessionID string) string
}

// LiveTranscriber is the controller-facing subset of the live engine.
type LiveTranscriber interface {
	StartLive(ctx context.Context, sessionID string, onUpdate live.OnUpdate)
	StopLive(sessionID string)
}

// Finalizer produces the final transcript from a completed artifact.
type Finalizer interface {
	Transcribe(ctx context.Context, artifactPath string) (string, error)
}

// Recorder is the controller-facing subset of the persistence store.
type Recorder interface {
	CreateRecord(rec store.Record) error
	UpdateRecord(id string, patch store.Patch) error
	AppendLiveFragment(meetingID string, offsetSeconds float64, text string) error
	AppendFinalTranscriptLine(meetingID string, offsetSeconds float64, text string) error
	ClearLiveLines(meetingID string) error
}

// Result is the complete lifecycle output of one Run invocation.
type Result struct {
	SessionID  string
	State      fsm.State
	Transcript string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller orchestrates one recording session from start through a terminal
// state. Lifecycle events are published on an outbound channel so observers
// (UI, logging) stay decoupled from orchestration.
type Controller struct {
	cfg       config.Config
	logger    *slog.Logger
	capture   Capturer
	live      LiveTranscriber
	finalize  Finalizer
	records   Recorder
	summarize summary.Summarizer

	// Permission gate, clock, ids, and wait durations are injectable for tests.
	checkMic     func(ctx context.Context) error
	now          func() time.Time
	newID        func() string
	settle       time.Duration
	artifactWait time.Duration

	mu       sync.RWMutex
	state    fsm.State
	sess     *Session
	liveSeen int

	actions chan action
	events  chan Event
}

// NewController wires the session collaborators together.
func NewController(
	cfg config.Config,
	logger *slog.Logger,
	capturer Capturer,
	liveEngine LiveTranscriber,
	finalizer Finalizer,
	records Recorder,
	summarizer summary.Summarizer,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		cfg:          cfg,
		logger:       logger,
		capture:      capturer,
		live:         liveEngine,
		finalize:     finalizer,
		records:      records,
		summarize:    summarizer,
		checkMic:     capture.CheckMicAccess,
		now:          time.Now,
		newID:        uuid.NewString,
		settle:       processingSettle,
		artifactWait: artifactRetry,
		state:        fsm.StateIdle,
		actions:      make(chan action, 1),
		events:       make(chan Event, 16),
	}
}

// Events returns the outbound lifecycle event channel.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run executes one session lifecycle and always resolves to Completed or
// Failed. Live transcript updates are forwarded to onLive as they arrive.
func (c *Controller) Run(ctx context.Context, onLive live.OnUpdate) Result {
	result := Result{StartedAt: c.now()}

	if err := c.checkMic(ctx); err != nil {
		return c.fail(result, "", "microphone access denied", err)
	}
	if err := c.transition(fsm.EventStart); err != nil {
		result.State = c.State()
		result.Err = err
		result.FinishedAt = c.now()
		return result
	}

	sess := newSession(c.newID(), c.now)
	c.mu.Lock()
	c.sess = sess
	c.liveSeen = 0
	c.mu.Unlock()
	result.SessionID = sess.ID

	if err := c.records.CreateRecord(store.Record{
		ID:        sess.ID,
		StartedAt: sess.StartedAt,
		AudioPath: c.capture.ArtifactPath(sess.ID),
		Status:    store.StatusRecording,
	}); err != nil {
		c.logger.Warn("create meeting record failed", "session", sess.ID, "error", err.Error())
	}
	c.emit(Event{Kind: EventStarted, SessionID: sess.ID})
	c.logger.Info("session started", "session", sess.ID)

	if err := c.capture.Start(ctx, sess.ID, func() { c.requestStop() }); err != nil {
		// Capture unavailable degrades to a no-audio session instead of
		// aborting; processing will report the missing artifact.
		c.logger.Warn("capture unavailable; session continues without audio",
			"session", sess.ID, "error", err.Error())
	}

	c.live.StartLive(ctx, sess.ID, c.liveCallback(sess, onLive))

	select {
	case <-ctx.Done():
	case <-c.actions:
	}

	// The stop path runs on a fresh context: the run context is typically
	// already cancelled when stopping via signal.
	stopCtx := context.Background()

	_ = c.transition(fsm.EventStop)
	c.emit(Event{Kind: EventStopped, SessionID: sess.ID})
	c.logger.Info("session stopping", "session", sess.ID)

	c.live.StopLive(sess.ID)
	artifact, err := c.capture.Stop(stopCtx, sess.ID)
	if err != nil {
		c.logger.Warn("capture stop failed", "session", sess.ID, "error", err.Error())
	}

	// Tolerate client-side buffered audio still flushing to disk.
	sleep(stopCtx, c.settle)

	_ = c.transition(fsm.EventProcess)
	c.emit(Event{Kind: EventProcessingStarted, SessionID: sess.ID})
	c.updateStatus(sess.ID, store.StatusProcessing)

	if artifact == "" {
		artifact = c.findArtifact(stopCtx, sess.ID)
	}
	if artifact == "" {
		return c.fail(result, sess.ID, "no audio recorded", ErrNoAudio)
	}

	text, err := c.finalize.Transcribe(stopCtx, artifact)
	if err != nil {
		reason := "transcription failed"
		if errors.Is(err, finalize.ErrEmptyTranscript) {
			reason = "no usable audio in recording"
		}
		return c.fail(result, sess.ID, reason, err)
	}

	c.persistTranscript(sess, text, artifact)
	c.runSummarization(stopCtx, sess.ID, text)

	_ = c.transition(fsm.EventComplete)
	c.emit(Event{Kind: EventCompleted, SessionID: sess.ID})
	c.logger.Info("session completed", "session", sess.ID, "transcript_chars", len(text))

	result.State = c.State()
	result.Transcript = text
	result.FinishedAt = c.now()
	return result
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.statusResponse()
	case ipc.CommandStop:
		return c.requestStopResponse()
	case ipc.CommandPause:
		return c.pauseResponse(true)
	case ipc.CommandResume:
		return c.pauseResponse(false)
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) statusResponse() ipc.Response {
	c.mu.RLock()
	state := c.state
	sess := c.sess
	c.mu.RUnlock()

	resp := ipc.Response{OK: true, State: string(state)}
	if sess != nil {
		resp.SessionID = sess.ID
		resp.Elapsed = transcript.Timestamp(sess.Elapsed().Seconds())
		resp.Paused = sess.Paused()
	}
	return resp
}

func (c *Controller) requestStopResponse() ipc.Response {
	state := c.State()
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}
	if c.requestStop() {
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	}
	return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
}

func (c *Controller) pauseResponse(pause bool) ipc.Response {
	c.mu.RLock()
	state := c.state
	sess := c.sess
	c.mu.RUnlock()

	verb := "pause"
	if !pause {
		verb = "resume"
	}
	if state != fsm.StateRecording || sess == nil {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", verb, state)}
	}

	if pause {
		sess.Pause()
	} else {
		sess.Resume()
	}
	return ipc.Response{
		OK:      true,
		State:   string(state),
		Paused:  sess.Paused(),
		Elapsed: transcript.Timestamp(sess.Elapsed().Seconds()),
		Message: verb + "d",
	}
}

// requestStop enqueues the stop action; duplicate requests collapse into one.
func (c *Controller) requestStop() bool {
	select {
	case c.actions <- actionStop:
		return true
	default:
		return false
	}
}

// liveCallback forwards live updates to the observer and persists each new
// transcript fragment with the elapsed offset at which it was confirmed.
func (c *Controller) liveCallback(sess *Session, onLive live.OnUpdate) live.OnUpdate {
	return func(update live.Update) {
		if update.Kind == live.KindTranscript {
			c.mu.Lock()
			seen := c.liveSeen
			if len(update.Text) > seen {
				c.liveSeen = len(update.Text)
			}
			c.mu.Unlock()

			if fragment := strings.TrimSpace(update.Text[min(seen, len(update.Text)):]); fragment != "" {
				offset := sess.Elapsed().Seconds()
				if err := c.records.AppendLiveFragment(sess.ID, offset, transcript.Normalize(fragment)); err != nil {
					c.logger.Warn("persist live fragment failed", "session", sess.ID, "error", err.Error())
				}
			}
		}
		if onLive != nil {
			onLive(update)
		}
	}
}

// findArtifact re-checks the artifact path once after a wait, tolerating a
// race with a slower capture backend still flushing its file.
func (c *Controller) findArtifact(ctx context.Context, sessionID string) string {
	path := c.capture.ArtifactPath(sessionID)
	if artifactUsable(path, c.cfg.Live.MinArtifactBytes) {
		return path
	}
	sleep(ctx, c.artifactWait)
	if artifactUsable(path, c.cfg.Live.MinArtifactBytes) {
		return path
	}
	return ""
}

func (c *Controller) persistTranscript(sess *Session, text string, artifact string) {
	if err := c.records.ClearLiveLines(sess.ID); err != nil {
		c.logger.Warn("clear live lines failed", "session", sess.ID, "error", err.Error())
	}
	for _, rendered := range strings.Split(text, "\n") {
		line, ok := transcript.ParseLine(rendered)
		if !ok {
			if strings.TrimSpace(rendered) == "" {
				continue
			}
			line = transcript.Line{Text: strings.TrimSpace(rendered)}
		}
		if err := c.records.AppendFinalTranscriptLine(sess.ID, line.Offset, line.Text); err != nil {
			c.logger.Warn("persist final line failed", "session", sess.ID, "error", err.Error())
			break
		}
	}

	status := store.StatusCompleted
	ended := c.now()
	duration := sess.Elapsed().Seconds()
	if err := c.records.UpdateRecord(sess.ID, store.Patch{
		Status:          &status,
		EndedAt:         &ended,
		DurationSeconds: &duration,
		AudioPath:       &artifact,
		Transcript:      &text,
	}); err != nil {
		c.logger.Warn("update meeting record failed", "session", sess.ID, "error", err.Error())
	}
}

// runSummarization is best effort: a failure here never blocks completion.
func (c *Controller) runSummarization(ctx context.Context, sessionID string, text string) {
	if c.summarize == nil || !c.summarize.Configured() {
		return
	}
	result, err := c.summarize.Summarize(ctx, text)
	if err != nil {
		c.logger.Warn("summarization failed; completing with transcript only",
			"session", sessionID, "error", err.Error())
		return
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("encode summary failed", "session", sessionID, "error", err.Error())
		return
	}
	summaryJSON := string(encoded)
	if err := c.records.UpdateRecord(sessionID, store.Patch{SummaryJSON: &summaryJSON}); err != nil {
		c.logger.Warn("persist summary failed", "session", sessionID, "error", err.Error())
	}
}

// fail records the terminal Failed state and notifies listeners.
func (c *Controller) fail(result Result, sessionID string, reason string, err error) Result {
	_ = c.transition(fsm.EventFail)
	if sessionID != "" {
		status := store.StatusFailed
		ended := c.now()
		if updateErr := c.records.UpdateRecord(sessionID, store.Patch{
			Status:     &status,
			EndedAt:    &ended,
			FailReason: &reason,
		}); updateErr != nil {
			c.logger.Warn("record failure status failed", "session", sessionID, "error", updateErr.Error())
		}
	}
	c.emit(Event{Kind: EventFailed, SessionID: sessionID, Reason: reason})
	c.logger.Error("session failed", "session", sessionID, "reason", reason, "error", err.Error())

	result.State = c.State()
	result.Err = err
	result.FinishedAt = c.now()
	return result
}

func (c *Controller) updateStatus(sessionID string, status string) {
	if err := c.records.UpdateRecord(sessionID, store.Patch{Status: &status}); err != nil {
		c.logger.Warn("update meeting status failed", "session", sessionID, "error", err.Error())
	}
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// emit never blocks: a full channel drops the event rather than stalling the
// lifecycle.
func (c *Controller) emit(event Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("lifecycle event dropped", "kind", string(event.Kind))
	}
}

func artifactUsable(path string, minBytes int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() >= minBytes
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
