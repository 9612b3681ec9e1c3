// Package app wires configuration, logging, and the session stack behind the
// meetnotes command dispatch.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/aishanisingh/ai-meeting-notes/internal/capture"
	"github.com/aishanisingh/ai-meeting-notes/internal/cli"
	"github.com/aishanisingh/ai-meeting-notes/internal/clipboard"
	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/doctor"
	"github.com/aishanisingh/ai-meeting-notes/internal/finalize"
	"github.com/aishanisingh/ai-meeting-notes/internal/ipc"
	"github.com/aishanisingh/ai-meeting-notes/internal/live"
	"github.com/aishanisingh/ai-meeting-notes/internal/logging"
	"github.com/aishanisingh/ai-meeting-notes/internal/notify"
	"github.com/aishanisingh/ai-meeting-notes/internal/session"
	"github.com/aishanisingh/ai-meeting-notes/internal/store"
	"github.com/aishanisingh/ai-meeting-notes/internal/stt"
	"github.com/aishanisingh/ai-meeting-notes/internal/summary"
	"github.com/aishanisingh/ai-meeting-notes/internal/transcript"
	"github.com/aishanisingh/ai-meeting-notes/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("meetnotes"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("meetnotes"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandList:
		return r.commandList(cfgLoaded.Config)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandPause:
		return r.forwardOrFail(ctx, ipc.CommandPause)
	case cli.CommandResume:
		return r.forwardOrFail(ctx, ipc.CommandResume)
	case cli.CommandRecord:
		return r.commandRecord(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandRecord runs the owner process: it holds the unix socket, serves IPC
// commands, and drives one session lifecycle to a terminal state.
func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a recording is already running; use `meetnotes stop`")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open database: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	speech := stt.NewClient(stt.Options{
		BaseURL:  cfg.STT.BaseURL,
		APIKey:   cfg.STT.APIKey(),
		Model:    cfg.STT.Model,
		Language: cfg.STT.Language,
	})
	supervisor := capture.NewSupervisor(cfg, logger)
	liveEngine := live.NewEngine(cfg.Live, supervisor, speech, logger)
	finalizer := finalize.NewEngine(cfg.Finalize, speech, logger)

	var summarizer summary.Summarizer
	if cfg.Summary.Enable {
		summarizer = summary.New(summary.Options{
			BaseURL: cfg.Summary.BaseURL,
			APIKey:  cfg.STT.APIKey(),
			Model:   cfg.Summary.Model,
		})
	}

	controller := session.NewController(cfg, logger, supervisor, liveEngine, finalizer, db, summarizer)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	alerts := notify.New(cfg.Notify, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()
	go r.printEvents(serverCtx, controller.Events(), alerts)

	result := controller.Run(ctx, r.printLiveUpdate)

	// Terminal notifications happen here rather than in the event loop so they
	// are not lost to server shutdown.
	notifyCtx := context.Background()
	if result.Err != nil {
		alerts.Failed(notifyCtx, result.Err.Error())
	} else {
		alerts.Completed(notifyCtx)
	}

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if strings.TrimSpace(result.Transcript) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(result.Transcript))
		if cfg.Output.CopyTranscript {
			if copyErr := clipboard.Copy(ctx, cfg.Output.ClipboardArgv, result.Transcript); copyErr != nil {
				fmt.Fprintf(r.Stderr, "warning: copy transcript to clipboard: %v\n", copyErr)
				logger.Warn("clipboard copy failed", "error", copyErr.Error())
			}
		}
	}
	return 0
}

// printLiveUpdate renders live engine messages as they arrive. Transcript
// updates carry the full buffer so far, so each one replaces the last.
func (r Runner) printLiveUpdate(update live.Update) {
	switch update.Kind {
	case live.KindListening:
		fmt.Fprintln(r.Stderr, "listening...")
	case live.KindNotConfigured:
		fmt.Fprintln(r.Stderr, "live transcription disabled: no speech credential configured")
	case live.KindTranscript:
		fmt.Fprintf(r.Stderr, "live: %s\n", update.Text)
	}
}

func (r Runner) printEvents(ctx context.Context, events <-chan session.Event, alerts *notify.Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Kind {
			case session.EventStarted:
				alerts.Recording(ctx)
			case session.EventProcessingStarted:
				fmt.Fprintln(r.Stderr, "processing recording...")
				alerts.Processing(ctx)
			case session.EventFailed:
				fmt.Fprintf(r.Stderr, "recording failed: %s\n", ev.Reason)
			}
		}
	}
}

func (r Runner) commandList(cfg config.Config) int {
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open database: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	records, err := db.ListRecords()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Fprintln(r.Stdout, "no meetings recorded yet")
		return 0
	}

	for _, rec := range records {
		title := rec.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s  %s  %s  %s",
			rec.StartedAt.Format("2006-01-02 15:04"),
			transcript.Timestamp(rec.DurationSeconds),
			rec.Status,
			title,
		)
		if rec.Status == store.StatusFailed && rec.FailReason != "" {
			line += "  (" + rec.FailReason + ")"
		}
		fmt.Fprintln(r.Stdout, line+"  id="+rec.ID)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		state := resp.State
		if state == "" {
			state = "idle"
		}
		line := state
		if resp.Elapsed != "" {
			line += "  elapsed=" + resp.Elapsed
		}
		if resp.Paused {
			line += "  (paused)"
		}
		fmt.Fprintln(r.Stdout, line)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active meetnotes recording")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session", result.SessionID,
		"state", result.State,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"transcript_length", len(result.Transcript),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

// tryForward sends one command to the owner socket. handled=false means no
// owner is listening; an unreachable owner is not an error for probes.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
