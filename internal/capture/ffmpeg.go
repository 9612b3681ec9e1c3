package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// FFmpeg records the default input device to a growing WAV file through an
// ffmpeg subprocess. It is the primary capture backend.
type FFmpeg struct {
	device     string
	sampleRate int
	outPath    string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	done    chan struct{}
	exitErr error
}

// NewFFmpeg builds the primary subprocess backend writing to outPath.
func NewFFmpeg(device string, sampleRate int, outPath string) *FFmpeg {
	return &FFmpeg{device: device, sampleRate: sampleRate, outPath: outPath}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

// Start launches the capture subprocess. The artifact grows until stop.
func (f *FFmpeg) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd != nil {
		return errors.New("ffmpeg capture already started")
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "pulse",
		"-i", f.device,
		"-ac", "1",
		"-ar", strconv.Itoa(f.sampleRate),
		"-y", f.outPath,
	)
	// Keep stdin open so RequestGracefulStop can send ffmpeg's 'q' quit key,
	// which flushes and finalizes the WAV header.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("launch ffmpeg: %w", err)
	}

	f.cmd = cmd
	f.stdin = stdin
	f.done = make(chan struct{})

	go func() {
		err := cmd.Wait()
		f.mu.Lock()
		f.exitErr = err
		f.mu.Unlock()
		close(f.done)
	}()

	return nil
}

// RequestGracefulStop sends ffmpeg's quit key so it can finalize the file.
func (f *FFmpeg) RequestGracefulStop() error {
	f.mu.Lock()
	stdin := f.stdin
	f.mu.Unlock()

	if stdin == nil {
		return errors.New("ffmpeg capture not running")
	}
	if _, err := io.WriteString(stdin, "q\n"); err != nil {
		return fmt.Errorf("send quit to ffmpeg: %w", err)
	}
	return nil
}

// Interrupt escalates to SIGINT, which ffmpeg also treats as a clean quit.
func (f *FFmpeg) Interrupt() error {
	f.mu.Lock()
	cmd := f.cmd
	f.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return errors.New("ffmpeg capture not running")
	}
	return cmd.Process.Signal(os.Interrupt)
}

// ForceStop kills the subprocess outright.
func (f *FFmpeg) ForceStop() error {
	f.mu.Lock()
	cmd := f.cmd
	f.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return errors.New("ffmpeg capture not running")
	}
	return cmd.Process.Kill()
}

// Alive reports whether the subprocess is still running.
func (f *FFmpeg) Alive() bool {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Done is closed after process exit.
func (f *FFmpeg) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return f.done
}

// ExitErr returns the recorded process exit error, if any.
func (f *FFmpeg) ExitErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitErr
}
