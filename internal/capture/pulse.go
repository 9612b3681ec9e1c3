package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const pulseFragmentBytes = 640 // 20ms @ 16kHz mono s16

// Pulse records the default input source natively through PulseAudio and
// appends WAV to the same artifact path the subprocess backend would use. It
// is the fallback when ffmpeg fails to launch: an alternate ingress with the
// same downstream contract.
type Pulse struct {
	device     string
	sampleRate int
	outPath    string

	mu      sync.Mutex
	client  *pulse.Client
	stream  *pulse.RecordStream
	wav     *wavWriter
	done    chan struct{}
	stopped bool
}

// NewPulse builds the native fallback backend writing to outPath.
func NewPulse(device string, sampleRate int, outPath string) *Pulse {
	return &Pulse{device: device, sampleRate: sampleRate, outPath: outPath}
}

func (p *Pulse) Name() string { return "pulse" }

// Start opens a mono s16 record stream on the configured source.
func (p *Pulse) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return errors.New("pulse capture already started")
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("meetnotes"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}

	var source *pulse.Source
	if p.device == "" || p.device == "default" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(p.device)
	}
	if err != nil {
		client.Close()
		return fmt.Errorf("resolve source %q: %w", p.device, err)
	}

	wav, err := newWAVWriter(p.outPath, p.sampleRate, 1)
	if err != nil {
		client.Close()
		return err
	}

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(p.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(p.sampleRate),
		pulse.RecordBufferFragmentSize(pulseFragmentBytes),
		pulse.RecordMediaName("meetnotes recording"),
	)
	if err != nil {
		_ = wav.Close()
		client.Close()
		return fmt.Errorf("create pulse record stream: %w", err)
	}

	p.client = client
	p.stream = stream
	p.wav = wav
	p.done = make(chan struct{})
	stream.Start()
	return nil
}

// onPCM appends captured frames to the artifact.
func (p *Pulse) onPCM(buffer []byte) (int, error) {
	p.mu.Lock()
	stopped := p.stopped
	wav := p.wav
	p.mu.Unlock()

	if stopped || wav == nil {
		return 0, io.EOF
	}
	return wav.Write(buffer)
}

// stop halts the stream and finalizes the WAV exactly once.
func (p *Pulse) stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	stream := p.stream
	client := p.client
	wav := p.wav
	done := p.done
	p.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if client != nil {
		client.Close()
	}
	var err error
	if wav != nil {
		err = wav.Close()
	}
	if done != nil {
		close(done)
	}
	return err
}

// The graceful/interrupt/force distinction collapses for an in-process
// backend; all three finalize the stream immediately.
func (p *Pulse) RequestGracefulStop() error { return p.stop() }
func (p *Pulse) Interrupt() error           { return p.stop() }
func (p *Pulse) ForceStop() error           { return p.stop() }

// Alive reports whether the stream is still recording.
func (p *Pulse) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && !p.stopped
}

// Done is closed once the stream has been finalized.
func (p *Pulse) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

// CheckMicAccess verifies the audio server is reachable and exposes an input
// source. Used as the session-start permission gate.
func CheckMicAccess(_ context.Context) error {
	client, err := pulse.NewClient(pulse.ClientApplicationName("meetnotes"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer client.Close()

	if _, err := client.DefaultSource(); err != nil {
		return fmt.Errorf("%w: no default input source: %v", ErrPermissionDenied, err)
	}
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
