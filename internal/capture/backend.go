// Package capture supervises the audio-capture process writing session artifacts.
package capture

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied indicates microphone access is blocked; aborts session start.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrUnavailable indicates no capture backend could launch; the session
	// proceeds in degraded no-audio mode.
	ErrUnavailable = errors.New("audio capture unavailable")
)

// Backend is the narrow capture-device contract the supervisor drives. Any
// capture implementation (subprocess tool, native audio API) satisfies it
// without the orchestrator knowing which is active.
type Backend interface {
	Start(ctx context.Context) error
	RequestGracefulStop() error
	Interrupt() error
	ForceStop() error
	Alive() bool
	// Done is closed once the backend has fully exited.
	Done() <-chan struct{}
	Name() string
}
