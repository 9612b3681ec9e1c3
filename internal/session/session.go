// Package session coordinates the recording lifecycle: capture, live
// transcription, finalization, persistence, and summarization.
package session

import (
	"sync"
	"time"
)

type pauseInterval struct {
	start time.Time
	end   time.Time // zero while the pause is open
}

// Session is the identity and timing state of one recording. It is created on
// start, exclusively owned by the controller, and logically ended when the
// lifecycle reaches a terminal state.
type Session struct {
	ID        string
	StartedAt time.Time

	mu     sync.Mutex
	pauses []pauseInterval
	now    func() time.Time
}

func newSession(id string, now func() time.Time) *Session {
	return &Session{ID: id, StartedAt: now(), now: now}
}

// Pause opens a paused interval. Pausing while paused is a no-op. Pause only
// halts the user-facing timer: capture and live transcription continue.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openPause() {
		return
	}
	s.pauses = append(s.pauses, pauseInterval{start: s.now()})
}

// Resume closes the open paused interval, if any.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.openPause() {
		return
	}
	s.pauses[len(s.pauses)-1].end = s.now()
}

// Paused reports whether the timer is currently paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPause()
}

// Elapsed returns wall-clock time since start minus the paused intervals.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	elapsed := now.Sub(s.StartedAt)
	for _, p := range s.pauses {
		end := p.end
		if end.IsZero() {
			end = now
		}
		elapsed -= end.Sub(p.start)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

func (s *Session) openPause() bool {
	return len(s.pauses) > 0 && s.pauses[len(s.pauses)-1].end.IsZero()
}
