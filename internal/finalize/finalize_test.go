package finalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/stt"
)

// fakeSpeech returns scripted results or errors per call, in order.
type fakeSpeech struct {
	mu      sync.Mutex
	results []stt.Result
	errs    []error
	calls   int
	paths   []string
}

func (f *fakeSpeech) Configured() bool { return true }

func (f *fakeSpeech) Transcribe(_ context.Context, path string) (stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.paths = append(f.paths, path)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return stt.Result{}, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return stt.Result{}, nil
}

type extractCall struct {
	start float64
	dur   float64
}

func newTestEngine(t *testing.T, speech *fakeSpeech, totalSeconds float64) (*Engine, *[]extractCall, *[]time.Duration) {
	t.Helper()
	engine := NewEngine(config.Default().Finalize, speech, nil)

	extracts := &[]extractCall{}
	sleeps := &[]time.Duration{}

	engine.duration = func(context.Context, string) (float64, error) {
		return totalSeconds, nil
	}
	engine.extract = func(_ context.Context, _ string, dst string, startSec float64, durSec float64) error {
		*extracts = append(*extracts, extractCall{start: startSec, dur: durSec})
		return os.WriteFile(dst, []byte("chunk audio"), 0o600)
	}
	engine.sleep = func(_ context.Context, d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	return engine, extracts, sleeps
}

func writeArtifact(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestTranscribeDirectRendersTimestampedLines(t *testing.T) {
	speech := &fakeSpeech{results: []stt.Result{{
		Text: "hello there everyone welcome",
		Segments: []stt.Segment{
			{Start: 0, End: 3.2, Text: "hello there"},
			{Start: 3.2, End: 7.5, Text: "everyone welcome"},
			{Start: 65, End: 70, Text: "first agenda item"},
		},
	}}}
	engine, _, _ := newTestEngine(t, speech, 0)

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t, "[00:00] hello there\n[00:03] everyone welcome\n[01:05] first agenda item", text)
	require.Equal(t, 1, speech.calls)
}

func TestTranscribeDirectFallsBackToFlatText(t *testing.T) {
	speech := &fakeSpeech{results: []stt.Result{{Text: "a transcript with no segment breakdown"}}}
	engine, _, _ := newTestEngine(t, speech, 0)

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t, "a transcript with no segment breakdown", text)
}

func TestTranscribeRejectsNearEmptyResult(t *testing.T) {
	speech := &fakeSpeech{results: []stt.Result{{Text: "  uh.  "}}}
	engine, _, _ := newTestEngine(t, speech, 0)

	_, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTranscribeDoesNotRetryAuthFailure(t *testing.T) {
	speech := &fakeSpeech{errs: []error{stt.ErrAuth}}
	engine, _, sleeps := newTestEngine(t, speech, 0)

	_, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.ErrorIs(t, err, stt.ErrAuth)
	require.Equal(t, 1, speech.calls)
	require.Empty(t, *sleeps)
}

func TestTranscribeRetriesTransientFailures(t *testing.T) {
	speech := &fakeSpeech{
		errs:    []error{errors.New("503 upstream"), stt.ErrRateLimited, nil},
		results: []stt.Result{{}, {}, {Text: "finally a full transcript"}},
	}
	engine, _, sleeps := newTestEngine(t, speech, 0)

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t, "finally a full transcript", text)
	require.Equal(t, 3, speech.calls)

	// Rate limits back off longer than plain transient failures.
	require.Len(t, *sleeps, 2)
	require.Equal(t, shortBackoff, (*sleeps)[0])
	require.Equal(t, 2*rateLimitBackoff, (*sleeps)[1])
}

func TestTranscribeSurfacesErrorAfterExhaustedRetries(t *testing.T) {
	boom := errors.New("upstream down")
	speech := &fakeSpeech{errs: []error{boom, boom, boom}}
	engine, _, sleeps := newTestEngine(t, speech, 0)

	_, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.ErrorIs(t, err, boom)
	require.Equal(t, retryAttempts, speech.calls)
	require.Len(t, *sleeps, retryAttempts-1)
}

func TestTranscribeChunksLongRecording(t *testing.T) {
	// Forty minutes splits into four ten-minute chunks with rebased offsets.
	speech := &fakeSpeech{results: []stt.Result{
		{Segments: []stt.Segment{{Start: 2, End: 6, Text: "kickoff remarks"}}},
		{Segments: []stt.Segment{{Start: 30, End: 35, Text: "budget discussion"}}},
		{Segments: []stt.Segment{{Start: 0, End: 4, Text: "timeline review"}}},
		{Segments: []stt.Segment{{Start: 90, End: 95, Text: "closing actions"}}},
	}}
	engine, extracts, _ := newTestEngine(t, speech, 2400)
	engine.cfg.MaxUploadBytes = 50

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t,
		"[00:02] kickoff remarks\n[10:30] budget discussion\n[20:00] timeline review\n[31:30] closing actions",
		text)

	require.Len(t, *extracts, 4)
	for i, call := range *extracts {
		require.Equal(t, float64(i)*600, call.start)
		require.Equal(t, float64(600), call.dur)
	}
}

func TestTranscribeChunkedSkipsExhaustedChunk(t *testing.T) {
	boom := errors.New("timeout")
	speech := &fakeSpeech{
		errs: []error{nil, boom, boom, boom, nil},
		results: []stt.Result{
			{Segments: []stt.Segment{{Start: 1, End: 4, Text: "opening"}}},
			{}, {}, {},
			{Segments: []stt.Segment{{Start: 5, End: 9, Text: "wrap up"}}},
		},
	}
	engine, _, _ := newTestEngine(t, speech, 1300)
	engine.cfg.MaxUploadBytes = 50

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t, "[00:01] opening\n[20:05] wrap up", text)
	require.Equal(t, 5, speech.calls)
}

func TestTranscribeChunkedBisectsOversizedChunk(t *testing.T) {
	// Second chunk is rejected for size, so its span is split in half and each
	// half keeps its own rebased offset.
	speech := &fakeSpeech{
		errs: []error{nil, stt.ErrTooLarge, nil, nil},
		results: []stt.Result{
			{Segments: []stt.Segment{{Start: 1, End: 4, Text: "opening"}}},
			{},
			{Segments: []stt.Segment{{Start: 5, End: 9, Text: "first half"}}},
			{Segments: []stt.Segment{{Start: 10, End: 14, Text: "second half"}}},
		},
	}
	engine, extracts, _ := newTestEngine(t, speech, 1200)
	engine.cfg.MaxUploadBytes = 50

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t, "[00:01] opening\n[10:05] first half\n[15:10] second half", text)

	require.Equal(t, []extractCall{
		{start: 0, dur: 600},
		{start: 600, dur: 600},
		{start: 600, dur: 300},
		{start: 900, dur: 300},
	}, *extracts)
}

func TestTranscribeChunkedSurfacesUnsplittableOversizedChunk(t *testing.T) {
	speech := &fakeSpeech{errs: []error{stt.ErrTooLarge}}
	engine, _, _ := newTestEngine(t, speech, 40)
	engine.cfg.MaxUploadBytes = 50
	engine.cfg.ChunkSeconds = 40

	_, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.ErrorIs(t, err, stt.ErrTooLarge)
	require.Contains(t, err.Error(), "finalize.chunk_seconds")
	require.Equal(t, 1, speech.calls)
}

func TestTranscribeChunkedStopsOnAuthFailure(t *testing.T) {
	speech := &fakeSpeech{errs: []error{stt.ErrAuth}}
	engine, _, _ := newTestEngine(t, speech, 1300)
	engine.cfg.MaxUploadBytes = 50

	_, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.ErrorIs(t, err, stt.ErrAuth)
	require.Equal(t, 1, speech.calls)
}

func TestTranscribeFallsToChunkedOnServiceSizeRejection(t *testing.T) {
	speech := &fakeSpeech{
		errs: []error{stt.ErrTooLarge, nil},
		results: []stt.Result{
			{},
			{Segments: []stt.Segment{{Start: 0, End: 5, Text: "recovered via chunking"}}},
		},
	}
	engine, extracts, _ := newTestEngine(t, speech, 400)

	text, err := engine.Transcribe(context.Background(), writeArtifact(t, 100))
	require.NoError(t, err)
	require.Equal(t, "[00:00] recovered via chunking", text)
	require.Len(t, *extracts, 1)
}

func TestTranscribeChunkedDeletesChunkFiles(t *testing.T) {
	speech := &fakeSpeech{results: []stt.Result{
		{Segments: []stt.Segment{{Start: 0, End: 5, Text: "some words here"}}},
		{Segments: []stt.Segment{{Start: 0, End: 5, Text: "more words here"}}},
	}}
	engine, _, _ := newTestEngine(t, speech, 1200)
	engine.cfg.MaxUploadBytes = 50

	artifact := writeArtifact(t, 100)
	_, err := engine.Transcribe(context.Background(), artifact)
	require.NoError(t, err)

	leftovers, err := filepath.Glob(artifact + ".chunk-*")
	require.NoError(t, err)
	require.Empty(t, leftovers)
}
