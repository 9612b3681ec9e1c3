package live

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/stt"
)

// fakeSnapshotter serves a scripted sequence of snapshot files.
type fakeSnapshotter struct {
	dir      string
	mu       sync.Mutex
	payloads [][]byte
	cleanups int
	serial   int
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return "", nil
	}
	payload := f.payloads[0]
	f.payloads = f.payloads[1:]
	f.serial++
	path := filepath.Join(f.dir, fmt.Sprintf("tmp-%s-snap-%d.wav", sessionID, f.serial))
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeSnapshotter) TempPath(sessionID string, kind string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serial++
	return filepath.Join(f.dir, fmt.Sprintf("tmp-%s-%s-%d.wav", sessionID, kind, f.serial))
}

func (f *fakeSnapshotter) CleanupSession(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

// fakeSpeech returns scripted transcription results per call.
type fakeSpeech struct {
	mu         sync.Mutex
	configured bool
	texts      []string
	errs       []error
	calls      int
}

func (f *fakeSpeech) Configured() bool { return f.configured }

func (f *fakeSpeech) Transcribe(_ context.Context, _ string) (stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return stt.Result{}, f.errs[idx]
	}
	if idx < len(f.texts) {
		return stt.Result{Text: f.texts[idx]}, nil
	}
	return stt.Result{}, nil
}

func newTestEngine(t *testing.T, snaps *fakeSnapshotter, speech *fakeSpeech, durations []float64) *Engine {
	t.Helper()
	cfg := config.Default().Live
	cfg.MinChunkBytes = 4

	engine := NewEngine(cfg, snaps, speech, nil)

	var mu sync.Mutex
	call := 0
	engine.duration = func(context.Context, string) (float64, error) {
		mu.Lock()
		defer mu.Unlock()
		if call >= len(durations) {
			return durations[len(durations)-1], nil
		}
		d := durations[call]
		call++
		return d, nil
	}
	engine.extract = func(_ context.Context, src string, dst string, _ float64, _ float64) error {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o600)
	}
	return engine
}

func payload(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte("pcm audio payload")
	}
	return out
}

func TestStartLiveEmitsNotConfiguredOnce(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir()}
	engine := newTestEngine(t, snaps, &fakeSpeech{configured: false}, []float64{60})

	var updates []Update
	engine.StartLive(context.Background(), "sess", func(u Update) { updates = append(updates, u) })

	require.Len(t, updates, 1)
	require.Equal(t, KindNotConfigured, updates[0].Kind)
}

func TestStartLiveEmitsListeningPlaceholderFirst(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir()}
	engine := newTestEngine(t, snaps, &fakeSpeech{configured: true}, []float64{60})
	engine.earlyProbes = nil
	engine.pollEvery = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var updates []Update
	engine.StartLive(ctx, "sess", func(u Update) { updates = append(updates, u) })
	engine.StopLive("sess")

	require.NotEmpty(t, updates)
	require.Equal(t, KindListening, updates[0].Kind)
}

func TestPollAccumulatesBufferInCycleOrder(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir(), payloads: payload(3)}
	speech := &fakeSpeech{configured: true, texts: []string{"first words", "second words", "third words"}}
	engine := newTestEngine(t, snaps, speech, []float64{6, 12, 18})

	var updates []Update
	onUpdate := func(u Update) { updates = append(updates, u) }

	engine.poll(context.Background(), "sess", onUpdate)
	engine.poll(context.Background(), "sess", onUpdate)
	engine.poll(context.Background(), "sess", onUpdate)

	require.Len(t, updates, 3)
	require.Equal(t, "first words", updates[0].Text)
	require.Equal(t, "first words second words", updates[1].Text)
	require.Equal(t, "first words second words third words", updates[2].Text)
	for _, u := range updates {
		require.Equal(t, KindTranscript, u.Kind)
	}
	require.Equal(t, float64(18), engine.Cursor())
}

func TestPollSkipsWhenDeltaBelowMinimum(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir(), payloads: payload(2)}
	speech := &fakeSpeech{configured: true, texts: []string{"words"}}
	engine := newTestEngine(t, snaps, speech, []float64{6, 9})

	engine.poll(context.Background(), "sess", nil)
	require.Equal(t, float64(6), engine.Cursor())

	// Only 3s of new audio: below min_delta_seconds, cursor must not move.
	engine.poll(context.Background(), "sess", nil)
	require.Equal(t, float64(6), engine.Cursor())
	require.Equal(t, 1, speech.calls)
}

func TestPollSkipsWhenSnapshotNotReady(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir()}
	speech := &fakeSpeech{configured: true}
	engine := newTestEngine(t, snaps, speech, []float64{60})

	engine.poll(context.Background(), "sess", nil)
	require.Zero(t, engine.Cursor())
	require.Zero(t, speech.calls)
}

func TestPollSkipsTinyChunkAsSilence(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir(), payloads: [][]byte{[]byte("x")}}
	speech := &fakeSpeech{configured: true}
	engine := newTestEngine(t, snaps, speech, []float64{30})
	engine.cfg.MinChunkBytes = 1024

	engine.poll(context.Background(), "sess", nil)
	require.Zero(t, speech.calls)
	require.Zero(t, engine.Cursor())
}

func TestPollKeepsCursorOnTranscriptionFailure(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir(), payloads: payload(2)}
	speech := &fakeSpeech{
		configured: true,
		errs:       []error{errors.New("transient"), nil},
		texts:      []string{"", "recovered words"},
	}
	engine := newTestEngine(t, snaps, speech, []float64{6, 12})

	var updates []Update
	onUpdate := func(u Update) { updates = append(updates, u) }

	// Failed cycle: swallowed, cursor unchanged, no update emitted.
	engine.poll(context.Background(), "sess", onUpdate)
	require.Zero(t, engine.Cursor())
	require.Empty(t, updates)

	// Next cycle covers the whole backlog and advances the cursor.
	engine.poll(context.Background(), "sess", onUpdate)
	require.Equal(t, float64(12), engine.Cursor())
	require.Len(t, updates, 1)
	require.Equal(t, "recovered words", updates[0].Text)
}

func TestPollDeletesTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	snaps := &fakeSnapshotter{dir: dir, payloads: payload(1)}
	speech := &fakeSpeech{configured: true, texts: []string{"words"}}
	engine := newTestEngine(t, snaps, speech, []float64{20})

	engine.poll(context.Background(), "sess", nil)

	leftovers, err := filepath.Glob(filepath.Join(dir, "tmp-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestStopLiveResetsStateAndCleansUp(t *testing.T) {
	snaps := &fakeSnapshotter{dir: t.TempDir(), payloads: payload(1)}
	speech := &fakeSpeech{configured: true, texts: []string{"words"}}
	engine := newTestEngine(t, snaps, speech, []float64{20})

	engine.poll(context.Background(), "sess", nil)
	require.NotZero(t, engine.Cursor())
	require.NotEmpty(t, engine.Buffer())

	engine.StopLive("sess")
	require.Zero(t, engine.Cursor())
	require.Empty(t, engine.Buffer())
	require.Equal(t, 1, snaps.cleanups)
}
