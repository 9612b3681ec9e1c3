package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
)

func TestHyprlandBackendDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.NotifyConfig{Enable: true, Backend: "hyprland", Sound: false}
	n := New(cfg, nil)
	n.Recording(context.Background())
	n.Processing(context.Background())
	n.Failed(context.Background(), "no audio recorded")
	n.Completed(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "--quiet dispatch notify 1 300000 rgb(89b4fa) Recording meeting…", lines[0])
	require.Equal(t, "--quiet dispatch notify 1 300000 rgb(cba6f7) Transcribing recording…", lines[1])
	require.Equal(t, "--quiet dispatch notify 3 4000 rgb(f38ba8) Recording failed: no audio recorded", lines[2])
	require.Equal(t, "--quiet dispatch dismissnotify", lines[3])
}

func TestFailedWithoutReasonUsesDefaultText(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.NotifyConfig{Enable: true, Backend: "hyprland", Sound: false}
	New(cfg, nil).Failed(context.Background(), "  ")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--quiet dispatch notify 3 4000 rgb(f38ba8) Recording failed\n", string(data))
}

func TestDisabledSkipsDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.NotifyConfig{Enable: false, Backend: "hyprland", Sound: false}
	n := New(cfg, nil)
	n.Recording(context.Background())
	n.Processing(context.Background())
	n.Failed(context.Background(), "ignored")
	n.Completed(context.Background())

	_, err := os.Stat(argsFile)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestDesktopBackendTracksNotificationID(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "${6:-}" == "Notify" ]]; then
  echo "u 42"
fi
`)

	cfg := config.NotifyConfig{Enable: true, Backend: "desktop", Sound: false}
	n := New(cfg, nil)
	n.Recording(context.Background())
	n.Processing(context.Background())
	n.Completed(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	// Second notification replaces the first via the returned ID.
	require.Contains(t, lines[0], "Notify susssasa{sv}i meetnotes 0")
	require.Contains(t, lines[1], "Notify susssasa{sv}i meetnotes 42")
	require.Contains(t, lines[2], "CloseNotification u 42")
}

func TestDesktopDismissWithoutNotificationIsNoop(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
`)

	cfg := config.NotifyConfig{Enable: true, Backend: "desktop", Sound: false}
	New(cfg, nil).Completed(context.Background())

	_, err := os.Stat(argsFile)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestCueSamplesPresent(t *testing.T) {
	require.NotEmpty(t, cueSamples(cueStart))
	require.NotEmpty(t, cueSamples(cueStop))
	require.NotEmpty(t, cueSamples(cueComplete))
	require.NotEmpty(t, cueSamples(cueError))
	require.Empty(t, cueSamples(cueKind(0)))
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, samplesForDuration(100*time.Millisecond))
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestSynthesizeCueInsertsGapBetweenTones(t *testing.T) {
	parts := []toneSpec{
		{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.2},
		{frequencyHz: 660, duration: 50 * time.Millisecond, volume: 0.2},
	}
	got := synthesizeCue(parts)
	want := 2*samplesForDuration(50*time.Millisecond) + samplesForDuration(22*time.Millisecond)
	require.Len(t, got, want)
}

func TestSamplesForDuration(t *testing.T) {
	require.Equal(t, 0, samplesForDuration(0))
	require.Greater(t, samplesForDuration(25*time.Millisecond), 0)
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()
	installStub(t, "hyprctl", body)
}

func installBusctlStub(t *testing.T, body string) {
	t.Helper()
	installStub(t, "busctl", body)
}

func installStub(t *testing.T, name string, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
