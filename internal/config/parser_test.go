package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyContentReturnsDefaults(t *testing.T) {
	cfg, warnings, err := Parse("", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Empty(t, warnings)
}

func TestParseJSONCWithCommentsAndTrailingCommas(t *testing.T) {
	content := `{
		// speech service settings
		"stt": {
			"model": "whisper-1",
			"language": "de", // German meetings
		},
		/* polling cadence */
		"live": {
			"poll_seconds": 20,
			"min_delta_seconds": 8,
		},
		"capture": {
			"device": "alsa_input.usb-mic",
			"sample_rate": 48000,
		},
	}`

	cfg, _, err := Parse(content, Default())
	require.NoError(t, err)
	require.Equal(t, "de", cfg.STT.Language)
	require.Equal(t, 20, cfg.Live.PollSeconds)
	require.Equal(t, float64(8), cfg.Live.MinDeltaSeconds)
	require.Equal(t, "alsa_input.usb-mic", cfg.Capture.Device)
	require.Equal(t, 48000, cfg.Capture.SampleRate)

	// untouched sections keep defaults
	require.Equal(t, Default().Finalize, cfg.Finalize)
	require.Equal(t, Default().Summary, cfg.Summary)
}

func TestParseTrailingCommaBeforeComment(t *testing.T) {
	// The comma is only trailing once the comment between it and the closing
	// brace is stripped.
	content := "{\n  \"live\": {\n    \"poll_seconds\": 10, // poll cadence\n  },\n}"
	cfg, _, err := Parse(content, Default())
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Live.PollSeconds)

	cfg, _, err = Parse(`{"live": {"poll_seconds": 9, /* cadence */}}`, Default())
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Live.PollSeconds)
}

func TestParseRejectsUnknownKeysWithLocation(t *testing.T) {
	content := "{\n  \"sttt\": {}\n}"
	_, _, err := Parse(content, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "sttt")
}

func TestParseRejectsNonObjectContent(t *testing.T) {
	_, _, err := Parse("poll_seconds = 12", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestParseRejectsMultipleJSONValues(t *testing.T) {
	_, _, err := Parse("{} {}", Default())
	require.Error(t, err)
}

func TestParseReportsSyntaxErrorLineColumn(t *testing.T) {
	content := "{\n  \"stt\": {\n    \"model\": whisper\n  }\n}"
	_, _, err := Parse(content, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestParseNotifyAndOutputSections(t *testing.T) {
	content := `{
		"notify": {
			"enable": true,
			"backend": "Hyprland",
			"sound": false,
		},
		"output": {
			"copy_transcript": true,
			"clipboard_argv": ["xclip", "-selection", "clipboard"],
		},
	}`

	cfg, _, err := Parse(content, Default())
	require.NoError(t, err)
	require.True(t, cfg.Notify.Enable)
	require.Equal(t, "hyprland", cfg.Notify.Backend)
	require.False(t, cfg.Notify.Sound)
	require.True(t, cfg.Output.CopyTranscript)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Output.ClipboardArgv)
}

func TestParseTrimsBaseURLTrailingSlash(t *testing.T) {
	cfg, _, err := Parse(`{"stt": {"base_url": "https://example.test/v1/"}}`, Default())
	require.NoError(t, err)
	require.Equal(t, "https://example.test/v1", cfg.STT.BaseURL)
}

func TestNormalizeJSONCUnterminatedBlockComment(t *testing.T) {
	_, err := normalizeJSONC("{ /* never closed ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestNormalizeJSONCKeepsCommentLikeStringsIntact(t *testing.T) {
	out, err := normalizeJSONC(`{"capture": {"device": "mic//primary"}}`)
	require.NoError(t, err)
	require.Contains(t, out, "mic//primary")
}
