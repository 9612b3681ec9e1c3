// Package config resolves, parses, validates, and defaults meetnotes configuration.
package config

import "os"

// Config is the fully materialized runtime configuration used by meetnotes.
type Config struct {
	STT      STTConfig
	Summary  SummaryConfig
	Capture  CaptureConfig
	Live     LiveConfig
	Finalize FinalizeConfig
	Store    StoreConfig
	Notify   NotifyConfig
	Output   OutputConfig
}

// STTConfig controls the speech-to-text service boundary.
type STTConfig struct {
	APIKeyEnv string
	BaseURL   string
	Model     string
	Language  string
}

// APIKey reads the transcription credential from the configured environment variable.
func (c STTConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// SummaryConfig controls the post-meeting summarization call.
type SummaryConfig struct {
	Enable  bool
	Model   string
	BaseURL string
}

// CaptureConfig controls the audio-capture subprocess and artifact layout.
type CaptureConfig struct {
	Device        string
	SampleRate    int
	RecordingsDir string
}

// LiveConfig controls incremental transcription polling.
type LiveConfig struct {
	PollSeconds      int
	MinDeltaSeconds  float64
	MinChunkBytes    int64
	MinArtifactBytes int64
}

// FinalizeConfig controls final transcription chunking and service limits.
type FinalizeConfig struct {
	ChunkSeconds       float64
	MaxUploadBytes     int64
	MinTranscriptChars int
}

// StoreConfig controls meeting-record persistence.
type StoreConfig struct {
	Path string
}

// NotifyConfig controls desktop notifications and audio cues for session
// state changes. Backend is "desktop" (freedesktop DBus) or "hyprland".
type NotifyConfig struct {
	Enable  bool
	Backend string
	Sound   bool
}

// OutputConfig controls what happens with the final transcript beyond the
// database and stdout.
type OutputConfig struct {
	CopyTranscript bool
	ClipboardArgv  []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
