package config

// Default returns the canonical runtime configuration used when no file is present.
//
// Recordings and database paths are left empty here and resolved against the
// user's data directory during Load.
func Default() Config {
	return Config{
		STT: STTConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "whisper-1",
			Language:  "en",
		},
		Summary: SummaryConfig{
			Enable:  true,
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
		},
		Capture: CaptureConfig{
			Device:     "default",
			SampleRate: 16000,
		},
		Live: LiveConfig{
			PollSeconds:      12,
			MinDeltaSeconds:  5,
			MinChunkBytes:    4096,
			MinArtifactBytes: 4096,
		},
		Finalize: FinalizeConfig{
			ChunkSeconds:       600,
			MaxUploadBytes:     25 << 20,
			MinTranscriptChars: 10,
		},
		Store: StoreConfig{},
		Notify: NotifyConfig{
			Enable:  true,
			Backend: "desktop",
			Sound:   true,
		},
		Output: OutputConfig{
			CopyTranscript: false,
			ClipboardArgv:  []string{"wl-copy"},
		},
	}
}
