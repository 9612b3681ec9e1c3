package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.STT.BaseURL) == "" {
		return nil, fmt.Errorf("stt.base_url must not be empty")
	}
	if strings.TrimSpace(cfg.STT.Model) == "" {
		return nil, fmt.Errorf("stt.model must not be empty")
	}
	if strings.TrimSpace(cfg.STT.Language) == "" {
		return nil, fmt.Errorf("stt.language must not be empty")
	}
	if cfg.STT.APIKeyEnv == "" {
		warnings = append(warnings, Warning{Message: "stt.api_key_env is empty; live transcription will report not-configured"})
	}

	if cfg.Summary.Enable {
		if strings.TrimSpace(cfg.Summary.Model) == "" {
			return nil, fmt.Errorf("summary.model must not be empty when summary.enable=true")
		}
		if strings.TrimSpace(cfg.Summary.BaseURL) == "" {
			return nil, fmt.Errorf("summary.base_url must not be empty when summary.enable=true")
		}
	}

	if strings.TrimSpace(cfg.Capture.Device) == "" {
		return nil, fmt.Errorf("capture.device must not be empty")
	}
	if cfg.Capture.SampleRate <= 0 {
		return nil, fmt.Errorf("capture.sample_rate must be > 0")
	}

	if cfg.Live.PollSeconds <= 0 {
		return nil, fmt.Errorf("live.poll_seconds must be > 0")
	}
	if cfg.Live.MinDeltaSeconds <= 0 {
		return nil, fmt.Errorf("live.min_delta_seconds must be > 0")
	}
	if cfg.Live.MinChunkBytes < 0 {
		return nil, fmt.Errorf("live.min_chunk_bytes must be >= 0")
	}
	if cfg.Live.MinArtifactBytes < 0 {
		return nil, fmt.Errorf("live.min_artifact_bytes must be >= 0")
	}
	if float64(cfg.Live.PollSeconds) < cfg.Live.MinDeltaSeconds {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("live.poll_seconds=%d is below live.min_delta_seconds=%.0f; most poll cycles will be skipped", cfg.Live.PollSeconds, cfg.Live.MinDeltaSeconds)})
	}

	if cfg.Finalize.ChunkSeconds <= 0 {
		return nil, fmt.Errorf("finalize.chunk_seconds must be > 0")
	}
	if cfg.Finalize.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("finalize.max_upload_bytes must be > 0")
	}
	if cfg.Finalize.MinTranscriptChars < 0 {
		return nil, fmt.Errorf("finalize.min_transcript_chars must be >= 0")
	}

	if cfg.Notify.Enable {
		switch cfg.Notify.Backend {
		case "desktop", "hyprland":
		default:
			return nil, fmt.Errorf("notify.backend must be %q or %q, got %q", "desktop", "hyprland", cfg.Notify.Backend)
		}
	}

	if cfg.Output.CopyTranscript && len(cfg.Output.ClipboardArgv) == 0 {
		return nil, fmt.Errorf("output.clipboard_argv must not be empty when output.copy_transcript=true")
	}

	return warnings, nil
}
