package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	STT      *jsoncSTT      `json:"stt"`
	Summary  *jsoncSummary  `json:"summary"`
	Capture  *jsoncCapture  `json:"capture"`
	Live     *jsoncLive     `json:"live"`
	Finalize *jsoncFinalize `json:"finalize"`
	Store    *jsoncStore    `json:"store"`
	Notify   *jsoncNotify   `json:"notify"`
	Output   *jsoncOutput   `json:"output"`
}

type jsoncSTT struct {
	APIKeyEnv *string `json:"api_key_env"`
	BaseURL   *string `json:"base_url"`
	Model     *string `json:"model"`
	Language  *string `json:"language"`
}

type jsoncSummary struct {
	Enable  *bool   `json:"enable"`
	Model   *string `json:"model"`
	BaseURL *string `json:"base_url"`
}

type jsoncCapture struct {
	Device        *string `json:"device"`
	SampleRate    *int    `json:"sample_rate"`
	RecordingsDir *string `json:"recordings_dir"`
}

type jsoncLive struct {
	PollSeconds      *int     `json:"poll_seconds"`
	MinDeltaSeconds  *float64 `json:"min_delta_seconds"`
	MinChunkBytes    *int64   `json:"min_chunk_bytes"`
	MinArtifactBytes *int64   `json:"min_artifact_bytes"`
}

type jsoncFinalize struct {
	ChunkSeconds       *float64 `json:"chunk_seconds"`
	MaxUploadBytes     *int64   `json:"max_upload_bytes"`
	MinTranscriptChars *int     `json:"min_transcript_chars"`
}

type jsoncStore struct {
	Path *string `json:"path"`
}

type jsoncNotify struct {
	Enable  *bool   `json:"enable"`
	Backend *string `json:"backend"`
	Sound   *bool   `json:"sound"`
}

type jsoncOutput struct {
	CopyTranscript *bool     `json:"copy_transcript"`
	ClipboardArgv  *[]string `json:"clipboard_argv"`
}

// Parse reads configuration content as JSONC layered over the base config.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, errors.New("config must be a JSONC object")
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if payload.STT != nil {
		if payload.STT.APIKeyEnv != nil {
			cfg.STT.APIKeyEnv = strings.TrimSpace(*payload.STT.APIKeyEnv)
		}
		if payload.STT.BaseURL != nil {
			cfg.STT.BaseURL = strings.TrimRight(strings.TrimSpace(*payload.STT.BaseURL), "/")
		}
		if payload.STT.Model != nil {
			cfg.STT.Model = strings.TrimSpace(*payload.STT.Model)
		}
		if payload.STT.Language != nil {
			cfg.STT.Language = strings.TrimSpace(*payload.STT.Language)
		}
	}

	if payload.Summary != nil {
		if payload.Summary.Enable != nil {
			cfg.Summary.Enable = *payload.Summary.Enable
		}
		if payload.Summary.Model != nil {
			cfg.Summary.Model = strings.TrimSpace(*payload.Summary.Model)
		}
		if payload.Summary.BaseURL != nil {
			cfg.Summary.BaseURL = strings.TrimRight(strings.TrimSpace(*payload.Summary.BaseURL), "/")
		}
	}

	if payload.Capture != nil {
		if payload.Capture.Device != nil {
			cfg.Capture.Device = strings.TrimSpace(*payload.Capture.Device)
		}
		if payload.Capture.SampleRate != nil {
			cfg.Capture.SampleRate = *payload.Capture.SampleRate
		}
		if payload.Capture.RecordingsDir != nil {
			cfg.Capture.RecordingsDir = strings.TrimSpace(*payload.Capture.RecordingsDir)
		}
	}

	if payload.Live != nil {
		if payload.Live.PollSeconds != nil {
			cfg.Live.PollSeconds = *payload.Live.PollSeconds
		}
		if payload.Live.MinDeltaSeconds != nil {
			cfg.Live.MinDeltaSeconds = *payload.Live.MinDeltaSeconds
		}
		if payload.Live.MinChunkBytes != nil {
			cfg.Live.MinChunkBytes = *payload.Live.MinChunkBytes
		}
		if payload.Live.MinArtifactBytes != nil {
			cfg.Live.MinArtifactBytes = *payload.Live.MinArtifactBytes
		}
	}

	if payload.Finalize != nil {
		if payload.Finalize.ChunkSeconds != nil {
			cfg.Finalize.ChunkSeconds = *payload.Finalize.ChunkSeconds
		}
		if payload.Finalize.MaxUploadBytes != nil {
			cfg.Finalize.MaxUploadBytes = *payload.Finalize.MaxUploadBytes
		}
		if payload.Finalize.MinTranscriptChars != nil {
			cfg.Finalize.MinTranscriptChars = *payload.Finalize.MinTranscriptChars
		}
	}

	if payload.Store != nil && payload.Store.Path != nil {
		cfg.Store.Path = strings.TrimSpace(*payload.Store.Path)
	}

	if payload.Notify != nil {
		if payload.Notify.Enable != nil {
			cfg.Notify.Enable = *payload.Notify.Enable
		}
		if payload.Notify.Backend != nil {
			cfg.Notify.Backend = strings.ToLower(strings.TrimSpace(*payload.Notify.Backend))
		}
		if payload.Notify.Sound != nil {
			cfg.Notify.Sound = *payload.Notify.Sound
		}
	}

	if payload.Output != nil {
		if payload.Output.CopyTranscript != nil {
			cfg.Output.CopyTranscript = *payload.Output.CopyTranscript
		}
		if payload.Output.ClipboardArgv != nil {
			argv := make([]string, 0, len(*payload.Output.ClipboardArgv))
			for _, part := range *payload.Output.ClipboardArgv {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					argv = append(argv, trimmed)
				}
			}
			cfg.Output.ClipboardArgv = argv
		}
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
