// Package stt submits audio files to the speech-to-text service boundary.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotConfigured indicates no transcription credential is available.
	ErrNotConfigured = errors.New("speech service credential not configured")
	// ErrAuth indicates the service rejected the credential; never retried.
	ErrAuth = errors.New("speech service rejected credentials")
	// ErrRateLimited indicates an explicit rate-limit response; retried with longer backoff.
	ErrRateLimited = errors.New("speech service rate limit exceeded")
	// ErrTooLarge indicates the upload exceeded the service's single-request size limit.
	ErrTooLarge = errors.New("audio exceeds speech service upload limit")
)

// Segment is one recognized span with offsets relative to the submitted audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the service response: flat text plus an optional segment breakdown.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Transcriber is the narrow capability consumed by the live and final engines.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
	Configured() bool
}

// Options configures one speech-to-text client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// Client calls the transcriptions endpoint with multipart audio uploads.
type Client struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	http     *http.Client
}

// NewClient builds a speech client; a zero APIKey yields an unconfigured client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		model:    opts.Model,
		language: opts.Language,
		http:     httpClient,
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

// Transcribe uploads one audio file and decodes the segment-level response.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio %q: %w", audioPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", c.model); err != nil {
		return Result{}, err
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return Result{}, err
		}
	}
	// verbose_json carries per-segment start/end offsets needed for timestamped lines.
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Result{}, fmt.Errorf("buffer audio upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, classifyStatus(resp.StatusCode, payload)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode speech response: %w", err)
	}
	result.Text = strings.TrimSpace(result.Text)
	for i := range result.Segments {
		result.Segments[i].Text = strings.TrimSpace(result.Segments[i].Text)
	}
	return result, nil
}

// classifyStatus maps HTTP failures onto the retry taxonomy sentinels.
func classifyStatus(status int, payload []byte) error {
	detail := strings.TrimSpace(string(payload))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: http %d: %s", ErrAuth, status, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: http %d: %s", ErrRateLimited, status, detail)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: http %d: %s", ErrTooLarge, status, detail)
	default:
		return fmt.Errorf("speech service http %d: %s", status, detail)
	}
}

// Retryable reports whether an error should be retried at all.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrAuth) && !errors.Is(err, ErrNotConfigured)
}
