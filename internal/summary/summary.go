// Package summary turns a final meeting transcript into structured notes via
// a chat-completions service. Summarization is best effort: callers treat any
// failure here as non-fatal.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured reports a missing summarization credential.
var ErrNotConfigured = errors.New("summarization credential not configured")

const (
	requestAttempts    = 3
	maxTranscriptChars = 48_000
	defaultHTTPTimeout = 2 * time.Minute
)

// Summary is the structured output stored alongside the transcript.
type Summary struct {
	Title       string       `json:"title"`
	Overview    string       `json:"overview"`
	Sections    []Section    `json:"sections"`
	ActionItems []ActionItem `json:"actionItems"`
}

// Section groups related discussion points under a heading.
type Section struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

// ActionItem is one follow-up extracted from the meeting.
type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"dueDate"`
	Priority string `json:"priority"`
}

// Summarizer produces a structured summary from transcript text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (Summary, error)
	Configured() bool
}

// Options configure a summarization client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client calls an OpenAI-style chat-completions endpoint.
type Client struct {
	opts Options
	http *http.Client
}

// New builds a summarization client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{opts: opts, http: httpClient}
}

// Configured reports whether a credential is available.
func (c *Client) Configured() bool {
	return c.opts.APIKey != ""
}

// Summarize requests a structured summary for the transcript. Responses that
// never parse as JSON across all attempts degrade to a placeholder summary
// built from the transcript itself.
func (c *Client) Summarize(ctx context.Context, transcript string) (Summary, error) {
	if !c.Configured() {
		return Summary{}, ErrNotConfigured
	}
	transcript = clipText(transcript, maxTranscriptChars)
	if strings.TrimSpace(transcript) == "" {
		return Summary{}, errors.New("transcript empty; nothing to summarize")
	}

	var lastErr error
	for attempt := 1; attempt <= requestAttempts; attempt++ {
		raw, err := c.chat(ctx, buildPrompt(transcript))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return Summary{}, ctx.Err()
			}
			continue
		}
		summary, err := parseSummary(raw)
		if err != nil {
			lastErr = fmt.Errorf("parse summary response: %w", err)
			continue
		}
		return summary, nil
	}

	if isParseError(lastErr) {
		return placeholder(transcript), nil
	}
	return Summary{}, lastErr
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.opts.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a precise meeting-notes assistant."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &httpError{status: resp.Status, body: string(body)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("summarization API returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

type httpError struct {
	status string
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("summarization API error: %s (%s)", e.status, clipText(e.body, 200))
}

type parseError struct{ err error }

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

func isParseError(err error) bool {
	var pe *parseError
	return errors.As(err, &pe)
}

func parseSummary(raw string) (Summary, error) {
	object, err := extractJSONObject(raw)
	if err != nil {
		return Summary{}, &parseError{err}
	}
	var summary Summary
	if err := json.Unmarshal([]byte(object), &summary); err != nil {
		return Summary{}, &parseError{err}
	}
	if summary.Title == "" && summary.Overview == "" && len(summary.Sections) == 0 {
		return Summary{}, &parseError{errors.New("summary object has no content")}
	}
	return summary, nil
}

// placeholder degrades gracefully when the service never returns valid JSON:
// the meeting still completes with an overview cut from the transcript.
func placeholder(transcript string) Summary {
	return Summary{
		Title:    "Meeting notes",
		Overview: clipText(transcript, 400),
	}
}

func buildPrompt(transcript string) string {
	return fmt.Sprintf(
		"Summarize this meeting transcript.\n"+
			"Return ONLY JSON matching: {\"title\":\"\",\"overview\":\"\","+
			"\"sections\":[{\"heading\":\"\",\"points\":[\"\"]}],"+
			"\"actionItems\":[{\"task\":\"\",\"assignee\":\"\",\"dueDate\":\"\",\"priority\":\"\"}]}.\n"+
			"Timestamps in the transcript are [mm:ss] offsets from the meeting start.\n\n"+
			"Transcript:\n%s", transcript,
	)
}

func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
