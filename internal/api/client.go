// Package api is the HTTP client for the student-facing platform API.
// It covers the four contracts the lesson runtime depends on: catalog
// fetch, attempt submission, lesson completion, and session end.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 15 * time.Second

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the platform API with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a Client. A zero Timeout falls back to DefaultTimeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Activities fetches the raw activities payload for a lesson. The
// catalog loader owns validation and decoding.
func (c *Client) Activities(ctx context.Context, lessonID, locale string) ([]byte, error) {
	path := "/student/lesson/" + url.PathEscape(lessonID) + "/activities"
	return c.do(ctx, http.MethodGet, path, url.Values{"lang": {locale}}, nil)
}

// AttemptRequest is one attempt submission. Payload carries the
// renderer-specific answer data and is merged into the submission object
// on the wire.
type AttemptRequest struct {
	ActivityID string
	LessonID   string
	Locale     string
	Skipped    bool
	Payload    json.RawMessage
}

// AttemptResult is the graded outcome of an attempt. The scoring
// algorithm is server-side and opaque to the client.
type AttemptResult struct {
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
}

// SubmitAttempt posts one attempt and returns its graded result.
func (c *Client) SubmitAttempt(ctx context.Context, req AttemptRequest) (AttemptResult, error) {
	submission := map[string]any{}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &submission); err != nil {
			return AttemptResult{}, fmt.Errorf("attempt payload: %w", err)
		}
	}
	submission["lesson_id"] = req.LessonID
	submission["skipped"] = req.Skipped
	if req.Skipped {
		if _, ok := submission["action"]; !ok {
			submission["action"] = "skipped"
		}
	}

	body := map[string]any{
		"activity_id": req.ActivityID,
		"lesson_id":   req.LessonID,
		"lang":        req.Locale,
		"submission":  submission,
	}

	raw, err := c.do(ctx, http.MethodPost, "/student/attempt", nil, body)
	if err != nil {
		return AttemptResult{}, err
	}
	var res AttemptResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return AttemptResult{}, fmt.Errorf("decode attempt result: %w", err)
	}
	return res, nil
}

// Completion is the server's answer to a lesson completion.
type Completion struct {
	NextLessonID string `json:"next_lesson_id"`
}

// CompleteLesson notifies the server that a lesson finished.
func (c *Client) CompleteLesson(ctx context.Context, lessonID string) (Completion, error) {
	path := "/student/lesson/" + url.PathEscape(lessonID) + "/complete"
	raw, err := c.do(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return Completion{}, err
	}
	var comp Completion
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &comp); err != nil {
			return Completion{}, fmt.Errorf("decode completion: %w", err)
		}
	}
	return comp, nil
}

// EndSession tells the server a session is over. Callers treat failures
// as best-effort and never retry.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	body := map[string]any{"session_id": sessionID}
	_, err := c.do(ctx, http.MethodPost, "/student/end-session", nil, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

// errorMessage pulls a human-readable message out of an error body.
// The backend answers with either {"error": ...} or {"message": ...}.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
