// Package readwise exports summary highlights to Readwise.
package readwise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookdigest/internal/render"
	"bookdigest/internal/retry"
)

const (
	DefaultBaseURL = "https://readwise.io"

	highlightsPath = "/api/v2/highlights/"
	authPath       = "/api/v2/auth/"

	requestTimeout = 30 * time.Second
	maxErrorBody   = 512
)

var (
	ErrInvalidToken     = errors.New("invalid Readwise token")
	ErrNothingToExport  = errors.New("no highlights to export")
	ErrMissingToken     = errors.New("no Readwise token saved")
	errUnexpectedStatus = errors.New("unexpected Readwise response")
)

type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithRetry(cfg retry.Config) Option {
	return func(cl *Client) { cl.retry = cfg }
}

func New(baseURL string, log *slog.Logger, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		retry:   retry.DefaultConfig(),
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type exportRequest struct {
	Highlights []render.Highlight `json:"highlights"`
}

// Export sends highlights and returns how many were exported. An empty list
// is ErrNothingToExport and makes no request.
func (c *Client) Export(ctx context.Context, token string, highlights []render.Highlight) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrMissingToken
	}

	if len(highlights) == 0 {
		return 0, ErrNothingToExport
	}

	body, err := json.Marshal(exportRequest{Highlights: highlights})
	if err != nil {
		return 0, fmt.Errorf("encode highlights: %w", err)
	}

	err = retry.WithBackoff(ctx, c.retry, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, highlightsPath, token, body)
	})
	if err != nil {
		return 0, err
	}

	c.log.InfoContext(ctx, "Highlights are exported",
		"highlightCount", len(highlights))

	return len(highlights), nil
}

// Validate checks a token against the auth endpoint.
func (c *Client) Validate(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}

	return retry.WithBackoff(ctx, c.retry, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, authPath, token, nil)
	})
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Token "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"path", path)
		}
	}()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return retry.Permanent(ErrInvalidToken)
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return fmt.Errorf("%w: %w", errUnexpectedStatus, &retry.StatusError{
		Code: resp.StatusCode,
		Body: strings.TrimSpace(string(snippet)),
	})
}

// IsUpstreamError reports whether err is a non-auth failure returned by
// Readwise itself.
func IsUpstreamError(err error) bool {
	return errors.Is(err, errUnexpectedStatus)
}
