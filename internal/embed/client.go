// Package embed is the HTTP client for the CLIP embedding service used by
// the extraction pipeline to turn frame images into vectors.
package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Static errors for embedding operations.
var (
	// ErrBaseURLRequired is returned when the service URL is not provided.
	ErrBaseURLRequired = errors.New("embed: base URL is required")
	// ErrServerError is returned when the service returns a 5xx status code.
	ErrServerError = errors.New("embed: server error")
	// ErrRateLimited is returned when the service returns a 429 status code.
	ErrRateLimited = errors.New("embed: rate limited")
	// ErrRequestFailed is returned when a request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("embed: request failed")
	// ErrVectorCountMismatch is returned when the service returns a different
	// number of vectors than images sent.
	ErrVectorCountMismatch = errors.New("embed: vector count mismatch")
)

// Embedder defines the embedding operation the pipeline consumes.
type Embedder interface {
	// EmbedImages returns one CLIP vector per input image, in order.
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)
}

// Client is the HTTP implementation of Embedder.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// NewClient creates an embedding service client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type embedRequest struct {
	Images []string `json:"images"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedImages sends the PNG frames in one batch and returns their vectors.
// Transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff up to the configured retry limit.
func (c *Client) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}

	reqBody := embedRequest{Images: make([]string, len(images))}
	for i, img := range images {
		reqBody.Images[i] = base64.StdEncoding.EncodeToString(img)
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embed: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("embed: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("embed: request: %w", err)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var out embedResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("embed: decode response: %w", err)
			}
			if len(out.Vectors) != len(images) {
				return nil, fmt.Errorf("%w: sent %d images, got %d vectors", ErrVectorCountMismatch, len(images), len(out.Vectors))
			}
			return out.Vectors, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = ErrRateLimited
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
		}
	}
	return nil, lastErr
}
