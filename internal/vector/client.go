// Package vector is the HTTP client for the watched-frames vector store.
// The control plane consumes three operations: existence scroll by video
// code, point count, and frame upsert with deterministic point IDs.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Static errors for vector store operations.
var (
	// ErrBaseURLRequired is returned when the store URL is not provided.
	ErrBaseURLRequired = errors.New("vector: base URL is required")
	// ErrCollectionRequired is returned when the collection name is not provided.
	ErrCollectionRequired = errors.New("vector: collection name is required")
	// ErrServerError is returned when the store returns a 5xx status code.
	ErrServerError = errors.New("vector: server error")
	// ErrRateLimited is returned when the store returns a 429 status code.
	ErrRateLimited = errors.New("vector: rate limited")
	// ErrRequestFailed is returned when a request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("vector: request failed")
)

// Point is one frame embedding destined for the store.
type Point struct {
	// Platform is the source platform.
	Platform string
	// VideoCode is the video identifier the frame belongs to.
	VideoCode string
	// FrameNumber is the 1-based frame index.
	FrameNumber int
	// FrameSecond is the frame timestamp within the video.
	FrameSecond float64
	// Path is the object-store key of the uploaded frame.
	Path string
	// Vector is the CLIP embedding.
	Vector []float32
}

// PointID derives the deterministic UUIDv5 for a frame, so re-running a
// batch overwrites the same points instead of duplicating them.
func PointID(code string, frameNumber int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(code+":"+strconv.Itoa(frameNumber)))
}

// Client talks to the vector store's HTTP API.
type Client struct {
	baseURL     string
	collection  string
	apiKey      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the api-key header value.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

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

// NewClient creates a vector store client for one collection.
func NewClient(baseURL, collection string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if collection == "" {
		return nil, ErrCollectionRequired
	}

	c := &Client{
		baseURL:     baseURL,
		collection:  collection,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HasPoints reports whether at least one point exists for the video code.
// It scrolls the collection with a payload filter and limit 1.
func (c *Client) HasPoints(ctx context.Context, code string) (bool, error) {
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "video_code", "match": map[string]any{"value": code}},
			},
		},
		"limit":        1,
		"with_payload": false,
		"with_vector":  false,
	}

	var resp struct {
		Result struct {
			Points []json.RawMessage `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return false, err
	}
	return len(resp.Result.Points) > 0, nil
}

// Count returns the number of points in the collection.
func (c *Client) Count(ctx context.Context) (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// UpsertPoints writes the frame embeddings with their deterministic IDs and
// the contract payload shape.
func (c *Client) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	wire := make([]map[string]any, len(points))
	for i, p := range points {
		id := PointID(p.VideoCode, p.FrameNumber)
		wire[i] = map[string]any{
			"id":     id.String(),
			"vector": p.Vector,
			"payload": map[string]any{
				"platform":     p.Platform,
				"video_code":   p.VideoCode,
				"frame_number": p.FrameNumber,
				"frame_second": p.FrameSecond,
				"path":         p.Path,
				"created_at":   now,
				"uuid":         id.String(),
			},
		}
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPut, url, map[string]any{"points": wire}, nil)
}

// do sends one JSON request with bounded retries on 429 and 5xx responses.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("vector: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("vector: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("vector: request: %w", err)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("vector: decode response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %s", ErrRateLimited, url)
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
		default:
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
		}
	}
	return lastErr
}
