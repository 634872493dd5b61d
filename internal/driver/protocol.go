// Package driver implements the per-batch extraction driver that runs inside
// the subprocess spawned by the control plane: it reads its work items from
// the environment, processes them sequentially, and reports progress through
// line-framed beacons on stdout.
package driver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Environment variables of the subprocess protocol.
const (
	// EnvJobInput carries the JSON-encoded work item array.
	EnvJobInput = "JOB_INPUT"
	// EnvDebugPipeline enables verbose relaying of child output when "1".
	EnvDebugPipeline = "DEBUG_PIPELINE"
)

// ErrEmptyJobInput is returned when JOB_INPUT is missing or holds no items.
var ErrEmptyJobInput = errors.New("driver: JOB_INPUT is empty")

// Item is one unit of work handed to the driver.
type Item struct {
	// Platform is the source platform, e.g. "instagram".
	Platform string `json:"platform"`
	// Code is the platform-specific video identifier.
	Code string `json:"code"`
}

// EncodeJobInput serializes items for the JOB_INPUT environment variable.
func EncodeJobInput(items []Item) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode job input: %w", err)
	}
	return string(data), nil
}

// ParseJobInput decodes the JOB_INPUT payload.
func ParseJobInput(raw string) ([]Item, error) {
	if raw == "" {
		return nil, ErrEmptyJobInput
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse job input: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyJobInput
	}
	return items, nil
}

// WriteBeacon emits one progress beacon line. done is the cumulative count
// of items completed successfully so far in this batch.
func WriteBeacon(w io.Writer, done int) {
	fmt.Fprintf(w, "{\"item_done\": %d}\n", done)
	if f, ok := w.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}
