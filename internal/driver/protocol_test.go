package driver

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeParseJobInput(t *testing.T) {
	items := []Item{
		{Platform: "instagram", Code: "abc123"},
		{Platform: "instagram", Code: "def456"},
	}

	payload, err := EncodeJobInput(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := ParseJobInput(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 items, got %d", len(parsed))
	}
	if parsed[0] != items[0] || parsed[1] != items[1] {
		t.Errorf("round trip mismatch: %v", parsed)
	}
}

func TestParseJobInput_Empty(t *testing.T) {
	if _, err := ParseJobInput(""); !errors.Is(err, ErrEmptyJobInput) {
		t.Errorf("expected ErrEmptyJobInput, got %v", err)
	}
	if _, err := ParseJobInput("[]"); !errors.Is(err, ErrEmptyJobInput) {
		t.Errorf("expected ErrEmptyJobInput for empty array, got %v", err)
	}
}

func TestParseJobInput_Malformed(t *testing.T) {
	if _, err := ParseJobInput("{not json"); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteBeacon(t *testing.T) {
	var buf bytes.Buffer
	WriteBeacon(&buf, 3)

	if got := buf.String(); got != "{\"item_done\": 3}\n" {
		t.Errorf("unexpected beacon line: %q", got)
	}
}
