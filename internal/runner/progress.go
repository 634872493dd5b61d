package runner

import (
	"encoding/json"
	"strings"
)

// beacon is the progress fragment the extraction subprocess prints on
// stdout. Additional keys are ignored; a non-integer item_done means the
// line carries no beacon.
type beacon struct {
	ItemDone json.Number `json:"item_done"`
}

// extractJSONObject returns the first balanced {...} substring of line.
// Braces inside JSON strings are skipped so an embedded beacon is found even
// when surrounded by other text.
func extractJSONObject(line string) (string, bool) {
	start := strings.IndexByte(line, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return line[start : i+1], true
			}
		}
	}
	return "", false
}

// parseBeacon extracts an integer item_done value from the first JSON object
// embedded in line. ok is false when no such beacon exists.
func parseBeacon(line string) (int, bool) {
	obj, found := extractJSONObject(line)
	if !found {
		return 0, false
	}
	var b beacon
	if err := json.Unmarshal([]byte(obj), &b); err != nil {
		return 0, false
	}
	if b.ItemDone == "" {
		return 0, false
	}
	n, err := b.ItemDone.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// tracker converts child output lines into progress deltas. Beacon values
// and cumulative checkmark counts share one high-water mark; whichever
// reports more completed items wins, so progress never decreases.
type tracker struct {
	total      int
	done       int
	checkmarks int
	applied    int
}

func newTracker(totalItems int) *tracker {
	if totalItems < 1 {
		totalItems = 1
	}
	return &tracker{total: totalItems}
}

// observe returns the progress delta for one stdout line, zero when the line
// moves nothing forward.
func (t *tracker) observe(line string) int {
	if v, ok := parseBeacon(line); ok {
		if v > t.done {
			return t.advance(v)
		}
		return 0
	}

	t.checkmarks += strings.Count(line, "✔")
	if t.checkmarks > t.done {
		return t.advance(t.checkmarks)
	}
	return 0
}

// advance moves the high-water mark to doneItems and returns the clamped
// delta: floor(100 * newly-done / total), never pushing cumulative progress
// past 100.
func (t *tracker) advance(doneItems int) int {
	delta := 100 * (doneItems - t.done) / t.total
	t.done = doneItems
	if t.applied+delta > 100 {
		delta = 100 - t.applied
	}
	t.applied += delta
	return delta
}

// remaining is the delta that tops progress out at 100, applied when the
// subprocess exits cleanly.
func (t *tracker) remaining() int {
	return 100 - t.applied
}
