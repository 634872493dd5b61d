package batch

import (
	"sort"

	"github.com/clipfarm/extractor/internal/catalog"
)

// RetrySet holds the rows whose most recent batch exited non-zero. It is
// intentionally in-memory: after a crash the same rows are re-derived from
// the source table, which still has is_extracted=false for them.
type RetrySet struct {
	rows map[string]catalog.SourceRow
}

// NewRetrySet creates an empty retry set.
func NewRetrySet() *RetrySet {
	return &RetrySet{rows: make(map[string]catalog.SourceRow)}
}

// Add records the rows for retry, keyed by code.
func (s *RetrySet) Add(rows ...catalog.SourceRow) {
	for _, row := range rows {
		s.rows[row.Code] = row
	}
}

// Remove drops the row for code after a successful retry.
func (s *RetrySet) Remove(code string) {
	delete(s.rows, code)
}

// Len returns the number of pending rows.
func (s *RetrySet) Len() int {
	return len(s.rows)
}

// Rows returns the pending rows in ascending ID order.
func (s *RetrySet) Rows() []catalog.SourceRow {
	out := make([]catalog.SourceRow, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Codes returns the pending codes in ascending ID order.
func (s *RetrySet) Codes() []string {
	rows := s.Rows()
	codes := make([]string, len(rows))
	for i, row := range rows {
		codes[i] = row.Code
	}
	return codes
}
