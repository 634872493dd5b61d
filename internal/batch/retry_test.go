package batch

import (
	"testing"

	"github.com/clipfarm/extractor/internal/catalog"
)

func TestRetrySet_AddRemove(t *testing.T) {
	s := NewRetrySet()

	s.Add(
		catalog.SourceRow{ID: 2, Platform: "instagram", Code: "bbb"},
		catalog.SourceRow{ID: 1, Platform: "instagram", Code: "aaa"},
	)
	if s.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", s.Len())
	}

	s.Remove("aaa")
	if s.Len() != 1 {
		t.Fatalf("expected 1 row after remove, got %d", s.Len())
	}
	if s.Rows()[0].Code != "bbb" {
		t.Errorf("expected remaining code bbb, got %s", s.Rows()[0].Code)
	}
}

func TestRetrySet_AddDeduplicatesByCode(t *testing.T) {
	s := NewRetrySet()

	s.Add(catalog.SourceRow{ID: 1, Code: "aaa"})
	s.Add(catalog.SourceRow{ID: 1, Code: "aaa"})

	if s.Len() != 1 {
		t.Errorf("expected 1 row after duplicate add, got %d", s.Len())
	}
}

func TestRetrySet_RowsSortedByID(t *testing.T) {
	s := NewRetrySet()
	s.Add(
		catalog.SourceRow{ID: 30, Code: "ccc"},
		catalog.SourceRow{ID: 10, Code: "aaa"},
		catalog.SourceRow{ID: 20, Code: "bbb"},
	)

	rows := s.Rows()
	wantIDs := []int64{10, 20, 30}
	for i, row := range rows {
		if row.ID != wantIDs[i] {
			t.Fatalf("expected IDs %v, got %v", wantIDs, rows)
		}
	}

	wantCodes := []string{"aaa", "bbb", "ccc"}
	for i, code := range s.Codes() {
		if code != wantCodes[i] {
			t.Fatalf("expected codes %v, got %v", wantCodes, s.Codes())
		}
	}
}
