// Package verify reconciles extracted batches against the vector store and
// marks verified rows as embedded in the source table.
package verify

import (
	"context"
	"fmt"
	"log/slog"
)

// PointChecker is the slice of the vector store the verifier consumes.
type PointChecker interface {
	HasPoints(ctx context.Context, code string) (bool, error)
}

// Catalog is the slice of the source table the verifier consumes.
type Catalog interface {
	IDsByCode(ctx context.Context, codes []string) (map[string]int64, error)
	MarkEmbedded(ctx context.Context, ids []int64) error
}

// Verifier checks per-code vector existence and records embedding marks.
type Verifier struct {
	vectors PointChecker
	catalog Catalog
	logger  *slog.Logger
}

// New creates a Verifier.
func New(vectors PointChecker, catalog Catalog, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{vectors: vectors, catalog: catalog, logger: logger}
}

// VerifyBatch reports, per code, whether at least one point exists in the
// vector store. A transport error for one code yields false for that code
// and never aborts the batch.
func (v *Verifier) VerifyBatch(ctx context.Context, codes []string) map[string]bool {
	out := make(map[string]bool, len(codes))
	for _, code := range codes {
		found, err := v.vectors.HasPoints(ctx, code)
		if err != nil {
			v.logger.Warn("vector check failed",
				slog.String("code", code),
				slog.String("error", err.Error()),
			)
			out[code] = false
			continue
		}
		out[code] = found
	}
	return out
}

// MarkEmbedded resolves the codes to source-row IDs and bulk-marks them as
// embedded. Codes with no source row are logged and skipped.
func (v *Verifier) MarkEmbedded(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	idsByCode, err := v.catalog.IDsByCode(ctx, codes)
	if err != nil {
		return fmt.Errorf("resolve codes: %w", err)
	}

	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		id, ok := idsByCode[code]
		if !ok {
			v.logger.Warn("no source row for code, skipping embed mark",
				slog.String("code", code),
			)
			continue
		}
		ids = append(ids, id)
	}

	if err := v.catalog.MarkEmbedded(ctx, ids); err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	return nil
}
