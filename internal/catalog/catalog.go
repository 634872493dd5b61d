// Package catalog is the relational-database layer over the source content
// table and the append-only extraction errors table. The control plane only
// consumes the cursor/mark operations; the table is owned elsewhere.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceRow is one row of the source content table.
type SourceRow struct {
	// ID is the primary key, used as the batch cursor.
	ID int64
	// Platform is the source platform, e.g. "instagram".
	Platform string
	// Code is the platform-specific video identifier.
	Code string
}

// Repository provides the cursor/mark operations over insta_content and the
// extract_errors sink.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository connects a pgx pool to the source database.
func NewRepository(ctx context.Context, dbURL string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &Repository{db: pool}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.db.Close()
}

// NextBatch returns up to limit unextracted rows with IDs above cursorID,
// in ascending ID order.
func (r *Repository) NextBatch(ctx context.Context, cursorID int64, limit int) ([]SourceRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, platform, code
		FROM insta_content
		WHERE id > $1 AND NOT is_extracted
		ORDER BY id
		LIMIT $2`,
		cursorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}
	defer rows.Close()

	var batch []SourceRow
	for rows.Next() {
		var row SourceRow
		if err := rows.Scan(&row.ID, &row.Platform, &row.Code); err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// MarkExtracted sets is_extracted on the given rows. Re-marking already
// extracted rows is a no-op, so batch re-runs stay idempotent.
func (r *Repository) MarkExtracted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE insta_content SET is_extracted = true WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark extracted: %w", err)
	}
	return nil
}

// MarkEmbedded sets is_embedded on the given rows.
func (r *Repository) MarkEmbedded(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE insta_content SET is_embedded = true WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	return nil
}

// IDsByCode maps codes to source-row IDs. Codes with no row are absent from
// the result, not an error.
func (r *Repository) IDsByCode(ctx context.Context, codes []string) (map[string]int64, error) {
	if len(codes) == 0 {
		return map[string]int64{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, code FROM insta_content WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("ids by code: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(codes))
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, fmt.Errorf("scan id row: %w", err)
		}
		out[code] = id
	}
	return out, rows.Err()
}

// RecordError appends one row to the extraction errors table. Per-item
// errors are persisted the moment they occur, never aggregated on exit.
func (r *Repository) RecordError(ctx context.Context, code, errText string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO extract_errors (code, error_text, created_at) VALUES ($1, $2, NOW())`,
		code, errText)
	if err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return nil
}
