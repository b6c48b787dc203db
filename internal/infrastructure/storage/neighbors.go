package storage

import (
	"context"
	"database/sql"
	"fmt"

	"webscout/internal/domain"
	"webscout/internal/ports"
)

var _ ports.NeighborRepository = (*NeighborRepo)(nil)

type NeighborRepo struct {
	db *sql.DB
}

func NewNeighborRepo(db *sql.DB) *NeighborRepo {
	return &NeighborRepo{db: db}
}

// Replace swaps a document's neighbor list atomically so readers never
// see a half-rebuilt index for it.
func (r *NeighborRepo) Replace(ctx context.Context, docID string, neighbors []domain.Neighbor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin neighbors: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM document_neighbors WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("clear neighbors: %w", err)
	}
	for _, n := range neighbors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_neighbors (document_id, neighbor_id, similarity)
			VALUES ($1, $2, $3)`,
			docID, n.NeighborID, n.Similarity); err != nil {
			return fmt.Errorf("insert neighbor: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit neighbors: %w", err)
	}
	return nil
}

// ListFor returns a document's neighbors ordered by similarity.
func (r *NeighborRepo) ListFor(ctx context.Context, docID string) ([]domain.Neighbor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document_id, neighbor_id, similarity
		FROM document_neighbors
		WHERE document_id = $1
		ORDER BY similarity DESC`, docID)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var out []domain.Neighbor
	for rows.Next() {
		var n domain.Neighbor
		if err := rows.Scan(&n.DocumentID, &n.NeighborID, &n.Similarity); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return out, nil
}
