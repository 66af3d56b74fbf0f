package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// LatestCommitDate returns the most recent recorded day for the repository, or nil.
func (s *SQLStore) LatestCommitDate(ctx context.Context, repositoryID string) (*models.Date, error) {
	var d models.Date
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT commit_date FROM commit_counts
		WHERE repository_id = $1
		ORDER BY commit_date DESC
		LIMIT 1`), repositoryID,
	).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest commit date: %w", err)
	}
	return &d, nil
}

// UpsertCommitCount stores the count for (repository, day). It reports true when a row was
// created or its count changed, false when the stored count already matched.
func (s *SQLStore) UpsertCommitCount(ctx context.Context, cc *models.CommitCount) (bool, error) {
	if cc.Count < 0 {
		return false, fmt.Errorf("commit count for %s must not be negative: %d", cc.Date, cc.Count)
	}

	now := s.now()
	var id string
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO commit_counts (id, repository_id, commit_date, count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (repository_id, commit_date) DO UPDATE SET
			count = EXCLUDED.count,
			updated_at = EXCLUDED.updated_at
		WHERE commit_counts.count <> EXCLUDED.count
		RETURNING id`),
		xid.New().String(), cc.RepositoryID, cc.Date, cc.Count, now,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert commit count for %s: %w", cc.Date, err)
	}

	cc.ID = id
	cc.UpdatedAt = now
	return true, nil
}

// ListCommitCounts returns the repository's series, newest day first.
func (s *SQLStore) ListCommitCounts(ctx context.Context, repositoryID string) ([]models.CommitCount, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, repository_id, commit_date, count, created_at, updated_at
		FROM commit_counts
		WHERE repository_id = $1
		ORDER BY commit_date DESC`), repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit counts: %w", err)
	}
	defer rows.Close()

	var counts []models.CommitCount
	for rows.Next() {
		cc, err := scanCommitCount(rows)
		if err != nil {
			return nil, err
		}
		counts = append(counts, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commit count rows: %w", err)
	}
	return counts, nil
}

func scanCommitCount(row rowScanner) (models.CommitCount, error) {
	var cc models.CommitCount
	if err := row.Scan(&cc.ID, &cc.RepositoryID, &cc.Date, &cc.Count, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
		return cc, fmt.Errorf("failed to scan commit count row: %w", err)
	}
	return cc, nil
}
