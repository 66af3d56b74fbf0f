package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

const starredColumns = `id, repo_id, name, full_name, description, url, user_id, created_at, updated_at`

// ListStarredRepositories returns the user's repositories ordered by full name.
// An empty userID lists repositories of every user.
func (s *SQLStore) ListStarredRepositories(ctx context.Context, userID string) ([]*models.StarredRepository, error) {
	query := `SELECT ` + starredColumns + ` FROM starred_repositories`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY full_name, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query starred repositories: %w", err)
	}
	defer rows.Close()

	var repos []*models.StarredRepository
	for rows.Next() {
		repo, err := scanStarred(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating starred repository rows: %w", err)
	}
	return repos, nil
}

// ListStarredRepositoriesWithCommits is ListStarredRepositories with each repository's
// commit counts attached, newest day first.
func (s *SQLStore) ListStarredRepositoriesWithCommits(ctx context.Context, userID string) ([]*models.StarredRepository, error) {
	repos, err := s.ListStarredRepositories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return repos, nil
	}

	query := `
		SELECT cc.id, cc.repository_id, cc.commit_date, cc.count, cc.created_at, cc.updated_at
		FROM commit_counts cc
		JOIN starred_repositories sr ON sr.id = cc.repository_id`
	var args []any
	if userID != "" {
		query += ` WHERE sr.user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY cc.commit_date DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit counts: %w", err)
	}
	defer rows.Close()

	byRepo := make(map[string][]models.CommitCount, len(repos))
	for rows.Next() {
		cc, err := scanCommitCount(rows)
		if err != nil {
			return nil, err
		}
		byRepo[cc.RepositoryID] = append(byRepo[cc.RepositoryID], cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commit count rows: %w", err)
	}

	for _, repo := range repos {
		repo.CommitCounts = byRepo[repo.ID]
	}
	return repos, nil
}

// UpsertStarredRepository creates the repository for repo.UserID or refreshes it, keyed by
// repo.RepoID. A RepoID already owned by another user is left untouched and reported as a
// data integrity error.
func (s *SQLStore) UpsertStarredRepository(ctx context.Context, repo *models.StarredRepository) error {
	now := s.now()
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO starred_repositories (`+starredColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (repo_id) DO UPDATE SET
			name = EXCLUDED.name,
			full_name = EXCLUDED.full_name,
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			updated_at = EXCLUDED.updated_at
		WHERE starred_repositories.user_id = EXCLUDED.user_id
		RETURNING id, created_at, updated_at`),
		xid.New().String(), repo.RepoID, repo.Name, repo.FullName, nullString(repo.Description),
		repo.URL, repo.UserID, now,
	).Scan(&repo.ID, &repo.CreatedAt, &repo.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewDataIntegrityError(
			fmt.Sprintf("repository %s (%s) is already tracked by another user", repo.RepoID, repo.FullName), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert starred repository %s: %w", repo.FullName, err)
	}
	return nil
}

// DeleteStarredRepositories removes the given rows (and, by cascade, their commit counts)
// in one transaction.
func (s *SQLStore) DeleteStarredRepositories(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := tx.ExecContext(ctx,
		s.q(`DELETE FROM starred_repositories WHERE id IN (`+placeholders(1, len(ids))+`)`), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete starred repositories: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStarred(row rowScanner) (*models.StarredRepository, error) {
	var (
		repo models.StarredRepository
		desc sql.NullString
	)
	if err := row.Scan(&repo.ID, &repo.RepoID, &repo.Name, &repo.FullName, &desc,
		&repo.URL, &repo.UserID, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan starred repository row: %w", err)
	}
	if desc.Valid {
		repo.Description = &desc.String
	}
	return &repo, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
