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

// UpsertUser creates the user or refreshes its profile, keyed by GitHub id.
// ID and timestamps are filled in from the stored row.
func (s *SQLStore) UpsertUser(ctx context.Context, user *models.User) error {
	now := s.now()
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (github_id) DO UPDATE SET
			login = EXCLUDED.login,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`),
		xid.New().String(), user.GitHubID, user.Login, user.Email, user.AvatarURL, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.GitHubID, err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, github_id, login, email, avatar_url, created_at, updated_at
		FROM users WHERE id = $1`), id,
	).Scan(&u.ID, &u.GitHubID, &u.Login, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListUsersWithCredentials returns every user holding a stored credential, valid or not.
func (s *SQLStore) ListUsersWithCredentials(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.github_id, u.login, u.email, u.avatar_url, u.created_at, u.updated_at
		FROM users u
		WHERE EXISTS (SELECT 1 FROM credentials c WHERE c.user_id = u.id)
		ORDER BY u.created_at, u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.GitHubID, &u.Login, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// ReplaceCredential deletes every credential of cred.UserID and stores cred in one transaction.
func (s *SQLStore) ReplaceCredential(ctx context.Context, cred *models.Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM credentials WHERE user_id = $1`), cred.UserID); err != nil {
		return fmt.Errorf("failed to delete previous credentials: %w", err)
	}

	if cred.ID == "" {
		cred.ID = xid.New().String()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = s.now()
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO credentials (id, user_id, encrypted_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`),
		cred.ID, cred.UserID, cred.EncryptedToken, cred.ExpiresAt.UTC(), cred.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCredential returns the user's credential, or nil when none is stored.
func (s *SQLStore) GetCredential(ctx context.Context, userID string) (*models.Credential, error) {
	var c models.Credential
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, encrypted_token, expires_at, created_at
		FROM credentials WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`), userID,
	).Scan(&c.ID, &c.UserID, &c.EncryptedToken, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) DeleteCredentials(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM credentials WHERE user_id = $1`), userID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
