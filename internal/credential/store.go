package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/crypto"
	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// Repository is the persistence the credential store needs.
type Repository interface {
	ReplaceCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, userID string) (*models.Credential, error)
	DeleteCredentials(ctx context.Context, userID string) error
}

// Store keeps one encrypted GitHub credential per user.
type Store struct {
	repo   Repository
	cipher crypto.Cipher
	clock  clockwork.Clock
	leeway time.Duration
	logger *logrus.Logger
}

// Option configures a Store
type Option func(*Store)

// WithExpiryLeeway treats credentials as expired this long before their recorded expiry.
func WithExpiryLeeway(d time.Duration) Option {
	return func(s *Store) {
		s.leeway = d
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(repo Repository, cipher crypto.Cipher, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		cipher: cipher,
		clock:  clock,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save encrypts secret and replaces whatever credential the user had.
func (s *Store) Save(ctx context.Context, userID, secret string, expiresIn time.Duration) error {
	if userID == "" {
		return apperrors.NewValidationError("user id is required", nil)
	}
	if expiresIn <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("credential lifetime must be positive, got %s", expiresIn), nil)
	}

	encrypted, err := s.cipher.Encrypt(secret)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	cred := &models.Credential{
		UserID:         userID,
		EncryptedToken: encrypted,
		ExpiresAt:      now.Add(expiresIn),
		CreatedAt:      now,
	}
	if err := s.repo.ReplaceCredential(ctx, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"expires_at": cred.ExpiresAt.UTC().Format(time.RFC3339),
	}).Info("Stored GitHub credential")
	return nil
}

// GetValid returns the user's decrypted credential. It fails with CREDENTIAL_MISSING when
// none is stored and CREDENTIAL_EXPIRED once the expiry (minus leeway) has been reached.
func (s *Store) GetValid(ctx context.Context, userID string) (string, error) {
	cred, err := s.repo.GetCredential(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return "", apperrors.NewCredentialMissingError(userID)
	}
	if cred.Expired(s.clock.Now().Add(s.leeway)) {
		return "", apperrors.NewCredentialExpiredError(userID, cred.ExpiresAt)
	}

	return s.cipher.Decrypt(cred.EncryptedToken)
}

// HasValid reports whether GetValid would succeed.
func (s *Store) HasValid(ctx context.Context, userID string) bool {
	_, err := s.GetValid(ctx, userID)
	return err == nil
}

// Delete removes the user's credential (logout or explicit invalidation).
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCredentials(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	s.logger.WithField("user_id", userID).Info("Deleted GitHub credential")
	return nil
}
