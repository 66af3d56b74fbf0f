package github

import (
	"context"
	"time"

	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// RepositoryService defines the interface for starred repository operations
type RepositoryService interface {
	// Reconcile makes the user's stored starred set equal GitHub's current starred set
	Reconcile(ctx context.Context, userID, credential string) ([]*models.StarredRepository, error)

	// GetStarredRepositories returns the stored starred repositories with commit counts
	GetStarredRepositories(ctx context.Context, userID string) ([]*models.StarredRepository, error)
}

// CommitService defines the interface for commit history operations
type CommitService interface {
	// SyncRepository merges the repository's daily commit counts since its last recorded day
	SyncRepository(ctx context.Context, repo *models.StarredRepository, credential string, asOf time.Time) (models.RepositorySyncResult, error)

	// SyncAllForUser syncs every repository of the user, isolating per-repository failures
	SyncAllForUser(ctx context.Context, userID, credential string) (*models.SyncSummary, error)
}

// CredentialProvider returns a usable GitHub credential for a user
type CredentialProvider interface {
	GetValid(ctx context.Context, userID string) (string, error)
}

// SyncService defines the interface for scheduled and on-demand sync operations
type SyncService interface {
	// Start runs the recurring sync loop until ctx is cancelled or Stop is called
	Start(ctx context.Context)

	// Stop stops the loop and waits for in-flight background syncs
	Stop()

	// RunOnce syncs every user holding a credential. It reports false when skipped
	// because another run was in progress
	RunOnce(ctx context.Context) (bool, error)

	// SyncUser reconciles and syncs commit history for one user
	SyncUser(ctx context.Context, userID string) (*models.SyncSummary, error)

	// TriggerBackgroundSync starts a detached commit history sync for the user
	TriggerBackgroundSync(userID string)
}
