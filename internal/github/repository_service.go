package github

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/db"
	"github.com/Kamar-Folarin/starred-sync/internal/metrics"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// RepositoryServiceClient defines the GitHub API client interface for repository operations
type RepositoryServiceClient interface {
	FetchStarredRepositories(ctx context.Context, credential string) ([]StarredRepo, error)
}

// RepositoryServiceImpl implements the RepositoryService interface
type RepositoryServiceImpl struct {
	client RepositoryServiceClient
	store  db.Store
	logger *logrus.Logger
}

// NewRepositoryService creates a new repository service
func NewRepositoryService(client RepositoryServiceClient, store db.Store, logger *logrus.Logger) *RepositoryServiceImpl {
	return &RepositoryServiceImpl{
		client: client,
		store:  store,
		logger: logger,
	}
}

// Reconcile makes the user's stored starred repositories equal GitHub's current starred set:
// rows no longer starred are deleted, every starred repository is upserted by its GitHub id.
// A GitHub id already tracked for another user aborts with a DATA_INTEGRITY error.
func (s *RepositoryServiceImpl) Reconcile(ctx context.Context, userID, credential string) ([]*models.StarredRepository, error) {
	remote, err := s.client.FetchStarredRepositories(ctx, credential)
	if err != nil {
		return nil, err
	}

	// The same repository may show up on two pages if stars change mid-pagination.
	order := make([]string, 0, len(remote))
	byID := make(map[string]StarredRepo, len(remote))
	for _, r := range remote {
		id := r.ExternalID()
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = r
	}

	local, err := s.store.ListStarredRepositories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load starred repositories: %w", err)
	}

	var toRemove []string
	for _, repo := range local {
		if _, ok := byID[repo.RepoID]; !ok {
			toRemove = append(toRemove, repo.ID)
		}
	}

	log := s.logger.WithField("user_id", userID)
	if len(toRemove) > 0 {
		removed, err := s.store.DeleteStarredRepositories(ctx, toRemove)
		if err != nil {
			log.WithError(err).Errorf("Failed to remove %d unstarred repositories, continuing", len(toRemove))
		} else {
			metrics.ReconciledRepositoriesTotal.WithLabelValues("removed").Add(float64(removed))
		}
	}

	saved := make([]*models.StarredRepository, 0, len(order))
	for _, id := range order {
		repo := byID[id].toModel(userID)
		if err := s.store.UpsertStarredRepository(ctx, repo); err != nil {
			return nil, fmt.Errorf("failed to save starred repository %s: %w", repo.FullName, err)
		}
		saved = append(saved, repo)
	}
	metrics.ReconciledRepositoriesTotal.WithLabelValues("upserted").Add(float64(len(saved)))

	log.WithFields(logrus.Fields{
		"starred": len(saved),
		"removed": len(toRemove),
	}).Info("Reconciled starred repositories")

	return saved, nil
}

// GetStarredRepositories returns the stored repositories with their daily commit counts.
func (s *RepositoryServiceImpl) GetStarredRepositories(ctx context.Context, userID string) ([]*models.StarredRepository, error) {
	repos, err := s.store.ListStarredRepositoriesWithCommits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list starred repositories: %w", err)
	}
	return repos, nil
}
