package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/batch"
	"github.com/Kamar-Folarin/starred-sync/internal/config"
	"github.com/Kamar-Folarin/starred-sync/internal/db"
	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/metrics"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

const (
	msgNoCommits    = "no commits"
	msgNoNewCommits = "no new commits"
)

// CommitServiceClient defines the GitHub API client interface for commit operations
type CommitServiceClient interface {
	FetchCommitsByDate(ctx context.Context, credential, fullName string, since *time.Time, until time.Time) (map[models.Date]int, error)
}

// CommitServiceImpl implements the CommitService interface
type CommitServiceImpl struct {
	client          CommitServiceClient
	store           db.Store
	processor       *batch.Processor[models.CommitCount]
	initialLookback time.Duration
	clock           clockwork.Clock
	logger          *logrus.Logger
}

// NewCommitService creates a new commit service
func NewCommitService(client CommitServiceClient, store db.Store, cfg *config.SyncConfig, clock clockwork.Clock, logger *logrus.Logger) *CommitServiceImpl {
	return &CommitServiceImpl{
		client:          client,
		store:           store,
		processor:       batch.NewProcessor[models.CommitCount](&cfg.BatchConfig, clock),
		initialLookback: cfg.InitialLookback,
		clock:           clock,
		logger:          logger,
	}
}

// SyncRepository fetches the repository's commits since the day after its last recorded day
// (full history, or the configured lookback, when nothing is recorded) up to asOf and merges
// the per-day counts into the store.
func (s *CommitServiceImpl) SyncRepository(ctx context.Context, repo *models.StarredRepository, credential string, asOf time.Time) (models.RepositorySyncResult, error) {
	result := models.RepositorySyncResult{RepositoryID: repo.ID, FullName: repo.FullName}

	// Read before any write of this run.
	latest, err := s.store.LatestCommitDate(ctx, repo.ID)
	if err != nil {
		return result, fmt.Errorf("failed to determine resume point: %w", err)
	}

	var since *time.Time
	switch {
	case latest != nil:
		resume := latest.AddDays(1).Time()
		since = &resume
	case s.initialLookback > 0:
		start := models.DayOf(asOf.Add(-s.initialLookback)).Time()
		since = &start
	}

	if since != nil && !since.Before(asOf) {
		result.Message = msgNoNewCommits
		return result, nil
	}

	days, err := s.client.FetchCommitsByDate(ctx, credential, repo.FullName, since, asOf)
	if err != nil {
		return result, err
	}

	if len(days) == 0 {
		if latest != nil {
			result.Message = msgNoNewCommits
		} else {
			result.Message = msgNoCommits
		}
		return result, nil
	}

	counts := make([]models.CommitCount, 0, len(days))
	for day, n := range days {
		counts = append(counts, models.CommitCount{RepositoryID: repo.ID, Date: day, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Date.Before(counts[j].Date) })

	// A retried batch re-reports rows it already wrote as unchanged, so written counts are
	// remembered per day rather than summed per call.
	var mu sync.Mutex
	written := make(map[models.Date]int, len(counts))
	err = s.processor.ProcessItems(ctx, counts, func(ctx context.Context, items []models.CommitCount) error {
		for i := range items {
			cc := items[i]
			changed, err := s.store.UpsertCommitCount(ctx, &cc)
			if err != nil {
				return err
			}
			if changed {
				mu.Lock()
				written[cc.Date] = cc.Count
				mu.Unlock()
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to store commit counts: %w", err)
	}

	for _, n := range written {
		result.CommitsTracked += n
	}
	result.DaysWithActivity = len(counts)
	result.Message = fmt.Sprintf("tracked %d commits across %d days", result.CommitsTracked, result.DaysWithActivity)
	return result, nil
}

// SyncAllForUser syncs every stored repository of the user (of all users when userID is
// empty). A failing repository is recorded in the summary and does not stop the others.
func (s *CommitServiceImpl) SyncAllForUser(ctx context.Context, userID, credential string) (*models.SyncSummary, error) {
	repos, err := s.store.ListStarredRepositories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	summary := &models.SyncSummary{UserID: userID, StartedAt: s.clock.Now()}
	log := s.logger.WithField("user_id", userID)

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.clock.Now()
			return summary, err
		}

		result, err := s.SyncRepository(ctx, repo, credential, s.clock.Now())
		if err != nil {
			log.WithFields(logrus.Fields{
				"repository": repo.FullName,
			}).WithError(err).Error("Failed to sync commit history")
			result.Error = describeSyncError(err)
			result.Message = ""
			metrics.RepositorySyncsTotal.WithLabelValues("error").Inc()
		} else {
			metrics.RepositorySyncsTotal.WithLabelValues("success").Inc()
			metrics.CommitsTrackedTotal.Add(float64(result.CommitsTracked))
		}
		summary.Add(result)
	}

	summary.FinishedAt = s.clock.Now()
	log.WithFields(logrus.Fields{
		"success":         summary.SuccessCount,
		"errors":          summary.ErrorCount,
		"commits_tracked": summary.TotalCommitsTracked,
	}).Info("Commit history sync finished")

	return summary, nil
}

// describeSyncError is the caller-facing summary of a repository failure. Provider error
// bodies stay in the logs.
func describeSyncError(err error) string {
	switch {
	case apperrors.IsRetriesExhausted(err) || apperrors.IsRateLimit(err):
		return "GitHub rate limit exhausted, try again later"
	case apperrors.IsCredentialError(err):
		return "GitHub credential is no longer valid"
	case isTimeout(err):
		return "GitHub request timed out"
	default:
		return "failed to sync commit history"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
