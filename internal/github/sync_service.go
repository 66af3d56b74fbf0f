package github

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Kamar-Folarin/starred-sync/internal/config"
	"github.com/Kamar-Folarin/starred-sync/internal/db"
	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/metrics"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// SyncServiceImpl implements the SyncService interface. Scheduled runs process users one
// at a time; every sync of a given user, scheduled or background, holds that user's lock.
type SyncServiceImpl struct {
	store         db.Store
	credentials   CredentialProvider
	repoService   RepositoryService
	commitService CommitService
	config        *config.SyncConfig
	clock         clockwork.Clock
	logger        *logrus.Logger

	running   atomic.Bool
	userLocks keyedMutex
	bgGroup   singleflight.Group
	bgWG      sync.WaitGroup

	// bgMu orders bgWG.Add against Stop's Wait.
	bgMu     sync.Mutex
	bgClosed bool

	baseCtx   context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	loopDone  chan struct{}
}

// NewSyncService creates a new sync service
func NewSyncService(
	store db.Store,
	credentials CredentialProvider,
	repoService RepositoryService,
	commitService CommitService,
	cfg *config.SyncConfig,
	clock clockwork.Clock,
	logger *logrus.Logger,
) *SyncServiceImpl {
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncServiceImpl{
		store:         store,
		credentials:   credentials,
		repoService:   repoService,
		commitService: commitService,
		config:        cfg,
		clock:         clock,
		logger:        logger,
		userLocks:     keyedMutex{locks: make(map[string]*keyedLock)},
		baseCtx:       ctx,
		cancel:        cancel,
		loopDone:      make(chan struct{}),
	}
}

// Start launches the sync loop: an optional immediate run, then one run per interval.
// Runs execute on the loop goroutine, so a slow run delays the next instead of overlapping it.
func (s *SyncServiceImpl) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		stopAfter := context.AfterFunc(s.baseCtx, cancel)
		go func() {
			defer cancel()
			defer stopAfter()
			s.loop(loopCtx)
		}()
	})
}

func (s *SyncServiceImpl) loop(ctx context.Context) {
	defer close(s.loopDone)

	s.logger.WithFields(logrus.Fields{
		"interval":   s.config.Interval.String(),
		"on_startup": s.config.RunOnStartup,
	}).Info("Starting sync scheduler")

	if s.config.RunOnStartup {
		s.tick(ctx)
	}

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopped")
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *SyncServiceImpl) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Sync tick panicked")
		}
	}()

	start := s.clock.Now()
	ran, err := s.RunOnce(ctx)
	if !ran {
		return
	}
	metrics.SchedulerTickDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		s.logger.WithError(err).Error("Scheduled sync failed")
	}
}

// Stop cancels the loop and any background syncs and waits for them to return.
func (s *SyncServiceImpl) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.bgMu.Lock()
		s.bgClosed = true
		s.bgMu.Unlock()

		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.loopDone
		}
		s.bgWG.Wait()
	})
}

// RunOnce syncs every user holding a credential, one after another. A run already in
// progress makes it return (false, nil) without doing anything. Per-user failures are
// logged and skipped; only failing to list users is returned.
func (s *SyncServiceImpl) RunOnce(ctx context.Context) (bool, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SchedulerTicksSkippedTotal.Inc()
		s.logger.Warn("Previous sync run still in progress, skipping")
		return false, nil
	}
	defer s.running.Store(false)

	users, err := s.store.ListUsersWithCredentials(ctx)
	if err != nil {
		return true, fmt.Errorf("failed to list users: %w", err)
	}

	s.logger.WithField("users", len(users)).Info("Starting scheduled sync")
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return true, err
		}

		log := s.logger.WithFields(logrus.Fields{"user_id": user.ID, "login": user.Login})
		summary, err := s.SyncUser(ctx, user.ID)
		switch {
		case apperrors.IsCredentialError(err):
			metrics.UserSyncsTotal.WithLabelValues("scheduled", "skipped").Inc()
			log.WithError(err).Warn("Skipping user without a usable credential")
		case err != nil:
			metrics.UserSyncsTotal.WithLabelValues("scheduled", "error").Inc()
			log.WithError(err).Error("Failed to sync user")
		default:
			metrics.UserSyncsTotal.WithLabelValues("scheduled", "success").Inc()
			log.WithFields(logrus.Fields{
				"repositories":    len(summary.Results),
				"errors":          summary.ErrorCount,
				"commits_tracked": summary.TotalCommitsTracked,
			}).Info("User sync completed")
		}
	}

	return true, nil
}

// SyncUser reconciles the user's starred repositories and then syncs their commit history.
func (s *SyncServiceImpl) SyncUser(ctx context.Context, userID string) (*models.SyncSummary, error) {
	unlock := s.userLocks.Lock(userID)
	defer unlock()

	credential, err := s.credentials.GetValid(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repoService.Reconcile(ctx, userID, credential); err != nil {
		return nil, fmt.Errorf("failed to reconcile starred repositories: %w", err)
	}

	return s.commitService.SyncAllForUser(ctx, userID, credential)
}

// TriggerBackgroundSync starts a detached commit history sync for the user and returns
// immediately. Concurrent triggers for the same user share one run. Failures are logged only.
func (s *SyncServiceImpl) TriggerBackgroundSync(userID string) {
	s.bgMu.Lock()
	if s.bgClosed || s.baseCtx.Err() != nil {
		s.bgMu.Unlock()
		return
	}
	s.bgWG.Add(1)
	s.bgMu.Unlock()

	go func() {
		defer s.bgWG.Done()
		log := s.logger.WithFields(logrus.Fields{"user_id": userID, "trigger": "background"})
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Background sync panicked")
			}
		}()

		v, err, shared := s.bgGroup.Do(userID, func() (any, error) {
			ctx, cancel := context.WithTimeout(s.baseCtx, s.config.BackgroundTimeout)
			defer cancel()
			return s.syncCommits(ctx, userID)
		})
		if shared {
			return
		}
		if err != nil {
			metrics.UserSyncsTotal.WithLabelValues("background", "error").Inc()
			log.WithError(err).Error("Background sync failed")
			return
		}

		summary := v.(*models.SyncSummary)
		metrics.UserSyncsTotal.WithLabelValues("background", "success").Inc()
		log.WithFields(logrus.Fields{
			"repositories":    len(summary.Results),
			"errors":          summary.ErrorCount,
			"commits_tracked": summary.TotalCommitsTracked,
		}).Info("Background sync completed")
	}()
}

func (s *SyncServiceImpl) syncCommits(ctx context.Context, userID string) (*models.SyncSummary, error) {
	unlock := s.userLocks.Lock(userID)
	defer unlock()

	credential, err := s.credentials.GetValid(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.commitService.SyncAllForUser(ctx, userID, credential)
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
