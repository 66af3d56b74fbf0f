package github

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/starred-sync/internal/db"
	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

type syncFixture struct {
	store   *db.SQLStore
	creds   *mockCredentials
	repos   *mockRepositoryService
	commits *mockCommitService
	service *SyncServiceImpl
}

func setupSyncService(t *testing.T) *syncFixture {
	t.Helper()
	store, clock := setupStore(t)
	f := &syncFixture{
		store:   store,
		creds:   new(mockCredentials),
		repos:   new(mockRepositoryService),
		commits: new(mockCommitService),
	}
	f.service = NewSyncService(store, f.creds, f.repos, f.commits, testSyncConfig(), clock, quietLogger())
	t.Cleanup(f.service.Stop)
	return f
}

// addUser creates a user that holds a stored credential.
func (f *syncFixture) addUser(t *testing.T, githubID int64, login string) *models.User {
	t.Helper()
	u := createUser(t, f.store, githubID, login)
	require.NoError(t, f.store.ReplaceCredential(context.Background(), &models.Credential{
		UserID:         u.ID,
		EncryptedToken: "sealed",
		ExpiresAt:      testEpoch.Add(time.Hour),
	}))
	return u
}

func TestSyncService_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("syncs every user", func(t *testing.T) {
		f := setupSyncService(t)
		alice := f.addUser(t, 1, "alice")
		bob := f.addUser(t, 2, "bob")
		createUser(t, f.store, 3, "no-credential")

		for _, u := range []*models.User{alice, bob} {
			f.creds.On("GetValid", mock.Anything, u.ID).Return("tok-"+u.Login, nil)
			f.repos.On("Reconcile", mock.Anything, u.ID, "tok-"+u.Login).Return([]*models.StarredRepository{}, nil)
			f.commits.On("SyncAllForUser", mock.Anything, u.ID, "tok-"+u.Login).Return(&models.SyncSummary{UserID: u.ID}, nil)
		}

		ran, err := f.service.RunOnce(ctx)
		require.NoError(t, err)
		assert.True(t, ran)
		f.creds.AssertExpectations(t)
		f.repos.AssertExpectations(t)
		f.commits.AssertExpectations(t)
	})

	t.Run("user without a usable credential is skipped", func(t *testing.T) {
		f := setupSyncService(t)
		alice := f.addUser(t, 1, "alice")
		bob := f.addUser(t, 2, "bob")

		f.creds.On("GetValid", mock.Anything, alice.ID).Return("", apperrors.NewCredentialExpiredError(alice.ID, testEpoch))
		f.creds.On("GetValid", mock.Anything, bob.ID).Return("tok", nil)
		f.repos.On("Reconcile", mock.Anything, bob.ID, "tok").Return([]*models.StarredRepository{}, nil)
		f.commits.On("SyncAllForUser", mock.Anything, bob.ID, "tok").Return(&models.SyncSummary{UserID: bob.ID}, nil)

		ran, err := f.service.RunOnce(ctx)
		require.NoError(t, err)
		assert.True(t, ran)
		f.repos.AssertNotCalled(t, "Reconcile", mock.Anything, alice.ID, mock.Anything)
		f.commits.AssertExpectations(t)
	})

	t.Run("reconcile failure skips commit sync for that user only", func(t *testing.T) {
		f := setupSyncService(t)
		alice := f.addUser(t, 1, "alice")
		bob := f.addUser(t, 2, "bob")

		f.creds.On("GetValid", mock.Anything, mock.Anything).Return("tok", nil)
		f.repos.On("Reconcile", mock.Anything, alice.ID, "tok").Return(nil, apperrors.NewDataIntegrityError("owned elsewhere", nil))
		f.repos.On("Reconcile", mock.Anything, bob.ID, "tok").Return([]*models.StarredRepository{}, nil)
		f.commits.On("SyncAllForUser", mock.Anything, bob.ID, "tok").Return(&models.SyncSummary{UserID: bob.ID}, nil)

		ran, err := f.service.RunOnce(ctx)
		require.NoError(t, err)
		assert.True(t, ran)
		f.commits.AssertNotCalled(t, "SyncAllForUser", mock.Anything, alice.ID, mock.Anything)
		f.commits.AssertExpectations(t)
	})

	t.Run("overlapping run is skipped", func(t *testing.T) {
		f := setupSyncService(t)
		alice := f.addUser(t, 1, "alice")

		started := make(chan struct{})
		release := make(chan struct{})
		f.creds.On("GetValid", mock.Anything, alice.ID).Return("tok", nil)
		f.repos.On("Reconcile", mock.Anything, alice.ID, "tok").
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return([]*models.StarredRepository{}, nil).Once()
		f.commits.On("SyncAllForUser", mock.Anything, alice.ID, "tok").Return(&models.SyncSummary{}, nil)

		done := make(chan bool)
		go func() {
			ran, _ := f.service.RunOnce(ctx)
			done <- ran
		}()

		<-started
		ran, err := f.service.RunOnce(ctx)
		require.NoError(t, err)
		assert.False(t, ran)

		close(release)
		assert.True(t, <-done)
		f.repos.AssertNumberOfCalls(t, "Reconcile", 1)
	})
}

func TestSyncService_SyncUser(t *testing.T) {
	f := setupSyncService(t)
	alice := f.addUser(t, 1, "alice")

	f.creds.On("GetValid", mock.Anything, alice.ID).Return("", apperrors.NewCredentialMissingError(alice.ID))

	_, err := f.service.SyncUser(context.Background(), alice.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCredentialError(err))
	f.repos.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_TriggerBackgroundSync(t *testing.T) {
	t.Run("concurrent triggers share one run", func(t *testing.T) {
		f := setupSyncService(t)
		alice := f.addUser(t, 1, "alice")

		release := make(chan struct{})
		var calls atomic.Int32
		f.creds.On("GetValid", mock.Anything, alice.ID).Return("tok", nil)
		f.commits.On("SyncAllForUser", mock.Anything, alice.ID, "tok").
			Run(func(mock.Arguments) {
				calls.Add(1)
				<-release
			}).
			Return(&models.SyncSummary{UserID: alice.ID}, nil)

		f.service.TriggerBackgroundSync(alice.ID)
		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		f.service.TriggerBackgroundSync(alice.ID)
		time.Sleep(50 * time.Millisecond)
		close(release)

		f.service.Stop()
		assert.Equal(t, int32(1), calls.Load())
		f.repos.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failures are only logged", func(t *testing.T) {
		f := setupSyncService(t)
		f.creds.On("GetValid", mock.Anything, "ghost").Return("", apperrors.NewCredentialMissingError("ghost"))

		f.service.TriggerBackgroundSync("ghost")
		f.service.Stop()
		f.creds.AssertExpectations(t)
		f.commits.AssertNotCalled(t, "SyncAllForUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no-op after stop", func(t *testing.T) {
		f := setupSyncService(t)
		f.service.Stop()
		f.service.TriggerBackgroundSync("anyone")
		f.creds.AssertNotCalled(t, "GetValid", mock.Anything, mock.Anything)
	})

	t.Run("triggers racing stop never outlive it", func(t *testing.T) {
		f := setupSyncService(t)
		f.creds.On("GetValid", mock.Anything, mock.Anything).Return("tok", nil)
		var stopped, late atomic.Bool
		f.commits.On("SyncAllForUser", mock.Anything, mock.Anything, "tok").
			Run(func(mock.Arguments) {
				if stopped.Load() {
					late.Store(true)
				}
			}).
			Return(&models.SyncSummary{}, nil)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				f.service.TriggerBackgroundSync(fmt.Sprintf("user-%d", i))
			}(i)
		}
		f.service.Stop()
		stopped.Store(true)
		wg.Wait()
		time.Sleep(20 * time.Millisecond)

		assert.False(t, late.Load(), "a background sync ran after Stop returned")
	})

	t.Run("bounded by the background timeout", func(t *testing.T) {
		f := setupSyncService(t)
		f.creds.On("GetValid", mock.Anything, "slow").Return("tok", nil)
		var deadline atomic.Bool
		f.commits.On("SyncAllForUser", mock.Anything, "slow", "tok").
			Run(func(args mock.Arguments) {
				_, ok := args.Get(0).(context.Context).Deadline()
				deadline.Store(ok)
			}).
			Return(&models.SyncSummary{}, nil)

		f.service.TriggerBackgroundSync("slow")
		f.service.Stop()
		assert.True(t, deadline.Load())
	})
}

func TestSyncService_StartStop(t *testing.T) {
	store, clock := setupStore(t)
	creds := new(mockCredentials)
	repos := new(mockRepositoryService)
	commits := new(mockCommitService)
	svc := NewSyncService(store, creds, repos, commits, testSyncConfig(), clock, quietLogger())

	u := createUser(t, store, 1, "alice")
	require.NoError(t, store.ReplaceCredential(context.Background(), &models.Credential{UserID: u.ID, EncryptedToken: "x", ExpiresAt: testEpoch.Add(time.Hour)}))

	synced := make(chan struct{}, 4)
	creds.On("GetValid", mock.Anything, u.ID).Return("tok", nil)
	repos.On("Reconcile", mock.Anything, u.ID, "tok").Return([]*models.StarredRepository{}, nil)
	commits.On("SyncAllForUser", mock.Anything, u.ID, "tok").
		Run(func(mock.Arguments) { synced <- struct{}{} }).
		Return(&models.SyncSummary{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc.Start(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	select {
	case <-synced:
		t.Fatal("sync ran before the first tick")
	default:
	}

	clock.Advance(time.Hour)
	select {
	case <-synced:
	case <-ctx.Done():
		t.Fatal("scheduled sync did not run")
	}

	svc.Stop()
	commits.AssertNumberOfCalls(t, "SyncAllForUser", 1)
}
