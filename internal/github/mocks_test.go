package github

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/starred-sync/internal/db"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

type mockRepoClient struct {
	mock.Mock
}

func (m *mockRepoClient) FetchStarredRepositories(ctx context.Context, credential string) ([]StarredRepo, error) {
	args := m.Called(ctx, credential)
	repos, _ := args.Get(0).([]StarredRepo)
	return repos, args.Error(1)
}

type mockCommitClient struct {
	mock.Mock
}

func (m *mockCommitClient) FetchCommitsByDate(ctx context.Context, credential, fullName string, since *time.Time, until time.Time) (map[models.Date]int, error) {
	args := m.Called(ctx, credential, fullName, since, until)
	days, _ := args.Get(0).(map[models.Date]int)
	return days, args.Error(1)
}

type mockRepositoryService struct {
	mock.Mock
}

func (m *mockRepositoryService) Reconcile(ctx context.Context, userID, credential string) ([]*models.StarredRepository, error) {
	args := m.Called(ctx, userID, credential)
	repos, _ := args.Get(0).([]*models.StarredRepository)
	return repos, args.Error(1)
}

func (m *mockRepositoryService) GetStarredRepositories(ctx context.Context, userID string) ([]*models.StarredRepository, error) {
	args := m.Called(ctx, userID)
	repos, _ := args.Get(0).([]*models.StarredRepository)
	return repos, args.Error(1)
}

type mockCommitService struct {
	mock.Mock
}

func (m *mockCommitService) SyncRepository(ctx context.Context, repo *models.StarredRepository, credential string, asOf time.Time) (models.RepositorySyncResult, error) {
	args := m.Called(ctx, repo, credential, asOf)
	return args.Get(0).(models.RepositorySyncResult), args.Error(1)
}

func (m *mockCommitService) SyncAllForUser(ctx context.Context, userID, credential string) (*models.SyncSummary, error) {
	args := m.Called(ctx, userID, credential)
	summary, _ := args.Get(0).(*models.SyncSummary)
	return summary, args.Error(1)
}

type mockCredentials struct {
	mock.Mock
}

func (m *mockCredentials) GetValid(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func setupStore(t *testing.T) (*db.SQLStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	store, err := db.NewSQLiteStore(":memory:", db.WithClock(clock), db.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func createUser(t *testing.T, store db.Store, githubID int64, login string) *models.User {
	t.Helper()
	u := &models.User{GitHubID: githubID, Login: login}
	require.NoError(t, store.UpsertUser(context.Background(), u))
	return u
}

func createRepo(t *testing.T, store db.Store, userID, repoID, fullName string) *models.StarredRepository {
	t.Helper()
	r := &models.StarredRepository{RepoID: repoID, Name: fullName, FullName: fullName, URL: "https://github.com/" + fullName, UserID: userID}
	require.NoError(t, store.UpsertStarredRepository(context.Background(), r))
	return r
}
