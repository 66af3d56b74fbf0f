package github

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/starred-sync/internal/credential"
	"github.com/Kamar-Folarin/starred-sync/internal/crypto"
)

// TestSyncPipeline drives a full user sync against a fake GitHub API: credential lookup,
// starred reconciliation, then commit history.
func TestSyncPipeline(t *testing.T) {
	ctx := context.Background()
	store, clock := setupStore(t)
	logger := quietLogger()

	cipher, err := crypto.NewAESCipher("pipeline-secret")
	require.NoError(t, err)
	creds := credential.NewStore(store, cipher, clock, credential.WithLogger(logger))

	starredCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/user/starred", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token gho_pipeline", r.Header.Get("Authorization"))
		starredCalls++
		if starredCalls == 1 {
			writeJSON(w, http.StatusOK, `[
				{"id": 1, "name": "a", "full_name": "octo/a", "html_url": "https://github.com/octo/a"},
				{"id": 2, "name": "b", "full_name": "octo/b", "html_url": "https://github.com/octo/b"}
			]`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id": 1, "name": "a", "full_name": "octo/a", "html_url": "https://github.com/octo/a"}]`)
	})
	mux.HandleFunc("/repos/octo/a/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("since") != "" {
			writeJSON(w, http.StatusOK, `[]`)
			return
		}
		writeJSON(w, http.StatusOK, `[
			{"sha": "1", "commit": {"author": {"date": "2024-01-08T09:00:00Z"}}},
			{"sha": "2", "commit": {"author": {"date": "2024-01-08T18:00:00Z"}}},
			{"sha": "3", "commit": {"author": {"date": "2024-01-09T07:00:00Z"}}}
		]`)
	})
	mux.HandleFunc("/repos/octo/b/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message": "Not Found"}`)
	})

	client, _ := setupTestClient(t, mux)
	repoSvc := NewRepositoryService(client, store, logger)
	commitSvc := NewCommitService(client, store, testSyncConfig(), clock, logger)
	syncSvc := NewSyncService(store, creds, repoSvc, commitSvc, testSyncConfig(), clock, logger)
	t.Cleanup(syncSvc.Stop)

	user := createUser(t, store, 42, "octocat")
	require.NoError(t, creds.Save(ctx, user.ID, "gho_pipeline", time.Hour))

	summary, err := syncSvc.SyncUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 3, summary.TotalCommitsTracked)

	repos, err := repoSvc.GetStarredRepositories(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "octo/a", repos[0].FullName)
	require.Len(t, repos[0].CommitCounts, 2)
	assert.Equal(t, "2024-01-09", repos[0].CommitCounts[0].Date.String())
	assert.Equal(t, 1, repos[0].CommitCounts[0].Count)
	assert.Equal(t, 2, repos[0].CommitCounts[1].Count)
	assert.Empty(t, repos[1].CommitCounts)

	// octo/b was unstarred; the second run resumes octo/a after its last day.
	summary, err = syncSvc.SyncUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCommitsTracked)

	repos, err = repoSvc.GetStarredRepositories(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Len(t, repos[0].CommitCounts, 2)

	// An expired credential stops the sync before GitHub is contacted.
	clock.Advance(2 * time.Hour)
	_, err = syncSvc.SyncUser(ctx, user.ID)
	require.Error(t, err)
	assert.Equal(t, 2, starredCalls)
}
