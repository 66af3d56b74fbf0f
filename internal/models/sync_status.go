package models

import "time"

// RepositorySyncResult is the outcome of syncing one repository's commit history.
type RepositorySyncResult struct {
	RepositoryID     string `json:"repository_id"`
	FullName         string `json:"full_name"`
	CommitsTracked   int    `json:"commits_tracked"`
	DaysWithActivity int    `json:"days_with_activity"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Failed reports whether the repository sync ended in an error.
func (r RepositorySyncResult) Failed() bool {
	return r.Error != ""
}

// SyncSummary aggregates per-repository results for one user (or all users).
type SyncSummary struct {
	UserID              string                 `json:"user_id,omitempty"`
	Results             []RepositorySyncResult `json:"results"`
	SuccessCount        int                    `json:"success_count"`
	ErrorCount          int                    `json:"error_count"`
	TotalCommitsTracked int                    `json:"total_commits_tracked"`
	StartedAt           time.Time              `json:"started_at"`
	FinishedAt          time.Time              `json:"finished_at"`
}

// Add records a result and updates the totals.
func (s *SyncSummary) Add(r RepositorySyncResult) {
	s.Results = append(s.Results, r)
	if r.Failed() {
		s.ErrorCount++
		return
	}
	s.SuccessCount++
	s.TotalCommitsTracked += r.CommitsTracked
}
