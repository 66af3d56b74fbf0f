package models

// StarredRepository is a GitHub repository starred by the owning user.
// RepoID is GitHub's repository id and is unique across all users.
type StarredRepository struct {
	BaseModel
	RepoID       string        `json:"repo_id"`
	Name         string        `json:"name"`
	FullName     string        `json:"full_name"`
	Description  *string       `json:"description"`
	URL          string        `json:"url"`
	UserID       string        `json:"user_id"`
	CommitCounts []CommitCount `json:"commit_counts,omitempty"`
}
