package github

import (
	"strconv"

	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// StarredRepo is an item of GET /user/starred.
type StarredRepo struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	HTMLURL     string  `json:"html_url"`
}

// ExternalID is the repository id as stored locally.
func (r StarredRepo) ExternalID() string {
	return strconv.FormatInt(r.ID, 10)
}

// toModel binds the remote repository to a local user.
func (r StarredRepo) toModel(userID string) *models.StarredRepository {
	return &models.StarredRepository{
		RepoID:      r.ExternalID(),
		Name:        r.Name,
		FullName:    r.FullName,
		Description: r.Description,
		URL:         r.HTMLURL,
		UserID:      userID,
	}
}

// Commit is an item of GET /repos/{owner}/{repo}/commits. Only the author date is used.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author *struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}
