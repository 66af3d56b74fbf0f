package models

import "time"

// User is a local account bound 1:1 to a GitHub account.
type User struct {
	BaseModel
	GitHubID  int64  `json:"github_id"`
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Credential is the encrypted GitHub access token held for a user.
// At most one exists per user.
type Credential struct {
	ID             string    `json:"-"`
	UserID         string    `json:"-"`
	EncryptedToken string    `json:"-"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Expired reports whether the credential is no longer usable at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
