package api

import (
	"time"

	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Reauthorize is set when the stored GitHub credential is missing or expired.
	Reauthorize bool   `json:"reauthorize,omitempty"`
	AuthURL     string `json:"auth_url,omitempty"`
}

// LoginResponse is returned by the OAuth callback.
type LoginResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// StarredRepositoriesResponse lists the user's starred repositories with daily commit counts.
type StarredRepositoriesResponse struct {
	Repositories []*models.StarredRepository `json:"repositories"`
	Count        int                         `json:"count"`
}

// StatusResponse acknowledges an accepted asynchronous request.
type StatusResponse struct {
	Status string `json:"status"`
}
