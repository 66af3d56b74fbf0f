package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GitHubError is a non-2xx response or a transport failure talking to GitHub.
// StatusCode is 0 for transport failures.
type GitHubError struct {
	StatusCode int
	Message    string
	// Body is the raw response body. It is kept for logs and must not reach API clients.
	Body string
	Err  error
}

func (e *GitHubError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub API error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GitHubError) Unwrap() error {
	return e.Err
}

// NewGitHubError creates a new GitHubError with the given status code and message
func NewGitHubError(statusCode int, message string, err error) *GitHubError {
	return &GitHubError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// newResponseError builds a GitHubError from a response body, using GitHub's
// {"message": ...} field when present.
func newResponseError(statusCode int, body []byte) *GitHubError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}
	return &GitHubError{
		StatusCode: statusCode,
		Message:    msg,
		Body:       string(body),
	}
}

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	var ghErr *GitHubError
	return errors.As(err, &ghErr) && ghErr.StatusCode == http.StatusNotFound
}

// IsEmptyRepository reports whether err is GitHub's 409 for a repository with no commits.
func IsEmptyRepository(err error) bool {
	var ghErr *GitHubError
	return errors.As(err, &ghErr) && ghErr.StatusCode == http.StatusConflict &&
		strings.Contains(strings.ToLower(ghErr.Message), "repository is empty")
}

type limitKind int

const (
	limitNone limitKind = iota
	limitPrimary
	limitSecondary
)

// classifyLimit tells primary quota exhaustion from secondary (abuse) limits.
func classifyLimit(e *GitHubError) limitKind {
	if e.StatusCode != http.StatusForbidden && e.StatusCode != http.StatusTooManyRequests {
		return limitNone
	}
	text := strings.ToLower(e.Message + " " + e.Body)
	switch {
	case strings.Contains(text, "secondary rate limit"):
		return limitSecondary
	case strings.Contains(text, "rate limit exceeded"):
		return limitPrimary
	default:
		return limitNone
	}
}
