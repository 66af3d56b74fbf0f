package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/Kamar-Folarin/starred-sync/internal/auth"
	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/github"
	"github.com/Kamar-Folarin/starred-sync/internal/models"
)

const (
	loginPath       = "/api/v1/auth/github/login"
	stateCookie     = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
	stateCookiePath = "/api/v1/auth/github"
)

// UserStore is the user persistence the handlers need.
type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	Ping(ctx context.Context) error
}

// CredentialStore keeps the GitHub access token of each user.
type CredentialStore interface {
	Save(ctx context.Context, userID, secret string, expiresIn time.Duration) error
	GetValid(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// OAuthProvider runs the GitHub login flow.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, *auth.GitHubUser, error)
}

type Handler struct {
	repoService   github.RepositoryService
	syncService   github.SyncService
	credentials   CredentialStore
	users         UserStore
	tokens        *auth.TokenService
	oauth         OAuthProvider
	credentialTTL time.Duration
	clock         clockwork.Clock
	logger        *logrus.Logger
}

// NewHandler wires the HTTP handlers. oauth may be nil when the login flow is not configured.
func NewHandler(
	repoService github.RepositoryService,
	syncService github.SyncService,
	credentials CredentialStore,
	users UserStore,
	tokens *auth.TokenService,
	oauth OAuthProvider,
	credentialTTL time.Duration,
	clock clockwork.Clock,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		repoService:   repoService,
		syncService:   syncService,
		credentials:   credentials,
		users:         users,
		tokens:        tokens,
		oauth:         oauth,
		credentialTTL: credentialTTL,
		clock:         clock,
		logger:        logger,
	}
}

// Health reports whether the database is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.users.Ping(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Login redirects to GitHub's consent screen.
func (h *Handler) Login(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "GitHub login is not configured"})
		return
	}

	state := auth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateCookieTTL.Seconds()), stateCookiePath, "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthURL(state))
}

// Callback completes the login: it verifies state, exchanges the code, stores the user
// and their GitHub credential, and returns a session token.
func (h *Handler) Callback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "GitHub login is not configured"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "authorization code is required"})
		return
	}
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid OAuth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, stateCookiePath, "", c.Request.TLS != nil, true)

	ctx := c.Request.Context()
	token, ghUser, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.logger.WithError(err).Warn("GitHub login failed")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication failed"})
		return
	}

	user := &models.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := h.users.UpsertUser(ctx, user); err != nil {
		h.respondError(c, err, "failed to save user")
		return
	}

	if err := h.credentials.Save(ctx, user.ID, token.AccessToken, h.credentialLifetime(token)); err != nil {
		h.respondError(c, err, "failed to save credential")
		return
	}

	session, expiresAt, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.respondError(c, err, "failed to issue session")
		return
	}

	h.logger.WithFields(logrus.Fields{"user_id": user.ID, "login": user.Login}).Info("User logged in")
	h.syncService.TriggerBackgroundSync(user.ID)

	c.JSON(http.StatusOK, LoginResponse{User: user, Token: session, ExpiresAt: expiresAt})
}

// credentialLifetime uses the token's own expiry when GitHub sets one.
func (h *Handler) credentialLifetime(token *oauth2.Token) time.Duration {
	if !token.Expiry.IsZero() {
		if d := token.Expiry.Sub(h.clock.Now()); d > 0 {
			return d
		}
	}
	return h.credentialTTL
}

// Logout forgets the user's GitHub credential.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.credentials.Delete(c.Request.Context(), currentUserID(c)); err != nil {
		h.respondError(c, err, "failed to log out")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetStarredRepositories reconciles the user's starred set with GitHub, returns it with the
// recorded commit counts and starts a commit history sync in the background.
func (h *Handler) GetStarredRepositories(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	credential, err := h.credentials.GetValid(ctx, userID)
	if err != nil {
		h.respondError(c, err, "failed to load GitHub credential")
		return
	}

	if _, err := h.repoService.Reconcile(ctx, userID, credential); err != nil {
		h.respondError(c, err, "failed to sync starred repositories")
		return
	}

	repos, err := h.repoService.GetStarredRepositories(ctx, userID)
	if err != nil {
		h.respondError(c, err, "failed to list starred repositories")
		return
	}

	h.syncService.TriggerBackgroundSync(userID)

	if repos == nil {
		repos = []*models.StarredRepository{}
	}
	c.JSON(http.StatusOK, StarredRepositoriesResponse{Repositories: repos, Count: len(repos)})
}

// SyncStarredRepositories runs a full sync for the user and returns its summary.
func (h *Handler) SyncStarredRepositories(c *gin.Context) {
	summary, err := h.syncService.SyncUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err, "failed to sync commit history")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// TriggerSync starts a background commit history sync.
func (h *Handler) TriggerSync(c *gin.Context) {
	userID := currentUserID(c)
	if _, err := h.credentials.GetValid(c.Request.Context(), userID); err != nil {
		h.respondError(c, err, "failed to load GitHub credential")
		return
	}

	h.syncService.TriggerBackgroundSync(userID)
	c.JSON(http.StatusAccepted, StatusResponse{Status: "sync started"})
}

// respondError maps err onto a status code. Details of upstream failures are logged,
// never returned.
func (h *Handler) respondError(c *gin.Context, err error, message string) {
	log := h.logger.WithError(err).WithField("user_id", currentUserID(c))

	switch {
	case apperrors.IsCredentialError(err):
		log.Info("GitHub credential unusable, asking for re-authorization")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:       "GitHub authorization required",
			Reauthorize: true,
			AuthURL:     loginPath,
		})
	case apperrors.IsRateLimit(err) || apperrors.IsRetriesExhausted(err):
		log.Warn("GitHub rate limit exhausted")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "GitHub rate limit exceeded, try again later"})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case apperrors.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
	default:
		log.Error(message)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: message})
	}
}
