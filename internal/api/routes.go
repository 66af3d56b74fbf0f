package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/auth"
)

// SetupRouter configures the API routes
func SetupRouter(h *Handler, tokens *auth.TokenService, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.GET("/github/login", h.Login)
			authGroup.GET("/github/callback", h.Callback)
			authGroup.POST("/logout", RequireAuth(tokens), h.Logout)
			authGroup.GET("/me", RequireAuth(tokens), h.Me)
		}

		repositories := v1.Group("/repositories", RequireAuth(tokens))
		{
			repositories.GET("/starred", h.GetStarredRepositories)
			repositories.POST("/starred/sync", h.SyncStarredRepositories)
		}

		v1.POST("/sync", RequireAuth(tokens), h.TriggerSync)
	}

	return r
}

// WithCORS lets the browser frontend at origins call the API with credentials.
func WithCORS(handler http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	}).Handler(handler)
}
