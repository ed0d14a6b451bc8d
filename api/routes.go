package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailroomhq/mailroom/api/handlers"
	"github.com/mailroomhq/mailroom/api/middleware"
	"github.com/mailroomhq/mailroom/internal/repository"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	// Health check and status endpoints (no custom context needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.WatchSupervisor))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILROOM-API-KEY",
		ValidAPIKey: apikey,
	})

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware("mailroom")) // Add custom context for all /v1/* endpoints
	api.Use(middleware.TracingMiddleware())                 // Add tracing for all /v1/* endpoints
	{
		// Account endpoints
		accounts := api.Group("/accounts")
		{
			accounts.GET("", handlers.ListAccounts(repos.AccountRepository))
			accounts.POST("", handlers.CreateAccount(repos.AccountRepository, s.CredentialStore))
			accounts.GET("/:id", handlers.GetAccount(repos.AccountRepository))
			accounts.POST("/:id/activate", handlers.ActivateAccount(repos.AccountRepository))
			accounts.DELETE("/:id", handlers.DeleteAccount(repos.AccountRepository, s.SessionRegistry, s.WatchSupervisor))
		}

		// Email endpoints, addressed by "{account_id}:{folder}:{uid}" refs
		emails := api.Group("/emails")
		{
			emails.GET("", handlers.ListEmails(s.SessionRegistry))
			emails.POST("", handlers.SendEmail(repos.AccountRepository, s.SessionRegistry))
			emails.GET("/:ref", handlers.GetEmail(repos.AccountRepository, s.SessionRegistry))
			emails.PUT("/:ref/flags", handlers.SetEmailFlags(repos.AccountRepository, s.SessionRegistry))
			emails.POST("/:ref/move", handlers.MoveEmail(repos.AccountRepository, s.SessionRegistry))
			emails.POST("/:ref/archive", handlers.ArchiveEmail(repos.AccountRepository, s.SessionRegistry))
		}

		// Folder endpoints
		folders := api.Group("/folders")
		{
			folders.GET("/stats", handlers.FolderStats(repos.AccountRepository, s.SessionRegistry))
		}

		// Monitoring endpoints
		monitoring := api.Group("/monitoring")
		{
			monitoring.POST("/:id/start", handlers.StartMonitoring(repos.AccountRepository, s.WatchSupervisor))
			monitoring.POST("/:id/stop", handlers.StopMonitoring(s.WatchSupervisor))
		}
	}
}
