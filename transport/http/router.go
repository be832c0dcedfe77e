package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cerberus-auth/cerberus/ports"
	"github.com/cerberus-auth/cerberus/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(
	accounts *service.AccountService,
	invalidation *service.InvalidationRepository,
	tokenizer ports.Tokenizer,
	metrics *Metrics,
) *gin.Engine {
	router := gin.Default()
	router.Use(MetricsMiddleware(metrics))

	handlers := NewHandlers(accounts, invalidation, tokenizer, metrics)

	// Surface consumed by the external authorization layer
	tokens := router.Group("/tokens")
	{
		tokens.POST("/verify", handlers.VerifyToken)
	}

	auth := router.Group("/auth")
	{
		auth.POST("/logout", handlers.Logout)
		auth.POST("/logout-all", AuthMiddleware(tokenizer, accounts), handlers.LogoutEverywhere)
	}

	users := router.Group("/users")
	{
		users.POST("", handlers.Register)
		users.POST("/confirm-email", handlers.ConfirmEmail)
		users.POST("/recover-password", handlers.RecoverPassword)
	}

	me := router.Group("/me")
	me.Use(AuthMiddleware(tokenizer, accounts))
	{
		me.POST("/password", handlers.ChangePassword)
		me.PUT("/profile", handlers.UpdateProfile)
	}

	// Administrative surface
	admin := router.Group("/admin/users")
	{
		admin.POST("/:id/activate", handlers.Activate)
		admin.POST("/:id/deactivate", handlers.Deactivate)
		admin.DELETE("/:id", handlers.DeleteAccount)
		admin.GET("/:id/invalidations", handlers.ListInvalidations)
		admin.DELETE("/:id/invalidations", handlers.ClearInvalidations)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
