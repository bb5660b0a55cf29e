package api

import (
	"net/http"

	"receiptradar-backend/internal/auth/delivery"
	authUsecase "receiptradar-backend/internal/auth/usecase"
	purchaseDelivery "receiptradar-backend/internal/purchase/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, authHandler *delivery.AuthHandler, purchaseHandler *purchaseDelivery.PurchaseHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUc), authHandler.Me)
			auth.POST("/google-tokens", delivery.AuthMiddleware(authUc), authHandler.StoreGoogleTokens)
			auth.POST("/imap", delivery.AuthMiddleware(authUc), authHandler.StoreIMAPCredentials)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUc))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Sync routes. The webhook is unauthenticated: mailbox-change pushes
		// carry no user token and identify the account in the payload.
		sync := api.Group("/sync")
		{
			sync.POST("/webhook", purchaseHandler.SyncWebhook)
			sync.POST("/full", delivery.AuthMiddleware(authUc), purchaseHandler.TriggerFullSync)
		}

		// Preference routes (protected)
		preferences := api.Group("/preferences")
		preferences.Use(delivery.AuthMiddleware(authUc))
		{
			preferences.PUT("/sync", authHandler.SetSyncPreference)
		}

		// Purchase read surface (protected)
		drafts := api.Group("/drafts")
		drafts.Use(delivery.AuthMiddleware(authUc))
		{
			drafts.GET("", purchaseHandler.ListDrafts)
			drafts.PATCH("/:id/status", purchaseHandler.UpdateDraftStatus)
		}

		evidence := api.Group("/evidence")
		evidence.Use(delivery.AuthMiddleware(authUc))
		{
			evidence.GET("", purchaseHandler.ListEvidence)
		}

		preAlerts := api.Group("/pre-alerts")
		preAlerts.Use(delivery.AuthMiddleware(authUc))
		{
			preAlerts.GET("", purchaseHandler.ListPreAlerts)
		}
	}
}
