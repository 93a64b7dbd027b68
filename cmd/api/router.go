package api

import (
	"net/http"

	appDelivery "jobtrail-backend/internal/application/delivery"
	"jobtrail-backend/internal/auth/delivery"
	authUsecase "jobtrail-backend/internal/auth/usecase"
	emailDelivery "jobtrail-backend/internal/email/delivery"
	filterDelivery "jobtrail-backend/internal/filter/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUsecase authUsecase.AuthUsecase,
	emailHandler *emailDelivery.EmailHandler,
	applicationHandler *appDelivery.ApplicationHandler,
	domainHandler *filterDelivery.DomainFilterHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		applications := api.Group("/applications")
		applications.Use(delivery.AuthMiddleware(authUsecase))
		{
			applications.GET("", applicationHandler.List)
			applications.POST("", applicationHandler.Create)
			applications.GET("/kanban", applicationHandler.Kanban)
			applications.GET("/:id", applicationHandler.Get)
			applications.PUT("/:id", applicationHandler.Update)
			applications.DELETE("/:id", applicationHandler.Delete)
			applications.PATCH("/:id/status", applicationHandler.UpdateStatus)
			applications.GET("/:id/history", applicationHandler.History)
		}

		emails := api.Group("/emails")
		emails.Use(delivery.AuthMiddleware(authUsecase))
		{
			emails.GET("", emailHandler.List)
			emails.POST("/sync", emailHandler.Sync)
			emails.GET("/sync/status", emailHandler.SyncStatus)
			emails.POST("/reclassify", emailHandler.Reclassify)
			emails.GET("/:id", emailHandler.Get)
			emails.PATCH("/:id/status", emailHandler.UpdateStatus)
			emails.POST("/:id/link", emailHandler.Link)
			emails.DELETE("/:id/link", emailHandler.Unlink)
			emails.POST("/:id/application", emailHandler.CreateApplication)
		}

		domains := api.Group("/domains")
		domains.Use(delivery.AuthMiddleware(authUsecase))
		{
			domains.GET("", domainHandler.List)
			domains.POST("", domainHandler.Create)
			domains.PATCH("/:id/toggle", domainHandler.Toggle)
			domains.DELETE("/:id", domainHandler.Delete)
		}
	}
}
