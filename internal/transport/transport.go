package transport

import (
	"github.com/gin-gonic/gin"

	"groupsend/internal/transport/middleware"
)

func InitRoutes(messageHandler *MessageHandler, callbackHandler *CallbackHandler, callbackSecret string) *gin.Engine {

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	// API routes
	api := router.Group("/api/v1")
	{
		groups := api.Group("/groups")
		{
			groups.POST("/:group_id/messages", messageHandler.CreateMessage)
			groups.GET("/:group_id/messages", messageHandler.GetGroupMessages)
		}

		messages := api.Group("/messages")
		{
			messages.GET("/:id", messageHandler.GetMessage)
			messages.PUT("/:id", messageHandler.UpdateMessage)
			messages.DELETE("/:id", messageHandler.DeleteMessage)
			messages.POST("/:id/send", messageHandler.SendNow)
		}

		schedule := api.Group("/schedule")
		{
			schedule.GET("/reminder-options", messageHandler.ReminderOptions)
		}
	}

	// Callback routes for external schedulers, signature checked on the
	// raw body before any parsing.
	internalAPI := router.Group("/internal/v1")
	internalAPI.Use(middleware.Signature(callbackSecret))
	{
		internalAPI.POST("/callbacks/due", callbackHandler.Due)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return router
}
