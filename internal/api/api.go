package api

import (
	"net/http"

	emailHandler "mailer-server/internal/email/handler"
	eventsHandler "mailer-server/internal/events/handler"

	"github.com/gin-gonic/gin"
)

// API holds the route group and handlers
type API struct {
	router       *gin.RouterGroup
	emailHandler *emailHandler.Handler
	eventHandler *eventsHandler.Handler
}

// New creates a new API
func New(router *gin.RouterGroup, emailHandler *emailHandler.Handler, eventHandler *eventsHandler.Handler) API {
	return API{
		router:       router,
		emailHandler: emailHandler,
		eventHandler: eventHandler,
	}
}

// RegisterRoutes registers all API routes
func (a API) RegisterRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	apiGroup := a.router.Group("/api")

	emailGroup := apiGroup.Group("/email")
	emailGroup.POST("/webhook", a.emailHandler.HandleProviderWebhook)

	messagesGroup := apiGroup.Group("/messages")
	messagesGroup.GET("/:message_id", a.emailHandler.HandleGetMessage)
	messagesGroup.GET("/:message_id/webhooks", a.emailHandler.HandleGetMessageWebhooks)
	messagesGroup.POST("/:message_id/resend", a.emailHandler.HandleResendMessage)

	eventsGroup := apiGroup.Group("/events")
	eventsGroup.POST("/webhook", a.eventHandler.HandleEventWebhook)
}
