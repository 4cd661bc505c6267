package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/taskrelay/backend/api/handler"
)

type Handlers struct {
	ChatWebhook *apiHandler.ChatWebhookHandler
	CIWebhook   *apiHandler.CIWebhookHandler
	Health      *apiHandler.HealthHandler
	Report      *apiHandler.ReportHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Webhooks carry their own authentication (verification token, HMAC).
	r.POST("/webhooks/chat", handlers.ChatWebhook.Handle)
	r.POST("/webhooks/ci", handlers.CIWebhook.Handle)

	// Operator API
	r.GET("/api/v1/report", authMiddleware(handlers.Report.Get))

	return r
}
