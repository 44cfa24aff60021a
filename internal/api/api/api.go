package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"festreg/cmd/middleware"
	"festreg/internal/api/handlers"
	"festreg/internal/auth"
)

type Routers struct {
	Handler *handlers.Handler
	Tokens  *auth.Tokens
	Mode    string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	h := r.Handler
	app.GET("/health", h.Health)
	app.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := app.Group("/v1")
	apiGroup.POST("/users", h.Signup)
	apiGroup.POST("/users/login", h.Login)
	apiGroup.GET("/events", h.ListEvents)
	apiGroup.GET("/events/:id", h.GetEvent)

	authed := apiGroup.Group("")
	authed.Use(auth.Middleware(r.Tokens))
	authed.GET("/users/me", h.Me)
	authed.POST("/registrations", h.Register)
	authed.GET("/registrations/my", h.MyRegistrations)
	authed.GET("/registrations/check-conflict/:eventId", h.CheckConflict)
	authed.PUT("/registrations/:id/cancel", h.Cancel)
	authed.POST("/payments/offline", h.SubmitOffline)

	admin := authed.Group("")
	admin.Use(auth.RequireAdmin())
	admin.POST("/events", h.CreateEvent)
	admin.PUT("/events/:id/registration", h.SetRegistrationOpen)
	admin.POST("/registrations/admin-register", h.AdminRegister)
	admin.GET("/registrations/export/:eventId", h.Export)
	admin.POST("/registrations/export/:eventId/sheets", h.ExportToSheets)
	admin.GET("/payments/pending", h.PendingPayments)
	admin.PUT("/payments/:id/approve", h.Approve)
	admin.PUT("/payments/:id/reject", h.Reject)

	return app
}
