package app

import (
	"github.com/gorilla/mux"

	"shard-federator/internal/handlers"
	"shard-federator/internal/middleware"
)

// SetupRoutes configures the admin routes
func (app *App) SetupRoutes(router *mux.Router) {
	router.Use(middleware.RequestLogger(app.Logger))

	checks := make(map[string]handlers.HealthChecker, len(app.Providers))
	for id, p := range app.Providers {
		checks[id] = p
	}

	h := handlers.New(app.Registry, app.Template.Manager(), app.Breakers, checks)
	if reader, ok := app.auditor.(handlers.AuditReader); ok {
		h.WithAudit(reader)
	}
	h.Register(router)
}
