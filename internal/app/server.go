package app

import (
	"github.com/gorilla/mux"

	"shard-federator/internal/server"
)

// RunServer starts the admin HTTP server
func (app *App) RunServer() (*server.Server, error) {
	router := mux.NewRouter()
	app.SetupRoutes(router)

	srv := server.New(router, app.Config.AdminPort)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return srv, nil
}
