package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"doctext/internal/api"
	apiMiddleware "doctext/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(
		app.taskStore,
		app.files,
		app.dispatcher,
		app.config.Upload.MaxBytes,
	)

	r.Post("/tasks", taskHandler.CreateTask)
	r.Get("/tasks/{id}", taskHandler.GetTask)

	r.Get("/health", api.HealthCheck)

	return r
}
