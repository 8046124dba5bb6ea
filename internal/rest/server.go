// Package rest exposes the generation lifecycle over HTTP.
package rest

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/promptdeck/promptdeck/internal/engine"
	"github.com/promptdeck/promptdeck/internal/llm"
)

// CredentialSource supplies the current provider credentials; the reload
// endpoint rebuilds the provider set from it.
type CredentialSource func() llm.Credentials

// ProviderBuilder constructs providers from credentials.
type ProviderBuilder func(llm.Credentials) []llm.Provider

// Handler owns the HTTP surface over the engine.
type Handler struct {
	service     *engine.Service
	credentials CredentialSource
	build       ProviderBuilder
}

// NewHandler wires the engine into the HTTP layer.
func NewHandler(service *engine.Service, credentials CredentialSource, build ProviderBuilder) *Handler {
	return &Handler{
		service:     service,
		credentials: credentials,
		build:       build,
	}
}

// NewServer builds the echo instance with all routes registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/v1/health", h.Health)

	api := e.Group("/api")
	api.POST("/generate", h.Submit)
	api.GET("/generation/:id/status", h.Status)
	api.GET("/generation/:id", h.Status)
	api.GET("/generation/:id/stream", h.Stream)
	api.DELETE("/generation/:id", h.Delete)
	api.POST("/generation/:id/share", h.Share)
	api.GET("/generations/active", h.Active)
	api.GET("/history", h.History)
	api.GET("/stats", h.Stats)
	api.GET("/models", h.Models)
	api.GET("/shared/:token", h.Shared)
	api.POST("/providers/reload", h.ReloadProviders)

	return e
}
