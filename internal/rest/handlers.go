package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/promptdeck/promptdeck/internal/engine"
)

type errorResponse struct {
	Error string `json:"error"`
}

type submitRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Simulate    bool    `json:"simulate"`

	// Stream defaults to true when omitted.
	Stream       *bool  `json:"stream"`
	ContinueFrom string `json:"continue_from"`
}

type submitResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Submit accepts a generation request and returns its ID immediately.
func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	id, err := h.service.Submit(c.Request().Context(), engine.SubmitRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		Simulate:    req.Simulate,
		NoStream:    req.Stream != nil && !*req.Stream,
		ParentID:    req.ContinueFrom,
	})
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Message})
		}
		slog.Error("failed to submit generation", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}

	return c.JSON(http.StatusOK, submitResponse{GenerationID: id, Status: "started"})
}

// Status returns the full generation record.
func (h *Handler) Status(c echo.Context) error {
	gen, err := h.service.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "generation not found"})
		}
		slog.Error("failed to load generation", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	return c.JSON(http.StatusOK, gen)
}

// Active lists in-flight generations.
func (h *Handler) Active(c echo.Context) error {
	list, err := h.service.Active(c.Request().Context())
	if err != nil {
		slog.Error("failed to list active generations", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	if list == nil {
		list = []engine.Summary{}
	}
	return c.JSON(http.StatusOK, map[string]any{"generations": list})
}

// History lists the most recent generations, newest first. The limit query
// parameter caps the page size.
func (h *Handler) History(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	list, err := h.service.History(c.Request().Context(), limit)
	if err != nil {
		slog.Error("failed to load history", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	if list == nil {
		list = []engine.Summary{}
	}
	return c.JSON(http.StatusOK, map[string]any{"generations": list})
}

// Stats aggregates usage across all generations.
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.service.UsageStats(c.Request().Context())
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	return c.JSON(http.StatusOK, stats)
}

// Models returns the model catalog with pricing where known.
func (h *Handler) Models(c echo.Context) error {
	type modelEntry struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Description string  `json:"description,omitempty"`
		Provider    string  `json:"provider"`
		Class       string  `json:"class"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
		InputCost   float64 `json:"input_cost_per_1m,omitempty"`
		OutputCost  float64 `json:"output_cost_per_1m,omitempty"`
	}

	var out []modelEntry
	for id, info := range h.service.Models() {
		entry := modelEntry{
			ID:          id,
			Name:        info.Name,
			Description: info.Description,
			Provider:    info.Provider.String(),
			Class:       string(info.Class),
			MaxTokens:   info.MaxTokens,
		}
		if pricing, ok := engine.Pricing(id); ok {
			entry.InputCost = pricing.InputCost
			entry.OutputCost = pricing.OutputCost
		}
		out = append(out, entry)
	}
	return c.JSON(http.StatusOK, map[string]any{"models": out})
}

// Delete removes a generation and everything attached to it.
func (h *Handler) Delete(c echo.Context) error {
	err := h.service.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "generation not found"})
		}
		slog.Error("failed to delete generation", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// Share assigns a share token and returns the shareable path.
func (h *Handler) Share(c echo.Context) error {
	id := c.Param("id")
	token, err := h.service.Share(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "generation not found"})
		}
		slog.Error("failed to create share token", "generation_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":      "success",
		"share_token": token,
		"share_url":   "/api/shared/" + token,
	})
}

// Shared resolves a share token to its generation.
func (h *Handler) Shared(c echo.Context) error {
	gen, err := h.service.Shared(c.Request().Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "shared generation not found"})
		}
		slog.Error("failed to resolve share token", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	return c.JSON(http.StatusOK, gen)
}

// ReloadProviders rebuilds the provider set from current credentials.
func (h *Handler) ReloadProviders(c echo.Context) error {
	available := h.service.ReloadProviders(h.build(h.credentials()))
	slog.Info("providers reloaded", "available", available)
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "success",
		"providers": available,
	})
}
