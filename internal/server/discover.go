package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"actorscout/internal/discovery"
	"actorscout/internal/storage"
)

// Discoverer is the produced interface of the discovery core.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) ([]discovery.FinalRecord, error)
}

// DiscoverHandler exposes the discovery pipeline over HTTP.
type DiscoverHandler struct {
	Orchestrator Discoverer
	Store        storage.Storage
	Logger       *log.Logger
}

// Register mounts the handler routes on the given group.
func (h *DiscoverHandler) Register(g *echo.Group) {
	g.POST("/discover", h.discover)
	g.GET("/runs/:id", h.getRun)
}

type discoverResponse struct {
	RunID   string                  `json:"run_id"`
	Records []discovery.FinalRecord `json:"records"`
}

func (h *DiscoverHandler) discover(c echo.Context) error {
	var req discovery.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserIntent == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_intent is required")
	}

	records, err := h.Orchestrator.Discover(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	runID := uuid.New().String()
	if h.Store != nil {
		record := storage.RunRecord{
			ID:         runID,
			UserIntent: req.UserIntent,
			MaxActors:  req.MaxActors,
			Records:    records,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.Store.SaveRunRecord(c.Request().Context(), record); err != nil {
			// Persistence is best-effort; the response still carries the records.
			h.Logger.Printf("warn: persisting run %s failed: %v", runID, err)
		}
	}

	return c.JSON(http.StatusOK, discoverResponse{RunID: runID, Records: records})
}

func (h *DiscoverHandler) getRun(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run storage not configured")
	}
	record, ok, err := h.Store.GetRunRecord(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, record)
}
