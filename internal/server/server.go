package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"actorscout/config"
	"actorscout/internal/discovery"
	"actorscout/internal/llm"
	"actorscout/internal/platform"
	"actorscout/internal/storage"
	"actorscout/internal/telemetry"
)

// Run builds the discovery pipeline from config and serves the HTTP API.
func Run(cfg *config.Config) error {
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	tele := telemetry.NewTelemetry(cfg.Telemetry)

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	scoring, err := llm.RoutedCompleter(provider, cfg.LLM.Routing, cfg.LLM.Routing.Scoring, tele)
	if err != nil {
		return err
	}
	synthesis, err := llm.RoutedCompleter(provider, cfg.LLM.Routing, cfg.LLM.Routing.Synthesis, tele)
	if err != nil {
		return err
	}

	client, err := platform.NewClient(cfg.Platform, nil)
	if err != nil {
		return err
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := discovery.NewOrchestrator(cfg, orchLogger, tele, client, client, client, scoring, synthesis)
	if err != nil {
		return err
	}

	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tele.Handler()))

	h := &DiscoverHandler{Orchestrator: orch, Store: store, Logger: baseLogger}
	h.Register(e.Group("/api"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10020"
	}
	return e.Start(addr)
}
