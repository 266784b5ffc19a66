// Package app wires the application components together
package app

import (
	"io"
	"log/slog"

	"github.com/yilmaeng/Pinpon2/internal/dependencies/clock"
	"github.com/yilmaeng/Pinpon2/internal/dependencies/ident"
	"github.com/yilmaeng/Pinpon2/internal/relay"
	"github.com/yilmaeng/Pinpon2/internal/services/match"
	"github.com/yilmaeng/Pinpon2/internal/services/roster"
)

// App contains all wired application components
type App struct {
	Clock clock.Clock
	Ident ident.Generator

	Roster  *roster.Service
	Match   *match.Controller
	Handler *relay.Handler
	Hub     *relay.Hub
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional); a no-op logger is used
	// when nil
	Logger *slog.Logger
	// Clock and Ident override the real implementations in tests
	Clock clock.Clock
	Ident ident.Generator
}

// New creates a new application with all dependencies wired. The hub loop
// is not started; callers run App.Hub.Run themselves.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	gen := cfg.Ident
	if gen == nil {
		gen = ident.New()
	}

	rosterService := roster.New(clk, logger)
	matchController := match.NewController(rosterService, gen, clk, logger)
	handler := relay.NewHandler(rosterService, matchController, logger)
	hub := relay.NewHub(handler, gen, logger)

	return &App{
		Clock:   clk,
		Ident:   gen,
		Roster:  rosterService,
		Match:   matchController,
		Handler: handler,
		Hub:     hub,
	}
}
