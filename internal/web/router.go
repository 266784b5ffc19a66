// Package web wires the HTTP surface: the websocket upgrade endpoint, a
// liveness probe, and static asset serving for the game client.
package web

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/yilmaeng/Pinpon2/internal/middleware"
	"github.com/yilmaeng/Pinpon2/internal/relay"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	Logger *slog.Logger
	Hub    *relay.Hub

	// StaticDir is served at the root path; skipped if empty or missing
	StaticDir string
}

// NewRouter creates the HTTP router
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", handleWS(cfg.Logger, cfg.Hub)).Methods(http.MethodGet)

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
		}
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay performs no origin-based auth; identity claims are not
	// verified anywhere else either.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the connection and hands it to the hub, which assigns
// the connection id and starts the pumps
func handleWS(logger *slog.Logger, hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed",
				slog.String("remote", r.RemoteAddr),
				slog.String("error", err.Error()))
			return
		}
		hub.HandleConnection(conn)
	}
}
