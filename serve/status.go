package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/audit"
)

const defaultExecutionLimit = 20

// statusReport is the body of GET /status.
type statusReport struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	ActiveSessions int      `json:"active_sessions"`
	Agents         []string `json:"agents"`
	Audit          bool     `json:"audit"`
}

// newStatusHandler serves health, status, the audit trail and the WebSocket
// transport. store may be nil.
func newStatusHandler(srv *Server, store *audit.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		agents := make([]string, len(archchan.AgentNames))
		for i, name := range archchan.AgentNames {
			agents[i] = string(name)
		}
		writeJSON(w, http.StatusOK, statusReport{
			Status:         "ok",
			Version:        Version,
			UptimeSeconds:  int64(srv.Uptime().Seconds()),
			ActiveSessions: srv.ActiveSessions(),
			Agents:         agents,
			Audit:          store != nil,
		})
	})

	r.Get("/executions", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusNotFound, "audit trail is disabled")
			return
		}
		limit := defaultExecutionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		entries, err := store.Recent(r.Context(), limit)
		if err != nil {
			slog.Error("reading audit trail", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read audit trail")
			return
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			slog.Warn("websocket accept failed", "error", err)
			return
		}
		srv.serveSession(newWSConn(ws, srv.opts.MaxFrameBytes), r.RemoteAddr)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
