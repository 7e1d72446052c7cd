package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/park285/cheese-vrchess/internal/lobby"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/internal/wsnet"
	"go.uber.org/zap"
)

type Options struct {
	OriginPatterns []string
}

// NewRouter exposes the session endpoints of a hub.
func NewRouter(hub *lobby.Hub, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	ws := wsnet.ServerOptions{OriginPatterns: opts.OriginPatterns}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/lobbies", func(w http.ResponseWriter, r *http.Request) {
		infos, err := hub.List(r.Context())
		if err != nil {
			obslog.L().Error("http_lobby_list_error", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lobby list unavailable"})
			return
		}
		if infos == nil {
			infos = []lobby.LobbyInfo{}
		}
		writeJSON(w, http.StatusOK, infos)
	})
	r.Post("/lobbies", func(w http.ResponseWriter, _ *http.Request) {
		c, err := hub.Create()
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, lobby.ErrTooManyLobbies) {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": c.ID()})
	})
	r.Get("/ws", wsnet.Handler(func(*http.Request) (*lobby.Coordinator, error) {
		return hub.Lobby(lobby.DefaultLobbyID)
	}, ws).ServeHTTP)
	r.Get("/ws/{lobby}", wsnet.Handler(func(r *http.Request) (*lobby.Coordinator, error) {
		return hub.Lobby(chi.URLParam(r, "lobby"))
	}, ws).ServeHTTP)
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		obslog.L().Warn("http_write_error", zap.Error(err))
	}
}
