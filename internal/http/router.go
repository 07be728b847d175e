package http

import (
	"net/http"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(rooms *handlers.RoomHandler, ws *handlers.WebSocketHandler, feed *handlers.StatusFeed, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Signaling endpoint; all room mutations happen over this connection.
	r.Get("/ws", ws.HandleWebSocket)

	// Read-only introspection for the site frontend.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		r.Get("/rooms", rooms.List)
		r.Get("/rooms/{roomId}", rooms.Get)
		r.Get("/stats", rooms.Stats)
		r.Get("/events", feed.ServeHTTP)
	})

	return r
}
