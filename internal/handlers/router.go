package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires all routes. Page routes sit behind the session middleware;
// /v1 and /healthz are stateless.
func NewRouter(h *Handler, sessionMiddleware mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/images", h.CreateImage).Methods(http.MethodPost)

	web := r.PathPrefix("/").Subrouter()
	web.Use(sessionMiddleware)
	web.HandleFunc("/", h.Index).Methods(http.MethodGet)
	web.HandleFunc("/generate", h.Generate).Methods(http.MethodPost)
	web.HandleFunc("/state", h.State).Methods(http.MethodGet)
	web.HandleFunc("/download", h.Download).Methods(http.MethodGet)
	web.HandleFunc("/ws", h.WS).Methods(http.MethodGet)

	return r
}
