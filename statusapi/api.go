// Package statusapi serves a read-only HTTP view of the stub's configuration
// and connection journal.
package statusapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/greetd-stub/journal"
	"github.com/jmcleod/greetd-stub/session"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies of the status handlers.
type API struct {
	opts  *session.Options
	store journal.Store
}

// ConfigResponse describes the accepted credentials. The password is never exposed.
type ConfigResponse struct {
	Username     string `json:"username"`
	SecondFactor bool   `json:"second_factor"`
	Biometric    bool   `json:"biometric"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates an API over opts and store.
func New(opts *session.Options, store journal.Store) *API {
	return &API{opts: opts, store: store}
}

// Router returns a chi.Router with all status routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Get("/config", a.Config)
	r.Get("/connections", a.ListConnections)
	r.Get("/connections/{connID}/events", a.ListEvents)
	return r
}

// Config handles GET /config.
func (a *API) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{
		Username:     a.opts.Username(),
		SecondFactor: a.opts.SecondFactor(),
		Biometric:    a.opts.Biometric(),
	})
}

// ListConnections handles GET /connections.
func (a *API) ListConnections(w http.ResponseWriter, r *http.Request) {
	ids, err := a.store.Connections()
	if err != nil {
		mapError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// ListEvents handles GET /connections/{connID}/events.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.store.List(chi.URLParam(r, "connID"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, journal.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
