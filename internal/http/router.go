package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/metrics"
)

// APIPrefix is the mount point of the versioned API.
const APIPrefix = "/api/v1"

type RouterConfig struct {
	Rooms        *RoomHandler
	Reservations *ReservationHandler
	Archive      *ArchiveHandler
	Persons      *PersonHandler
	System       *SystemHandler
	Principals   PrincipalResolver
	Metrics      *metrics.Metrics
	MetricsPath  string
	Logger       *slog.Logger
}

// NewRouter wires every handler. Nil handlers leave their routes unregistered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	router := mux.NewRouter()
	router.Use(RequestLogger(logger), Recoverer(logger), Instrument(cfg.Metrics))

	if cfg.System != nil {
		router.HandleFunc("/healthz", cfg.System.Health).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix(APIPrefix).Subrouter()
	if cfg.Principals != nil {
		api.Use(RequirePrincipal(cfg.Principals, logger))
	}

	if h := cfg.Rooms; h != nil {
		api.HandleFunc("/rooms", h.List).Methods(http.MethodGet)
		api.HandleFunc("/availability", h.Availability).Methods(http.MethodGet)
	}

	if h := cfg.Reservations; h != nil {
		api.HandleFunc("/quota", h.Quota).Methods(http.MethodGet)
		api.HandleFunc("/reservations", h.Create).Methods(http.MethodPost)
		api.HandleFunc("/reservations", h.List).Methods(http.MethodGet)
		api.HandleFunc("/reservations/{id}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/reservations/{id}/status", h.SetStatus).Methods(http.MethodPatch)
		api.HandleFunc("/reservations/{id}/cancel", h.Cancel).Methods(http.MethodPost)
	}

	if h := cfg.Archive; h != nil {
		api.HandleFunc("/reservations/{id}/archive", h.Archive).Methods(http.MethodPost)
		api.HandleFunc("/archive", h.List).Methods(http.MethodGet)
		api.HandleFunc("/archive/{id}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/archive/{id}", h.Purge).Methods(http.MethodDelete)
		api.HandleFunc("/archive/{id}/restore", h.Restore).Methods(http.MethodPost)
	}

	if h := cfg.Persons; h != nil {
		api.HandleFunc("/persons", h.List).Methods(http.MethodGet)
		api.HandleFunc("/persons", h.Register).Methods(http.MethodPost)
		api.HandleFunc("/persons/{id}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/persons/{id}/verified", h.SetVerified).Methods(http.MethodPut)
	}

	if h := cfg.System; h != nil {
		api.HandleFunc("/sweeps/expire", h.Sweep).Methods(http.MethodPost)
	}

	responder := newResponder(logger)
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{ErrorCode: "not_found", Message: "route not found"})
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
	})
	// A subrouter reports its own misses; without its handlers a method
	// mismatch under /api/v1 surfaces as 404.
	for _, r := range []*mux.Router{router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = methodNotAllowed
	}

	return router
}
