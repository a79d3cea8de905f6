package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/room-reservations/internal/application"
)

// Pinger reports whether storage answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sweeper runs one expiry pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SystemHandler serves health checks and operator actions.
type SystemHandler struct {
	storage   Pinger
	sweeper   Sweeper
	responder responder
	logger    *slog.Logger
}

func NewSystemHandler(storage Pinger, sweeper Sweeper, logger *slog.Logger) *SystemHandler {
	base := defaultLogger(logger)
	return &SystemHandler{storage: storage, sweeper: sweeper, responder: newResponder(base), logger: base}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			handlerLogger(r.Context(), h.logger, "SystemHandler", "Health").ErrorContext(r.Context(), "storage ping failed", "error", err)
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *SystemHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "SystemHandler", "Sweep")
	if !principal.IsAdmin {
		err := errors.Join(application.ErrUnauthorized, errors.New("only administrators can run the expiry sweep"))
		logFailure(r.Context(), logger, "sweep rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	expired, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		logFailure(r.Context(), logger, "sweep failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "manual sweep completed", "expired", expired)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sweepResponse{Expired: expired})
}

type healthResponse struct {
	Status string `json:"status"`
}

type sweepResponse struct {
	Expired int `json:"expired"`
}
