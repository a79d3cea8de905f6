package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-reservations/internal/application"
)

var (
	errBadRequestBody   = errors.New("request body is not valid JSON")
	errMissingPrincipal = errors.New("X-User-ID header is required")
	errUnknownPrincipal = errors.New("X-User-ID does not name a known person")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps the application error taxonomy to a status code and
// a body naming the offending room, person or dates.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	resp := errorResponse{ErrorCode: application.ErrorKind(err), Message: err.Error()}
	status := statusFor(err)

	var (
		vErr     *application.ValidationError
		roomErr  *application.RoomConflictError
		partErr  *application.ParticipantError
		quotaErr *application.QuotaError
		transErr *application.TransitionError
	)
	switch {
	case errors.As(err, &vErr):
		resp.Message = "request has invalid fields"
		resp.Errors = vErr.FieldErrors
	case errors.As(err, &roomErr):
		resp.Details = map[string]any{
			"floor":          roomErr.Floor,
			"room":           roomErr.Room,
			"reservation_id": roomErr.ReservationID,
		}
	case errors.As(err, &partErr):
		details := map[string]any{"person_id": partErr.PersonID}
		if partErr.ReservationID != "" {
			details["reservation_id"] = partErr.ReservationID
		}
		resp.Details = details
	case errors.As(err, &quotaErr):
		resp.Details = map[string]any{
			"reason":     string(quotaErr.Reason),
			"used_dates": quotaErr.UsedDates,
		}
	case errors.As(err, &transErr):
		details := map[string]any{"from": string(transErr.From), "to": string(transErr.To)}
		if len(transErr.Allowed) > 0 {
			allowed := make([]string, 0, len(transErr.Allowed))
			for _, status := range transErr.Allowed {
				allowed = append(allowed, string(status))
			}
			details["allowed"] = allowed
		}
		resp.Details = details
	}

	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		resp.Message = http.StatusText(status)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	r.writeJSON(ctx, w, status, resp)
}

func statusFor(err error) int {
	switch application.ErrorKind(err) {
	case "validation", "participant_not_found", "participant_unverified":
		return http.StatusUnprocessableEntity
	case "room_conflict", "participant_conflict", "quota_exceeded", "invalid_transition", "already_exists":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusForbidden
	case "unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
}
