package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/room-reservations/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "ReservationService", "Create", "owner_id", "p-1").Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", base.String())
	}
	for _, want := range []string{"service=ReservationService", "operation=Create", "owner_id=p-1"} {
		if !strings.Contains(scoped.String(), want) {
			t.Fatalf("expected %q in %q", want, scoped.String())
		}
	}
}

func TestLogOutcomeLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()

	logOutcome(ctx, logger, &QuotaError{}, "refused", "ok")
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "error_kind=quota_exceeded") {
		t.Fatalf("expected warn line for caller error, got %q", buf.String())
	}

	buf.Reset()
	logOutcome(ctx, logger, errors.New("disk on fire"), "refused", "ok")
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "error_kind=unexpected") {
		t.Fatalf("expected error line for unexpected error, got %q", buf.String())
	}

	buf.Reset()
	logOutcome(ctx, logger, nil, "refused", "ok", "reservation_id", "r-1")
	if !strings.Contains(buf.String(), "msg=ok") || !strings.Contains(buf.String(), "reservation_id=r-1") {
		t.Fatalf("expected success line, got %q", buf.String())
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":               nil,
		"unauthorized":   ErrUnauthorized,
		"not_found":      ErrNotFound,
		"already_exists": ErrAlreadyExists,
		"unavailable":    ErrUnavailable,
		"validation":     &ValidationError{FieldErrors: map[string]string{"date": "required"}},
		"unexpected":     errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
