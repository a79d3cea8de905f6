package main

import (
	"context"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/metrics"
	"github.com/example/room-reservations/internal/scheduler"
)

// instrumentedReservations counts booking and status change outcomes around
// the reservation service.
type instrumentedReservations struct {
	*application.ReservationService
	metrics *metrics.Metrics
}

func newInstrumentedReservations(service *application.ReservationService, m *metrics.Metrics) *instrumentedReservations {
	return &instrumentedReservations{ReservationService: service, metrics: m}
}

func (s *instrumentedReservations) Create(ctx context.Context, principal application.Principal, req application.BookingRequest) (application.Reservation, error) {
	reservation, err := s.ReservationService.Create(ctx, principal, req)
	s.metrics.ObserveBooking(err)
	return reservation, err
}

func (s *instrumentedReservations) SetStatus(ctx context.Context, principal application.Principal, reservationID, status string) (application.Reservation, error) {
	reservation, err := s.ReservationService.SetStatus(ctx, principal, reservationID, status)
	s.metrics.ObserveTransition(statusLabel(status), err)
	return reservation, err
}

func (s *instrumentedReservations) Cancel(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error) {
	reservation, err := s.ReservationService.Cancel(ctx, principal, reservationID)
	s.metrics.ObserveTransition(string(scheduler.StatusCancelled), err)
	return reservation, err
}

// statusLabel bounds the label set to known statuses.
func statusLabel(value string) string {
	status, err := scheduler.ParseStatus(value)
	if err != nil {
		return "unknown"
	}
	return string(status)
}
