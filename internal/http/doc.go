// Package http exposes the reservation engine over JSON/HTTP.
//
// Every route under /api/v1 requires an X-User-ID header naming a person in
// the directory; the admin flag comes from that record.
//   - GET /api/v1/rooms: active rooms ordered by floor then name.
//   - GET /api/v1/availability?date=YYYY-MM-DD: occupied slots per active room,
//     with "mine" set on the caller's reservations.
//   - GET /api/v1/quota?date=YYYY-MM-DD: weekly limit pre-flight for the caller.
//   - POST /api/v1/reservations, GET /api/v1/reservations?date=&mine=1&status=,
//     GET /api/v1/reservations/{id}: booking and lookup. Bodies use the
//     `createReservationRequest` and `reservationDTO` shapes in
//     reservation_handler.go.
//   - PATCH /api/v1/reservations/{id}/status (admin), POST
//     /api/v1/reservations/{id}/cancel (owner): lifecycle transitions.
//   - POST /api/v1/reservations/{id}/archive, GET /api/v1/archive,
//     GET /api/v1/archive/{id}, POST /api/v1/archive/{id}/restore,
//     DELETE /api/v1/archive/{id}: archive management (admin).
//   - GET/POST /api/v1/persons, GET /api/v1/persons/{id},
//     PUT /api/v1/persons/{id}/verified: person directory.
//   - POST /api/v1/sweeps/expire (admin): runs the expiry sweep now.
//   - GET /healthz and GET /metrics are unauthenticated.
//
// Errors are returned as {"error_code","message","errors","details"} where
// error_code is the stable label from application.ErrorKind.
package http
