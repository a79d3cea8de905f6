package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Locker      *application.KeyedLocker
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Locker:      application.NewKeyedLocker(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Locker == nil {
		factory.Locker = application.NewKeyedLocker()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ReservationServiceDeps captures dependencies for constructing a reservation
// service. A nil generator draws "res-N" ids from the factory; a nil clock
// uses the factory clock.
type ReservationServiceDeps struct {
	Rooms        application.RoomCatalog
	Persons      application.PersonDirectory
	Reservations application.ReservationRepository
	Outbox       application.EventOutbox
	Tx           application.TxManager
	IDGenerator  func() string
	Now          func() time.Time
	Timeout      time.Duration
	Logger       *slog.Logger
}

// NewReservationService builds a reservation service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.For(ReservationIDPrefix)
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewReservationService(application.ReservationDeps{
		Rooms:        deps.Rooms,
		Persons:      deps.Persons,
		Reservations: deps.Reservations,
		Outbox:       deps.Outbox,
		Tx:           deps.Tx,
		Locker:       f.Locker,
		IDGenerator:  idGen,
		Now:          now,
		Timeout:      deps.Timeout,
		Logger:       deps.Logger,
	})
}

// ArchiveServiceDeps captures dependencies for constructing an archive service.
type ArchiveServiceDeps struct {
	Reservations application.ReservationRepository
	Archive      application.ArchiveRepository
	Tx           application.TxManager
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewArchiveService builds an archive service sharing the factory locker.
func (f *ServiceFactory) NewArchiveService(deps ArchiveServiceDeps) *application.ArchiveService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.For(ArchiveIDPrefix)
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewArchiveService(deps.Reservations, deps.Archive, deps.Tx, f.Locker, idGen, now, deps.Logger)
}
