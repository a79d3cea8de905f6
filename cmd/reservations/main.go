package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/config"
	httptransport "github.com/example/room-reservations/internal/http"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/metrics"
	"github.com/example/room-reservations/internal/notify"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/persistence/sqlstore"
	"github.com/example/room-reservations/internal/sweeper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "reservations: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configFile  string
	envFile     string
	migrateOnly bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("reservations", pflag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "", "path to a TOML config file")
	fs.StringVar(&f.envFile, "env-file", "", "path to a .env file with RESERVATIONS_* variables")
	fs.BoolVar(&f.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func run(ctx context.Context, args []string, logOutput io.Writer) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{File: f.configFile, EnvFile: f.envFile})
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(logOutput, level, cfg.Log.Format)

	if f.migrateOnly {
		return migrateOnly(ctx, cfg.Storage, logger)
	}

	app, err := newApp(ctx, cfg, appDeps{Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	return app.Serve(ctx)
}

// appDeps carries the process level collaborators. Zero values select the
// production defaults.
type appDeps struct {
	Logger      *slog.Logger
	Now         func() time.Time
	IDGenerator func() string
	// Dispatcher replaces the configured notification sinks.
	Dispatcher notify.Dispatcher
}

type app struct {
	cfg          config.Config
	logger       *slog.Logger
	store        persistence.Store
	handler      http.Handler
	reservations *application.ReservationService
	sweeper      *sweeper.Sweeper
	relay        *notify.Relay
}

func newApp(ctx context.Context, cfg config.Config, deps appDeps) (*app, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	persons := newPersonStoreAdapter(store, now)
	if err := seedDirectory(ctx, store, persons, cfg.Seed, idGenerator, now); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed directory: %w", err)
	}

	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher, err = newDispatcher(cfg.Notify, store, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	rooms := newRoomCatalogAdapter(store)
	reservationRepo := newReservationRepositoryAdapter(store)
	locker := application.NewKeyedLocker()

	reservationService := application.NewReservationService(application.ReservationDeps{
		Rooms:        rooms,
		Persons:      persons,
		Reservations: reservationRepo,
		Outbox:       notify.NewOutbox(store),
		Tx:           store,
		Locker:       locker,
		IDGenerator:  idGenerator,
		Now:          now,
		OpeningHour:  cfg.Schedule.OpeningHour,
		ClosingHour:  cfg.Schedule.ClosingHour,
		Timeout:      cfg.Storage.Timeout,
		Logger:       logger,
	})
	archiveService := application.NewArchiveService(reservationRepo, newArchiveRepositoryAdapter(store), store, locker, idGenerator, now, logger)
	availabilityService := application.NewAvailabilityService(rooms, reservationRepo, store, logger)
	roomService := application.NewRoomServiceWithLogger(rooms, logger)
	personService := application.NewPersonService(persons, logger)

	sweep := sweeper.New(reservationService, m, logger, sweeper.WithTimeout(cfg.Schedule.SweepInterval))
	relay := notify.NewRelay(store, dispatcher, notify.RelayConfig{BatchSize: cfg.Notify.BatchSize, Now: now}, m, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:        httptransport.NewRoomHandler(roomService, availabilityService, logger),
		Reservations: httptransport.NewReservationHandler(newInstrumentedReservations(reservationService, m), logger),
		Archive:      httptransport.NewArchiveHandler(archiveService, logger),
		Persons:      httptransport.NewPersonHandler(personService, logger),
		System:       httptransport.NewSystemHandler(store, sweep, logger),
		Principals:   personService,
		Metrics:      m,
		MetricsPath:  cfg.Metrics.Path,
		Logger:       logger,
	})

	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		handler:      handler,
		reservations: reservationService,
		sweeper:      sweep,
		relay:        relay,
	}, nil
}

// Serve runs the HTTP server, the expiry sweeper and the outbox relay until
// ctx is cancelled or one of them fails.
func (a *app) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("reservation API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.sweeper.Run(gctx, a.cfg.Schedule.SweepInterval)
	})
	g.Go(func() error {
		return a.relay.Run(gctx, a.cfg.Notify.RelayInterval)
	})

	err := g.Wait()
	a.logger.Info("reservation API stopped", "error", err)
	return err
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (persistence.Store, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.Open(), nil
	}

	store, err := openSQLStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

func openSQLStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect:      dialect,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", dialect, err)
	}
	return store, nil
}

func migrateOnly(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) error {
	if cfg.Driver == "memory" {
		return errors.New("--migrate-only needs a sqlite or postgres driver")
	}
	store, err := openSQLStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("database migrations applied", "driver", cfg.Driver)
	return nil
}

func newDispatcher(cfg config.NotifyConfig, persons notify.ChatDirectory, logger *slog.Logger) (notify.Dispatcher, error) {
	fanout := notify.Fanout{notify.NewLogDispatcher(logger)}
	if cfg.TelegramToken != "" {
		telegram, err := notify.NewTelegramDispatcher(cfg.TelegramToken, persons, logger)
		if err != nil {
			return nil, fmt.Errorf("connect telegram: %w", err)
		}
		fanout = append(fanout, telegram)
	}
	return fanout, nil
}

// seedDirectory upserts the configured rooms and persons. Existing rooms keep
// their id and are reactivated.
func seedDirectory(ctx context.Context, store persistence.Store, persons *personStoreAdapter, seed config.SeedConfig, idGenerator func() string, now func() time.Time) error {
	if len(seed.Rooms) == 0 && len(seed.Persons) == 0 {
		return nil
	}
	return store.DoSerializable(ctx, func(ctx context.Context) error {
		at := now().UTC()
		for _, room := range seed.Rooms {
			current, err := store.GetRoomByKey(ctx, room.Floor, room.Name)
			switch {
			case errors.Is(err, persistence.ErrNotFound):
				err = store.CreateRoom(ctx, persistence.Room{
					ID:        idGenerator(),
					Floor:     room.Floor,
					Name:      room.Name,
					Capacity:  room.Capacity,
					Active:    true,
					CreatedAt: at,
					UpdatedAt: at,
				})
			case err == nil:
				current.Capacity = room.Capacity
				current.Active = true
				current.UpdatedAt = at
				err = store.UpdateRoom(ctx, current)
			}
			if err != nil {
				return fmt.Errorf("room %s/%s: %w", room.Floor, room.Name, err)
			}
		}

		for _, p := range seed.Persons {
			person := application.Person{
				ID:          p.ID,
				DisplayName: p.DisplayName,
				Email:       p.Email,
				Program:     p.Program,
				YearLevel:   p.YearLevel,
				Department:  p.Department,
				Verified:    p.Verified,
				IsAdmin:     p.Admin,
			}
			if p.TelegramChatID != 0 {
				chat := p.TelegramChatID
				person.TelegramChatID = &chat
			}
			if err := persons.UpsertPerson(ctx, person); err != nil {
				return fmt.Errorf("person %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
