package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/example/room-reservations/internal/logging"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "RESERVATIONS_"

// DefaultSQLiteDSN is used when the sqlite driver is selected without a DSN.
const DefaultSQLiteDSN = "file:reservations.db"

// Config captures the settings of the reservation service.
type Config struct {
	HTTP     HTTPConfig     `toml:"http"`
	Storage  StorageConfig  `toml:"storage"`
	Schedule ScheduleConfig `toml:"schedule"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Notify   NotifyConfig   `toml:"notify"`
	Seed     SeedConfig     `toml:"seed"`
}

type HTTPConfig struct {
	Port            int           `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// StorageConfig selects the backend. Driver is sqlite, postgres or memory.
type StorageConfig struct {
	Driver       string        `toml:"driver"`
	DSN          string        `toml:"dsn"`
	Timeout      time.Duration `toml:"timeout"`
	MaxOpenConns int           `toml:"max_open_conns"`
}

// ScheduleConfig holds the booking window and the expiry sweep cadence.
type ScheduleConfig struct {
	OpeningHour   int           `toml:"opening_hour"`
	ClosingHour   int           `toml:"closing_hour"`
	SweepInterval time.Duration `toml:"sweep_interval"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// NotifyConfig configures the outbox relay. An empty TelegramToken disables
// the Telegram sink.
type NotifyConfig struct {
	TelegramToken string        `toml:"telegram_token"`
	RelayInterval time.Duration `toml:"relay_interval"`
	BatchSize     int           `toml:"batch_size"`
}

// SeedConfig lists rooms and persons upserted at startup. It is only read
// from the config file.
type SeedConfig struct {
	Rooms   []SeedRoom   `toml:"rooms"`
	Persons []SeedPerson `toml:"persons"`
}

type SeedRoom struct {
	Floor    string `toml:"floor"`
	Name     string `toml:"name"`
	Capacity int    `toml:"capacity"`
}

type SeedPerson struct {
	ID             string `toml:"id"`
	DisplayName    string `toml:"display_name"`
	Email          string `toml:"email"`
	Program        string `toml:"program"`
	YearLevel      string `toml:"year_level"`
	Department     string `toml:"department"`
	Verified       bool   `toml:"verified"`
	Admin          bool   `toml:"admin"`
	TelegramChatID int64  `toml:"telegram_chat_id"`
}

// Options tells Load where to look. Empty paths are skipped. Lookup defaults
// to os.LookupEnv.
type Options struct {
	File    string
	EnvFile string
	Lookup  func(key string) (string, bool)
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       "sqlite",
			Timeout:      5 * time.Second,
			MaxOpenConns: 10,
		},
		Schedule: ScheduleConfig{
			OpeningHour:   7,
			ClosingHour:   19,
			SweepInterval: time.Minute,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "reservations"},
		Notify:  NotifyConfig{RelayInterval: 10 * time.Second, BatchSize: 50},
	}
}

// Load layers the config file, the env file and the process environment over
// the defaults, in that order, and validates the result. Invalid entries are
// collected and reported together.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if _, err := toml.DecodeFile(opts.File, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", opts.File, err)
		}
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		if err != nil {
			return Config{}, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
		dotenv = values
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := envReader{lookup: lookup, dotenv: dotenv}

	env.int("HTTP_PORT", &cfg.HTTP.Port)
	env.duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	env.duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	env.duration("SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	env.string("STORAGE_DRIVER", &cfg.Storage.Driver)
	env.string("STORAGE_DSN", &cfg.Storage.DSN)
	env.duration("STORAGE_TIMEOUT", &cfg.Storage.Timeout)
	env.int("STORAGE_MAX_OPEN_CONNS", &cfg.Storage.MaxOpenConns)
	env.int("OPENING_HOUR", &cfg.Schedule.OpeningHour)
	env.int("CLOSING_HOUR", &cfg.Schedule.ClosingHour)
	env.duration("SWEEP_INTERVAL", &cfg.Schedule.SweepInterval)
	env.string("LOG_LEVEL", &cfg.Log.Level)
	env.string("LOG_FORMAT", &cfg.Log.Format)
	env.bool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.string("METRICS_PATH", &cfg.Metrics.Path)
	env.string("TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	env.duration("RELAY_INTERVAL", &cfg.Notify.RelayInterval)
	env.int("RELAY_BATCH_SIZE", &cfg.Notify.BatchSize)

	invalid := append(env.invalid, cfg.validate()...)
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func (c *Config) validate() []string {
	var invalid []string
	add := func(key string) { invalid = append(invalid, EnvPrefix+key) }

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		add("HTTP_PORT")
	}
	if c.HTTP.ReadTimeout <= 0 {
		add("HTTP_READ_TIMEOUT")
	}
	if c.HTTP.WriteTimeout <= 0 {
		add("HTTP_WRITE_TIMEOUT")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		add("SHUTDOWN_TIMEOUT")
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.DSN == "" {
			c.Storage.DSN = DefaultSQLiteDSN
		}
	case "postgres":
		if c.Storage.DSN == "" || strings.HasPrefix(c.Storage.DSN, "file:") {
			add("STORAGE_DSN")
		}
	default:
		add("STORAGE_DRIVER")
	}
	if c.Storage.Timeout <= 0 {
		add("STORAGE_TIMEOUT")
	}
	if c.Storage.MaxOpenConns < 0 {
		add("STORAGE_MAX_OPEN_CONNS")
	}

	if c.Schedule.OpeningHour < 0 || c.Schedule.OpeningHour > 23 {
		add("OPENING_HOUR")
	}
	if c.Schedule.ClosingHour < 1 || c.Schedule.ClosingHour > 24 || c.Schedule.ClosingHour <= c.Schedule.OpeningHour {
		add("CLOSING_HOUR")
	}
	if c.Schedule.SweepInterval <= 0 {
		add("SWEEP_INTERVAL")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("LOG_LEVEL")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		add("LOG_FORMAT")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("METRICS_PATH")
	}

	if c.Notify.RelayInterval <= 0 {
		add("RELAY_INTERVAL")
	}
	if c.Notify.BatchSize <= 0 {
		add("RELAY_BATCH_SIZE")
	}

	for i, room := range c.Seed.Rooms {
		if strings.TrimSpace(room.Floor) == "" || strings.TrimSpace(room.Name) == "" || room.Capacity <= 0 {
			invalid = append(invalid, fmt.Sprintf("seed.rooms[%d]", i))
		}
	}
	for i, person := range c.Seed.Persons {
		if strings.TrimSpace(person.ID) == "" || strings.TrimSpace(person.DisplayName) == "" {
			invalid = append(invalid, fmt.Sprintf("seed.persons[%d]", i))
		}
	}
	return invalid
}

// envReader reads prefixed keys from the process environment, falling back to
// the env file.
type envReader struct {
	lookup  func(string) (string, bool)
	dotenv  map[string]string
	invalid []string
}

func (e *envReader) get(key string) (string, bool) {
	name := EnvPrefix + key
	if value, ok := e.lookup(name); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	if value, ok := e.dotenv[name]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

func (e *envReader) reject(key string) {
	e.invalid = append(e.invalid, EnvPrefix+key)
}

func (e *envReader) string(key string, dst *string) {
	if value, ok := e.get(key); ok {
		*dst = value
	}
}

func (e *envReader) int(key string, dst *int) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.reject(key)
		return
	}
	*dst = parsed
}

func (e *envReader) bool(key string, dst *bool) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.reject(key)
		return
	}
	*dst = parsed
}

func (e *envReader) duration(key string, dst *time.Duration) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.reject(key)
		return
	}
	*dst = parsed
}
