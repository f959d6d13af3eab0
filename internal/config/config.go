package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"frameparty"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres Postgres
	Redis    Redis
	Catalog  Catalog
	Game     Game
	Events   Events
	CORS     CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Catalog configures the external movie catalog client.
type Catalog struct {
	BaseURL      string        `env:"CATALOG_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	APIKey       string        `env:"CATALOG_API_KEY,notEmpty"`
	ImageBaseURL string        `env:"CATALOG_IMAGE_BASE_URL" envDefault:"https://image.tmdb.org/t/p/w1280"`
	HTTPTimeout  time.Duration `env:"CATALOG_HTTP_TIMEOUT" envDefault:"4s"`
	MaxPages     int           `env:"CATALOG_MAX_PAGES" envDefault:"5"`
	CacheTTL     time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"10m"`
}

// Game groups gameplay defaults.
type Game struct {
	PreRollSeconds         time.Duration `env:"GAME_PREROLL_SECONDS" envDefault:"5s"`
	RoomCapacity           int           `env:"GAME_ROOM_CAPACITY" envDefault:"12"`
	DefaultDifficulty      string        `env:"GAME_DEFAULT_DIFFICULTY" envDefault:"normal"`
	DefaultDurationMinutes int           `env:"GAME_DEFAULT_DURATION_MINUTES" envDefault:"5"`
	PlayerTTL              time.Duration `env:"GAME_PLAYER_TTL" envDefault:"2m"`
	SweepInterval          time.Duration `env:"GAME_SWEEP_INTERVAL" envDefault:"30s"`
}

// Events selects the fan-out backend. "memory" serves a single instance;
// "redis" lets multiple instances share one event stream.
type Events struct {
	Bus string `env:"EVENT_BUS" envDefault:"memory"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Events.Bus != "memory" && cfg.Events.Bus != "redis" {
		return nil, fmt.Errorf("EVENT_BUS must be memory or redis, got %q", cfg.Events.Bus)
	}
	return cfg, nil
}
