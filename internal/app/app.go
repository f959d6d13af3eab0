package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/frameparty/frameparty/internal/config"
	"github.com/frameparty/frameparty/internal/db/repository"
	"github.com/frameparty/frameparty/internal/event"
	"github.com/frameparty/frameparty/internal/frame"
	"github.com/frameparty/frameparty/internal/frame/external"
	"github.com/frameparty/frameparty/internal/logging"
	"github.com/frameparty/frameparty/internal/room"
	"github.com/frameparty/frameparty/internal/server"
	"github.com/frameparty/frameparty/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	roomSvc   *room.Service
	wsHandler *room.WSHandler
	sweeper   *room.Sweeper
	bgCancels []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	store := repository.NewRoomStore(pool, logger)

	var bus event.Bus
	switch cfg.Events.Bus {
	case "redis":
		bus = event.NewRedisBus(redisClient, "", logger)
	default:
		bus = event.NewMemoryBus(logger)
	}

	catalogClient := external.NewCatalogClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, &http.Client{Timeout: cfg.Catalog.HTTPTimeout})
	pageCache := frame.NewCache(redisClient, cfg.Catalog.CacheTTL)
	assembler := frame.NewService(catalogClient, pageCache, frame.ServiceOptions{
		ImageBaseURL: cfg.Catalog.ImageBaseURL,
		MaxPages:     cfg.Catalog.MaxPages,
		FetchTimeout: cfg.Catalog.HTTPTimeout,
	}, logger)

	roomSvc := room.NewService(store, bus, assembler, room.Config{
		PreRoll:                cfg.Game.PreRollSeconds,
		Capacity:               cfg.Game.RoomCapacity,
		DefaultDifficulty:      room.Difficulty(cfg.Game.DefaultDifficulty),
		DefaultDurationMinutes: cfg.Game.DefaultDurationMinutes,
	}, logger)

	hub := ws.NewHub(logger)
	roomHandlers := room.NewHTTPHandlers(roomSvc, logger)
	wsHandler := room.NewWSHandler(roomSvc, hub, bus, logger)
	sweeper := room.NewSweeper(roomSvc, cfg.Game.SweepInterval, cfg.Game.PlayerTTL, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, roomHandlers, wsHandler.HandleRoom)

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		http:      apiServer,
		roomSvc:   roomSvc,
		wsHandler: wsHandler,
		sweeper:   sweeper,
		bgCancels: make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.wsHandler.Close()
	a.roomSvc.Close()
	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.sweeper != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.sweeper.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("stale player sweeper stopped")
			}
		}()
	}
}
