package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/frameparty/frameparty/internal/config"
	"github.com/frameparty/frameparty/internal/logging"
	"github.com/frameparty/frameparty/internal/room"
)

// NewHTTPServer wires base routes (health, metrics) plus the room API and
// the per-room WebSocket stream.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, roomHandlers *room.HTTPHandlers, wsHandler http.HandlerFunc) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.IntoContext(r.Context(), logger)
		w.Header().Set("Content-Type", "application/json")
		if err := pingDependencies(ctx, pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	if roomHandlers != nil {
		mux.HandleFunc("POST /v1/rooms", roomHandlers.CreateRoom)
		mux.HandleFunc("GET /v1/rooms/{code}", roomHandlers.GetRoom)
		mux.HandleFunc("POST /v1/rooms/{code}/join", roomHandlers.JoinRoom)
		mux.HandleFunc("POST /v1/rooms/{code}/leave", roomHandlers.LeaveRoom)
		mux.HandleFunc("POST /v1/rooms/{code}/frames", roomHandlers.AssembleFrames)
		mux.HandleFunc("POST /v1/rooms/{code}/start", roomHandlers.StartMatch)
		mux.HandleFunc("POST /v1/rooms/{code}/advance", roomHandlers.AdvanceFrame)
		mux.HandleFunc("POST /v1/rooms/{code}/complete", roomHandlers.CompleteMatch)
		mux.HandleFunc("POST /v1/rooms/{code}/reset", roomHandlers.ResetToLobby)
		mux.HandleFunc("POST /v1/rooms/{code}/settings", roomHandlers.UpdateSettings)
		mux.HandleFunc("POST /v1/rooms/{code}/guess", roomHandlers.SubmitGuess)
		mux.HandleFunc("POST /v1/rooms/{code}/heartbeat", roomHandlers.Heartbeat)
	}

	if wsHandler != nil {
		mux.HandleFunc("GET /ws/rooms/{code}", wsHandler)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: corsMiddleware(cfg.CORS, mux),
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

func corsMiddleware(cfg config.CORS, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(cfg.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
