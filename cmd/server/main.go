/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the spirit balance ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), then parse command-line flags
  2. Load the plant configuration
  3. Initialize SQLite store
  4. Create API handler, start the refresh queue and day-close scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: spirit.db)
           Use ":memory:" for in-memory database
  -plant   Plant JSON file (default: built-in two-pool layout)

ENVIRONMENT:
  SPIRIT_PORT, SPIRIT_DB, SPIRIT_PLANT override the flag defaults; an
  explicit flag wins over the environment. SPIRIT_LOG_LEVEL sets the log
  level (debug, info, warn, error).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, then the refresh queue
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bond.db" -plant="./config/plant.json"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/warp/spirit-ledger/api"
	"github.com/warp/spirit-ledger/factory"
	"github.com/warp/spirit-ledger/observability"
	"github.com/warp/spirit-ledger/spirit"
	"github.com/warp/spirit-ledger/store/sqlite"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	logger := observability.NewLogger("server")

	// Flags
	port := flag.Int("port", envInt(logger, "SPIRIT_PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("SPIRIT_DB", "spirit.db"), "SQLite database path")
	plantPath := flag.String("plant", envString("SPIRIT_PLANT", ""), "Plant JSON file")
	flag.Parse()

	plant, err := loadPlant(*plantPath)
	if err != nil {
		logger.Fatal().Err(err).Str("plant", *plantPath).Msg("failed to load plant")
	}
	logger.Info().
		Str("plant", plant.Name).
		Int("primary_tanks", len(plant.PrimaryTanks)).
		Int("blending_tanks", len(plant.BlendingTanks)).
		Str("tolerance", plant.Tolerance.String()).
		Msg("plant loaded")

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler and background workers
	handler := api.NewHandler(store, plant, logger)
	handler.Queue.Start()
	defer handler.Queue.Stop()

	scheduler := api.NewDayCloseScheduler(handler.Queue, logger.With().Str("subsystem", "scheduler").Logger())
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Int("port", *port).Msgf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	logger.Info().Msg("server stopped")
}

func loadPlant(path string) (spirit.Plant, error) {
	f := factory.NewPlantFactory()
	if path == "" {
		return f.ParsePlant(factory.DefaultPlantJSON())
	}
	return f.LoadPlant(path)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(logger zerolog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer env value")
		return def
	}
	return n
}
