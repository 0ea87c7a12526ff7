/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the salon engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logger and SQLite store
  3. Connect the event publisher (Kafka, or no-op without brokers)
  4. Create API handler and router
  5. Start the payroll scheduler when enabled
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -env     Extra .env file to load

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Stop the payroll scheduler and flush events
  4. Close database connection

EXAMPLES:
  # Local demo without tokens
  AUTH_DISABLED=true ./server -db=":memory:"

  # With event streaming
  JWT_SECRET=... KAFKA_BROKERS=localhost:9092 ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/salon-engine/api"
	"github.com/warp/salon-engine/booking"
	"github.com/warp/salon-engine/config"
	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/logger"
	"github.com/warp/salon-engine/payroll"
	"github.com/warp/salon-engine/salon"
	"github.com/warp/salon-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	envFile := flag.String("env", "", "extra .env file to load")
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		logger.New(logger.Config{Service: "salon-engine"}).Fatal("Failed to load configuration", "error", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stdout,
		Service: "salon-engine",
	})

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to initialize database", "db_path", cfg.DBPath, "error", err)
	}
	defer store.Close()

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	handler := api.NewHandler(store, api.HandlerConfig{
		Booking: booking.Options{
			DefaultServiceMinutes:  cfg.DefaultServiceMinutes,
			RescheduleShiftMinutes: cfg.RescheduleShiftMinutes,
			Location:               cfg.Location(),
			Clock:                  salon.SystemClock{},
			Events:                 publisher,
			Logger:                 log,
		},
		LatePenalty:  &cfg.LatePenalty,
		JWTSecret:    cfg.JWTSecret,
		AuthDisabled: cfg.AuthDisabled,
	})
	if cfg.AuthDisabled {
		log.Warn("Authentication disabled; callers are taken from X-User-ID/X-Role headers")
	}

	scheduler := payroll.NewScheduler(handler.Payroll(), salon.SystemClock{}, log)
	scheduler.CheckInterval = cfg.PayrollCheckInterval
	scheduler.Enabled = cfg.PayrollAutoRun
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, api.RouterConfig{AllowedOrigins: cfg.CORSOrigins}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr, "db_path", cfg.DBPath, "timezone", cfg.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server stopped")
}

// newPublisher connects to Kafka when brokers are configured.
func newPublisher(cfg *config.Config, log *logger.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("No KAFKA_BROKERS set; lifecycle events are not published")
		return events.Nop{}
	}
	pub, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	}, log)
	if err != nil {
		log.Fatal("Failed to create event publisher", "error", err)
	}
	log.Info("Publishing lifecycle events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return pub
}
