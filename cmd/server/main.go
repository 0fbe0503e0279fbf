/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the readiness window tracking server. Handles
  configuration, dependency injection, the reminder scheduler and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (YAML file + environment overrides)
  3. Initialize SQLite store
  4. Wire tracker, metrics, HTTP handler and router
  5. Start the reminder scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Configuration file path (default: config.yaml, optional)
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: readiness.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT OVERRIDES:
  READINESS_INTERVAL_DAYS, READINESS_WINDOW_MODE,
  READINESS_FIXED_LENGTH_DAYS, READINESS_TIMEZONE,
  READINESS_REMINDER_HOUR, READINESS_REMIND_OVERDUE,
  READINESS_LOG_LEVEL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Reminder scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/warp/readiness-engine/api"
	"github.com/warp/readiness-engine/store/sqlite"
	"github.com/warp/readiness-engine/tracking"
)

// loadConfig reads the tracking configuration from an optional YAML file
// with environment variable overrides.
func loadConfig(path string) (tracking.Config, string, error) {
	cfg := tracking.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	filename := filepath.Base(path)
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.AddConfigPath(filepath.Dir(path))

	v.SetDefault("interval_days", cfg.IntervalDays)
	v.SetDefault("window_mode", string(cfg.WindowMode))
	v.SetDefault("fixed_length_days", cfg.FixedLengthDays)
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("remind_overdue", cfg.RemindOverdue)
	v.SetDefault("reminder_hour", cfg.ReminderHour)
	v.SetDefault("log_level", "info")

	v.BindEnv("interval_days", "READINESS_INTERVAL_DAYS")
	v.BindEnv("window_mode", "READINESS_WINDOW_MODE")
	v.BindEnv("fixed_length_days", "READINESS_FIXED_LENGTH_DAYS")
	v.BindEnv("timezone", "READINESS_TIMEZONE")
	v.BindEnv("reminder_hour", "READINESS_REMINDER_HOUR")
	v.BindEnv("remind_overdue", "READINESS_REMIND_OVERDUE")
	v.BindEnv("log_level", "READINESS_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, "", err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, "", err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	return cfg, v.GetString("log_level"), nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "configuration file path")
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "readiness.db", "SQLite database path")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, logLevel, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	if lvl, err := zerolog.ParseLevel(logLevel); err == nil {
		log = log.Level(lvl)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	tracker := tracking.NewTracker(store, cfg)
	metrics := api.NewMetrics(prometheus.DefaultRegisterer)
	handler := api.NewHandler(tracker, log, metrics)
	router := api.NewRouter(handler, prometheus.DefaultGatherer)

	scheduler := api.NewScheduler(tracker, api.LogNotifier{Log: log}, log, metrics)
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
