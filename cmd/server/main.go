/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the presence engine server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse environment configuration and command-line flags
  2. Initialize SQLite store
  3. Wire billing syncer (Stripe when a key is configured)
  4. Create API handler and router
  5. Start billing sweep scheduler
  6. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (flags override PORT and DB_PATH):
    PORT                 HTTP server port (default: 8080)
    DB_PATH              SQLite database path (default: presence.db)
    STRIPE_SECRET_KEY    Enables the Stripe billing provider
    SLACK_WEBHOOK_URL    Enables Slack status notifications
    SWEEP_INTERVAL       Billing sweep interval (default: 1h)
    SCHEDULER_ENABLED    Billing sweep on/off (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the billing scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/presence.db"

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
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/warp/presence-engine/api"
	"github.com/warp/presence-engine/billing"
	"github.com/warp/presence-engine/notify"
	"github.com/warp/presence-engine/store/sqlite"
)

// Config is the environment configuration.
type Config struct {
	Port             int           `env:"PORT" envDefault:"8080"`
	DBPath           string        `env:"DB_PATH" envDefault:"presence.db"`
	StripeSecretKey  string        `env:"STRIPE_SECRET_KEY"`
	SlackWebhookURL  string        `env:"SLACK_WEBHOOK_URL"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	SchedulerEnabled bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	// Flags override env for the two most commonly tweaked settings
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire billing. Without a Stripe key every sync is skipped or
	// failed-and-logged; local operation is unaffected either way.
	var provider billing.Provider
	if cfg.StripeSecretKey != "" {
		provider = billing.NewStripeProvider(cfg.StripeSecretKey)
	} else {
		log.Println("STRIPE_SECRET_KEY not set; billing sync disabled")
		provider = billing.Disabled{}
	}
	syncer := billing.NewSyncer(provider, store)

	// Initialize handler and router
	handler := api.NewHandler(store, syncer, notify.New(cfg.SlackWebhookURL))
	router := api.NewRouter(handler)

	// Billing reconciliation sweep
	scheduler := api.NewBillingScheduler(handler)
	scheduler.SweepInterval = cfg.SweepInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
