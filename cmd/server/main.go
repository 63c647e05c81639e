/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, then LEAVE_* environment via viper)
  2. Initialize SQLite store
  3. Load the leave-type catalog and employee directory
  4. Wire ledger, engine, rollover, and HTTP handler
  5. Start rollover scheduler and HTTP server with graceful shutdown

CONFIGURATION:
  Flags override environment variables; both have defaults.

    flag        env                        default
    -port       LEAVE_PORT                 8080
    -db         LEAVE_DB                   leave.db (":memory:" supported)
    -config     LEAVE_CONFIG               "" (built-in standard catalog)
    -rollover   LEAVE_ROLLOVER_INTERVAL    1h (0 disables the scheduler)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the rollover scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with JSON catalog/directory config
  LEAVE_CONFIG=./config/leave.json ./server

  # Run on different port with in-memory database
  ./server -port=3000 -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/catalog.go: JSON config loading
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

	"github.com/spf13/viper"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("leave")
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("db", "leave.db")
	v.SetDefault("config", "")
	v.SetDefault("rollover_interval", time.Hour)

	// Flags override environment.
	port := flag.Int("port", v.GetInt("port"), "HTTP server port")
	dbPath := flag.String("db", v.GetString("db"), "SQLite database path")
	configPath := flag.String("config", v.GetString("config"), "JSON catalog/directory config path")
	rolloverEvery := flag.Duration("rollover", v.GetDuration("rollover_interval"), "rollover check interval (0 disables)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Load catalog and directory
	var (
		catalog   leave.Catalog
		directory *leave.StaticDirectory
	)
	if *configPath != "" {
		catalog, directory, err = factory.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		log.Printf("Loaded catalog and directory from %s", *configPath)
	} else {
		catalog = leave.DefaultCatalog()
		directory = leave.NewStaticDirectory()
		log.Printf("Using built-in standard catalog; seed employees via /api/admin/employees")
	}

	// Wire the core. The SQLite store doubles as the audit recorder.
	ledger := leave.NewLedger(store, store)
	engine := leave.NewEngine(store, ledger, catalog, directory, store)
	rollover := leave.NewRollover(store, catalog, directory, store)

	handler := api.NewHandler(engine, rollover, catalog)
	handler.Directory = directory
	handler.Audit = store

	// Rollover scheduler
	scheduler := api.NewRolloverScheduler(rollover)
	if *rolloverEvery > 0 {
		scheduler.CheckInterval = *rolloverEvery
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
