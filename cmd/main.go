// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
//
// Usage:
//
//	main                          serve the API
//	main token <id> <role> [ttl]  print a signed bearer token for local use
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/auth"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/config"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/database"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/handler"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/repository"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := cfg.NewLogger()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, log, os.Args[2:]); err != nil {
			log.Fatalf("token: %v", err)
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

// run serves the API until SIGINT or SIGTERM. Errors are returned rather
// than fatal so deferred cleanup always runs.
func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open the store ────────────────────────────────────────────────
	var (
		camps service.CampStore
		regs  service.RegistrationStore
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := repository.NewMemory()
		camps, regs = mem.Camps(), mem.Registrations()
		log.Warn("Using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.DB, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.WithField("host", cfg.DB.Host).Info("Connected to PostgreSQL")
		camps = repository.NewCampRepository(pool)
		regs = repository.NewRegistrationRepository(pool)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	svc := service.NewCampService(camps, regs)
	campHandler := handler.NewCampHandler(svc, log)
	router := handler.NewRouter(campHandler, auth.NewVerifier(cfg.JWTSecret), cfg.CORSOrigin)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

func printToken(cfg config.Config, log *logrus.Logger, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: token <id> <donor|organizer> [ttl]")
	}
	ttl := 24 * time.Hour
	if len(args) > 2 {
		d, err := time.ParseDuration(args[2])
		if err != nil {
			return fmt.Errorf("parse ttl: %w", err)
		}
		ttl = d
	}
	tok, err := auth.Issue(cfg.JWTSecret, args[0], model.Role(args[1]), ttl)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"id": args[0], "role": args[1], "ttl": ttl}).Debug("issued token")
	fmt.Println(tok)
	return nil
}
