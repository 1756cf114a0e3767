package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	appauth "github.com/campustools/gridcal/internal/auth"
	"github.com/campustools/gridcal/internal/config"
	"github.com/campustools/gridcal/internal/gcal"
	httpserver "github.com/campustools/gridcal/internal/http"
	"github.com/campustools/gridcal/internal/run"
	"github.com/campustools/gridcal/internal/scheduler"
	"github.com/campustools/gridcal/internal/source"
	"github.com/campustools/gridcal/internal/store"
)

func main() {
	log.Println("Starting GridCal server...")

	// A .env file is optional; deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zone, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to resolve timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)

	var src source.Source
	if cfg.Sheet.File != "" {
		src = source.File{Path: cfg.Sheet.File}
	} else {
		creds, err := cfg.GoogleCredentials()
		if err != nil {
			log.Fatalf("failed to load google credentials: %v", err)
		}
		g, err := source.NewGoogle(ctx, creds, cfg.Sheet.SpreadsheetID)
		if err != nil {
			log.Fatalf("failed to open sheet source: %v", err)
		}
		src = g
	}

	var cal run.Calendar
	if cfg.HasGoogleCredentials() {
		creds, err := cfg.GoogleCredentials()
		if err != nil {
			log.Fatalf("failed to load google credentials: %v", err)
		}
		client, err := gcal.NewClient(ctx, creds, zone)
		if err != nil {
			log.Fatalf("failed to initialize calendar client: %v", err)
		}
		cal = client
	} else {
		log.Printf("[WARN] no google credentials configured; calendar sync disabled")
	}

	svc := &run.Service{
		Source:       src,
		Store:        stor,
		Calendar:     cal,
		Zone:         zone,
		Tab:          cfg.Sheet.Tab,
		DayBlockRows: cfg.Sync.DayBlockRows,
		BatchSize:    cfg.Sync.BatchSize,
		PastDays:     cfg.Sync.PastDays,
		FutureDays:   cfg.Sync.FutureDays,
	}

	var sched *scheduler.Scheduler
	if cfg.Sync.Schedule != "" {
		sched, err = scheduler.New(cfg.Sync.Schedule, cfg.Sync.RunTimeout, func(ctx context.Context) error {
			_, err := svc.SyncAll(ctx)
			return err
		})
		if err != nil {
			log.Fatalf("failed to initialize sync scheduler: %v", err)
		}
		sched.Start()
	}

	// An optional second schedule refreshes the snapshot between full syncs.
	var ingestSched *scheduler.Scheduler
	if cfg.Sync.IngestSchedule != "" {
		ingestSched, err = scheduler.New(cfg.Sync.IngestSchedule, cfg.Sync.RunTimeout, func(ctx context.Context) error {
			_, err := svc.Ingest(ctx)
			return err
		})
		if err != nil {
			log.Fatalf("failed to initialize ingest scheduler: %v", err)
		}
		ingestSched.Start()
	}

	authService, err := appauth.NewService(ctx, cfg, stor)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	r := httpserver.NewRouter(cfg, stor, authService, svc, zone)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Printf("sync scheduler drain failed: %v", err)
		}
	}
	if ingestSched != nil {
		if err := ingestSched.Stop(shutdownCtx); err != nil {
			log.Printf("ingest scheduler drain failed: %v", err)
		}
	}
}
