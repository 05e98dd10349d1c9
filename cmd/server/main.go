package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focustimer/backend/internal/clock"
	"focustimer/backend/internal/config"
	"focustimer/backend/internal/db"
	"focustimer/backend/internal/handler"
	"focustimer/backend/internal/notify"
	"focustimer/backend/internal/persistence"
	"focustimer/backend/internal/repository"
	"focustimer/backend/internal/router"
	"focustimer/backend/internal/service"
	"focustimer/backend/internal/stream"
	"focustimer/backend/internal/syncbus"
	"focustimer/backend/internal/timer"
	"focustimer/backend/internal/worker"
)

func main() {
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	migrations, err := db.Migrations(cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}
	if err := db.RunMigrations(database, migrations); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	durations, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Printf("load settings, using defaults: %v", err)
	}

	clk := clock.System{}
	bus := syncbus.New(64)
	center := notify.NewCenter()
	signer := notify.NewActionSigner(cfg.ActionSecret, cfg.ActionTokenTTL, clk)
	background := worker.New(clk, bus, notify.NewDriver(center, signer, clk), signer, worker.Config{
		TickInterval: cfg.BackgroundTick,
		AppURL:       cfg.AppURL,
	})

	hub := stream.NewHub()
	store := persistence.NewAdapter(repository.NewStateRepository(database), cfg.SaveDebounce)
	focusService := service.NewFocusService(clk, timer.New(clk, durations), bus, store, hub, service.Options{
		TickInterval: cfg.ForegroundTick,
		SyncInterval: cfg.SyncInterval,
		SettingsPath: cfg.SettingsPath,
		AppURL:       cfg.AppURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := background.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("background worker stopped: %v", err)
		}
	}()
	focusService.Load(ctx)
	go func() {
		if err := focusService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("focus service stopped: %v", err)
		}
	}()

	engine := router.New(
		handler.NewTimerHandler(focusService),
		handler.NewTaskHandler(focusService),
		handler.NewNotificationHandler(center, background),
		handler.NewEventHandler(hub, center, focusService),
		cfg.CORSOrigins,
	)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     engine,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown server: %v", err)
		}
	}()

	log.Printf("backend listening on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("run server: %v", err)
	}

	if err := focusService.Close(context.Background()); err != nil {
		log.Printf("flush state: %v", err)
	}
}
