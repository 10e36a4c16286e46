package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seat_monitor_bot/internal/app"
	"seat_monitor_bot/internal/infra/config"
	idb "seat_monitor_bot/internal/infra/database"
	"seat_monitor_bot/internal/infra/email"
	"seat_monitor_bot/internal/infra/httpapi"
	"seat_monitor_bot/internal/infra/logger"
	"seat_monitor_bot/internal/infra/scheduler"
	"seat_monitor_bot/internal/infra/telegram"
	"seat_monitor_bot/internal/infra/vsb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. App: %s, LogLevel: %s, Environment: %s", cfg.AppName, cfg.LogLevel, cfg.Environment)

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	if err := idb.InitSchema(context.Background(), db); err != nil {
		log.Fatalf("FATAL: Could not initialize database schema: %v", err)
	}
	log.Info("Database schema initialized.")

	// Initialize Repositories
	watchRepo := idb.NewPostgresWatchRepository(db)
	monRepo := idb.NewPostgresMonitoringRepository(db)
	log.Info("Repositories initialized.")

	// Upstream client and notifiers
	vsbClient := vsb.NewClient(cfg)
	smtpNotifier := email.NewSMTPNotifier(cfg)

	var adminPinger app.AdminPinger
	adminNotifier, err := telegram.NewAdminNotifier(cfg.TelegramToken, cfg.AdminTelegramChatID)
	if err != nil {
		log.Warnf("Telegram admin channel unavailable: %v", err)
	} else if adminNotifier != nil {
		adminPinger = adminNotifier
		log.Info("Telegram admin relogin channel enabled.")
	}

	// Services
	monitorService := app.NewMonitorService(cfg, watchRepo, monRepo, vsbClient, smtpNotifier, adminPinger, log)
	adminService := app.NewAdminService(watchRepo, monRepo, cfg.AppName)
	log.Info("Services initialized.")

	// Background jobs
	monitorScheduler := scheduler.NewMonitorScheduler(monitorService, log, cfg.PollIntervalSeconds, cfg.PollJitterSeconds)
	monitorScheduler.Start()

	retentionJob := scheduler.NewRetentionJob(monRepo, log, cfg.CheckLogRetentionDays, cfg.RetentionCronSpec)
	if err := retentionJob.Start(); err != nil {
		log.Fatalf("FATAL: Could not start retention job: %v", err)
	}

	// Admin API
	router := httpapi.NewRouter(adminService, cfg.AdminAPIKey, log)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.Engine,
	}
	go func() {
		log.Infof("Admin API listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: Admin API server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	monitorScheduler.Stop()
	retentionJob.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Admin API shutdown error: %v", err)
	}
	log.Info("Application shut down gracefully.")
}
