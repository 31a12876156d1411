package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patentworks/security-core/internal/api/rest"
	"github.com/patentworks/security-core/internal/infrastructure/config"
	"github.com/patentworks/security-core/internal/infrastructure/database"
	"github.com/patentworks/security-core/internal/infrastructure/events"
	"github.com/patentworks/security-core/internal/infrastructure/telemetry"
	"github.com/patentworks/security-core/internal/service/auditrisk"
	"github.com/patentworks/security-core/internal/service/compliance"
	"github.com/patentworks/security-core/internal/service/threatscore"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create service logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.NewStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	sink := events.NewSink(store, logger)
	defer sink.Close()

	threats := threatscore.NewService(store, zapLogger.Named("threatscore"), threatscore.Config{
		FailedLoginThreshold: cfg.Threat.FailedLoginThreshold,
		FailedLoginWindow:    cfg.Threat.FailedLoginWindow,
		ExportThreshold:      cfg.Threat.ExportThreshold,
		ExportWindow:         cfg.Threat.ExportWindow,
		DistinctIPThreshold:  cfg.Threat.DistinctIPThreshold,
		DistinctIPWindow:     cfg.Threat.DistinctIPWindow,
		QuietHourStart:       cfg.Threat.QuietHourStart,
		QuietHourEnd:         cfg.Threat.QuietHourEnd,
		SuspiciousIPs:        cfg.Threat.SuspiciousIPs,
		SubjectCacheSize:     cfg.Threat.SubjectCacheSize,
	})

	auditRisk := auditrisk.NewService(store, sink, zapLogger.Named("auditrisk"), auditrisk.Config{
		AssessmentCacheSize: cfg.Audit.SubjectCacheSize,
		MetricThreshold:     cfg.Audit.MetricThreshold,
		MaxEntryAge:         time.Duration(cfg.Audit.MaxAgeDays) * 24 * time.Hour,
		ActiveUserWindow:    24 * time.Hour,
	})

	comp := compliance.NewService(store, sink, zapLogger.Named("compliance"))
	if cfg.Compliance.CheckOnStartup {
		checks := comp.PerformComplianceCheck(ctx, "")
		logger.Info("startup compliance check complete", "checks", len(checks))
	}

	// Periodic retention cleanup for the in-memory audit state.
	go func() {
		ticker := time.NewTicker(cfg.Audit.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				auditRisk.CleanupOldData()
			}
		}
	}()

	// Recurring compliance evaluation; results land in the event sink.
	go func() {
		ticker := time.NewTicker(cfg.Compliance.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				comp.PerformComplianceCheck(ctx, "")
			}
		}
	}()

	handler := rest.NewHandler(threats, auditRisk, comp, sink, logger)
	server := rest.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}
