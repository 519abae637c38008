// Package main implements the Camera Control Container entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camera-control/ccc/internal/api"
	"github.com/camera-control/ccc/internal/audit"
	"github.com/camera-control/ccc/internal/auth"
	"github.com/camera-control/ccc/internal/camera"
	"github.com/camera-control/ccc/internal/capture"
	"github.com/camera-control/ccc/internal/command"
	"github.com/camera-control/ccc/internal/config"
	"github.com/camera-control/ccc/internal/executor"
	"github.com/camera-control/ccc/internal/system"
	"github.com/camera-control/ccc/internal/telemetry"
)

const Version = "1.0.0"

func main() {
	log.Printf("Starting Camera Control Container v%s", Version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded")

	auditLogger, err := audit.NewLogger(cfg.AuditDir)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	log.Printf("Audit log: %s", auditLogger.Path())

	telemetryHub := telemetry.NewHub(&cfg.Timing)

	exec := executor.New()

	settingSpecs := make([]camera.SettingSpec, 0, len(cfg.Settings))
	for _, entry := range cfg.Settings {
		settingSpecs = append(settingSpecs, camera.SettingSpec{
			Name:   entry.Name,
			Path:   entry.Path,
			Action: entry.Action,
		})
	}
	settingsStore := camera.NewStore(exec, camera.Options{
		Tool:            cfg.Tool,
		Settings:        settingSpecs,
		GetTimeout:      cfg.Timing.CommandGetConfig,
		SetTimeout:      cfg.Timing.CommandSetConfig,
		SetAdmitTimeout: cfg.Timing.AdmitSetConfig,
	})

	captureController := capture.NewController(exec, capture.Options{
		Tool:    cfg.Tool,
		BaseDir: cfg.CaptureDir,
		Margin:  cfg.Timing.CaptureMargin,
	})

	systemManager := system.NewManager(exec, map[string]string{
		"shutdown": os.Getenv(system.ShutdownEnv),
		"restart":  os.Getenv(system.RestartEnv),
	}, cfg.Timing.SystemCommand)

	orchestrator := command.NewOrchestrator(command.Options{
		Settings:     settingsStore,
		Capture:      captureController,
		System:       systemManager,
		Device:       exec,
		TelemetryHub: telemetryHub,
		AuditLogger:  auditLogger,
	})

	server, err := buildServer(cfg, orchestrator, telemetryHub)
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Printf("Listening on %s", cfg.Addr)
	log.Printf("Health endpoint: http://localhost%s/api/v1/health", cfg.Addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	telemetryHub.Stop()
	exec.Close()

	if err := auditLogger.Close(); err != nil {
		log.Printf("Error closing audit logger: %v", err)
	}

	log.Println("Camera Control Container shutdown complete")
}

// buildServer wires the API server, with bearer-token auth when the
// configuration carries verification material.
func buildServer(cfg *config.Config, orchestrator *command.Orchestrator, hub *telemetry.Hub) (*api.Server, error) {
	if cfg.Auth.Algorithm == "" {
		return api.NewServer(orchestrator, hub,
			cfg.Timing.HTTPReadTimeout, cfg.Timing.HTTPWriteTimeout, cfg.Timing.HTTPIdleTimeout), nil
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Algorithm:     cfg.Auth.Algorithm,
		SecretKey:     cfg.Auth.SecretKey,
		PublicKeyFile: cfg.Auth.PublicKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}

	return api.NewServerWithAuth(orchestrator, hub, auth.NewMiddleware(verifier),
		cfg.Timing.HTTPReadTimeout, cfg.Timing.HTTPWriteTimeout, cfg.Timing.HTTPIdleTimeout), nil
}
