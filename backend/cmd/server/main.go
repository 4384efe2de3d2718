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

	"go.uber.org/zap"

	"school_admin/backend/internal/gateway"
	"school_admin/backend/internal/healthcheck"
	"school_admin/backend/internal/resettoken"
	"school_admin/backend/internal/shared"
)

func main() {
	// Load environment variables
	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// 1. Load Configuration (validates MONGO_URI and JWT_SECRET are present)
	cfg, err := shared.LoadServiceConfig(shared.ServiceAPI)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := shared.ValidateServiceConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := shared.NewServiceLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2. Connect to MongoDB
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := shared.DisconnectMongoDB(client); err != nil {
			logger.Warn("error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := shared.EnsureIndexes(indexCtx, db); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}
	cancel()

	// 3. Reset token store
	resets, err := resettoken.Open(cfg.Security.ResetTokenDir, cfg.Security.ResetTokenTTL, logger.Named("resettoken"))
	if err != nil {
		logger.Fatal("failed to open reset token store", zap.Error(err))
	}
	defer resets.Close()

	// 4. Services and routes
	svcs := gateway.NewServices(db, cfg, resets, logger)
	router := gateway.SetupRoutes(svcs, cfg, logger)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Health server
	healthServer := healthcheck.New(logger.Named("health"))
	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("failed to listen for health checks", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}
	go func() {
		if err := healthServer.Serve(listener); err != nil {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()

	// 6. Start HTTP server in a goroutine
	go func() {
		logger.Info("API listening", zap.String("port", cfg.HTTPPort), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()
	healthServer.MarkServing()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down API")

	healthServer.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete", zap.Error(err))
	}
	logger.Info("API stopped")
}
