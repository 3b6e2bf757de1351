// File: product-inventory-service/cmd/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"product-inventory-service/internal/api"
	"product-inventory-service/internal/config"
	"product-inventory-service/internal/export"
	"product-inventory-service/internal/inventory"
	"product-inventory-service/internal/logger"
	"product-inventory-service/internal/seed"
	"product-inventory-service/internal/store"
)

const (
	defaultAppName = "ProductInventoryService"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "INFO: No .env file found or failed to load, relying on system environment")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(logger.Options{AppEnv: cfg.AppEnv, Level: cfg.LogLevel, Filename: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.Named(defaultAppName)
	log.Info("starting service", zap.String("app_env", cfg.AppEnv), zap.String("store_backend", cfg.Store.Backend))

	// --- Persistence ---
	kv, err := openKeyValueStore(cfg)
	if err != nil {
		log.Fatal("failed to open product store", zap.Error(err))
	}
	productStore := store.NewCollectionStore(kv, seed.NewLoader(cfg.Inventory.SeedFile), cfg.Store.Key)
	exporter, err := newExporter(cfg)
	if err != nil {
		log.Fatal("failed to set up exports", zap.Error(err))
	}

	service := inventory.NewService(productStore, exporter, inventory.Options{
		RecomputeStatusOnAdjust: cfg.Inventory.RecomputeStatusOnAdjust,
	})
	log.Info("inventory service ready",
		zap.String("storage_key", productStore.Key()),
		zap.Bool("recompute_status_on_adjust", cfg.Inventory.RecomputeStatusOnAdjust),
		zap.String("export_format", string(exporter.Format())))

	// --- Setup & Start HTTP Server ---
	httpAPIHandler := api.NewHTTPHandler(service, cfg.HttpServer.MaxUploadMB<<20)
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, log)
	registerHealthCheck(httpRouter, log, kv, cfg.Store.Key)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		log.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer, healthServer := setupGRPCServer(log)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		log.Fatal("failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatal("gRPC server Serve error", zap.Error(err))
		}
		log.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(log, httpServer, grpcServer, healthServer, kv, shutdownComplete)

	<-shutdownComplete
	log.Info("service shutdown sequence finished")
}

// openKeyValueStore opens the backend selected by STORE_BACKEND.
func openKeyValueStore(cfg *config.Config) (store.KeyValueStore, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database connection: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return store.OpenBoltStore(cfg.Store.BoltPath)
	}
}

// newExporter builds the post-save exporter; EXPORT_DIR "-" streams to stdout.
func newExporter(cfg *config.Config) (*export.Exporter, error) {
	format, err := export.ParseFormat(cfg.Inventory.ExportFormat)
	if err != nil {
		return nil, err
	}
	if cfg.Inventory.ExportDir == "-" {
		return export.NewExporter(&export.WriterSink{W: os.Stdout}, format), nil
	}
	return export.NewExporter(export.DirSink{Dir: cfg.Inventory.ExportDir}, format), nil
}

func setupBaseMiddleware(router *chi.Mux, log *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	log.Info("base HTTP middleware registered")
}

func registerHealthCheck(router *chi.Mux, log *zap.Logger, kv store.KeyValueStore, key string) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		storeStatus := "healthy"
		if _, err := kv.Get(ctx, key); err != nil && !errors.Is(err, store.ErrKeyNotFound) {
			storeStatus = "unhealthy"
			log.Warn("health check store read failed", zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"store":       storeStatus,
		})
	})
	log.Info("HTTP health check registered", zap.String("path", healthPath))
}

func setupGRPCServer(log *zap.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	// Only the standard health and reflection services are exposed over gRPC.
	healthServer := health.NewServer()
	healthServer.SetServingStatus(defaultAppName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	log.Info("gRPC health check service registered")

	reflection.Register(s)
	log.Info("gRPC reflection service registered")

	return s, healthServer
}

func waitForShutdown(
	log *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	kv store.KeyValueStore,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.Info("received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	healthServer.Shutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		log.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		log.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	// Requests are drained, so no writer can still be using the store.
	if err := kv.Close(); err != nil {
		log.Warn("error closing product store", zap.Error(err))
	}

	log.Info("graceful shutdown sequence completed")
}
