package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	blockchain "hashauth/blockchain/client"
	apiconfig "hashauth/config"
	core "hashauth/ingestion/service/core"
	grpchandler "hashauth/ingestion/service/grpc"
	httphandler "hashauth/ingestion/service/http"
	"hashauth/internal/logging"
	"hashauth/internal/messaging/producer"
	"hashauth/storage/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Ingestion gateway configuration file path
const apiConfigPath = "./config/ingestion.defaults.yml"

func main() {
	configPath := flag.String("config", apiConfigPath, "ingestion configuration file")
	flag.Parse()

	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := apiconfig.LoadApiGatewayConfig(*configPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("FATAL: Failed to load ingestion configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New("ingestion", cfg.Monitoring.LogLevel, cfg.Monitoring.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("FATAL: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting ingestion gateway...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize dependencies
	dbStore, err := store.NewPostgresStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database store", zap.Error(err))
	}
	defer dbStore.Close()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaProducer, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer kafkaProducer.Close()

	// Authentication queries are optional; without a client auth answers 503 (FailedPrecondition over gRPC).
	var registry blockchain.RegistryClient
	if cfg.BlockchainClientConfigPath != "" {
		registry, err = blockchain.NewBlockchainClientFromFile(cfg.BlockchainClientConfigPath, logger)
		if err != nil {
			logger.Fatal("Failed to initialize blockchain client", zap.Error(err))
		}
		defer registry.Close()
	} else {
		logger.Info("blockchain_client_config_path not configured, product authentication disabled")
	}

	// 3. Create core Service and Handlers
	coreService := core.NewService(dbStore, kafkaProducer, registry, logger, cfg.BatchProcessor)
	defer coreService.Close()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	// 4. [Conditional startup] HTTP server
	var httpServer *http.Server
	if cfg.HttpListenAddr != "" {
		mux := http.NewServeMux()
		httphandler.NewProductHandler(coreService, logger).Register(mux, cfg.Monitoring.HealthCheckPath)
		if cfg.Monitoring.EnableMetrics {
			mux.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
		}
		httpServer = &http.Server{
			Addr:           cfg.HttpListenAddr,
			Handler:        mux,
			ReadTimeout:    cfg.HttpServer.ReadTimeout,
			WriteTimeout:   cfg.HttpServer.WriteTimeout,
			IdleTimeout:    cfg.HttpServer.IdleTimeout,
			MaxHeaderBytes: cfg.HttpServer.MaxHeaderBytes,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("HTTP server listening", zap.String("addr", cfg.HttpListenAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server: %w", err)
			}
		}()
	} else {
		logger.Info("http_listen_addr not configured, skipping HTTP server startup")
	}

	// 5. [Conditional startup] gRPC server
	var grpcServer *grpc.Server
	if cfg.GrpcListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
		if err != nil {
			logger.Fatal("Unable to listen on gRPC address", zap.String("addr", cfg.GrpcListenAddr), zap.Error(err))
		}
		grpcServer = grpc.NewServer()
		grpchandler.Register(grpcServer, grpchandler.NewServer(coreService, logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("gRPC server listening", zap.String("addr", cfg.GrpcListenAddr))
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	} else {
		logger.Info("grpc_listen_addr not configured, skipping gRPC server startup")
	}

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal, starting graceful shutdown...", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Server startup failed", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed", zap.Error(err))
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	wg.Wait()
	logger.Info("Ingestion gateway shut down.")
}
