package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	blockchain "hashauth/blockchain/client"
	"hashauth/config"
	"hashauth/internal/logging"
	"hashauth/internal/messaging/consumer"
	"hashauth/internal/models"
	worker "hashauth/processing"
	"hashauth/storage/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const engineConfigPath = "./config/engine.defaults.yml"

func main() {
	configPath := flag.String("config", engineConfigPath, "engine configuration file")
	flag.Parse()

	// Signing key may come from a local .env file
	_ = godotenv.Load()

	// 1. Load Engine Config
	engineCfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		fatal("Failed to load engine configuration: " + err.Error())
	}

	logger, err := logging.New("engine", engineCfg.Monitoring.LogLevel, engineCfg.Monitoring.LogFormat)
	if err != nil {
		fatal(err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting registration engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Dependencies
	dbStore, err := store.NewPostgresStore(ctx, engineCfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database store", zap.Error(err))
	}
	defer dbStore.Close()

	registry, err := blockchain.NewBlockchainClientFromFile(engineCfg.BlockchainClientConfigPath, logger)
	if err != nil {
		logger.Fatal("Failed to initialize blockchain client", zap.Error(err))
	}
	defer registry.Close()

	sender, ok := registry.Sender()
	if !ok {
		logger.Fatal("Blockchain client has no signing key; the engine cannot submit registrations")
	}
	logger.Info("Blockchain client ready", zap.String("sender", sender.Hex()))

	// 3. Initialize the consumer. One consumer feeds the single submitting worker.
	var mq consumer.Consumer
	if engineCfg.KafkaConsumer.IsMock() {
		demo := consumer.SampleMessages(time.Now())
		seedMockRegistrations(ctx, dbStore, demo, logger)
		mq = consumer.NewMockConsumer(logger, demo...)
	} else {
		mq, err = consumer.NewKafkaConsumer(engineCfg.KafkaConsumer, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
		}
	}
	defer mq.Close()

	// 4. Metrics endpoint
	var metricsServer *http.Server
	if engineCfg.Monitoring.EnableMetrics && engineCfg.Monitoring.MetricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(engineCfg.Monitoring.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{Addr: engineCfg.Monitoring.MetricsListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("Metrics server listening", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// 5. Start the worker
	w := worker.New(engineCfg.Worker, engineCfg.MaxTaskRetries, logger, dbStore, mq, registry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	logger.Info("Registration engine started. Press Ctrl+C to stop.")

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal, initiating graceful shutdown...", zap.String("signal", sig.String()))
	case <-done:
		logger.Warn("Worker stopped unexpectedly")
	}
	cancel()
	<-done

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	logger.Info("Registration engine shut down gracefully.")
}

// seedMockRegistrations stores the demo messages so the worker can claim
// them. Reruns find them already present.
func seedMockRegistrations(ctx context.Context, s store.Store, msgs []*models.ProductMessage, logger *zap.Logger) {
	now := time.Now()
	for _, msg := range msgs {
		reg := &store.Registration{
			RequestID:         msg.RequestID,
			Product:           msg.Product,
			Status:            store.StatusReceived,
			ReceivedTimestamp: now,
		}
		if err := s.InsertRegistrationBatch(ctx, []*store.Registration{reg}); err != nil {
			logger.Info("Demo registration not seeded", zap.String("request_id", msg.RequestID), zap.Error(err))
		}
	}
}

func fatal(msg string) {
	_, _ = os.Stderr.WriteString("FATAL: " + msg + "\n")
	os.Exit(1)
}
