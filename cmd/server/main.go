package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-gateway/config"
	"webhook-gateway/internal/api"
	"webhook-gateway/internal/auth"
	"webhook-gateway/internal/broker"
	"webhook-gateway/internal/dedup"
	"webhook-gateway/internal/redisclient"
	"webhook-gateway/internal/resilience"
	"webhook-gateway/internal/service"
	"webhook-gateway/internal/store"
	"webhook-gateway/internal/util"
	"webhook-gateway/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting webhook gateway")

	tp, err := util.InitTracer("webhook-gateway", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	verifier := auth.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance)
	deduplicator := dedup.NewDeduplicator(db, redisClient)

	breakers := resilience.NewBreakerRegistry(
		cfg.Breaker.Threshold,
		cfg.Breaker.OpenDuration,
		cfg.Breaker.ResetDuration,
	)
	retryPolicy := resilience.RetryPolicy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
	}

	fulfillment := service.NewFulfillmentClient(cfg.Processing.FulfillmentURL)
	steps := service.DefaultSteps(fulfillment, db, eventPublisher, func() string {
		return uuid.New().String()
	})
	processor := service.NewProcessor(steps, breakers, retryPolicy, cfg.Processing.StepTimeout)
	runner := service.NewRunner(processor, deduplicator, eventPublisher)

	webhookService := service.NewWebhookService(
		verifier,
		deduplicator,
		db,
		eventPublisher,
		runner,
		cfg.Webhook.SyncProcessing,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	processWorker := worker.NewProcessWorker(orderConsumer, runner, db)
	go func() {
		if err := processWorker.Start(workerCtx); err != nil {
			log.Printf("Process worker error: %v", err)
		}
	}()

	reconciler := worker.NewReconciler(
		db, db, runner, redisClient,
		cfg.Processing.SweepInterval,
		cfg.Processing.SweepBatch,
	)
	go func() {
		if err := reconciler.Start(workerCtx); err != nil {
			log.Printf("Reconciler error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(webhookService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	processWorker.Stop()

	log.Println("Server exited")
}
