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

	"campus-eats/config"
	"campus-eats/internal/api"
	"campus-eats/internal/broker"
	"campus-eats/internal/redisclient"
	"campus-eats/internal/service"
	"campus-eats/internal/store"
	"campus-eats/internal/util"
	"campus-eats/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting campus-eats service")

	tp, err := util.InitTracer("campus-eats", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	ledger := service.NewLoyaltyLedger(db, eventPublisher, cfg.Business.EarnDivisor)
	couponEngine := service.NewCouponEngine(db)
	orderWorkflow := service.NewOrderWorkflow(db, ledger, eventPublisher)
	kitchenSync := service.NewKitchenTaskSync(db, ledger, eventPublisher, redisClient)
	paymentProcessor := service.NewPaymentConfirmationProcessor(
		db,
		couponEngine,
		redisClient,
		eventPublisher,
		time.Duration(cfg.Business.WebhookDedupTTLHours)*time.Hour,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	boardConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	boardWorker := worker.NewBoardWorker(boardConsumer, redisClient)
	go func() {
		if err := boardWorker.Start(workerCtx); err != nil {
			log.Printf("Board worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderWorkflow, kitchenSync, ledger, couponEngine, paymentProcessor)
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
	boardWorker.Stop()

	log.Println("Server exited")
}
