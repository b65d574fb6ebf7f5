package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"drainsentry-backend/internal/alerts"
	"drainsentry-backend/internal/api"
	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/db"
	"drainsentry-backend/internal/genai"
	"drainsentry-backend/internal/ingest"
	"drainsentry-backend/internal/kafka"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/monitor"
	"drainsentry-backend/internal/mqtt"
	"drainsentry-backend/internal/notification"
	"drainsentry-backend/internal/providers"
	"drainsentry-backend/internal/rtdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := dbConn.CreateSchema(ctx); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	store, err := rtdb.NewTreeStore(ctx, dbConn)
	if err != nil {
		log.Fatalf("Store load failed: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Errorf("Redis unreachable, continuing without cache/cooldown: %v", err)
			rdb = nil
		}
	}

	var cooldown notification.Cooldown
	if rdb != nil {
		cooldown = notification.NewRedisCooldown(rdb, cfg.Notification.Cooldown)
	}
	svc := notification.New(store, logger, cfg, cooldown, notification.Providers{
		Push:     providers.NewFCM(cfg, logger),
		Telegram: providers.NewTelegram(cfg, logger),
		Email:    providers.NewEmail(cfg),
	})
	var wg sync.WaitGroup
	svc.Start(&wg)

	ing := ingest.New(store, logger, rdb, svc)

	if cfg.Kafka.Broker != "" {
		consumer := kafka.NewConsumer(strings.Split(cfg.Kafka.Broker, ","), cfg.Kafka.Topic, cfg.Kafka.GroupID, ing, logger)
		consumer.Start(ctx, &wg)
		defer consumer.Close()
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	if cfg.MQTT.Broker != "" {
		ingestor := mqtt.New(cfg, ing, logger)
		if err := ingestor.Start(ctx); err != nil {
			logger.Errorf("MQTT connect failed: %v", err)
		} else {
			defer ingestor.Stop()
		}
	}

	scanner := monitor.New(store, logger, svc, cfg.Monitor.Interval)
	scanner.Start(ctx, &wg)

	mgr := alerts.NewManager(store, logger)
	defer mgr.Close()

	ai := genai.NewClient(cfg, logger)
	handler := api.NewHandler(store, logger, cfg, ing, mgr, ai)
	router := api.NewRouter(cfg, handler)

	server := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	svc.Stop()
	wg.Wait()
}
