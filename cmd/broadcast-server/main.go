package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jigardave8/icitizen-market/internal/config"
	"github.com/jigardave8/icitizen-market/internal/logger"
	redisClient "github.com/jigardave8/icitizen-market/internal/redis"
	"github.com/jigardave8/icitizen-market/internal/ws"
)

func main() {
	log := logger.New("[broadcast-server] ")
	log.Info("starting broadcast server...")

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file loaded")
	}
	cfg := loadConfig()

	log.Info("connecting to Redis...")
	subscriber, err := redisClient.NewSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("failed to connect to Redis: %v", err)
	}
	defer subscriber.Close()

	ctx := context.Background()
	if err := subscriber.SubscribeAll(ctx); err != nil {
		log.Fatal("failed to subscribe to Redis channels: %v", err)
	}
	log.Info("subscribed to marketplace events")

	wsManager := ws.NewManager(log)
	go wsManager.Run()

	messageChan := make(chan *redisClient.Message, 256)

	go func() {
		if err := subscriber.Listen(ctx, messageChan); err != nil {
			log.Error("redis listener error: %v", err)
		}
	}()

	// Forward Redis Pub/Sub messages to WebSocket clients per listing.
	go func() {
		for msg := range messageChan {
			wsManager.Broadcast(msg.ListingID, []byte(msg.Payload))
		}
	}()

	handler := ws.NewHandler(wsManager, log)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("broadcast server listening on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown: %v", err)
	}

	log.Info("server stopped gracefully")
}

// Config holds application configuration.
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8081"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
	}
}
