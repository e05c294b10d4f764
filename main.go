package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Hiprax/pixel-serve-server/config"
	"github.com/Hiprax/pixel-serve-server/handlers"
	"github.com/Hiprax/pixel-serve-server/middleware"
)

func main() {
	_ = godotenv.Load()

	opts := config.FromEnv()
	if opts.BaseDir == "" {
		opts.BaseDir = "images"
	}
	if err := os.MkdirAll(opts.BaseDir, 0755); err != nil {
		log.Fatalf("Failed to create image directory %s: %v", opts.BaseDir, err)
	}

	cfg, err := config.New(opts)
	if err != nil {
		log.Fatalf("Configuration rejected: %v", err)
	}

	perMin, burst := 120, 10
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perMin = n
		}
	}
	go middleware.StartCleaner()

	pixel := handlers.New(cfg)
	http.HandleFunc("/pixel", middleware.WithSecurity(middleware.RateLimit(perMin, burst, cfg.IsTrustedProxy, pixel)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	server := &http.Server{
		Addr:         port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("pixel-serve running on %s (base dir %s)", port, cfg.BaseDir)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
