package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"famly/internal/assistant"
	"famly/internal/backup"
	"famly/internal/database"
	"famly/internal/logging"
	"famly/internal/push"
	"famly/internal/server"
)

func main() {
	generateKeys := flag.Bool("generate-vapid-keys", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *generateKeys {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("failed to generate VAPID keys: %v", err)
		}
		fmt.Printf("FAMLY_VAPID_PUBLIC_KEY=%s\nFAMLY_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	// Missing .env is fine; everything falls back to the environment.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("FAMLY_LOG_LEVEL"), os.Getenv("FAMLY_LOG_FORMAT"))

	port := envOr("FAMLY_PORT", "8080")
	dbPath := envOr("FAMLY_DB_PATH", "famly.db")

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		Assistant: assistant.Config{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   os.Getenv("GEMINI_MODEL"),
			BaseURL: os.Getenv("GEMINI_BASE_URL"),
		},
		VAPIDPublicKey:  os.Getenv("FAMLY_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("FAMLY_VAPID_PRIVATE_KEY"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("FAMLY_S3_ENDPOINT"),
				Bucket:    os.Getenv("FAMLY_S3_BUCKET"),
				Region:    envOr("FAMLY_S3_REGION", "auto"),
				AccessKey: os.Getenv("FAMLY_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("FAMLY_S3_SECRET_KEY"),
			},
			DBPath:        dbPath,
			Passphrase:    os.Getenv("FAMLY_BACKUP_PASSPHRASE"),
			ScheduleHour:  envInt("FAMLY_BACKUP_SCHEDULE_HOUR", 3),
			RetentionDays: envInt("FAMLY_BACKUP_RETENTION_DAYS", 30),
		},
	}
	if cfg.Assistant.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, chat assistant disabled")
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.PushScheduler().Start(ctx)
	defer srv.PushScheduler().Stop()

	if srv.BackupManager().Enabled() {
		srv.BackupManager().Start(ctx)
		defer srv.BackupManager().Stop()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		// Chat turns wait on the completion service, which gets up to
		// 30 seconds of its own.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("famly listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}
