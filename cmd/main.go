package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"whisperchat/backend/internal/api/handler"
	"whisperchat/backend/internal/audit"
	"whisperchat/backend/internal/chathub"
	"whisperchat/backend/internal/config"
	"whisperchat/backend/internal/localization"
	"whisperchat/backend/internal/storage"
	"whisperchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		slog.Error("whisperchat stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("WHISPER_CONFIG_FILE"), "path to the YAML config file")
	messagesPath := flag.String("messages", "", "optional JSON file of message templates")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting whisperchat backend", "addr", cfg.Server.HTTPAddr, "audit", cfg.Audit.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	texts := localization.NewLocalizer(cfg.Messages, cfg.Formats, cfg.Help)
	if *messagesPath != "" {
		if err := texts.LoadJSON(*messagesPath); err != nil {
			return err
		}
	}

	// 1. Dependencies
	db, rdb, err := setupDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var store storage.Storage
	if db != nil {
		store = storage.NewStorageService(db, rdb)
	}

	recorder, err := audit.New(cfg.Audit, store, logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	// 2. Hub
	words := chathub.NewWordList(nil)
	words.LoadAsync(ctx, chathub.WordSource{
		Path:    cfg.Groups.WordList.Path,
		URL:     cfg.Groups.WordList.URL,
		Timeout: cfg.Groups.WordList.FetchTimeout,
	}, logger)

	conversations := chathub.NewConversationStore(chathub.SystemClock)
	groups := chathub.NewGroupRegistry(cfg.Groups.Lifetime, words, chathub.SystemClock, logger)

	opts := chathub.HubOptions{
		Store:        conversations,
		Groups:       groups,
		Texts:        texts,
		PublicPrefix: cfg.PublicPrefix,
		Logger:       logger,
	}
	if recorder != nil {
		opts.Audit = recorder
	}
	hub := chathub.NewManagerService(opts)

	sweeper := chathub.NewExpirationSweeper(conversations, groups, hub, texts,
		cfg.Sessions.TTL, cfg.Sessions.SweepInterval, logger)

	// 3. Background goroutines
	go hub.Run(ctx)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBotService(cfg.Telegram.Token, hub, logger)
		if err != nil {
			return err
		}
		go bot.Run(ctx)
	} else {
		logger.Info("telegram token not set, bot disabled")
	}

	// 4. HTTP
	if cfg.Server.JWTSecret == "" {
		logger.Warn("server.jwt_secret is empty, tokens are signed with an empty key")
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, groups, store, cfg.Server, logger).Register(r)

	server := &http.Server{
		Addr:           cfg.Server.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setupDependencies opens PostgreSQL and Redis when they are configured.
// Either result may be nil.
func setupDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gorm.DB, *redis.Client, error) {
	var (
		db  *gorm.DB
		rdb *redis.Client
		err error
	)
	if cfg.Database.DSN != "" {
		if db, err = storage.OpenDatabase(cfg.Database.DSN, logger); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Redis.Addr != "" {
		if rdb, err = storage.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}
	return db, rdb, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
