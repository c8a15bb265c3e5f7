package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telence/telence-go/internal/agent"
	"github.com/telence/telence-go/internal/config"
	"github.com/telence/telence-go/internal/history"
	"github.com/telence/telence-go/internal/httpx"
	"github.com/telence/telence-go/internal/llm"
	"github.com/telence/telence-go/internal/logger"
	"github.com/telence/telence-go/internal/prompt"
	"github.com/telence/telence-go/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	dbPath := os.Getenv("HISTORY_DB_PATH")
	if dbPath == "" {
		dbPath = "chat_history.db"
	}
	store, err := history.Open(dbPath)
	if err != nil {
		logger.L.Error("failed to open history database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client := httpx.NewClient(httpx.RetryPolicy{
		Retries: cfg.HTTP.Retries,
		Delay:   time.Duration(cfg.HTTP.DelayMS) * time.Millisecond,
	}, httpx.DefaultTimeout)

	generator, err := llm.New(cfg, client)
	if err != nil {
		logger.L.Error("failed to initialize LLM provider", "error", err)
		os.Exit(1)
	}
	logger.L.Info("LLM provider initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	builder := prompt.NewBuilder(store, prompt.Config{
		BotName:     cfg.Bot.Name,
		ContextSize: cfg.Context.Size,
		MaxMessages: cfg.Context.MaxMessages,
		Threshold:   time.Duration(cfg.Context.ThresholdSeconds) * time.Second,
	})

	pipeline := agent.New(store, builder, generator, cfg.Bot.Name)

	bot, err := telegram.New(cfg.Telegram.Token, pipeline)
	if err != nil {
		logger.L.Error("failed to start telegram bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.L.Info("bot is up and running", "name", cfg.Bot.Name)
	bot.Run(ctx)
	logger.L.Info("bot stopped")
}
