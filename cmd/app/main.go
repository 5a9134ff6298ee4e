// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"seu-creysson-bot/internal/application"
	"seu-creysson-bot/internal/config"
	"seu-creysson-bot/internal/domain/ports/adapter"
	"seu-creysson-bot/internal/domain/ports/repository"
	ocr "seu-creysson-bot/internal/infra/adapters/ocr"
	tele "seu-creysson-bot/internal/infra/adapters/telegram"
	httpapi "seu-creysson-bot/internal/infra/http"
	"seu-creysson-bot/internal/infra/i18n"
	"seu-creysson-bot/internal/infra/logging"
	"seu-creysson-bot/internal/infra/memory"
	"seu-creysson-bot/internal/infra/metrics"
	red "seu-creysson-bot/internal/infra/redis"
	"seu-creysson-bot/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (verbose logs, unredacted OCR text)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
		boot.Fatal().Err(err).Str("path", *cfgPath).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister(nil)
	metrics.SetBuildInfo(version, commit)

	// ---- State store + rate limiter ----
	var (
		states  repository.StateRepository
		limiter tele.Limiter
		pinger  httpapi.Pinger
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		states = red.NewStateRepo(redisClient, cfg.State.TTL)
		limiter = red.NewRateLimiter(redisClient)
		pinger = redisClient
		logger.Info().Msg("state store: redis")
	} else {
		mem := memory.NewStateRepo(cfg.State.TTL)
		go mem.Run(ctx, time.Minute)
		states = mem
		logger.Info().Msg("state store: memory (no rate limit)")
	}

	// ---- OCR engine ----
	engine, err := newOCREngine(ctx, cfg.OCR, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("engine", cfg.OCR.Engine).Msg("ocr engine")
	}
	engine = ocr.NewLimitedOCR(engine, cfg.OCR.MaxConcurrent, cfg.OCR.Timeout)

	// ---- Use cases + conversation ----
	texts, err := i18n.NewTranslator(i18n.LocalesFS, "pt")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	receiptUC := usecase.NewReceiptUseCase(engine, logger, cfg.Runtime.Dev)
	bot := application.NewReceiptBot(receiptUC, states, texts, application.Options{
		AgencyChatID: cfg.Bot.AgencyChatID,
		StaffChatIDs: cfg.Bot.StaffChatIDs,
		Dev:          cfg.Runtime.Dev,
	}, logger)

	// ---- Telegram ----
	api, err := tele.ValidateToken(&cfg.Bot)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram token rejected")
	}
	api.Debug = cfg.Runtime.Dev
	logger.Info().Str("bot", api.Self.UserName).Msg("telegram authorized")

	botAdapter, err := tele.NewRealTelegramBotAdapter(api, &cfg.Bot, bot, limiter, cfg.OCR.MaxImageBytes, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	pollDone := make(chan error, 1)
	go func() { pollDone <- botAdapter.StartPolling(ctx) }()

	// ---- Ops HTTP server ----
	server := httpapi.NewServer(cfg.Admin.Port, pinger, nil, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	polling := true
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-pollDone:
		polling = false
		logger.Error().Err(err).Msg("telegram polling stopped")
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if polling {
		select {
		case err := <-pollDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("telegram polling")
			}
		case <-shutdownCtx.Done():
			logger.Warn().Msg("telegram workers did not drain in time")
		}
	}
	logger.Info().Msg("bye")
}

func newOCREngine(ctx context.Context, cfg config.OCRConfig, logger *zerolog.Logger) (adapter.OCREngine, error) {
	switch cfg.Engine {
	case "gemini":
		g, err := ocr.NewGeminiEngine(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("model", cfg.GeminiModel).Msg("ocr engine: gemini")
		return g, nil
	default:
		t := ocr.NewTesseractEngine(cfg, logger)
		if err := t.StartupCheck(ctx); err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.TesseractPath).Str("langs", cfg.Languages).Msg("ocr engine: tesseract")
		return t, nil
	}
}
