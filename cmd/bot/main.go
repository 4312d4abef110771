package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/itsm0000/al-muallim-bot/config"
	"github.com/itsm0000/al-muallim-bot/services"
	"github.com/itsm0000/al-muallim-bot/store"
	"github.com/itsm0000/al-muallim-bot/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: failed to load configuration")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("FATAL: TELEGRAM_BOT_TOKEN is not set")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: failed to create Telegram bot")
	}
	log.Info().Str("account", bot.Self.UserName).Msg("Authorized on Telegram")

	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("FATAL: GEMINI_API_KEY is not set")
	}
	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: failed to create Gemini client")
	}

	curriculum, err := services.NewReloadingCurriculum(cfg.CurriculumFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CurriculumFile).Msg("FATAL: failed to load curriculum corpus")
	}
	go curriculum.Watch(ctx)

	retry := services.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	retry.BaseDelay = cfg.RetryBaseDelay

	grader := services.NewGradingService(geminiClient, services.GradingConfig{
		Model:          cfg.GeminiModel,
		Temperature:    cfg.Temperature,
		ThinkingBudget: cfg.ThinkingBudget,
		AttemptTimeout: cfg.GradingTimeout,
		MaxScore:       cfg.MaxScore,
		Retry:          retry,
	})
	annotator := services.NewAnnotator(services.AnnotatorConfig{FontPath: cfg.AnnotationFont})
	prompts := services.NewPromptBuilder(cfg.MaxScore)
	orchestrator := services.NewOrchestrator(curriculum, prompts, grader, annotator, cfg.MaxContextChars)

	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("FATAL: failed to connect to database")
		}
		defer st.Close()
		if err := st.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("FATAL: failed to initialize database schema")
		}
	}

	router := telegram.NewRouter(bot, orchestrator, curriculum, st)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	log.Info().Msg("Bot is listening for updates")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			bot.StopReceivingUpdates()
			return
		case upd := <-updates:
			go router.HandleUpdate(ctx, upd)
		}
	}
}
