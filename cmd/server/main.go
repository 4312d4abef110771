package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/itsm0000/al-muallim-bot/config"
	"github.com/itsm0000/al-muallim-bot/controller"
	"github.com/itsm0000/al-muallim-bot/services"
	"github.com/itsm0000/al-muallim-bot/store"
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
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	log.Info().Str("model", cfg.GeminiModel).Msg("Connected to Google Gemini")

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

	// Teacher accounts, quizzes and the grading log need Postgres; the grading
	// endpoint itself works without it.
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
	} else {
		log.Warn().Msg("DATABASE_URL not set, running without teacher accounts")
	}

	gradingController := controller.NewGradingController(orchestrator, st)

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"service":  "al-muallim grading API",
			"subjects": len(curriculum.Subjects()),
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/grade", gradingController.Grade)
	}

	if st != nil {
		auth := services.NewAuthService(st, services.LoggedCodeSender{}, cfg.CodeTTL)
		authController := controller.NewAuthController(auth)
		quizController := controller.NewQuizController(st, cfg.QuizzesDir)

		apiV1.POST("/auth/send-code", authController.SendCode)
		apiV1.POST("/auth/verify-code", authController.VerifyCode)
		apiV1.POST("/teachers/:id/quiz", quizController.Upload)
		apiV1.GET("/teachers/:id/quiz", quizController.Current)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Grading API server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("FATAL: server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
