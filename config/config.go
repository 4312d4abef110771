package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries every knob the binaries need. Values come from the
// environment, with a .env file loaded first if present.
type Config struct {
	Env  string `env:"ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"8080"`

	GeminiAPIKey   string  `env:"GEMINI_API_KEY"`
	GeminiModel    string  `env:"GEMINI_MODEL" env-default:"gemini-2.5-pro"`
	Temperature    float32 `env:"GEMINI_TEMPERATURE" env-default:"0.1"`
	ThinkingBudget int32   `env:"GEMINI_THINKING_BUDGET" env-default:"-1"`

	MaxScore        int    `env:"MAX_SCORE" env-default:"10"`
	MaxContextChars int    `env:"MAX_CONTEXT_CHARS" env-default:"12000"`
	CurriculumFile  string `env:"CURRICULUM_FILE" env-default:"curriculum_data/curriculum.json"`
	AnnotationFont  string `env:"ANNOTATION_FONT"`

	GradingTimeout time.Duration `env:"GRADING_TIMEOUT" env-default:"90s"`
	MaxRetries     int           `env:"GRADING_MAX_RETRIES" env-default:"2"`
	RetryBaseDelay time.Duration `env:"GRADING_RETRY_BASE_DELAY" env-default:"2s"`

	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	QuizzesDir       string        `env:"QUIZZES_DIR" env-default:"quizzes"`
	CodeTTL          time.Duration `env:"LOGIN_CODE_TTL" env-default:"5m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("CONFIG: no .env file found, relying on environment")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
