// Package config loads and validates the application configuration from
// config.yaml, TGRECALL_* environment variables, and built-in defaults.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
)

// Config holds the configuration for all components: logging, storage,
// the Telegram front end, the Gemini client, retrieval tuning, scheduled
// tasks, and user-facing message texts.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the SQLite archive file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials and the admin user allowed to run
// destructive commands. BotInfo is filled from GetMe at startup, never from
// the config file.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`

	BotInfo *models.User `mapstructure:"-"`
}

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"             validate:"required"`
	ModelName         string        `mapstructure:"model_name"          validate:"required"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=300"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     validate:"min=1s,max=10m"`
}

// RetrievalConfig tunes the archive retrieval engine. ContextRadius is the
// number of neighbors fetched on each side of a keyword match, ReplyDepth
// bounds reply-chain traversal, CharBudget caps the total matched text the
// keyword optimizer allows, and WindowDays is the default lookback window
// for /ask.
type RetrievalConfig struct {
	ContextRadius int `mapstructure:"context_radius" validate:"min=0,max=50"`
	ReplyDepth    int `mapstructure:"reply_depth"    validate:"min=0,max=100"`
	CharBudget    int `mapstructure:"char_budget"    validate:"min=0"`
	MaxKeywords   int `mapstructure:"max_keywords"   validate:"min=1,max=25"`
	WindowDays    int `mapstructure:"window_days"    validate:"min=1,max=365"`
}

// SchedulerConfig maps task names to their schedules. The names must match
// the keys registered by the tasks package.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a scheduled task and sets its cron schedule
// (six fields, with seconds).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds the user-facing texts the bot sends.
type MessagesConfig struct {
	Welcome string `mapstructure:"welcome" validate:"required"`
	Help    string `mapstructure:"help"    validate:"required"`

	ErrorUnauthorizedMsg string `mapstructure:"error_unauthorized" validate:"required"`
	ErrorGeneralMsg      string `mapstructure:"error_general"      validate:"required"`
	ErrorTimeoutMsg      string `mapstructure:"error_timeout"      validate:"required"`

	AskNoQuestionMsg    string `mapstructure:"ask_no_question"    validate:"required"`
	AskNoAnswerMsg      string `mapstructure:"ask_no_answer"      validate:"required"`
	RecallNoKeywordsMsg string `mapstructure:"recall_no_keywords" validate:"required"`
	NoResultsMsg        string `mapstructure:"no_results"         validate:"required"`
	EmptyArchiveMsg     string `mapstructure:"empty_archive"      validate:"required"`

	ResetUsageMsg   string `mapstructure:"reset_usage"   validate:"required"`
	ResetConfirmMsg string `mapstructure:"reset_confirm" validate:"required"`
	ResetErrorMsg   string `mapstructure:"reset_error"   validate:"required"`
	ResetTimeoutMsg string `mapstructure:"reset_timeout" validate:"required"`

	DigestHeaderMsg string `mapstructure:"digest_header" validate:"required"`
}

// Validate checks the configuration against the struct validation tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
