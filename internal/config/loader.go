package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/tgrecall/tgrecall/internal/errors"
)

// Defaults for optional settings. Retrieval knobs default to a narrow
// window: two neighbors per side, reply chains two levels deep, and a
// 10k-rune budget for matched text.
const (
	defaultDBPath = "tgrecall.db"

	defaultGeminiModel      = "gemini-2.0-flash"
	defaultGeminiTemp       = 0.7
	defaultGeminiRetries    = 2
	defaultGeminiRetryDelay = 5
	defaultGeminiTimeout    = 2 * time.Minute

	defaultContextRadius = 2
	defaultReplyDepth    = 2
	defaultCharBudget    = 10000
	defaultMaxKeywords   = 8
	defaultWindowDays    = 7

	defaultMaintenanceSchedule = "0 0 4 * * *"
	defaultDigestSchedule      = "0 0 9 * * *"
)

var defaultMessages = MessagesConfig{
	Welcome: "👋 Hi! I archive this group's messages and answer questions about them. Try /ask followed by your question.",
	Help: "📖 Commands:\n" +
		"/ask <question> - answer a question from this chat's archive\n" +
		"/recall <keyword, keyword, ...> - find archived messages by keywords\n" +
		"/stats - archive statistics for this chat\n" +
		"/reset confirm - wipe this chat's archive (admin only)",

	ErrorUnauthorizedMsg: "🚫 Access denied. Please contact the administrator.",
	ErrorGeneralMsg:      "❌ An error occurred. Please try again later.",
	ErrorTimeoutMsg:      "⏱️ Request timed out. Please try again later.",

	AskNoQuestionMsg:    "ℹ️ Please provide a question after the command.",
	AskNoAnswerMsg:      "🤔 I couldn't find an answer to that in the archive.",
	RecallNoKeywordsMsg: "ℹ️ Please provide comma-separated keywords after the command.",
	NoResultsMsg:        "🔍 Nothing in the archive matches that. Try different wording.",
	EmptyArchiveMsg:     "🗃 The archive for this chat is empty.",

	ResetUsageMsg:   "ℹ️ This wipes the chat archive. Run /reset confirm to proceed.",
	ResetConfirmMsg: "🔄 Archive for this chat has been cleared.",
	ResetErrorMsg:   "❌ Failed to clear the archive. Please try again later.",
	ResetTimeoutMsg: "⏱️ Reset timed out. Please try again later.",

	DigestHeaderMsg: "🗞 Daily digest:",
}

// LoadConfig loads and validates configuration from, in increasing
// precedence: built-in defaults, the YAML file at path, and TGRECALL_*
// environment variables (keys flattened with underscores, e.g.
// TGRECALL_TELEGRAM_TOKEN). A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("TGRECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid configuration", err)
	}

	return cfg, nil
}

// setDefaults registers every known key so environment overrides resolve
// even without a config file. Required secrets default to empty strings and
// are caught by validation when left unset.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("database.path", defaultDBPath)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", defaultGeminiModel)
	v.SetDefault("gemini.temperature", defaultGeminiTemp)
	v.SetDefault("gemini.max_retries", defaultGeminiRetries)
	v.SetDefault("gemini.retry_delay_seconds", defaultGeminiRetryDelay)
	v.SetDefault("gemini.request_timeout", defaultGeminiTimeout)

	v.SetDefault("retrieval.context_radius", defaultContextRadius)
	v.SetDefault("retrieval.reply_depth", defaultReplyDepth)
	v.SetDefault("retrieval.char_budget", defaultCharBudget)
	v.SetDefault("retrieval.max_keywords", defaultMaxKeywords)
	v.SetDefault("retrieval.window_days", defaultWindowDays)

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", defaultMaintenanceSchedule)
	v.SetDefault("scheduler.tasks.daily_digest.enabled", false)
	v.SetDefault("scheduler.tasks.daily_digest.schedule", defaultDigestSchedule)

	v.SetDefault("messages.welcome", defaultMessages.Welcome)
	v.SetDefault("messages.help", defaultMessages.Help)
	v.SetDefault("messages.error_unauthorized", defaultMessages.ErrorUnauthorizedMsg)
	v.SetDefault("messages.error_general", defaultMessages.ErrorGeneralMsg)
	v.SetDefault("messages.error_timeout", defaultMessages.ErrorTimeoutMsg)
	v.SetDefault("messages.ask_no_question", defaultMessages.AskNoQuestionMsg)
	v.SetDefault("messages.ask_no_answer", defaultMessages.AskNoAnswerMsg)
	v.SetDefault("messages.recall_no_keywords", defaultMessages.RecallNoKeywordsMsg)
	v.SetDefault("messages.no_results", defaultMessages.NoResultsMsg)
	v.SetDefault("messages.empty_archive", defaultMessages.EmptyArchiveMsg)
	v.SetDefault("messages.reset_usage", defaultMessages.ResetUsageMsg)
	v.SetDefault("messages.reset_confirm", defaultMessages.ResetConfirmMsg)
	v.SetDefault("messages.reset_error", defaultMessages.ResetErrorMsg)
	v.SetDefault("messages.reset_timeout", defaultMessages.ResetTimeoutMsg)
	v.SetDefault("messages.digest_header", defaultMessages.DigestHeaderMsg)
}
