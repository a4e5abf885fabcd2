// Package gemini implements integration with Google's Gemini AI API.
// It generates search keywords from questions, answers questions over
// archive transcripts, and writes daily digests.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tgrecall/tgrecall/internal/config"
	apperrors "github.com/tgrecall/tgrecall/internal/errors"
)

// Client defines the AI operations used throughout the application.
type Client interface {
	// GenerateKeywords turns a free-form question into an ordered list of
	// archive search keywords, most relevant first.
	GenerateKeywords(ctx context.Context, question string, maxKeywords int) ([]string, error)

	// GenerateAnswer answers a question strictly from the given transcript.
	GenerateAnswer(ctx context.Context, question, transcript string) (string, error)

	// GenerateDigest summarizes one day of archived messages.
	GenerateDigest(ctx context.Context, transcript string) (string, error)
}

type sdkClient struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
}

// NewClient creates a new Gemini client from the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,

		// Archived group chat is informal and profane; echoing it in
		// prompts trips the default filters.
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:      gi,
		log:              logger,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

// withInstruction clones the base content config and sets a system
// instruction for a single call.
func (c *sdkClient) withInstruction(instruction string) *genai.GenerateContentConfig {
	copyCfg := *c.contentConfig
	copyCfg.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{{Text: instruction}},
	}
	return &copyCfg
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.defaultModelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", err, "code", apiErr.Code)
			return nil, apperrors.NewAPIError(fmt.Sprintf("gemini call failed after %d retries", c.maxRetries), err)
		}

		c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
		return nil, apperrors.NewAPIError("gemini call failed", err)
	}

	return nil, apperrors.NewAPIError("gemini call failed", err)
}

var keywordListSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Search keywords ordered from most to least relevant.",
	Items:       &genai.Schema{Type: genai.TypeString},
}

func (c *sdkClient) GenerateKeywords(ctx context.Context, question string, maxKeywords int) ([]string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewInvalidRequest("question is empty")
	}
	if maxKeywords < 1 {
		return nil, apperrors.NewInvalidRequest("maximum keyword count must be positive")
	}

	c.log.DebugContext(ctx, "Generating search keywords", "max_keywords", maxKeywords)

	cfg := c.withInstruction(fmt.Sprintf(KeywordSystemInstruction, maxKeywords))
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = keywordListSchema

	contents := []*genai.Content{genai.NewContentFromText(question, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}

	jsonText, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse keywords JSON array", "error", err, "response_text", jsonText)
		return nil, apperrors.NewAPIError("invalid keywords JSON received", err)
	}

	keywords := normalizeKeywords(raw, maxKeywords)
	if len(keywords) == 0 {
		return nil, apperrors.New(apperrors.CodeAPI, "keyword generation returned no usable keywords")
	}

	c.log.InfoContext(ctx, "Generated search keywords", "count", len(keywords))
	return keywords, nil
}

// normalizeKeywords lowercases and trims the raw keywords, drops empties,
// and deduplicates while preserving the relevance order.
func normalizeKeywords(raw []string, maxKeywords int) []string {
	seen := make(map[string]struct{}, len(raw))
	keywords := make([]string, 0, len(raw))

	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		keywords = append(keywords, k)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return keywords
}

func (c *sdkClient) GenerateAnswer(ctx context.Context, question, transcript string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.NewInvalidRequest("question is empty")
	}
	if strings.TrimSpace(transcript) == "" {
		return "", apperrors.NewInvalidRequest("transcript is empty")
	}

	c.log.DebugContext(ctx, "Generating answer", "transcript_length", len(transcript))

	prompt := fmt.Sprintf(AnswerPromptFmt, transcript, question)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, c.withInstruction(AnswerSystemInstruction))
	if err != nil {
		return "", err
	}

	return c.extractTextFromResponse(ctx, resp)
}

func (c *sdkClient) GenerateDigest(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", apperrors.NewInvalidRequest("transcript is empty")
	}

	c.log.DebugContext(ctx, "Generating digest", "transcript_length", len(transcript))

	contents := []*genai.Content{genai.NewContentFromText(transcript, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, c.withInstruction(DigestSystemInstruction))
	if err != nil {
		return "", err
	}

	return c.extractTextFromResponse(ctx, resp)
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	op := "gemini_operation"
	if pc, _, _, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			parts := strings.Split(fn.Name(), ".")
			if len(parts) >= 2 {
				op = parts[len(parts)-1]
			}
		}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", apperrors.New(apperrors.CodeAPI, fmt.Sprintf("%s blocked by safety filter: %s", op, reasonMsg))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "operation", op, "finish_reason", finishReason)
		return "", apperrors.New(apperrors.CodeAPI, fmt.Sprintf("%s returned no content, finish reason: %s", op, finishReason))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.log.WarnContext(ctx, "Gemini response text is empty", "operation", op)
		return "", apperrors.New(apperrors.CodeAPI, fmt.Sprintf("%s returned empty text", op))
	}

	return text, nil
}
