package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"talkitout/internal/domain"
)

const (
	systemPrompt = `You are an assistant that classifies the main topic of a journal entry and suggests a context-aware journaling prompt. Respond in JSON: {"topic": <topic>, "prompt": <prompt>}`

	fallbackTransportPrompt = "Could not get prompt."
	fallbackParsePrompt     = "Could not parse response."

	defaultModel     = goopenai.GPT3Dot5Turbo
	defaultMaxTokens = 100
)

// Config controls the chat-completion classifier.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Classifier implements ports.Classifier over a chat-completion endpoint.
type Classifier struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

func NewClassifier(cfg Config, logger *slog.Logger) *Classifier {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Classify makes a single request. Any failure resolves to the Unknown topic
// with a fallback prompt.
func (c *Classifier) Classify(ctx context.Context, transcript string) domain.Classification {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: fmt.Sprintf("Journal entry: \"%s\"", transcript)},
		},
	})
	if err != nil {
		c.logger.Warn("classification request failed", slog.String("error", err.Error()))
		return domain.Classification{Topic: domain.UnknownTopic, Prompt: fallbackTransportPrompt}
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("classification response had no choices")
		return domain.Classification{Topic: domain.UnknownTopic, Prompt: fallbackTransportPrompt}
	}

	result, err := parseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("classification response unparseable", slog.String("error", err.Error()))
		return domain.Classification{Topic: domain.UnknownTopic, Prompt: fallbackParsePrompt}
	}
	return result
}

type classificationPayload struct {
	Topic  *string `json:"topic"`
	Prompt *string `json:"prompt"`
}

func parseClassification(content string) (domain.Classification, error) {
	var payload classificationPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	if payload.Topic == nil || payload.Prompt == nil {
		return domain.Classification{}, fmt.Errorf("classification is missing topic or prompt")
	}
	return domain.Classification{Topic: *payload.Topic, Prompt: *payload.Prompt}, nil
}
