package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"wallebot/pkg/config"
	"wallebot/pkg/history"
)

const defaultChatModel = "gpt-4o-mini"

// defaultPersona is the fixed instruction template composed with every
// question. It is static configuration, never user-controllable.
const defaultPersona = `You are Wallmart's friendly AI assistant WALL-E.
You help users with shopping suggestions, order questions, and product details.
Be concise, warm, helpful and professional. If the message is casual, respond
like a customer support assistant with a friendly greeting.`

// ErrGenerationFailed marks any provider failure (timeout, quota, malformed
// response). Callers convert it to a generic apologetic reply; raw provider
// error text must never reach the end user.
var ErrGenerationFailed = errors.New("generation failed")

// Client generates conversational answers through the OpenAI chat API.
type Client struct {
	client         osdk.Client
	model          string
	persona        string
	requestTimeout time.Duration
}

// New resolves credentials and constructs the chat client. A missing API key
// is a startup error.
func New(cfg config.OpenAIConfig, persona string) (*Client, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, errors.New("openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	model := strings.TrimSpace(cfg.ChatModel)
	if model == "" {
		model = defaultChatModel
	}

	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = defaultPersona
	}

	return &Client{
		client:         osdk.NewClient(opts...),
		model:          model,
		persona:        persona,
		requestTimeout: requestTimeout,
	}, nil
}

// Health verifies provider reachability and credentials.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// Respond forwards the question plus the caller's bounded conversation
// history and returns the generated answer.
func (c *Client) Respond(ctx context.Context, question string, turns []history.Turn) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is empty", ErrGenerationFailed)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	log := chatLogger().With("operation", "respond")
	startedAt := time.Now()
	log.Debug("provider request started", "model", c.model, "question_length", len(question), "history_turns", len(turns))

	completion, err := c.client.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model:    osdk.ChatModel(c.model),
		Messages: c.buildMessages(question, turns),
	})
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(completion.Choices) == 0 {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no choices")
		return "", fmt.Errorf("%w: response contained no choices", ErrGenerationFailed)
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	if answer == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "empty answer")
		return "", fmt.Errorf("%w: response contained no text", ErrGenerationFailed)
	}

	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "answer_length", len(answer))
	return answer, nil
}

// buildMessages composes the persona, the replayed history, and the question
// into the provider message list. History is passed in full on every call.
func (c *Client) buildMessages(question string, turns []history.Turn) []osdk.ChatCompletionMessageParamUnion {
	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, 2*len(turns)+2)
	messages = append(messages, osdk.SystemMessage(c.persona))

	for _, turn := range turns {
		if turn.Question != "" {
			messages = append(messages, osdk.UserMessage(turn.Question))
		}
		if turn.Answer != "" {
			messages = append(messages, osdk.AssistantMessage(turn.Answer))
		}
	}

	messages = append(messages, osdk.UserMessage(question))
	return messages
}

func chatLogger() *slog.Logger {
	return slog.Default().With("component", "llm.openai")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func resolveAPIKey(cfg config.OpenAIConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}
