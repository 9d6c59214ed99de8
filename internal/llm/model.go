// Package llm provides LLM and embedding services using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/jarvis/internal/config"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model profiles.
const (
	ProfileSmall  = "small"
	ProfileMedium = "medium"
	ProfileLarge  = "large"
)

const answerSystemPrompt = `Tu es Jarvis, un assistant personnel pour la maison.
Réponds en français, de façon concise et naturelle, comme à l'oral.
Si tu ne sais pas, dis-le simplement.`

// Model routes generation requests to one langchaingo model per profile.
type Model struct {
	profiles map[string]llms.Model
	names    map[string]string
	provider string
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewModel creates the small, medium and large profiles for the configured provider.
func NewModel(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Collector) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	names := map[string]string{
		ProfileSmall:  cfg.ModelSmall,
		ProfileMedium: cfg.ModelMedium,
		ProfileLarge:  cfg.ModelLarge,
	}

	var bedrockClient *bedrockruntime.Client
	if cfg.LLMProvider == config.ProviderBedrock {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		bedrockClient = bedrockruntime.NewFromConfig(awsCfg)
	}

	profiles := make(map[string]llms.Model, len(names))
	for profile, name := range names {
		model, err := newProviderModel(cfg, name, bedrockClient)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile, err)
		}
		profiles[profile] = model
	}

	return NewModelFrom(cfg.LLMProvider, profiles, names, logger, m), nil
}

// NewModelFrom assembles a Model from already constructed langchaingo models.
func NewModelFrom(provider string, profiles map[string]llms.Model, names map[string]string, logger *slog.Logger, m *metrics.Collector) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		profiles: profiles,
		names:    names,
		provider: provider,
		logger:   logger,
		metrics:  m,
	}
}

func newProviderModel(cfg config.Config, name string, bedrockClient *bedrockruntime.Client) (llms.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(name),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return model, nil

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, nil

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return model, nil

	case config.ProviderBedrock:
		model, err := bedrock.New(
			bedrock.WithClient(bedrockClient),
			bedrock.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		return model, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// ModelName returns the model configured for a profile.
func (m *Model) ModelName(profile string) string {
	return m.names[profile]
}

func (m *Model) profile(name string) (llms.Model, error) {
	model, ok := m.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return model, nil
}

func messages(system, prompt string) []llms.MessageContent {
	var msgs []llms.MessageContent
	if system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
}

// GenerateWith generates text with the given profile and optional system prompt.
func (m *Model) GenerateWith(ctx context.Context, profile, prompt, system string) (string, error) {
	model, err := m.profile(profile)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, messages(system, prompt))
	duration := time.Since(start)
	if err != nil {
		m.metrics.RecordError(metrics.OpLLMGenerate)
		m.logger.Warn("generation failed",
			"profile", profile, "model", m.names[profile], "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	choice := resp.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)
	m.logger.Debug("generation complete",
		"profile", profile, "model", m.names[profile], "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)

	return choice.Content, nil
}

// Generate generates text with the medium profile and no system prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	return m.GenerateWith(ctx, ProfileMedium, prompt, "")
}

// Ask answers an open-domain question with the medium profile.
func (m *Model) Ask(ctx context.Context, question string) (string, error) {
	return m.GenerateWith(ctx, ProfileMedium, question, answerSystemPrompt)
}

// GenerateStream is Generate delivering tokens to onToken as they arrive.
// Streaming stops when ctx is cancelled or onToken returns an error.
func (m *Model) GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) (string, error) {
	return m.Stream(ctx, ProfileMedium, prompt, "", onToken)
}

// Stream generates with a profile, streaming chunks to onToken.
func (m *Model) Stream(ctx context.Context, profile, prompt, system string, onToken func(token string) error) (string, error) {
	model, err := m.profile(profile)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, messages(system, prompt),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return onToken(string(chunk))
		}),
	)
	duration := time.Since(start)
	if err != nil {
		m.metrics.RecordError(metrics.OpLLMStream)
		return "", fmt.Errorf("stream: %w", wrapFatalError(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	in, out := tokenUsage(resp.Choices[0].GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMStream, duration, in, out)
	return resp.Choices[0].Content, nil
}

// tokenUsage reads token counts from provider-specific generation info.
func tokenUsage(info map[string]any) (int64, int64) {
	in := firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens")
	out := firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
