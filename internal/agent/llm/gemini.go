package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/curiopass/support-agent/internal/agent/model"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// Config holds what is needed to build the Gemini-backed completers.
type Config struct {
	APIKey     string
	BaseURL    string
	Classifier model.ClassifierModelConfig
	Composer   model.ComposerModelConfig
}

// Models holds the two completers the agent uses: a low-temperature classifier
// model and a composer model for reason and operation selection.
type Models struct {
	Classifier Completer
	Composer   Completer
}

// NewGeminiModels creates both completers on one shared Gemini client.
func NewGeminiModels(ctx context.Context, cfg Config) (*Models, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	classifier, err := newGeminiCompleter(ctx, client, cfg.Classifier.Model, cfg.Classifier.Temperature, cfg.Classifier.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	composer, err := newGeminiCompleter(ctx, client, cfg.Composer.Model, cfg.Composer.Temperature, cfg.Composer.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating composer model: %w", err)
	}

	return &Models{Classifier: classifier, Composer: composer}, nil
}

// geminiCompleter adapts an Eino Gemini chat model to the Completer seam and
// logs per-call token usage cost.
type geminiCompleter struct {
	chatModel *gemini.ChatModel
	modelName string
}

func newGeminiCompleter(ctx context.Context, client *genai.Client, modelName string, temperature float32, maxTokens int) (*geminiCompleter, error) {
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       modelName,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &geminiCompleter{chatModel: cm, modelName: modelName}, nil
}

func (g *geminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	out, err := g.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("gemini generate: empty response")
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		pricing := model.ResolvePricing(g.modelName)
		inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
		logx.Debug().
			Str("model", g.modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}

	return out.Content, nil
}

var _ Completer = (*geminiCompleter)(nil)
