package openai

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/observe"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

const defaultMaxTokens = 500

// Extractor sends prompts to a chat completion model with deterministic
// sampling and returns the first choice verbatim.
type Extractor struct {
	client    oai.Client
	cfg       Config
	maxTokens int
	metrics   *observe.Metrics
}

// NewExtractor builds an extractor. maxTokens <= 0 uses 500.
func NewExtractor(cfg Config, maxTokens int) (*Extractor, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Extractor{
		client:    client,
		cfg:       cfg,
		maxTokens: maxTokens,
		metrics:   metricsOrDefault(cfg.Metrics),
	}, nil
}

func (e *Extractor) Model() string {
	return e.cfg.Model
}

func (e *Extractor) Extract(ctx context.Context, prompt string) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	text, err := e.complete(ctx, prompt)
	e.metrics.RecordProviderCall(ctx, providerName, "chat", err)
	return text, err
}

func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.cfg.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(prompt),
		},
		Temperature: param.NewOpt(0.0),
		MaxTokens:   param.NewOpt(int64(e.maxTokens)),
		N:           param.NewOpt(int64(1)),
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionRequestFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", domain.ErrExtractionRequestFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ port.Extractor = (*Extractor)(nil)
