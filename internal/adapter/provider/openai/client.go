// Package openai provides the extraction and transcription adapters backed by
// the OpenAI API (or any server speaking the same protocol).
package openai

import (
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rl1809/autoparts-inventory/internal/observe"
)

const providerName = "openai"

// Config holds the settings shared by both adapters.
type Config struct {
	APIKey  string
	BaseURL string

	// Model for chat completions or audio transcription, depending on the adapter.
	Model string

	// Timeout bounds a single call. Zero means no deadline beyond the caller's.
	Timeout time.Duration

	HTTPClient *http.Client
	Metrics    *observe.Metrics
}

func newClient(cfg Config) (oai.Client, error) {
	if cfg.APIKey == "" {
		return oai.Client{}, fmt.Errorf("openai: apiKey must not be empty")
	}
	if cfg.Model == "" {
		return oai.Client{}, fmt.Errorf("openai: model must not be empty")
	}

	// Failed calls surface to the caller as-is; the SDK's own retries are off.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return oai.NewClient(reqOpts...), nil
}

func metricsOrDefault(m *observe.Metrics) *observe.Metrics {
	if m == nil {
		return observe.DefaultMetrics()
	}
	return m
}
