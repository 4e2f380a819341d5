// Package whisper transcribes audio through a self-hosted Whisper HTTP
// service that accepts a multipart "file" upload and answers {"text": "..."}.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/observe"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

const (
	providerName    = "whisper"
	defaultPath     = "/transcribe/"
	defaultFilename = "audio.webm"
	defaultTimeout  = 60 * time.Second

	// maxResponseBytes caps how much of the response body is read.
	maxResponseBytes = 1 << 20
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithPath overrides the transcription endpoint path. Default: "/transcribe/".
func WithPath(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.path = path
		}
	}
}

// WithLanguage sends a language hint with every request.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(p *Provider) {
		if m != nil {
			p.metrics = m
		}
	}
}

// Provider implements port.Transcriber against a Whisper HTTP service.
type Provider struct {
	serverURL  string
	path       string
	language   string
	httpClient *http.Client
	metrics    *observe.Metrics
}

// New creates a Provider for the service at serverURL
// (e.g. "http://localhost:8000"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		path:       defaultPath,
		httpClient: &http.Client{Timeout: defaultTimeout},
		metrics:    observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(p)
	}
	if !strings.HasPrefix(p.path, "/") {
		p.path = "/" + p.path
	}
	return p, nil
}

func (p *Provider) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	text, err := p.infer(ctx, audio)
	p.metrics.RecordProviderCall(ctx, providerName, "transcription", err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}
	return text, nil
}

func (p *Provider) infer(ctx context.Context, audio domain.Audio) (string, error) {
	if audio.Content == nil {
		return "", errors.New("whisper: no audio content")
	}
	filename := audio.Filename
	if filename == "" {
		filename = defaultFilename
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, audio.Content); err != nil {
		return "", fmt.Errorf("whisper: write audio data: %w", err)
	}
	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+p.path, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", errors.New("whisper: empty transcript")
	}
	return text, nil
}

var _ port.Transcriber = (*Provider)(nil)
