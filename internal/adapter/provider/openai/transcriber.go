package openai

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/observe"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

const defaultAudioFilename = "audio.webm"

// Transcriber turns recorded commands into text through the audio
// transcription endpoint.
type Transcriber struct {
	client   oai.Client
	cfg      Config
	language string
	metrics  *observe.Metrics
}

// NewTranscriber builds a transcriber. language is an ISO-639-1 hint and may
// be empty.
func NewTranscriber(cfg Config, language string) (*Transcriber, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Transcriber{
		client:   client,
		cfg:      cfg,
		language: language,
		metrics:  metricsOrDefault(cfg.Metrics),
	}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	text, err := t.transcribe(ctx, audio)
	t.metrics.RecordProviderCall(ctx, providerName, "transcription", err)
	return text, err
}

func (t *Transcriber) transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	if audio.Content == nil {
		return "", fmt.Errorf("%w: no audio content", domain.ErrTranscriptionFailed)
	}
	filename := audio.Filename
	if filename == "" {
		filename = defaultAudioFilename
	}

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(audio.Content, filename, audio.ContentType),
		Model:          oai.AudioModel(t.cfg.Model),
		ResponseFormat: oai.AudioResponseFormatJSON,
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: response has no text", domain.ErrTranscriptionFailed)
	}
	return text, nil
}

var _ port.Transcriber = (*Transcriber)(nil)
