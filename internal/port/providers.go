package port

import (
	"context"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

// Transcriber turns a recorded command into text. Implementations return an
// error wrapping domain.ErrTranscriptionFailed on any failure, including a
// response that carries no text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.Audio) (string, error)
}

// Extractor sends a prompt to a language model and returns its raw reply.
// Failures wrap domain.ErrExtractionRequestFailed. No parsing happens here.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (string, error)

	// Model names the model answering prompts, used to key cached results.
	Model() string
}
