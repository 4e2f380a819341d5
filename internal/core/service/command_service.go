package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/logger"
	"github.com/rl1809/autoparts-inventory/internal/observe"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

const extractionCachePrefix = "extract:"

// CommandResult is what the pipeline hands back before anything touches the
// store. CommandText is only set for voice commands.
type CommandResult struct {
	Changes     domain.ChangeSet
	CommandText string
}

// CommandService turns typed or spoken commands into validated change sets.
type CommandService struct {
	transcriber port.Transcriber
	extractor   port.Extractor
	cache       port.CacheRepository
	cacheTTL    time.Duration
	metrics     *observe.Metrics
	log         *zap.Logger
}

type CommandOption func(*CommandService)

// WithExtractionCache caches validated change sets per (model, prompt). A
// zero ttl leaves caching off.
func WithExtractionCache(cache port.CacheRepository, ttl time.Duration) CommandOption {
	return func(s *CommandService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func WithCommandMetrics(m *observe.Metrics) CommandOption {
	return func(s *CommandService) { s.metrics = m }
}

func WithCommandLogger(l *zap.Logger) CommandOption {
	return func(s *CommandService) { s.log = l }
}

func NewCommandService(transcriber port.Transcriber, extractor port.Extractor, opts ...CommandOption) *CommandService {
	s := &CommandService{
		transcriber: transcriber,
		extractor:   extractor,
		metrics:     observe.DefaultMetrics(),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessText runs prompt building, extraction and parsing for a typed command.
func (s *CommandService) ProcessText(ctx context.Context, command string) (*CommandResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, domain.ErrEmptyCommand
	}
	changes, err := s.interpret(ctx, command)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Changes: changes}, nil
}

// ProcessVoice transcribes audio and then interprets the recognised text
// exactly like a typed command.
func (s *CommandService) ProcessVoice(ctx context.Context, audio domain.Audio) (*CommandResult, error) {
	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, audio)
	s.metrics.RecordStage(ctx, observe.StageTranscription, start, err)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	s.logger(ctx).Info("voice command transcribed", zap.String("text", text))

	changes, err := s.interpret(ctx, text)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Changes: changes, CommandText: text}, nil
}

func (s *CommandService) interpret(ctx context.Context, command string) (domain.ChangeSet, error) {
	prompt := BuildPrompt(command)

	key := s.cacheKey(prompt)
	if cs, ok := s.cached(ctx, key); ok {
		return cs, nil
	}

	start := time.Now()
	raw, err := s.extractor.Extract(ctx, prompt)
	s.metrics.RecordStage(ctx, observe.StageExtraction, start, err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	changes, err := ParseChanges(raw)
	s.metrics.RecordStage(ctx, observe.StageParse, start, err)
	if err != nil {
		s.logger(ctx).Warn("extraction output rejected", zap.String("raw", raw), zap.Error(err))
		return nil, err
	}

	s.store(ctx, key, changes)
	return changes, nil
}

func (s *CommandService) cacheKey(prompt string) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(s.extractor.Model() + "\x00" + prompt))
	return extractionCachePrefix + hex.EncodeToString(sum[:])
}

func (s *CommandService) cached(ctx context.Context, key string) (domain.ChangeSet, bool) {
	if key == "" {
		return nil, false
	}
	cs, ok, err := s.cache.GetChangeSet(ctx, key)
	if err != nil {
		s.logger(ctx).Warn("extraction cache lookup failed", zap.Error(err))
		return nil, false
	}
	s.metrics.RecordCacheLookup(ctx, ok)
	return cs, ok
}

func (s *CommandService) store(ctx context.Context, key string, cs domain.ChangeSet) {
	if key == "" {
		return
	}
	if err := s.cache.SetChangeSet(ctx, key, cs, s.cacheTTL); err != nil {
		s.logger(ctx).Warn("extraction cache write failed", zap.Error(err))
	}
}

func (s *CommandService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.log)
}
