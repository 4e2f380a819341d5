package handler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/autoparts-inventory/internal/adapter/storage"
	"github.com/rl1809/autoparts-inventory/internal/adapter/upload"
	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/core/service"
)

type fakeExtractor struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (f *fakeExtractor) Extract(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeExtractor) Model() string { return "fake-model" }

type fakeTranscriber struct {
	text     string
	err      error
	received string
	filename string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, a domain.Audio) (string, error) {
	data, err := io.ReadAll(a.Content)
	if err != nil {
		return "", err
	}
	f.received = string(data)
	f.filename = a.Filename
	return f.text, f.err
}

type memoryCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{keys: make(map[string]bool)}
}

func (m *memoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryCache) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memoryCache) GetChangeSet(context.Context, string) (domain.ChangeSet, bool, error) {
	return nil, false, nil
}

func (m *memoryCache) SetChangeSet(context.Context, string, domain.ChangeSet, time.Duration) error {
	return nil
}

// fixture wires the real services over an in-memory SQLite store with fake
// providers.
type fixture struct {
	store       *storage.SQLAdapter
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	uploadDir   string

	commands  *service.CommandService
	reconcile *service.ReconcileService
	parts     *service.PartService
	stager    *upload.Stager
}

func newFixture(t *testing.T, reconcileOpts ...service.ReconcileOption) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, "sqlite"))
	store := storage.NewSQLiteAdapter(db)

	uploadDir := t.TempDir()
	stager, err := upload.NewStager(uploadDir, 1<<20)
	require.NoError(t, err)

	f := &fixture{
		store:       store,
		extractor:   &fakeExtractor{},
		transcriber: &fakeTranscriber{},
		uploadDir:   uploadDir,
		stager:      stager,
	}
	f.commands = service.NewCommandService(f.transcriber, f.extractor)
	f.reconcile = service.NewReconcileService(store, reconcileOpts...)
	f.parts = service.NewPartService(store, nil)
	return f
}

func (f *fixture) seed(t *testing.T, manufacturer, part, model string, qty int) int64 {
	t.Helper()
	id, err := f.store.CreatePart(context.Background(), domain.Part{
		Manufacturer: manufacturer, Part: part, Model: model, Quantity: qty,
	})
	require.NoError(t, err)
	return id
}

const bmwExtraction = `{"changes": [{"manufacturer": "BMW", "part": "тормозной диск", "model": "X5", "quantity": 2, "action": "add"}]}`
