package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

// Mock PartRepository
type mockPartRepo struct {
	mu     sync.Mutex
	parts  map[int64]domain.Part
	nextID int64

	// failOn makes the named method return errStore.
	failOn string
	// onCreate runs before CreatePart takes the lock, to simulate a racing writer.
	onCreate func()
}

var errStore = errors.New("store unavailable")

func newMockPartRepo(parts ...domain.Part) *mockPartRepo {
	m := &mockPartRepo{parts: make(map[int64]domain.Part)}
	for _, p := range parts {
		m.nextID++
		p.ID = m.nextID
		m.parts[p.ID] = p
	}
	return m
}

func (m *mockPartRepo) FindByTriple(ctx context.Context, t domain.Triple) (*domain.Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "find" {
		return nil, errStore
	}
	for _, p := range m.parts {
		if p.Triple() == t {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockPartRepo) AdjustQuantity(ctx context.Context, id int64, delta int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "adjust" {
		return false, errStore
	}
	p, ok := m.parts[id]
	if !ok || p.Quantity+delta < 0 {
		return false, nil
	}
	p.Quantity += delta
	m.parts[id] = p
	return true, nil
}

func (m *mockPartRepo) CreatePart(ctx context.Context, part domain.Part) (int64, error) {
	if hook := m.onCreate; hook != nil {
		m.onCreate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return 0, errStore
	}
	for _, p := range m.parts {
		if p.Triple() == part.Triple() {
			return 0, domain.ErrDuplicatePart
		}
	}
	m.nextID++
	part.ID = m.nextID
	m.parts[part.ID] = part
	return part.ID, nil
}

func (m *mockPartRepo) ListParts(ctx context.Context) ([]domain.Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "list" {
		return nil, errStore
	}
	out := make([]domain.Part, 0, len(m.parts))
	for _, p := range m.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockPartRepo) UpdatePart(ctx context.Context, part domain.Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parts[part.ID]; !ok {
		return domain.ErrPartNotFound
	}
	for id, p := range m.parts {
		if id != part.ID && p.Triple() == part.Triple() {
			return domain.ErrDuplicatePart
		}
	}
	m.parts[part.ID] = part
	return nil
}

func (m *mockPartRepo) DeleteParts(ctx context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.parts[id]; ok {
			delete(m.parts, id)
			n++
		}
	}
	return n, nil
}

func (m *mockPartRepo) quantity(t domain.Triple) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.parts {
		if p.Triple() == t {
			return p.Quantity, true
		}
	}
	return 0, false
}

func (m *mockPartRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.parts)
}

// WithinTx snapshots the rows and restores them when fn fails.
func (m *mockPartRepo) WithinTx(ctx context.Context, fn func(repo port.PartRepository) error) error {
	m.mu.Lock()
	snapshot := make(map[int64]domain.Part, len(m.parts))
	for id, p := range m.parts {
		snapshot[id] = p
	}
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.parts = snapshot
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	changeSets     map[string]domain.ChangeSet
	released       []string
	fail           bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotencySet: make(map[string]bool),
		changeSets:     make(map[string]domain.ChangeSet),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false, errStore
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

func (m *mockCacheRepo) GetChangeSet(ctx context.Context, key string) (domain.ChangeSet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, false, errStore
	}
	cs, ok := m.changeSets[key]
	return cs, ok, nil
}

func (m *mockCacheRepo) SetChangeSet(ctx context.Context, key string, cs domain.ChangeSet, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStore
	}
	m.changeSets[key] = cs
	return nil
}

// Mock providers
type mockTranscriber struct {
	text  string
	err   error
	calls int
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	m.calls++
	return m.text, m.err
}

type mockExtractor struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (m *mockExtractor) Extract(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func (m *mockExtractor) Model() string { return "test-model" }
