package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/logger"
	"github.com/rl1809/autoparts-inventory/internal/observe"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

// maxChangeAttempts bounds how often a single change is retried after losing
// a race with a concurrent writer of the same triple.
const maxChangeAttempts = 3

var errRollback = errors.New("change set rejected, rolling back")

type ReconcileService struct {
	repo    port.PartRepository
	tx      port.TxRunner
	cache   port.CacheRepository
	metrics *observe.Metrics
	log     *zap.Logger
}

type ReconcileOption func(*ReconcileService)

// WithAtomic makes Execute run each change set inside one transaction that
// is rolled back when any change is rejected.
func WithAtomic(tx port.TxRunner) ReconcileOption {
	return func(s *ReconcileService) { s.tx = tx }
}

// WithIdempotency enables idempotency keys backed by cache.
func WithIdempotency(cache port.CacheRepository) ReconcileOption {
	return func(s *ReconcileService) { s.cache = cache }
}

func WithReconcileMetrics(m *observe.Metrics) ReconcileOption {
	return func(s *ReconcileService) { s.metrics = m }
}

func WithReconcileLogger(l *zap.Logger) ReconcileOption {
	return func(s *ReconcileService) { s.log = l }
}

func NewReconcileService(repo port.PartRepository, opts ...ReconcileOption) *ReconcileService {
	s := &ReconcileService{
		repo:    repo,
		metrics: observe.DefaultMetrics(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Atomic reports whether change sets are applied all-or-nothing.
func (s *ReconcileService) Atomic() bool {
	return s.tx != nil
}

// Execute applies cs to the store in order. Rejected changes are reported in
// the result and do not stop the batch; a store error aborts it and is
// returned. When changes were already committed before the store error, the
// partial result is returned alongside it. A non-empty idempotencyKey that
// was already used yields domain.ErrDuplicateRequest without touching the
// store.
func (s *ReconcileService) Execute(ctx context.Context, cs domain.ChangeSet, idempotencyKey string) (*domain.ReconcileResult, error) {
	if err := ValidateChangeSet(cs); err != nil {
		return nil, err
	}

	claimed := false
	if idempotencyKey != "" && s.cache != nil {
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
		claimed = true
	}

	start := time.Now()
	var (
		result *domain.ReconcileResult
		err    error
	)
	if s.tx != nil {
		result, err = s.executeAtomic(ctx, cs)
	} else {
		result, err = s.apply(ctx, s.repo, cs)
	}
	s.metrics.RecordStage(ctx, observe.StageReconciliation, start, err)

	if err != nil {
		committed := result != nil && len(result.Applied()) > 0
		if claimed && !committed {
			// Nothing reached the store, so the caller may retry with the same key.
			if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); relErr != nil {
				s.logger(ctx).Error("failed to release idempotency key",
					zap.String("key", idempotencyKey), zap.Error(relErr))
			}
		}
		if !committed {
			return nil, err
		}
		s.logger(ctx).Error("change set partially applied",
			zap.String("key", idempotencyKey),
			zap.Int("applied", len(result.Applied())),
			zap.Int("changes", len(cs)),
			zap.Error(err))
		for _, o := range result.Outcomes {
			s.metrics.RecordOutcome(ctx, o)
		}
		result.Success = false
		return result, err
	}

	for _, o := range result.Outcomes {
		s.metrics.RecordOutcome(ctx, o)
	}
	return result, nil
}

func (s *ReconcileService) executeAtomic(ctx context.Context, cs domain.ChangeSet) (*domain.ReconcileResult, error) {
	var result *domain.ReconcileResult
	err := s.tx.WithinTx(ctx, func(repo port.PartRepository) error {
		r, err := s.apply(ctx, repo, cs)
		if err != nil {
			return err
		}
		result = r
		if len(r.Rejected()) > 0 {
			return errRollback
		}
		return nil
	})
	if errors.Is(err, errRollback) {
		result.Success = false
		for i := range result.Outcomes {
			if result.Outcomes[i].Status == domain.OutcomeApplied {
				result.Outcomes[i].Status = domain.OutcomeRolledBack
				result.Outcomes[i].Created = false
			}
		}
		s.logger(ctx).Warn("change set rolled back",
			zap.Int("changes", len(cs)), zap.Int("rejected", len(result.Rejected())))
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ReconcileService) apply(ctx context.Context, repo port.PartRepository, cs domain.ChangeSet) (*domain.ReconcileResult, error) {
	result := &domain.ReconcileResult{
		Success:  true,
		Outcomes: make([]domain.Outcome, 0, len(cs)),
	}
	for i, change := range cs {
		outcome, err := s.applyChange(ctx, repo, i, change)
		if err != nil {
			return result, fmt.Errorf("change %d: %w", i, err)
		}
		if outcome.Status == domain.OutcomeRejected {
			s.logger(ctx).Warn("change rejected",
				zap.Int("index", i),
				zap.String("manufacturer", change.Manufacturer),
				zap.String("part", change.Part),
				zap.String("model", change.Model),
				zap.String("action", string(change.Action)),
				zap.Int("quantity", change.Quantity),
				zap.String("reason", string(outcome.Reason)),
				zap.Int("available", outcome.Available),
				zap.Int("shortfall", outcome.Shortfall),
			)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

// applyChange resolves one change against the store. The lookup, conditional
// update and insert are separate statements, so a concurrent writer can slip
// in between them; each such race sends the change around the loop again.
func (s *ReconcileService) applyChange(ctx context.Context, repo port.PartRepository, index int, change domain.Change) (domain.Outcome, error) {
	outcome := domain.Outcome{Index: index, Change: change}
	triple := change.Triple()
	delta := change.Delta()

	for attempt := 0; attempt < maxChangeAttempts; attempt++ {
		existing, err := repo.FindByTriple(ctx, triple)
		if err != nil {
			return outcome, fmt.Errorf("find part: %w", err)
		}

		if existing == nil {
			if change.Action == domain.ActionRemove {
				return reject(outcome, domain.RejectNotFound, 0, 0), nil
			}
			_, err := repo.CreatePart(ctx, domain.Part{
				Manufacturer: change.Manufacturer,
				Part:         change.Part,
				Model:        change.Model,
				Quantity:     change.Quantity,
			})
			if errors.Is(err, domain.ErrDuplicatePart) {
				continue
			}
			if err != nil {
				return outcome, fmt.Errorf("create part: %w", err)
			}
			outcome.Status = domain.OutcomeApplied
			outcome.Created = true
			return outcome, nil
		}

		ok, err := repo.AdjustQuantity(ctx, existing.ID, delta)
		if err != nil {
			return outcome, fmt.Errorf("adjust quantity: %w", err)
		}
		if ok {
			outcome.Status = domain.OutcomeApplied
			return outcome, nil
		}

		// Refused: either the row would go negative or it is gone. Re-read
		// to tell which, against the current state.
		current, err := repo.FindByTriple(ctx, triple)
		if err != nil {
			return outcome, fmt.Errorf("find part: %w", err)
		}
		switch {
		case current == nil && change.Action == domain.ActionRemove:
			return reject(outcome, domain.RejectNotFound, 0, 0), nil
		case current == nil:
			continue
		case current.Quantity+delta < 0:
			return reject(outcome, domain.RejectInsufficientQuantity, current.Quantity, -(current.Quantity + delta)), nil
		}
	}
	return outcome, fmt.Errorf("gave up after %d attempts on %s/%s/%s",
		maxChangeAttempts, triple.Manufacturer, triple.Part, triple.Model)
}

func reject(o domain.Outcome, reason domain.RejectReason, available, shortfall int) domain.Outcome {
	o.Status = domain.OutcomeRejected
	o.Reason = reason
	o.Available = available
	o.Shortfall = shortfall
	return o
}

func (s *ReconcileService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.log)
}
