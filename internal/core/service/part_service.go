package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/logger"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

// PartService covers direct edits to the parts table that bypass the
// command pipeline.
type PartService struct {
	repo port.PartRepository
	log  *zap.Logger
}

func NewPartService(repo port.PartRepository, log *zap.Logger) *PartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PartService{repo: repo, log: log}
}

func (s *PartService) List(ctx context.Context) ([]domain.Part, error) {
	parts, err := s.repo.ListParts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	return parts, nil
}

// Update overwrites the part with p.ID. Quantity may be set to any value
// >= 0, unlike the add/remove deltas of a change set.
func (s *PartService) Update(ctx context.Context, p domain.Part) error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", domain.ErrInvalidPart)
	}
	if err := changeValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPart, err)
	}

	if err := s.repo.UpdatePart(ctx, p); err != nil {
		if errors.Is(err, domain.ErrPartNotFound) || errors.Is(err, domain.ErrDuplicatePart) {
			return err
		}
		return fmt.Errorf("update part %d: %w", p.ID, err)
	}
	logger.FromContext(ctx, s.log).Info("part updated",
		zap.Int64("id", p.ID), zap.Int("quantity", p.Quantity))
	return nil
}

// Delete removes the parts with the given ids and reports how many existed.
func (s *PartService) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", domain.ErrInvalidPart)
	}
	n, err := s.repo.DeleteParts(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete parts: %w", err)
	}
	logger.FromContext(ctx, s.log).Info("parts deleted",
		zap.Int("requested", len(ids)), zap.Int64("deleted", n))
	return n, nil
}
