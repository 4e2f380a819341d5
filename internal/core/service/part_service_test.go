package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

func TestPartService_List(t *testing.T) {
	repo := newMockPartRepo(part(bmwDisc, 2), part(domain.Triple{Manufacturer: "Audi", Part: "фара"}, 1))
	svc := NewPartService(repo, nil)

	parts, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(parts) != 2 || parts[0].ID != 1 || parts[1].ID != 2 {
		t.Errorf("expected parts ordered by id, got %+v", parts)
	}
}

func TestPartService_ListStoreError(t *testing.T) {
	repo := newMockPartRepo()
	repo.failOn = "list"
	svc := NewPartService(repo, nil)

	if _, err := svc.List(context.Background()); !errors.Is(err, errStore) {
		t.Errorf("expected store error, got: %v", err)
	}
}

func TestPartService_Update(t *testing.T) {
	repo := newMockPartRepo(part(bmwDisc, 2))
	svc := NewPartService(repo, nil)

	err := svc.Update(context.Background(), domain.Part{ID: 1, Manufacturer: "BMW", Part: "тормозной диск", Model: "X6", Quantity: 0})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	moved := domain.Triple{Manufacturer: "BMW", Part: "тормозной диск", Model: "X6"}
	if q, ok := repo.quantity(moved); !ok || q != 0 {
		t.Errorf("expected updated row with quantity 0, got %d (exists=%v)", q, ok)
	}
}

func TestPartService_UpdateErrors(t *testing.T) {
	other := domain.Triple{Manufacturer: "Audi", Part: "фара", Model: "A6"}
	repo := newMockPartRepo(part(bmwDisc, 2), part(other, 1))
	svc := NewPartService(repo, nil)

	tests := []struct {
		name string
		part domain.Part
		want error
	}{
		{"negative quantity", domain.Part{ID: 1, Manufacturer: "BMW", Part: "диск", Quantity: -1}, domain.ErrInvalidPart},
		{"blank manufacturer", domain.Part{ID: 1, Manufacturer: " ", Part: "диск"}, domain.ErrInvalidPart},
		{"missing id", domain.Part{Manufacturer: "BMW", Part: "диск"}, domain.ErrInvalidPart},
		{"unknown id", domain.Part{ID: 99, Manufacturer: "BMW", Part: "диск"}, domain.ErrPartNotFound},
		{"triple taken", part(other, 3), domain.ErrDuplicatePart},
	}
	tests[4].part.ID = 1

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Update(context.Background(), tt.part)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}
}

func TestPartService_Delete(t *testing.T) {
	repo := newMockPartRepo(part(bmwDisc, 2), part(domain.Triple{Manufacturer: "Audi", Part: "фара"}, 1))
	svc := NewPartService(repo, nil)

	n, err := svc.Delete(context.Background(), []int64{1, 42})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 remaining row, got %d", repo.count())
	}

	if _, err := svc.Delete(context.Background(), nil); !errors.Is(err, domain.ErrInvalidPart) {
		t.Errorf("expected ErrInvalidPart for empty ids, got: %v", err)
	}
}
