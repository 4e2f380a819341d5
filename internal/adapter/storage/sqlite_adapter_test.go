package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/core/service"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

func newSQLiteAdapter(t *testing.T, path string) *SQLAdapter {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db, "sqlite"))
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteAdapter(db)
}

var bmwDisc = domain.Triple{Manufacturer: "BMW", Part: "тормозной диск", Model: "X5"}

func newPart(t domain.Triple, qty int) domain.Part {
	return domain.Part{Manufacturer: t.Manufacturer, Part: t.Part, Model: t.Model, Quantity: qty}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, "sqlite"))
	require.NoError(t, Migrate(ctx, db, "sqlite"))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_CreateAndFind(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	ctx := context.Background()

	id, err := adapter.CreatePart(ctx, newPart(bmwDisc, 2))
	require.NoError(t, err)
	assert.Positive(t, id)

	p, err := adapter.FindByTriple(ctx, bmwDisc)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, 2, p.Quantity)
	assert.False(t, p.CreatedAt.IsZero())

	_, err = adapter.CreatePart(ctx, newPart(bmwDisc, 1))
	assert.ErrorIs(t, err, domain.ErrDuplicatePart)
}

func TestSQLite_TriplesAreExact(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	ctx := context.Background()

	_, err := adapter.CreatePart(ctx, newPart(bmwDisc, 1))
	require.NoError(t, err)

	for _, other := range []domain.Triple{
		{Manufacturer: "bmw", Part: bmwDisc.Part, Model: bmwDisc.Model},
		{Manufacturer: bmwDisc.Manufacturer, Part: bmwDisc.Part, Model: "X5 "},
		{Manufacturer: bmwDisc.Manufacturer, Part: bmwDisc.Part, Model: ""},
	} {
		p, err := adapter.FindByTriple(ctx, other)
		require.NoError(t, err)
		assert.Nil(t, p, "triple %+v must not match", other)
	}
}

func TestSQLite_AdjustQuantity(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	ctx := context.Background()

	id, err := adapter.CreatePart(ctx, newPart(bmwDisc, 2))
	require.NoError(t, err)

	ok, err := adapter.AdjustQuantity(ctx, id, -3)
	require.NoError(t, err)
	assert.False(t, ok, "update below zero must be refused")

	ok, err = adapter.AdjustQuantity(ctx, id, -2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.AdjustQuantity(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok, "missing row must be refused")

	p, err := adapter.FindByTriple(ctx, bmwDisc)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)
}

func TestSQLite_UpdateListDelete(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	ctx := context.Background()

	first, err := adapter.CreatePart(ctx, newPart(bmwDisc, 2))
	require.NoError(t, err)
	second, err := adapter.CreatePart(ctx, newPart(domain.Triple{Manufacturer: "Audi", Part: "фара"}, 1))
	require.NoError(t, err)

	err = adapter.UpdatePart(ctx, domain.Part{ID: second, Manufacturer: "Audi", Part: "фара", Model: "A6", Quantity: 7})
	require.NoError(t, err)

	err = adapter.UpdatePart(ctx, domain.Part{ID: second, Manufacturer: bmwDisc.Manufacturer, Part: bmwDisc.Part, Model: bmwDisc.Model})
	assert.ErrorIs(t, err, domain.ErrDuplicatePart)

	err = adapter.UpdatePart(ctx, domain.Part{ID: 404, Manufacturer: "x", Part: "y"})
	assert.ErrorIs(t, err, domain.ErrPartNotFound)

	parts, err := adapter.ListParts(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, first, parts[0].ID)
	assert.Equal(t, "A6", parts[1].Model)
	assert.Equal(t, 7, parts[1].Quantity)

	n, err := adapter.DeleteParts(ctx, []int64{first, 12345})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	parts, err = adapter.ListParts(ctx)
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestSQLite_WithinTxRollsBack(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	ctx := context.Background()

	rejected := errors.New("rejected")
	err := adapter.WithinTx(ctx, func(repo port.PartRepository) error {
		if _, err := repo.CreatePart(ctx, newPart(bmwDisc, 3)); err != nil {
			return err
		}
		return rejected
	})
	assert.ErrorIs(t, err, rejected)

	p, err := adapter.FindByTriple(ctx, bmwDisc)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSQLite_ReconcileExamples(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	svc := service.NewReconcileService(adapter)
	ctx := context.Background()

	add := domain.Change{Manufacturer: "BMW", Part: "тормозной диск", Model: "X5", Quantity: 2, Action: domain.ActionAdd}
	res, err := svc.Execute(ctx, domain.ChangeSet{add}, "")
	require.NoError(t, err)
	assert.True(t, res.Outcomes[0].Created)

	remove := add
	remove.Quantity = 3
	remove.Action = domain.ActionRemove
	res, err = svc.Execute(ctx, domain.ChangeSet{remove}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RejectInsufficientQuantity, res.Outcomes[0].Reason)

	p, err := adapter.FindByTriple(ctx, bmwDisc)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)
}

func TestSQLite_AtomicReconcile(t *testing.T) {
	adapter := newSQLiteAdapter(t, ":memory:")
	svc := service.NewReconcileService(adapter, service.WithAtomic(adapter))
	ctx := context.Background()

	cs := domain.ChangeSet{
		{Manufacturer: "Bosch", Part: "фильтр", Quantity: 4, Action: domain.ActionAdd},
		{Manufacturer: "BMW", Part: "тормозной диск", Model: "X5", Quantity: 1, Action: domain.ActionRemove},
	}
	res, err := svc.Execute(ctx, cs, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.OutcomeRolledBack, res.Outcomes[0].Status)

	parts, err := adapter.ListParts(ctx)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestSQLite_ConcurrentReconcile(t *testing.T) {
	adapter := newSQLiteAdapter(t, filepath.Join(t.TempDir(), "parts.db"))
	svc := service.NewReconcileService(adapter)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs := domain.ChangeSet{{Manufacturer: "BMW", Part: "тормозной диск", Model: "X5", Quantity: 1, Action: domain.ActionAdd}}
			if _, err := svc.Execute(ctx, cs, ""); err != nil {
				t.Errorf("execute: %v", err)
			}
		}()
	}
	wg.Wait()

	parts, err := adapter.ListParts(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 1, "concurrent adds must converge on one row")
	assert.Equal(t, workers, parts[0].Quantity)
}
