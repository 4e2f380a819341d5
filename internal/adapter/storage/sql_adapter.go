package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dialect struct {
	name              string
	isUniqueViolation func(error) bool
	// lockingRead is appended to lookups made inside a transaction so they
	// see the latest committed row rather than the transaction snapshot.
	lockingRead string
}

// SQLAdapter stores parts in a relational database. The same queries serve
// MySQL and SQLite; only error classification and row locking differ per
// driver.
type SQLAdapter struct {
	db      *sql.DB
	q       querier
	dialect dialect
	inTx    bool
}

func newSQLAdapter(db *sql.DB, d dialect) *SQLAdapter {
	return &SQLAdapter{db: db, q: db, dialect: d}
}

// Driver names the database behind the adapter.
func (a *SQLAdapter) Driver() string {
	return a.dialect.name
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

const partColumns = `id, manufacturer, part, model, quantity, created_at, updated_at`

func (a *SQLAdapter) FindByTriple(ctx context.Context, t domain.Triple) (*domain.Part, error) {
	query := `
		SELECT ` + partColumns + `
		FROM parts WHERE manufacturer = ? AND part = ? AND model = ?`
	if a.inTx {
		query += a.dialect.lockingRead
	}
	row := a.q.QueryRowContext(ctx, query, t.Manufacturer, t.Part, t.Model)
	p, err := scanPart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query part: %w", err)
	}
	return &p, nil
}

// AdjustQuantity applies delta in one conditional UPDATE, so concurrent
// writers of the same row cannot lose updates or drive it negative.
func (a *SQLAdapter) AdjustQuantity(ctx context.Context, id int64, delta int) (bool, error) {
	result, err := a.q.ExecContext(ctx, `
		UPDATE parts
		SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND quantity + ? >= 0`,
		delta, nowMillis(), id, delta,
	)
	if err != nil {
		return false, fmt.Errorf("update quantity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update quantity: %w", err)
	}
	return rows == 1, nil
}

func (a *SQLAdapter) CreatePart(ctx context.Context, part domain.Part) (int64, error) {
	now := nowMillis()
	result, err := a.q.ExecContext(ctx, `
		INSERT INTO parts (manufacturer, part, model, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		part.Manufacturer, part.Part, part.Model, part.Quantity, now, now,
	)
	if err != nil {
		if a.dialect.isUniqueViolation(err) {
			return 0, domain.ErrDuplicatePart
		}
		return 0, fmt.Errorf("insert part: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert part: %w", err)
	}
	return id, nil
}

func (a *SQLAdapter) ListParts(ctx context.Context) ([]domain.Part, error) {
	rows, err := a.q.QueryContext(ctx, `SELECT `+partColumns+` FROM parts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	defer rows.Close()

	parts := []domain.Part{}
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	return parts, nil
}

func (a *SQLAdapter) UpdatePart(ctx context.Context, part domain.Part) error {
	result, err := a.q.ExecContext(ctx, `
		UPDATE parts
		SET manufacturer = ?, part = ?, model = ?, quantity = ?, updated_at = ?
		WHERE id = ?`,
		part.Manufacturer, part.Part, part.Model, part.Quantity, nowMillis(), part.ID,
	)
	if err != nil {
		if a.dialect.isUniqueViolation(err) {
			return domain.ErrDuplicatePart
		}
		return fmt.Errorf("update part: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update part: %w", err)
	}
	if rows == 0 {
		return domain.ErrPartNotFound
	}
	return nil
}

func (a *SQLAdapter) DeleteParts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := a.q.ExecContext(ctx, `DELETE FROM parts WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete parts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete parts: %w", err)
	}
	return rows, nil
}

// WithinTx runs fn against an adapter bound to one transaction.
func (a *SQLAdapter) WithinTx(ctx context.Context, fn func(repo port.PartRepository) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLAdapter{db: a.db, q: tx, dialect: a.dialect, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (a *SQLAdapter) Close() error {
	return a.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPart(r rowScanner) (domain.Part, error) {
	var (
		p                domain.Part
		created, updated int64
	)
	if err := r.Scan(&p.ID, &p.Manufacturer, &p.Part, &p.Model, &p.Quantity, &created, &updated); err != nil {
		return domain.Part{}, err
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

var (
	_ port.PartRepository = (*SQLAdapter)(nil)
	_ port.TxRunner       = (*SQLAdapter)(nil)
)
