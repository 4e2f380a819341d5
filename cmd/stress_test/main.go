package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/autoparts-inventory/internal/adapter/storage"
	"github.com/rl1809/autoparts-inventory/internal/config"
	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	newPartAdds   = 30
	duplicateKeys = 10
)

var (
	stockedPart = domain.Triple{Manufacturer: "Brembo", Part: "тормозные колодки", Model: "stress"}
	freshPart   = domain.Triple{Manufacturer: "Bosch", Part: "свеча зажигания", Model: "stress"}
)

func main() {
	driver := flag.String("driver", "sqlite", "store to hammer: sqlite or mysql (mysql settings come from config.yaml)")
	redisAddr := flag.String("redis", "localhost:6379", "redis address for the idempotency phase; empty skips it")
	flag.Parse()

	ctx := context.Background()

	// Initialize store
	db, store, err := openStore(ctx, *driver)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	// Clear previous test data
	if err := resetParts(ctx, store); err != nil {
		log.Fatalf("failed to reset parts: %v", err)
	}
	if _, err := store.CreatePart(ctx, domain.Part{
		Manufacturer: stockedPart.Manufacturer,
		Part:         stockedPart.Part,
		Model:        stockedPart.Model,
		Quantity:     initialStock,
	}); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	reconcile := service.NewReconcileService(store)
	passed := true

	passed = removeRace(ctx, reconcile, store) && passed
	passed = createRace(ctx, reconcile, store) && passed

	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			fmt.Printf("SKIP: idempotency phase, redis unavailable: %v\n", err)
		} else {
			cache := storage.NewRedisAdapter(rdb, time.Minute)
			passed = idempotencyRace(ctx, service.NewReconcileService(store, service.WithIdempotency(cache)), store) && passed
		}
	}

	if !passed {
		os.Exit(1)
	}
}

// removeRace fires more single-unit removals than there is stock. Exactly
// initialStock of them may apply and the row must end at zero.
func removeRace(ctx context.Context, reconcile *service.ReconcileService, store *storage.SQLAdapter) bool {
	var applied, rejected, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reconcile.Execute(ctx, domain.ChangeSet{change(stockedPart, domain.ActionRemove)}, "")
			switch {
			case err != nil:
				failed.Add(1)
			case res.Outcomes[0].Status == domain.OutcomeApplied:
				applied.Add(1)
			default:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== REMOVE RACE ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Applied:          %d\n", applied.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Errors:           %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=================================")

	ok := true
	if applied.Load() == initialStock && rejected.Load() == totalRequests-initialStock && failed.Load() == 0 {
		fmt.Printf("PASS: exactly %d removals applied, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d applied/%d rejected, got %d/%d (%d errors)\n",
			initialStock, totalRequests-initialStock, applied.Load(), rejected.Load(), failed.Load())
		ok = false
	}
	return checkQuantity(ctx, store, stockedPart, 0) && ok
}

// createRace adds the same brand-new triple concurrently. All adds must land
// on a single row.
func createRace(ctx context.Context, reconcile *service.ReconcileService, store *storage.SQLAdapter) bool {
	var created, failed atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < newPartAdds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reconcile.Execute(ctx, domain.ChangeSet{change(freshPart, domain.ActionAdd)}, "")
			if err != nil {
				failed.Add(1)
				return
			}
			if res.Outcomes[0].Created {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	fmt.Println("========== CREATE RACE ==========")
	fmt.Printf("Concurrent Adds:  %d\n", newPartAdds)
	fmt.Printf("Rows Created:     %d\n", created.Load())
	fmt.Printf("Errors:           %d\n", failed.Load())
	fmt.Println("=================================")

	ok := created.Load() == 1 && failed.Load() == 0
	if ok {
		fmt.Println("PASS: one row created for the new part")
	} else {
		fmt.Printf("FAIL: expected 1 row created and no errors, got %d created, %d errors\n", created.Load(), failed.Load())
	}
	return checkQuantity(ctx, store, freshPart, newPartAdds) && ok
}

// idempotencyRace replays one request under a single idempotency key.
func idempotencyRace(ctx context.Context, reconcile *service.ReconcileService, store *storage.SQLAdapter) bool {
	before, err := store.FindByTriple(ctx, freshPart)
	if err != nil || before == nil {
		fmt.Printf("FAIL: cannot read %v before idempotency phase: %v\n", freshPart, err)
		return false
	}

	key := "stress-" + uuid.NewString()
	var applied, duplicates atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < duplicateKeys; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reconcile.Execute(ctx, domain.ChangeSet{change(freshPart, domain.ActionAdd)}, key)
			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, domain.ErrDuplicateRequest):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	fmt.Println("========== IDEMPOTENCY ==========")
	fmt.Printf("Replays:          %d\n", duplicateKeys)
	fmt.Printf("Applied:          %d\n", applied.Load())
	fmt.Printf("Duplicates:       %d\n", duplicates.Load())
	fmt.Println("=================================")

	ok := applied.Load() == 1 && duplicates.Load() == duplicateKeys-1
	if ok {
		fmt.Println("PASS: one replay applied")
	} else {
		fmt.Printf("FAIL: expected 1 applied, %d duplicates\n", duplicateKeys-1)
	}
	return checkQuantity(ctx, store, freshPart, before.Quantity+1) && ok
}

func change(t domain.Triple, action domain.Action) domain.Change {
	return domain.Change{
		Manufacturer: t.Manufacturer,
		Part:         t.Part,
		Model:        t.Model,
		Quantity:     1,
		Action:       action,
	}
}

func checkQuantity(ctx context.Context, store *storage.SQLAdapter, t domain.Triple, want int) bool {
	p, err := store.FindByTriple(ctx, t)
	if err != nil || p == nil {
		fmt.Printf("FAIL: cannot read %s %s: %v\n", t.Manufacturer, t.Part, err)
		return false
	}
	fmt.Printf("Final Quantity:   %d\n", p.Quantity)
	if p.Quantity != want {
		fmt.Printf("FAIL: expected quantity %d, got %d\n", want, p.Quantity)
		return false
	}
	fmt.Printf("PASS: quantity is %d\n", want)
	return true
}

func resetParts(ctx context.Context, store *storage.SQLAdapter) error {
	parts, err := store.ListParts(ctx)
	if err != nil {
		return err
	}
	var ids []int64
	for _, p := range parts {
		if p.Model == "stress" {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = store.DeleteParts(ctx, ids)
	return err
}

func openStore(ctx context.Context, driver string) (*sql.DB, *storage.SQLAdapter, error) {
	switch driver {
	case "sqlite":
		path := filepath.Join(os.TempDir(), "autoparts-stress.db")
		db, err := storage.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx, db, "sqlite"); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, storage.NewSQLiteAdapter(db), nil
	case "mysql":
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		d := cfg.Database
		db, err := storage.OpenMySQL(ctx, storage.MySQLOptions{
			Host:            d.Host,
			Port:            d.Port,
			User:            d.User,
			Password:        d.Password,
			DBName:          d.DBName,
			MaxOpenConns:    d.MaxOpenConns,
			MaxIdleConns:    d.MaxIdleConns,
			ConnMaxLifetime: d.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx, db, "mysql"); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, storage.NewMySQLAdapter(db), nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", driver)
	}
}
