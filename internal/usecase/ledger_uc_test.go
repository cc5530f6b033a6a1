//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/usecase"
)

type ledgerTestDeps struct {
	repo   *memPurchaseRepo
	events *MockEventPublisher
	uc     usecase.LedgerUseCase
}

func newLedgerTestDeps() *ledgerTestDeps {
	d := &ledgerTestDeps{repo: newMemPurchaseRepo(), events: &MockEventPublisher{}}
	d.uc = usecase.NewLedgerUseCase(d.repo, d.events, "LKR", newTestLogger())
	return d
}

func TestLedgerUseCase_CreatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert a pending row with the frozen amount", func(t *testing.T) {
		d := newLedgerTestDeps()
		p, err := d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Status != model.PurchaseStatusPending || p.Amount != 500 || p.Currency != "LKR" || p.ID == "" {
			t.Errorf("unexpected purchase %+v", p)
		}
		if got := d.events.types(); !reflect.DeepEqual(got, []string{"purchase.pending"}) {
			t.Errorf("unexpected events %v", got)
		}
	})

	t.Run("should conflict on a second pending row for the same tuple", func(t *testing.T) {
		d := newLedgerTestDeps()
		if _, err := d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := d.uc.CreatePending(ctx, "u1", "m1", "O2", 500, nil); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("should treat seasons of the same series as different tuples", func(t *testing.T) {
		d := newLedgerTestDeps()
		if _, err := d.uc.CreatePending(ctx, "u1", "s1", "O1", 300, model.Season(1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := d.uc.CreatePending(ctx, "u1", "s1", "O2", 300, model.Season(2)); err != nil {
			t.Fatalf("expected a different season to be allowed, got %v", err)
		}
		if _, err := d.uc.CreatePending(ctx, "u1", "s1", "O3", 1000, nil); err != nil {
			t.Fatalf("expected whole-series purchase to be allowed, got %v", err)
		}
	})

	t.Run("should allow at most one blocking row under concurrent creation", func(t *testing.T) {
		d := newLedgerTestDeps()
		const n = 50
		var wg sync.WaitGroup
		var mu sync.Mutex
		created, conflicts := 0, 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				orderID := usecase.GenerateOrderID("s1", "u1", model.Season(2))
				_, err := d.uc.CreatePending(ctx, "u1", "s1", orderID, 300, model.Season(2))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, domain.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if created != 1 || conflicts != n-1 {
			t.Fatalf("expected 1 created and %d conflicts, got %d and %d", n-1, created, conflicts)
		}
		if got := d.repo.countBlocking("u1", "s1", model.Season(2)); got != 1 {
			t.Fatalf("expected one blocking row, got %d", got)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		d := newLedgerTestDeps()
		if _, err := d.uc.CreatePending(ctx, "", "m1", "O1", 500, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := d.uc.CreatePending(ctx, "u1", "m1", "", 500, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should surface store failures", func(t *testing.T) {
		d := newLedgerTestDeps()
		d.repo.InsertErr = domain.ErrTransientStore
		if _, err := d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil); !errors.Is(err, domain.ErrTransientStore) {
			t.Fatalf("expected ErrTransientStore, got %v", err)
		}
		if len(d.events.Events) != 0 {
			t.Errorf("expected no event for a failed insert")
		}
	})
}

func TestLedgerUseCase_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("should complete once and no-op afterwards", func(t *testing.T) {
		d := newLedgerTestDeps()
		_, _ = d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil)

		first, applied, err := d.uc.Complete(ctx, "O1")
		if err != nil || !applied {
			t.Fatalf("expected applied completion, got applied=%v err=%v", applied, err)
		}
		if first.Status != model.PurchaseStatusCompleted || first.CompletedAt == nil {
			t.Fatalf("unexpected row %+v", first)
		}

		second, applied, err := d.uc.Complete(ctx, "O1")
		if err != nil || applied || second != nil {
			t.Fatalf("expected silent no-op, got %v applied=%v err=%v", second, applied, err)
		}
		final, err := d.uc.GetByOrderID(ctx, "O1")
		if err != nil {
			t.Fatalf("re-read: %v", err)
		}
		if final.Status != model.PurchaseStatusCompleted || !final.CompletedAt.Equal(*first.CompletedAt) {
			t.Errorf("expected the same final row, got %+v", final)
		}
		if got := d.events.types(); !reflect.DeepEqual(got, []string{"purchase.pending", "purchase.completed"}) {
			t.Errorf("unexpected events %v", got)
		}
	})

	t.Run("should no-op for unknown order ids", func(t *testing.T) {
		d := newLedgerTestDeps()
		p, applied, err := d.uc.Complete(ctx, "missing")
		if err != nil || applied || p != nil {
			t.Fatalf("expected no-op, got %v applied=%v err=%v", p, applied, err)
		}
	})

	t.Run("should not fail a completed purchase", func(t *testing.T) {
		d := newLedgerTestDeps()
		_, _ = d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil)
		_, _, _ = d.uc.Complete(ctx, "O1")
		if _, applied, err := d.uc.Fail(ctx, "O1"); err != nil || applied {
			t.Fatalf("expected no-op, got applied=%v err=%v", applied, err)
		}
		p, _ := d.uc.GetByOrderID(ctx, "O1")
		if p.Status != model.PurchaseStatusCompleted {
			t.Errorf("expected completed, got %s", p.Status)
		}
	})

	t.Run("should free the tuple after a failure", func(t *testing.T) {
		d := newLedgerTestDeps()
		_, _ = d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil)
		if _, applied, err := d.uc.Fail(ctx, "O1"); err != nil || !applied {
			t.Fatalf("expected applied failure, got applied=%v err=%v", applied, err)
		}
		if _, err := d.uc.CreatePending(ctx, "u1", "m1", "O2", 500, nil); err != nil {
			t.Fatalf("expected retry after failure to succeed, got %v", err)
		}
	})

	t.Run("should refund only completed purchases", func(t *testing.T) {
		d := newLedgerTestDeps()
		_, _ = d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil)
		if _, applied, _ := d.uc.Refund(ctx, "O1"); applied {
			t.Fatal("expected refund of a pending row to be a no-op")
		}
		_, _, _ = d.uc.Complete(ctx, "O1")
		p, applied, err := d.uc.Refund(ctx, "O1")
		if err != nil || !applied || p.Status != model.PurchaseStatusRefunded {
			t.Fatalf("expected refunded row, got %+v applied=%v err=%v", p, applied, err)
		}
		if _, err := d.uc.CreatePending(ctx, "u1", "m1", "O2", 500, nil); err != nil {
			t.Fatalf("expected repurchase after refund, got %v", err)
		}
	})

	t.Run("should keep the ledger write when publishing fails", func(t *testing.T) {
		d := newLedgerTestDeps()
		_, _ = d.uc.CreatePending(ctx, "u1", "m1", "O1", 500, nil)
		d.events.PublishErr = errors.New("broker down")
		if _, applied, err := d.uc.Complete(ctx, "O1"); err != nil || !applied {
			t.Fatalf("expected completion despite publish failure, got applied=%v err=%v", applied, err)
		}
	})

	t.Run("should surface transition store errors", func(t *testing.T) {
		d := newLedgerTestDeps()
		d.repo.TransitionErr = domain.ErrTransientStore
		if _, _, err := d.uc.Complete(ctx, "O1"); !errors.Is(err, domain.ErrTransientStore) {
			t.Fatalf("expected ErrTransientStore, got %v", err)
		}
	})
}

func TestLedgerUseCase_Reads(t *testing.T) {
	ctx := context.Background()
	d := newLedgerTestDeps()
	base := time.Now().Add(-time.Hour).UTC()
	d.repo.seed(&model.Purchase{ID: "1", UserID: "u1", ContentID: "s1", SeasonNumber: model.Season(2), OrderID: "O1", Amount: 300, Currency: "LKR", Status: model.PurchaseStatusCompleted, PurchasedAt: base})
	d.repo.seed(&model.Purchase{ID: "2", UserID: "u1", ContentID: "s1", SeasonNumber: model.Season(1), OrderID: "O2", Amount: 300, Currency: "LKR", Status: model.PurchaseStatusCompleted, PurchasedAt: base.Add(time.Minute)})
	d.repo.seed(&model.Purchase{ID: "3", UserID: "u1", ContentID: "s1", SeasonNumber: model.Season(3), OrderID: "O3", Amount: 300, Currency: "LKR", Status: model.PurchaseStatusFailed, PurchasedAt: base})
	d.repo.seed(&model.Purchase{ID: "4", UserID: "u1", ContentID: "m1", OrderID: "O4", Amount: 500, Currency: "LKR", Status: model.PurchaseStatusPending, PurchasedAt: base})

	t.Run("should list completed purchases newest first", func(t *testing.T) {
		list, err := d.uc.ListUserPurchases(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 2 || list[0].OrderID != "O2" || list[1].OrderID != "O1" {
			t.Fatalf("unexpected list %+v", list)
		}
	})

	t.Run("should list purchased seasons", func(t *testing.T) {
		seasons, err := d.uc.PurchasedSeasons(ctx, "u1", "s1")
		if err != nil || !reflect.DeepEqual(seasons, []int{1, 2}) {
			t.Fatalf("expected [1 2], got %v (err %v)", seasons, err)
		}
	})

	t.Run("should find pending and stale rows", func(t *testing.T) {
		p, err := d.uc.FindPending(ctx, "u1", "m1", nil)
		if err != nil || p.OrderID != "O4" {
			t.Fatalf("expected O4, got %v (err %v)", p, err)
		}
		stale, err := d.uc.ListStalePending(ctx, time.Now(), 0)
		if err != nil || len(stale) != 1 || stale[0].OrderID != "O4" {
			t.Fatalf("expected O4 to be stale, got %v (err %v)", stale, err)
		}
		if _, err := d.uc.FindPending(ctx, "u1", "s1", model.Season(3)); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected failed row not to count as pending, got %v", err)
		}
	})
}
