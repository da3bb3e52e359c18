package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"monthly/internal/amqp"
	"monthly/internal/core"
	"monthly/internal/ledger"
	"monthly/internal/remote"
	"monthly/internal/remote/memory"
	"monthly/internal/services"
	"monthly/internal/storage"
	ledgersync "monthly/internal/sync"
)

type fakeLedgerStore struct {
	snap ledger.Snapshot
}

func (f *fakeLedgerStore) Snapshot(context.Context) (ledger.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeLedgerStore) Replace(_ context.Context, snap ledger.Snapshot) error {
	f.snap = snap
	return nil
}

func newTestWorker(store remote.Store) (*SyncWorker, *fakeLedgerStore) {
	local := &fakeLedgerStore{
		snap: ledger.Snapshot{
			Periods: map[string][]core.Transaction{
				"September 2026": {
					{ID: 1, Type: core.Expense, Category: "Food", Description: "Food", Amount: core.Money{Cents: 500}, Date: "2026-09-01"},
				},
			},
			CurrentPeriod: "September 2026",
		},
	}
	session := ledgersync.NewSession()
	session.Bind("alice")
	controller := ledgersync.NewController(session, local, store)
	return NewSyncWorker(controller, time.Minute), local
}

func TestHandleChangePushes(t *testing.T) {
	store := memory.New()
	w, _ := newTestWorker(store)

	msg := amqp.NewLedgerChangedMessage("alice", "add_transaction")
	if err := w.HandleChange(context.Background(), msg); err != nil {
		t.Fatalf("handle change: %v", err)
	}

	doc, ok, _ := store.Load(context.Background(), "alice")
	if !ok {
		t.Fatal("expected change notification to trigger a push")
	}
	if doc.CurrentPeriod != "September 2026" {
		t.Fatalf("pushed document mismatch: %q", doc.CurrentPeriod)
	}
}

// The worker and the API server run as separate processes over the same
// database. A push triggered by a change notification must carry the
// state the API process persisted, not whatever the worker saw at
// startup.
func TestHandleChangePushesLatestPersistedState(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "monthly.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	store := memory.New()
	session := ledgersync.NewSession()
	session.Bind("alice")
	w := NewSyncWorker(ledgersync.NewController(session, repo, store), time.Minute)

	// Worker starts against an empty database and seeds the remote.
	if err := w.StartupSync(ctx); err != nil {
		t.Fatalf("startup sync: %v", err)
	}

	// The API process persists an edit through its service.
	svc := services.NewLedgerService(ledger.New(), repo, nil, nil)
	if err := svc.CreatePeriod(ctx, "September 2026"); err != nil {
		t.Fatalf("create period: %v", err)
	}
	if err := svc.SelectPeriod(ctx, "September 2026"); err != nil {
		t.Fatalf("select period: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, core.Income, "Salary", core.Money{Cents: 100000}, "Payday"); err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	msg := amqp.NewLedgerChangedMessage("alice", "add_transaction")
	if err := w.HandleChange(ctx, msg); err != nil {
		t.Fatalf("handle change: %v", err)
	}

	doc, ok, _ := store.Load(ctx, "alice")
	if !ok {
		t.Fatal("expected a pushed document")
	}
	if doc.CurrentPeriod != "September 2026" {
		t.Fatalf("pushed stale state, current period %q", doc.CurrentPeriod)
	}
	txs := doc.Periods["September 2026"]
	if len(txs) != 1 || txs[0].Category != "Salary" {
		t.Fatalf("pushed stale state, transactions %+v", doc.Periods)
	}
}

func TestStartupSyncSeedsEmptyRemote(t *testing.T) {
	store := memory.New()
	w, _ := newTestWorker(store)

	if err := w.StartupSync(context.Background()); err != nil {
		t.Fatalf("startup sync: %v", err)
	}
	if _, ok, _ := store.Load(context.Background(), "alice"); !ok {
		t.Fatal("expected startup sync to seed the remote document")
	}
}

func TestStartupSyncAppliesExistingRemote(t *testing.T) {
	store := memory.New()
	store.Save(context.Background(), "alice", remote.Document{
		Periods:       map[string][]core.Transaction{"Remote": {}},
		CurrentPeriod: "Remote",
		Updated:       time.Now().UTC(),
	})
	w, local := newTestWorker(store)

	if err := w.StartupSync(context.Background()); err != nil {
		t.Fatalf("startup sync: %v", err)
	}
	if local.snap.CurrentPeriod != "Remote" {
		t.Fatalf("expected remote state applied, got %q", local.snap.CurrentPeriod)
	}
}

// flakyWatchStore fails its first Watch call and hands out a closed feed
// on the second, so RunWatch has to survive one failure to finish.
type flakyWatchStore struct {
	calls atomic.Int32
}

func (f *flakyWatchStore) Load(context.Context, string) (remote.Document, bool, error) {
	return remote.Document{}, false, nil
}

func (f *flakyWatchStore) Save(context.Context, string, remote.Document) error {
	return nil
}

func (f *flakyWatchStore) Watch(context.Context, string) (<-chan remote.Document, error) {
	if f.calls.Add(1) == 1 {
		return nil, errors.New("transient watch failure")
	}
	ch := make(chan remote.Document)
	close(ch)
	return ch, nil
}

func TestRunWatchRetriesTransientFailures(t *testing.T) {
	store := &flakyWatchStore{}
	session := ledgersync.NewSession()
	session.Bind("alice")
	controller := ledgersync.NewController(session, &fakeLedgerStore{}, store)

	w := NewSyncWorker(controller, time.Minute)
	w.watchBackoff = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.RunWatch(ctx); err != nil {
		t.Fatalf("watch must retry past a transient failure, got %v", err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Fatalf("expected 2 watch attempts, got %d", got)
	}
}
