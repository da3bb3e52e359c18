package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"monthly/internal/core"
	"monthly/internal/ledger"
	"monthly/internal/remote"
	"monthly/internal/remote/memory"
)

type fakeLedgerStore struct {
	snap       ledger.Snapshot
	snapErr    error
	replaceErr error
	replaced   []ledger.Snapshot
}

func (f *fakeLedgerStore) Snapshot(context.Context) (ledger.Snapshot, error) {
	if f.snapErr != nil {
		return ledger.Snapshot{}, f.snapErr
	}
	return f.snap, nil
}

func (f *fakeLedgerStore) Replace(_ context.Context, snap ledger.Snapshot) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.snap = snap
	f.replaced = append(f.replaced, snap)
	return nil
}

func seedSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		Periods: map[string][]core.Transaction{
			"September 2026": {
				{ID: 1, Type: core.Expense, Category: "Food", Description: "Food", Amount: core.Money{Cents: 1250}, Date: "2026-09-01"},
			},
		},
		CurrentPeriod: "September 2026",
	}
}

func TestPushRemoteNoIdentity(t *testing.T) {
	store := memory.New()
	session := NewSession()
	c := NewController(session, &fakeLedgerStore{snap: seedSnapshot()}, store)

	if err := c.PushRemote(context.Background()); err != nil {
		t.Fatalf("push without identity must succeed silently, got %v", err)
	}
	if _, ok, _ := store.Load(context.Background(), "alice"); ok {
		t.Fatal("nothing should have been written")
	}
}

func TestPushRemoteWritesDocument(t *testing.T) {
	store := memory.New()
	session := NewSession()
	session.Bind("alice")
	c := NewController(session, &fakeLedgerStore{snap: seedSnapshot()}, store)

	if err := c.PushRemote(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}

	doc, ok, err := store.Load(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("expected stored document, ok=%v err=%v", ok, err)
	}
	if doc.CurrentPeriod != "September 2026" {
		t.Fatalf("current period mismatch: %q", doc.CurrentPeriod)
	}
	if len(doc.Periods["September 2026"]) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(doc.Periods["September 2026"]))
	}
	if doc.Updated.IsZero() {
		t.Fatal("expected Updated timestamp to be set")
	}
}

func TestPushRemoteReadsLatestSnapshot(t *testing.T) {
	store := memory.New()
	session := NewSession()
	session.Bind("alice")
	local := &fakeLedgerStore{snap: ledger.Snapshot{Periods: map[string][]core.Transaction{}}}
	c := NewController(session, local, store)

	if err := c.PushRemote(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}

	// State changes between pushes, as when another process persists an
	// edit; the next push must carry it.
	local.snap = seedSnapshot()
	if err := c.PushRemote(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}

	doc, _, _ := store.Load(context.Background(), "alice")
	if doc.CurrentPeriod != "September 2026" {
		t.Fatalf("push sent stale state, current period %q", doc.CurrentPeriod)
	}
	if len(doc.Periods["September 2026"]) != 1 {
		t.Fatalf("push sent stale state, transactions %+v", doc.Periods)
	}
}

func TestPullRemoteFirstSyncPushes(t *testing.T) {
	store := memory.New()
	session := NewSession()
	session.Bind("alice")
	c := NewController(session, &fakeLedgerStore{snap: seedSnapshot()}, store)

	if err := c.PullRemote(context.Background()); err != nil {
		t.Fatalf("pull: %v", err)
	}

	// No remote document existed, so the local ledger seeded it.
	doc, ok, _ := store.Load(context.Background(), "alice")
	if !ok {
		t.Fatal("expected first sync to push the local ledger")
	}
	if doc.CurrentPeriod != "September 2026" {
		t.Fatalf("pushed document mismatch: %q", doc.CurrentPeriod)
	}
}

func TestPullRemoteIsDestructive(t *testing.T) {
	store := memory.New()
	remoteDoc := remote.Document{
		Periods: map[string][]core.Transaction{
			"Remote": {
				{ID: 9, Type: core.Income, Category: "Salary", Description: "Salary", Amount: core.Money{Cents: 100000}, Date: "2026-09-01"},
			},
		},
		CurrentPeriod: "Remote",
		Updated:       time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	store.Save(context.Background(), "alice", remoteDoc)

	local := &fakeLedgerStore{snap: seedSnapshot()}
	session := NewSession()
	session.Bind("alice")
	c := NewController(session, local, store)

	if err := c.PullRemote(context.Background()); err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(local.replaced) != 1 {
		t.Fatalf("pulled snapshot must be applied locally, replaces=%d", len(local.replaced))
	}
	snap := local.snap
	if snap.CurrentPeriod != "Remote" {
		t.Fatalf("expected remote state to win, got %q", snap.CurrentPeriod)
	}
	if _, ok := snap.Periods["September 2026"]; ok {
		t.Fatal("local-only period survived a destructive pull")
	}
	want := ledger.Snapshot{
		Periods:       remoteDoc.Periods,
		CurrentPeriod: remoteDoc.CurrentPeriod,
	}.Normalized()
	if diff := cmp.Diff(want, local.replaced[0]); diff != "" {
		t.Fatalf("applied snapshot differs from remote document:\n%s", diff)
	}
}

func TestApplyRemoteEchoSuppression(t *testing.T) {
	store := memory.New()
	session := NewSession()
	session.Bind("alice")
	local := &fakeLedgerStore{snap: seedSnapshot()}
	c := NewController(session, local, store)

	pushTime := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return pushTime }

	if err := c.PushRemote(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}

	echo, _, _ := store.Load(context.Background(), "alice")
	applied, err := c.ApplyRemote(context.Background(), echo)
	if err != nil {
		t.Fatalf("apply echo: %v", err)
	}
	if applied {
		t.Fatal("echo of our own push must not be applied")
	}

	// A genuinely newer document is applied.
	newer := echo
	newer.CurrentPeriod = ""
	newer.Updated = pushTime.Add(time.Minute)
	applied, err = c.ApplyRemote(context.Background(), newer)
	if err != nil {
		t.Fatalf("apply newer: %v", err)
	}
	if !applied {
		t.Fatal("newer document should be applied")
	}
}

func TestApplySurfacesPersistFailure(t *testing.T) {
	store := memory.New()
	session := NewSession()
	session.Bind("alice")
	local := &fakeLedgerStore{snap: seedSnapshot(), replaceErr: errors.New("disk full")}
	c := NewController(session, local, store)

	doc := remote.Document{
		Periods:       map[string][]core.Transaction{"Remote": {}},
		CurrentPeriod: "Remote",
		Updated:       time.Now(),
	}
	if _, err := c.ApplyRemote(context.Background(), doc); err == nil {
		t.Fatal("expected persist failure to surface")
	}
	if local.snap.CurrentPeriod != "September 2026" {
		t.Fatalf("local state changed despite persist failure: %q", local.snap.CurrentPeriod)
	}
}

func TestPushRemoteFailureMapsToRemoteUnavailable(t *testing.T) {
	session := NewSession()
	session.Bind("alice")
	c := NewController(session, &fakeLedgerStore{snap: seedSnapshot()}, failingStore{})

	err := c.PushRemote(context.Background())
	if !errors.Is(err, core.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (remote.Document, bool, error) {
	return remote.Document{}, false, errors.New("network down")
}

func (failingStore) Save(context.Context, string, remote.Document) error {
	return errors.New("network down")
}
