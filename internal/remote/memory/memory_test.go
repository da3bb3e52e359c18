package memory

import (
	"context"
	"testing"
	"time"

	"monthly/internal/core"
	"monthly/internal/remote"
)

func testDoc(current string) remote.Document {
	return remote.Document{
		Periods: map[string][]core.Transaction{
			current: {},
		},
		CurrentPeriod: current,
		Updated:       time.Now().UTC(),
	}
}

func TestLoadMissing(t *testing.T) {
	s := New()
	_, ok, err := s.Load(context.Background(), "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expected no document for fresh identity")
	}
}

func TestSaveAndLoadPerIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Save(ctx, "alice", testDoc("A"))
	s.Save(ctx, "bob", testDoc("B"))

	doc, ok, _ := s.Load(ctx, "alice")
	if !ok || doc.CurrentPeriod != "A" {
		t.Fatalf("alice document mismatch: ok=%v doc=%+v", ok, doc)
	}
	doc, ok, _ = s.Load(ctx, "bob")
	if !ok || doc.CurrentPeriod != "B" {
		t.Fatalf("bob document mismatch: ok=%v doc=%+v", ok, doc)
	}
}

func TestWatchReceivesSaves(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "alice")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	s.Save(ctx, "alice", testDoc("A"))
	s.Save(ctx, "bob", testDoc("B")) // different identity, must not arrive

	select {
	case doc := <-ch:
		if doc.CurrentPeriod != "A" {
			t.Fatalf("expected alice's document, got %+v", doc)
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not deliver the save")
	}

	select {
	case doc := <-ch:
		t.Fatalf("unexpected cross-identity delivery: %+v", doc)
	default:
	}
}

// Saves fanning out while watchers are being cancelled must never send on
// a closed channel. Exercised heavily so the race detector and the panic
// handler both get a chance to see an overlap.
func TestSaveDuringWatchCancellation(t *testing.T) {
	s := New()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.Save(ctx, "alice", testDoc("A"))
		}
	}()

	for i := 0; i < 50; i++ {
		wctx, cancel := context.WithCancel(ctx)
		ch, err := s.Watch(wctx, "alice")
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		cancel()
		for range ch {
		}
	}
	<-done
}

func TestWatchClosesOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Watch(ctx, "alice")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
