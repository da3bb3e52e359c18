// Package sync drives synchronization between the local ledger and the
// remote document store. The policy is last-writer-wins: a push overwrites
// the remote document wholesale and a pull overwrites local state
// wholesale. Local persistence always happens before any remote
// operation, so a failing or slow remote never blocks or unwinds a local
// edit.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"monthly/internal/core"
	"monthly/internal/ledger"
	"monthly/internal/remote"
)

// LedgerStore is the local side the controller syncs against. Snapshot
// reads the latest persisted state and Replace overwrites it wholesale,
// memory and disk together. Implementations own their locking; the
// controller never touches ledger state directly, so there is a single
// mutation path per process.
type LedgerStore interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
	Replace(ctx context.Context, snap ledger.Snapshot) error
}

// Controller owns push, pull and live-update application for one session.
type Controller struct {
	mu      stdsync.Mutex
	session *Session
	store   LedgerStore
	remote  remote.Store
	now     func() time.Time

	// lastPush is the Updated timestamp of the most recent document this
	// controller wrote; live updates carrying it are echoes of our own
	// write and are not applied.
	lastPush time.Time
}

func NewController(session *Session, store LedgerStore, remoteStore remote.Store) *Controller {
	return &Controller{
		session: session,
		store:   store,
		remote:  remoteStore,
		now:     time.Now,
	}
}

// Session returns the controller's session.
func (c *Controller) Session() *Session {
	return c.session
}

// PushRemote overwrites the remote document with the latest local
// snapshot, read fresh from the store on every call so edits made by
// another process since startup are included. With no bound identity it
// logs and returns nil: remote sync is an optional layer and its absence
// is not an error. Network failures map to ErrRemoteUnavailable and never
// touch local state.
func (c *Controller) PushRemote(ctx context.Context) error {
	identity := c.session.Identity()
	if identity == "" {
		slog.DebugContext(ctx, "Skipping remote push, no identity bound")
		return nil
	}
	if c.remote == nil {
		slog.DebugContext(ctx, "Skipping remote push, no remote store configured")
		return nil
	}

	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load local snapshot: %w", err)
	}
	updated := c.now().UTC()

	doc := remote.Document{
		Periods:       snap.Periods,
		CurrentPeriod: snap.CurrentPeriod,
		Updated:       updated,
	}
	if err := c.remote.Save(ctx, identity, doc); err != nil {
		return fmt.Errorf("%w: push: %v", core.ErrRemoteUnavailable, err)
	}

	c.mu.Lock()
	c.lastPush = updated
	c.mu.Unlock()

	slog.InfoContext(ctx, "Pushed ledger to remote",
		"identity", identity,
		"periods", len(doc.Periods),
		"updated", updated.Format(time.RFC3339))
	return nil
}

// PullRemote fetches the remote document and overwrites local state
// wholesale. An absent document means first sync: the local ledger is
// pushed instead of pulled. This pull is destructive; local-only edits
// not yet pushed are discarded.
func (c *Controller) PullRemote(ctx context.Context) error {
	identity := c.session.Identity()
	if identity == "" {
		slog.DebugContext(ctx, "Skipping remote pull, no identity bound")
		return nil
	}
	if c.remote == nil {
		slog.DebugContext(ctx, "Skipping remote pull, no remote store configured")
		return nil
	}

	doc, ok, err := c.remote.Load(ctx, identity)
	if err != nil {
		return fmt.Errorf("%w: pull: %v", core.ErrRemoteUnavailable, err)
	}
	if !ok {
		slog.InfoContext(ctx, "No remote document yet, pushing local ledger", "identity", identity)
		return c.PushRemote(ctx)
	}

	return c.apply(ctx, doc)
}

// ApplyRemote applies a live-update document from the change feed. A
// document whose Updated timestamp matches this controller's last push is
// an echo of our own write and is skipped. Returns whether the document
// was applied.
func (c *Controller) ApplyRemote(ctx context.Context, doc remote.Document) (bool, error) {
	c.mu.Lock()
	echo := !c.lastPush.IsZero() && doc.Updated.Equal(c.lastPush)
	c.mu.Unlock()
	if echo {
		slog.DebugContext(ctx, "Ignoring echo of own remote write",
			"updated", doc.Updated.Format(time.RFC3339))
		return false, nil
	}
	if err := c.apply(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

// WatchRemote consumes the remote change feed until the context ends,
// applying each non-echo document. Returns nil when the store has no
// watch capability.
func (c *Controller) WatchRemote(ctx context.Context) error {
	watcher, ok := c.remote.(remote.Watcher)
	if !ok {
		slog.InfoContext(ctx, "Remote store has no change feed, relying on periodic pulls")
		return nil
	}
	identity := c.session.Identity()
	if identity == "" {
		return nil
	}

	ch, err := watcher.Watch(ctx, identity)
	if err != nil {
		return fmt.Errorf("%w: watch: %v", core.ErrRemoteUnavailable, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case doc, open := <-ch:
			if !open {
				return nil
			}
			applied, err := c.ApplyRemote(ctx, doc)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to apply remote change", "error", err)
				continue
			}
			if applied {
				slog.InfoContext(ctx, "Applied remote change",
					"identity", identity,
					"updated", doc.Updated.Format(time.RFC3339))
			}
		}
	}
}

func (c *Controller) apply(ctx context.Context, doc remote.Document) error {
	snap := ledger.Snapshot{
		Periods:       doc.Periods,
		CurrentPeriod: doc.CurrentPeriod,
	}.Normalized()

	if err := c.store.Replace(ctx, snap); err != nil {
		return fmt.Errorf("persist pulled snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Replaced local ledger with remote snapshot",
		"periods", len(snap.Periods),
		"current_period", snap.CurrentPeriod,
		"remote_updated", doc.Updated.Format(time.RFC3339))
	return nil
}
