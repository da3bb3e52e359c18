// Package worker runs remote synchronization out of band. Change
// notifications from AMQP trigger pushes; a ticker re-pushes periodically
// as a safety net for lost messages, and the remote change feed is
// applied back through the controller.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"monthly/internal/amqp"
	ledgersync "monthly/internal/sync"
)

type SyncWorker struct {
	controller   *ledgersync.Controller
	interval     time.Duration
	watchBackoff time.Duration
}

func NewSyncWorker(controller *ledgersync.Controller, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		controller:   controller,
		interval:     interval,
		watchBackoff: time.Second,
	}
}

// HandleChange processes a single change notification by pushing the
// current snapshot to the remote store.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change notification",
		"reason", msg.Reason,
		"identity", msg.Identity)

	if err := w.controller.PushRemote(ctx); err != nil {
		return fmt.Errorf("push after change: %w", err)
	}
	return nil
}

// StartupSync pulls the remote document once at startup. An absent
// document turns into a first-sync push inside the controller.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	if err := w.controller.PullRemote(ctx); err != nil {
		return fmt.Errorf("startup pull: %w", err)
	}
	return nil
}

// RunPeriodicPush re-pushes on the configured interval until the context
// ends. This covers notifications lost while AMQP was unavailable.
func (w *SyncWorker) RunPeriodicPush(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.controller.PushRemote(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic remote push failed", "error", err)
			}
		}
	}
}

// RunWatch applies live updates from the remote change feed until the
// context ends. Transient watch failures are retried with exponential
// backoff so one bad poll does not take down the whole worker; the
// consumer and periodic push keep running meanwhile.
func (w *SyncWorker) RunWatch(ctx context.Context) error {
	backoff := w.watchBackoff
	for {
		err := w.controller.WatchRemote(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.ErrorContext(ctx, "Remote watch failed, retrying",
			"error", err,
			"backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
}
