// Package services orchestrates ledger operations: every mutation goes
// through one path that applies the change in memory, persists the
// snapshot locally before the mutation counts as complete, and then
// publishes an async change notification. Remote sync rides on those
// notifications and never blocks a local edit.
package services

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"monthly/internal/core"
	"monthly/internal/export"
	"monthly/internal/ledger"
	"monthly/internal/report"
	ledgersync "monthly/internal/sync"
)

// SnapshotStore is the local durable store port.
type SnapshotStore interface {
	LoadInitial(ctx context.Context) (ledger.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error
}

// ChangePublisher is the async notification port; nil disables it.
type ChangePublisher interface {
	PublishLedgerChanged(ctx context.Context, identity, reason string) error
}

// LedgerService is the single mutation path over the ledger. It also
// backs the sync controller as its LedgerStore, so remote pulls take the
// same mutex as every handler mutation.
type LedgerService struct {
	mu        stdsync.Mutex
	ledger    *ledger.Ledger
	store     SnapshotStore
	publisher ChangePublisher
	session   *ledgersync.Session
	now       func() time.Time
}

var _ ledgersync.LedgerStore = (*LedgerService)(nil)

func NewLedgerService(l *ledger.Ledger, store SnapshotStore, publisher ChangePublisher, session *ledgersync.Session) *LedgerService {
	if session == nil {
		session = ledgersync.NewSession()
	}
	return &LedgerService{
		ledger:    l,
		store:     store,
		publisher: publisher,
		session:   session,
		now:       time.Now,
	}
}

// EnsureDefaultPeriod creates and persists the default period when the
// ledger is empty, matching the first-use behavior.
func (s *LedgerService) EnsureDefaultPeriod(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	name := s.ledger.EnsureDefault(s.now())
	if name == "" {
		return "", nil
	}
	if err := s.persistLocked(ctx, prev, "create_default_period"); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Created default period", "period", name)
	return name, nil
}

func (s *LedgerService) CreatePeriod(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	if err := s.ledger.CreatePeriod(name); err != nil {
		return err
	}
	return s.persistLocked(ctx, prev, "create_period")
}

func (s *LedgerService) RenamePeriod(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	if err := s.ledger.RenamePeriod(oldName, newName); err != nil {
		return err
	}
	return s.persistLocked(ctx, prev, "rename_period")
}

func (s *LedgerService) DeletePeriod(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	if err := s.ledger.DeletePeriod(name); err != nil {
		return err
	}
	return s.persistLocked(ctx, prev, "delete_period")
}

func (s *LedgerService) SelectPeriod(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	if err := s.ledger.SelectPeriod(name); err != nil {
		return err
	}
	return s.persistLocked(ctx, prev, "select_period")
}

// AddTransaction records a transaction against the currently selected
// period.
func (s *LedgerService) AddTransaction(ctx context.Context, typ core.TxType, category string, amount core.Money, description string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	tx, err := s.ledger.AddTransaction(s.ledger.Current(), typ, category, amount, description)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.persistLocked(ctx, prev, "add_transaction"); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"type", string(tx.Type),
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents,
		"period", s.ledger.Current())
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	if err := s.ledger.DeleteTransaction(s.ledger.Current(), id); err != nil {
		return err
	}
	return s.persistLocked(ctx, prev, "delete_transaction")
}

// Import replaces the whole ledger with the parsed file contents. A parse
// failure leaves prior state fully intact.
func (s *LedgerService) Import(ctx context.Context, data []byte) error {
	snap, err := export.Unmarshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	s.ledger.Restore(snap)
	return s.persistLocked(ctx, prev, "import")
}

// Export renders the current ledger as a downloadable file.
func (s *LedgerService) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	snap := s.ledger.Snapshot()
	s.mu.Unlock()
	return export.Marshal(snap, s.now())
}

// Snapshot returns a deep copy of the current ledger state.
func (s *LedgerService) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot(), nil
}

// Replace overwrites the ledger wholesale with a pulled remote snapshot
// and persists it, rolling back in memory on persist failure. No change
// notification is published; the state came from the remote side.
func (s *LedgerService) Replace(ctx context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.Snapshot()
	s.ledger.Restore(snap)
	if err := s.store.SaveSnapshot(ctx, s.ledger.Snapshot()); err != nil {
		s.ledger.Restore(prev)
		return fmt.Errorf("persist local: %w", err)
	}
	return nil
}

// CurrentPeriod returns the selected period name, or "".
func (s *LedgerService) CurrentPeriod() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Current()
}

// PeriodNames lists all period names.
func (s *LedgerService) PeriodNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.PeriodNames()
}

// Transactions returns the selected period's transactions after applying
// the search term and category filter.
func (s *LedgerService) Transactions(searchTerm, categoryFilter string) []core.Transaction {
	s.mu.Lock()
	txs := s.ledger.CurrentTransactions()
	s.mu.Unlock()
	return report.Filter(txs, searchTerm, categoryFilter)
}

// Totals aggregates the selected period's transactions after filtering.
func (s *LedgerService) Totals(searchTerm, categoryFilter string) report.Totals {
	return report.Sum(s.Transactions(searchTerm, categoryFilter))
}

// CategoryTotals aggregates the selected period per category/type pair.
func (s *LedgerService) CategoryTotals() report.CategoryTotals {
	s.mu.Lock()
	txs := s.ledger.CurrentTransactions()
	s.mu.Unlock()
	return report.ByCategory(txs)
}

// Categories lists the distinct categories in the selected period.
func (s *LedgerService) Categories() []string {
	s.mu.Lock()
	txs := s.ledger.CurrentTransactions()
	s.mu.Unlock()
	return report.Categories(txs)
}

// persistLocked saves the snapshot; on failure the in-memory mutation is
// rolled back so no partial state survives. Called with the mutex held.
func (s *LedgerService) persistLocked(ctx context.Context, prev ledger.Snapshot, reason string) error {
	if err := s.store.SaveSnapshot(ctx, s.ledger.Snapshot()); err != nil {
		s.ledger.Restore(prev)
		return fmt.Errorf("persist local: %w", err)
	}
	s.notify(ctx, reason)
	return nil
}

// notify publishes a change notification. Failures are logged and never
// surfaced: the local mutation already succeeded.
func (s *LedgerService) notify(ctx context.Context, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, s.session.Identity(), reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change notification",
			"reason", reason, "error", err)
	}
}
