// Package ledger owns the authoritative in-memory collection of periods
// and transactions and enforces its invariants. It performs no I/O;
// persistence and sync live in their own packages and work against
// snapshots.
package ledger

import (
	"sort"
	"strings"
	"time"

	"monthly/internal/core"
)

// Ledger maps period names to transaction lists and tracks the currently
// selected period. The current period always references an existing key
// or is empty.
type Ledger struct {
	periods map[string][]core.Transaction
	current string
	lastID  int64
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{
		periods: make(map[string][]core.Transaction),
		now:     time.Now,
	}
}

// FromSnapshot builds a ledger from persisted state. The ID counter
// resumes past the highest stored transaction ID so fresh IDs stay unique.
func FromSnapshot(snap Snapshot) *Ledger {
	l := New()
	l.Restore(snap)
	return l
}

// DefaultPeriodName names the auto-created first period after the given
// time, e.g. "September 2026".
func DefaultPeriodName(t time.Time) string {
	return t.Format("January 2006")
}

// EnsureDefault creates and selects a default period when the ledger has
// no periods and no selection yet. Returns the created name, or "" when
// nothing was done.
func (l *Ledger) EnsureDefault(t time.Time) string {
	if l.current != "" || len(l.periods) > 0 {
		return ""
	}
	name := DefaultPeriodName(t)
	l.periods[name] = nil
	l.current = name
	return name
}

// CreatePeriod inserts an empty period. The current selection is left
// untouched; callers select explicitly if they want the new period active.
func (l *Ledger) CreatePeriod(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrInvalidName
	}
	if _, ok := l.periods[name]; ok {
		return core.ErrDuplicateName
	}
	l.periods[name] = nil
	return nil
}

// RenamePeriod atomically moves the transaction list to the new key and
// retargets the current selection if it pointed at the old name. Renaming
// a period to its own name succeeds without effect.
func (l *Ledger) RenamePeriod(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	txs, ok := l.periods[oldName]
	if !ok {
		return core.ErrNotFound
	}
	if newName == oldName {
		return nil
	}
	if newName == "" {
		return core.ErrInvalidName
	}
	if _, exists := l.periods[newName]; exists {
		return core.ErrDuplicateName
	}
	delete(l.periods, oldName)
	l.periods[newName] = txs
	if l.current == oldName {
		l.current = newName
	}
	return nil
}

// DeletePeriod removes the period and its transactions. When the deleted
// period was current, selection falls to an arbitrary remaining period,
// or empties out; callers must not depend on which one becomes active.
func (l *Ledger) DeletePeriod(name string) error {
	if _, ok := l.periods[name]; !ok {
		return core.ErrNotFound
	}
	delete(l.periods, name)
	if l.current == name {
		l.current = ""
		for remaining := range l.periods {
			l.current = remaining
			break
		}
	}
	return nil
}

// SelectPeriod sets the current period. The empty name clears the
// selection; any other name must exist.
func (l *Ledger) SelectPeriod(name string) error {
	if name != "" {
		if _, ok := l.periods[name]; !ok {
			return core.ErrNotFound
		}
	}
	l.current = name
	return nil
}

// AddTransaction validates, stamps and prepends a transaction to the named
// period so the list stays most-recent-first. The ID is derived from the
// clock in milliseconds and bumped when two inserts land in the same
// millisecond.
func (l *Ledger) AddTransaction(periodName string, typ core.TxType, category string, amount core.Money, description string) (core.Transaction, error) {
	if periodName == "" {
		return core.Transaction{}, core.ErrNoActivePeriod
	}
	txs, ok := l.periods[periodName]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	tx := core.Transaction{
		Type:        typ,
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Date:        l.now().Format(core.DateLayout),
	}.Normalized()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = l.nextID()
	l.periods[periodName] = append([]core.Transaction{tx}, txs...)
	return tx, nil
}

// DeleteTransaction removes the transaction with the given ID from the
// period. A second call with the same ID fails with ErrNotFound.
func (l *Ledger) DeleteTransaction(periodName string, id int64) error {
	txs, ok := l.periods[periodName]
	if !ok {
		return core.ErrNotFound
	}
	for i, tx := range txs {
		if tx.ID == id {
			l.periods[periodName] = append(append([]core.Transaction(nil), txs[:i]...), txs[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// Current returns the name of the selected period, or "".
func (l *Ledger) Current() string {
	return l.current
}

// PeriodNames lists all period names in sorted order. Display order is not
// a correctness property; sorting just keeps it stable.
func (l *Ledger) PeriodNames() []string {
	names := make([]string, 0, len(l.periods))
	for name := range l.periods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transactions returns a copy of the named period's list, most recent
// first. An unknown period yields nil.
func (l *Ledger) Transactions(periodName string) []core.Transaction {
	txs, ok := l.periods[periodName]
	if !ok || len(txs) == 0 {
		return nil
	}
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	return out
}

// CurrentTransactions returns a copy of the selected period's list.
func (l *Ledger) CurrentTransactions() []core.Transaction {
	return l.Transactions(l.current)
}

func (l *Ledger) nextID() int64 {
	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}
