package ledger

import (
	"monthly/internal/core"
)

// Snapshot is a deep-copied value view of the ledger, used by the
// persistence layer, the sync controller and import/export. The JSON tags
// match the wire shape of the local store and the remote document.
type Snapshot struct {
	Periods       map[string][]core.Transaction `json:"periods"`
	CurrentPeriod string                        `json:"currentPeriod"`
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	periods := make(map[string][]core.Transaction, len(l.periods))
	for name, txs := range l.periods {
		cp := make([]core.Transaction, len(txs))
		copy(cp, txs)
		periods[name] = cp
	}
	return Snapshot{Periods: periods, CurrentPeriod: l.current}
}

// Restore replaces the ledger state wholesale with the snapshot. Used for
// the initial load, destructive remote pulls and file imports. The
// snapshot is normalized first: transactions get their canonical shape and
// a current period that references no existing key is cleared.
func (l *Ledger) Restore(snap Snapshot) {
	snap = snap.Normalized()
	l.periods = make(map[string][]core.Transaction, len(snap.Periods))
	l.lastID = 0
	for name, txs := range snap.Periods {
		cp := make([]core.Transaction, len(txs))
		copy(cp, txs)
		l.periods[name] = cp
		for _, tx := range txs {
			if tx.ID > l.lastID {
				l.lastID = tx.ID
			}
		}
	}
	l.current = snap.CurrentPeriod
}

// Normalized returns a copy of the snapshot with every transaction in
// canonical shape and a dangling current period cleared. Periods stored as
// JSON null become empty lists.
func (s Snapshot) Normalized() Snapshot {
	periods := make(map[string][]core.Transaction, len(s.Periods))
	for name, txs := range s.Periods {
		cp := make([]core.Transaction, len(txs))
		for i, tx := range txs {
			cp[i] = tx.Normalized()
		}
		periods[name] = cp
	}
	current := s.CurrentPeriod
	if current != "" {
		if _, ok := periods[current]; !ok {
			current = ""
		}
	}
	return Snapshot{Periods: periods, CurrentPeriod: current}
}
