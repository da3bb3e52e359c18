// Package export reads and writes the downloadable ledger file format:
// {periods, currentPeriod, exportDate}. Import is all-or-nothing; a file
// that fails to parse leaves the caller's state untouched.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"monthly/internal/core"
	"monthly/internal/ledger"
)

// File is the export file shape.
type File struct {
	Periods       map[string][]core.Transaction `json:"periods"`
	CurrentPeriod string                        `json:"currentPeriod"`
	ExportDate    string                        `json:"exportDate"`
}

// Marshal renders a snapshot as a pretty-printed export file.
func Marshal(snap ledger.Snapshot, now time.Time) ([]byte, error) {
	f := File{
		Periods:       snap.Periods,
		CurrentPeriod: snap.CurrentPeriod,
		ExportDate:    now.UTC().Format(time.RFC3339),
	}
	if f.Periods == nil {
		f.Periods = map[string][]core.Transaction{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export file: %w", err)
	}
	return data, nil
}

// Unmarshal parses an export file into a normalized snapshot. Malformed
// JSON or transactions that fail validation yield ErrImportParse. Files
// from older revisions that omit description or recurring fields are
// accepted; missing descriptions default to the category.
func Unmarshal(data []byte) (ledger.Snapshot, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %v", core.ErrImportParse, err)
	}

	snap := ledger.Snapshot{
		Periods:       f.Periods,
		CurrentPeriod: f.CurrentPeriod,
	}.Normalized()

	for name, txs := range snap.Periods {
		for _, tx := range txs {
			if err := tx.Validate(); err != nil {
				return ledger.Snapshot{}, fmt.Errorf("%w: period %q transaction %d: %v", core.ErrImportParse, name, tx.ID, err)
			}
		}
	}
	return snap, nil
}
