package storage

import (
	"encoding/json"
	"fmt"

	"monthly/internal/core"
	"monthly/internal/ledger"
)

// EncodePeriods serializes the period map to the wire shape
// {"periodName": [tx, ...], ...}. encoding/json writes map keys in sorted
// order, so equal snapshots always encode to identical bytes.
func EncodePeriods(periods map[string][]core.Transaction) ([]byte, error) {
	if periods == nil {
		periods = map[string][]core.Transaction{}
	}
	data, err := json.Marshal(periods)
	if err != nil {
		return nil, fmt.Errorf("encode periods: %w", err)
	}
	return data, nil
}

// DecodeSnapshot rebuilds a ledger snapshot from the stored periods JSON
// and the stored current period name, normalizing legacy transaction
// shapes along the way.
func DecodeSnapshot(periodsJSON []byte, currentPeriod string) (ledger.Snapshot, error) {
	periods := map[string][]core.Transaction{}
	if len(periodsJSON) > 0 {
		if err := json.Unmarshal(periodsJSON, &periods); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("decode periods: %w", err)
		}
	}
	snap := ledger.Snapshot{Periods: periods, CurrentPeriod: currentPeriod}
	return snap.Normalized(), nil
}
