package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage notifies the sync worker that the local ledger
// mutated and the remote document should be refreshed. It carries no
// ledger data; the worker snapshots the current state when it pushes.
type LedgerChangedMessage struct {
	Identity  string    `json:"identity,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(identity, reason string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Identity:  identity,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
