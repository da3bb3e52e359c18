// Package remote defines the ports for the per-identity remote document
// store. One document holds the whole ledger; conflict resolution is
// last-writer-wins, so Save always overwrites.
package remote

import (
	"context"
	"time"

	"monthly/internal/core"
)

// Document is the remote snapshot: the full ledger plus the
// server-observed write timestamp.
type Document struct {
	Periods       map[string][]core.Transaction `json:"periods"`
	CurrentPeriod string                        `json:"currentPeriod"`
	Updated       time.Time                     `json:"updated"`
}

// Ports for outbound adapters.
type (
	// Store reads and writes the remote document for an identity.
	Store interface {
		// Load fetches the document; the bool is false when the identity
		// has no document yet (first sync).
		Load(ctx context.Context, identity string) (Document, bool, error)
		// Save overwrites the document wholesale.
		Save(ctx context.Context, identity string, doc Document) error
	}

	// Watcher delivers documents written by other sessions. The channel is
	// closed when the context ends. Echo suppression is the caller's job.
	Watcher interface {
		Watch(ctx context.Context, identity string) (<-chan Document, error)
	}
)
