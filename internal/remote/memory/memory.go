// Package memory is an in-process remote store used as the default
// backend and in tests. Watch subscribers receive every Save for their
// identity, including their own session's writes, mirroring the behavior
// of a real change feed.
package memory

import (
	"context"
	"sync"

	"monthly/internal/remote"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]remote.Document
	subs map[string][]chan remote.Document
}

func New() *Store {
	return &Store{
		docs: make(map[string]remote.Document),
		subs: make(map[string][]chan remote.Document),
	}
}

var (
	_ remote.Store   = (*Store)(nil)
	_ remote.Watcher = (*Store)(nil)
)

func (s *Store) Load(_ context.Context, identity string) (remote.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[identity]
	return doc, ok, nil
}

// Save stores the document and fans it out to subscribers. Delivery
// happens under the mutex so a concurrent Watch cancellation can never
// close a channel between the snapshot of the subscriber list and the
// send.
func (s *Store) Save(_ context.Context, identity string, doc remote.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[identity] = doc
	for _, ch := range s.subs[identity] {
		select {
		case ch <- doc:
		default:
			// Slow subscriber; drop rather than block the writer. The
			// periodic pull catches up later.
		}
	}
	return nil
}

func (s *Store) Watch(ctx context.Context, identity string) (<-chan remote.Document, error) {
	ch := make(chan remote.Document, 8)

	s.mu.Lock()
	s.subs[identity] = append(s.subs[identity], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		subs := s.subs[identity]
		for i, sub := range subs {
			if sub == ch {
				s.subs[identity] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		// Close while still holding the mutex: once we release it no
		// Save can be mid-delivery to this channel.
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}
