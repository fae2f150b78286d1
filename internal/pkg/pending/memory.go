package pending

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// MemoryStore is the single-instance staging backend: a mutex-guarded map
// with a background sweeper that purges abandoned entries. Consumption is a
// compare-and-delete under the lock, so concurrent Consume calls on the same
// token serialize and exactly one succeeds.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry

	sweepTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	running     bool

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-process staging store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Stage stores a payload under a fresh token with the fixed TTL horizon.
func (s *MemoryStore) Stage(payload json.RawMessage) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	s.mu.Lock()
	s.entries[token] = Entry{
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}
	s.mu.Unlock()
	return token, nil
}

// Consume removes and returns a staged payload. An expired-but-present entry
// is deleted and reported as ErrExpired, not ErrNotFound.
func (s *MemoryStore) Consume(token string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, token)

	if s.now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}
	return entry.Payload, nil
}

// StartSweeper launches the periodic purge of expired entries. The sweep
// only holds the lock for the map scan itself, never across request
// handling.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.sweepTicker = time.NewTicker(interval)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.sweepTicker.C:
				if purged := s.sweep(); purged > 0 {
					log.Infof("[Pending] sweeper purged %d expired staging entries", purged)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// StopSweeper stops the background purge and waits for it to finish.
func (s *MemoryStore) StopSweeper() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.sweepTicker.Stop()
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *MemoryStore) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for token, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, token)
			purged++
		}
	}
	return purged
}

// Len reports the number of staged entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
