package itemstore

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAttemptRegression signals a Set that would lower an item's attempt
	// counter. Attempts only ever move forward within a session.
	ErrAttemptRegression = errors.New("itemstore: attempt counter must not decrease")
)

// Entry is one cached item record: its identifier, how many times it has
// been visited, and the cached item payload as delivered.
type Entry struct {
	Identifier string          `json:"identifier"`
	Attempt    int             `json:"attempt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Store is the async key-value contract the navigator persists attempt
// counters through. Implementations must provide read-after-write
// consistency per identifier.
type Store interface {
	Get(ctx context.Context, identifier string) (Entry, bool, error)
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, identifier string) error
	Len(ctx context.Context) (int, error)
}

/* --------------------------- In-memory store --------------------------- */

// MemoryStore is a capacity-bounded LRU cache. When full, the least
// recently touched entry is evicted on Set. A capacity of 0 means
// unbounded.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recent
}

type lruItem struct {
	entry Entry
}

func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		entries:  map[string]*list.Element{},
		order:    list.New(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, identifier string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[identifier]
	if !ok {
		return Entry{}, false, nil
	}
	m.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, e Entry) error {
	if e.Identifier == "" {
		return errors.New("itemstore: empty identifier")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[e.Identifier]; ok {
		prev := el.Value.(*lruItem).entry
		if e.Attempt < prev.Attempt {
			return fmt.Errorf("%w: %q %d -> %d", ErrAttemptRegression, e.Identifier, prev.Attempt, e.Attempt)
		}
		el.Value.(*lruItem).entry = e
		m.order.MoveToFront(el)
		return nil
	}
	m.entries[e.Identifier] = m.order.PushFront(&lruItem{entry: e})
	if m.capacity > 0 && m.order.Len() > m.capacity {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*lruItem).entry.Identifier)
		}
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[identifier]; ok {
		m.order.Remove(el)
		delete(m.entries, identifier)
	}
	return nil
}

func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}
