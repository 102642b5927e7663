package coaching

import (
	"sync"
	"time"
)

// ConversationStore abstracts conversation persistence so the in-memory
// implementation can later be swapped for a durable one.
type ConversationStore interface {
	Get(key string) (*Conversation, bool)
	Put(key string, conv *Conversation)
	Delete(key string)
}

type memoryEntry struct {
	conv    *Conversation
	touched time.Time
}

// MemoryStore keeps conversations in memory. Entries idle longer than the
// TTL are dropped on the next Get, and the store holds at most maxEntries
// conversations, evicting the least recently touched one on overflow.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(key string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.ttl > 0 && now.Sub(e.touched) > s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	e.touched = now
	return e.conv, true
}

func (s *MemoryStore) Put(key string, conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.conv = conv
		e.touched = s.now()
		return
	}
	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[key] = &memoryEntry{conv: conv, touched: s.now()}
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports how many conversations are currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictOldest removes the least recently touched entry. Caller holds the lock.
func (s *MemoryStore) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range s.entries {
		if oldestKey == "" || e.touched.Before(oldest) {
			oldestKey = k
			oldest = e.touched
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
