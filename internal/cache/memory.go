package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/matheuskafuri/lingonews/internal/news"
)

// Entry is one memory-tier record. It is read-only until ExpiresAt.
type Entry struct {
	Key        string
	Articles   []news.Article
	ProviderID string
	FetchedAt  time.Time
	ExpiresAt  time.Time
}

type MemoryStats struct {
	Entries     int `json:"entries"`
	ApproxBytes int `json:"approxBytes"`
}

// Memory is the in-process tier. Expiry is lazy: Get treats an expired entry
// as absent, Prune reclaims the memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{entries: make(map[string]Entry), now: now}
}

// Get returns the articles stored under key, or false when the key was never
// written or has expired.
func (m *Memory) Get(key string) ([]news.Article, bool) {
	e, ok := m.Entry(key)
	if !ok {
		return nil, false
	}
	return e.Articles, true
}

// Entry is Get with the entry's metadata.
func (m *Memory) Entry(key string) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.ExpiresAt) {
		return Entry{}, false
	}
	e.Articles = append([]news.Article(nil), e.Articles...)
	return e, true
}

// Set overwrites key unconditionally.
func (m *Memory) Set(key string, articles []news.Article, providerID string, ttl time.Duration) {
	now := m.now()
	e := Entry{
		Key:        key,
		Articles:   append([]news.Article(nil), articles...),
		ProviderID: providerID,
		FetchedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

// Prune deletes expired entries and returns how many were removed.
func (m *Memory) Prune() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if e.ExpiresAt.Before(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
}

// Stats reports the entry count and a rough serialized size.
func (m *Memory) Stats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MemoryStats{Entries: len(m.entries)}
	for _, e := range m.entries {
		if b, err := json.Marshal(e); err == nil {
			s.ApproxBytes += len(b)
		}
	}
	return s
}
