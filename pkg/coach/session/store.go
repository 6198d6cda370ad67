package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store.Get for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Retention is the ambient policy: sessions older than this are purged
// regardless of whether they were explicitly ended.
const Retention = 24 * time.Hour

// Clock abstracts time for the store and the engine so retention and
// business-logic timeouts are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store owns session records. Get/Save pairs used by a single turn must not be
// torn by a concurrent write for the same id; the transport serializes turns
// per session, the store only guarantees atomicity of each call.
type Store interface {
	Create(ctx context.Context, userID string, mode Mode) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory with the ambient retention
// policy applied on read and on a periodic sweep.
type MemoryStore struct {
	clock     Clock
	retention time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	creates  int
}

// NewMemoryStore builds an in-memory store. A nil clock uses the system clock.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryStore{
		clock:     clock,
		retention: Retention,
		sessions:  make(map[string]*Session),
	}
}

func (m *MemoryStore) Create(ctx context.Context, userID string, mode Mode) (*Session, error) {
	now := m.clock.Now()
	s := New(uuid.NewString(), userID, mode, now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	m.creates++
	if m.creates%5 == 0 {
		m.sweepLocked(now)
	}
	return s, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(s, m.clock.Now()) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep removes sessions past the retention window and reports how many.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.clock.Now())
}

func (m *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) expired(s *Session, now time.Time) bool {
	return now.Sub(s.StartTime) >= m.retention
}

// CachedStore layers a read-through/write-through in-memory cache over a
// durable Store. Reads hit the durable layer only on a cache miss; every
// save writes both layers. Cache hits re-check the retention window so an
// entry never outlives what the durable layer would serve.
type CachedStore struct {
	inner Store
	clock Clock

	mu    sync.Mutex
	cache map[string]*Session
}

// NewCachedStore wraps inner with an in-memory cache. A nil clock uses the
// system clock.
func NewCachedStore(inner Store, clock Clock) *CachedStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CachedStore{
		inner: inner,
		clock: clock,
		cache: make(map[string]*Session),
	}
}

func (c *CachedStore) Create(ctx context.Context, userID string, mode Mode) (*Session, error) {
	s, err := c.inner.Create(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[s.ID] = s
	c.mu.Unlock()
	return s, nil
}

func (c *CachedStore) Get(ctx context.Context, id string) (*Session, error) {
	now := c.clock.Now()
	c.mu.Lock()
	if s, ok := c.cache[id]; ok {
		if now.Sub(s.StartTime) < Retention {
			c.mu.Unlock()
			return s, nil
		}
		delete(c.cache, id)
	}
	c.mu.Unlock()

	s, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[id] = s
	c.mu.Unlock()
	return s, nil
}

func (c *CachedStore) Save(ctx context.Context, s *Session) error {
	c.mu.Lock()
	c.cache[s.ID] = s
	c.mu.Unlock()
	return c.inner.Save(ctx, s)
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
	return c.inner.Delete(ctx, id)
}
