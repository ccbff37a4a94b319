package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
)

// MemoryStore is an in-process response cache with bounded-size LRU
// eviction: the cache never grows past maxEntries, evicting the
// least-recently-used fingerprint, plus an optional TTL so an operator can
// bound staleness independently of size. Get checks presence and expiry
// under the read lock, but every hit then takes the exclusive lock to move
// its entry to the front, so concurrent hits do not run in parallel.
type MemoryStore struct {
	mu         sync.RWMutex
	maxEntries int
	ttl        time.Duration
	order      *list.List
	index      map[string]*list.Element
	byHost     map[string]map[string]struct{}
}

type memoryEntry struct {
	fingerprint string
	hostID      string
	response    connector.ResponseMessage
	insertedAt  time.Time
}

// NewMemoryStore creates a bounded LRU response cache. A zero ttl disables
// time-based expiry; a zero or negative maxEntries is treated as unbounded.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		index:      make(map[string]*list.Element),
		byHost:     make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Get(ctx context.Context, fingerprint string) (connector.ResponseMessage, bool) {
	m.mu.RLock()
	elem, ok := m.index[fingerprint]
	if !ok {
		m.mu.RUnlock()

		return connector.ResponseMessage{}, false
	}

	entry := elem.Value.(*memoryEntry)
	expired := m.ttl > 0 && time.Since(entry.insertedAt) > m.ttl
	resp := entry.response
	m.mu.RUnlock()

	if expired {
		m.mu.Lock()
		m.removeLocked(fingerprint)
		m.mu.Unlock()

		return connector.ResponseMessage{}, false
	}

	m.mu.Lock()
	if elem, ok := m.index[fingerprint]; ok {
		m.order.MoveToFront(elem)
	}
	m.mu.Unlock()

	return connector.FromCache(resp), true
}

func (m *MemoryStore) Put(ctx context.Context, fingerprint string, hostID string, resp connector.ResponseMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.index[fingerprint]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.response = resp
		entry.insertedAt = time.Now()
		entry.hostID = hostID
		m.order.MoveToFront(elem)
		m.addToHostIndexLocked(hostID, fingerprint)

		return
	}

	elem := m.order.PushFront(&memoryEntry{
		fingerprint: fingerprint,
		hostID:      hostID,
		response:    resp,
		insertedAt:  time.Now(),
	})
	m.index[fingerprint] = elem
	m.addToHostIndexLocked(hostID, fingerprint)

	if m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			m.forgetLocked(oldest.Value.(*memoryEntry))
		}
	}
}

// Invalidate removes every entry that was Put under hostID.
func (m *MemoryStore) Invalidate(ctx context.Context, hostID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for fingerprint := range m.byHost[hostID] {
		if elem, ok := m.index[fingerprint]; ok {
			m.order.Remove(elem)
			delete(m.index, fingerprint)
		}
	}

	delete(m.byHost, hostID)
}

func (m *MemoryStore) addToHostIndexLocked(hostID, fingerprint string) {
	if hostID == "" {
		return
	}

	fingerprints, ok := m.byHost[hostID]
	if !ok {
		fingerprints = make(map[string]struct{})
		m.byHost[hostID] = fingerprints
	}

	fingerprints[fingerprint] = struct{}{}
}

// forgetLocked removes entry's fingerprint from the host index. Callers
// must hold mu and have already removed entry from order/index.
func (m *MemoryStore) forgetLocked(entry *memoryEntry) {
	delete(m.index, entry.fingerprint)

	if entry.hostID == "" {
		return
	}

	if fingerprints, ok := m.byHost[entry.hostID]; ok {
		delete(fingerprints, entry.fingerprint)

		if len(fingerprints) == 0 {
			delete(m.byHost, entry.hostID)
		}
	}
}

// removeLocked removes fingerprint from the cache. Callers must hold mu.
func (m *MemoryStore) removeLocked(fingerprint string) {
	if elem, ok := m.index[fingerprint]; ok {
		m.order.Remove(elem)
		m.forgetLocked(elem.Value.(*memoryEntry))
	}
}
