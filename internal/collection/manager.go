package collection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"heroshell/internal/logging"
)

// Persister loads and stores the whole collection.
type Persister interface {
	Load(ctx context.Context) ([]*HumanBeing, error)
	Store(ctx context.Context, items []*HumanBeing) error
}

// IDGenerator hands out element ids. It is owned by a Manager and reseeded
// from the largest id whenever the collection is loaded.
type IDGenerator struct {
	mu   sync.Mutex
	last int
}

// Next returns the next unused id.
func (g *IDGenerator) Next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}

// Peek returns the id Next would hand out, without consuming it.
func (g *IDGenerator) Peek() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last + 1
}

// Observe raises the counter so id is never handed out again.
func (g *IDGenerator) Observe(id int) {
	g.mu.Lock()
	if id > g.last {
		g.last = id
	}
	g.mu.Unlock()
}

// Reset sets the counter to max, the largest id in use (0 when empty).
func (g *IDGenerator) Reset(max int) {
	g.mu.Lock()
	g.last = max
	g.mu.Unlock()
}

// Manager is the keyed collection of HumanBeing elements. Keys and ids are
// the same value; iteration is in ascending key order.
type Manager struct {
	mu       sync.RWMutex
	items    map[int]*HumanBeing
	ids      IDGenerator
	store    Persister
	lastInit time.Time
	lastSave time.Time
	now      func() time.Time
}

// NewManager creates an empty collection backed by store.
func NewManager(store Persister) *Manager {
	return &Manager{
		items: make(map[int]*HumanBeing),
		store: store,
		now:   time.Now,
	}
}

// NextID reserves a fresh element id.
func (m *Manager) NextID() int {
	return m.ids.Next()
}

// Get returns the element stored under id.
func (m *Manager) Get(id int) (*HumanBeing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.items[id]
	return h, ok
}

// Add stores e under its own id. It refuses nil or an id already present.
func (m *Manager) Add(e *HumanBeing) bool {
	if e == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[e.ID]; exists {
		return false
	}
	m.items[e.ID] = e
	m.ids.Observe(e.ID)
	return true
}

// AddNext gives e the next free id and stores it. If e is invalid with that
// id it is not stored and no id is consumed.
func (m *Manager) AddNext(e *HumanBeing) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.ids.Peek()
	if err := e.Validate(); err != nil {
		e.ID = 0
		return 0, err
	}
	m.items[e.ID] = e
	m.ids.Observe(e.ID)
	return e.ID, nil
}

// Put stores e under key, overwriting any element there. The element's id
// is set to key.
func (m *Manager) Put(key int, e *HumanBeing) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = key
	m.items[key] = e
	m.ids.Observe(key)
}

// Update replaces the element with the same id. It fails if no such element
// exists.
func (m *Manager) Update(e *HumanBeing) bool {
	if e == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[e.ID]; !exists {
		return false
	}
	m.items[e.ID] = e
	return true
}

// Remove deletes the element under id.
func (m *Manager) Remove(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[id]; !exists {
		return false
	}
	delete(m.items, id)
	return true
}

// Clear removes every element.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.items = make(map[int]*HumanBeing)
	m.mu.Unlock()
}

// Len returns the element count.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Values returns the elements in ascending id order. The slice is a
// snapshot; the elements are shared.
func (m *Manager) Values() []*HumanBeing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*HumanBeing, 0, len(m.items))
	for _, h := range m.items {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastInit returns when the collection was last loaded (zero if never).
func (m *Manager) LastInit() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastInit
}

// LastSave returns when the collection was last saved (zero if never).
func (m *Manager) LastSave() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSave
}

// Load replaces the collection with the persisted elements. Invalid and
// duplicate elements are skipped and logged. The id generator is reseeded
// from the largest loaded id.
func (m *Manager) Load(ctx context.Context) error {
	loaded, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	items := make(map[int]*HumanBeing, len(loaded))
	maxID := 0
	for _, h := range loaded {
		if err := h.Validate(); err != nil {
			logging.Get(logging.CategoryCollection).Warn("Skipping element %d: %v", h.ID, err)
			continue
		}
		if _, dup := items[h.ID]; dup {
			logging.Get(logging.CategoryCollection).Warn("Skipping duplicate id %d", h.ID)
			continue
		}
		items[h.ID] = h
		if h.ID > maxID {
			maxID = h.ID
		}
	}

	m.mu.Lock()
	m.items = items
	m.lastInit = m.now()
	m.ids.Reset(maxID)
	m.mu.Unlock()

	logging.Collection("Loaded %d elements (max id %d)", len(items), maxID)
	return nil
}

// Save persists the collection.
func (m *Manager) Save(ctx context.Context) error {
	if err := m.store.Store(ctx, m.Values()); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	m.mu.Lock()
	m.lastSave = m.now()
	m.mu.Unlock()

	logging.Collection("Saved %d elements", m.Len())
	return nil
}

// String lists every element on its own line.
func (m *Manager) String() string {
	values := m.Values()
	if len(values) == 0 {
		return "Collection is empty!"
	}
	lines := make([]string, len(values))
	for i, h := range values {
		lines[i] = h.String()
	}
	return strings.Join(lines, "\n")
}
