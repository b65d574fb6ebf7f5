package alerts

import (
	"sync"

	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/rtdb"
)

// Manager keeps one running Engine per user and fans its published alert
// collection out to attached sinks (websocket clients, REST reads). Engines
// start lazily on first use and live until Close.
type Manager struct {
	store  rtdb.Store
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*managed
}

type managed struct {
	engine *Engine
	sinks  map[int]func([]models.Alert)
	nextID int
	last   []models.Alert
}

func NewManager(store rtdb.Store, logger *logging.Logger) *Manager {
	return &Manager{
		store:   store,
		logger:  logger,
		entries: map[string]*managed{},
	}
}

// Attach registers a sink for the user's alert stream. The most recent
// collection is delivered immediately; the returned function detaches.
func (m *Manager) Attach(userID string, sink func([]models.Alert)) func() {
	ent := m.ensure(userID)

	m.mu.Lock()
	id := ent.nextID
	ent.nextID++
	ent.sinks[id] = sink
	last := ent.last
	m.mu.Unlock()

	sink(last)

	return func() {
		m.mu.Lock()
		delete(ent.sinks, id)
		m.mu.Unlock()
	}
}

// Current returns the user's current derived alert collection.
func (m *Manager) Current(userID string) []models.Alert {
	return m.ensure(userID).engine.Alerts()
}

// Close stops every engine.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := make([]*managed, 0, len(m.entries))
	for _, ent := range m.entries {
		entries = append(entries, ent)
	}
	m.entries = map[string]*managed{}
	m.mu.Unlock()

	for _, ent := range entries {
		ent.engine.Stop()
	}
}

func (m *Manager) ensure(userID string) *managed {
	m.mu.Lock()
	if ent, ok := m.entries[userID]; ok {
		m.mu.Unlock()
		return ent
	}
	ent := &managed{sinks: map[int]func([]models.Alert){}}
	ent.engine = NewEngine(m.store, m.logger, func(alerts []models.Alert) {
		m.fanout(ent, alerts)
	}, func(err error) {
		m.logger.Errorf("Alert engine for user %s failed: %v", userID, err)
	})
	m.entries[userID] = ent
	m.mu.Unlock()

	// started outside the manager lock; the engine publishes re-entrantly
	// into fanout during Start
	ent.engine.Start(userID)
	return ent
}

func (m *Manager) fanout(ent *managed, alerts []models.Alert) {
	m.mu.Lock()
	ent.last = alerts
	sinks := make([]func([]models.Alert), 0, len(ent.sinks))
	for _, s := range ent.sinks {
		sinks = append(sinks, s)
	}
	m.mu.Unlock()

	for _, s := range sinks {
		s(alerts)
	}
}
