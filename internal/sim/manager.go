package sim

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/store"
	"github.com/me/queuesim/pkg/model"
)

// Manager keeps the live sessions of a server and records finished ones in
// the store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    store.Store // nil disables persistence
	max      int
	finishMu sync.Mutex
	saved    map[string]bool // sessions already written to the store
	base     *slog.Logger
	logger   *slog.Logger
}

// NewManager creates a manager holding at most maxSessions live sessions.
// st may be nil.
func NewManager(st store.Store, maxSessions int, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		saved:    make(map[string]bool),
		store:    st,
		max:      maxSessions,
		base:     logger,
		logger:   logger.With("component", "manager"),
	}
}

// Create starts a session for sc.
func (m *Manager) Create(sc *config.Scenario) (*Session, error) {
	s, err := NewSession(sc, m.base)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, &model.APIError{
			Code:    model.ErrCodeConflict,
			Message: fmt.Sprintf("session limit of %d reached", m.max),
		}
	}
	m.sessions[s.ID] = s
	m.logger.Info("session created", "sim_id", s.ID, "name", sc.Name, "policy", sc.Policy, "clients", len(sc.Clients))
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, model.NewNotFoundError("Simulation", id)
	}
	return s, nil
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Delete drops a session without recording it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return model.NewNotFoundError("Simulation", id)
	}
	delete(m.sessions, id)
	m.finishMu.Lock()
	delete(m.saved, id)
	m.finishMu.Unlock()
	m.logger.Info("session deleted", "sim_id", id)
	return nil
}

// Finish records the session as a run and saves it once. The session stays
// available for inspection until deleted.
func (m *Manager) Finish(ctx context.Context, id string) (*model.Run, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	m.finishMu.Lock()
	defer m.finishMu.Unlock()

	run, results, err := s.Record()
	if err != nil {
		return nil, err
	}
	if m.saved[id] || m.store == nil {
		return run, nil
	}
	if err := m.store.SaveRun(ctx, run, results); err != nil {
		return nil, fmt.Errorf("save run %s: %w", run.ID, err)
	}
	m.saved[id] = true
	m.logger.Info("run recorded", "sim_id", id, "run_id", run.ID, "ticks", run.Ticks, "completed", run.Summary.Completed)
	return run, nil
}
