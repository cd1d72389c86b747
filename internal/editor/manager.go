package editor

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager keeps the open sessions of the agent and runs their tickers.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managed
	logger   *slog.Logger
}

type managed struct {
	session *Session
	cancel  context.CancelFunc
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		sessions: make(map[string]*managed),
		logger:   logger,
	}
}

// Open creates a session and starts ticking it until it is closed or ctx ends.
// An empty cfg.ID gets a random one.
func (m *Manager) Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.sessions[s.ID()] = &managed{session: s, cancel: cancel}
	m.mu.Unlock()

	go s.Run(runCtx)
	m.logger.Info("session opened", "session_id", s.ID(), "media_id", s.MediaID())
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// List returns the open sessions ordered by id.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops and removes a session. It reports whether the session existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}

	e.cancel()
	e.session.Close()
	m.logger.Info("session closed", "session_id", id)
	return true
}

// PruneIdle closes sessions with no user action for longer than maxIdle.
func (m *Manager) PruneIdle(maxIdle time.Duration, now time.Time) int {
	var idle []string
	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.session.LastActive()) > maxIdle {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		m.Close(id)
	}
	if len(idle) > 0 {
		m.logger.Info("pruned idle sessions", "count", len(idle))
	}
	return len(idle)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	for _, s := range m.List() {
		m.Close(s.ID())
	}
}
