package pos

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the live POS sessions keyed by id so the HTTP layer can
// address them across requests.
type Manager struct {
	gateway Gateway
	logger  *zap.Logger
	options []SessionOption

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager wires a Manager. The given options apply to every session
// it creates.
func NewManager(gateway Gateway, logger *zap.Logger, options ...SessionOption) (*Manager, error) {
	if gateway == nil {
		return nil, ErrInvalidSessionConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gateway:  gateway,
		logger:   logger,
		options:  options,
		sessions: map[string]*Session{},
	}, nil
}

// Create opens a new session and returns its id.
func (manager *Manager) Create() (string, *Session, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.closed {
		return "", nil, ErrSessionClosed
	}
	options := append([]SessionOption{WithSessionLogger(manager.logger)}, manager.options...)
	session, err := NewSession(manager.gateway, options...)
	if err != nil {
		return "", nil, err
	}
	sessionID := uuid.NewString()
	manager.sessions[sessionID] = session
	return sessionID, session, nil
}

// Get returns the session with the given id.
func (manager *Manager) Get(sessionID string) (*Session, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	session, ok := manager.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Remove closes and forgets a session. Removing an unknown id is a
// no-op.
func (manager *Manager) Remove(sessionID string) {
	manager.mu.Lock()
	session, ok := manager.sessions[sessionID]
	delete(manager.sessions, sessionID)
	manager.mu.Unlock()
	if ok {
		session.Close()
	}
}

// Close tears down every session; the manager accepts no new ones.
func (manager *Manager) Close() {
	manager.mu.Lock()
	manager.closed = true
	sessions := make([]*Session, 0, len(manager.sessions))
	for _, session := range manager.sessions {
		sessions = append(sessions, session)
	}
	manager.sessions = map[string]*Session{}
	manager.mu.Unlock()
	for _, session := range sessions {
		session.Close()
	}
}
