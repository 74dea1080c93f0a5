package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mockmate/mockmate/internal/gateway"
	"github.com/mockmate/mockmate/internal/interview"
	"github.com/mockmate/mockmate/internal/observe"
)

// SessionManager tracks live interview sessions across gateway connections.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*interview.Session
	order    []string
	metrics  *observe.Metrics
}

var _ gateway.SessionRegistry = (*SessionManager)(nil)

// NewSessionManager creates an empty manager.
func NewSessionManager(metrics *observe.Metrics) *SessionManager {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &SessionManager{
		sessions: make(map[string]*interview.Session),
		metrics:  metrics,
	}
}

// Add registers a session and returns its id.
func (sm *SessionManager) Add(sess *interview.Session) string {
	id := uuid.NewString()
	sm.mu.Lock()
	sm.sessions[id] = sess
	sm.order = append(sm.order, id)
	sm.mu.Unlock()

	sm.metrics.ActiveSessions.Add(context.Background(), 1)
	slog.Debug("session registered", "id", id)
	return id
}

// Remove drops a session from tracking. Unknown ids are ignored.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	_, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
		for i, existing := range sm.order {
			if existing == id {
				sm.order = append(sm.order[:i], sm.order[i+1:]...)
				break
			}
		}
	}
	sm.mu.Unlock()

	if ok {
		sm.metrics.ActiveSessions.Add(context.Background(), -1)
		slog.Debug("session removed", "id", id)
	}
}

// Get returns the session for id.
func (sm *SessionManager) Get(id string) (*interview.Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sess, ok := sm.sessions[id]
	return sess, ok
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// CloseAll closes every live session in reverse registration order.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	ids := append([]string(nil), sm.order...)
	sessions := make([]*interview.Session, len(ids))
	for i, id := range ids {
		sessions[i] = sm.sessions[id]
	}
	sm.sessions = make(map[string]*interview.Session)
	sm.order = nil
	sm.mu.Unlock()

	for i := len(sessions) - 1; i >= 0; i-- {
		sessions[i].Close()
		sm.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	if len(sessions) > 0 {
		slog.Info("closed sessions", "count", len(sessions))
	}
}
