package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jivagrisma/ISA-AGENT/agent"
	apperrors "github.com/jivagrisma/ISA-AGENT/errors"
	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
)

// Store defines the interface for session storage backends that operate on
// serializable session records.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// AgentResolver resolves the agent prototype for a persisted session that is
// being rehydrated from the store.
type AgentResolver func(sessionID string, record *Record) (*agent.Agent, error)

// Manager manages multiple sessions using a storage backend.
type Manager struct {
	mu            sync.RWMutex
	store         Store
	resolver      AgentResolver
	sessions      map[string]Session
	sessionAgents map[string]*agent.Agent
	logger        *slog.Logger
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithStore sets the store for the manager.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithAgentResolver sets a custom resolver used when rehydrating single-agent
// sessions from persisted records.
func WithAgentResolver(resolver AgentResolver) Option {
	return func(m *Manager) {
		m.resolver = resolver
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new session manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:      make(map[string]Session),
		sessionAgents: make(map[string]*agent.Agent),
		logger:        logging.WithComponent("session_manager"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Create creates a new single-agent session.
func (m *Manager) Create(ctx context.Context, id string, ag *agent.Agent) (*SingleAgentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrAlreadyExists)
	}

	sess := New(id, ag)
	if err := m.persistLocked(ctx, sess); err != nil {
		m.logger.Error("create session persist failed", "id", id, "error", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.storeSessionLocked(sess)
	m.logger.Info("single-agent session created", "id", id)
	return sess, nil
}

// CreateShared creates a new shared (multi-agent) session.
func (m *Manager) CreateShared(ctx context.Context, id string) (*SharedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrAlreadyExists)
	}

	sess := NewShared(id)
	if err := m.persistLocked(ctx, sess); err != nil {
		m.logger.Error("create shared session persist failed", "id", id, "error", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.storeSessionLocked(sess)
	m.logger.Info("shared session created", "id", id)
	return sess, nil
}

// Get retrieves a session by ID, rehydrating it from the store if needed.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	if sess, ok := m.getCached(id); ok {
		return sess, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	record, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	sess, err := m.instantiate(record)
	if err != nil {
		return nil, err
	}

	m.storeSessionLocked(sess)
	m.logger.Info("session rehydrated", "id", id, "type", record.Type)
	return sess, nil
}

// GetOrCreate retrieves a single-agent session or creates one if absent.
func (m *Manager) GetOrCreate(ctx context.Context, id string, ag *agent.Agent) (*SingleAgentSession, error) {
	if sess, ok := m.getCached(id); ok {
		if single, ok := sess.(*SingleAgentSession); ok {
			return single, nil
		}
		return nil, fmt.Errorf("session %s is not a single-agent session", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		if single, ok := sess.(*SingleAgentSession); ok {
			return single, nil
		}
		return nil, fmt.Errorf("session %s is not a single-agent session", id)
	}

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	if record, err := m.store.Load(ctx, id); err == nil && record != nil {
		if record.Type != TypeSingleAgent {
			return nil, fmt.Errorf("session %s is not a single-agent session", id)
		}
		m.sessionAgents[id] = ag
		sess, err := m.instantiate(record)
		if err != nil {
			return nil, err
		}
		single := sess.(*SingleAgentSession)
		m.storeSessionLocked(single)
		m.logger.Info("single-agent session rehydrated", "id", id)
		return single, nil
	}

	sess := New(id, ag)
	if err := m.persistLocked(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	m.storeSessionLocked(sess)
	m.logger.Info("single-agent session created", "id", id)
	return sess, nil
}

// GetOrCreateShared retrieves a shared session or creates one if absent.
func (m *Manager) GetOrCreateShared(ctx context.Context, id string) (*SharedSession, error) {
	if sess, ok := m.getCached(id); ok {
		if shared, ok := sess.(*SharedSession); ok {
			return shared, nil
		}
		return nil, fmt.Errorf("session %s is not a shared session", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		if shared, ok := sess.(*SharedSession); ok {
			return shared, nil
		}
		return nil, fmt.Errorf("session %s is not a shared session", id)
	}

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	if record, err := m.store.Load(ctx, id); err == nil && record != nil {
		if record.Type != TypeShared {
			return nil, fmt.Errorf("session %s is not a shared session", id)
		}
		shared := NewSharedFromRecord(record)
		m.storeSessionLocked(shared)
		m.logger.Info("shared session rehydrated", "id", id)
		return shared, nil
	}

	sess := NewShared(id)
	if err := m.persistLocked(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	m.storeSessionLocked(sess)
	m.logger.Info("shared session created", "id", id)
	return sess, nil
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		_ = sess.Close()
	}
	delete(m.sessions, id)
	delete(m.sessionAgents, id)

	if err := m.ensureStore(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("delete session failed", "id", id, "error", err)
		return err
	}
	m.logger.Info("session deleted", "id", id)
	return nil
}

// List returns all session IDs.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if err := m.ensureStore(); err != nil {
		return nil, err
	}
	return m.store.List(ctx)
}

// Count returns the number of stored sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	if err := m.ensureStore(); err != nil {
		return 0, err
	}
	return m.store.Count(ctx)
}

// CleanupInactive removes sessions that have been inactive longer than maxAge.
func (m *Manager) CleanupInactive(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return 0, err
	}

	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	count := 0
	for _, id := range ids {
		record, err := m.store.Load(ctx, id)
		if err != nil {
			m.logger.Warn("cleanup load failed", "id", id, "error", err)
			continue
		}
		if record.State != StateInactive || record.UpdatedAt.After(cutoff) {
			continue
		}
		if sess, ok := m.sessions[id]; ok {
			_ = sess.Close()
		}
		if err := m.store.Delete(ctx, id); err == nil {
			count++
			delete(m.sessions, id)
			delete(m.sessionAgents, id)
		}
	}
	m.logger.Info("cleanup completed", "removed", count)
	return count, nil
}

// Save saves a session to the store.
func (m *Manager) Save(ctx context.Context, sess Session) error {
	if err := m.ensureStore(); err != nil {
		return err
	}
	if err := m.store.Save(ctx, sess.Snapshot()); err != nil {
		m.logger.Error("save session failed", "id", sess.ID(), "error", err)
		return err
	}
	return nil
}

func (m *Manager) persistLocked(ctx context.Context, sess Session) error {
	if err := m.ensureStore(); err != nil {
		return err
	}
	return m.store.Save(ctx, sess.Snapshot())
}

func (m *Manager) ensureStore() error {
	if m.store == nil {
		return fmt.Errorf("session manager store is not configured")
	}
	return nil
}

func (m *Manager) instantiate(record *Record) (Session, error) {
	if record == nil {
		return nil, fmt.Errorf("session record is nil")
	}

	switch record.Type {
	case TypeSingleAgent:
		ag := m.sessionAgents[record.ID]
		if ag == nil && m.resolver != nil {
			var err error
			ag, err = m.resolver(record.ID, record)
			if err != nil {
				return nil, err
			}
		}
		if ag == nil {
			return nil, fmt.Errorf("no agent registered for session %s", record.ID)
		}
		return NewSingleFromRecord(record, ag), nil
	case TypeShared:
		return NewSharedFromRecord(record), nil
	default:
		return nil, fmt.Errorf("unknown session type %s", record.Type)
	}
}

func (m *Manager) getCached(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *Manager) storeSessionLocked(sess Session) {
	if sess == nil {
		return
	}
	m.sessions[sess.ID()] = sess
	if single, ok := sess.(*SingleAgentSession); ok {
		m.sessionAgents[single.ID()] = single.Agent()
	}
}
