package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jivagrisma/ISA-AGENT/agent"
	"github.com/jivagrisma/ISA-AGENT/message"
)

// SingleAgentSession represents a session with a single agent.
type SingleAgentSession struct {
	Base
	mu    sync.RWMutex
	agent *agent.Agent
}

// New creates a new session with a single agent
func New(id string, ag *agent.Agent) *SingleAgentSession {
	return &SingleAgentSession{
		Base:  NewBase(id, TypeSingleAgent),
		agent: ag,
	}
}

// NewSingleFromRecord rehydrates a single-agent session from a snapshot,
// restoring the persisted history into the supplied agent.
func NewSingleFromRecord(record *Record, ag *agent.Agent) *SingleAgentSession {
	if record == nil || ag == nil {
		return nil
	}
	sess := &SingleAgentSession{
		Base: Base{
			id:           record.ID,
			sessionType:  TypeSingleAgent,
			State:        record.State,
			CreatedAt:    record.CreatedAt,
			UpdatedAt:    record.UpdatedAt,
			Metadata:     cloneMetadata(record.Metadata),
			lastMessage:  message.Clone(record.LastMessage),
			lastDuration: record.LastDuration,
		},
		agent: ag,
	}
	ag.RestoreMessages(record.Messages)
	return sess
}

// Run executes the agent with input
func (s *SingleAgentSession) Run(ctx context.Context, input string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateActive {
		return "", fmt.Errorf("session is not active (state: %s)", s.State)
	}

	start := time.Now()
	output, err := s.agent.Run(ctx, input)
	if err != nil {
		return "", err
	}

	s.UpdatedAt = time.Now()
	s.SetLastDuration(time.Since(start))
	if msgs := s.agent.GetMessages(); len(msgs) > 0 {
		s.SetLastMessage(msgs[len(msgs)-1])
	}
	return output, nil
}

// GetMessages returns all messages in the session
func (s *SingleAgentSession) GetMessages() []*message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent.GetMessages()
}

// GetState returns the current session state
func (s *SingleAgentSession) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// Snapshot returns a serializable record including the agent's history.
func (s *SingleAgentSession) Snapshot() *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record := s.Base.Snapshot()
	record.Messages = message.CloneMessages(s.agent.GetMessages())
	return record
}

// Close closes the session
func (s *SingleAgentSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State == StateClosed {
		return fmt.Errorf("session already closed")
	}

	s.SetState(StateClosed)
	return nil
}

// Agent returns the agent associated with this session
func (s *SingleAgentSession) Agent() *agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent
}
