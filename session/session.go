// Package session persists conversations across runs and coordinates
// concurrent access to them.
package session

import (
	"context"
	"time"

	"github.com/jivagrisma/ISA-AGENT/message"
)

// State represents the state of a session
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateClosed   State = "closed"
)

// Type discriminates persisted session records.
type Type string

const (
	// TypeSingleAgent sessions own one agent and its history.
	TypeSingleAgent Type = "single_agent"
	// TypeShared sessions hold history that any agent can be run against.
	TypeShared Type = "shared"
)

// Session represents a conversation session with an agent.
type Session interface {
	// ID returns the session ID
	ID() string

	// Run executes the agent with input
	Run(ctx context.Context, input string) (string, error)

	// GetMessages returns all messages in the session
	GetMessages() []*message.Message

	// GetState returns the current session state
	GetState() State

	// Snapshot returns a serializable record of the session.
	Snapshot() *Record

	// Close closes the session
	Close() error
}

// Record is the serializable form of a session, as written to stores.
type Record struct {
	ID           string             `json:"id"`
	Type         Type               `json:"type"`
	State        State              `json:"state"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
	Messages     []*message.Message `json:"messages,omitempty"`
	LastMessage  *message.Message   `json:"last_message,omitempty"`
	LastDuration time.Duration      `json:"last_duration,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		ID:           r.ID,
		Type:         r.Type,
		State:        r.State,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Metadata:     cloneMetadata(r.Metadata),
		Messages:     message.CloneMessages(r.Messages),
		LastMessage:  message.Clone(r.LastMessage),
		LastDuration: r.LastDuration,
	}
}

// Base provides common fields and methods for session implementations
type Base struct {
	id           string
	sessionType  Type
	State        State
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Metadata     map[string]any
	messages     []*message.Message
	lastMessage  *message.Message
	lastDuration time.Duration
}

// NewBase initializes a new base session
func NewBase(id string, t Type) Base {
	now := time.Now()
	return Base{
		id:          id,
		sessionType: t,
		State:       StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    make(map[string]any),
	}
}

// ID returns the session ID
func (b *Base) ID() string {
	return b.id
}

// Type returns the session type.
func (b *Base) Type() Type {
	return b.sessionType
}

// SetState updates the session state
func (b *Base) SetState(state State) {
	b.State = state
	b.UpdatedAt = time.Now()
}

// SetMetadata sets metadata for the session
func (b *Base) SetMetadata(key string, value any) {
	if b.Metadata == nil {
		b.Metadata = make(map[string]any)
	}
	b.Metadata[key] = value
	b.UpdatedAt = time.Now()
}

// GetMetadata returns metadata for the session
func (b *Base) GetMetadata(key string) (any, bool) {
	if b.Metadata == nil {
		return nil, false
	}
	value, ok := b.Metadata[key]
	return value, ok
}

// Messages returns a copy of the retained history.
func (b *Base) Messages() []*message.Message {
	return message.CloneMessages(b.messages)
}

// SetMessages replaces the retained history with a copy of msgs.
func (b *Base) SetMessages(msgs []*message.Message) {
	b.messages = message.CloneMessages(msgs)
	b.UpdatedAt = time.Now()
}

// SetLastMessage records the most recent turn.
func (b *Base) SetLastMessage(msg *message.Message) {
	b.lastMessage = message.Clone(msg)
}

// SetLastDuration records how long the most recent turn took.
func (b *Base) SetLastDuration(d time.Duration) {
	b.lastDuration = d
}

// Snapshot returns a serializable record of the base state.
func (b *Base) Snapshot() *Record {
	return &Record{
		ID:           b.id,
		Type:         b.sessionType,
		State:        b.State,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		Metadata:     cloneMetadata(b.Metadata),
		Messages:     message.CloneMessages(b.messages),
		LastMessage:  message.Clone(b.lastMessage),
		LastDuration: b.lastDuration,
	}
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for k, v := range metadata {
		cloned[k] = v
	}
	return cloned
}
