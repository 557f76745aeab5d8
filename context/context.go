// Package context manages conversation history for an agent run.
package context

import (
	"github.com/jivagrisma/ISA-AGENT/message"
)

// Context manages the conversation context including message history
type Context struct {
	messages []*message.Message
	maxSize  int // Maximum number of messages to keep
}

// New creates a new context with default settings
func New() *Context {
	return NewWithMaxSize(100)
}

// NewWithMaxSize creates a new context with specified max size
func NewWithMaxSize(maxSize int) *Context {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Context{
		messages: make([]*message.Message, 0),
		maxSize:  maxSize,
	}
}

// AddMessage adds a message to the context
func (c *Context) AddMessage(msg *message.Message) {
	if msg == nil {
		return
	}
	c.messages = append(c.messages, msg)

	if len(c.messages) <= c.maxSize {
		return
	}

	// Keep system messages plus the most recent turns.
	systemMsgs := make([]*message.Message, 0)
	for _, m := range c.messages {
		if m.Role == message.RoleSystem {
			systemMsgs = append(systemMsgs, m)
		}
	}

	keepCount := c.maxSize - len(systemMsgs)
	if keepCount < 0 {
		keepCount = 0
	}
	recent := message.Window(c.messages, keepCount)

	rebuilt := make([]*message.Message, 0, c.maxSize)
	rebuilt = append(rebuilt, systemMsgs...)
	for _, m := range recent {
		if m.Role != message.RoleSystem {
			rebuilt = append(rebuilt, m)
		}
	}
	c.messages = rebuilt
}

// GetMessages returns all messages in the context
func (c *Context) GetMessages() []*message.Message {
	return c.messages
}

// GetLastMessage returns the last message or nil if empty
func (c *Context) GetLastMessage() *message.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// GetMessagesByRole returns all messages with the specified role
func (c *Context) GetMessagesByRole(role message.Role) []*message.Message {
	result := make([]*message.Message, 0)
	for _, msg := range c.messages {
		if msg.Role == role {
			result = append(result, msg)
		}
	}
	return result
}

// Clear removes all messages from the context
func (c *Context) Clear() {
	c.messages = make([]*message.Message, 0)
}

// Size returns the current number of messages
func (c *Context) Size() int {
	return len(c.messages)
}
