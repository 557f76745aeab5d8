// Package provider keeps externally supplied tool sets registered with an
// agent's tool registry and reloads them when a provider signals a change.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
	"github.com/jivagrisma/ISA-AGENT/tool"
)

// ToolSupervisor loads tools from registered providers into a registry and
// keeps them current for as long as the providers stay open.
type ToolSupervisor struct {
	registry   *tool.Registry
	logger     *slog.Logger
	errHandler func(error)

	mu      sync.Mutex
	entries []*entry
}

// entry tracks one registered provider and its watcher lifecycle.
type entry struct {
	provider tool.Provider
	loaded   bool
	cancel   context.CancelFunc
}

// Option configures a ToolSupervisor.
type Option func(*ToolSupervisor)

// WithErrorHandler registers a callback invoked when a background reload
// fails. Failures during Refresh are returned directly instead.
func WithErrorHandler(handler func(error)) Option {
	return func(s *ToolSupervisor) {
		s.errHandler = handler
	}
}

// WithLogger overrides the supervisor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ToolSupervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewToolSupervisor constructs a ToolSupervisor bound to registry.
func NewToolSupervisor(registry *tool.Registry, opts ...Option) *ToolSupervisor {
	if registry == nil {
		panic("runtime/provider: registry cannot be nil")
	}
	s := &ToolSupervisor{
		registry: registry,
		logger:   logging.WithComponent("tool_supervisor"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register adds a provider. Its tools are not loaded until the next Refresh.
func (s *ToolSupervisor) Register(p tool.Provider) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{provider: p})
}

// Providers returns the registered providers in registration order.
func (s *ToolSupervisor) Providers() []tool.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tool.Provider, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.provider)
	}
	return out
}

// Refresh loads every provider that has not been loaded yet and starts its
// change watcher. Providers loaded by an earlier Refresh are left alone.
func (s *ToolSupervisor) Refresh(ctx context.Context) error {
	for _, e := range s.pending() {
		count, err := s.load(ctx, e.provider)
		if err != nil {
			return err
		}
		s.logger.Debug("provider tools loaded", "tools", count)

		s.mu.Lock()
		e.loaded = true
		s.mu.Unlock()

		s.startWatcher(e)
	}
	return nil
}

// Close stops all watchers and closes every provider. The first close error
// is returned after all providers have been closed.
func (s *ToolSupervisor) Close() error {
	s.mu.Lock()
	entries := make([]*entry, len(s.entries))
	copy(entries, s.entries)
	for _, e := range s.entries {
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		e.loaded = false
	}
	s.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if err := e.provider.Close(); err != nil {
			s.logger.Warn("provider close failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *ToolSupervisor) pending() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.loaded {
			out = append(out, e)
		}
	}
	return out
}

// load fetches the provider's tools and upserts them into the registry,
// returning how many were registered.
func (s *ToolSupervisor) load(ctx context.Context, p tool.Provider) (int, error) {
	tools, err := p.Tools(ctx)
	if err != nil {
		return 0, fmt.Errorf("runtime/provider: load tools: %w", err)
	}

	count := 0
	for _, t := range tools {
		if t == nil || t.Name == "" {
			continue
		}
		if err := s.registry.Upsert(t); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *ToolSupervisor) startWatcher(e *entry) {
	ch := e.provider.ToolsChanged()
	if ch == nil {
		return
	}

	s.mu.Lock()
	if e.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	s.mu.Unlock()

	go s.watch(ctx, e, ch)
}

// watch reloads the provider's tools on each change notification until the
// watcher is cancelled or the channel closes.
func (s *ToolSupervisor) watch(ctx context.Context, e *entry, ch <-chan struct{}) {
	defer s.stopWatcher(e)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			count, err := s.load(ctx, e.provider)
			if err != nil {
				s.logger.Warn("provider reload failed", "error", err)
				if s.errHandler != nil {
					s.errHandler(err)
				}
				continue
			}
			s.logger.Debug("provider tools reloaded", "tools", count)
		}
	}
}

func (s *ToolSupervisor) stopWatcher(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
