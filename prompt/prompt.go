// Package prompt holds the named text/template prompts the engine renders
// while assembling generation requests.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	apperrors "github.com/jivagrisma/ISA-AGENT/errors"
)

// Template is a parsed prompt bound to its registered name.
type Template struct {
	name string
	tmpl *template.Template
}

// NewTemplate parses content as a text/template under the given name.
func NewTemplate(name, content string) (*Template, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("prompt: template name: %w", apperrors.ErrInvalidInput)
	}
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse %s: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// Name returns the name the template was parsed under.
func (t *Template) Name() string {
	return t.name
}

// Render executes the template against vars.
func (t *Template) Render(vars any) (string, error) {
	var b strings.Builder
	if err := t.tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", t.name, err)
	}
	return b.String(), nil
}

// Manager is a concurrency-safe registry of templates keyed by name.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{templates: make(map[string]*Template)}
}

// RegisterString parses content and registers it under name. Names are
// unique; registering an existing name fails.
func (m *Manager) RegisterString(name, content string) error {
	tmpl, err := NewTemplate(name, content)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tmpl.name]; ok {
		return fmt.Errorf("prompt: template %s: %w", tmpl.name, apperrors.ErrAlreadyExists)
	}
	m.templates[tmpl.name] = tmpl
	return nil
}

// Get returns the template registered under name.
func (m *Manager) Get(name string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tmpl, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("prompt: template %s: %w", name, apperrors.ErrNotFound)
	}
	return tmpl, nil
}

// Has reports whether a template is registered under name.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.templates[name]
	return ok
}

// Render looks up name and executes it against vars.
func (m *Manager) Render(name string, vars any) (string, error) {
	tmpl, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}

// List returns the registered template names in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
