// Package brain abstracts the external classification service behind a
// provider interface. Providers are plain HTTP clients; every call takes a
// context, honors a hard timeout, and has no side effect beyond the
// response, so retries after timeouts are always safe.
package brain

import (
	"context"

	"github.com/abelbrown/storyline/internal/config"
)

// Provider is the interface for AI providers
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to an AI provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response is the AI provider's response
type Response struct {
	Content     string
	Model       string
	RawResponse string // The raw API response body for logging/debugging
}

// Manager holds multiple AI providers with fallback
type Manager struct {
	providers []Provider
	preferred string // Preferred provider name
}

// NewManager creates a new provider manager
func NewManager() *Manager {
	return &Manager{
		providers: make([]Provider, 0),
	}
}

// FromConfig builds a manager from configured model settings, ordered by
// priority. The lowest-priority enabled provider becomes preferred.
func FromConfig(cfg *config.ModelConfig) *Manager {
	m := NewManager()

	type entry struct {
		settings config.ModelSettings
		build    func(config.ModelSettings) Provider
	}
	entries := []entry{
		{cfg.Claude, func(s config.ModelSettings) Provider { return NewClaudeProvider(s.APIKey, s.Model) }},
		{cfg.OpenAI, func(s config.ModelSettings) Provider { return NewOpenAIProvider(s.APIKey, s.Model) }},
		{cfg.Gemini, func(s config.ModelSettings) Provider { return NewGeminiProvider(s.APIKey, s.Model) }},
		{cfg.Grok, func(s config.ModelSettings) Provider { return NewGrokProvider(s.APIKey, s.Model) }},
		{cfg.Ollama, func(s config.ModelSettings) Provider { return NewOllamaProvider(s.Endpoint, s.Model) }},
	}

	best := 0
	bestPriority := 0
	for i, e := range entries {
		if !e.settings.Enabled {
			continue
		}
		p := e.build(e.settings)
		m.AddProvider(p)
		if bestPriority == 0 || e.settings.Priority < bestPriority {
			bestPriority = e.settings.Priority
			best = i
		}
	}
	if len(m.providers) > 0 {
		m.preferred = entries[best].build(entries[best].settings).Name()
	}
	return m
}

// AddProvider adds a provider to the manager
func (m *Manager) AddProvider(p Provider) {
	m.providers = append(m.providers, p)
}

// SetPreferred sets the preferred provider by name
func (m *Manager) SetPreferred(name string) {
	m.preferred = name
}

// GetAvailable returns the first available provider, preferring the preferred one
func (m *Manager) GetAvailable() Provider {
	if m.preferred != "" {
		for _, p := range m.providers {
			if p.Name() == m.preferred && p.Available() {
				return p
			}
		}
	}

	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}

	return nil
}

// GetByName returns a provider by name
func (m *Manager) GetByName(name string) Provider {
	for _, p := range m.providers {
		if p.Name() == name && p.Available() {
			return p
		}
	}
	return nil
}

// ListAvailable returns names of all available providers
func (m *Manager) ListAvailable() []string {
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}
