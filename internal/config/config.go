package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	// AI Models
	Models ModelConfig `json:"models"`

	// Pipeline tuning
	Pipeline PipelineConfig `json:"pipeline"`

	// Database path; defaults to ~/.storyline/storyline.db
	DatabasePath string `json:"database_path,omitempty"`
}

// ModelConfig holds AI model settings
type ModelConfig struct {
	Claude ModelSettings `json:"claude"`
	OpenAI ModelSettings `json:"openai"`
	Gemini ModelSettings `json:"gemini"`
	Grok   ModelSettings `json:"grok"`
	Ollama ModelSettings `json:"ollama"`
}

// ModelSettings for a single AI provider
type ModelSettings struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // For Ollama or custom endpoints
	Model    string `json:"model,omitempty"`    // Specific model to use
	Priority int    `json:"priority"`           // Lower = higher priority for fallback
}

// PipelineConfig holds clustering and revision pass tuning.
type PipelineConfig struct {
	// BatchSize bounds how many unassigned records one clustering cycle
	// takes on (and therefore the classification payload size).
	BatchSize int `json:"batch_size"`

	// MinClusterSize is the admission floor: clusters that fall below it
	// after validation are recycled whole.
	MinClusterSize int `json:"min_cluster_size"`

	// SplitThreshold is the owned-record count at which a family becomes
	// a splitter candidate.
	SplitThreshold int `json:"split_threshold"`

	// MaxPairsPerCycle bounds interpretive-merger candidate pairs per pass.
	MaxPairsPerCycle int `json:"max_pairs_per_cycle"`

	// MaxOrphansPerCycle bounds cross-batch assignment work per pass.
	MaxOrphansPerCycle int `json:"max_orphans_per_cycle"`

	// Fanout is the number of classification calls allowed in flight.
	Fanout int `json:"fanout"`

	// CallTimeoutSec is the hard per-call timeout.
	CallTimeoutSec int `json:"call_timeout_sec"`

	// CallsPerMinute feeds the provider rate limiter.
	CallsPerMinute int `json:"calls_per_minute"`

	// Pass intervals, in seconds.
	ClusterIntervalSec int `json:"cluster_interval_sec"`
	AssignIntervalSec  int `json:"assign_interval_sec"`
	MergeIntervalSec   int `json:"merge_interval_sec"`
	SplitIntervalSec   int `json:"split_interval_sec"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Models: ModelConfig{
			Claude: ModelSettings{
				Enabled:  true,
				Priority: 1,
				Model:    "claude-sonnet-4-5-20250929",
			},
			OpenAI: ModelSettings{
				Enabled:  false,
				Priority: 2,
				Model:    "gpt-5.2",
			},
			Gemini: ModelSettings{
				Enabled:  false,
				Priority: 3,
				Model:    "gemini-3-flash-preview",
			},
			Grok: ModelSettings{
				Enabled:  false,
				Priority: 4,
				Model:    "grok-4-1-fast-non-reasoning",
			},
			Ollama: ModelSettings{
				Enabled:  false,
				Priority: 5,
				Endpoint: "http://localhost:11434",
				// Model auto-detected from Ollama if not specified
			},
		},
		Pipeline: PipelineConfig{
			BatchSize:          120,
			MinClusterSize:     3,
			SplitThreshold:     15,
			MaxPairsPerCycle:   10,
			MaxOrphansPerCycle: 40,
			Fanout:             5,
			CallTimeoutSec:     60,
			CallsPerMinute:     60,
			ClusterIntervalSec: 300,
			AssignIntervalSec:  600,
			MergeIntervalSec:   900,
			SplitIntervalSec:   1800,
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storyline", "config.json")
}

// DefaultDatabasePath returns the default sqlite location.
func DefaultDatabasePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storyline", "storyline.db")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults and try to auto-populate from environment
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	cfg.applyFloors()
	cfg.AutoPopulateFromEnv()
	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// applyFloors backfills zero-valued pipeline fields from defaults so a
// hand-edited config can't zero out a batch size or timeout.
func (c *Config) applyFloors() {
	def := DefaultConfig().Pipeline
	p := &c.Pipeline
	if p.BatchSize <= 0 {
		p.BatchSize = def.BatchSize
	}
	if p.MinClusterSize <= 0 {
		p.MinClusterSize = def.MinClusterSize
	}
	if p.SplitThreshold <= 0 {
		p.SplitThreshold = def.SplitThreshold
	}
	if p.MaxPairsPerCycle <= 0 {
		p.MaxPairsPerCycle = def.MaxPairsPerCycle
	}
	if p.MaxOrphansPerCycle <= 0 {
		p.MaxOrphansPerCycle = def.MaxOrphansPerCycle
	}
	if p.Fanout <= 0 {
		p.Fanout = def.Fanout
	}
	if p.CallTimeoutSec <= 0 {
		p.CallTimeoutSec = def.CallTimeoutSec
	}
	if p.CallsPerMinute <= 0 {
		p.CallsPerMinute = def.CallsPerMinute
	}
	if p.ClusterIntervalSec <= 0 {
		p.ClusterIntervalSec = def.ClusterIntervalSec
	}
	if p.AssignIntervalSec <= 0 {
		p.AssignIntervalSec = def.AssignIntervalSec
	}
	if p.MergeIntervalSec <= 0 {
		p.MergeIntervalSec = def.MergeIntervalSec
	}
	if p.SplitIntervalSec <= 0 {
		p.SplitIntervalSec = def.SplitIntervalSec
	}
}

// AutoPopulateFromEnv fills in API keys from environment variables
func (c *Config) AutoPopulateFromEnv() {
	if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Models.OpenAI.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Models.Gemini.APIKey = key
	}
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		c.Models.Grok.APIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Models.Ollama.Endpoint = host
		c.Models.Ollama.Enabled = true
	}
}

// GetEnabledModels returns models that are enabled and have API keys
func (c *Config) GetEnabledModels() []string {
	var models []string
	if c.Models.Claude.Enabled && c.Models.Claude.APIKey != "" {
		models = append(models, "claude")
	}
	if c.Models.OpenAI.Enabled && c.Models.OpenAI.APIKey != "" {
		models = append(models, "openai")
	}
	if c.Models.Gemini.Enabled && c.Models.Gemini.APIKey != "" {
		models = append(models, "gemini")
	}
	if c.Models.Grok.Enabled && c.Models.Grok.APIKey != "" {
		models = append(models, "grok")
	}
	if c.Models.Ollama.Enabled {
		models = append(models, "ollama")
	}
	return models
}
