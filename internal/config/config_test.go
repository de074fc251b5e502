package config

import "testing"

func TestDefaultConfigFloors(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.Pipeline
	if p.BatchSize <= 0 || p.MinClusterSize <= 0 || p.Fanout <= 0 {
		t.Fatalf("defaults must be positive: %+v", p)
	}
	if p.SplitThreshold <= p.MinClusterSize {
		t.Errorf("split threshold %d should exceed min cluster size %d", p.SplitThreshold, p.MinClusterSize)
	}
}

func TestApplyFloors(t *testing.T) {
	cfg := &Config{}
	cfg.applyFloors()
	def := DefaultConfig().Pipeline
	if cfg.Pipeline.BatchSize != def.BatchSize {
		t.Errorf("BatchSize = %d, want default %d", cfg.Pipeline.BatchSize, def.BatchSize)
	}
	if cfg.Pipeline.CallTimeoutSec != def.CallTimeoutSec {
		t.Errorf("CallTimeoutSec = %d, want default %d", cfg.Pipeline.CallTimeoutSec, def.CallTimeoutSec)
	}

	// Explicit values survive.
	cfg2 := &Config{}
	cfg2.Pipeline.BatchSize = 7
	cfg2.applyFloors()
	if cfg2.Pipeline.BatchSize != 7 {
		t.Errorf("explicit BatchSize overwritten: %d", cfg2.Pipeline.BatchSize)
	}
}

func TestGetEnabledModels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.Claude.APIKey = "k"
	models := cfg.GetEnabledModels()
	found := false
	for _, m := range models {
		if m == "claude" {
			found = true
		}
	}
	if !found {
		t.Errorf("claude should be enabled with key set, got %v", models)
	}
}
