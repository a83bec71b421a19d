package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/pkg/types"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	DataDir   string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"` // console or json

	// Tier catalog; immutable after startup.
	Tiers []types.ModelTier `json:"tiers" yaml:"tiers" toml:"tiers"`
	// Pre-load the cheapest tier at startup instead of waiting for first use.
	WarmDefaultTier bool `json:"warm_default_tier" yaml:"warm_default_tier" toml:"warm_default_tier"`

	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator" toml:"orchestrator"`
	Cache        CacheConfig        `json:"cache" yaml:"cache" toml:"cache"`
	Health       HealthConfig       `json:"health" yaml:"health" toml:"health"`
	Task         TaskConfig         `json:"task" yaml:"task" toml:"task"`
}

// OrchestratorConfig tunes instance lifecycle behavior.
type OrchestratorConfig struct {
	IdleTimeoutSec  int `json:"idle_timeout_sec" yaml:"idle_timeout_sec" toml:"idle_timeout_sec"`
	LoadTimeoutSec  int `json:"load_timeout_sec" yaml:"load_timeout_sec" toml:"load_timeout_sec"`
	InferTimeoutSec int `json:"infer_timeout_sec" yaml:"infer_timeout_sec" toml:"infer_timeout_sec"`
	RestartWaitSec  int `json:"restart_wait_sec" yaml:"restart_wait_sec" toml:"restart_wait_sec"`
}

// CacheConfig tunes the layered response cache.
type CacheConfig struct {
	HotCapacity         int     `json:"hot_capacity" yaml:"hot_capacity" toml:"hot_capacity"`
	WarmMaxEntries      int     `json:"warm_max_entries" yaml:"warm_max_entries" toml:"warm_max_entries"`
	TTLSec              int     `json:"ttl_sec" yaml:"ttl_sec" toml:"ttl_sec"`
	SweepIntervalSec    int     `json:"sweep_interval_sec" yaml:"sweep_interval_sec" toml:"sweep_interval_sec"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" toml:"similarity_threshold"`
	MinResponseLen      int     `json:"min_response_len" yaml:"min_response_len" toml:"min_response_len"`
}

// HealthConfig tunes the health monitor.
type HealthConfig struct {
	IntervalSec    int `json:"interval_sec" yaml:"interval_sec" toml:"interval_sec"`
	CriticalAfter  int `json:"critical_after" yaml:"critical_after" toml:"critical_after"`
	HealAttemptCap int `json:"heal_attempt_cap" yaml:"heal_attempt_cap" toml:"heal_attempt_cap"`
	DiskMinFreeMB  int `json:"disk_min_free_mb" yaml:"disk_min_free_mb" toml:"disk_min_free_mb"`
	MemMaxAllocMB  int `json:"mem_max_alloc_mb" yaml:"mem_max_alloc_mb" toml:"mem_max_alloc_mb"`
}

// TaskConfig tunes the task state manager.
type TaskConfig struct {
	StepRetryCap int `json:"step_retry_cap" yaml:"step_retry_cap" toml:"step_retry_cap"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unset fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.DataDir == "" {
		c.DataDir = "~/.local/share/inferd"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Orchestrator.IdleTimeoutSec <= 0 {
		c.Orchestrator.IdleTimeoutSec = 300
	}
	if c.Orchestrator.LoadTimeoutSec <= 0 {
		c.Orchestrator.LoadTimeoutSec = 30
	}
	if c.Orchestrator.InferTimeoutSec <= 0 {
		c.Orchestrator.InferTimeoutSec = 120
	}
	if c.Orchestrator.RestartWaitSec <= 0 {
		c.Orchestrator.RestartWaitSec = 3
	}
	if c.Cache.HotCapacity <= 0 {
		c.Cache.HotCapacity = 128
	}
	if c.Cache.WarmMaxEntries <= 0 {
		c.Cache.WarmMaxEntries = 4096
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Cache.SweepIntervalSec <= 0 {
		c.Cache.SweepIntervalSec = 600
	}
	if c.Cache.SimilarityThreshold <= 0 {
		c.Cache.SimilarityThreshold = 0.75
	}
	if c.Cache.MinResponseLen <= 0 {
		c.Cache.MinResponseLen = 50
	}
	if c.Health.IntervalSec <= 0 {
		c.Health.IntervalSec = 30
	}
	if c.Health.CriticalAfter <= 0 {
		c.Health.CriticalAfter = 3
	}
	if c.Health.HealAttemptCap <= 0 {
		c.Health.HealAttemptCap = 3
	}
	if c.Health.DiskMinFreeMB <= 0 {
		c.Health.DiskMinFreeMB = 512
	}
	if c.Health.MemMaxAllocMB <= 0 {
		c.Health.MemMaxAllocMB = 2048
	}
	if c.Task.StepRetryCap <= 0 {
		c.Task.StepRetryCap = 2
	}
	return c
}
