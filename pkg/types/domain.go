package types

import "time"

// ModelTier is one backend-model configuration in the static tier catalog.
// The catalog is loaded once at startup and never mutated at runtime.
type ModelTier struct {
	// Stable identifier for the tier.
	// example: fast-3b
	ID string `json:"id" yaml:"id" toml:"id" example:"fast-3b"`
	// Base URL of the local inference server backing this tier.
	// example: http://127.0.0.1:8081
	BackendURL string `json:"backend_url" yaml:"backend_url" toml:"backend_url" example:"http://127.0.0.1:8081"`
	// Backend-side model name sent with each request.
	// example: qwen2.5-3b-instruct-q4
	Model string `json:"model" yaml:"model" toml:"model" example:"qwen2.5-3b-instruct-q4"`
	// Relative resource cost (roughly VRAM pressure). Higher is more expensive.
	// example: 3
	ResourceCost int `json:"resource_cost" yaml:"resource_cost" toml:"resource_cost" example:"3"`
	// Typical end-to-end latency in milliseconds, for observability only.
	// example: 900
	TypicalLatencyMS int `json:"typical_latency_ms,omitempty" yaml:"typical_latency_ms" toml:"typical_latency_ms" example:"900"`
	// Capability tags used to suggest substitutes (e.g., code, general, long-context).
	CapabilityTags []string `json:"capability_tags,omitempty" yaml:"capability_tags" toml:"capability_tags"`
	// Minimum complexity hint that routes to this tier. Must be in [0,1].
	// example: 0.5
	ComplexityThreshold float64 `json:"complexity_threshold" yaml:"complexity_threshold" toml:"complexity_threshold" example:"0.5"`
	// Shell command that restarts the backend process, run by health
	// remediation when the backend is unreachable. Empty disables restarts.
	// example: systemctl --user restart llama-fast-3b
	RestartCmd string `json:"restart_cmd,omitempty" yaml:"restart_cmd" toml:"restart_cmd" example:"systemctl --user restart llama-fast-3b"`
}

// PerformanceRecord accumulates per-tier request outcomes. Persisted across
// restarts; observability only, never fed back into tier selection.
type PerformanceRecord struct {
	TierID       string  `json:"tier_id"`
	Total        int64   `json:"total"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// HealthStatus is the per-component health classification.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
)

// CheckResult is the outcome of a single health probe run.
type CheckResult struct {
	Component string       `json:"component"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Incident records a period during which a component was degraded or
// critical, together with its remediation history.
type Incident struct {
	ID         string       `json:"id"`
	Component  string       `json:"component"`
	Severity   HealthStatus `json:"severity"`
	DetectedAt time.Time    `json:"detected_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	AutoFixed  bool         `json:"auto_fixed"`
	Attempts   int          `json:"attempts"`
	Resolution string       `json:"resolution,omitempty"`
}

// TaskStatus is the lifecycle state of a multi-step task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// StepStatus is the lifecycle state of one step within a task.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one unit of work inside a task.
type Step struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Task is a durable, resumable multi-step operation. CurrentStep is the index
// of the next step to execute; steps before it are terminal.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Steps       []Step     `json:"steps"`
	CurrentStep int        `json:"current_step"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
