package types

// QueryRequest is the payload for POST /v1/query.
type QueryRequest struct {
	// Natural-language query text.
	// example: open the hyprland config
	Query string `json:"query" example:"open the hyprland config"`
	// Complexity hint in [0,1] produced by the front-end. Routes tier selection.
	// example: 0.3
	Complexity float64 `json:"complexity" example:"0.3"`
}

// Attempt describes one tier tried while serving a request.
type Attempt struct {
	// Tier that was attempted.
	// example: fast-3b
	TierID string `json:"tier_id" example:"fast-3b"`
	// Whether the attempt produced a response.
	OK bool `json:"ok"`
	// Failure reason when OK is false.
	// example: load timeout after 30s
	Reason string `json:"reason,omitempty" example:"load timeout after 30s"`
	// Attempt duration in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
}

// QueryResponse is the result of a served request.
type QueryResponse struct {
	// Model or cache response text.
	Response string `json:"response"`
	// Tier that produced the response; empty on a cache hit.
	// example: fast-3b
	TierUsed string `json:"tier_used,omitempty" example:"fast-3b"`
	// Total serve latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
	// Whether the response came from the cache.
	CacheHit bool `json:"cache_hit"`
	// Cache layer that served the hit ("hot" or "warm").
	// example: hot
	CacheLayer string `json:"cache_layer,omitempty" example:"hot"`
	// Tiers attempted, in order, including the successful one.
	Attempts []Attempt `json:"attempts,omitempty"`
}

// TaskRequest is the payload for POST /v1/tasks.
type TaskRequest struct {
	// Human-readable task description.
	// example: refactor config loading
	Description string `json:"description" example:"refactor config loading"`
	// Ordered step descriptions.
	Steps []string `json:"steps"`
}

// TaskCreated is returned after a task is accepted.
type TaskCreated struct {
	// Identifier of the created task.
	ID string `json:"id"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Tiers attempted before the request failed, when applicable.
	Attempts []Attempt `json:"attempts,omitempty"`
}

// InstanceStatus summarizes one loaded tier instance for /status.
type InstanceStatus struct {
	// Tier this instance serves.
	// example: fast-3b
	TierID string `json:"tier_id" example:"fast-3b"`
	// Lifecycle state (loading, ready, unloading, failed).
	// example: ready
	State string `json:"state" example:"ready"`
	// RFC3339 time the instance finished loading.
	LoadedAt string `json:"loaded_at,omitempty"`
	// RFC3339 time of last use.
	LastUsed string `json:"last_used,omitempty"`
	// Requests currently executing against this instance.
	Inflight int `json:"inflight"`
}

// CacheStats summarizes cache behavior for /status.
type CacheStats struct {
	HotEntries  int   `json:"hot_entries"`
	WarmEntries int   `json:"warm_entries"`
	HotHits     int64 `json:"hot_hits"`
	WarmHits    int64 `json:"warm_hits"`
	Misses      int64 `json:"misses"`
	Stores      int64 `json:"stores"`
	Rejected    int64 `json:"rejected"`
	// True when the warm layer is unreadable and the cache runs hot-only.
	Degraded bool `json:"degraded"`
}

// StatusResponse is the aggregate daemon status.
type StatusResponse struct {
	// Overall health classification.
	// example: healthy
	Overall   HealthStatus        `json:"overall" example:"healthy"`
	Tiers     []ModelTier         `json:"tiers"`
	Instances []InstanceStatus    `json:"instances"`
	Perf      []PerformanceRecord `json:"perf"`
	Cache     CacheStats          `json:"cache"`
	Checks    []CheckResult       `json:"checks,omitempty"`
	// Daemon uptime in seconds.
	UptimeSec int64 `json:"uptime_sec"`
}
