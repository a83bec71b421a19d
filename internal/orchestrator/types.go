package orchestrator

import "time"

// State is the lifecycle state of a loaded tier instance.
type State string

const (
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateUnloading State = "unloading"
	StateFailed    State = "failed"
)

// Instance is a live backend context for one tier. At most one exists per
// tier id; it is created on first use and destroyed on idle timeout or
// explicit unload.
type Instance struct {
	TierID   string
	State    State
	LoadedAt time.Time
	LastUsed time.Time
}

// Result is the outcome of a successfully served request.
type Result struct {
	Response string
	TierUsed string
	Latency  time.Duration
	// Attempts lists every tier tried, in order, including the one that
	// succeeded last.
	Attempts []Attempt
}

// Attempt records one tier tried while serving a request.
type Attempt struct {
	TierID  string
	OK      bool
	Reason  string
	Latency time.Duration
}
