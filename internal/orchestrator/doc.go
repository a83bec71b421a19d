// Package orchestrator owns the tiered model lifecycle. It is structured into
// small files by concern:
//
//   - orchestrator.go: core Orchestrator type, constructor, status reporting.
//   - types.go: instance state types.
//   - errors.go: error types and helpers (IsBackendUnavailable, IsLoadTimeout, ...).
//   - ensure.go: single-flight lazy load and in-flight accounting.
//   - handle.go: request entry point and the fallback chain.
//   - unload.go: idle unload janitor and forced unload.
//   - perf.go: durable per-tier performance records.
//   - preflight.go: startup reachability validation with substitute hints.
//
// The loaded-instance set is the only exclusively mutated resource: one writer
// per tier, guarded by the per-tier entry lock. External packages should use
// public methods only (New, Handle, Preflight, Snapshot, Unload, UnloadAll).
package orchestrator
