// Package service is the orchestration facade: one entry point that wires
// the cache in front of the tier orchestrator, runs tasks against the same
// serving path, and aggregates health and status for the HTTP layer.
package service
