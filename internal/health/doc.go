// Package health runs periodic probes over the daemon's dependencies,
// drives a per-component state machine (healthy -> degraded -> critical),
// attempts bounded auto-remediation, and keeps an append-only incident
// ledger for audit. Probes are independent: each runs concurrently under its
// own timeout, and a failing or panicking probe is recorded, never
// propagated.
package health
